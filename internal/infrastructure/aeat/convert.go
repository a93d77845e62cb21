package aeat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"
)

// Conversor genérico XML → mapping para respuestas sin forma fija conocida
// (consultas). Cada elemento se convierte en hoja (su texto) o en nodo:
// mapping ordenado de nombre de hijo a un valor, o a una lista cuando el tag
// se repite bajo el mismo padre, preservando el orden de primera aparición.

// Value es la variante etiquetada: hoja (Node == nil) o nodo.
type Value struct {
	Text string
	Node *Node
}

// IsLeaf indica si el valor es una hoja de texto.
func (v Value) IsLeaf() bool { return v.Node == nil }

// Node es un mapping ordenado de nombre de tag a uno o varios valores.
type Node struct {
	keys     []string
	children map[string][]Value
}

func (n *Node) add(name string, v Value) {
	if n.children == nil {
		n.children = make(map[string][]Value)
	}
	if _, ok := n.children[name]; !ok {
		n.keys = append(n.keys, name)
	}
	n.children[name] = append(n.children[name], v)
}

// Keys devuelve los nombres de hijo en orden de primera aparición.
func (n *Node) Keys() []string { return n.keys }

// Get devuelve los valores acumulados bajo name (nil si no existe).
func (n *Node) Get(name string) []Value { return n.children[name] }

// MarshalJSON rinde el nodo como objeto JSON con las claves en orden de
// aparición; un tag repetido se rinde como array.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range n.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vals := n.children[k]
		var (
			vb   []byte
			err2 error
		)
		if len(vals) == 1 {
			vb, err2 = json.Marshal(vals[0])
		} else {
			vb, err2 = json.Marshal(vals)
		}
		if err2 != nil {
			return nil, err2
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON rinde una hoja como string y un nodo como objeto.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Node != nil {
		return json.Marshal(v.Node)
	}
	return json.Marshal(v.Text)
}

// FromElement convierte un elemento en Value: hoja si no tiene hijos
// elemento, nodo en caso contrario. Los prefijos de namespace se descartan:
// la clave es el nombre local del tag.
func FromElement(el *etree.Element) Value {
	children := el.ChildElements()
	if len(children) == 0 {
		return Value{Text: el.Text()}
	}
	node := &Node{}
	for _, child := range children {
		node.add(child.Tag, FromElement(child))
	}
	return Value{Node: node}
}

// ParseDocument parsea XML tolerando respuestas etiquetadas en ISO-8859-1
// (la AEAT no siempre responde UTF-8).
func ParseDocument(raw []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("parsear XML: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("documento XML sin elemento raíz")
	}
	return doc, nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return input, nil
	case "iso-8859-1", "iso8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("charset no soportado: %s", charset)
	}
}

// findFirst busca en profundidad el primer descendiente con ese nombre local.
func findFirst(el *etree.Element, local string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			return child
		}
		if found := findFirst(child, local); found != nil {
			return found
		}
	}
	return nil
}

// findAll acumula en orden de documento todos los descendientes con ese nombre local.
func findAll(el *etree.Element, local string) []*etree.Element {
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			out = append(out, child)
		}
		out = append(out, findAll(child, local)...)
	}
	return out
}

// elementText devuelve el texto del elemento o def si no existe.
func elementText(el *etree.Element, def string) string {
	if el == nil {
		return def
	}
	return el.Text()
}
