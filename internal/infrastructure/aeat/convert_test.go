package aeat

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromElementPreservesOrderAndRepeats(t *testing.T) {
	raw := []byte(`<?xml version="1.0" encoding="UTF-8"?>
		<con:Respuesta xmlns:con="urn:con" xmlns:sum="urn:sum">
			<sum:Cabecera>
				<sum:NIF>B12345678</sum:NIF>
			</sum:Cabecera>
			<con:Registro>
				<con:NumSerieFactura>25/0001</con:NumSerieFactura>
				<con:Estado>Correcta</con:Estado>
			</con:Registro>
			<con:Registro>
				<con:NumSerieFactura>25/0002</con:NumSerieFactura>
				<con:Estado>Anulada</con:Estado>
			</con:Registro>
		</con:Respuesta>`)

	doc, err := ParseDocument(raw)
	require.NoError(t, err)

	v := FromElement(doc.Root())
	require.False(t, v.IsLeaf())

	// Claves con nombre local (sin prefijo), en orden de aparición.
	assert.Equal(t, []string{"Cabecera", "Registro"}, v.Node.Keys())

	regs := v.Node.Get("Registro")
	require.Len(t, regs, 2)
	assert.Equal(t, "25/0001", regs[0].Node.Get("NumSerieFactura")[0].Text)
	assert.Equal(t, "Anulada", regs[1].Node.Get("Estado")[0].Text)

	// Un tag único se rinde como valor; uno repetido, como array ordenado.
	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Cabecera": {"NIF": "B12345678"},
		"Registro": [
			{"NumSerieFactura": "25/0001", "Estado": "Correcta"},
			{"NumSerieFactura": "25/0002", "Estado": "Anulada"}
		]
	}`, string(out))

	// El orden de claves sobrevive al marshal (el genérico de Go lo perdería).
	assert.Less(t,
		strings.Index(string(out), "Cabecera"), strings.Index(string(out), "Registro"))
}

func TestParseDocumentLatin1(t *testing.T) {
	// La AEAT no siempre responde UTF-8: ñ en ISO-8859-1 (0xF1).
	raw := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><Respuesta><Descripcion>Espa`),
		0xF1)
	raw = append(raw, []byte(`a</Descripcion></Respuesta>`)...)

	doc, err := ParseDocument(raw)
	require.NoError(t, err)

	v := FromElement(doc.Root())
	assert.Equal(t, "España", v.Node.Get("Descripcion")[0].Text)
}

func TestParseDocumentRejectsGarbage(t *testing.T) {
	_, err := ParseDocument([]byte("no soy xml <"))
	assert.Error(t, err)

	_, err = ParseDocument([]byte(""))
	assert.Error(t, err)
}
