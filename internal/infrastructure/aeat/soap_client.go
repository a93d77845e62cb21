package aeat

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jhoicas/verifactu-api/internal/domain"
	"github.com/jhoicas/verifactu-api/internal/domain/entity"
	"github.com/jhoicas/verifactu-api/internal/domain/verifactu"
)

// ── Endpoints y namespaces del WS Veri*Factu ──────────────────────────────────

const (
	soapURLProd = "https://www1.agenciatributaria.gob.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
	soapURLTest = "https://prewww1.aeat.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"

	nsSoapEnv = "http://schemas.xmlsoap.org/soap/envelope/"
	nsBase    = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/"

	// NsSuministro es el namespace de los tipos comunes (SuministroInformacion).
	NsSuministro = nsBase + "SuministroInformacion.xsd"
	// NsSuministroLR es el namespace del envío de registros (SuministroLR).
	NsSuministroLR = nsBase + "SuministroLR.xsd"
	// NsConsultaLR es el namespace de la consulta de registros.
	NsConsultaLR = nsBase + "ConsultaLR.xsd"
)

// ── Puerto (interfaz) ─────────────────────────────────────────────────────────

// Submitter define el puerto de salida hacia el WS AEAT. La implementación
// concreta usa HTTP con mutual-TLS; para tests se inyecta un fake.
type Submitter interface {
	// Submit envía el envelope SOAP autenticado con el certificado del emisor
	// y devuelve el cuerpo crudo de la respuesta. El endpoint lo decide el
	// flag test/producción del emisor. Cualquier fallo de transporte
	// (conexión, status no exitoso, cuerpo vacío) retorna domain.ErrTransport.
	Submit(ctx context.Context, issuer *entity.Issuer, payload []byte) ([]byte, error)
}

// ── Implementación ────────────────────────────────────────────────────────────

// SOAPClient implementa Submitter contra el WS SOAP de la AEAT.
// Usa net/http de la stdlib; no requiere librerías de terceros para la llamada.
type SOAPClient struct {
	timeout      time.Duration
	responsesDir string // volcado de envíos/respuestas; vacío = desactivado
}

// NewSOAPClient construye el cliente con un timeout de red generoso (60 s):
// cubre handshake TLS y espera de respuesta, y el WS puede tardar varios
// segundos. No hay cancelación en vuelo más allá del timeout.
func NewSOAPClient(responsesDir string) *SOAPClient {
	return &SOAPClient{timeout: 60 * time.Second, responsesDir: responsesDir}
}

var (
	interTagSpace = regexp.MustCompile(`>\s+<`)
	xmlnsSpace    = regexp.MustCompile(`\s*xmlns`)
)

// NormalizeXML elimina el espacio incidental entre tags y compacta los
// saltos de línea ante xmlns. El validador AEAT es estricto con el esquema:
// el blanco entre elementos no es tolerado.
func NormalizeXML(payload []byte) []byte {
	out := xmlnsSpace.ReplaceAll(payload, []byte(" xmlns"))
	return interTagSpace.ReplaceAll(out, []byte("><"))
}

// Submit envía el payload por POST con la sesión TLS autenticada con el
// certificado del emisor.
func (c *SOAPClient) Submit(ctx context.Context, issuer *entity.Issuer, payload []byte) ([]byte, error) {
	cert, err := LoadIssuerCert(issuer.CertFile, issuer.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	payload = NormalizeXML(payload)
	c.dump("send", payload)

	soapURL := soapURLProd
	if issuer.Test {
		soapURL = soapURLTest
	}

	client := &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, soapURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: crear request: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: timeout o cancelación: %v", domain.ErrTransport, ctx.Err())
		}
		return nil, fmt.Errorf("%w: llamada HTTP fallida: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // max 4 MB
	if err != nil {
		return nil, fmt.Errorf("%w: leer respuesta: %v", domain.ErrTransport, err)
	}
	c.dump("resp", rawBody)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status HTTP %d", domain.ErrTransport, resp.StatusCode)
	}
	if len(bytes.TrimSpace(rawBody)) == 0 {
		return nil, fmt.Errorf("%w: respuesta vacía", domain.ErrTransport)
	}

	return rawBody, nil
}

// dump guarda el XML en el directorio de respuestas si está configurado y existe.
func (c *SOAPClient) dump(prefix string, payload []byte) {
	if c.responsesDir == "" {
		return
	}
	if info, err := os.Stat(c.responsesDir); err != nil || !info.IsDir() {
		return
	}
	name := fmt.Sprintf("%s_%s.xml", prefix, time.Now().Format("20060102150405"))
	_ = os.WriteFile(filepath.Join(c.responsesDir, name), payload, 0o644)
}

// BuildEnvelope envuelve los fragmentos sum:RegistroFactura de un lote en el
// envelope RegFactuSistemaFacturacion con la cabecera del obligado a emitir.
func BuildEnvelope(issuer *entity.Issuer, fragments []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<soapenv:Envelope xmlns:soapenv="` + nsSoapEnv + `"`)
	b.WriteString(` xmlns:sum="` + NsSuministroLR + `"`)
	b.WriteString(` xmlns="` + NsSuministro + `">`)
	b.WriteString(`<soapenv:Header/><soapenv:Body>`)
	b.WriteString(`<sum:RegFactuSistemaFacturacion><sum:Cabecera><ObligadoEmision>`)
	writeEl(&b, "NombreRazon", issuer.Name)
	writeEl(&b, "NIF", verifactu.NormalizeVatID(issuer.VatID))
	b.WriteString(`</ObligadoEmision></sum:Cabecera>`)
	for _, f := range fragments {
		b.WriteString(f)
	}
	b.WriteString(`</sum:RegFactuSistemaFacturacion></soapenv:Body></soapenv:Envelope>`)
	return b.String()
}
