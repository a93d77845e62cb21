package aeat

import (
	"fmt"
	"strconv"

	"github.com/jhoicas/verifactu-api/internal/domain"
)

// SubmissionResponse es la respuesta SOAP de remisión ya interpretada.
// CSV, espera y timestamp son de nivel de lote; cada RespuestaLinea aporta
// el desenlace de un registro.
type SubmissionResponse struct {
	CSV         string
	WaitSeconds int    // TiempoEsperaEnvio, obligatorio
	Timestamp   string // TimestampPresentacion, tal cual llega; "" si falta
	Lines       []SubmissionLine
}

// SubmissionLine es el desenlace de un registro dentro del lote.
type SubmissionLine struct {
	Number     string // NumSerieFactura devuelto por la AEAT
	ErrorCode  int    // 0 = aceptado
	ErrorDescr string
}

// ParseSubmissionResponse interpreta el cuerpo SOAP de una remisión.
// XML imposible de parsear se trata como fallo de transporte; XML bien
// formado al que le falta la estructura esperada (Body, RespuestaLinea,
// TiempoEsperaEnvio) es una violación de protocolo.
func ParseSubmissionResponse(raw []byte) (*SubmissionResponse, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: respuesta ilegible: %v", domain.ErrTransport, err)
	}

	body := findFirst(doc.Root(), "Body")
	if body == nil {
		return nil, fmt.Errorf("%w: la respuesta no trae Body SOAP", domain.ErrProtocol)
	}

	lines := findAll(body, "RespuestaLinea")
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: la respuesta no trae RespuestaLinea", domain.ErrProtocol)
	}

	waitText := elementText(findFirst(body, "TiempoEsperaEnvio"), "")
	if waitText == "" {
		return nil, fmt.Errorf("%w: la respuesta no trae TiempoEsperaEnvio", domain.ErrProtocol)
	}
	wait, err := strconv.Atoi(waitText)
	if err != nil || wait < 0 {
		return nil, fmt.Errorf("%w: TiempoEsperaEnvio inválido: %q", domain.ErrProtocol, waitText)
	}

	resp := &SubmissionResponse{
		CSV:         elementText(findFirst(body, "CSV"), ""),
		WaitSeconds: wait,
		Lines:       make([]SubmissionLine, 0, len(lines)),
	}
	if dp := findFirst(body, "DatosPresentacion"); dp != nil {
		resp.Timestamp = elementText(findFirst(dp, "TimestampPresentacion"), "")
	}

	for _, line := range lines {
		var number string
		if idf := findFirst(line, "IDFactura"); idf != nil {
			number = elementText(findFirst(idf, "NumSerieFactura"), "")
		}
		code := 0
		if codText := elementText(findFirst(line, "CodigoErrorRegistro"), ""); codText != "" {
			code, err = strconv.Atoi(codText)
			if err != nil {
				return nil, fmt.Errorf("%w: CodigoErrorRegistro inválido: %q", domain.ErrProtocol, codText)
			}
		}
		resp.Lines = append(resp.Lines, SubmissionLine{
			Number:     number,
			ErrorCode:  code,
			ErrorDescr: elementText(findFirst(line, "DescripcionErrorRegistro"), ""),
		})
	}

	return resp, nil
}
