package aeat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/verifactu-api/internal/domain"
	"github.com/jhoicas/verifactu-api/internal/domain/entity"
	"github.com/jhoicas/verifactu-api/internal/domain/verifactu"
)

// QueryClient construye y ejecuta consultas de solo lectura de los registros
// remitidos de un emisor para un periodo (ejercicio, mes). La respuesta no
// tiene forma fija conocida: se convierte genéricamente con FromElement.
type QueryClient struct {
	submitter Submitter
	now       func() time.Time
}

// NewQueryClient construye el cliente de consulta.
func NewQueryClient(submitter Submitter) *QueryClient {
	return &QueryClient{submitter: submitter, now: time.Now}
}

// ClampPeriod normaliza el periodo: año 0 toma el actual y se acota a
// [2025, 2200]; mes 0 toma el actual y se acota a [1, 12].
func (c *QueryClient) ClampPeriod(year, month int) (int, string) {
	now := c.now()
	if year == 0 {
		year = now.Year()
	}
	if year < 2025 {
		year = 2025
	}
	if year > 2200 {
		year = 2200
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 {
		month = 1
	}
	if month > 12 {
		month = 12
	}
	return year, fmt.Sprintf("%02d", month)
}

// Query envía la ConsultaFactuSistemaFacturacion del periodo y devuelve un
// valor genérico por cada registro de la respuesta.
func (c *QueryClient) Query(ctx context.Context, issuer *entity.Issuer, year, month int) ([]Value, error) {
	ejercicio, periodo := c.ClampPeriod(year, month)

	raw, err := c.submitter.Submit(ctx, issuer, []byte(c.buildEnvelope(issuer, ejercicio, periodo)))
	if err != nil {
		return nil, err
	}

	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	body := findFirst(doc.Root(), "Body")
	if body == nil {
		return []Value{}, nil
	}

	regs := findAll(body, "RegistroRespuestaConsultaFactuSistemaFacturacion")
	data := make([]Value, 0, len(regs))
	for _, reg := range regs {
		data = append(data, FromElement(reg))
	}
	return data, nil
}

func (c *QueryClient) buildEnvelope(issuer *entity.Issuer, year int, month string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<soapenv:Envelope xmlns:soapenv="` + nsSoapEnv + `"`)
	b.WriteString(` xmlns:con="` + NsConsultaLR + `"`)
	b.WriteString(` xmlns:sum="` + NsSuministro + `">`)
	b.WriteString(`<soapenv:Header/><soapenv:Body>`)
	b.WriteString(`<con:ConsultaFactuSistemaFacturacion>`)
	b.WriteString(`<con:Cabecera><sum:IDVersion>1.0</sum:IDVersion><sum:ObligadoEmision>`)
	b.WriteString(`<sum:NombreRazon>`)
	_ = writeEscaped(&b, issuer.Name)
	b.WriteString(`</sum:NombreRazon><sum:NIF>`)
	_ = writeEscaped(&b, verifactu.NormalizeVatID(issuer.VatID))
	b.WriteString(`</sum:NIF></sum:ObligadoEmision></con:Cabecera>`)
	b.WriteString(`<con:FiltroConsulta><con:PeriodoImputacion>`)
	b.WriteString(fmt.Sprintf(`<sum:Ejercicio>%d</sum:Ejercicio><sum:Periodo>%s</sum:Periodo>`, year, month))
	b.WriteString(`</con:PeriodoImputacion></con:FiltroConsulta>`)
	b.WriteString(`</con:ConsultaFactuSistemaFacturacion></soapenv:Body></soapenv:Envelope>`)
	return b.String()
}
