package aeat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/verifactu-api/internal/domain/entity"
)

type stubSubmitter struct {
	payload  []byte
	response []byte
	err      error
}

func (s *stubSubmitter) Submit(_ context.Context, _ *entity.Issuer, payload []byte) ([]byte, error) {
	s.payload = payload
	return s.response, s.err
}

func TestClampPeriod(t *testing.T) {
	c := NewQueryClient(nil)
	c.now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name      string
		year      int
		month     int
		wantYear  int
		wantMonth string
	}{
		{"periodo explícito", 2030, 5, 2030, "05"},
		{"año por debajo del mínimo", 1999, 5, 2025, "05"},
		{"año por encima del máximo", 2300, 5, 2200, "05"},
		{"mes fuera de rango alto", 2026, 13, 2026, "12"},
		{"mes fuera de rango bajo", 2026, -3, 2026, "01"},
		{"cero toma el periodo actual", 0, 0, 2026, "03"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			year, month := c.ClampPeriod(tt.year, tt.month)
			assert.Equal(t, tt.wantYear, year)
			assert.Equal(t, tt.wantMonth, month)
		})
	}
}

func TestQueryBuildsEnvelopeAndParsesRecords(t *testing.T) {
	sub := &stubSubmitter{response: []byte(`<?xml version="1.0" encoding="UTF-8"?>
		<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/"><env:Body>
			<con:RespuestaConsultaFactuSistemaFacturacion xmlns:con="urn:con">
				<con:RegistroRespuestaConsultaFactuSistemaFacturacion>
					<con:NumSerieFactura>25/0001</con:NumSerieFactura>
					<con:EstadoRegistro>Correcta</con:EstadoRegistro>
				</con:RegistroRespuestaConsultaFactuSistemaFacturacion>
				<con:RegistroRespuestaConsultaFactuSistemaFacturacion>
					<con:NumSerieFactura>25/0002</con:NumSerieFactura>
					<con:EstadoRegistro>Anulada</con:EstadoRegistro>
				</con:RegistroRespuestaConsultaFactuSistemaFacturacion>
			</con:RespuestaConsultaFactuSistemaFacturacion>
		</env:Body></env:Envelope>`)}

	c := NewQueryClient(sub)
	issuer := &entity.Issuer{ID: 1, Name: "Empresa Demo SL", VatID: "B12345678"}

	records, err := c.Query(context.Background(), issuer, 2025, 6)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "25/0001", records[0].Node.Get("NumSerieFactura")[0].Text)
	assert.Equal(t, "Anulada", records[1].Node.Get("EstadoRegistro")[0].Text)

	envelope := string(sub.payload)
	assert.Contains(t, envelope, "<con:ConsultaFactuSistemaFacturacion>")
	assert.Contains(t, envelope, "<sum:Ejercicio>2025</sum:Ejercicio>")
	assert.Contains(t, envelope, "<sum:Periodo>06</sum:Periodo>")
	assert.Contains(t, envelope, "<sum:NIF>B12345678</sum:NIF>")
}

func TestQueryEmptyBody(t *testing.T) {
	sub := &stubSubmitter{response: []byte(`<?xml version="1.0"?><Respuesta/>`)}
	c := NewQueryClient(sub)

	records, err := c.Query(context.Background(), &entity.Issuer{VatID: "B12345678"}, 2025, 6)
	require.NoError(t, err)
	assert.Empty(t, records)
}
