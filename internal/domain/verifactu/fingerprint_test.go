package verifactu_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/verifactu-api/internal/domain/verifactu"
)

// ──────────────────────────────────────────────────────────────────────────────
// Vectores de referencia calculados manualmente con SHA-256 sobre la cadena
// canónica. Si alguien altera el orden de los pares, el algoritmo o el formato
// de los montos, estos tests fallan de inmediato.
//
//	Alta (primer registro, Huella previa vacía):
//	IDEmisorFactura=X1234567&NumSerieFactura=25/1&FechaExpedicionFactura=01-01-2025
//	&TipoFactura=F1&CuotaTotal=21.00&ImporteTotal=121.00&Huella=
//	&FechaHoraHusoGenRegistro=2025-01-01T10:00:00+01:00
// ──────────────────────────────────────────────────────────────────────────────

const (
	firstExpected   = "9548676D628EA8C82400EB16F1D6742FB0929F38402BD0454ED19CB79E8FFEBF"
	chainedExpected = "72473ADB71EAE8FDB4A6DCBF7F28B81BF39D46635FAF86EBF34DBFB1FAC5105B"
	voidingExpected = "3FC398F2AEBDFC489BC8307DB0812D0331AFF66ECABBC1AAE279305769AB1EA2"
)

func firstParams() *verifactu.FingerprintParams {
	return &verifactu.FingerprintParams{
		IssuerVatID: "X1234567",
		Number:      "25/1",
		IssueDate:   "01-01-2025",
		Type:        "F1",
		TVat:        decimal.NewFromFloat(21),
		Total:       decimal.NewFromFloat(121),
		PrevHash:    "",
		Generated:   "2025-01-01T10:00:00+01:00",
	}
}

func TestRegistration_FirstRecordVector(t *testing.T) {
	calc := verifactu.NewCalculator()

	fp, err := calc.Registration(firstParams())
	require.NoError(t, err)
	assert.Equal(t, firstExpected, fp,
		"la huella del primer registro (predecesor vacío) debe coincidir con el vector de referencia")
}

func TestRegistration_ChainedVector(t *testing.T) {
	calc := verifactu.NewCalculator()

	fp, err := calc.Registration(&verifactu.FingerprintParams{
		IssuerVatID: "X1234567",
		Number:      "25/2",
		IssueDate:   "02-01-2025",
		Type:        "F1",
		TVat:        decimal.NewFromFloat(42),
		Total:       decimal.NewFromFloat(242),
		PrevHash:    firstExpected,
		Generated:   "2025-01-02T10:00:00+01:00",
	})
	require.NoError(t, err)
	assert.Equal(t, chainedExpected, fp,
		"el segundo registro debe encadenar con la huella exacta del primero")
}

func TestVoiding_Vector(t *testing.T) {
	calc := verifactu.NewCalculator()

	fp, err := calc.Voiding(firstParams())
	require.NoError(t, err)
	assert.Equal(t, voidingExpected, fp,
		"la variante de anulación usa solo identidad y fechas")
}

func TestRegistration_Deterministic(t *testing.T) {
	calc := verifactu.NewCalculator()

	fp1, err1 := calc.Registration(firstParams())
	fp2, err2 := calc.Registration(firstParams())

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, fp1, fp2, "el mismo input siempre produce la misma huella")
}

func TestRegistration_PrevHashChangesDigest(t *testing.T) {
	calc := verifactu.NewCalculator()

	p := firstParams()
	p.PrevHash = chainedExpected
	fp, err := calc.Registration(p)
	require.NoError(t, err)
	assert.NotEqual(t, firstExpected, fp,
		"un predecesor distinto debe producir una huella distinta")
}

func TestRegistration_Format(t *testing.T) {
	calc := verifactu.NewCalculator()

	fp, err := calc.Registration(firstParams())
	require.NoError(t, err)
	assert.Len(t, fp, 64, "la huella SHA-256 tiene 64 caracteres hexadecimales")
	assert.Equal(t, fp, firstExpected, "y se rinde en mayúsculas")
}

func TestRegistration_Errors(t *testing.T) {
	calc := verifactu.NewCalculator()

	_, err := calc.Registration(nil)
	assert.Error(t, err, "params nil debe retornar error")

	p := firstParams()
	p.Number = ""
	_, err = calc.Registration(p)
	assert.Error(t, err, "sin NumSerieFactura debe retornar error")

	p = firstParams()
	p.IssuerVatID = "---"
	_, err = calc.Registration(p)
	assert.Error(t, err, "un NIF sin caracteres alfanuméricos debe retornar error")
}

func TestNormalizeVatID(t *testing.T) {
	assert.Equal(t, "B12345678", verifactu.NormalizeVatID(" b-12.345.678 "))
	assert.Equal(t, "X1234567", verifactu.NormalizeVatID("X1234567"))
	assert.Equal(t, "", verifactu.NormalizeVatID("·/ "))
}
