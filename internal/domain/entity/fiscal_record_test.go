package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNumberFormat(t *testing.T) {
	issuer := &Issuer{Formula: "%y%/%n.4%", FormulaR: "R-%y%/%n.4%"}
	dt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		typ  string
		want string
	}{
		{"ordinaria usa la fórmula general", TypeOrdinary, "25/0012"},
		{"simplificada usa la fórmula general", TypeSimplified, "25/0012"},
		{"sustitutiva usa la fórmula general", TypeSubstituteSimplified, "25/0012"},
		{"rectificativa usa la fórmula R", TypeCorrectiveArt80_1, "R-25/0012"},
		{"rectificativa simplificada usa la fórmula R", TypeCorrectiveSimplified, "R-25/0012"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &FiscalRecord{Dt: dt, Num: 12, Type: tt.typ}
			assert.Equal(t, tt.want, rec.NumberFormat(issuer))
		})
	}

	// Sin fórmulas configuradas se aplican las de fábrica.
	bare := &Issuer{}
	assert.Equal(t, "12", (&FiscalRecord{Dt: dt, Num: 12, Type: TypeOrdinary}).NumberFormat(bare))
	assert.Equal(t, "R-12", (&FiscalRecord{Dt: dt, Num: 12, Type: TypeCorrectiveOther}).NumberFormat(bare))
}

func TestCorrective(t *testing.T) {
	assert.False(t, (&FiscalRecord{Type: TypeOrdinary}).Corrective())
	assert.False(t, (&FiscalRecord{Type: TypeSimplified}).Corrective())
	assert.True(t, (&FiscalRecord{Type: TypeSubstituteSimplified}).Corrective())
	for _, typ := range []string{TypeCorrectiveArt80_1, TypeCorrectiveArt80_3, TypeCorrectiveArt80_4, TypeCorrectiveOther, TypeCorrectiveSimplified} {
		assert.True(t, (&FiscalRecord{Type: typ}).Corrective(), typ)
	}
}

func TestQRValidationURL(t *testing.T) {
	rec := &FiscalRecord{
		Dt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Num:   1,
		Type:  TypeOrdinary,
		Total: decimal.NewFromFloat(121.005),
	}

	prod := &Issuer{VatID: "B12345678", Formula: "%y%/%n.4%"}
	assert.Equal(t,
		"https://www2.agenciatributaria.gob.es/wlpl/TIKE-CONT/ValidarQR?nif=B12345678&numserie=25%2F0001&fecha=01-06-2025&importe=121.01",
		rec.QRValidationURL(prod))

	test := &Issuer{VatID: "B12345678", Formula: "%y%/%n.4%", Test: true}
	assert.Contains(t, rec.QRValidationURL(test), "https://prewww2.aeat.es/")
}

func TestCanSend(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	assert.True(t, (&Issuer{}).CanSend(now), "sin ventana fijada siempre se puede enviar")

	past := now.Add(-time.Second)
	assert.True(t, (&Issuer{NextSend: &past}).CanSend(now))
	assert.True(t, (&Issuer{NextSend: &now}).CanSend(now), "el límite es inclusivo")

	future := now.Add(time.Second)
	assert.False(t, (&Issuer{NextSend: &future}).CanSend(now))
}
