// Package verifactu: cálculo de la huella (hash de encadenamiento) de los
// registros de facturación según el reglamento Veri*Factu.
// Algoritmo: SHA-256 (TipoHuella "01"). Cadena canónica de pares clave=valor
// en el orden estricto definido por la AEAT.

package verifactu

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// HashType es el valor fijo del elemento TipoHuella: SHA-256 es el único
// algoritmo admitido por el formato.
const HashType = "01"

// FingerprintParams contiene los datos de la cadena canónica en el orden
// exigido. Para altas se usan todos los campos; para anulaciones solo los de
// identidad y fechas (Type, TVat y Total se ignoran).
type FingerprintParams struct {
	IssuerVatID string          // NIF del emisor (se normaliza: alfanumérico, mayúsculas)
	Number      string          // NumSerieFactura ya formateado
	IssueDate   string          // FechaExpedicionFactura DD-MM-YYYY
	Type        string          // TipoFactura (solo altas)
	TVat        decimal.Decimal // CuotaTotal (solo altas)
	Total       decimal.Decimal // ImporteTotal (solo altas)
	PrevHash    string          // huella del predecesor; "" si es el primer registro
	Generated   string          // FechaHoraHusoGenRegistro con huso explícito
}

// Calculator calcula huellas de alta y anulación.
type Calculator struct{}

// NewCalculator crea el servicio.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Registration calcula la huella de un registro de alta.
// Cadena: IDEmisorFactura=&NumSerieFactura=&FechaExpedicionFactura=
// &TipoFactura=&CuotaTotal=&ImporteTotal=&Huella=&FechaHoraHusoGenRegistro=
// La huella del predecesor se inserta tal cual (cadena vacía permitida).
func (c *Calculator) Registration(p *FingerprintParams) (string, error) {
	if err := validate(p); err != nil {
		return "", err
	}
	f := "IDEmisorFactura=" + NormalizeVatID(p.IssuerVatID) +
		"&NumSerieFactura=" + p.Number +
		"&FechaExpedicionFactura=" + p.IssueDate +
		"&TipoFactura=" + p.Type +
		"&CuotaTotal=" + formatAmount(p.TVat) +
		"&ImporteTotal=" + formatAmount(p.Total) +
		"&Huella=" + p.PrevHash +
		"&FechaHoraHusoGenRegistro=" + p.Generated
	return digest(f), nil
}

// Voiding calcula la huella de un registro de anulación. Variante reducida:
// solo identidad, fechas y huella previa.
func (c *Calculator) Voiding(p *FingerprintParams) (string, error) {
	if err := validate(p); err != nil {
		return "", err
	}
	f := "IDEmisorFacturaAnulada=" + NormalizeVatID(p.IssuerVatID) +
		"&NumSerieFacturaAnulada=" + p.Number +
		"&FechaExpedicionFacturaAnulada=" + p.IssueDate +
		"&Huella=" + p.PrevHash +
		"&FechaHoraHusoGenRegistro=" + p.Generated
	return digest(f), nil
}

func validate(p *FingerprintParams) error {
	if p == nil {
		return fmt.Errorf("verifactu: FingerprintParams es obligatorio")
	}
	if NormalizeVatID(p.IssuerVatID) == "" {
		return fmt.Errorf("verifactu: IssuerVatID es obligatorio para la huella")
	}
	if p.Number == "" {
		return fmt.Errorf("verifactu: Number es obligatorio")
	}
	if p.IssueDate == "" {
		return fmt.Errorf("verifactu: IssueDate es obligatoria (DD-MM-YYYY)")
	}
	if p.Generated == "" {
		return fmt.Errorf("verifactu: Generated es obligatorio")
	}
	return nil
}

// digest aplica SHA-256 sobre la cadena UTF-8 y la rinde en 64 hex mayúsculas.
func digest(s string) string {
	h := sha256.Sum256([]byte(s))
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

// formatAmount formatea montos para la cadena canónica: punto decimal, 2 decimales.
func formatAmount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// NormalizeVatID deja solo caracteres alfanuméricos y pasa a mayúsculas.
// Es la forma canónica del NIF tanto en la huella como en el XML.
func NormalizeVatID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}
