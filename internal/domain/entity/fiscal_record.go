package entity

import (
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/verifactu-api/pkg/verifactu"
)

// Tipos de factura Veri*Factu (TipoFactura del registro de alta).
const (
	TypeOrdinary             = "F1" // Factura completa
	TypeSimplified           = "F2" // Factura simplificada (art. 7.2 y 7.3)
	TypeSubstituteSimplified = "F3" // Factura en sustitución de simplificadas
	TypeCorrectiveArt80_1    = "R1" // Rectificativa art. 80.1, 80.2 y error fundado
	TypeCorrectiveArt80_3    = "R2" // Rectificativa art. 80.3
	TypeCorrectiveArt80_4    = "R3" // Rectificativa art. 80.4
	TypeCorrectiveOther      = "R4" // Rectificativa resto
	TypeCorrectiveSimplified = "R5" // Rectificativa de facturas simplificadas
)

// Modalidad de rectificación (TipoRectificativa).
const (
	RectifyBySubstitution = "S" // por sustitución (lleva ImporteRectificacion)
	RectifyByDifference   = "I" // por diferencias
)

// FiscalRecord es el registro de facturación local: la factura más su estado
// de remisión Veri*Factu. Invariante: Fingerprint y VerifactuDt se fijan
// juntos, y solo al conciliar una aceptación (o confirmación de anulación)
// de la AEAT.
type FiscalRecord struct {
	ID         int64
	IssuerID   int64
	Dt         time.Time // fecha/hora de expedición
	Num        uint      // número secuencial (la fórmula del emisor lo formatea)
	Name       string    // destinatario
	VatID      string    // NIF del destinatario; vacío = factura sin identificación
	Address    string
	PostalCode string
	City       string
	State      string
	Country    string
	TVat       decimal.Decimal // CuotaTotal (suma de cuotas repercutidas)
	Bi         decimal.Decimal // base imponible total
	Total      decimal.Decimal // ImporteTotal
	Email      string
	Ref        string
	Comments   string
	Type       string // F1, F2, F3, R1..R5
	SType      string // "S" o "I" para rectificativas; vacío en el resto

	// Estado de remisión (solo lo escribe el conciliador).
	Fingerprint  *string    // huella SHA-256 en 64 hex mayúsculas; nil = no aceptado
	VerifactuDt  *time.Time // timestamp de presentación aceptada; nil = pendiente
	VerifactuCSV string     // códigos seguros de verificación acumulados (uno por línea)
	VerifactuErr *int       // último código de error devuelto por la AEAT; nil = nunca rechazado
	RefID        *int64     // registro previo al que esta rectifica o sustituye
	Voided       bool
}

// Corrective indica si el registro es rectificativo o sustitutivo: emite
// bloques FacturasRectificadas/FacturasSustituidas en el alta.
func (r *FiscalRecord) Corrective() bool {
	return len(r.Type) > 0 && (r.Type[0] == 'R' || r.Type == TypeSubstituteSimplified)
}

// NumberFormat devuelve el NumSerieFactura aplicando la fórmula del emisor:
// la de rectificativas para tipos R, la general para el resto.
func (r *FiscalRecord) NumberFormat(issuer *Issuer) string {
	formula := issuer.Formula
	if formula == "" {
		formula = "%n%"
	}
	if len(r.Type) > 0 && r.Type[0] == 'R' {
		formula = issuer.FormulaR
		if formula == "" {
			formula = "R-%n%"
		}
	}
	return verifactu.FormatNumber(formula, r.Dt, r.Num)
}

// QRValidationURL construye la URL del servicio de cotejo QR de la AEAT para
// este registro. Solo el string: el renderizado de la imagen queda fuera.
func (r *FiscalRecord) QRValidationURL(issuer *Issuer) string {
	return issuer.URLAeat() + "wlpl/TIKE-CONT/ValidarQR?nif=" + url.QueryEscape(issuer.VatID) +
		"&numserie=" + url.QueryEscape(r.NumberFormat(issuer)) +
		"&fecha=" + url.QueryEscape(r.Dt.Format("02-01-2006")) +
		"&importe=" + url.QueryEscape(r.Total.Round(2).StringFixed(2))
}

// RecordLine es una línea de factura. Bi, TVat y Total se redondean a 2
// decimales a nivel de línea antes de agregarse al registro.
type RecordLine struct {
	RecordID int64
	Num      uint
	Descr    string
	Units    decimal.Decimal
	Price    decimal.Decimal
	Vat      *decimal.Decimal // nil = operación no sujeta (bloque N1 en el desglose)
	Bi       decimal.Decimal
	TVat     decimal.Decimal
	Total    decimal.Decimal
}
