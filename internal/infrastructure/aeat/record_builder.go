package aeat

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/verifactu-api/internal/domain/entity"
	"github.com/jhoicas/verifactu-api/internal/domain/verifactu"
	"github.com/jhoicas/verifactu-api/pkg/config"
)

// ChainLink identifica al predecesor de cadena en el bloque Encadenamiento.
type ChainLink struct {
	Number      string // NumSerieFactura del predecesor
	IssueDate   string // FechaExpedicionFactura DD-MM-YYYY
	Fingerprint string // huella del predecesor
}

// RectifiedRecord es un registro rectificado/sustituido con sus líneas
// (las líneas solo se usan para ImporteRectificacion en sustituciones).
type RectifiedRecord struct {
	Record *entity.FiscalRecord
	Lines  []*entity.RecordLine
}

// BuildContext reúne todo lo necesario para emitir el fragmento de un registro.
type BuildContext struct {
	Issuer    *entity.Issuer
	Record    *entity.FiscalRecord
	Lines     []*entity.RecordLine
	Rectified []RectifiedRecord // solo para tipos rectificativos/sustitutivos
	Prev      *ChainLink        // nil = primer registro de la cadena
	Generated string            // FechaHoraHusoGenRegistro del lote
}

// RecordBuilder emite los fragmentos sum:RegistroFactura (RegistroAlta y
// RegistroAnulacion) con el orden de elementos exacto del esquema AEAT: el
// orden es semántico para el validador remoto, no cosmético.
type RecordBuilder struct {
	software config.VerifactuConfig
	calc     *verifactu.Calculator
}

// NewRecordBuilder construye el servicio con la identidad de software fija.
func NewRecordBuilder(software config.VerifactuConfig) *RecordBuilder {
	return &RecordBuilder{software: software, calc: verifactu.NewCalculator()}
}

// BuildRegistration emite el RegistroAlta de un registro y devuelve el
// fragmento junto con la huella calculada (para encadenar el siguiente).
func (rb *RecordBuilder) BuildRegistration(ctx *BuildContext) (string, string, error) {
	if err := validateContext(ctx); err != nil {
		return "", "", err
	}
	if ctx.Record.Type == "" {
		return "", "", fmt.Errorf("registro %d sin TipoFactura", ctx.Record.ID)
	}

	rec := ctx.Record
	number := rec.NumberFormat(ctx.Issuer)
	fp, err := rb.calc.Registration(&verifactu.FingerprintParams{
		IssuerVatID: ctx.Issuer.VatID,
		Number:      number,
		IssueDate:   wireDate(rec),
		Type:        rec.Type,
		TVat:        rec.TVat,
		Total:       rec.Total,
		PrevHash:    prevHash(ctx.Prev),
		Generated:   ctx.Generated,
	})
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	b.WriteString("<sum:RegistroFactura><RegistroAlta><IDVersion>1.0</IDVersion>")
	b.WriteString("<IDFactura>")
	writeEl(&b, "IDEmisorFactura", verifactu.NormalizeVatID(ctx.Issuer.VatID))
	writeEl(&b, "NumSerieFactura", number)
	writeEl(&b, "FechaExpedicionFactura", wireDate(rec))
	b.WriteString("</IDFactura>")
	writeEl(&b, "NombreRazonEmisor", ctx.Issuer.Name)

	// Reenvío tras rechazo: marcador de subsanación. El código 0 es una
	// aceptación previa, no un rechazo.
	if rec.VerifactuErr != nil && *rec.VerifactuErr > 0 {
		b.WriteString("<Subsanacion>S</Subsanacion><RechazoPrevio>X</RechazoPrevio>")
	}

	writeEl(&b, "TipoFactura", rec.Type)
	rb.writeRectified(&b, ctx)
	writeEl(&b, "DescripcionOperacion", operationDescription(rec, ctx.Lines))
	if rec.Type == entity.TypeSimplified {
		b.WriteString("<FacturaSimplificadaArt7273>S</FacturaSimplificadaArt7273>")
	}

	// Destinatario identificado o marcador de factura sin identificación:
	// exactamente uno de los dos.
	if rec.VatID == "" {
		b.WriteString("<FacturaSinIdentifDestinatarioArt61d>S</FacturaSinIdentifDestinatarioArt61d>")
	} else {
		b.WriteString("<Destinatarios><IDDestinatario>")
		writeEl(&b, "NombreRazon", rec.Name)
		writeEl(&b, "NIF", rec.VatID)
		b.WriteString("</IDDestinatario></Destinatarios>")
	}

	rb.writeBreakdown(&b, ctx.Lines)
	writeEl(&b, "CuotaTotal", amount(rec.TVat))
	writeEl(&b, "ImporteTotal", amount(rec.Total))
	rb.writeChaining(&b, ctx)
	rb.writeSoftwareID(&b)
	writeEl(&b, "FechaHoraHusoGenRegistro", ctx.Generated)
	writeEl(&b, "TipoHuella", verifactu.HashType)
	writeEl(&b, "Huella", fp)
	b.WriteString("</RegistroAlta></sum:RegistroFactura>")

	return b.String(), fp, nil
}

// BuildVoiding emite el RegistroAnulacion: forma análoga pero reducida, con
// la variante de huella de anulación.
func (rb *RecordBuilder) BuildVoiding(ctx *BuildContext) (string, string, error) {
	if err := validateContext(ctx); err != nil {
		return "", "", err
	}

	rec := ctx.Record
	number := rec.NumberFormat(ctx.Issuer)
	fp, err := rb.calc.Voiding(&verifactu.FingerprintParams{
		IssuerVatID: ctx.Issuer.VatID,
		Number:      number,
		IssueDate:   wireDate(rec),
		PrevHash:    prevHash(ctx.Prev),
		Generated:   ctx.Generated,
	})
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	b.WriteString("<sum:RegistroFactura><RegistroAnulacion><IDVersion>1.0</IDVersion>")
	b.WriteString("<IDFactura>")
	writeEl(&b, "IDEmisorFacturaAnulada", verifactu.NormalizeVatID(ctx.Issuer.VatID))
	writeEl(&b, "NumSerieFacturaAnulada", number)
	writeEl(&b, "FechaExpedicionFacturaAnulada", wireDate(rec))
	b.WriteString("</IDFactura>")

	if rec.VerifactuErr != nil && *rec.VerifactuErr > 0 {
		b.WriteString("<RechazoPrevio>S</RechazoPrevio>")
	}

	rb.writeChaining(&b, ctx)
	rb.writeSoftwareID(&b)
	writeEl(&b, "FechaHoraHusoGenRegistro", ctx.Generated)
	writeEl(&b, "TipoHuella", verifactu.HashType)
	writeEl(&b, "Huella", fp)
	b.WriteString("</RegistroAnulacion></sum:RegistroFactura>")

	return b.String(), fp, nil
}

// writeRectified emite un bloque de referencia por cada registro rectificado
// o sustituido y, para sustituciones por importe total, el agregado
// ImporteRectificacion sumando base y cuota de las líneas agrupadas por tipo.
func (rb *RecordBuilder) writeRectified(b *strings.Builder, ctx *BuildContext) {
	rec := ctx.Record
	if !rec.Corrective() {
		return
	}
	if rec.SType != "" {
		mode := entity.RectifyByDifference
		if rec.SType == entity.RectifyBySubstitution {
			mode = entity.RectifyBySubstitution
		}
		writeEl(b, "TipoRectificativa", mode)
	}

	tag := "FacturasRectificadas"
	if rec.Type == entity.TypeSubstituteSimplified {
		tag = "FacturasSustituidas"
	}
	for _, ref := range ctx.Rectified {
		b.WriteString("<" + tag + ">")
		writeEl(b, "IDEmisorFactura", verifactu.NormalizeVatID(ctx.Issuer.VatID))
		writeEl(b, "NumSerieFactura", ref.Record.NumberFormat(ctx.Issuer))
		writeEl(b, "FechaExpedicionFactura", wireDate(ref.Record))
		b.WriteString("</" + tag + ">")
	}

	if rec.SType == entity.RectifyBySubstitution {
		base := decimal.Zero
		quota := decimal.Zero
		for _, ref := range ctx.Rectified {
			for _, g := range groupByRate(ref.Lines) {
				base = base.Add(g.bi)
				quota = quota.Add(g.tvat)
			}
		}
		b.WriteString("<ImporteRectificacion>")
		writeEl(b, "BaseRectificada", amount(base))
		writeEl(b, "CuotaRectificada", amount(quota))
		b.WriteString("</ImporteRectificacion>")
	}
}

// writeBreakdown emite el Desglose: un DetalleDesglose por tipo impositivo en
// orden de primera aparición entre las líneas; las líneas sin tipo van en un
// bloque de operación no sujeta (N1) solo con base.
func (rb *RecordBuilder) writeBreakdown(b *strings.Builder, lines []*entity.RecordLine) {
	b.WriteString("<Desglose>")
	for _, g := range groupByRate(lines) {
		b.WriteString("<DetalleDesglose><Impuesto>01</Impuesto>")
		if g.rate != nil {
			b.WriteString("<ClaveRegimen>01</ClaveRegimen><CalificacionOperacion>S1</CalificacionOperacion>")
			writeEl(b, "TipoImpositivo", g.rate.String())
			writeEl(b, "BaseImponibleOimporteNoSujeto", amount(g.bi))
			writeEl(b, "CuotaRepercutida", amount(g.tvat))
		} else {
			b.WriteString("<CalificacionOperacion>N1</CalificacionOperacion>")
			writeEl(b, "BaseImponibleOimporteNoSujeto", amount(g.bi))
		}
		b.WriteString("</DetalleDesglose>")
	}
	b.WriteString("</Desglose>")
}

// writeChaining emite el Encadenamiento: RegistroAnterior con la identidad y
// huella exactas del predecesor, o PrimerRegistro. Nunca una forma parcial.
func (rb *RecordBuilder) writeChaining(b *strings.Builder, ctx *BuildContext) {
	b.WriteString("<Encadenamiento>")
	if ctx.Prev != nil {
		b.WriteString("<RegistroAnterior>")
		writeEl(b, "IDEmisorFactura", verifactu.NormalizeVatID(ctx.Issuer.VatID))
		writeEl(b, "NumSerieFactura", ctx.Prev.Number)
		writeEl(b, "FechaExpedicionFactura", ctx.Prev.IssueDate)
		writeEl(b, "Huella", ctx.Prev.Fingerprint)
		b.WriteString("</RegistroAnterior>")
	} else {
		b.WriteString("<PrimerRegistro>S</PrimerRegistro>")
	}
	b.WriteString("</Encadenamiento>")
}

// writeSoftwareID emite el bloque SistemaInformatico, idéntico para todos los
// registros del despliegue.
func (rb *RecordBuilder) writeSoftwareID(b *strings.Builder) {
	b.WriteString("<SistemaInformatico>")
	writeEl(b, "NombreRazon", rb.software.SoftwareCompanyName)
	writeEl(b, "NIF", rb.software.SoftwareCompanyNIF)
	writeEl(b, "NombreSistemaInformatico", rb.software.SoftwareName)
	writeEl(b, "IdSistemaInformatico", rb.software.SoftwareID)
	writeEl(b, "Version", rb.software.SoftwareVersion)
	writeEl(b, "NumeroInstalacion", rb.software.SoftwareInstallNumber)
	b.WriteString("<TipoUsoPosibleSoloVerifactu>N</TipoUsoPosibleSoloVerifactu>")
	b.WriteString("<TipoUsoPosibleMultiOT>S</TipoUsoPosibleMultiOT>")
	b.WriteString("<IndicadorMultiplesOT>S</IndicadorMultiplesOT>")
	b.WriteString("</SistemaInformatico>")
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rateGroup struct {
	rate *decimal.Decimal // nil = no sujeta
	bi   decimal.Decimal
	tvat decimal.Decimal
}

// groupByRate agrupa líneas por tipo impositivo preservando el orden de
// primera aparición. La clave de grupo es la representación del tipo.
func groupByRate(lines []*entity.RecordLine) []*rateGroup {
	var order []*rateGroup
	index := make(map[string]*rateGroup)
	for _, line := range lines {
		key := ""
		if line.Vat != nil {
			key = line.Vat.String()
		}
		g, ok := index[key]
		if !ok {
			g = &rateGroup{rate: line.Vat}
			index[key] = g
			order = append(order, g)
		}
		g.bi = g.bi.Add(line.Bi)
		g.tvat = g.tvat.Add(line.TVat)
	}
	return order
}

func validateContext(ctx *BuildContext) error {
	if ctx == nil || ctx.Issuer == nil || ctx.Record == nil {
		return fmt.Errorf("aeat: faltan issuer o record en el contexto")
	}
	if ctx.Generated == "" {
		return fmt.Errorf("aeat: falta FechaHoraHusoGenRegistro")
	}
	return nil
}

// operationDescription: los comentarios del registro, en su defecto la
// descripción de la primera línea, en su defecto el literal "Factura".
func operationDescription(rec *entity.FiscalRecord, lines []*entity.RecordLine) string {
	if rec.Comments != "" {
		return rec.Comments
	}
	if len(lines) > 0 && lines[0].Descr != "" {
		return lines[0].Descr
	}
	return "Factura"
}

func prevHash(prev *ChainLink) string {
	if prev == nil {
		return ""
	}
	return prev.Fingerprint
}

// wireDate formatea la fecha de expedición como la exige el esquema: DD-MM-YYYY.
func wireDate(rec *entity.FiscalRecord) string {
	return rec.Dt.Format("02-01-2006")
}

func amount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// writeEl escribe <tag>valor</tag> con el texto escapado.
func writeEl(b *strings.Builder, tag, value string) {
	b.WriteString("<" + tag + ">")
	_ = writeEscaped(b, value)
	b.WriteString("</" + tag + ">")
}

func writeEscaped(b *strings.Builder, value string) error {
	return xml.EscapeText(b, []byte(value))
}
