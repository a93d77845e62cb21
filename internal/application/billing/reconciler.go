package billing

import (
	"context"
	"time"

	"github.com/jhoicas/verifactu-api/internal/domain/entity"
	"github.com/jhoicas/verifactu-api/internal/domain/repository"
	"github.com/jhoicas/verifactu-api/internal/domain/verifactu"
	"github.com/jhoicas/verifactu-api/internal/infrastructure/aeat"
	"github.com/jhoicas/verifactu-api/pkg/logger"
)

// batchEntry asocia un registro del lote con el número formateado con el que
// viajó en el XML. La conciliación casa las RespuestaLinea por ese número.
type batchEntry struct {
	record *entity.FiscalRecord
	number string
}

// OutcomeItem es el desenlace de un registro del lote.
type OutcomeItem struct {
	ID         int64  `json:"id,omitempty"`
	Number     string `json:"num"`
	ErrorCode  int    `json:"codError,omitempty"`
	ErrorDescr string `json:"descrError,omitempty"`
}

// BatchResult resume la conciliación de un lote, o un motivo de no envío.
type BatchResult struct {
	Accepted []OutcomeItem `json:"ok,omitempty"`
	Rejected []OutcomeItem `json:"ko,omitempty"`
	Unknown  []OutcomeItem `json:"unknown,omitempty"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Reconciler aplica la respuesta de la AEAT al estado persistido: fija la
// ventana de espera del emisor una única vez por lote y escribe el desenlace
// de cada registro.
type Reconciler struct {
	issuers repository.IssuerRepository
	records repository.RecordRepository
	calc    *verifactu.Calculator
	log     *logger.Logger
}

// NewReconciler construye el conciliador.
func NewReconciler(issuers repository.IssuerRepository, records repository.RecordRepository, log *logger.Logger) *Reconciler {
	return &Reconciler{
		issuers: issuers,
		records: records,
		calc:    verifactu.NewCalculator(),
		log:     log,
	}
}

// Apply interpreta la respuesta cruda y persiste el resultado.
//
// Reglas:
//   - TiempoEsperaEnvio se persiste como next_send del emisor antes de tocar
//     registro alguno, una sola vez por lote.
//   - Cada registro con RespuestaLinea recibe verifactu_dt, verifactu_err y
//     el CSV del lote, acepte o rechace la AEAT. Sin TimestampPresentacion,
//     verifactu_dt es la FechaHoraHusoGenRegistro con la que viajó el lote.
//   - La huella solo se persiste en registros aceptados con
//     TimestampPresentacion confirmado; se recalcula con ese timestamp y la
//     cadena avanza en el orden de construcción del lote.
//   - Números devueltos que no casan con el lote se reportan sin persistir.
func (r *Reconciler) Apply(
	ctx context.Context,
	issuer *entity.Issuer,
	entries []batchEntry,
	initialPrev string,
	raw []byte,
	generated string,
	sent time.Time,
	voiding bool,
) (*BatchResult, error) {
	resp, err := aeat.ParseSubmissionResponse(raw)
	if err != nil {
		return nil, err
	}

	nextSend := sent.Add(time.Duration(resp.WaitSeconds) * time.Second)
	if err := r.issuers.UpdateNextSend(ctx, issuer.ID, nextSend); err != nil {
		return nil, err
	}

	byNumber := make(map[string]*aeat.SubmissionLine, len(resp.Lines))
	matched := make(map[string]bool, len(resp.Lines))
	for i := range resp.Lines {
		byNumber[resp.Lines[i].Number] = &resp.Lines[i]
	}

	wireDt := parseWireTimestamp(resp.Timestamp, parseWireTimestamp(generated, sent))

	res := &BatchResult{}
	prev := initialPrev

	for _, entry := range entries {
		line, ok := byNumber[entry.number]
		if !ok {
			continue
		}
		matched[entry.number] = true

		code := line.ErrorCode
		upd := repository.SubmissionUpdate{
			VerifactuDt:  &wireDt,
			VerifactuErr: &code,
			AppendCSV:    resp.CSV,
		}

		if code == 0 && resp.Timestamp != "" {
			fp, err := r.fingerprint(issuer, entry, prev, resp.Timestamp, voiding)
			if err != nil {
				return nil, err
			}
			upd.Fingerprint = &fp
			prev = fp
		}
		if code == 0 && voiding {
			voided := true
			upd.Voided = &voided
		}

		if err := r.records.UpdateSubmission(ctx, entry.record.ID, upd); err != nil {
			return nil, err
		}

		r.log.Info().
			Int64("record", entry.record.ID).
			Str("num", entry.number).
			Int("codError", code).
			Str("descrError", line.ErrorDescr).
			Msg("registro conciliado")

		item := OutcomeItem{ID: entry.record.ID, Number: entry.number, ErrorCode: code, ErrorDescr: line.ErrorDescr}
		if code == 0 {
			res.Accepted = append(res.Accepted, item)
		} else {
			res.Rejected = append(res.Rejected, item)
		}
	}

	for _, line := range resp.Lines {
		if matched[line.Number] {
			continue
		}
		r.log.Warn().Str("num", line.Number).Msg("la AEAT devolvió un número ajeno al lote")
		res.Unknown = append(res.Unknown, OutcomeItem{
			Number:     line.Number,
			ErrorCode:  line.ErrorCode,
			ErrorDescr: line.ErrorDescr,
		})
	}

	return res, nil
}

// fingerprint recalcula la huella persistible con el timestamp de
// presentación confirmado por la AEAT.
func (r *Reconciler) fingerprint(issuer *entity.Issuer, entry batchEntry, prev, timestamp string, voiding bool) (string, error) {
	p := &verifactu.FingerprintParams{
		IssuerVatID: issuer.VatID,
		Number:      entry.number,
		IssueDate:   entry.record.Dt.Format("02-01-2006"),
		Type:        entry.record.Type,
		TVat:        entry.record.TVat,
		Total:       entry.record.Total,
		PrevHash:    prev,
		Generated:   timestamp,
	}
	if voiding {
		return r.calc.Voiding(p)
	}
	return r.calc.Registration(p)
}

// wireTimestampLayouts son los formatos con los que la AEAT fecha la
// presentación.
var wireTimestampLayouts = []string{
	time.RFC3339,
	"02-01-2006 15:04:05",
	"2006-01-02T15:04:05",
}

func parseWireTimestamp(s string, fallback time.Time) time.Time {
	for _, layout := range wireTimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}
