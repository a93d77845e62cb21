package repository

import (
	"context"
	"time"

	"github.com/jhoicas/verifactu-api/internal/domain/entity"
)

// SubmissionUpdate agrupa los campos de estado de remisión que el conciliador
// escribe sobre un registro. Los punteros nil no se tocan; AppendCSV se
// concatena (separado por salto de línea) al CSV acumulado.
type SubmissionUpdate struct {
	VerifactuDt  *time.Time
	VerifactuErr *int
	Fingerprint  *string
	AppendCSV    string
	Voided       *bool
}

// RecordRepository define el puerto de persistencia para registros de
// facturación y sus líneas.
type RecordRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.FiscalRecord, error)
	// ListUnsent devuelve hasta limit registros sin remitir del emisor,
	// ordenados por fecha de expedición ascendente.
	ListUnsent(ctx context.Context, issuerID int64, limit int) ([]*entity.FiscalRecord, error)
	// ListReferencing devuelve los registros cuyo ref_id apunta a recordID,
	// ordenados por fecha de expedición. Un registro referenciado es inmutable:
	// no puede anularse.
	ListReferencing(ctx context.Context, recordID int64) ([]*entity.FiscalRecord, error)
	// GetLastChained devuelve el predecesor de cadena del emisor: el registro
	// con huella más recientemente presentado (verifactu_dt desc, id desc).
	// nil sin error si aún no existe ninguno.
	GetLastChained(ctx context.Context, issuerID int64) (*entity.FiscalRecord, error)
	GetLines(ctx context.Context, recordID int64) ([]*entity.RecordLine, error)
	UpdateSubmission(ctx context.Context, id int64, upd SubmissionUpdate) error
}
