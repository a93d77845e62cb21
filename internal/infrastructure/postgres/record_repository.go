package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/verifactu-api/internal/domain"
	"github.com/jhoicas/verifactu-api/internal/domain/entity"
	"github.com/jhoicas/verifactu-api/internal/domain/repository"
)

var _ repository.RecordRepository = (*RecordRepo)(nil)

const recordColumns = `id, issuer_id, dt, num, name, vat_id, address, postal_code,
	city, state, country, tvat, bi, total, email, ref, comments, type, stype,
	fingerprint, verifactu_dt, verifactu_csv, verifactu_err, ref_id, voided`

// RecordRepo implementación de RecordRepository sobre PostgreSQL (usable con pool o tx).
type RecordRepo struct {
	q Querier
}

// NewRecordRepository construye el adaptador de persistencia para registros. Pasar pool o tx (Querier).
func NewRecordRepository(q Querier) *RecordRepo {
	return &RecordRepo{q: q}
}

// GetByID obtiene un registro por ID.
func (r *RecordRepo) GetByID(ctx context.Context, id int64) (*entity.FiscalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM fiscal_records WHERE id = $1`
	rec, err := scanRecord(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: registro %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// ListUnsent devuelve hasta limit registros sin remitir del emisor. Un registro
// rechazado (verifactu_err > 0, sin huella) sigue siendo elegible: el reenvío
// sale marcado como subsanación.
func (r *RecordRepo) ListUnsent(ctx context.Context, issuerID int64, limit int) ([]*entity.FiscalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM fiscal_records
		WHERE issuer_id = $1 AND fingerprint IS NULL AND voided = false
		ORDER BY dt ASC, id ASC
		LIMIT $2`
	return r.list(ctx, query, issuerID, limit)
}

// ListReferencing devuelve los registros cuyo ref_id apunta a recordID.
func (r *RecordRepo) ListReferencing(ctx context.Context, recordID int64) ([]*entity.FiscalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM fiscal_records
		WHERE ref_id = $1 ORDER BY dt ASC, id ASC`
	return r.list(ctx, query, recordID)
}

// GetLastChained devuelve el predecesor de cadena del emisor; nil sin error si
// aún no hay ningún registro con huella.
func (r *RecordRepo) GetLastChained(ctx context.Context, issuerID int64) (*entity.FiscalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM fiscal_records
		WHERE issuer_id = $1 AND fingerprint IS NOT NULL
		ORDER BY verifactu_dt DESC, id DESC
		LIMIT 1`
	rec, err := scanRecord(r.q.QueryRow(ctx, query, issuerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last chained: %w", err)
	}
	return rec, nil
}

// GetLines devuelve las líneas del registro ordenadas por número.
func (r *RecordRepo) GetLines(ctx context.Context, recordID int64) ([]*entity.RecordLine, error) {
	query := `SELECT num, descr, units, price, vat, bi, tvat, total
		FROM record_lines WHERE record_id = $1 ORDER BY num ASC`
	rows, err := r.q.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	defer rows.Close()

	var out []*entity.RecordLine
	for rows.Next() {
		var l entity.RecordLine
		if err := rows.Scan(&l.Num, &l.Descr, &l.Units, &l.Price, &l.Vat, &l.Bi, &l.TVat, &l.Total); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// UpdateSubmission escribe el estado de remisión conciliado. Solo toca los
// campos presentes en la actualización; el CSV se acumula línea a línea.
func (r *RecordRepo) UpdateSubmission(ctx context.Context, id int64, upd repository.SubmissionUpdate) error {
	set := make([]string, 0, 5)
	args := []any{id}

	add := func(expr string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf(expr, len(args)))
	}

	if upd.VerifactuDt != nil {
		add("verifactu_dt = $%d", *upd.VerifactuDt)
	}
	if upd.VerifactuErr != nil {
		add("verifactu_err = $%d", *upd.VerifactuErr)
	}
	if upd.Fingerprint != nil {
		add("fingerprint = $%d", *upd.Fingerprint)
	}
	if upd.AppendCSV != "" {
		add("verifactu_csv = trim(concat_ws(E'\\n', nullif(verifactu_csv, ''), $%d::text))", upd.AppendCSV)
	}
	if upd.Voided != nil {
		add("voided = $%d", *upd.Voided)
	}
	if len(set) == 0 {
		return nil
	}

	query := "UPDATE fiscal_records SET "
	for i, s := range set {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE id = $1"

	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: registro %d", domain.ErrNotFound, id)
	}
	return nil
}

func (r *RecordRepo) list(ctx context.Context, query string, args ...any) ([]*entity.FiscalRecord, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*entity.FiscalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*entity.FiscalRecord, error) {
	var rec entity.FiscalRecord
	err := row.Scan(
		&rec.ID, &rec.IssuerID, &rec.Dt, &rec.Num, &rec.Name, &rec.VatID,
		&rec.Address, &rec.PostalCode, &rec.City, &rec.State, &rec.Country,
		&rec.TVat, &rec.Bi, &rec.Total, &rec.Email, &rec.Ref, &rec.Comments,
		&rec.Type, &rec.SType, &rec.Fingerprint, &rec.VerifactuDt,
		&rec.VerifactuCSV, &rec.VerifactuErr, &rec.RefID, &rec.Voided,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
