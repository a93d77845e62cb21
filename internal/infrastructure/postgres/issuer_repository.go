package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/verifactu-api/internal/domain"
	"github.com/jhoicas/verifactu-api/internal/domain/entity"
	"github.com/jhoicas/verifactu-api/internal/domain/repository"
)

var _ repository.IssuerRepository = (*IssuerRepo)(nil)

const issuerColumns = `id, name, vat_id, address, postal_code, city, state, country,
	email, phone, contact, formula, formula_r, first_num, cert_file, key_file,
	next_send, test, created_at`

// IssuerRepo implementación del puerto IssuerRepository sobre PostgreSQL (usable con pool o tx).
type IssuerRepo struct {
	q Querier
}

// NewIssuerRepository construye el adaptador de persistencia para emisores. Pasar pool o tx (Querier).
func NewIssuerRepository(q Querier) *IssuerRepo {
	return &IssuerRepo{q: q}
}

// GetByID obtiene un emisor por ID.
func (r *IssuerRepo) GetByID(ctx context.Context, id int64) (*entity.Issuer, error) {
	query := `SELECT ` + issuerColumns + ` FROM issuers WHERE id = $1`
	iss, err := scanIssuer(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: emisor %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get issuer: %w", err)
	}
	return iss, nil
}

// List devuelve todos los emisores registrados.
func (r *IssuerRepo) List(ctx context.Context) ([]*entity.Issuer, error) {
	query := `SELECT ` + issuerColumns + ` FROM issuers ORDER BY id`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()

	var out []*entity.Issuer
	for rows.Next() {
		iss, err := scanIssuer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issuer: %w", err)
		}
		out = append(out, iss)
	}
	return out, rows.Err()
}

// UpdateNextSend persiste la ventana de espera impuesta por la AEAT.
func (r *IssuerRepo) UpdateNextSend(ctx context.Context, id int64, nextSend time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE issuers SET next_send = $2 WHERE id = $1`, id, nextSend)
	if err != nil {
		return fmt.Errorf("update next_send: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: emisor %d", domain.ErrNotFound, id)
	}
	return nil
}

func scanIssuer(row pgx.Row) (*entity.Issuer, error) {
	var iss entity.Issuer
	err := row.Scan(
		&iss.ID, &iss.Name, &iss.VatID, &iss.Address, &iss.PostalCode, &iss.City,
		&iss.State, &iss.Country, &iss.Email, &iss.Phone, &iss.Contact,
		&iss.Formula, &iss.FormulaR, &iss.FirstNum, &iss.CertFile, &iss.KeyFile,
		&iss.NextSend, &iss.Test, &iss.Created,
	)
	if err != nil {
		return nil, err
	}
	return &iss, nil
}
