package repository

import (
	"context"
	"time"

	"github.com/jhoicas/verifactu-api/internal/domain/entity"
)

// IssuerRepository define el puerto de persistencia para emisores.
type IssuerRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Issuer, error)
	List(ctx context.Context) ([]*entity.Issuer, error)
	// UpdateNextSend persiste la ventana de espera impuesta por la AEAT.
	// Se llama exactamente una vez por lote parseado con éxito.
	UpdateNextSend(ctx context.Context, id int64, nextSend time.Time) error
}
