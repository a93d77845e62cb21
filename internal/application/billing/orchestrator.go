package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/verifactu-api/internal/domain"
	"github.com/jhoicas/verifactu-api/internal/domain/entity"
	"github.com/jhoicas/verifactu-api/internal/domain/repository"
	"github.com/jhoicas/verifactu-api/internal/domain/verifactu"
	"github.com/jhoicas/verifactu-api/internal/infrastructure/aeat"
	"github.com/jhoicas/verifactu-api/pkg/logger"
)

// batchLimit es el máximo de registros sin remitir que entran en un lote.
const batchLimit = 1000

// Orchestrator dirige el ciclo completo de remisión Veri*Factu:
//
//	selección de pendientes → encadenamiento → fragmentos XML → envelope SOAP
//	→ POST mutual-TLS → conciliación de resultados → escritura de estado
//
// El encadenamiento hace que el orden de envío sea semántico: todo lote de un
// mismo emisor se serializa con un mutex por emisor; emisores distintos
// envían en paralelo.
type Orchestrator struct {
	issuers    repository.IssuerRepository
	records    repository.RecordRepository
	builder    *aeat.RecordBuilder
	submitter  aeat.Submitter
	reconciler *Reconciler
	zone       string
	log        *logger.Logger
	now        func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewOrchestrator construye el orquestador con todas sus dependencias.
func NewOrchestrator(
	issuers repository.IssuerRepository,
	records repository.RecordRepository,
	builder *aeat.RecordBuilder,
	submitter aeat.Submitter,
	zone string,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		issuers:    issuers,
		records:    records,
		builder:    builder,
		submitter:  submitter,
		reconciler: NewReconciler(issuers, records, log),
		zone:       zone,
		log:        log,
		now:        time.Now,
		locks:      make(map[int64]*sync.Mutex),
	}
}

// issuerLock devuelve el mutex del emisor, creándolo si no existe.
func (o *Orchestrator) issuerLock(id int64) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[id]
	if !ok {
		l = &sync.Mutex{}
		o.locks[id] = l
	}
	return l
}

// SubmitPending es el barrido periódico: para cada emisor cuya ventana de
// espera venció (o nunca se fijó) remite hasta 1000 registros pendientes en
// un solo lote. Los emisores dentro de su ventana se saltan sin error. Lo
// dispara un planificador externo con la cadencia que quiera.
func (o *Orchestrator) SubmitPending(ctx context.Context) (map[int64]*BatchResult, error) {
	issuers, err := o.issuers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar emisores: %w", err)
	}

	results := make(map[int64]*BatchResult, len(issuers))
	var rmu sync.Mutex
	var wg sync.WaitGroup

	for _, issuer := range issuers {
		wg.Add(1)
		go func(issuer *entity.Issuer) {
			defer wg.Done()
			res := o.submitIssuerPending(ctx, issuer)
			rmu.Lock()
			results[issuer.ID] = res
			rmu.Unlock()
		}(issuer)
	}
	wg.Wait()

	return results, nil
}

func (o *Orchestrator) submitIssuerPending(ctx context.Context, issuer *entity.Issuer) *BatchResult {
	lock := o.issuerLock(issuer.ID)
	lock.Lock()
	defer lock.Unlock()

	now := o.now()
	if !issuer.CanSend(now) {
		wait := int(issuer.NextSend.Sub(now).Seconds())
		return &BatchResult{Message: fmt.Sprintf("Next send in %d seconds", wait)}
	}

	records, err := o.records.ListUnsent(ctx, issuer.ID, batchLimit)
	if err != nil {
		return &BatchResult{Error: fmt.Sprintf("listar pendientes: %v", err)}
	}
	if len(records) == 0 {
		return &BatchResult{Message: "No invoices to send"}
	}

	res, err := o.sendBatch(ctx, issuer, records, false)
	if err != nil {
		return &BatchResult{Error: err.Error()}
	}
	return res
}

// SubmitVoidance remite un lote de anulación para un conjunto de registros
// del emisor. Solo son anulables los registros aceptados (con huella), no
// anulados y no referenciados por otro registro.
func (o *Orchestrator) SubmitVoidance(ctx context.Context, issuerID int64, recordIDs []int64) (*BatchResult, error) {
	issuer, err := o.issuers.GetByID(ctx, issuerID)
	if err != nil {
		return nil, err
	}

	records := make([]*entity.FiscalRecord, 0, len(recordIDs))
	for _, id := range recordIDs {
		rec, err := o.records.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec.IssuerID != issuer.ID {
			return nil, fmt.Errorf("%w: el registro %d no es del emisor %d", domain.ErrInvalidInput, id, issuerID)
		}
		if rec.Fingerprint == nil || rec.Voided {
			return nil, fmt.Errorf("%w: registro %d", domain.ErrNotVoidable, id)
		}
		refs, err := o.records.ListReferencing(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(refs) > 0 {
			return nil, fmt.Errorf("%w: el registro %d está referenciado", domain.ErrNotVoidable, id)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return &BatchResult{Message: "No invoices to send"}, nil
	}

	lock := o.issuerLock(issuer.ID)
	lock.Lock()
	defer lock.Unlock()

	// La ventana de espera aplica a cualquier lote del emisor, también a las
	// anulaciones.
	if now := o.now(); !issuer.CanSend(now) {
		return nil, fmt.Errorf("%w: hasta %s", domain.ErrThrottled, issuer.NextSend.Format(time.RFC3339))
	}

	return o.sendBatch(ctx, issuer, records, true)
}

// sendBatch construye, envía y concilia un lote. Cualquier fallo de
// transporte o de protocolo aborta el lote completo sin tocar persistencia.
func (o *Orchestrator) sendBatch(ctx context.Context, issuer *entity.Issuer, records []*entity.FiscalRecord, voiding bool) (*BatchResult, error) {
	batchID := uuid.NewString()
	dt := verifactu.Timestamp(o.zone, o.now())

	blog := o.log.Batch(batchID, issuer.ID, len(records), voiding)

	// Predecesor de cadena: se resuelve una sola vez desde estado persistido;
	// dentro del lote la cadena avanza registro a registro.
	last, err := o.records.GetLastChained(ctx, issuer.ID)
	if err != nil {
		return nil, fmt.Errorf("resolver predecesor de cadena: %w", err)
	}
	prev := chainLinkOf(issuer, last)
	initialPrev := prevFingerprint(prev)

	entries := make([]batchEntry, 0, len(records))
	fragments := make([]string, 0, len(records))

	for _, rec := range records {
		bctx, err := o.buildContext(ctx, issuer, rec, prev, dt)
		if err != nil {
			return nil, err
		}

		var fragment, fp string
		if voiding {
			fragment, fp, err = o.builder.BuildVoiding(bctx)
		} else {
			fragment, fp, err = o.builder.BuildRegistration(bctx)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}

		number := rec.NumberFormat(issuer)
		entries = append(entries, batchEntry{record: rec, number: number})
		fragments = append(fragments, fragment)

		// Encadenamiento estricto intra-lote: el registro recién construido
		// es el predecesor del siguiente.
		prev = &aeat.ChainLink{
			Number:      number,
			IssueDate:   rec.Dt.Format("02-01-2006"),
			Fingerprint: fp,
		}
	}

	envelope := aeat.BuildEnvelope(issuer, fragments)

	raw, err := o.submitter.Submit(ctx, issuer, []byte(envelope))
	if err != nil {
		blog.Error().Err(err).Msg("lote abortado en transporte")
		return nil, err
	}

	res, err := o.reconciler.Apply(ctx, issuer, entries, initialPrev, raw, dt, o.now(), voiding)
	if err != nil {
		blog.Error().Err(err).Msg("lote abortado en conciliación")
		return nil, err
	}

	blog.Info().
		Int("ok", len(res.Accepted)).
		Int("ko", len(res.Rejected)).
		Int("unknown", len(res.Unknown)).
		Msg("lote conciliado")
	return res, nil
}

// buildContext carga líneas y registros rectificados del registro.
func (o *Orchestrator) buildContext(ctx context.Context, issuer *entity.Issuer, rec *entity.FiscalRecord, prev *aeat.ChainLink, dt string) (*aeat.BuildContext, error) {
	lines, err := o.records.GetLines(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("cargar líneas del registro %d: %w", rec.ID, err)
	}

	var rectified []aeat.RectifiedRecord
	if rec.Corrective() && rec.RefID != nil {
		ref, err := o.records.GetByID(ctx, *rec.RefID)
		if err != nil {
			return nil, fmt.Errorf("cargar rectificada del registro %d: %w", rec.ID, err)
		}
		refLines, err := o.records.GetLines(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		rectified = append(rectified, aeat.RectifiedRecord{Record: ref, Lines: refLines})
	}

	return &aeat.BuildContext{
		Issuer:    issuer,
		Record:    rec,
		Lines:     lines,
		Rectified: rectified,
		Prev:      prev,
		Generated: dt,
	}, nil
}

func chainLinkOf(issuer *entity.Issuer, last *entity.FiscalRecord) *aeat.ChainLink {
	if last == nil || last.Fingerprint == nil {
		return nil
	}
	return &aeat.ChainLink{
		Number:      last.NumberFormat(issuer),
		IssueDate:   last.Dt.Format("02-01-2006"),
		Fingerprint: *last.Fingerprint,
	}
}

func prevFingerprint(prev *aeat.ChainLink) string {
	if prev == nil {
		return ""
	}
	return prev.Fingerprint
}
