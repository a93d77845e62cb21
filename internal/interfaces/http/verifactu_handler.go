package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/verifactu-api/internal/application/billing"
	"github.com/jhoicas/verifactu-api/internal/domain"
	"github.com/jhoicas/verifactu-api/internal/domain/repository"
	"github.com/jhoicas/verifactu-api/internal/infrastructure/aeat"
)

// ErrorResponse cuerpo de error uniforme de la API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// VoidanceRequest cuerpo de la petición de anulación.
type VoidanceRequest struct {
	IDs []int64 `json:"ids"`
}

// VerifactuHandler maneja las peticiones HTTP del ciclo Veri*Factu.
type VerifactuHandler struct {
	orch    *billing.Orchestrator
	query   *aeat.QueryClient
	issuers repository.IssuerRepository
}

// NewVerifactuHandler construye el handler.
func NewVerifactuHandler(orch *billing.Orchestrator, query *aeat.QueryClient, issuers repository.IssuerRepository) *VerifactuHandler {
	return &VerifactuHandler{orch: orch, query: query, issuers: issuers}
}

// SubmitPending recorre todos los emisores y remite sus registros pendientes.
// Lo invoca el planificador del CRM, no un usuario final.
// POST /verifactu/send
func (h *VerifactuHandler) SubmitPending(c *fiber.Ctx) error {
	results, err := h.orch.SubmitPending(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(results)
}

// SubmitVoidance remite un lote de anulación para los registros indicados.
// POST /issuers/:id/voided
func (h *VerifactuHandler) SubmitVoidance(c *fiber.Ctx) error {
	issuerID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "VALIDATION", Message: "id de emisor inválido"})
	}

	var in VoidanceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if len(in.IDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "VALIDATION", Message: "ids requeridos"})
	}

	res, err := h.orch.SubmitVoidance(c.Context(), issuerID, in.IDs)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
		case errors.Is(err, domain.ErrNotVoidable), errors.Is(err, domain.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		case errors.Is(err, domain.ErrThrottled):
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Code: "THROTTLED", Message: err.Error()})
		default:
			return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Code: "AEAT", Message: err.Error()})
		}
	}
	return c.JSON(res)
}

// QueryStatus consulta en la AEAT los registros presentados del emisor en un
// periodo (año/mes; 0 = actual).
// GET /issuers/:id/verifactu?year=&month=
func (h *VerifactuHandler) QueryStatus(c *fiber.Ctx) error {
	issuerID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "VALIDATION", Message: "id de emisor inválido"})
	}

	issuer, err := h.issuers.GetByID(c.Context(), issuerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Code: "NOT_FOUND", Message: "emisor no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}

	year := c.QueryInt("year", 0)
	month := c.QueryInt("month", 0)

	records, err := h.query.Query(c.Context(), issuer, year, month)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Code: "AEAT", Message: err.Error()})
	}
	return c.JSON(records)
}
