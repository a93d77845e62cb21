package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/verifactu-api/internal/application/billing"
	"github.com/jhoicas/verifactu-api/internal/domain/repository"
	"github.com/jhoicas/verifactu-api/internal/infrastructure/aeat"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Orchestrator *billing.Orchestrator
	QueryClient  *aeat.QueryClient
	IssuerRepo   repository.IssuerRepository
}

// Router registra las rutas de la API. La gestión CRUD de emisores y facturas
// vive en el CRM; aquí solo se expone el ciclo Veri*Factu.
func Router(app *fiber.App, deps RouterDeps) {
	handler := NewVerifactuHandler(deps.Orchestrator, deps.QueryClient, deps.IssuerRepo)

	app.Post("/verifactu/send", handler.SubmitPending)

	issuers := app.Group("/issuers")
	issuers.Post("/:id/voided", handler.SubmitVoidance)
	issuers.Get("/:id/verifactu", handler.QueryStatus)
}
