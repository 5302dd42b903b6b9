package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vetlink/consultation-service/internal/api/http/handlers"
	"github.com/vetlink/consultation-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Consultations  *handlers.ConsultationsHandler
	SoapNotes      *handlers.SoapNotesHandler
	FollowUp       *handlers.FollowUpHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	consultations := app.Group("/consultations", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	consultations.Get("/:id", cfg.Consultations.GetConsultation)
	consultations.Get("/:id/history", cfg.Consultations.History)
	consultations.Get("/:id/follow-up", cfg.FollowUp.GetThreadStatus)

	// documentation editor, vet only
	editor := consultations.Group("", auth.RequireVet())
	editor.Post("/:id/complete", cfg.Consultations.Complete)
	editor.Get("/:id/soap-note", cfg.SoapNotes.GetEditorState)
	editor.Patch("/:id/soap-note", cfg.SoapNotes.PatchDraft)
	editor.Post("/:id/soap-note/save", cfg.SoapNotes.SaveDraft)
	editor.Delete("/:id/soap-note/session", cfg.SoapNotes.CloseEditor)

	threads := app.Group("/follow-up/threads", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	threads.Get("/:id/messages", cfg.FollowUp.ListMessages)
	threads.Post("/:id/messages", cfg.FollowUp.SendMessage)
	threads.Post("/:id/read", cfg.FollowUp.MarkRead)
	threads.Get("/:id/stream", cfg.FollowUp.StreamMessages)

	internal := app.Group("/internal", cfg.AuthMiddleware.Handle, auth.RequireVet())
	internal.Post("/consultations/:id/follow-up-thread", cfg.FollowUp.ProvisionThread)
}
