package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/vetlink/consultation-service/internal/api/dto"
	"github.com/vetlink/consultation-service/internal/auth"
	"github.com/vetlink/consultation-service/internal/service"
	apperrors "github.com/vetlink/consultation-service/pkg/util/errorutil"
)

// ConsultationsHandler manages consultation endpoints.
type ConsultationsHandler struct {
	consultations *service.ConsultationService
	completion    *service.CompletionService
}

// NewConsultationsHandler constructs handler.
func NewConsultationsHandler(consultations *service.ConsultationService, completion *service.CompletionService) *ConsultationsHandler {
	return &ConsultationsHandler{consultations: consultations, completion: completion}
}

// GetConsultation GET /consultations/:id.
func (h *ConsultationsHandler) GetConsultation(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	consultation, err := h.consultations.GetForSubject(c.Context(), principal.SubjectType, principal.SubjectID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewConsultationResponse(consultation)})
}

// History GET /consultations/:id/history. Audit trail, oldest first.
func (h *ConsultationsHandler) History(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	entries, err := h.consultations.History(c.Context(), principal.SubjectType, principal.SubjectID, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewHistoryEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Complete POST /consultations/:id/complete. Runs the documentation
// close-out; on success the caller navigates away from the editor.
func (h *ConsultationsHandler) Complete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	consultation, err := h.completion.Complete(c.Context(), principal.SubjectID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": dto.NewConsultationResponse(consultation)})
}
