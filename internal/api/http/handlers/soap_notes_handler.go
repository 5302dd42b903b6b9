package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vetlink/consultation-service/internal/api/dto"
	"github.com/vetlink/consultation-service/internal/auth"
	"github.com/vetlink/consultation-service/internal/service"
	apperrors "github.com/vetlink/consultation-service/pkg/util/errorutil"
)

// SoapNotesHandler manages the vet-facing documentation editor endpoints.
type SoapNotesHandler struct {
	editor *service.SoapEditorService
}

// NewSoapNotesHandler constructs handler.
func NewSoapNotesHandler(editor *service.SoapEditorService) *SoapNotesHandler {
	return &SoapNotesHandler{editor: editor}
}

// GetEditorState GET /consultations/:id/soap-note.
func (h *SoapNotesHandler) GetEditorState(c *fiber.Ctx) error {
	principal, err := vetPrincipal(c)
	if err != nil {
		return err
	}
	session, err := h.editor.Session(c.Context(), c.Params("id"), principal.SubjectID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": editorState(session)})
}

// PatchDraft PATCH /consultations/:id/soap-note. Merges a partial update
// into the draft; persistence happens on the autosave tick or manual save.
func (h *SoapNotesHandler) PatchDraft(c *fiber.Ctx) error {
	principal, err := vetPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.SoapNotePatchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.editor.Session(c.Context(), c.Params("id"), principal.SubjectID)
	if err != nil {
		return err
	}
	session.ApplyPatch(req.ToServicePatch())
	return c.JSON(fiber.Map{"data": editorState(session)})
}

// SaveDraft POST /consultations/:id/soap-note/save. Explicit manual save;
// failures surface to the caller, unlike autosave.
func (h *SoapNotesHandler) SaveDraft(c *fiber.Ctx) error {
	principal, err := vetPrincipal(c)
	if err != nil {
		return err
	}
	session, err := h.editor.Session(c.Context(), c.Params("id"), principal.SubjectID)
	if err != nil {
		return err
	}
	if err := session.Save(c.Context(), service.TriggerManual); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": editorState(session)})
}

// CloseEditor DELETE /consultations/:id/soap-note/session. Editing session
// teardown: cancels the autosave timer.
func (h *SoapNotesHandler) CloseEditor(c *fiber.Ctx) error {
	if _, err := vetPrincipal(c); err != nil {
		return err
	}
	h.editor.CloseSession(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

func editorState(session *service.EditorSession) dto.EditorStateResponse {
	return dto.EditorStateResponse{
		Draft:       dto.NewSoapNoteResponse(session.Snapshot()),
		Dirty:       session.Dirty(),
		LastSavedAt: session.LastSavedAt(),
	}
}

func vetPrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}
