package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/vetlink/consultation-service/internal/api/dto"
	"github.com/vetlink/consultation-service/internal/auth"
	"github.com/vetlink/consultation-service/internal/domain"
	"github.com/vetlink/consultation-service/internal/service"
	apperrors "github.com/vetlink/consultation-service/pkg/util/errorutil"
)

// FollowUpHandler manages the post-consultation messaging endpoints.
type FollowUpHandler struct {
	followups     *service.FollowUpService
	consultations *service.ConsultationService
}

// NewFollowUpHandler constructs handler.
func NewFollowUpHandler(followups *service.FollowUpService, consultations *service.ConsultationService) *FollowUpHandler {
	return &FollowUpHandler{followups: followups, consultations: consultations}
}

// GetThreadStatus GET /consultations/:id/follow-up. Resolves the thread
// state at read time and derives the chat-header label.
func (h *FollowUpHandler) GetThreadStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	consultationID := c.Params("id")
	if _, err := h.consultations.GetForSubject(c.Context(), principal.SubjectType, principal.SubjectID, consultationID); err != nil {
		return err
	}
	resolution, err := h.followups.Resolve(c.Context(), consultationID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewThreadStatusResponse(consultationID, resolution, time.Now())})
}

// ListMessages GET /follow-up/threads/:id/messages.
func (h *FollowUpHandler) ListMessages(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	msgs, err := h.followups.ListMessages(c.Context(), principal.SubjectType, principal.SubjectID, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, dto.NewMessageResponse(&msgs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// SendMessage POST /follow-up/threads/:id/messages. Returns the created
// row so the caller can render it without a follow-up fetch.
func (h *FollowUpHandler) SendMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.followups.SendMessage(c.Context(), service.SendMessageInput{
		ThreadID:      c.Params("id"),
		SenderID:      principal.SubjectID,
		SenderRole:    domain.SenderRoleFor(principal.SubjectType),
		Content:       req.Content,
		MessageType:   req.MessageType,
		AttachmentURL: req.AttachmentURL,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}

// MarkRead POST /follow-up/threads/:id/read.
func (h *FollowUpHandler) MarkRead(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.followups.MarkThreadRead(c.Context(), principal.SubjectType, principal.SubjectID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// StreamMessages GET /follow-up/threads/:id/stream. Server-sent events fed
// by the message bus, so the other party's messages appear without a
// manual refresh.
func (h *FollowUpHandler) StreamMessages(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ctx := c.UserContext()
	ch, cancel, err := h.followups.OnNewMessage(ctx, principal.SubjectType, principal.SubjectID, c.Params("id"))
	if err != nil {
		return err
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for {
			select {
			case msg, open := <-ch:
				if !open {
					return
				}
				payload, err := json.Marshal(dto.NewMessageResponse(&msg))
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}))
	return nil
}

// ProvisionThread POST /internal/consultations/:id/follow-up-thread.
// Out-of-band idempotent provisioning for consultations whose advisory
// creation failed at completion time.
func (h *FollowUpHandler) ProvisionThread(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	consultationID := c.Params("id")
	consultation, err := h.consultations.GetForSubject(c.Context(), principal.SubjectType, principal.SubjectID, consultationID)
	if err != nil {
		return err
	}
	if consultation.Status != domain.ConsultationStatusClosed || consultation.Outcome == nil || *consultation.Outcome != domain.OutcomeSuccess {
		return apperrors.NewConflict("follow-up threads exist only for successfully closed consultations", map[string]any{
			"status": consultation.Status,
		})
	}
	thread, err := h.followups.EnsureThread(c.Context(), consultation)
	if err != nil {
		return err
	}
	resolution := domain.ThreadResolution{State: domain.ResolveThreadState(thread, time.Now()), Thread: thread}
	return c.JSON(fiber.Map{"data": dto.NewThreadStatusResponse(consultationID, resolution, time.Now())})
}
