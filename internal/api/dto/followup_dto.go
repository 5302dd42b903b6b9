package dto

import (
	"time"

	"github.com/vetlink/consultation-service/internal/domain"
)

// ThreadStatusResponse is the resolved view of a follow-up thread,
// including the chat-header label derived from the expiry.
type ThreadStatusResponse struct {
	State          domain.ThreadState `json:"state"`
	ThreadID       string             `json:"thread_id,omitempty"`
	ConsultationID string             `json:"consultation_id"`
	CreatedAt      *time.Time         `json:"created_at,omitempty"`
	ExpiresAt      *time.Time         `json:"expires_at,omitempty"`
	RemainingLabel string             `json:"remaining_label,omitempty"`
}

// NewThreadStatusResponse maps a resolution at the given instant.
func NewThreadStatusResponse(consultationID string, resolution domain.ThreadResolution, now time.Time) ThreadStatusResponse {
	resp := ThreadStatusResponse{
		State:          resolution.State,
		ConsultationID: consultationID,
	}
	if resolution.Thread != nil {
		created := resolution.Thread.CreatedAt
		expires := resolution.Thread.ExpiresAt
		resp.ThreadID = resolution.Thread.ID
		resp.CreatedAt = &created
		resp.ExpiresAt = &expires
		resp.RemainingLabel = domain.RemainingLabel(expires, now)
	}
	return resp
}

// SendMessageRequest payload.
type SendMessageRequest struct {
	Content       string                     `json:"content"`
	MessageType   domain.FollowUpMessageType `json:"message_type"`
	AttachmentURL *string                    `json:"attachment_url,omitempty"`
}

// MessageResponse represents a thread message.
type MessageResponse struct {
	ID            string                     `json:"id"`
	ThreadID      string                     `json:"thread_id"`
	SenderID      string                     `json:"sender_id"`
	SenderRole    domain.SenderRole          `json:"sender_role"`
	MessageType   domain.FollowUpMessageType `json:"message_type"`
	Content       string                     `json:"content"`
	AttachmentURL *string                    `json:"attachment_url,omitempty"`
	IsRead        bool                       `json:"is_read"`
	CreatedAt     time.Time                  `json:"created_at"`
}

// NewMessageResponse maps a message.
func NewMessageResponse(msg *domain.FollowUpMessage) MessageResponse {
	return MessageResponse{
		ID:            msg.ID,
		ThreadID:      msg.ThreadID,
		SenderID:      msg.SenderID,
		SenderRole:    msg.SenderRole,
		MessageType:   msg.MessageType,
		Content:       msg.Content,
		AttachmentURL: msg.AttachmentURL,
		IsRead:        msg.IsRead,
		CreatedAt:     msg.CreatedAt,
	}
}
