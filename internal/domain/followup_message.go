package domain

import (
	"strings"
	"time"
)

// SenderRole indicates who authored a follow-up message.
type SenderRole string

const (
	SenderCustomer SenderRole = "CUSTOMER"
	SenderVet      SenderRole = "VET"
	SenderSystem   SenderRole = "SYSTEM"
)

// FollowUpMessageType differentiates message kinds in a thread.
type FollowUpMessageType string

const (
	MessageTypeText         FollowUpMessageType = "TEXT"
	MessageTypeImage        FollowUpMessageType = "IMAGE"
	MessageTypePrescription FollowUpMessageType = "PRESCRIPTION"
	MessageTypeSystem       FollowUpMessageType = "SYSTEM"
)

// FollowUpMessage is one entry in a thread's append-only log. Content is
// required for every kind; for image messages it doubles as the fallback
// caption. Only IsRead may change after insert.
type FollowUpMessage struct {
	ID            string
	ThreadID      string
	SenderID      string
	SenderRole    SenderRole
	MessageType   FollowUpMessageType
	Content       string
	AttachmentURL *string
	IsRead        bool
	CreatedAt     time.Time
}

// RequiresAttachment reports whether the message type must carry a
// non-empty attachment URL.
func (t FollowUpMessageType) RequiresAttachment() bool {
	return t == MessageTypeImage || t == MessageTypePrescription
}

// HasAttachment reports whether the message carries a usable attachment URL.
func (m *FollowUpMessage) HasAttachment() bool {
	return m.AttachmentURL != nil && strings.TrimSpace(*m.AttachmentURL) != ""
}
