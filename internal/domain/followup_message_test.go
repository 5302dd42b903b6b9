package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiresAttachment(t *testing.T) {
	assert.False(t, MessageTypeText.RequiresAttachment())
	assert.False(t, MessageTypeSystem.RequiresAttachment())
	assert.True(t, MessageTypeImage.RequiresAttachment())
	assert.True(t, MessageTypePrescription.RequiresAttachment())
}

func TestHasAttachment(t *testing.T) {
	url := "https://cdn.example.com/uploads/rash.jpg"
	blank := "   "

	assert.False(t, (&FollowUpMessage{}).HasAttachment())
	assert.False(t, (&FollowUpMessage{AttachmentURL: &blank}).HasAttachment())
	assert.True(t, (&FollowUpMessage{AttachmentURL: &url}).HasAttachment())
}
