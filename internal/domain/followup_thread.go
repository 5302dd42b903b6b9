package domain

import (
	"fmt"
	"time"
)

// FollowUpThread is the time-boxed messaging channel provisioned after a
// consultation closes successfully. ExpiresAt is immutable once set.
type FollowUpThread struct {
	ID             string
	ConsultationID string
	CustomerID     string
	VetID          string
	PetID          string
	IsActive       bool
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// ThreadState is the derived lifecycle state of a follow-up thread.
type ThreadState string

const (
	ThreadAbsent  ThreadState = "ABSENT"
	ThreadActive  ThreadState = "ACTIVE"
	ThreadExpired ThreadState = "EXPIRED"
)

// ThreadResolution pairs a derived state with the thread row, if any.
type ThreadResolution struct {
	State  ThreadState
	Thread *FollowUpThread
}

// ResolveThreadState computes the state for a thread at the given instant.
// Expiry is a derived predicate recomputed on every access, never a stored
// transition, so it is monotonic: once now >= ExpiresAt it stays expired
// for every later now.
func ResolveThreadState(thread *FollowUpThread, now time.Time) ThreadState {
	if thread == nil {
		return ThreadAbsent
	}
	if !thread.IsActive || !now.Before(thread.ExpiresAt) {
		return ThreadExpired
	}
	return ThreadActive
}

// RemainingLabel buckets the time left on a thread into the display string
// shown in the chat header. Pure presentation, never persisted.
func RemainingLabel(expiresAt, now time.Time) string {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return "Chat expired"
	}
	if days := int(remaining.Hours()) / 24; days >= 1 {
		if days == 1 {
			return "1 day remaining"
		}
		return fmt.Sprintf("%d days remaining", days)
	}
	hours := int(remaining.Hours())
	if hours <= 1 {
		return "1 hour remaining"
	}
	return fmt.Sprintf("%d hours remaining", hours)
}
