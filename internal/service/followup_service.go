package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vetlink/consultation-service/internal/domain"
	"github.com/vetlink/consultation-service/internal/events"
	"github.com/vetlink/consultation-service/internal/observability"
	"github.com/vetlink/consultation-service/internal/realtime"
	"github.com/vetlink/consultation-service/internal/repository"
	apperrors "github.com/vetlink/consultation-service/pkg/util/errorutil"
)

const provisionTimeout = 10 * time.Second

// FollowUpService owns the post-consultation messaging channel: thread
// provisioning with a hard expiry, read-time state resolution, and the
// append-only message log with its send-eligibility gate.
type FollowUpService struct {
	threads    repository.FollowUpThreadRepository
	messages   repository.FollowUpMessageRepository
	bus        realtime.MessageBus
	dispatcher events.Dispatcher
	validity   time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
	clock      func() time.Time
}

// FollowUpDependencies bundles collaborators for the service.
type FollowUpDependencies struct {
	ThreadRepo  repository.FollowUpThreadRepository
	MessageRepo repository.FollowUpMessageRepository
	Bus         realtime.MessageBus
	Dispatcher  events.Dispatcher
	Validity    time.Duration
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewFollowUpService constructs the service.
func NewFollowUpService(deps FollowUpDependencies) *FollowUpService {
	validity := deps.Validity
	if validity <= 0 {
		validity = 7 * 24 * time.Hour
	}
	return &FollowUpService{
		threads:    deps.ThreadRepo,
		messages:   deps.MessageRepo,
		bus:        deps.Bus,
		dispatcher: deps.Dispatcher,
		validity:   validity,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		clock:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *FollowUpService) WithClock(clock func() time.Time) *FollowUpService {
	s.clock = clock
	return s
}

// EnsureThread provisions the thread for a closed consultation with
// expires_at = now + validity window. Creation is idempotent: when a thread
// already exists the stored row is returned and "already exists" counts as
// success.
func (s *FollowUpService) EnsureThread(ctx context.Context, consultation *domain.Consultation) (*domain.FollowUpThread, error) {
	thread := &domain.FollowUpThread{
		ConsultationID: consultation.ID,
		CustomerID:     consultation.CustomerID,
		VetID:          consultation.VetID,
		PetID:          consultation.PetID,
		ExpiresAt:      s.clock().Add(s.validity),
	}
	stored, created, err := s.threads.CreateIfAbsent(ctx, thread)
	if err != nil {
		return nil, apperrors.NewPersistenceError("follow-up thread creation", err)
	}
	if created {
		s.publishEvent(ctx, events.Event{
			Type:           events.EventFollowUpThreadCreated,
			ConsultationID: consultation.ID,
			Actor:          vetActor(consultation.VetID),
			Payload: events.FollowUpThreadCreatedPayload{
				ThreadID:  stored.ID,
				ExpiresAt: stored.ExpiresAt,
			},
		})
	}
	return stored, nil
}

// ProvisionAsync requests thread creation fire-and-forget. Failure is
// logged but never blocks the caller; the thread can be created later
// out-of-band through the provisioning endpoint.
func (s *FollowUpService) ProvisionAsync(consultation *domain.Consultation) {
	snapshot := *consultation
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), provisionTimeout)
		defer cancel()
		if _, err := s.EnsureThread(ctx, &snapshot); err != nil {
			s.metrics.RecordWorkflow("thread_provision", false)
			s.logger.Error("follow-up thread provisioning failed",
				zap.String("consultation_id", snapshot.ID), zap.Error(err))
			return
		}
		s.metrics.RecordWorkflow("thread_provision", true)
	}()
}

// Resolve computes the thread state for a consultation at read time. There
// is no stored expiry transition; "expired" is recomputed on every access.
func (s *FollowUpService) Resolve(ctx context.Context, consultationID string) (domain.ThreadResolution, error) {
	thread, err := s.threads.GetByConsultation(ctx, consultationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ThreadResolution{State: domain.ThreadAbsent}, nil
		}
		return domain.ThreadResolution{}, apperrors.MapError(err)
	}
	return domain.ThreadResolution{
		State:  domain.ResolveThreadState(thread, s.clock()),
		Thread: thread,
	}, nil
}

// ListMessages returns the full thread history ordered by created_at, ties
// broken by id. The caller must participate in the thread.
func (s *FollowUpService) ListMessages(ctx context.Context, subject domain.SubjectType, subjectID, threadID string) ([]domain.FollowUpMessage, error) {
	thread, err := s.getThreadForSubject(ctx, subject, subjectID, threadID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByThread(ctx, thread.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return msgs, nil
}

// SendMessageInput describes a send request.
type SendMessageInput struct {
	ThreadID      string
	SenderID      string
	SenderRole    domain.SenderRole
	Content       string
	MessageType   domain.FollowUpMessageType
	AttachmentURL *string
}

// SendMessage appends a message when the thread resolves active. Rejections
// (expired or absent thread, media without attachment) happen before any
// write. The created row is returned so the caller can render it
// immediately.
func (s *FollowUpService) SendMessage(ctx context.Context, input SendMessageInput) (*domain.FollowUpMessage, error) {
	thread, err := s.threads.GetByID(ctx, input.ThreadID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewThreadNotAvailable(string(domain.ThreadAbsent))
		}
		return nil, apperrors.MapError(err)
	}
	if err := s.checkSender(thread, input.SenderRole, input.SenderID); err != nil {
		return nil, err
	}
	if state := domain.ResolveThreadState(thread, s.clock()); state != domain.ThreadActive {
		s.metrics.RecordWorkflow("message_send", false)
		return nil, apperrors.NewThreadNotAvailable(string(state))
	}

	messageType := input.MessageType
	if messageType == "" {
		messageType = domain.MessageTypeText
	}
	msg := &domain.FollowUpMessage{
		ThreadID:      thread.ID,
		SenderID:      input.SenderID,
		SenderRole:    input.SenderRole,
		MessageType:   messageType,
		Content:       strings.TrimSpace(input.Content),
		AttachmentURL: input.AttachmentURL,
	}
	if msg.Content == "" {
		return nil, apperrors.NewInvalidMessage("content required", nil)
	}
	if messageType.RequiresAttachment() && !msg.HasAttachment() {
		return nil, apperrors.NewInvalidMessage("attachment_url required for media messages", map[string]any{
			"message_type": messageType,
		})
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		s.metrics.RecordWorkflow("message_send", false)
		return nil, apperrors.NewPersistenceError("follow-up message append", err)
	}
	s.metrics.RecordWorkflow("message_send", true)

	if s.bus != nil {
		if err := s.bus.PublishMessage(ctx, msg); err != nil {
			s.logger.Warn("live message fan-out failed",
				zap.String("thread_id", thread.ID), zap.Error(err))
		}
	}
	s.publishEvent(ctx, events.Event{
		Type:           events.EventFollowUpMessageSent,
		ConsultationID: thread.ConsultationID,
		Actor:          actorForRole(input.SenderRole, input.SenderID),
		Payload: events.FollowUpMessageSentPayload{
			ThreadID:       thread.ID,
			MessageID:      msg.ID,
			MessageType:    msg.MessageType,
			SenderRole:     msg.SenderRole,
			ContentPreview: contentPreview(msg.Content, 120),
		},
	})
	return msg, nil
}

// MarkThreadRead flips the unread flag on messages the caller received.
func (s *FollowUpService) MarkThreadRead(ctx context.Context, subject domain.SubjectType, subjectID, threadID string) error {
	thread, err := s.getThreadForSubject(ctx, subject, subjectID, threadID)
	if err != nil {
		return err
	}
	if err := s.messages.MarkReadForRecipient(ctx, thread.ID, domain.SenderRoleFor(subject)); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// OnNewMessage subscribes to live messages for a thread after verifying
// access. The returned channel closes when cancel runs or ctx ends.
func (s *FollowUpService) OnNewMessage(ctx context.Context, subject domain.SubjectType, subjectID, threadID string) (<-chan domain.FollowUpMessage, func(), error) {
	if s.bus == nil {
		return nil, nil, apperrors.NewConflict("live updates unavailable", nil)
	}
	thread, err := s.getThreadForSubject(ctx, subject, subjectID, threadID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.bus.SubscribeMessages(ctx, thread.ID)
	return ch, cancel, nil
}

func (s *FollowUpService) getThreadForSubject(ctx context.Context, subject domain.SubjectType, subjectID, threadID string) (*domain.FollowUpThread, error) {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("follow-up thread", nil)
		}
		return nil, apperrors.MapError(err)
	}
	switch subject {
	case domain.SubjectTypeCustomer:
		if thread.CustomerID != subjectID {
			return nil, apperrors.NewForbidden("thread belongs to another customer")
		}
	case domain.SubjectTypeVet:
		if thread.VetID != subjectID {
			return nil, apperrors.NewForbidden("thread belongs to another vet")
		}
	default:
		return nil, apperrors.NewForbidden("unknown subject")
	}
	return thread, nil
}

func (s *FollowUpService) checkSender(thread *domain.FollowUpThread, role domain.SenderRole, senderID string) error {
	switch role {
	case domain.SenderCustomer:
		if thread.CustomerID != senderID {
			return apperrors.NewForbidden("thread belongs to another customer")
		}
	case domain.SenderVet:
		if thread.VetID != senderID {
			return apperrors.NewForbidden("thread belongs to another vet")
		}
	case domain.SenderSystem:
		// system notices bypass participant checks
	default:
		return apperrors.NewInvalidMessage("unknown sender role", nil)
	}
	return nil
}

func (s *FollowUpService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func vetActor(vetID string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeVet, VetID: &vetID}
}

func customerActor(customerID string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeCustomer, CustomerID: &customerID}
}

func actorForRole(role domain.SenderRole, id string) events.Actor {
	if role == domain.SenderVet {
		return vetActor(id)
	}
	return customerActor(id)
}

func contentPreview(content string, max int) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
