package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vetlink/consultation-service/internal/domain"
	"github.com/vetlink/consultation-service/internal/events"
	"github.com/vetlink/consultation-service/internal/repository"
)

// --- fakeConsultationRepo ---

var _ repository.ConsultationRepository = (*fakeConsultationRepo)(nil)

type fakeConsultationRepo struct {
	mu            sync.Mutex
	byID          map[string]*domain.Consultation
	updateCalls   int
	failUpdate    error
	updatedStatus []domain.ConsultationStatus
}

func newFakeConsultationRepo(consultations ...*domain.Consultation) *fakeConsultationRepo {
	repo := &fakeConsultationRepo{byID: make(map[string]*domain.Consultation)}
	for _, c := range consultations {
		copied := *c
		repo.byID[c.ID] = &copied
	}
	return repo
}

func (r *fakeConsultationRepo) GetByID(ctx context.Context, id string) (*domain.Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeConsultationRepo) UpdateStatus(ctx context.Context, consultation *domain.Consultation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.failUpdate != nil {
		return r.failUpdate
	}
	copied := *consultation
	copied.UpdatedAt = time.Now()
	r.byID[consultation.ID] = &copied
	r.updatedStatus = append(r.updatedStatus, consultation.Status)
	consultation.UpdatedAt = copied.UpdatedAt
	return nil
}

// --- fakeHistoryRepo ---

var _ repository.ConsultationHistoryRepository = (*fakeHistoryRepo)(nil)

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.ConsultationHistory
	fail    error
}

func (r *fakeHistoryRepo) Create(ctx context.Context, history *domain.ConsultationHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	history.ID = uuid.NewString()
	history.CreatedAt = time.Now()
	r.entries = append(r.entries, *history)
	return nil
}

func (r *fakeHistoryRepo) ListByConsultation(ctx context.Context, consultationID string) ([]domain.ConsultationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ConsultationHistory
	for _, e := range r.entries {
		if e.ConsultationID == consultationID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- fakeSoapNoteRepo ---

var _ repository.SoapNoteRepository = (*fakeSoapNoteRepo)(nil)

type fakeSoapNoteRepo struct {
	mu          sync.Mutex
	stored      *domain.SoapNote
	insertCalls int
	updateCalls int
	failWrite   error
	// onPersist runs before each Insert/Update without the lock held;
	// lets tests hold a write in flight.
	onPersist func()
}

func (r *fakeSoapNoteRepo) setFailWrite(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWrite = err
}

func (r *fakeSoapNoteRepo) writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertCalls + r.updateCalls
}

func (r *fakeSoapNoteRepo) GetByConsultation(ctx context.Context, consultationID string) (*domain.SoapNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stored == nil || r.stored.ConsultationID != consultationID {
		return nil, pgx.ErrNoRows
	}
	copied := *r.stored
	return &copied, nil
}

func (r *fakeSoapNoteRepo) Insert(ctx context.Context, note *domain.SoapNote) error {
	if r.onPersist != nil {
		r.onPersist()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertCalls++
	if r.failWrite != nil {
		return r.failWrite
	}
	note.ID = uuid.NewString()
	note.CreatedAt = time.Now()
	note.UpdatedAt = note.CreatedAt
	copied := *note
	r.stored = &copied
	return nil
}

func (r *fakeSoapNoteRepo) Update(ctx context.Context, note *domain.SoapNote) error {
	if r.onPersist != nil {
		r.onPersist()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.failWrite != nil {
		return r.failWrite
	}
	note.UpdatedAt = time.Now()
	copied := *note
	r.stored = &copied
	return nil
}

// --- fakeThreadRepo ---

var _ repository.FollowUpThreadRepository = (*fakeThreadRepo)(nil)

type fakeThreadRepo struct {
	mu             sync.Mutex
	byConsultation map[string]*domain.FollowUpThread
	createCalls    int
	failCreate     error
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{byConsultation: make(map[string]*domain.FollowUpThread)}
}

func (r *fakeThreadRepo) threadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byConsultation)
}

func (r *fakeThreadRepo) CreateIfAbsent(ctx context.Context, thread *domain.FollowUpThread) (*domain.FollowUpThread, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.failCreate != nil {
		return nil, false, r.failCreate
	}
	if existing, ok := r.byConsultation[thread.ConsultationID]; ok {
		copied := *existing
		return &copied, false, nil
	}
	thread.ID = uuid.NewString()
	thread.IsActive = true
	thread.CreatedAt = time.Now()
	copied := *thread
	r.byConsultation[thread.ConsultationID] = &copied
	return thread, true, nil
}

func (r *fakeThreadRepo) GetByID(ctx context.Context, id string) (*domain.FollowUpThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, thread := range r.byConsultation {
		if thread.ID == id {
			copied := *thread
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeThreadRepo) GetByConsultation(ctx context.Context, consultationID string) (*domain.FollowUpThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread, ok := r.byConsultation[consultationID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *thread
	return &copied, nil
}

// --- fakeMessageRepo ---

var _ repository.FollowUpMessageRepository = (*fakeMessageRepo)(nil)

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []domain.FollowUpMessage
}

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.FollowUpMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) seed(messages ...domain.FollowUpMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, messages...)
}

func (r *fakeMessageRepo) ListByThread(ctx context.Context, threadID string) ([]domain.FollowUpMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FollowUpMessage
	for _, msg := range r.messages {
		if msg.ThreadID == threadID {
			out = append(out, msg)
		}
	}
	// same ordering as the SQL: created_at ascending, id breaks ties
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeMessageRepo) MarkReadForRecipient(ctx context.Context, threadID string, reader domain.SenderRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ThreadID == threadID && r.messages[i].SenderRole != reader {
			r.messages[i].IsRead = true
		}
	}
	return nil
}

// --- fakeInvalidator ---

type fakeInvalidator struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, consultationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, consultationID)
	return f.fail
}

// --- fakeProvisioner ---

type fakeProvisioner struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeProvisioner) ProvisionAsync(consultation *domain.Consultation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, consultation.ID)
}

func (f *fakeProvisioner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// --- fakeDispatcher ---

type fakeDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (d *fakeDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
	return nil
}

func (d *fakeDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *fakeDispatcher) byType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.published {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// --- fakeBus ---

type fakeBus struct {
	mu        sync.Mutex
	published []domain.FollowUpMessage
}

func (b *fakeBus) PublishMessage(ctx context.Context, msg *domain.FollowUpMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, *msg)
	return nil
}

func (b *fakeBus) SubscribeMessages(ctx context.Context, threadID string) (<-chan domain.FollowUpMessage, func()) {
	ch := make(chan domain.FollowUpMessage)
	close(ch)
	return ch, func() {}
}
