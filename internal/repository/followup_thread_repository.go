package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetlink/consultation-service/internal/domain"
)

// FollowUpThreadRepository manages follow-up thread rows. CreateIfAbsent is
// the only write path; expires_at is never updated after insert.
type FollowUpThreadRepository interface {
	// CreateIfAbsent inserts the thread unless one already exists for the
	// consultation, then returns the stored row either way. The boolean
	// reports whether this call inserted it.
	CreateIfAbsent(ctx context.Context, thread *domain.FollowUpThread) (*domain.FollowUpThread, bool, error)
	GetByID(ctx context.Context, id string) (*domain.FollowUpThread, error)
	GetByConsultation(ctx context.Context, consultationID string) (*domain.FollowUpThread, error)
}

type followUpThreadRepository struct {
	pool *pgxpool.Pool
}

// NewFollowUpThreadRepository instantiates repository.
func NewFollowUpThreadRepository(pool *pgxpool.Pool) FollowUpThreadRepository {
	return &followUpThreadRepository{pool: pool}
}

func (r *followUpThreadRepository) CreateIfAbsent(ctx context.Context, thread *domain.FollowUpThread) (*domain.FollowUpThread, bool, error) {
	const insert = `
        INSERT INTO follow_up_threads (consultation_id, customer_id, vet_id, pet_id, expires_at)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (consultation_id) DO NOTHING
        RETURNING id, is_active, created_at`
	err := r.pool.QueryRow(ctx, insert,
		thread.ConsultationID,
		thread.CustomerID,
		thread.VetID,
		thread.PetID,
		thread.ExpiresAt,
	).Scan(&thread.ID, &thread.IsActive, &thread.CreatedAt)
	if err == nil {
		return thread, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	// conflict path: another call won the insert, read the existing row
	existing, err := r.GetByConsultation(ctx, thread.ConsultationID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *followUpThreadRepository) GetByID(ctx context.Context, id string) (*domain.FollowUpThread, error) {
	const query = `
        SELECT id, consultation_id, customer_id, vet_id, pet_id, is_active, created_at, expires_at
        FROM follow_up_threads WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *followUpThreadRepository) GetByConsultation(ctx context.Context, consultationID string) (*domain.FollowUpThread, error) {
	const query = `
        SELECT id, consultation_id, customer_id, vet_id, pet_id, is_active, created_at, expires_at
        FROM follow_up_threads WHERE consultation_id=$1`
	return r.fetchSingle(ctx, query, consultationID)
}

func (r *followUpThreadRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.FollowUpThread, error) {
	var thread domain.FollowUpThread
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&thread.ID,
		&thread.ConsultationID,
		&thread.CustomerID,
		&thread.VetID,
		&thread.PetID,
		&thread.IsActive,
		&thread.CreatedAt,
		&thread.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &thread, nil
}
