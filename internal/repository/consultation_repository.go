package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetlink/consultation-service/internal/domain"
)

// ConsultationRepository encapsulates consultation persistence. Creation
// happens in the booking flow; this service only reads and transitions.
type ConsultationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Consultation, error)
	UpdateStatus(ctx context.Context, consultation *domain.Consultation) error
}

type consultationRepository struct {
	pool *pgxpool.Pool
}

// NewConsultationRepository instantiates repository.
func NewConsultationRepository(pool *pgxpool.Pool) ConsultationRepository {
	return &consultationRepository{pool: pool}
}

func (r *consultationRepository) GetByID(ctx context.Context, id string) (*domain.Consultation, error) {
	const query = `
        SELECT id, consultation_number, customer_id, vet_id, pet_id, status, outcome,
               scheduled_at, started_at, ended_at, created_at, updated_at
        FROM consultations WHERE id=$1`
	var c domain.Consultation
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.ConsultationNumber,
		&c.CustomerID,
		&c.VetID,
		&c.PetID,
		&c.Status,
		&c.Outcome,
		&c.ScheduledAt,
		&c.StartedAt,
		&c.EndedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *consultationRepository) UpdateStatus(ctx context.Context, consultation *domain.Consultation) error {
	const query = `
        UPDATE consultations SET status=$1, outcome=$2, started_at=$3, ended_at=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		consultation.Status,
		consultation.Outcome,
		consultation.StartedAt,
		consultation.EndedAt,
		consultation.ID,
	).Scan(&consultation.UpdatedAt)
}
