package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetlink/consultation-service/internal/domain"
)

// ConsultationHistoryRepository stores audit entries for transitions.
type ConsultationHistoryRepository interface {
	Create(ctx context.Context, history *domain.ConsultationHistory) error
	ListByConsultation(ctx context.Context, consultationID string) ([]domain.ConsultationHistory, error)
}

type consultationHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewConsultationHistoryRepository builds repository.
func NewConsultationHistoryRepository(pool *pgxpool.Pool) ConsultationHistoryRepository {
	return &consultationHistoryRepository{pool: pool}
}

func (r *consultationHistoryRepository) Create(ctx context.Context, history *domain.ConsultationHistory) error {
	const query = `
        INSERT INTO consultation_history (consultation_id, changed_by_type, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		history.ConsultationID,
		history.ChangedByType,
		history.ChangedByID,
		history.ChangeType,
		history.OldValue,
		history.NewValue,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *consultationHistoryRepository) ListByConsultation(ctx context.Context, consultationID string) ([]domain.ConsultationHistory, error) {
	const query = `
        SELECT id, consultation_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at
        FROM consultation_history WHERE consultation_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, consultationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ConsultationHistory
	for rows.Next() {
		var history domain.ConsultationHistory
		if err := rows.Scan(
			&history.ID,
			&history.ConsultationID,
			&history.ChangedByType,
			&history.ChangedByID,
			&history.ChangeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
