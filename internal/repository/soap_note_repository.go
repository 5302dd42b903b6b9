package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetlink/consultation-service/internal/domain"
)

// SoapNoteRepository manages the one-to-one consultation documentation
// record. Callers check presence via GetByConsultation before choosing
// Insert or Update; the table enforces consultation_id uniqueness.
type SoapNoteRepository interface {
	GetByConsultation(ctx context.Context, consultationID string) (*domain.SoapNote, error)
	Insert(ctx context.Context, note *domain.SoapNote) error
	Update(ctx context.Context, note *domain.SoapNote) error
}

type soapNoteRepository struct {
	pool *pgxpool.Pool
}

// NewSoapNoteRepository instantiates repository.
func NewSoapNoteRepository(pool *pgxpool.Pool) SoapNoteRepository {
	return &soapNoteRepository{pool: pool}
}

func (r *soapNoteRepository) GetByConsultation(ctx context.Context, consultationID string) (*domain.SoapNote, error) {
	const query = `
        SELECT id, consultation_id, subjective, objective, assessment, plan, created_at, updated_at
        FROM soap_notes WHERE consultation_id=$1`
	var (
		note       domain.SoapNote
		subjective []byte
		objective  []byte
		assessment []byte
		plan       []byte
	)
	if err := r.pool.QueryRow(ctx, query, consultationID).Scan(
		&note.ID,
		&note.ConsultationID,
		&subjective,
		&objective,
		&assessment,
		&plan,
		&note.CreatedAt,
		&note.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalSections(&note, subjective, objective, assessment, plan); err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *soapNoteRepository) Insert(ctx context.Context, note *domain.SoapNote) error {
	subjective, objective, assessment, plan, err := marshalSections(note)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO soap_notes (consultation_id, subjective, objective, assessment, plan)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		note.ConsultationID,
		subjective,
		objective,
		assessment,
		plan,
	).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
}

func (r *soapNoteRepository) Update(ctx context.Context, note *domain.SoapNote) error {
	subjective, objective, assessment, plan, err := marshalSections(note)
	if err != nil {
		return err
	}
	const query = `
        UPDATE soap_notes SET subjective=$1, objective=$2, assessment=$3, plan=$4, updated_at=NOW()
        WHERE consultation_id=$5
        RETURNING id, updated_at`
	return r.pool.QueryRow(ctx, query,
		subjective,
		objective,
		assessment,
		plan,
		note.ConsultationID,
	).Scan(&note.ID, &note.UpdatedAt)
}

func marshalSections(note *domain.SoapNote) (subjective, objective, assessment, plan []byte, err error) {
	if subjective, err = json.Marshal(note.Subjective); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal subjective: %w", err)
	}
	if objective, err = json.Marshal(note.Objective); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal objective: %w", err)
	}
	if assessment, err = json.Marshal(note.Assessment); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal assessment: %w", err)
	}
	if plan, err = json.Marshal(note.Plan); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal plan: %w", err)
	}
	return subjective, objective, assessment, plan, nil
}

func unmarshalSections(note *domain.SoapNote, subjective, objective, assessment, plan []byte) error {
	if err := json.Unmarshal(subjective, &note.Subjective); err != nil {
		return fmt.Errorf("unmarshal subjective: %w", err)
	}
	if err := json.Unmarshal(objective, &note.Objective); err != nil {
		return fmt.Errorf("unmarshal objective: %w", err)
	}
	if err := json.Unmarshal(assessment, &note.Assessment); err != nil {
		return fmt.Errorf("unmarshal assessment: %w", err)
	}
	if err := json.Unmarshal(plan, &note.Plan); err != nil {
		return fmt.Errorf("unmarshal plan: %w", err)
	}
	return nil
}
