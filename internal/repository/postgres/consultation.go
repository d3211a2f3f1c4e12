package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/aymanebs/emr-api/pkg/errors"

	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/repository"
)

type consultationRepository struct {
	db *sqlx.DB
}

func NewConsultationRepository(db *sqlx.DB) repository.ConsultationRepository {
	return &consultationRepository{db: db}
}

func (r *consultationRepository) Create(ctx context.Context, consultation *model.Consultation) error {
	query := `
		INSERT INTO consultations (id, patient_id, author_id, date, reason, diagnoses, prescriptions,
		                           requested_lab_tests, requested_imaging_tests, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	consultation.CreatedAt = time.Now()
	consultation.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		consultation.ID,
		consultation.PatientID,
		consultation.AuthorID,
		consultation.Date,
		consultation.Reason,
		consultation.Diagnoses,
		consultation.PrescriptionsJSON,
		consultation.RequestedLabTests,
		consultation.RequestedImagingTests,
		consultation.Notes,
		consultation.CreatedAt,
		consultation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create consultation: %w", err)
	}
	return nil
}

func (r *consultationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	query := `SELECT * FROM consultations WHERE id = $1`
	var consultation model.Consultation
	err := r.db.GetContext(ctx, &consultation, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("consultation", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get consultation: %w", err)
	}
	return &consultation, nil
}

func (r *consultationRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error) {
	query := `SELECT * FROM consultations WHERE patient_id = $1 ORDER BY date DESC`
	var consultations []*model.Consultation
	err := r.db.SelectContext(ctx, &consultations, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	return consultations, nil
}
