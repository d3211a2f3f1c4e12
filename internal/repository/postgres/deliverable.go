package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/aymanebs/emr-api/pkg/errors"

	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/repository"
)

type deliverableRepository struct {
	db *sqlx.DB
}

func NewDeliverableRepository(db *sqlx.DB) repository.DeliverableRepository {
	return &deliverableRepository{db: db}
}

// Create appends the metadata record. The deliverables table carries a
// unique index on (consultation_id, kind, test_name), so two operators
// racing on the same open test resolve at the database: the loser gets a
// conflict, not a duplicate fulfillment.
func (r *deliverableRepository) Create(ctx context.Context, deliverable *model.Deliverable) error {
	query := `
		INSERT INTO deliverables (id, patient_id, consultation_id, kind, test_name, description,
		                          file_name, storage_path, file_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	deliverable.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		deliverable.ID,
		deliverable.PatientID,
		deliverable.ConsultationID,
		deliverable.Kind,
		deliverable.TestName,
		deliverable.Description,
		deliverable.FileName,
		deliverable.StoragePath,
		deliverable.FileSize,
		deliverable.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.TestNotOpen(deliverable.TestName)
		}
		return apperrors.StoreWriteFailure(err)
	}
	return nil
}

func (r *deliverableRepository) Get(ctx context.Context, id uuid.UUID) (*model.Deliverable, error) {
	query := `SELECT * FROM deliverables WHERE id = $1`
	var deliverable model.Deliverable
	err := r.db.GetContext(ctx, &deliverable, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("deliverable", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deliverable: %w", err)
	}
	return &deliverable, nil
}

func (r *deliverableRepository) ListByConsultation(ctx context.Context, consultationID uuid.UUID, kind model.DeliverableKind) ([]*model.Deliverable, error) {
	query := `SELECT * FROM deliverables WHERE consultation_id = $1 AND kind = $2 ORDER BY created_at`
	var deliverables []*model.Deliverable
	err := r.db.SelectContext(ctx, &deliverables, query, consultationID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliverables: %w", err)
	}
	return deliverables, nil
}

func (r *deliverableRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, kind model.DeliverableKind) ([]*model.Deliverable, error) {
	query := `SELECT * FROM deliverables WHERE patient_id = $1 AND kind = $2 ORDER BY created_at DESC`
	var deliverables []*model.Deliverable
	err := r.db.SelectContext(ctx, &deliverables, query, patientID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliverables: %w", err)
	}
	return deliverables, nil
}
