package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/aymanebs/emr-api/internal/model"
)

type PatientRepository interface {
	Create(ctx context.Context, patient *model.Patient) error
	Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	GetByNationalID(ctx context.Context, nationalID string) (*model.Patient, error)
	Update(ctx context.Context, patient *model.Patient) error
	List(ctx context.Context) ([]*model.Patient, error)
}

type ConsultationRepository interface {
	Create(ctx context.Context, consultation *model.Consultation) error
	Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error)
}

type DeliverableRepository interface {
	Create(ctx context.Context, deliverable *model.Deliverable) error
	Get(ctx context.Context, id uuid.UUID) (*model.Deliverable, error)
	ListByConsultation(ctx context.Context, consultationID uuid.UUID, kind model.DeliverableKind) ([]*model.Deliverable, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, kind model.DeliverableKind) ([]*model.Deliverable, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}
