// Package memory provides in-memory repository implementations used by
// tests and local development without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/aymanebs/emr-api/pkg/errors"

	"github.com/aymanebs/emr-api/internal/model"
)

type PatientRepository struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*model.Patient
}

func NewPatientRepository() *PatientRepository {
	return &PatientRepository{patients: make(map[uuid.UUID]*model.Patient)}
}

func (r *PatientRepository) Create(_ context.Context, patient *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = time.Now()
	cp := *patient
	r.patients[patient.ID] = &cp
	return nil
}

func (r *PatientRepository) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	patient, ok := r.patients[id]
	if !ok {
		return nil, apperrors.NotFound("patient", nil)
	}
	cp := *patient
	return &cp, nil
}

func (r *PatientRepository) GetByNationalID(_ context.Context, nationalID string) (*model.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, patient := range r.patients {
		if patient.NationalID == nationalID {
			cp := *patient
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("patient", nil)
}

func (r *PatientRepository) Update(_ context.Context, patient *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[patient.ID]; !ok {
		return apperrors.NotFound("patient", nil)
	}
	patient.UpdatedAt = time.Now()
	cp := *patient
	r.patients[patient.ID] = &cp
	return nil
}

func (r *PatientRepository) List(_ context.Context) ([]*model.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Patient, 0, len(r.patients))
	for _, patient := range r.patients {
		cp := *patient
		out = append(out, &cp)
	}
	return out, nil
}

type ConsultationRepository struct {
	mu            sync.RWMutex
	consultations map[uuid.UUID]*model.Consultation
	order         []uuid.UUID
}

func NewConsultationRepository() *ConsultationRepository {
	return &ConsultationRepository{consultations: make(map[uuid.UUID]*model.Consultation)}
}

func (r *ConsultationRepository) Create(_ context.Context, consultation *model.Consultation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	consultation.CreatedAt = time.Now()
	consultation.UpdatedAt = time.Now()
	cp := *consultation
	r.consultations[consultation.ID] = &cp
	r.order = append(r.order, consultation.ID)
	return nil
}

func (r *ConsultationRepository) Get(_ context.Context, id uuid.UUID) (*model.Consultation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	consultation, ok := r.consultations[id]
	if !ok {
		return nil, apperrors.NotFound("consultation", nil)
	}
	cp := *consultation
	return &cp, nil
}

func (r *ConsultationRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.Consultation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Consultation
	for _, id := range r.order {
		if c := r.consultations[id]; c.PatientID == patientID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

type DeliverableRepository struct {
	mu           sync.Mutex
	deliverables []*model.Deliverable

	// FailNextCreate makes the next Create return StoreWriteFailure, for
	// exercising the orphan-file path.
	FailNextCreate bool
}

func NewDeliverableRepository() *DeliverableRepository {
	return &DeliverableRepository{}
}

func (r *DeliverableRepository) Create(_ context.Context, deliverable *model.Deliverable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailNextCreate {
		r.FailNextCreate = false
		return apperrors.StoreWriteFailure(nil)
	}
	for _, d := range r.deliverables {
		if d.ConsultationID == deliverable.ConsultationID && d.Kind == deliverable.Kind && d.TestName == deliverable.TestName {
			return apperrors.TestNotOpen(deliverable.TestName)
		}
	}
	deliverable.CreatedAt = time.Now()
	cp := *deliverable
	r.deliverables = append(r.deliverables, &cp)
	return nil
}

func (r *DeliverableRepository) Get(_ context.Context, id uuid.UUID) (*model.Deliverable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.deliverables {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("deliverable", nil)
}

func (r *DeliverableRepository) ListByConsultation(_ context.Context, consultationID uuid.UUID, kind model.DeliverableKind) ([]*model.Deliverable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Deliverable
	for _, d := range r.deliverables {
		if d.ConsultationID == consultationID && d.Kind == kind {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *DeliverableRepository) ListByPatient(_ context.Context, patientID uuid.UUID, kind model.DeliverableKind) ([]*model.Deliverable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Deliverable
	for _, d := range r.deliverables {
		if d.PatientID == patientID && d.Kind == kind {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*model.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uuid.UUID]*model.User)}
}

func (r *UserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *UserRepository) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", nil)
	}
	cp := *user
	return &cp, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user", nil)
}
