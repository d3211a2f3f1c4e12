package consultation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/repository"
)

type ConsultationService interface {
	CreateConsultation(ctx context.Context, authorID uuid.UUID, req *model.CreateConsultationRequest) (*model.Consultation, error)
	GetConsultation(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error)
}

type Service struct {
	repo        repository.ConsultationRepository
	patientRepo repository.PatientRepository
}

func NewService(repo repository.ConsultationRepository, patientRepo repository.PatientRepository) *Service {
	return &Service{repo: repo, patientRepo: patientRepo}
}

// CreateConsultation records one clinical encounter. The requested-test
// lists are final: adding a test afterwards means a new consultation.
func (s *Service) CreateConsultation(ctx context.Context, authorID uuid.UUID, req *model.CreateConsultationRequest) (*model.Consultation, error) {
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("invalid patient ID: %w", err)
	}

	// Reject consultations for unknown patients early.
	if _, err := s.patientRepo.Get(ctx, patientID); err != nil {
		return nil, err
	}

	date := req.Date
	if date.IsZero() {
		date = time.Now()
	}

	consultation := &model.Consultation{
		Base:                  model.Base{ID: uuid.New()},
		PatientID:             patientID,
		AuthorID:              authorID,
		Date:                  date,
		Reason:                req.Reason,
		Diagnoses:             req.Diagnoses,
		Prescriptions:         req.Prescriptions,
		RequestedLabTests:     dedupe(req.RequestedLabTests),
		RequestedImagingTests: dedupe(req.RequestedImagingTests),
		Notes:                 req.Notes,
	}

	if err := s.marshalPrescriptions(consultation); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, consultation); err != nil {
		return nil, fmt.Errorf("failed to create consultation: %w", err)
	}
	return consultation, nil
}

func (s *Service) GetConsultation(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	consultation, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.unmarshalPrescriptions(consultation); err != nil {
		return nil, err
	}
	return consultation, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error) {
	consultations, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	for _, consultation := range consultations {
		if err := s.unmarshalPrescriptions(consultation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal consultation %s: %w", consultation.ID, err)
		}
	}
	return consultations, nil
}

func (s *Service) marshalPrescriptions(consultation *model.Consultation) error {
	if consultation.Prescriptions == nil {
		consultation.Prescriptions = []model.Prescription{}
	}
	data, err := json.Marshal(consultation.Prescriptions)
	if err != nil {
		return fmt.Errorf("failed to marshal prescriptions: %w", err)
	}
	consultation.PrescriptionsJSON = data
	return nil
}

func (s *Service) unmarshalPrescriptions(consultation *model.Consultation) error {
	if len(consultation.PrescriptionsJSON) == 0 {
		consultation.Prescriptions = []model.Prescription{}
		return nil
	}
	return json.Unmarshal(consultation.PrescriptionsJSON, &consultation.Prescriptions)
}

// dedupe drops repeated names while keeping first-occurrence order. The
// request lists behave as ordered sets.
func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
