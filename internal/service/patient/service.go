package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/repository"
)

type PatientService interface {
	CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	GetByNationalID(ctx context.Context, nationalID string) (*model.Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error)
	ListPatients(ctx context.Context) ([]*model.Patient, error)
}

type Service struct {
	repo repository.PatientRepository
	// lookup caches national-id resolutions; the identification flow hits
	// the same ids repeatedly while an operator processes a batch.
	lookup *gocache.Cache
}

func NewService(repo repository.PatientRepository) *Service {
	return &Service{
		repo:   repo,
		lookup: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *Service) CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	patient := &model.Patient{
		Base:        model.Base{ID: uuid.New()},
		NationalID:  req.NationalID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth,
		Nationality: req.Nationality,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) GetByNationalID(ctx context.Context, nationalID string) (*model.Patient, error) {
	if cached, ok := s.lookup.Get(nationalID); ok {
		patient := cached.(model.Patient)
		return &patient, nil
	}

	patient, err := s.repo.GetByNationalID(ctx, nationalID)
	if err != nil {
		return nil, err
	}

	s.lookup.Set(nationalID, *patient, gocache.DefaultExpiration)
	return patient, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		patient.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		patient.LastName = *req.LastName
	}
	if req.DateOfBirth != nil {
		patient.DateOfBirth = *req.DateOfBirth
	}
	if req.Nationality != nil {
		patient.Nationality = *req.Nationality
	}
	if req.Email != nil {
		patient.Email = *req.Email
	}
	if req.Phone != nil {
		patient.Phone = *req.Phone
	}
	if req.Address != nil {
		patient.Address = *req.Address
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}

	// Profile edits must be visible to the next identification.
	s.lookup.Delete(patient.NationalID)
	return patient, nil
}

func (s *Service) ListPatients(ctx context.Context) ([]*model.Patient, error) {
	return s.repo.List(ctx)
}
