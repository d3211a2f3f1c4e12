// Package fulfillment ties a consultation's requested tests to the
// deliverables that close them. It is the only path through which
// deliverables are created, so the one-deliverable-per-test rule holds as
// long as every caller goes through SubmitDeliverable; the unique index on
// the deliverables table backstops the cross-session race.
package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/aymanebs/emr-api/internal/email"
	"github.com/aymanebs/emr-api/internal/filestore"
	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/repository"
	"github.com/aymanebs/emr-api/internal/session"
	apperrors "github.com/aymanebs/emr-api/pkg/errors"
	"github.com/aymanebs/emr-api/pkg/metrics"
)

type FulfillmentService interface {
	SubjectPatient(ctx context.Context, op *model.OperatorContext) (uuid.UUID, error)
	OpenTests(ctx context.Context, consultationID uuid.UUID, kind model.DeliverableKind) ([]model.OpenTest, error)
	OpenTestsForPatient(ctx context.Context, op *model.OperatorContext, kind model.DeliverableKind) ([]model.OpenTest, error)
	SelectDefault(ctx context.Context, op *model.OperatorContext, open []model.OpenTest) (*model.OpenTest, error)
	RememberSelection(ctx context.Context, op *model.OperatorContext, selection *model.LastSelection) error
	SubmitDeliverable(ctx context.Context, op *model.OperatorContext, req *SubmitRequest) (*model.Deliverable, error)
	GetDeliverable(ctx context.Context, id uuid.UUID) (*model.Deliverable, error)
	ListDeliverables(ctx context.Context, patientID uuid.UUID, kind model.DeliverableKind) ([]*model.Deliverable, error)
}

// SubmitRequest carries one upload: the test being fulfilled and the file
// that fulfills it.
type SubmitRequest struct {
	ConsultationID uuid.UUID
	TestName       string
	Kind           model.DeliverableKind
	Description    string
	FileName       string
	Data           []byte
}

type Service struct {
	consultations repository.ConsultationRepository
	deliverables  repository.DeliverableRepository
	patients      repository.PatientRepository
	users         repository.UserRepository
	files         filestore.Store
	sessions      session.Store
	notifier      email.Service
	metrics       *metrics.Metrics
}

func NewService(
	consultations repository.ConsultationRepository,
	deliverables repository.DeliverableRepository,
	patients repository.PatientRepository,
	users repository.UserRepository,
	files filestore.Store,
	sessions session.Store,
	notifier email.Service,
	m *metrics.Metrics,
) *Service {
	return &Service{
		consultations: consultations,
		deliverables:  deliverables,
		patients:      patients,
		users:         users,
		files:         files,
		sessions:      sessions,
		notifier:      notifier,
		metrics:       m,
	}
}

// SubjectPatient resolves which patient an operation acts on. Patient-role
// operators are their own subject; lab and imaging operators act on the
// session's active patient and get NoActivePatient when none is pinned.
func (s *Service) SubjectPatient(ctx context.Context, op *model.OperatorContext) (uuid.UUID, error) {
	switch {
	case op.Role == model.RolePatient:
		if op.PatientID == nil {
			return uuid.Nil, apperrors.Forbidden("patient account has no linked record")
		}
		return *op.PatientID, nil
	case op.Role.ActsOnBehalfOfPatient():
		active, err := s.sessions.GetActivePatient(ctx, op.SessionID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to read active patient: %w", err)
		}
		if active == nil {
			return uuid.Nil, apperrors.NoActivePatient()
		}
		return active.PatientID, nil
	default:
		return uuid.Nil, apperrors.Forbidden(fmt.Sprintf("role %q cannot perform fulfillment operations", op.Role))
	}
}

// OpenTests computes requested(kind) minus fulfilled(kind) for one
// consultation, preserving the original request order. An empty result is
// an empty slice, never an error.
func (s *Service) OpenTests(ctx context.Context, consultationID uuid.UUID, kind model.DeliverableKind) ([]model.OpenTest, error) {
	consultation, err := s.consultations.Get(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	return s.openTestsOf(ctx, consultation, kind)
}

func (s *Service) openTestsOf(ctx context.Context, consultation *model.Consultation, kind model.DeliverableKind) ([]model.OpenTest, error) {
	s.metrics.OpenTestQueries.Inc()

	existing, err := s.deliverables.ListByConsultation(ctx, consultation.ID, kind)
	if err != nil {
		return nil, err
	}

	fulfilled := make(map[string]bool, len(existing))
	for _, d := range existing {
		fulfilled[d.TestName] = true
	}

	open := []model.OpenTest{}
	for _, name := range consultation.RequestedTests(kind) {
		if fulfilled[name] {
			continue
		}
		open = append(open, model.OpenTest{
			TestName:       name,
			ConsultationID: consultation.ID,
			RequestedAt:    consultation.Date,
		})
	}
	return open, nil
}

// OpenTestsForPatient concatenates the open lists of every consultation of
// the operator's subject patient. The same test name requested by two
// consultations yields two independent open slots.
func (s *Service) OpenTestsForPatient(ctx context.Context, op *model.OperatorContext, kind model.DeliverableKind) ([]model.OpenTest, error) {
	patientID, err := s.SubjectPatient(ctx, op)
	if err != nil {
		return nil, err
	}

	consultations, err := s.consultations.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	open := []model.OpenTest{}
	for _, consultation := range consultations {
		part, err := s.openTestsOf(ctx, consultation, kind)
		if err != nil {
			return nil, err
		}
		open = append(open, part...)
	}
	return open, nil
}

// SelectDefault returns the session's remembered selection if it is still
// open, else the first open test in request order, else nil.
func (s *Service) SelectDefault(ctx context.Context, op *model.OperatorContext, open []model.OpenTest) (*model.OpenTest, error) {
	if len(open) == 0 {
		return nil, nil
	}

	last, err := s.sessions.GetLastSelection(ctx, op.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read last selection: %w", err)
	}
	if last != nil {
		for i := range open {
			if open[i].ConsultationID == last.ConsultationID && open[i].TestName == last.TestName {
				return &open[i], nil
			}
		}
	}
	return &open[0], nil
}

// RememberSelection persists the operator's pick so a screen reload offers
// the same test again.
func (s *Service) RememberSelection(ctx context.Context, op *model.OperatorContext, selection *model.LastSelection) error {
	selection.SelectedAt = time.Now()
	return s.sessions.SetLastSelection(ctx, op.SessionID, selection)
}

// SubmitDeliverable is the composition the whole system exists for: re-check
// the open list, store the file, record the metadata, update session state.
// The file write and the metadata append are sequential and independently
// failable; a metadata failure leaves an orphan file, which is counted and
// logged but not reconciled.
func (s *Service) SubmitDeliverable(ctx context.Context, op *model.OperatorContext, req *SubmitRequest) (*model.Deliverable, error) {
	start := time.Now()

	patientID, err := s.SubjectPatient(ctx, op)
	if err != nil {
		return nil, err
	}

	if !req.Kind.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown deliverable kind %q", req.Kind), nil)
	}
	if !roleMaySubmit(op.Role, req.Kind) {
		return nil, apperrors.Forbidden(fmt.Sprintf("role %q cannot submit %s deliverables", op.Role, req.Kind))
	}

	consultation, err := s.consultations.Get(ctx, req.ConsultationID)
	if err != nil {
		return nil, err
	}
	if consultation.PatientID != patientID {
		return nil, apperrors.BadRequest("consultation does not belong to the subject patient", nil)
	}

	// Re-check immediately before writing. Best effort: two sessions can
	// still pass this together, which is why the unique index exists.
	open, err := s.openTestsOf(ctx, consultation, req.Kind)
	if err != nil {
		return nil, err
	}
	if !containsTest(open, req.TestName) {
		s.metrics.RejectedUploads.WithLabelValues("test_not_open").Inc()
		return nil, apperrors.TestNotOpen(req.TestName)
	}

	stored, err := s.files.Store(req.Data, req.FileName, req.Kind)
	if err != nil {
		s.metrics.UploadsTotal.WithLabelValues(string(req.Kind), "failed").Inc()
		if apperrors.Is(err, apperrors.ErrInvalidFormat) {
			s.metrics.RejectedUploads.WithLabelValues("invalid_format").Inc()
		}
		return nil, err
	}

	deliverable := &model.Deliverable{
		ID:             uuid.New(),
		PatientID:      patientID,
		ConsultationID: consultation.ID,
		Kind:           req.Kind,
		TestName:       req.TestName,
		Description:    req.Description,
		FileName:       req.FileName,
		StoragePath:    stored.Path,
		FileSize:       stored.Size,
	}

	if err := s.deliverables.Create(ctx, deliverable); err != nil {
		s.metrics.UploadsTotal.WithLabelValues(string(req.Kind), "failed").Inc()
		if apperrors.Is(err, apperrors.ErrStoreWriteFailure) {
			s.metrics.OrphanFilesTotal.Inc()
			log.Error().Err(err).
				Str("storage_path", stored.Path).
				Str("consultation_id", consultation.ID.String()).
				Str("test_name", req.TestName).
				Msg("metadata append failed, file is now an orphan")
		}
		return nil, err
	}

	s.finishSubmission(ctx, op, consultation, deliverable)

	s.metrics.UploadsTotal.WithLabelValues(string(req.Kind), "success").Inc()
	s.metrics.FulfillmentsTotal.WithLabelValues(string(req.Kind)).Inc()
	s.metrics.UploadBytes.Observe(float64(stored.Size))
	s.metrics.UploadLatency.Observe(time.Since(start).Seconds())

	return deliverable, nil
}

// finishSubmission updates session state and notifies the author. None of
// these may fail the submission: the deliverable is already durable.
func (s *Service) finishSubmission(ctx context.Context, op *model.OperatorContext, consultation *model.Consultation, deliverable *model.Deliverable) {
	last, err := s.sessions.GetLastSelection(ctx, op.SessionID)
	if err == nil && last != nil &&
		last.ConsultationID == deliverable.ConsultationID &&
		last.TestName == deliverable.TestName &&
		last.Kind == deliverable.Kind {
		if err := s.sessions.ClearLastSelection(ctx, op.SessionID); err != nil {
			log.Warn().Err(err).Str("session_id", op.SessionID).Msg("failed to clear last selection")
		}
	}

	// Force re-identification before the next upload so a second file
	// cannot silently land on the previous patient.
	if op.Role.ActsOnBehalfOfPatient() {
		if err := s.sessions.ClearActivePatient(ctx, op.SessionID); err != nil {
			log.Warn().Err(err).Str("session_id", op.SessionID).Msg("failed to clear active patient")
		}
	}

	s.notifyAuthor(ctx, consultation, deliverable)
}

func (s *Service) notifyAuthor(ctx context.Context, consultation *model.Consultation, deliverable *model.Deliverable) {
	author, err := s.users.Get(ctx, consultation.AuthorID)
	if err != nil {
		log.Warn().Err(err).Str("author_id", consultation.AuthorID.String()).Msg("cannot resolve consultation author for notification")
		return
	}

	patient, err := s.patients.Get(ctx, consultation.PatientID)
	if err != nil {
		log.Warn().Err(err).Str("patient_id", consultation.PatientID.String()).Msg("cannot resolve patient for notification")
		return
	}

	if err := s.notifier.SendDeliverableNotification(ctx, author.Email, patient.FullName(), deliverable.TestName, string(deliverable.Kind)); err != nil {
		log.Warn().Err(err).Str("to", author.Email).Msg("failed to send deliverable notification")
	}
}

func (s *Service) GetDeliverable(ctx context.Context, id uuid.UUID) (*model.Deliverable, error) {
	return s.deliverables.Get(ctx, id)
}

func (s *Service) ListDeliverables(ctx context.Context, patientID uuid.UUID, kind model.DeliverableKind) ([]*model.Deliverable, error) {
	return s.deliverables.ListByPatient(ctx, patientID, kind)
}

func roleMaySubmit(role model.Role, kind model.DeliverableKind) bool {
	switch role {
	case model.RolePatient:
		return true
	case model.RoleLab:
		return kind == model.KindReport
	case model.RoleImaging:
		return kind == model.KindImage
	}
	return false
}

func containsTest(open []model.OpenTest, name string) bool {
	for _, t := range open {
		if t.TestName == name {
			return true
		}
	}
	return false
}
