package patient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/repository/memory"
	apperrors "github.com/aymanebs/emr-api/pkg/errors"
)

func seedPatient(t *testing.T, svc *Service) *model.Patient {
	t.Helper()
	patient, err := svc.CreatePatient(context.Background(), &model.CreatePatientRequest{
		NationalID:  "AB123456",
		FirstName:   "Nadia",
		LastName:    "Berrada",
		DateOfBirth: time.Date(1988, 6, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return patient
}

func TestCreateAndGetPatient(t *testing.T) {
	svc := NewService(memory.NewPatientRepository())
	created := seedPatient(t, svc)

	fetched, err := svc.GetPatient(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nadia Berrada", fetched.FullName())
}

func TestGetPatientNotFound(t *testing.T) {
	svc := NewService(memory.NewPatientRepository())

	_, err := svc.GetPatient(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestGetByNationalIDCaches(t *testing.T) {
	repo := memory.NewPatientRepository()
	svc := NewService(repo)
	created := seedPatient(t, svc)

	first, err := svc.GetByNationalID(context.Background(), "AB123456")
	require.NoError(t, err)
	assert.Equal(t, created.ID, first.ID)

	// A repository-level change is invisible until the cache entry expires
	// or is invalidated through UpdatePatient.
	stale := *created
	stale.FirstName = "Changed"
	require.NoError(t, repo.Update(context.Background(), &stale))

	second, err := svc.GetByNationalID(context.Background(), "AB123456")
	require.NoError(t, err)
	assert.Equal(t, "Nadia", second.FirstName)
}

func TestUpdatePatientInvalidatesCache(t *testing.T) {
	svc := NewService(memory.NewPatientRepository())
	created := seedPatient(t, svc)

	_, err := svc.GetByNationalID(context.Background(), "AB123456")
	require.NoError(t, err)

	newName := "Yasmine"
	_, err = svc.UpdatePatient(context.Background(), created.ID, &model.UpdatePatientRequest{
		FirstName: &newName,
	})
	require.NoError(t, err)

	fetched, err := svc.GetByNationalID(context.Background(), "AB123456")
	require.NoError(t, err)
	assert.Equal(t, "Yasmine", fetched.FirstName)
}

func TestUpdatePatientPartial(t *testing.T) {
	svc := NewService(memory.NewPatientRepository())
	created := seedPatient(t, svc)

	phone := "+212600000000"
	updated, err := svc.UpdatePatient(context.Background(), created.ID, &model.UpdatePatientRequest{
		Phone: &phone,
	})
	require.NoError(t, err)

	// Untouched fields survive a partial update.
	assert.Equal(t, "Nadia", updated.FirstName)
	assert.Equal(t, phone, updated.Phone)
}
