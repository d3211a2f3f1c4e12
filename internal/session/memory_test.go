package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aymanebs/emr-api/internal/model"
)

func TestMemoryStoreActivePatient(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Absent state is nil, nil: callers distinguish "not identified" from
	// a store failure.
	active, err := store.GetActivePatient(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, active)

	patientID := uuid.New()
	require.NoError(t, store.SetActivePatient(ctx, "sess-1", &model.ActivePatient{
		PatientID: patientID,
		SetAt:     time.Now(),
	}))

	active, err = store.GetActivePatient(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, patientID, active.PatientID)

	// Other sessions are unaffected.
	other, err := store.GetActivePatient(ctx, "sess-2")
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, store.ClearActivePatient(ctx, "sess-1"))
	active, err = store.GetActivePatient(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, active)

	// Clearing an absent session is a no-op, not an error.
	assert.NoError(t, store.ClearActivePatient(ctx, "sess-1"))
}

func TestMemoryStoreLastSelection(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	last, err := store.GetLastSelection(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, last)

	selection := &model.LastSelection{
		ConsultationID: uuid.New(),
		TestName:       "CBC",
		Kind:           model.KindReport,
		SelectedAt:     time.Now(),
	}
	require.NoError(t, store.SetLastSelection(ctx, "sess-1", selection))

	last, err = store.GetLastSelection(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, selection.ConsultationID, last.ConsultationID)
	assert.Equal(t, "CBC", last.TestName)
	assert.Equal(t, model.KindReport, last.Kind)

	// Overwriting replaces the previous value.
	require.NoError(t, store.SetLastSelection(ctx, "sess-1", &model.LastSelection{
		ConsultationID: selection.ConsultationID,
		TestName:       "Glucose",
		Kind:           model.KindReport,
	}))
	last, err = store.GetLastSelection(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "Glucose", last.TestName)

	require.NoError(t, store.ClearLastSelection(ctx, "sess-1"))
	last, err = store.GetLastSelection(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	patientID := uuid.New()
	require.NoError(t, store.SetActivePatient(ctx, "sess-1", &model.ActivePatient{PatientID: patientID}))

	first, err := store.GetActivePatient(ctx, "sess-1")
	require.NoError(t, err)
	first.PatientID = uuid.New()

	second, err := store.GetActivePatient(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, patientID, second.PatientID)
}
