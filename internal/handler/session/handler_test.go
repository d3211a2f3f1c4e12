package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/repository/memory"
	patientService "github.com/aymanebs/emr-api/internal/service/patient"
	sessionStore "github.com/aymanebs/emr-api/internal/session"
	"github.com/aymanebs/emr-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("emr_test", "session_handler")

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, role model.Role) (*gin.Engine, uuid.UUID) {
	t.Helper()

	patients := memory.NewPatientRepository()
	patientID := uuid.New()
	require.NoError(t, patients.Create(context.Background(), &model.Patient{
		Base:        model.Base{ID: patientID},
		NationalID:  "AB123456",
		FirstName:   "Nadia",
		LastName:    "Berrada",
		DateOfBirth: time.Date(1988, 6, 2, 0, 0, 0, 0, time.UTC),
	}))

	h := NewHandler(patientService.NewService(patients), sessionStore.NewMemoryStore(), testMetrics)

	op := &model.OperatorContext{
		SessionID: uuid.New().String(),
		UserID:    uuid.New(),
		Role:      role,
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("operator", op)
	})
	group := r.Group("/api/v1")
	h.RegisterRoutes(group)

	return r, patientID
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestIdentifyGetClearLifecycle(t *testing.T) {
	r, patientID := newRouter(t, model.RoleLab)

	// Nothing pinned yet.
	rec := do(r, http.MethodGet, "/api/v1/sessions/active-patient", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(r, http.MethodPost, "/api/v1/sessions/active-patient", `{"national_id":"AB123456"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data model.ActivePatient `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, patientID, resp.Data.PatientID)
	assert.Equal(t, "Nadia Berrada", resp.Data.FullName)

	rec = do(r, http.MethodGet, "/api/v1/sessions/active-patient", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodDelete, "/api/v1/sessions/active-patient", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/sessions/active-patient", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIdentifyUnknownNationalID(t *testing.T) {
	r, _ := newRouter(t, model.RoleLab)

	rec := do(r, http.MethodPost, "/api/v1/sessions/active-patient", `{"national_id":"ZZ999999"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIdentifyRequiresNationalID(t *testing.T) {
	r, _ := newRouter(t, model.RoleLab)

	rec := do(r, http.MethodPost, "/api/v1/sessions/active-patient", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivePatientForbiddenForPatientRole(t *testing.T) {
	r, _ := newRouter(t, model.RolePatient)

	rec := do(r, http.MethodPost, "/api/v1/sessions/active-patient", `{"national_id":"AB123456"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/sessions/active-patient", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIdentifyReplacesPreviousBinding(t *testing.T) {
	r, _ := newRouter(t, model.RoleImaging)

	rec := do(r, http.MethodPost, "/api/v1/sessions/active-patient", `{"national_id":"AB123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Re-identifying the same id is a plain replace, not an error.
	rec = do(r, http.MethodPost, "/api/v1/sessions/active-patient", `{"national_id":"AB123456"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}
