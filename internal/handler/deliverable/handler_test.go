package deliverable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aymanebs/emr-api/internal/email"
	"github.com/aymanebs/emr-api/internal/filestore"
	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/repository/memory"
	"github.com/aymanebs/emr-api/internal/service/fulfillment"
	"github.com/aymanebs/emr-api/internal/session"
	"github.com/aymanebs/emr-api/pkg/metrics"
	"github.com/aymanebs/emr-api/pkg/validator"
)

var testMetrics = metrics.NewMetrics("emr_test", "deliverable_handler")

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

type env struct {
	router        *gin.Engine
	sessions      session.Store
	deliverables  *memory.DeliverableRepository
	consultations *memory.ConsultationRepository
	patients      *memory.PatientRepository

	patientID uuid.UUID
	authorID  uuid.UUID
	op        *model.OperatorContext
}

func newEnv(t *testing.T, role model.Role) *env {
	t.Helper()

	files, err := filestore.NewDiskStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	e := &env{
		sessions:      session.NewMemoryStore(),
		deliverables:  memory.NewDeliverableRepository(),
		consultations: memory.NewConsultationRepository(),
		patients:      memory.NewPatientRepository(),
		patientID:     uuid.New(),
		authorID:      uuid.New(),
	}

	users := memory.NewUserRepository()
	require.NoError(t, e.patients.Create(context.Background(), &model.Patient{
		Base:       model.Base{ID: e.patientID},
		NationalID: "AB123456",
		FirstName:  "Nadia",
		LastName:   "Berrada",
	}))
	require.NoError(t, users.Create(context.Background(), &model.User{
		Base:  model.Base{ID: e.authorID},
		Email: "doctor@example.com",
		Role:  model.RoleClinician,
	}))

	svc := fulfillment.NewService(
		e.consultations, e.deliverables, e.patients, users,
		files, e.sessions, email.NewNoopService(), testMetrics,
	)

	e.op = &model.OperatorContext{
		SessionID: uuid.New().String(),
		UserID:    uuid.New(),
		Role:      role,
	}
	if role == model.RolePatient {
		e.op.PatientID = &e.patientID
	}

	h := NewHandler(svc, files)
	e.router = gin.New()
	e.router.Use(func(c *gin.Context) {
		c.Set("operator", e.op)
	})
	group := e.router.Group("/api/v1")
	h.RegisterRoutes(group)
	h.RegisterFileRoute(group)

	return e
}

func (e *env) identify(t *testing.T) {
	t.Helper()
	require.NoError(t, e.sessions.SetActivePatient(context.Background(), e.op.SessionID, &model.ActivePatient{
		PatientID: e.patientID,
		SetAt:     time.Now(),
	}))
}

func (e *env) newConsultation(t *testing.T, labTests, imgTests []string) *model.Consultation {
	t.Helper()
	consultation := &model.Consultation{
		Base:                  model.Base{ID: uuid.New()},
		PatientID:             e.patientID,
		AuthorID:              e.authorID,
		Date:                  time.Now(),
		RequestedLabTests:     labTests,
		RequestedImagingTests: imgTests,
	}
	require.NoError(t, e.consultations.Create(context.Background(), consultation))
	return consultation
}

func multipartUpload(t *testing.T, fileField, fileName string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 test payload"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUploadReportSuccess(t *testing.T) {
	e := newEnv(t, model.RoleLab)
	e.identify(t)
	consultation := e.newConsultation(t, []string{"CBC", "Glucose"}, nil)

	body, contentType := multipartUpload(t, "file", "cbc.pdf", map[string]string{
		"dmeId":       consultation.ID.String(),
		"patientId":   e.patientID.String(),
		"labTest":     "CBC",
		"description": "complete blood count",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliverables/reports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, "success", resp["status"])
	data := resp["data"].(map[string]interface{})
	assert.Contains(t, data["url"], "/uploads/")

	stored, err := e.deliverables.ListByConsultation(context.Background(), consultation.ID, model.KindReport)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "CBC", stored[0].TestName)
	assert.Equal(t, "cbc.pdf", stored[0].FileName)
}

func TestUploadReportMissingFields(t *testing.T) {
	e := newEnv(t, model.RoleLab)
	e.identify(t)
	consultation := e.newConsultation(t, []string{"CBC"}, nil)

	cases := []struct {
		name   string
		fields map[string]string
		file   string
	}{
		{"no dmeId", map[string]string{"labTest": "CBC"}, "file"},
		{"no labTest", map[string]string{"dmeId": consultation.ID.String()}, "file"},
		{"no file", map[string]string{"dmeId": consultation.ID.String(), "labTest": "CBC"}, ""},
	}
	for _, tc := range cases {
		body, contentType := multipartUpload(t, tc.file, "cbc.pdf", tc.fields)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/deliverables/reports", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.name)
	}

	// Nothing was recorded.
	stored, err := e.deliverables.ListByConsultation(context.Background(), consultation.ID, model.KindReport)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestUploadReportBadExtension(t *testing.T) {
	e := newEnv(t, model.RoleLab)
	e.identify(t)
	consultation := e.newConsultation(t, []string{"CBC"}, nil)

	body, contentType := multipartUpload(t, "file", "cbc.txt", map[string]string{
		"dmeId":   consultation.ID.String(),
		"labTest": "CBC",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliverables/reports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadReportTestNotOpen(t *testing.T) {
	e := newEnv(t, model.RoleLab)
	e.identify(t)
	consultation := e.newConsultation(t, []string{"CBC"}, nil)

	body, contentType := multipartUpload(t, "file", "lipid.pdf", map[string]string{
		"dmeId":   consultation.ID.String(),
		"labTest": "Lipid Panel",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliverables/reports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUploadReportNoActivePatient(t *testing.T) {
	e := newEnv(t, model.RoleLab)
	consultation := e.newConsultation(t, []string{"CBC"}, nil)

	body, contentType := multipartUpload(t, "file", "cbc.pdf", map[string]string{
		"dmeId":   consultation.ID.String(),
		"labTest": "CBC",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliverables/reports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUploadReportStalePatientID(t *testing.T) {
	e := newEnv(t, model.RoleLab)
	e.identify(t)
	consultation := e.newConsultation(t, []string{"CBC"}, nil)

	body, contentType := multipartUpload(t, "file", "cbc.pdf", map[string]string{
		"dmeId":     consultation.ID.String(),
		"patientId": uuid.New().String(),
		"labTest":   "CBC",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliverables/reports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadImageSuccess(t *testing.T) {
	e := newEnv(t, model.RoleImaging)
	e.identify(t)
	consultation := e.newConsultation(t, nil, []string{"Chest X-Ray"})

	body, contentType := multipartUpload(t, "image", "xray.png", map[string]string{
		"dmeId":   consultation.ID.String(),
		"imgTest": "Chest X-Ray",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliverables/images", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestListOpenTests(t *testing.T) {
	e := newEnv(t, model.RoleLab)
	e.identify(t)
	e.newConsultation(t, []string{"CBC", "Glucose"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/open-tests?kind=report", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	data := resp["data"].(map[string]interface{})
	open := data["open_tests"].([]interface{})
	require.Len(t, open, 2)
	def := data["default"].(map[string]interface{})
	assert.Equal(t, "CBC", def["test_name"])
}

func TestListOpenTestsRequiresKind(t *testing.T) {
	e := newEnv(t, model.RoleLab)
	e.identify(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/open-tests", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRememberSelectionRoundtrip(t *testing.T) {
	e := newEnv(t, model.RoleLab)
	e.identify(t)
	consultation := e.newConsultation(t, []string{"CBC", "Glucose"}, nil)

	payload := fmt.Sprintf(`{"consultation_id":%q,"test_name":"Glucose","kind":"report"}`, consultation.ID)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/last-selection", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The remembered pick becomes the default.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/open-tests?kind=report", nil)
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	def := data["default"].(map[string]interface{})
	assert.Equal(t, "Glucose", def["test_name"])
}

func TestRememberSelectionRejectsBadKind(t *testing.T) {
	e := newEnv(t, model.RoleLab)

	payload := fmt.Sprintf(`{"consultation_id":%q,"test_name":"CBC","kind":"video"}`, uuid.New())
	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/last-selection", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeFileRoundtrip(t *testing.T) {
	e := newEnv(t, model.RoleLab)
	e.identify(t)
	consultation := e.newConsultation(t, []string{"CBC"}, nil)

	body, contentType := multipartUpload(t, "file", "cbc.pdf", map[string]string{
		"dmeId":   consultation.ID.String(),
		"labTest": "CBC",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/deliverables/reports", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stored, err := e.deliverables.ListByConsultation(context.Background(), consultation.ID, model.KindReport)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/uploads/"+stored[0].StoragePath, nil)
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 test payload", rec.Body.String())
}

func TestServeFileMissing(t *testing.T) {
	e := newEnv(t, model.RoleLab)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/1234-deadbeef.pdf", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
