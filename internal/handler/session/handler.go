package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aymanebs/emr-api/internal/handler"
	"github.com/aymanebs/emr-api/internal/middleware"
	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/service/patient"
	"github.com/aymanebs/emr-api/internal/session"
	apperrors "github.com/aymanebs/emr-api/pkg/errors"
	"github.com/aymanebs/emr-api/pkg/metrics"
)

// Handler manages the session's active-patient binding: the patient an
// operator identified (QR scan or search) and is about to act on.
type Handler struct {
	patients patient.PatientService
	sessions session.Store
	metrics  *metrics.Metrics
}

func NewHandler(patients patient.PatientService, sessions session.Store, m *metrics.Metrics) *Handler {
	return &Handler{patients: patients, sessions: sessions, metrics: m}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/sessions")
	{
		sessions.POST("/active-patient", h.IdentifyPatient)
		sessions.GET("/active-patient", h.GetActivePatient)
		sessions.DELETE("/active-patient", h.ClearActivePatient)
	}
}

// IdentifyPatient resolves a scanned national identifier and pins the
// patient to the session, replacing any previous binding.
func (h *Handler) IdentifyPatient(c *gin.Context) {
	op, ok := requireBehalfRole(c)
	if !ok {
		return
	}

	var req model.IdentifyPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	found, err := h.patients.GetByNationalID(c.Request.Context(), req.NationalID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	active := &model.ActivePatient{
		PatientID:  found.ID,
		NationalID: found.NationalID,
		FullName:   found.FullName(),
		SetAt:      time.Now(),
	}
	if err := h.sessions.SetActivePatient(c.Request.Context(), op.SessionID, active); err != nil {
		handler.RespondError(c, err)
		return
	}

	h.metrics.ActivePatientSwaps.Inc()
	c.JSON(http.StatusOK, handler.NewSuccessResponse(active))
}

func (h *Handler) GetActivePatient(c *gin.Context) {
	op, ok := requireBehalfRole(c)
	if !ok {
		return
	}

	active, err := h.sessions.GetActivePatient(c.Request.Context(), op.SessionID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if active == nil {
		handler.RespondError(c, apperrors.NoActivePatient())
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(active))
}

func (h *Handler) ClearActivePatient(c *gin.Context) {
	op, ok := requireBehalfRole(c)
	if !ok {
		return
	}

	if err := h.sessions.ClearActivePatient(c.Request.Context(), op.SessionID); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"cleared": true}))
}

// requireBehalfRole rejects roles whose own identity is the subject: they
// have no use for an active-patient binding.
func requireBehalfRole(c *gin.Context) (*model.OperatorContext, bool) {
	op, ok := middleware.OperatorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return nil, false
	}
	if !op.Role.ActsOnBehalfOfPatient() {
		c.JSON(http.StatusForbidden, handler.NewErrorResponse("role does not use an active patient"))
		return nil, false
	}
	return op, true
}
