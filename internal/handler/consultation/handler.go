package consultation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aymanebs/emr-api/internal/handler"
	"github.com/aymanebs/emr-api/internal/middleware"
	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/service/consultation"
)

type Handler struct {
	service consultation.ConsultationService
}

func NewHandler(service consultation.ConsultationService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	consultations := r.Group("/consultations")
	{
		consultations.POST("", h.CreateConsultation)
		consultations.GET("/:id", h.GetConsultation)
	}
	r.GET("/patients/:id/consultations", h.ListByPatient)
}

func (h *Handler) CreateConsultation(c *gin.Context) {
	op, ok := middleware.OperatorFrom(c)
	if !ok || op.Role != model.RoleClinician {
		c.JSON(http.StatusForbidden, handler.NewErrorResponse("only clinicians can create consultations"))
		return
	}

	var req model.CreateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.CreateConsultation(c.Request.Context(), op.UserID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) GetConsultation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid consultation ID"))
		return
	}

	found, err := h.service.GetConsultation(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

func (h *Handler) ListByPatient(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}

	consultations, err := h.service.ListByPatient(c.Request.Context(), patientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(consultations))
}
