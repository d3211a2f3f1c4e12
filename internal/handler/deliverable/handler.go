package deliverable

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aymanebs/emr-api/internal/filestore"
	"github.com/aymanebs/emr-api/internal/handler"
	"github.com/aymanebs/emr-api/internal/middleware"
	"github.com/aymanebs/emr-api/internal/model"
	"github.com/aymanebs/emr-api/internal/service/fulfillment"
	apperrors "github.com/aymanebs/emr-api/pkg/errors"
)

type Handler struct {
	service fulfillment.FulfillmentService
	files   filestore.Store
}

func NewHandler(service fulfillment.FulfillmentService, files filestore.Store) *Handler {
	return &Handler{service: service, files: files}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	deliverables := r.Group("/deliverables")
	{
		deliverables.POST("/reports", h.UploadReport)
		deliverables.POST("/images", h.UploadImage)
		deliverables.GET("/:id", h.GetDeliverable)
	}

	r.GET("/open-tests", h.ListOpenTests)
	r.GET("/consultations/:id/open-tests", h.ListConsultationOpenTests)
	r.PUT("/sessions/last-selection", h.RememberSelection)
	r.GET("/patients/:id/deliverables", h.ListPatientDeliverables)
}

// RegisterFileRoute exposes stored files for retrieval. Read-only; the only
// protection is the unguessable generated name, matching the metadata the
// deliverable records point at.
func (h *Handler) RegisterFileRoute(r *gin.RouterGroup) {
	r.GET("/uploads/:name", h.ServeFile)
}

// UploadReport fulfills a requested lab test with a document file.
// Multipart fields: file, patientId, dmeId, labTest, description.
func (h *Handler) UploadReport(c *gin.Context) {
	h.upload(c, model.KindReport, "file", "labTest")
}

// UploadImage fulfills a requested imaging test with a raster image.
// Multipart fields: image, patientId, dmeId, imgTest, description.
func (h *Handler) UploadImage(c *gin.Context) {
	h.upload(c, model.KindImage, "image", "imgTest")
}

func (h *Handler) upload(c *gin.Context, kind model.DeliverableKind, fileField, testField string) {
	op, ok := middleware.OperatorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	// Required fields are checked before the file is even read, so a
	// malformed submission never touches disk.
	consultationID, err := uuid.Parse(c.PostForm("dmeId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("missing or invalid dmeId"))
		return
	}

	testName := strings.TrimSpace(c.PostForm(testField))
	if testName == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("missing "+testField))
		return
	}

	fileHeader, err := c.FormFile(fileField)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("missing "+fileField))
		return
	}

	// The patientId field is advisory: the authoritative subject comes from
	// the operator context. A mismatch means the UI state is stale.
	if raw := c.PostForm("patientId"); raw != "" {
		claimed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patientId"))
			return
		}
		subject, err := h.service.SubjectPatient(c.Request.Context(), op)
		if err != nil {
			handler.RespondError(c, err)
			return
		}
		if claimed != subject {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("patientId does not match the active patient"))
			return
		}
	}

	data, err := readUpload(fileHeader)
	if err != nil {
		handler.RespondError(c, apperrors.BadRequest("failed to read uploaded file", err))
		return
	}

	created, err := h.service.SubmitDeliverable(c.Request.Context(), op, &fulfillment.SubmitRequest{
		ConsultationID: consultationID,
		TestName:       testName,
		Kind:           kind,
		Description:    c.PostForm("description"),
		FileName:       fileHeader.Filename,
		Data:           data,
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"deliverable": created,
		"url":         h.files.URL(created.StoragePath),
	}))
}

// ListOpenTests returns every open slot for the subject patient, annotated
// with the default selection the UI should preselect.
func (h *Handler) ListOpenTests(c *gin.Context) {
	op, ok := middleware.OperatorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	kind := model.DeliverableKind(c.Query("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("kind must be report or image"))
		return
	}

	open, err := h.service.OpenTestsForPatient(c.Request.Context(), op, kind)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	selected, err := h.service.SelectDefault(c.Request.Context(), op, open)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"open_tests": open,
		"default":    selected,
	}))
}

func (h *Handler) ListConsultationOpenTests(c *gin.Context) {
	consultationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid consultation ID"))
		return
	}

	kind := model.DeliverableKind(c.Query("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("kind must be report or image"))
		return
	}

	open, err := h.service.OpenTests(c.Request.Context(), consultationID, kind)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(open))
}

type rememberSelectionRequest struct {
	ConsultationID string                `json:"consultation_id" binding:"required,uuid"`
	TestName       string                `json:"test_name" binding:"required"`
	Kind           model.DeliverableKind `json:"kind" binding:"required,kind"`
}

func (h *Handler) RememberSelection(c *gin.Context) {
	op, ok := middleware.OperatorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	var req rememberSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	selection := &model.LastSelection{
		ConsultationID: uuid.MustParse(req.ConsultationID),
		TestName:       req.TestName,
		Kind:           req.Kind,
	}
	if err := h.service.RememberSelection(c.Request.Context(), op, selection); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(selection))
}

func (h *Handler) ListPatientDeliverables(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}

	kind := model.DeliverableKind(c.Query("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("kind must be report or image"))
		return
	}

	deliverables, err := h.service.ListDeliverables(c.Request.Context(), patientID, kind)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(deliverables))
}

func (h *Handler) GetDeliverable(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid deliverable ID"))
		return
	}

	found, err := h.service.GetDeliverable(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"deliverable": found,
		"url":         h.files.URL(found.StoragePath),
	}))
}

func (h *Handler) ServeFile(c *gin.Context) {
	f, err := h.files.Open(c.Param("name"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		handler.RespondError(c, apperrors.Internal(err))
		return
	}

	c.Data(http.StatusOK, contentTypeFor(c.Param("name")), data)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	}
	return "application/octet-stream"
}
