package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/aymanebs/emr-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError maps the application error taxonomy onto HTTP statuses in
// one place so every handler reports failures the same way.
func RespondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	case apperrors.ErrBadRequest, apperrors.ErrInvalidFormat:
		status = http.StatusBadRequest
	case apperrors.ErrUnauthorized:
		status = http.StatusUnauthorized
	case apperrors.ErrForbidden:
		status = http.StatusForbidden
	case apperrors.ErrConflict, apperrors.ErrTestNotOpen, apperrors.ErrNoActivePatient:
		status = http.StatusConflict
	case apperrors.ErrWriteFailure, apperrors.ErrStoreWriteFailure:
		status = http.StatusBadGateway
	}
	c.JSON(status, NewErrorResponse(err.Error()))
}
