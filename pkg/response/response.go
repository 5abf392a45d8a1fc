package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
)

// Envelope is the standard response wrapper used by every handler.
type Envelope struct {
	Data       interface{} `json:"data,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination interface{} `json:"pagination,omitempty"`
	Meta       interface{} `json:"meta,omitempty"`
}

// ErrorBody carries the serialisable part of an error.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// JSON writes a success envelope with the given status.
func JSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Envelope{Data: data})
}

// Created writes a 201 envelope.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Paginated writes a success envelope with pagination info attached.
func Paginated(c *gin.Context, status int, data, pagination interface{}) {
	c.JSON(status, Envelope{Data: data, Pagination: pagination})
}

// NoContent writes a 204 with an empty body.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error normalises err and writes the error envelope.
func Error(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	c.JSON(appErr.Status, Envelope{Error: &ErrorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
	}})
}

// ErrorWithDetails writes an error envelope including structured details,
// used for field-level validation messages.
func ErrorWithDetails(c *gin.Context, err error, details interface{}) {
	appErr := apperrors.FromError(err)
	c.JSON(appErr.Status, Envelope{Error: &ErrorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: details,
	}})
}
