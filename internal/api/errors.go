package api

import (
	"errors"
	"net/http"

	"asset-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorResponse maps a service error onto a status and JSON body
func errorResponse(err error) (int, gin.H) {
	body := gin.H{"details": err.Error()}

	var stepErr *service.InvoiceStepError
	if errors.As(err, &stepErr) {
		body["step"] = stepErr.Step
	}

	var (
		partial    *service.PartialApplicationError
		validation *service.ValidationError
		notFound   *service.NotFoundError
		conflict   *service.ConflictError
		dependency *service.DependencyError
	)
	switch {
	case errors.As(err, &partial):
		body["error"] = "Invoice saved but stock outcome is unconfirmed"
		body["invoiceNumber"] = partial.InvoiceNumber
		return http.StatusBadGateway, body
	case errors.As(err, &validation):
		body["error"] = "Validation failed"
		if validation.Field != "" {
			body["field"] = validation.Field
		}
		return http.StatusBadRequest, body
	case errors.As(err, &notFound):
		body["error"] = "Not found"
		return http.StatusNotFound, body
	case errors.As(err, &conflict):
		body["error"] = "Conflict"
		return http.StatusConflict, body
	case errors.As(err, &dependency):
		body["error"] = "Service temporarily unavailable"
		return http.StatusServiceUnavailable, body
	default:
		body["error"] = "Internal server error"
		return http.StatusInternalServerError, body
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.JSON(status, body)
}

func badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}
