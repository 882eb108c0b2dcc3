// Package handler implements the HTTP handlers of the order sync API.
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/application/ordersync"
	"github.com/fbsamples/cp-reference/internal/domain/integration"
	"github.com/fbsamples/cp-reference/internal/domain/shared"
	"github.com/fbsamples/cp-reference/internal/infrastructure/logger"
	"github.com/fbsamples/cp-reference/internal/infrastructure/scheduler"
	"github.com/fbsamples/cp-reference/internal/infrastructure/telemetry"
	"github.com/fbsamples/cp-reference/internal/interfaces/http/dto"
	"github.com/fbsamples/cp-reference/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 response for work that runs in the background
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// ErrorWithCode sends an error response, deriving status code from error code.
// The trace ID is included when the request is traced.
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	resp := dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c))
	resp.Error.TraceID = telemetry.GetTraceID(c.Request.Context())
	c.JSON(dto.GetHTTPStatus(code), resp)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.ErrorWithCode(c, dto.ErrCodeBadRequest, message)
}

// errorMapping pairs a sentinel with the API error it surfaces as
type errorMapping struct {
	target  error
	code    string
	message string
}

// Checked in order. Domain errors are handled before this table.
var errorMappings = []errorMapping{
	{ordersync.ErrSyncInProgress, dto.ErrCodeSyncInProgress, "A sync is already running for this store"},
	{integration.ErrCredentialsNotFound, dto.ErrCodeNotConnected, "Store is not connected to the commerce platform"},
	{integration.ErrRemoteRejected, dto.ErrCodeRemoteRejected, "Commerce platform rejected the request"},
	{integration.ErrRemoteUnavailable, dto.ErrCodeRemoteUnavailable, "Commerce platform is unavailable"},
	{integration.ErrInvalidResponse, dto.ErrCodeRemoteUnavailable, "Commerce platform returned an invalid response"},
	{integration.ErrPaginationLimitExceeded, dto.ErrCodeRemoteUnavailable, "Commerce platform listing exceeded the page limit"},
	{integration.ErrInvalidRequest, dto.ErrCodeInvalidInput, "Invalid request for the commerce platform"},
	{integration.ErrBatchLimitExceeded, dto.ErrCodeInvalidInput, "Too many orders in one acknowledgment"},
	{scheduler.ErrJobQueueFull, dto.ErrCodeSchedulerBusy, "Sync queue is full, retry later"},
	{scheduler.ErrSchedulerNotRunning, dto.ErrCodeSchedulerBusy, "Sync scheduler is not running"},
}

// HandleError converts domain and integration errors to HTTP responses.
// Anything unrecognized is logged and answered with a 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.ErrorWithCode(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			logger.GetGinLogger(c).Warn("Request failed", zap.String("code", m.code), zap.Error(err))
			h.ErrorWithCode(c, m.code, m.message)
			return
		}
	}

	logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
	h.ErrorWithCode(c, dto.ErrCodeInternal, "An unexpected error occurred")
}

// bindStoreID binds the :store_id path parameter, writing the 400 itself on failure
func (h *BaseHandler) bindStoreID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.StoreRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.StoreID)
	if err != nil {
		h.BadRequest(c, "Invalid store ID")
		return uuid.Nil, false
	}
	logger.WithGinStoreID(c, id.String())
	return id, true
}

// bindOrderID binds the :id path parameter, writing the 400 itself on failure
func (h *BaseHandler) bindOrderID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return uuid.Nil, false
	}
	return id, true
}

// bindOptionalJSON binds a JSON body that may be absent. An empty body still
// goes through struct validation so required fields are reported.
func (h *BaseHandler) bindOptionalJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(req)
	}
	if err == nil {
		return true
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		middleware.HandleValidationError(c, err)
		return false
	}
	h.ErrorWithCode(c, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
	return false
}
