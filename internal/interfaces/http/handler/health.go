package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/infrastructure/logger"
	"github.com/fbsamples/cp-reference/internal/interfaces/http/dto"
	"github.com/fbsamples/cp-reference/internal/interfaces/http/middleware"
)

// Pinger checks a backing dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchedulerStatus reports whether the sync scheduler is accepting jobs
type SchedulerStatus interface {
	IsRunning() bool
}

// HealthHandler serves liveness and system information
type HealthHandler struct {
	BaseHandler
	name      string
	version   string
	db        Pinger
	scheduler SchedulerStatus
	timeout   time.Duration
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler. scheduler may be nil when
// periodic sync is disabled.
func NewHealthHandler(name, version string, db Pinger, scheduler SchedulerStatus) *HealthHandler {
	return &HealthHandler{
		name:      name,
		version:   version,
		db:        db,
		scheduler: scheduler,
		timeout:   2 * time.Second,
		startTime: time.Now(),
	}
}

// HealthResponse is the body of a health check
type HealthResponse struct {
	Status    string `json:"status"`
	Time      string `json:"time"`
	Database  string `json:"database"`
	Scheduler string `json:"scheduler"`
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health godoc
// @ID           getHealth
// @Summary      Health check
// @Description  Pings the database and reports the sync scheduler state
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=HealthResponse}
// @Failure      503 {object} dto.Response
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Time:      time.Now().Format(time.RFC3339),
		Database:  "ok",
		Scheduler: "disabled",
	}
	if h.scheduler != nil {
		resp.Scheduler = "stopped"
		if h.scheduler.IsRunning() {
			resp.Scheduler = "running"
		}
	}

	if err := h.db.Ping(ctx); err != nil {
		logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "error"
		c.JSON(http.StatusServiceUnavailable, dto.Response{
			Success: false,
			Data:    resp,
			Error: &dto.ErrorInfo{
				Code:      dto.ErrCodeServiceUnhealthy,
				Message:   "Database is unreachable",
				RequestID: middleware.GetRequestID(c),
			},
		})
		return
	}

	h.Success(c, resp)
}

// SystemInfo godoc
// @ID           getSystemInfo
// @Summary      Get system information
// @Description  Returns the service name, version, Go version and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=SystemInfoResponse}
// @Failure      500 {object} dto.Response
// @Router       /system/info [get]
func (h *HealthHandler) SystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// RegisterRoutes mounts the system info route under the API group
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/system/info", h.SystemInfo)
}
