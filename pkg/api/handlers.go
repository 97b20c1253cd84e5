// Package api exposes the ingestion service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/athulya-anil/axon-ingest/pkg/ingest"
	"github.com/athulya-anil/axon-ingest/pkg/models"
)

// Service is the part of the scheduler the API depends on.
type Service interface {
	Submit(ids []int64, priority string) (string, error)
	Status(id string) (*models.Request, error)
	QueueDepths() map[models.Priority]int
}

// API wraps the scheduler service and provides HTTP handlers
type API struct {
	service        Service
	logger         *zap.Logger
	streamInterval time.Duration
}

// NewAPI creates a new API instance. streamInterval paces the status event
// stream; a non-positive value falls back to one second.
func NewAPI(s Service, logger *zap.Logger, streamInterval time.Duration) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if streamInterval <= 0 {
		streamInterval = time.Second
	}
	return &API{
		service:        s,
		logger:         logger.Named("api"),
		streamInterval: streamInterval,
	}
}

// SetupRoutes configures all API routes. ingestMiddleware runs in front of
// POST /ingest only.
func (a *API) SetupRoutes(router *gin.Engine, ingestMiddleware ...gin.HandlerFunc) {
	router.GET("/", a.welcome)

	// Ingestion endpoints
	router.POST("/ingest", append(ingestMiddleware, a.ingest)...)
	router.GET("/status/:id", a.getStatus)
	router.GET("/status/:id/events", a.statusEvents)

	// Operational endpoints
	router.GET("/health", a.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// IngestRequest represents the payload for submitting identifiers. IDs are
// kept raw so that each element can be checked for being an integer.
type IngestRequest struct {
	IDs      []json.RawMessage `json:"ids"`
	Priority string            `json:"priority"`
}

// IngestResponse is returned for an accepted submission.
type IngestResponse struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}

// welcome handles GET /
func (a *API) welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "axon-ingest",
		"endpoints": []string{
			"POST /ingest",
			"GET /status/:id",
			"GET /status/:id/events",
			"GET /health",
			"GET /metrics",
		},
	})
}

// ingest handles POST /ingest
func (a *API) ingest(c *gin.Context) {
	var req IngestRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_input",
			"message": "request body must be a JSON object with ids and priority: " + err.Error(),
		})
		return
	}

	ids, err := ingest.ParseIdentifiers(req.IDs)
	if err != nil {
		a.writeError(c, err)
		return
	}

	requestID, err := a.service.Submit(ids, req.Priority)
	if err != nil {
		a.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, IngestResponse{
		RequestID: requestID,
		Message:   "request accepted",
	})
}

// getStatus handles GET /status/:id
func (a *API) getStatus(c *gin.Context) {
	req, err := a.service.Status(c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

// healthCheck handles GET /health
func (a *API) healthCheck(c *gin.Context) {
	depths := a.service.QueueDepths()
	lanes := make(map[string]int, len(depths))
	total := 0
	for p, n := range depths {
		lanes[string(p)] = n
		total += n
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"queue_length": total,
		"lanes":        lanes,
		"timestamp":    time.Now(),
	})
}

// writeError maps service errors onto status codes.
func (a *API) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	default:
		a.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "internal error"})
	}
}
