package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/athulya-anil/axon-ingest/pkg/models"
)

// statusEvents handles GET /status/:id/events. It pushes the request status
// as Server-Sent Events until the request is done or the client goes away.
func (a *API) statusEvents(c *gin.Context) {
	id := c.Param("id")

	req, err := a.service.Status(id)
	if err != nil {
		a.writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()

	ticker := time.NewTicker(a.streamInterval)
	defer ticker.Stop()

	for {
		if !a.writeStatusEvent(c, req) || req.Status == models.StatusDone {
			return
		}

		select {
		case <-clientGone:
			return
		case <-ticker.C:
			req, err = a.service.Status(id)
			if err != nil {
				a.logger.Warn("status stream lost request", zap.String("request_id", id), zap.Error(err))
				return
			}
		}
	}
}

// writeStatusEvent sends one status event. It returns false if the snapshot
// could not be encoded.
func (a *API) writeStatusEvent(c *gin.Context, req *models.Request) bool {
	data, err := json.Marshal(req)
	if err != nil {
		a.logger.Error("failed to encode status event", zap.String("request_id", req.ID), zap.Error(err))
		return false
	}

	fmt.Fprintf(c.Writer, "event: status\n")
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
	return true
}
