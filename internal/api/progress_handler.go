package api

import (
	"io"
	"net/http"
	"time"

	"clipstream/video-app/internal/progress"

	"github.com/gin-gonic/gin"
)

// sseInterval is the cadence of progress snapshots on the SSE stream.
const sseInterval = time.Second

type ProgressHandler struct {
	tracker *progress.Tracker
}

func NewProgressHandler(tracker *progress.Tracker) *ProgressHandler {
	return &ProgressHandler{tracker: tracker}
}

// GetProgress handles GET /api/v1/uploads/:uploadId/progress with a single
// point-in-time snapshot.
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	session, ok := h.tracker.Get(c.Param("uploadId"))
	if !ok {
		abortWithError(c, http.StatusNotFound, "Upload session not found or expired.")
		return
	}
	c.JSON(http.StatusOK, session)
}

// StreamProgress handles GET /api/v1/uploads/:uploadId/progress/stream as
// Server-Sent Events. One snapshot per second; the stream closes after the
// terminal snapshot is sent, or immediately if the session vanished.
func (h *ProgressHandler) StreamProgress(c *gin.Context) {
	uploadID := c.Param("uploadId")
	if _, ok := h.tracker.Get(uploadID); !ok {
		abortWithError(c, http.StatusNotFound, "Upload session not found or expired.")
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ticker := time.NewTicker(sseInterval)
	defer ticker.Stop()
	clientGone := c.Request.Context().Done()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case <-ticker.C:
			session, ok := h.tracker.Get(uploadID)
			if !ok {
				return false
			}
			c.SSEvent("progress", session)
			return !session.Phase.Terminal()
		}
	})
}
