package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipstream/video-app/internal/progress"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProgressRouter(t *testing.T) (*gin.Engine, *progress.Tracker) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tracker := progress.NewTracker(progress.Options{})
	t.Cleanup(tracker.Stop)

	router := gin.New()
	handler := NewProgressHandler(tracker)
	router.GET("/api/v1/uploads/:uploadId/progress", handler.GetProgress)
	return router, tracker
}

func TestGetProgressSnapshot(t *testing.T) {
	router, tracker := newProgressRouter(t)
	tracker.Create("u1", "clip.mp4", 1000)
	tracker.AdvanceBytes("u1", 400)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/u1/progress", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var session progress.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Equal(t, "u1", session.UploadID)
	assert.Equal(t, progress.PhaseUploading, session.Phase)
	assert.Equal(t, 40, session.Percentage)
}

func TestGetProgressUnknownSession(t *testing.T) {
	router, _ := newProgressRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/nope/progress", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "not found or expired")
}
