package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"clipstream/video-app/internal/domain"
	"clipstream/video-app/internal/repository"
	"clipstream/video-app/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubUploadService struct {
	asset    *domain.VideoAsset
	uploadID string
	err      error
	gotOwner string
	gotName  string
	gotSize  int64
}

func (s *stubUploadService) Ingest(ctx context.Context, file io.Reader, fileName string, size int64, contentType, ownerID string) (*domain.VideoAsset, string, error) {
	s.gotOwner = ownerID
	s.gotName = fileName
	s.gotSize = size
	if s.err != nil {
		return nil, s.uploadID, s.err
	}
	return s.asset, s.uploadID, nil
}

func (s *stubUploadService) ListVideosByOwner(ctx context.Context, ownerID string) ([]domain.VideoAsset, error) {
	s.gotOwner = ownerID
	if s.err != nil {
		return nil, s.err
	}
	if s.asset == nil {
		return nil, nil
	}
	return []domain.VideoAsset{*s.asset}, nil
}

type stubDeliveryService struct {
	asset *domain.VideoAsset
	err   error
}

func (s *stubDeliveryService) GetVideo(ctx context.Context, videoID string) (*domain.VideoAsset, error) {
	return s.asset, s.err
}

func (s *stubDeliveryService) GetThumbnail(ctx context.Context, videoID string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader([]byte{0xFF, 0xD8})), nil
}

func (s *stubDeliveryService) GetManifest(ctx context.Context, videoID string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader([]byte("<MPD/>"))), nil
}

func (s *stubDeliveryService) GetSegment(ctx context.Context, videoID, segmentName string) (io.ReadCloser, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return io.NopCloser(bytes.NewReader([]byte("segment"))), "video/iso.segment", nil
}

func (s *stubDeliveryService) ListQualities(ctx context.Context, videoID string) ([]service.QualityInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []service.QualityInfo{{Quality: "720p", Status: domain.QualityStatusCompleted}}, nil
}

func newVideoRouter(t *testing.T, uploads *stubUploadService, delivery *stubDeliveryService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewVideoHandler(uploads, delivery)
	group := router.Group("/api/v1/videos")
	group.POST("", handler.UploadVideo)
	group.GET("/:videoId", handler.GetVideo)
	group.GET("/:videoId/manifest.mpd", handler.GetManifest)
	group.GET("/:videoId/dash/:segment", handler.GetSegment)
	group.GET("/:videoId/qualities", handler.GetQualities)
	return router
}

func multipartBody(t *testing.T, fieldName, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadVideo(t *testing.T) {
	asset := &domain.VideoAsset{
		ID:               primitive.NewObjectID(),
		OriginalFileName: "clip.mp4",
		ContentType:      "video/mp4",
		SizeBytes:        4,
		Status:           domain.AssetStatusUploaded,
	}
	uploads := &stubUploadService{asset: asset, uploadID: "upload-1"}
	router := newVideoRouter(t, uploads, &stubDeliveryService{})

	body, contentType := multipartBody(t, "file", "clip.mp4", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(ownerHeader, "owner-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "upload-1", resp.UploadID)
	assert.Equal(t, asset.ID.Hex(), resp.Video.ID)
	assert.Equal(t, "owner-1", uploads.gotOwner)
	assert.Equal(t, "clip.mp4", uploads.gotName)
	assert.Equal(t, int64(4), uploads.gotSize)
}

func TestUploadVideoMissingFile(t *testing.T) {
	router := newVideoRouter(t, &stubUploadService{}, &stubDeliveryService{})

	body, contentType := multipartBody(t, "wrong-field", "clip.mp4", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadVideoValidationError(t *testing.T) {
	uploads := &stubUploadService{err: service.ErrValidation, uploadID: "upload-1"}
	router := newVideoRouter(t, uploads, &stubDeliveryService{})

	body, contentType := multipartBody(t, "file", "clip.mp4", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVideoNotFoundMapsTo404(t *testing.T) {
	router := newVideoRouter(t, &stubUploadService{}, &stubDeliveryService{err: repository.ErrNotFound})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/abc", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetManifestNotReadyMapsTo404(t *testing.T) {
	router := newVideoRouter(t, &stubUploadService{}, &stubDeliveryService{err: service.ErrNotReady})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/abc/manifest.mpd", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "not ready")
}

func TestGetSegmentStreamsContent(t *testing.T) {
	router := newVideoRouter(t, &stubUploadService{}, &stubDeliveryService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/abc/dash/chunk-0-1.m4s", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/iso.segment", w.Header().Get("Content-Type"))
	assert.Equal(t, "segment", w.Body.String())
}
