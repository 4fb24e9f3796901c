package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"clipstream/video-app/internal/domain"
	"clipstream/video-app/internal/repository"
	"clipstream/video-app/internal/service"

	"github.com/gin-gonic/gin"
)

// ownerHeader identifies the uploading client. Identity management lives
// in a fronting gateway; this service trusts the header as-is.
const ownerHeader = "X-Owner-Id"

type VideoHandler struct {
	uploadService   service.UploadService
	deliveryService service.DeliveryService
}

func NewVideoHandler(uploadService service.UploadService, deliveryService service.DeliveryService) *VideoHandler {
	return &VideoHandler{
		uploadService:   uploadService,
		deliveryService: deliveryService,
	}
}

// --- DTOs ---

type VideoResponse struct {
	ID               string    `json:"id"`
	OriginalFileName string    `json:"originalFileName"`
	ContentType      string    `json:"contentType"`
	SizeBytes        int64     `json:"sizeBytes"`
	Status           string    `json:"status"`
	HasThumbnail     bool      `json:"hasThumbnail"`
	CreatedAt        time.Time `json:"createdAt"`
}

type UploadResponse struct {
	UploadID string        `json:"uploadId"`
	Video    VideoResponse `json:"video"`
}

func mapVideoToResponse(asset *domain.VideoAsset) VideoResponse {
	return VideoResponse{
		ID:               asset.ID.Hex(),
		OriginalFileName: asset.OriginalFileName,
		ContentType:      asset.ContentType,
		SizeBytes:        asset.SizeBytes,
		Status:           string(asset.Status),
		HasThumbnail:     asset.ThumbnailObjectKey != "",
		CreatedAt:        asset.CreatedAt,
	}
}

// --- Handler Methods ---

// UploadVideo handles POST /api/v1/videos. The multipart "file" part is
// streamed straight into ingestion; the response carries the uploadId for
// progress polling alongside the persisted asset.
func (h *VideoHandler) UploadVideo(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Video file is required (multipart field 'file').")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Failed to read uploaded file.")
		return
	}
	defer file.Close()

	ownerID := c.GetHeader(ownerHeader)
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	asset, uploadID, err := h.uploadService.Ingest(
		c.Request.Context(),
		file,
		fileHeader.Filename,
		fileHeader.Size,
		contentType,
		ownerID,
	)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("ERROR: Video ingestion failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, "Failed to process uploaded video.")
		return
	}

	c.JSON(http.StatusCreated, UploadResponse{
		UploadID: uploadID,
		Video:    mapVideoToResponse(asset),
	})
}

// ListMyVideos handles GET /api/v1/videos, scoped by the owner header.
func (h *VideoHandler) ListMyVideos(c *gin.Context) {
	videos, err := h.uploadService.ListVideosByOwner(c.Request.Context(), c.GetHeader(ownerHeader))
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve videos.")
		return
	}

	responses := make([]VideoResponse, 0, len(videos))
	for i := range videos {
		responses = append(responses, mapVideoToResponse(&videos[i]))
	}
	c.JSON(http.StatusOK, responses)
}

// GetVideo handles GET /api/v1/videos/:videoId.
func (h *VideoHandler) GetVideo(c *gin.Context) {
	asset, err := h.deliveryService.GetVideo(c.Request.Context(), c.Param("videoId"))
	if err != nil {
		h.deliveryError(c, err, "Failed to retrieve video.")
		return
	}
	c.JSON(http.StatusOK, mapVideoToResponse(asset))
}

// GetThumbnail handles GET /api/v1/videos/:videoId/thumbnail.
func (h *VideoHandler) GetThumbnail(c *gin.Context) {
	body, err := h.deliveryService.GetThumbnail(c.Request.Context(), c.Param("videoId"))
	if err != nil {
		h.deliveryError(c, err, "Failed to retrieve thumbnail.")
		return
	}
	defer body.Close()
	c.DataFromReader(http.StatusOK, -1, "image/jpeg", body, nil)
}

// GetQualities handles GET /api/v1/videos/:videoId/qualities.
func (h *VideoHandler) GetQualities(c *gin.Context) {
	qualities, err := h.deliveryService.ListQualities(c.Request.Context(), c.Param("videoId"))
	if err != nil {
		h.deliveryError(c, err, "Failed to retrieve video qualities.")
		return
	}
	c.JSON(http.StatusOK, qualities)
}

// GetManifest handles GET /api/v1/videos/:videoId/manifest.mpd.
func (h *VideoHandler) GetManifest(c *gin.Context) {
	body, err := h.deliveryService.GetManifest(c.Request.Context(), c.Param("videoId"))
	if err != nil {
		h.deliveryError(c, err, "Failed to retrieve manifest.")
		return
	}
	defer body.Close()
	c.DataFromReader(http.StatusOK, -1, "application/dash+xml", body, nil)
}

// GetSegment handles GET /api/v1/videos/:videoId/dash/:segment.
func (h *VideoHandler) GetSegment(c *gin.Context) {
	body, contentType, err := h.deliveryService.GetSegment(c.Request.Context(), c.Param("videoId"), c.Param("segment"))
	if err != nil {
		h.deliveryError(c, err, "Failed to retrieve segment.")
		return
	}
	defer body.Close()
	c.DataFromReader(http.StatusOK, -1, contentType, body, nil)
}

func (h *VideoHandler) deliveryError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "Video not found.")
	case errors.Is(err, service.ErrNotReady):
		abortWithError(c, http.StatusNotFound, "Video is not ready for playback yet.")
	default:
		log.Printf("ERROR: Delivery request failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, fallback)
	}
}
