package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"clipstream/video-app/internal/domain"
	"clipstream/video-app/internal/encoder"
	"clipstream/video-app/internal/repository"
	"clipstream/video-app/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrNotReady = errors.New("video has no completed qualities yet")
)

// QualityInfo is the delivery view of one available rendition: record
// metadata plus a short-lived presigned URL for direct download.
type QualityInfo struct {
	Quality     string               `json:"quality"`
	Resolution  string               `json:"resolution"`
	Bitrate     string               `json:"bitrate,omitempty"`
	Status      domain.QualityStatus `json:"status"`
	ContentType string               `json:"contentType"`
	DownloadURL string               `json:"downloadUrl,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// --- Service Interface ---

// DeliveryService serves the playback side: thumbnails, the DASH manifest
// and segments, and the list of available qualities.
type DeliveryService interface {
	GetVideo(ctx context.Context, videoID string) (*domain.VideoAsset, error)
	GetThumbnail(ctx context.Context, videoID string) (io.ReadCloser, error)
	GetManifest(ctx context.Context, videoID string) (io.ReadCloser, error)
	GetSegment(ctx context.Context, videoID, segmentName string) (io.ReadCloser, string, error)
	ListQualities(ctx context.Context, videoID string) ([]QualityInfo, error)
}

// --- Service Implementation ---

// deliveryService implements the DeliveryService interface.
type deliveryService struct {
	videoRepo   repository.VideoRepository
	qualityRepo repository.QualityRepository
	objects     storage.ObjectStorage
}

// NewDeliveryService creates a new instance of deliveryService.
func NewDeliveryService(videoRepo repository.VideoRepository, qualityRepo repository.QualityRepository, objects storage.ObjectStorage) DeliveryService {
	return &deliveryService{
		videoRepo:   videoRepo,
		qualityRepo: qualityRepo,
		objects:     objects,
	}
}

// GetVideo looks up one asset by its hex id.
func (s *deliveryService) GetVideo(ctx context.Context, videoID string) (*domain.VideoAsset, error) {
	id, err := primitive.ObjectIDFromHex(videoID)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return s.videoRepo.GetByID(ctx, id)
}

// GetThumbnail streams the stored thumbnail for a video.
func (s *deliveryService) GetThumbnail(ctx context.Context, videoID string) (io.ReadCloser, error) {
	asset, err := s.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if asset.ThumbnailObjectKey == "" {
		return nil, repository.ErrNotFound
	}
	return s.objects.Get(ctx, asset.Bucket, asset.ThumbnailObjectKey)
}

// GetManifest streams the DASH manifest of the most recently completed
// transcoding run for a video.
func (s *deliveryService) GetManifest(ctx context.Context, videoID string) (io.ReadCloser, error) {
	record, err := s.latestCompleted(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return s.objects.Get(ctx, record.BucketName, record.ObjectKey)
}

// GetSegment streams one DASH segment, resolved relative to the manifest's
// package directory. The segment name is passed through from the player,
// so it is validated to stay inside the package.
func (s *deliveryService) GetSegment(ctx context.Context, videoID, segmentName string) (io.ReadCloser, string, error) {
	if segmentName == "" || strings.Contains(segmentName, "..") || strings.Contains(segmentName, "/") {
		return nil, "", repository.ErrNotFound
	}
	record, err := s.latestCompleted(ctx, videoID)
	if err != nil {
		return nil, "", err
	}
	segmentKey := strings.TrimSuffix(record.ObjectKey, encoder.ManifestName) + segmentName
	body, err := s.objects.Get(ctx, record.BucketName, segmentKey)
	if err != nil {
		return nil, "", err
	}
	return body, packageContentType(segmentName), nil
}

// ListQualities returns the current state per ladder tier: the newest
// record per quality wins, and completed renditions carry a presigned URL.
func (s *deliveryService) ListQualities(ctx context.Context, videoID string) ([]QualityInfo, error) {
	id, err := primitive.ObjectIDFromHex(videoID)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	if _, err := s.videoRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	records, err := s.qualityRepo.GetByVideoID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Records arrive newest first; keep the first occurrence per quality.
	seen := make(map[string]bool, len(records))
	infos := make([]QualityInfo, 0, len(records))
	for _, record := range records {
		if seen[record.Quality] {
			continue
		}
		seen[record.Quality] = true

		info := QualityInfo{
			Quality:     record.Quality,
			Resolution:  record.Resolution,
			Bitrate:     record.Bitrate,
			Status:      record.Status,
			ContentType: record.ContentType,
			CreatedAt:   record.CreatedAt,
		}
		if record.Status == domain.QualityStatusCompleted {
			url, err := s.objects.PresignedGetURL(ctx, record.BucketName, record.ObjectKey, storage.DefaultPresignedURLExpiry)
			if err != nil {
				return nil, err
			}
			info.DownloadURL = url
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// latestCompleted finds the newest COMPLETED record for a video across
// all qualities. They all reference the same manifest per run.
func (s *deliveryService) latestCompleted(ctx context.Context, videoID string) (*domain.QualityRecord, error) {
	id, err := primitive.ObjectIDFromHex(videoID)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	records, err := s.qualityRepo.GetByVideoID(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Status == domain.QualityStatusCompleted {
			return &records[i], nil
		}
	}
	return nil, ErrNotReady
}
