package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"clipstream/video-app/internal/config"
	"clipstream/video-app/internal/domain"
	"clipstream/video-app/internal/events"
	"clipstream/video-app/internal/progress"
	"clipstream/video-app/internal/repository"
	"clipstream/video-app/internal/storage"

	"github.com/google/uuid"
)

// --- Error Definitions ---
var (
	ErrValidation = errors.New("validation failed")
)

// ThumbnailExtractor captures a still frame from a local video file.
type ThumbnailExtractor interface {
	Extract(ctx context.Context, inputPath, outputPath string) error
}

// --- Service Interface ---

// UploadService orchestrates video ingestion: validation, progress-tracked
// streaming to object storage, thumbnail extraction, asset persistence and
// per-quality transcoding job fan-out.
type UploadService interface {
	Ingest(ctx context.Context, file io.Reader, fileName string, size int64, contentType, ownerID string) (*domain.VideoAsset, string, error)
	ListVideosByOwner(ctx context.Context, ownerID string) ([]domain.VideoAsset, error)
}

// --- Service Implementation ---

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// uploadService implements the UploadService interface.
type uploadService struct {
	videoRepo   repository.VideoRepository
	objects     storage.ObjectStorage
	bus         events.EventBus
	tracker     *progress.Tracker
	thumbnailer ThumbnailExtractor
	s3cfg       config.S3Config
	eventsCfg   config.EventsConfig
}

// NewUploadService creates a new instance of uploadService.
func NewUploadService(
	videoRepo repository.VideoRepository,
	objects storage.ObjectStorage,
	bus events.EventBus,
	tracker *progress.Tracker,
	thumbnailer ThumbnailExtractor,
	s3cfg config.S3Config,
	eventsCfg config.EventsConfig,
) UploadService {
	return &uploadService{
		videoRepo:   videoRepo,
		objects:     objects,
		bus:         bus,
		tracker:     tracker,
		thumbnailer: thumbnailer,
		s3cfg:       s3cfg,
		eventsCfg:   eventsCfg,
	}
}

// Ingest runs the whole upload sequence on the caller's stack and returns
// the persisted asset together with the uploadId used for progress polling.
func (s *uploadService) Ingest(ctx context.Context, file io.Reader, fileName string, size int64, contentType, ownerID string) (*domain.VideoAsset, string, error) {
	uploadID := uuid.NewString()

	if file == nil || size <= 0 {
		return nil, uploadID, fmt.Errorf("%w: video file must not be empty", ErrValidation)
	}
	if strings.TrimSpace(fileName) == "" {
		fileName = fmt.Sprintf("video-%d", time.Now().UnixMilli())
	}

	// Session exists before the first byte moves so pollers never miss
	// the UPLOADING phase.
	s.tracker.Create(uploadID, fileName, size)

	objectKey := buildObjectKey(fileName)

	// The source stream is consumed exactly once: counted for progress,
	// teed to a local temp copy for thumbnail extraction, and streamed
	// to object storage.
	tempCopy, err := os.CreateTemp("", "upload-*"+filepath.Ext(objectKey))
	if err != nil {
		s.tracker.Fail(uploadID, err.Error())
		return nil, uploadID, &storage.StorageError{Op: "tempfile", Err: err}
	}
	defer func() {
		tempCopy.Close()
		if err := os.Remove(tempCopy.Name()); err != nil && !os.IsNotExist(err) {
			log.Printf("WARN: Failed to delete temp upload copy %s: %v", tempCopy.Name(), err)
		}
	}()

	counted := &countingReader{
		reader: io.TeeReader(file, tempCopy),
		onRead: func(total int64) { s.tracker.AdvanceBytes(uploadID, total) },
	}

	s.tracker.SetPhase(uploadID, progress.PhaseUploading, "Uploading video to storage...")
	if err := s.objects.Put(ctx, s.s3cfg.Bucket, objectKey, counted, size, contentType); err != nil {
		s.tracker.Fail(uploadID, "Failed to store video: "+err.Error())
		return nil, uploadID, err
	}

	// Thumbnail failure never fails the upload; the asset just ships
	// without one.
	s.tracker.SetPhase(uploadID, progress.PhaseThumbnail, "Extracting video thumbnail...")
	thumbnailKey, err := s.extractAndUploadThumbnail(ctx, tempCopy.Name(), objectKey)
	if err != nil {
		log.Printf("WARN: Failed to extract thumbnail for video %s, continuing without thumbnail: %v", objectKey, err)
		thumbnailKey = ""
	}

	s.tracker.SetPhase(uploadID, progress.PhaseProcessing, "Saving video metadata...")
	asset := &domain.VideoAsset{
		OriginalFileName:   fileName,
		ObjectKey:          objectKey,
		OwnerID:            ownerID,
		ContentType:        contentType,
		SizeBytes:          size,
		Bucket:             s.s3cfg.Bucket,
		ThumbnailObjectKey: thumbnailKey,
		Status:             domain.AssetStatusUploaded,
	}
	assetID, err := s.videoRepo.Create(ctx, asset)
	if err != nil {
		s.tracker.Fail(uploadID, "Failed to save video metadata: "+err.Error())
		return nil, uploadID, err
	}

	s.tracker.SetPhase(uploadID, progress.PhaseTranscoding, "Starting video transcoding...")
	s.dispatchTranscodingJobs(ctx, assetID.Hex(), objectKey, contentType)
	s.publishUploadedEvent(ctx, asset)

	s.tracker.Complete(uploadID, assetID.Hex())
	return asset, uploadID, nil
}

// ListVideosByOwner returns all assets uploaded by one owner.
func (s *uploadService) ListVideosByOwner(ctx context.Context, ownerID string) ([]domain.VideoAsset, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner ID is required", ErrValidation)
	}
	return s.videoRepo.GetByOwnerID(ctx, ownerID)
}

// dispatchTranscodingJobs publishes one job event per ladder tier, keyed
// "{videoId}-{quality}" so jobs for one video spread across partitions.
// Publish failures are logged, not retried: a lost job means that quality
// is never produced, which monitoring has to catch.
func (s *uploadService) dispatchTranscodingJobs(ctx context.Context, videoID, objectKey, contentType string) {
	for _, quality := range domain.TranscodeLadder() {
		event := domain.TranscodingJobEvent{
			VideoID:           videoID,
			OriginalObjectKey: objectKey,
			ContentType:       contentType,
			Quality:           quality.Name,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("ERROR: Failed to marshal transcoding event for %s quality %s: %v", videoID, quality.Name, err)
			continue
		}
		key := videoID + "-" + quality.Name
		if err := s.bus.Publish(ctx, s.eventsCfg.TranscodeTopic, key, payload); err != nil {
			log.Printf("ERROR: Failed to send transcoding event for %s quality %s: %v", videoID, quality.Name, err)
			continue
		}
		log.Printf("INFO: Sent transcoding event for %s quality %s to topic %s", videoID, quality.Name, s.eventsCfg.TranscodeTopic)
	}
}

func (s *uploadService) publishUploadedEvent(ctx context.Context, asset *domain.VideoAsset) {
	event := domain.VideoUploadedEvent{
		VideoID:     asset.ID.Hex(),
		ObjectKey:   asset.ObjectKey,
		Bucket:      asset.Bucket,
		SizeBytes:   asset.SizeBytes,
		ContentType: asset.ContentType,
		UploadedAt:  asset.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR: Failed to marshal upload event for %s: %v", asset.ID.Hex(), err)
		return
	}
	if err := s.bus.Publish(ctx, s.eventsCfg.UploadTopic, asset.ID.Hex(), payload); err != nil {
		log.Printf("ERROR: Failed to publish video upload event for %s: %v", asset.ID.Hex(), err)
		return
	}
	log.Printf("INFO: Published video upload event for %s to topic %s", asset.ID.Hex(), s.eventsCfg.UploadTopic)
}

// extractAndUploadThumbnail captures a still from the local copy and puts
// it under the thumbnail prefix of the originals bucket. Returns the
// thumbnail object key.
func (s *uploadService) extractAndUploadThumbnail(ctx context.Context, videoPath, objectKey string) (string, error) {
	thumbFile, err := os.CreateTemp("", "thumb-*.jpg")
	if err != nil {
		return "", err
	}
	thumbPath := thumbFile.Name()
	thumbFile.Close()
	defer func() {
		if err := os.Remove(thumbPath); err != nil && !os.IsNotExist(err) {
			log.Printf("WARN: Failed to delete temp thumbnail %s: %v", thumbPath, err)
		}
	}()

	if err := s.thumbnailer.Extract(ctx, videoPath, thumbPath); err != nil {
		return "", err
	}

	thumb, err := os.Open(thumbPath)
	if err != nil {
		return "", err
	}
	defer thumb.Close()
	info, err := thumb.Stat()
	if err != nil {
		return "", err
	}

	thumbnailKey := s.s3cfg.ThumbnailPrefix + strings.TrimSuffix(objectKey, filepath.Ext(objectKey)) + ".jpg"
	if err := s.objects.Put(ctx, s.s3cfg.Bucket, thumbnailKey, thumb, info.Size(), "image/jpeg"); err != nil {
		return "", err
	}

	log.Printf("INFO: Uploaded thumbnail %s for video %s", thumbnailKey, objectKey)
	return thumbnailKey, nil
}

// buildObjectKey derives a collision-resistant storage key: the sanitized
// original name plus a random suffix, original extension preserved.
func buildObjectKey(fileName string) string {
	sanitized := unsafeKeyChars.ReplaceAllString(fileName, "_")
	ext := filepath.Ext(sanitized)
	base := strings.TrimSuffix(sanitized, ext)
	if base == "" {
		base = "video"
	}
	return base + "-" + uuid.NewString() + ext
}

// countingReader advances the progress tracker on the same call stack as
// every network read, so reported progress tracks real I/O, not a sample.
type countingReader struct {
	reader io.Reader
	total  int64
	onRead func(total int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	if n > 0 {
		c.total += int64(n)
		c.onRead(c.total)
	}
	return n, err
}
