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
	"strings"

	"clipstream/video-app/internal/config"
	"clipstream/video-app/internal/domain"
	"clipstream/video-app/internal/encoder"
	"clipstream/video-app/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Encoder produces a segmented DASH package from a local input file.
type Encoder interface {
	Run(ctx context.Context, inputPath, outputDir string, plan []domain.VideoQuality) error
}

// --- Service Interface ---

// TranscodeService consumes transcoding job events: download the original,
// encode the requested quality plan, upload the package and record the
// completed qualities. Job failure is terminal for the event; the bus's
// redelivery policy is the only retry.
type TranscodeService interface {
	HandleJobMessage(ctx context.Context, key string, payload []byte) error
	Transcode(ctx context.Context, event domain.TranscodingJobEvent) error
}

// --- Service Implementation ---

// transcodeService implements the TranscodeService interface.
type transcodeService struct {
	objects storage.ObjectStorage
	enc     Encoder
	store   QualityStore
	s3cfg   config.S3Config
}

// NewTranscodeService creates a new instance of transcodeService.
func NewTranscodeService(objects storage.ObjectStorage, enc Encoder, store QualityStore, s3cfg config.S3Config) TranscodeService {
	return &transcodeService{
		objects: objects,
		enc:     enc,
		store:   store,
		s3cfg:   s3cfg,
	}
}

// HandleJobMessage adapts the event-bus payload to Transcode. Used as the
// subscription handler, one invocation per in-flight event.
func (s *transcodeService) HandleJobMessage(ctx context.Context, key string, payload []byte) error {
	var event domain.TranscodingJobEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("ERROR: Invalid transcoding event payload (key %s): %v", key, err)
		return err
	}
	log.Printf("INFO: Received transcoding event for video %s quality %q", event.VideoID, event.Quality)
	return s.Transcode(ctx, event)
}

// Transcode runs one job end to end. An empty event quality means the full
// multi-bitrate ladder in one combined output.
func (s *transcodeService) Transcode(ctx context.Context, event domain.TranscodingJobEvent) error {
	videoID, err := primitive.ObjectIDFromHex(event.VideoID)
	if err != nil {
		return fmt.Errorf("invalid video id %q: %w", event.VideoID, err)
	}

	plan, bucket, err := s.resolvePlan(event.Quality)
	if err != nil {
		log.Printf("ERROR: Cannot resolve quality plan for video %s: %v", event.VideoID, err)
		return err
	}

	inputPath, err := s.downloadOriginal(ctx, event.OriginalObjectKey)
	if err != nil {
		log.Printf("ERROR: Failed to download original %s for video %s: %v", event.OriginalObjectKey, event.VideoID, err)
		return err
	}
	defer func() {
		if err := os.Remove(inputPath); err != nil && !os.IsNotExist(err) {
			log.Printf("WARN: Failed to delete temp input %s: %v", inputPath, err)
		}
	}()

	outputDir, err := os.MkdirTemp("", "dash-output-")
	if err != nil {
		return &storage.StorageError{Op: "tempdir", Err: err}
	}
	defer encoder.RemoveTree(outputDir)

	if err := s.enc.Run(ctx, inputPath, outputDir, plan); err != nil {
		log.Printf("ERROR: Encoding failed for video %s quality %q: %v", event.VideoID, event.Quality, err)
		return err
	}

	baseKey := objectKeyBase(event.OriginalObjectKey)
	if err := s.uploadPackage(ctx, bucket, baseKey, outputDir); err != nil {
		log.Printf("ERROR: Failed to upload DASH package for video %s: %v", event.VideoID, err)
		return err
	}

	s.recordCompletedQualities(ctx, videoID, plan, bucket, baseKey)
	log.Printf("INFO: Completed transcoding for video %s quality %q", event.VideoID, event.Quality)
	return nil
}

// resolvePlan maps the event quality to an encode plan and output bucket.
func (s *transcodeService) resolvePlan(quality string) ([]domain.VideoQuality, string, error) {
	if quality == "" {
		return domain.TranscodeLadder(), s.s3cfg.DefaultQualityBucket, nil
	}
	q, ok := domain.QualityByName(quality)
	if !ok || q.Resolution == "" {
		return nil, "", fmt.Errorf("unknown encode quality %q", quality)
	}
	return []domain.VideoQuality{q}, s.s3cfg.BucketForQuality(quality), nil
}

func (s *transcodeService) downloadOriginal(ctx context.Context, objectKey string) (string, error) {
	body, err := s.objects.Get(ctx, s.s3cfg.Bucket, objectKey)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tempInput, err := os.CreateTemp("", "input-*.mp4")
	if err != nil {
		return "", &storage.StorageError{Op: "tempfile", Err: err}
	}
	if _, err := io.Copy(tempInput, body); err != nil {
		tempInput.Close()
		os.Remove(tempInput.Name())
		return "", &storage.StorageError{Op: "download", Err: err}
	}
	if err := tempInput.Close(); err != nil {
		os.Remove(tempInput.Name())
		return "", err
	}
	return tempInput.Name(), nil
}

// uploadPackage puts every produced file under "{base}/dash/" in the
// resolved bucket.
func (s *transcodeService) uploadPackage(ctx context.Context, bucket, baseKey, outputDir string) error {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		localPath := filepath.Join(outputDir, entry.Name())
		destKey := baseKey + "/dash/" + entry.Name()

		file, err := os.Open(localPath)
		if err != nil {
			return err
		}
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return err
		}
		err = s.objects.Put(ctx, bucket, destKey, file, info.Size(), packageContentType(entry.Name()))
		file.Close()
		if err != nil {
			return err
		}
		log.Printf("INFO: Uploaded DASH file %s to bucket %s", destKey, bucket)
	}
	return nil
}

// recordCompletedQualities writes one COMPLETED record per produced
// quality, all pointing at the shared manifest. A record that exhausts
// save retries is abandoned without failing the job.
func (s *transcodeService) recordCompletedQualities(ctx context.Context, videoID primitive.ObjectID, plan []domain.VideoQuality, bucket, baseKey string) {
	manifestKey := baseKey + "/dash/" + encoder.ManifestName
	for _, q := range plan {
		record := &domain.QualityRecord{
			VideoID:     videoID,
			Quality:     q.Name,
			Resolution:  q.Resolution,
			Bitrate:     q.Bitrate,
			ObjectKey:   manifestKey,
			SizeBytes:   0,
			ContentType: "application/dash+xml",
			BucketName:  bucket,
			Status:      domain.QualityStatusCompleted,
		}
		if _, err := s.store.Save(ctx, record); err != nil {
			if errors.Is(err, ErrPersistence) {
				log.Printf("ERROR: Abandoning quality record %s for video %s: %v", q.Name, videoID.Hex(), err)
				continue
			}
			log.Printf("ERROR: Failed to save quality record %s for video %s: %v", q.Name, videoID.Hex(), err)
			continue
		}
		log.Printf("INFO: Created quality record %s for video %s", q.Name, videoID.Hex())
	}
}

// objectKeyBase strips only the extension. Object keys carry a uuid right
// before the extension, so the base stays unique per video and package
// roots never collide in the output bucket.
func objectKeyBase(objectKey string) string {
	return strings.TrimSuffix(objectKey, filepath.Ext(objectKey))
}

func packageContentType(fileName string) string {
	switch {
	case strings.HasSuffix(fileName, ".mpd"):
		return "application/dash+xml"
	case strings.HasSuffix(fileName, ".m4s"):
		return "video/iso.segment"
	default:
		return "application/octet-stream"
	}
}
