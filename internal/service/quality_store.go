package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"clipstream/video-app/internal/domain"
	"clipstream/video-app/internal/repository"
)

// --- Error Definitions ---
var (
	ErrPersistence = errors.New("persistence failed after retries")
)

// --- Service Interface ---

// QualityStore persists per-quality artifact records. Save retries
// transient failures; SaveAll is a direct bulk write without retry.
type QualityStore interface {
	Save(ctx context.Context, record *domain.QualityRecord) (*domain.QualityRecord, error)
	SaveAll(ctx context.Context, records []domain.QualityRecord) error
}

// --- Service Implementation ---

const (
	saveMaxAttempts = 3
	saveBackoffBase = 500 * time.Millisecond
)

// qualityStore implements the QualityStore interface.
type qualityStore struct {
	qualityRepo repository.QualityRepository
	maxAttempts int
	backoffBase time.Duration
	sleep       func(time.Duration)
}

// NewQualityStore creates a new instance of qualityStore.
func NewQualityStore(qualityRepo repository.QualityRepository) QualityStore {
	return &qualityStore{
		qualityRepo: qualityRepo,
		maxAttempts: saveMaxAttempts,
		backoffBase: saveBackoffBase,
		sleep:       time.Sleep,
	}
}

// Save writes one quality record, retrying with exponential backoff
// (500ms doubling per attempt). Retry exhaustion surfaces ErrPersistence;
// the caller abandons that quality's record, not the whole job.
func (s *qualityStore) Save(ctx context.Context, record *domain.QualityRecord) (*domain.QualityRecord, error) {
	backoff := s.backoffBase
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		saved, err := s.qualityRepo.Create(ctx, record)
		if err == nil {
			log.Printf("INFO: Saved quality record %s for video %s on attempt %d", saved.Quality, saved.VideoID.Hex(), attempt)
			return saved, nil
		}
		lastErr = err
		log.Printf("WARN: Failed to save quality record (attempt %d/%d): %v", attempt, s.maxAttempts, err)
		if attempt == s.maxAttempts {
			break
		}
		s.sleep(backoff)
		backoff *= 2
	}
	return nil, fmt.Errorf("%w: %v", ErrPersistence, lastErr)
}

// SaveAll bulk-writes records in one call, no retry.
func (s *qualityStore) SaveAll(ctx context.Context, records []domain.QualityRecord) error {
	return s.qualityRepo.CreateAll(ctx, records)
}
