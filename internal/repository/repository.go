package repository

import (
	"context"

	"clipstream/video-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer
var (
	ErrNotFound = RepositoryError("not found")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// VideoRepository defines the interface for interacting with video assets.
type VideoRepository interface {
	Create(ctx context.Context, asset *domain.VideoAsset) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.VideoAsset, error)
	GetByOwnerID(ctx context.Context, ownerID string) ([]domain.VideoAsset, error)
}

// QualityRepository defines the interface for quality record persistence.
// Records are append-only; GetByVideoID returns newest first so callers
// can resolve current state per (video, quality) by taking the first row.
type QualityRepository interface {
	Create(ctx context.Context, record *domain.QualityRecord) (*domain.QualityRecord, error)
	CreateAll(ctx context.Context, records []domain.QualityRecord) error
	GetByVideoID(ctx context.Context, videoID primitive.ObjectID) ([]domain.QualityRecord, error)
}
