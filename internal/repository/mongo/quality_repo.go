package mongo

import (
	"context"
	"errors"
	"log"
	"time"

	"clipstream/video-app/internal/domain"
	"clipstream/video-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const qualityCollectionName = "video_qualities"

// mongoQualityRepository implements repository.QualityRepository
type mongoQualityRepository struct {
	collection *mongo.Collection
}

// NewMongoQualityRepository creates a new quality record repository backed by MongoDB.
func NewMongoQualityRepository(db *mongo.Database) repository.QualityRepository {
	return &mongoQualityRepository{
		collection: db.Collection(qualityCollectionName),
	}
}

// Create inserts one quality record. Inserts are append-only; a repeated
// (video, quality) pair gets a new row rather than an update.
func (r *mongoQualityRepository) Create(ctx context.Context, record *domain.QualityRecord) (*domain.QualityRecord, error) {
	if record.VideoID == primitive.NilObjectID || record.Quality == "" {
		return nil, errors.New("quality record requires videoId and quality")
	}

	record.ID = primitive.NewObjectID()
	record.CreatedAt = time.Now().UTC()
	if record.Status == "" {
		record.Status = domain.QualityStatusPending
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// CreateAll bulk-inserts quality records in one call.
func (r *mongoQualityRepository) CreateAll(ctx context.Context, records []domain.QualityRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(records))
	now := time.Now().UTC()
	for i := range records {
		records[i].ID = primitive.NewObjectID()
		records[i].CreatedAt = now
		if records[i].Status == "" {
			records[i].Status = domain.QualityStatusPending
		}
		docs = append(docs, records[i])
	}

	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

// GetByVideoID returns all quality records for a video, newest first.
func (r *mongoQualityRepository) GetByVideoID(ctx context.Context, videoID primitive.ObjectID) ([]domain.QualityRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"videoId": videoID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []domain.QualityRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// EnsureQualityIndexes creates indexes for the video_qualities collection.
func EnsureQualityIndexes(ctx context.Context, collection *mongo.Collection) {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "videoId", Value: 1}, {Key: "quality", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, models); err != nil {
		log.Printf("WARN: Failed to ensure quality indexes: %v", err)
	}
}
