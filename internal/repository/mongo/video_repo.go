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

const videoCollectionName = "videos"

// mongoVideoRepository implements repository.VideoRepository
type mongoVideoRepository struct {
	collection *mongo.Collection
}

// NewMongoVideoRepository creates a new video asset repository backed by MongoDB.
func NewMongoVideoRepository(db *mongo.Database) repository.VideoRepository {
	return &mongoVideoRepository{
		collection: db.Collection(videoCollectionName),
	}
}

// Create inserts a new video asset record.
func (r *mongoVideoRepository) Create(ctx context.Context, asset *domain.VideoAsset) (primitive.ObjectID, error) {
	if asset.ObjectKey == "" || asset.Bucket == "" {
		return primitive.NilObjectID, errors.New("video asset requires objectKey and bucket")
	}

	asset.ID = primitive.NewObjectID()
	asset.CreatedAt = time.Now().UTC()
	if asset.Status == "" {
		asset.Status = domain.AssetStatusUploaded
	}

	result, err := r.collection.InsertOne(ctx, asset)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves a video asset by its ID.
func (r *mongoVideoRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.VideoAsset, error) {
	var asset domain.VideoAsset
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&asset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// GetByOwnerID retrieves all video assets uploaded by one owner, newest first.
func (r *mongoVideoRepository) GetByOwnerID(ctx context.Context, ownerID string) ([]domain.VideoAsset, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"ownerId": ownerID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assets []domain.VideoAsset
	if err := cursor.All(ctx, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// EnsureVideoIndexes creates indexes for the videos collection.
func EnsureVideoIndexes(ctx context.Context, collection *mongo.Collection) {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "objectKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, models); err != nil {
		log.Printf("WARN: Failed to ensure video indexes: %v", err)
	}
}
