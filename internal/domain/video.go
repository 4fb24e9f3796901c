package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssetStatus tracks the lifecycle of an uploaded video asset.
type AssetStatus string

const (
	AssetStatusUploaded AssetStatus = "UPLOADED"
)

// VideoAsset stores metadata about an uploaded source video.
// The actual bytes reside in object storage under ObjectKey.
type VideoAsset struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OriginalFileName   string             `bson:"originalFileName" json:"originalFileName"`
	ObjectKey          string             `bson:"objectKey" json:"-"`
	OwnerID            string             `bson:"ownerId" json:"ownerId"`
	ContentType        string             `bson:"contentType" json:"contentType"`
	SizeBytes          int64              `bson:"sizeBytes" json:"sizeBytes"`
	Bucket             string             `bson:"bucket" json:"-"`
	ThumbnailObjectKey string             `bson:"thumbnailObjectKey,omitempty" json:"-"`
	Status             AssetStatus        `bson:"status" json:"status"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
}
