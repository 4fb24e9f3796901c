package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QualityStatus tracks the state of one transcoded rendition.
type QualityStatus string

const (
	QualityStatusPending    QualityStatus = "PENDING"
	QualityStatusProcessing QualityStatus = "PROCESSING"
	QualityStatusCompleted  QualityStatus = "COMPLETED"
	QualityStatusFailed     QualityStatus = "FAILED"
)

// VideoQuality describes one tier of the fixed quality ladder.
// Resolution and Bitrate are empty for the original (passthrough) tier.
type VideoQuality struct {
	Name       string
	Resolution string // "1920x1080", "1280x720", ...
	Bitrate    string // "5000k", "3000k", ...
}

var (
	QualityOriginal = VideoQuality{Name: "ORIGINAL"}
	Quality1080p    = VideoQuality{Name: "1080p", Resolution: "1920x1080", Bitrate: "5000k"}
	Quality720p     = VideoQuality{Name: "720p", Resolution: "1280x720", Bitrate: "3000k"}
	Quality480p     = VideoQuality{Name: "480p", Resolution: "854x480", Bitrate: "1500k"}
	Quality360p     = VideoQuality{Name: "360p", Resolution: "640x360", Bitrate: "800k"}
)

// TranscodeLadder returns the encode tiers produced from one source video.
// The ORIGINAL tier is the stored source rendition and is never re-encoded,
// so it is not part of the encode plan.
func TranscodeLadder() []VideoQuality {
	return []VideoQuality{Quality1080p, Quality720p, Quality480p, Quality360p}
}

// QualityByName resolves a ladder tier from its wire name ("720p" etc).
func QualityByName(name string) (VideoQuality, bool) {
	for _, q := range append([]VideoQuality{QualityOriginal}, TranscodeLadder()...) {
		if q.Name == name {
			return q, true
		}
	}
	return VideoQuality{}, false
}

// QualityRecord persists the outcome of one (video, quality) transcoding run.
// Records are append-only: a retried quality produces a new row, and callers
// resolve current state by picking the most recent row per (video, quality).
type QualityRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VideoID     primitive.ObjectID `bson:"videoId" json:"videoId"`
	Quality     string             `bson:"quality" json:"quality"`
	Resolution  string             `bson:"resolution" json:"resolution"`
	Bitrate     string             `bson:"bitrate,omitempty" json:"bitrate,omitempty"`
	ObjectKey   string             `bson:"objectKey" json:"-"`
	SizeBytes   int64              `bson:"sizeBytes" json:"sizeBytes"`
	ContentType string             `bson:"contentType" json:"contentType"`
	BucketName  string             `bson:"bucketName" json:"-"`
	Status      QualityStatus      `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
