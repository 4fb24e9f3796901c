package domain

import "time"

// TranscodingJobEvent instructs the orchestrator to transcode one quality
// (or, when Quality is empty, the full ladder) for a given video.
// Delivered at least once; duplicate execution is tolerated.
type TranscodingJobEvent struct {
	VideoID           string `json:"videoId"`
	OriginalObjectKey string `json:"originalObjectKey"`
	ContentType       string `json:"contentType"`
	Quality           string `json:"quality,omitempty"`
}

// VideoUploadedEvent announces a completed ingestion. Informational only,
// consumed by collaborators outside this pipeline.
type VideoUploadedEvent struct {
	VideoID     string    `json:"videoId"`
	ObjectKey   string    `json:"objectKey"`
	Bucket      string    `json:"bucket"`
	SizeBytes   int64     `json:"sizeBytes"`
	ContentType string    `json:"contentType"`
	UploadedAt  time.Time `json:"uploadedAt"`
}
