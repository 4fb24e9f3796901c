package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clipstream/video-app/internal/domain"
	"clipstream/video-app/internal/events"
	"clipstream/video-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory fakes shared across the service tests.

type fakeVideoRepo struct {
	mu        sync.Mutex
	assets    []domain.VideoAsset
	createErr error
}

func (f *fakeVideoRepo) Create(ctx context.Context, asset *domain.VideoAsset) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return primitive.NilObjectID, f.createErr
	}
	asset.ID = primitive.NewObjectID()
	asset.CreatedAt = time.Now().UTC()
	f.assets = append(f.assets, *asset)
	return asset.ID, nil
}

func (f *fakeVideoRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.VideoAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.assets {
		if f.assets[i].ID == id {
			asset := f.assets[i]
			return &asset, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeVideoRepo) GetByOwnerID(ctx context.Context, ownerID string) ([]domain.VideoAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.VideoAsset
	for _, a := range f.assets {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeQualityRepo struct {
	mu        sync.Mutex
	records   []domain.QualityRecord
	createErr []error // consumed one per Create call
}

func (f *fakeQualityRepo) Create(ctx context.Context, record *domain.QualityRecord) (*domain.QualityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErr) > 0 {
		err := f.createErr[0]
		f.createErr = f.createErr[1:]
		if err != nil {
			return nil, err
		}
	}
	record.ID = primitive.NewObjectID()
	record.CreatedAt = time.Now().UTC()
	f.records = append(f.records, *record)
	return record, nil
}

func (f *fakeQualityRepo) CreateAll(ctx context.Context, records []domain.QualityRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeQualityRepo) GetByVideoID(ctx context.Context, videoID primitive.ObjectID) ([]domain.QualityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Newest first, mirroring the real repository's sort order.
	var out []domain.QualityRecord
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].VideoID == videoID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

type storedObject struct {
	bucket      string
	contentType string
	data        []byte
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]storedObject
	putErr  error
	getErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]storedObject)}
}

func (f *fakeStorage) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = storedObject{bucket: bucket, contentType: contentType, data: data}
	return nil
}

func (f *fakeStorage) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	obj, ok := f.objects[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (f *fakeStorage) PresignedGetURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	return "https://storage.example/" + bucket + "/" + key, nil
}

type publishedMessage struct {
	topic   string
	key     string
	payload []byte
}

type fakeBus struct {
	mu         sync.Mutex
	published  []publishedMessage
	publishErr error
}

func (f *fakeBus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMessage{topic: topic, key: key, payload: payload})
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, topic, group string, handler events.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeBus) byTopic(topic string) []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedMessage
	for _, m := range f.published {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type fakeThumbnailer struct {
	err   error
	calls int
}

func (f *fakeThumbnailer) Extract(ctx context.Context, inputPath, outputPath string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return writeFakeJPEG(outputPath)
}

type encodeCall struct {
	inputPath string
	outputDir string
	plan      []domain.VideoQuality
}

type fakeEncoder struct {
	mu    sync.Mutex
	err   error
	calls []encodeCall
	// produce lists file names written into outputDir on success.
	produce []string
}

func (f *fakeEncoder) Run(ctx context.Context, inputPath, outputDir string, plan []domain.VideoQuality) error {
	f.mu.Lock()
	f.calls = append(f.calls, encodeCall{inputPath: inputPath, outputDir: outputDir, plan: plan})
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, name := range f.produce {
		if err := writeFile(outputDir, name); err != nil {
			return err
		}
	}
	return nil
}

func writeFakeJPEG(path string) error {
	return os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0o644)
}

func writeFile(dir, name string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte("content of "+name), 0o644)
}
