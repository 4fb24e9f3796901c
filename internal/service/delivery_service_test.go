package service

import (
	"context"
	"io"
	"testing"

	"clipstream/video-app/internal/domain"
	"clipstream/video-app/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type deliveryFixture struct {
	service     DeliveryService
	videoRepo   *fakeVideoRepo
	qualityRepo *fakeQualityRepo
	storage     *fakeStorage
}

func newDeliveryFixture(t *testing.T) *deliveryFixture {
	t.Helper()
	f := &deliveryFixture{
		videoRepo:   &fakeVideoRepo{},
		qualityRepo: &fakeQualityRepo{},
		storage:     newFakeStorage(),
	}
	f.service = NewDeliveryService(f.videoRepo, f.qualityRepo, f.storage)
	return f
}

func (f *deliveryFixture) seedVideo(t *testing.T, thumbnailKey string) *domain.VideoAsset {
	t.Helper()
	asset := &domain.VideoAsset{
		OriginalFileName:   "clip.mp4",
		ObjectKey:          "clip-abc.mp4",
		OwnerID:            "owner-1",
		Bucket:             "videos",
		ThumbnailObjectKey: thumbnailKey,
		Status:             domain.AssetStatusUploaded,
	}
	_, err := f.videoRepo.Create(context.Background(), asset)
	require.NoError(t, err)
	return asset
}

func (f *deliveryFixture) seedCompletedRun(t *testing.T, videoID primitive.ObjectID, qualities ...string) {
	t.Helper()
	for _, q := range qualities {
		_, err := f.qualityRepo.Create(context.Background(), &domain.QualityRecord{
			VideoID:     videoID,
			Quality:     q,
			ObjectKey:   "clip-abc/dash/manifest.mpd",
			ContentType: "application/dash+xml",
			BucketName:  "videos-transcoded",
			Status:      domain.QualityStatusCompleted,
		})
		require.NoError(t, err)
	}
}

func TestGetVideoNotFound(t *testing.T) {
	f := newDeliveryFixture(t)

	_, err := f.service.GetVideo(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = f.service.GetVideo(context.Background(), "not-a-hex-id")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetThumbnail(t *testing.T) {
	f := newDeliveryFixture(t)
	asset := f.seedVideo(t, "thumbnails/clip-abc.jpg")
	f.storage.objects["thumbnails/clip-abc.jpg"] = storedObject{bucket: "videos", contentType: "image/jpeg", data: []byte{0xFF, 0xD8}}

	body, err := f.service.GetThumbnail(context.Background(), asset.ID.Hex())
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, data)
}

func TestGetThumbnailMissing(t *testing.T) {
	f := newDeliveryFixture(t)
	asset := f.seedVideo(t, "")

	_, err := f.service.GetThumbnail(context.Background(), asset.ID.Hex())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetManifestBeforeTranscodingFinishes(t *testing.T) {
	f := newDeliveryFixture(t)
	asset := f.seedVideo(t, "")

	_, err := f.service.GetManifest(context.Background(), asset.ID.Hex())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestGetManifest(t *testing.T) {
	f := newDeliveryFixture(t)
	asset := f.seedVideo(t, "")
	f.seedCompletedRun(t, asset.ID, "720p")
	f.storage.objects["clip-abc/dash/manifest.mpd"] = storedObject{bucket: "videos-transcoded", data: []byte("<MPD/>")}

	body, err := f.service.GetManifest(context.Background(), asset.ID.Hex())
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "<MPD/>", string(data))
}

func TestGetSegment(t *testing.T) {
	f := newDeliveryFixture(t)
	asset := f.seedVideo(t, "")
	f.seedCompletedRun(t, asset.ID, "720p")
	f.storage.objects["clip-abc/dash/chunk-0-3.m4s"] = storedObject{bucket: "videos-transcoded", data: []byte("segment bytes")}

	body, contentType, err := f.service.GetSegment(context.Background(), asset.ID.Hex(), "chunk-0-3.m4s")
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, "video/iso.segment", contentType)
}

func TestGetSegmentRejectsTraversal(t *testing.T) {
	f := newDeliveryFixture(t)
	asset := f.seedVideo(t, "")
	f.seedCompletedRun(t, asset.ID, "720p")

	for _, name := range []string{"", "../secrets", "a/b.m4s", "..", "foo/../bar"} {
		_, _, err := f.service.GetSegment(context.Background(), asset.ID.Hex(), name)
		assert.ErrorIs(t, err, repository.ErrNotFound, "segment name %q", name)
	}
}

func TestListQualitiesDeduplicatesByNewest(t *testing.T) {
	f := newDeliveryFixture(t)
	asset := f.seedVideo(t, "")

	// An earlier failed run followed by a completed retry: the newer
	// record wins for the shared quality.
	_, err := f.qualityRepo.Create(context.Background(), &domain.QualityRecord{
		VideoID: asset.ID, Quality: "720p", Status: domain.QualityStatusFailed,
	})
	require.NoError(t, err)
	f.seedCompletedRun(t, asset.ID, "720p", "480p")

	infos, err := f.service.ListQualities(context.Background(), asset.ID.Hex())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	byQuality := map[string]QualityInfo{}
	for _, info := range infos {
		byQuality[info.Quality] = info
	}
	assert.Equal(t, domain.QualityStatusCompleted, byQuality["720p"].Status)
	assert.NotEmpty(t, byQuality["720p"].DownloadURL)
	assert.NotEmpty(t, byQuality["480p"].DownloadURL)
}

func TestListQualitiesOmitsURLForIncomplete(t *testing.T) {
	f := newDeliveryFixture(t)
	asset := f.seedVideo(t, "")
	_, err := f.qualityRepo.Create(context.Background(), &domain.QualityRecord{
		VideoID: asset.ID, Quality: "1080p", Status: domain.QualityStatusPending,
	})
	require.NoError(t, err)

	infos, err := f.service.ListQualities(context.Background(), asset.ID.Hex())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Empty(t, infos[0].DownloadURL)
}

func TestListQualitiesUnknownVideo(t *testing.T) {
	f := newDeliveryFixture(t)
	_, err := f.service.ListQualities(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
