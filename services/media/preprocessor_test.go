package media

import (
	"context"
	"os"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"socialplane/pkg/config"
	"socialplane/pkg/ffmpeg"
	"socialplane/services/channels"
	"socialplane/services/testutil"
)

type fakeStore struct {
	gets []string
	puts []string
}

func (s *fakeStore) FGetObject(ctx context.Context, bucket, object, filePath string, opts minio.GetObjectOptions) error {
	s.gets = append(s.gets, object)
	return os.WriteFile(filePath, []byte("original-bytes"), 0o644)
}

func (s *fakeStore) FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	s.puts = append(s.puts, object)
	return minio.UploadInfo{Bucket: bucket, Key: object}, nil
}

func newTestPreprocessor(t *testing.T, db *gorm.DB, store *fakeStore, transforms *int) *Preprocessor {
	t.Helper()

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Minio.Endpoint = "cdn.test:9000"
	cfg.Minio.BucketName = "media"

	return &Preprocessor{
		db:    db,
		store: store,
		node:  node,
		cfg:   cfg,
		transform: func(inputPath, outputPath string, spec ffmpeg.AspectSpec) error {
			if transforms != nil {
				*transforms++
			}
			return os.WriteFile(outputPath, []byte("rendition-bytes"), 0o644)
		},
	}
}

func seedImage(t *testing.T, db *gorm.DB, id string, size int64) {
	t.Helper()
	require.NoError(t, db.Create(&Asset{
		ID:        id,
		BrandID:   "brand-1",
		ObjectKey: "originals/" + id + ".jpg",
		Mime:      "image/jpeg",
		SizeBytes: size,
		Width:     2000,
		Height:    2000,
	}).Error)
}

func TestEnsureTextOnlyDraft(t *testing.T) {
	db := testutil.NewTestDB(t, &Asset{}, &ProcessedImage{})
	p := newTestPreprocessor(t, db, &fakeStore{}, nil)

	prepared, err := p.Ensure(context.Background(), nil, channels.Facebook)
	require.NoError(t, err)
	require.Empty(t, prepared.AssetURL)
}

func TestEnsureGeneratesAndCachesRendition(t *testing.T) {
	db := testutil.NewTestDB(t, &Asset{}, &ProcessedImage{})
	store := &fakeStore{}
	var transforms int
	p := newTestPreprocessor(t, db, store, &transforms)

	seedImage(t, db, "asset-1", 1<<20)

	prepared, err := p.Ensure(context.Background(), []string{"asset-1"}, channels.InstagramFeed)
	require.NoError(t, err)
	require.Equal(t, "http://cdn.test:9000/media/renditions/asset-1_4x5.jpg", prepared.AssetURL)
	require.False(t, prepared.IsVideo)
	require.Equal(t, 1, transforms)
	require.Equal(t, []string{"renditions/asset-1_4x5.jpg"}, store.puts)

	// Second call reuses the cache row without transforming again.
	prepared, err = p.Ensure(context.Background(), []string{"asset-1"}, channels.InstagramFeed)
	require.NoError(t, err)
	require.Equal(t, "http://cdn.test:9000/media/renditions/asset-1_4x5.jpg", prepared.AssetURL)
	require.Equal(t, 1, transforms)
}

func TestEnsureSeparateRenditionPerRatio(t *testing.T) {
	db := testutil.NewTestDB(t, &Asset{}, &ProcessedImage{})
	var transforms int
	p := newTestPreprocessor(t, db, &fakeStore{}, &transforms)

	seedImage(t, db, "asset-2", 1<<20)

	_, err := p.Ensure(context.Background(), []string{"asset-2"}, channels.InstagramFeed)
	require.NoError(t, err)
	_, err = p.Ensure(context.Background(), []string{"asset-2"}, channels.InstagramStory)
	require.NoError(t, err)
	require.Equal(t, 2, transforms)

	var count int64
	require.NoError(t, db.Model(&ProcessedImage{}).Where("asset_id = ?", "asset-2").Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestEnsureFacebookUsesOriginal(t *testing.T) {
	db := testutil.NewTestDB(t, &Asset{}, &ProcessedImage{})
	var transforms int
	p := newTestPreprocessor(t, db, &fakeStore{}, &transforms)

	seedImage(t, db, "asset-3", 1<<20)

	prepared, err := p.Ensure(context.Background(), []string{"asset-3"}, channels.Facebook)
	require.NoError(t, err)
	require.Equal(t, "http://cdn.test:9000/media/originals/asset-3.jpg", prepared.AssetURL)
	require.Zero(t, transforms)
}

func TestEnsureOversizedAssetFailsValidation(t *testing.T) {
	db := testutil.NewTestDB(t, &Asset{}, &ProcessedImage{})
	p := newTestPreprocessor(t, db, &fakeStore{}, nil)

	seedImage(t, db, "asset-4", 20<<20)

	_, err := p.Ensure(context.Background(), []string{"asset-4"}, channels.InstagramFeed)
	require.Error(t, err)
	require.True(t, IsValidation(err))
	require.Contains(t, err.Error(), "file too large")
}

func TestEnsureUnsupportedFormatFailsValidation(t *testing.T) {
	db := testutil.NewTestDB(t, &Asset{}, &ProcessedImage{})
	p := newTestPreprocessor(t, db, &fakeStore{}, nil)

	require.NoError(t, db.Create(&Asset{
		ID:        "asset-5",
		Mime:      "image/webp",
		SizeBytes: 1024,
	}).Error)

	_, err := p.Ensure(context.Background(), []string{"asset-5"}, channels.InstagramFeed)
	require.True(t, IsValidation(err))
	require.Contains(t, err.Error(), "unsupported format")
}

func TestEnsureMissingAssetFailsValidation(t *testing.T) {
	db := testutil.NewTestDB(t, &Asset{}, &ProcessedImage{})
	p := newTestPreprocessor(t, db, &fakeStore{}, nil)

	_, err := p.Ensure(context.Background(), []string{"ghost"}, channels.InstagramFeed)
	require.True(t, IsValidation(err))
}

func TestEnsureVideoPassesThrough(t *testing.T) {
	db := testutil.NewTestDB(t, &Asset{}, &ProcessedImage{})
	var transforms int
	p := newTestPreprocessor(t, db, &fakeStore{}, &transforms)

	require.NoError(t, db.Create(&Asset{
		ID:        "vid-1",
		ObjectKey: "originals/vid-1.mp4",
		Mime:      "video/mp4",
		SizeBytes: 50 << 20,
	}).Error)

	prepared, err := p.Ensure(context.Background(), []string{"vid-1"}, channels.InstagramFeed)
	require.NoError(t, err)
	require.True(t, prepared.IsVideo)
	require.Equal(t, "http://cdn.test:9000/media/originals/vid-1.mp4", prepared.AssetURL)
	require.Zero(t, transforms)
}
