package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-resty/resty/v2"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"socialplane/pkg/config"
	"socialplane/pkg/ffmpeg"
	"socialplane/services/channels"
)

const (
	maxImageBytes = 8 << 20   // Graph API image_url limit
	maxVideoBytes = 100 << 20 // reels/story upload limit
)

var allowedMimes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"video/mp4":       true,
	"video/quicktime": true,
}

// ValidationError is a hard asset failure: the job fails immediately and no
// platform call is made. It still consumes the attempt budget.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "asset validation failed: " + e.Reason }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ObjectStore is the slice of the MinIO client the preprocessor uses.
type ObjectStore interface {
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Transform produces a rendition file from an original. Production uses
// ffmpeg; tests inject a stub.
type Transform func(inputPath, outputPath string, spec ffmpeg.AspectSpec) error

// Preprocessor lazily materializes platform-compliant renditions for a
// draft's assets and resolves the public URL a channel should publish.
type Preprocessor struct {
	db        *gorm.DB
	store     ObjectStore
	node      *snowflake.Node
	cfg       *config.Config
	transform Transform
	probe     func(path string) (width, height int, err error)
	client    *resty.Client
}

func NewPreprocessor(db *gorm.DB, store *minio.Client, node *snowflake.Node, cfg *config.Config) *Preprocessor {
	return &Preprocessor{
		db:        db,
		store:     store,
		node:      node,
		cfg:       cfg,
		transform: ffmpeg.CropToAspect,
		probe:     ffmpeg.Probe,
		client:    resty.New().SetTimeout(60 * time.Second),
	}
}

// Prepared is the outcome of preprocessing: the URL to hand the channel
// publisher, or empty for a text-only post.
type Prepared struct {
	AssetURL string
	IsVideo  bool
}

// specFor maps a channel to the rendition it needs. A zero spec means the
// channel publishes the original as-is.
func specFor(ch channels.Channel) ffmpeg.AspectSpec {
	switch ch {
	case channels.InstagramFeed:
		return ffmpeg.Feed
	case channels.InstagramStory:
		return ffmpeg.Story
	default:
		return ffmpeg.AspectSpec{}
	}
}

// Ensure validates the draft's assets for the channel and returns the
// publishable URL for the first one. It is idempotent: cached renditions
// are reused, and a concurrent duplicate compute is a last-writer-wins
// no-op on the cache row.
func (p *Preprocessor) Ensure(ctx context.Context, assetIDs []string, ch channels.Channel) (*Prepared, error) {
	if len(assetIDs) == 0 {
		return &Prepared{}, nil
	}

	var assets []Asset
	if err := p.db.WithContext(ctx).Where("id IN ?", assetIDs).Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}
	byID := make(map[string]*Asset, len(assets))
	for i := range assets {
		byID[assets[i].ID] = &assets[i]
	}

	// First asset in draft order is the one published; the rest are only
	// validated so a bad trailing asset surfaces now rather than later.
	var primary *Prepared
	for _, id := range assetIDs {
		asset, ok := byID[id]
		if !ok {
			return nil, &ValidationError{Reason: "asset " + id + " not found"}
		}
		if err := validate(asset); err != nil {
			return nil, err
		}

		if primary != nil {
			continue
		}

		url, err := p.resolve(ctx, asset, ch)
		if err != nil {
			return nil, err
		}
		primary = &Prepared{AssetURL: url, IsVideo: asset.IsVideo()}
	}

	return primary, nil
}

func validate(a *Asset) error {
	if !allowedMimes[a.Mime] {
		return &ValidationError{Reason: fmt.Sprintf("unsupported format %q", a.Mime)}
	}
	limit := int64(maxImageBytes)
	if a.IsVideo() {
		limit = maxVideoBytes
	}
	if a.SizeBytes > limit {
		return &ValidationError{Reason: fmt.Sprintf("file too large (%d bytes, limit %d)", a.SizeBytes, limit)}
	}
	return nil
}

// resolve returns the public URL to publish: a cached or freshly generated
// rendition when the channel needs one, the original otherwise.
func (p *Preprocessor) resolve(ctx context.Context, asset *Asset, ch channels.Channel) (string, error) {
	spec := specFor(ch)
	if spec.Name == "" || asset.IsVideo() {
		// Videos pass through untouched; the platform transcodes them.
		return p.originalURL(asset), nil
	}

	var cached ProcessedImage
	err := p.db.WithContext(ctx).
		Where("asset_id = ? AND ratio = ?", asset.ID, spec.Name).
		First(&cached).Error
	if err == nil {
		return cached.URL, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("lookup rendition: %w", err)
	}

	return p.generate(ctx, asset, spec)
}

func (p *Preprocessor) generate(ctx context.Context, asset *Asset, spec ffmpeg.AspectSpec) (string, error) {
	tmpDir, err := os.MkdirTemp("", "rendition-"+asset.ID)
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	inputPath := filepath.Join(tmpDir, "original"+extFor(asset.Mime))
	if err := p.fetchOriginal(ctx, asset, inputPath); err != nil {
		return "", err
	}

	// An original already in the target aspect publishes as-is.
	if p.probe != nil {
		if w, h, err := p.probe(inputPath); err == nil && w > 0 && w*spec.Height == h*spec.Width {
			return p.originalURL(asset), nil
		}
	}

	outputPath := filepath.Join(tmpDir, "rendition.jpg")
	if err := p.transform(inputPath, outputPath, spec); err != nil {
		return "", fmt.Errorf("transform asset %s to %s: %w", asset.ID, spec.Name, err)
	}

	objectKey := fmt.Sprintf("renditions/%s_%s.jpg", asset.ID, strings.ReplaceAll(spec.Name, ":", "x"))
	if _, err := p.store.FPutObject(ctx, p.cfg.Minio.BucketName, objectKey, outputPath, minio.PutObjectOptions{
		ContentType: "image/jpeg",
	}); err != nil {
		return "", fmt.Errorf("upload rendition: %w", err)
	}

	rendition := ProcessedImage{
		ID:        p.node.Generate().String(),
		AssetID:   asset.ID,
		Ratio:     spec.Name,
		ObjectKey: objectKey,
		URL:       p.publicURL(objectKey),
		Width:     spec.Width,
		Height:    spec.Height,
	}
	if err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset_id"}, {Name: "ratio"}},
			UpdateAll: true,
		}).
		Create(&rendition).Error; err != nil {
		return "", fmt.Errorf("cache rendition: %w", err)
	}

	zap.L().Info("generated asset rendition",
		zap.String("asset_id", asset.ID),
		zap.String("ratio", spec.Name),
		zap.String("object_key", objectKey),
	)

	return rendition.URL, nil
}

func (p *Preprocessor) fetchOriginal(ctx context.Context, asset *Asset, destPath string) error {
	if asset.ObjectKey != "" {
		if err := p.store.FGetObject(ctx, p.cfg.Minio.BucketName, asset.ObjectKey, destPath, minio.GetObjectOptions{}); err != nil {
			return fmt.Errorf("fetch original from bucket: %w", err)
		}
		return nil
	}

	resp, err := p.client.R().SetContext(ctx).SetOutput(destPath).Get(asset.URL)
	if err != nil {
		return fmt.Errorf("fetch original from url: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetch original from url: status %s", resp.Status())
	}
	return nil
}

func (p *Preprocessor) originalURL(asset *Asset) string {
	if asset.ObjectKey != "" {
		return p.publicURL(asset.ObjectKey)
	}
	return asset.URL
}

func (p *Preprocessor) publicURL(objectKey string) string {
	if p.cfg.PublicURL != "" {
		return strings.TrimSuffix(p.cfg.PublicURL, "/") + "/" + p.cfg.Minio.BucketName + "/" + objectKey
	}
	scheme := "http"
	if p.cfg.Minio.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, p.cfg.Minio.Endpoint, p.cfg.Minio.BucketName, objectKey)
}

func extFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	default:
		return ".jpg"
	}
}
