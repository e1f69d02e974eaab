package scope

import (
	"bytes"
	"context"
	"io"
	"mime"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/logger"
)

// Uploader stores one object in a bucket.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

// Bucket is a scope whose artifacts are uploaded to an object store. Folders
// are key prefixes; an artifact is buffered and uploaded when its writer is
// closed.
type Bucket struct {
	ctx      context.Context
	uploader Uploader
	prefix   string
	rel      string
	closed   atomic.Bool
	logger   *zap.Logger
}

// NewBucket returns a root scope that uploads below prefix. ctx bounds every
// upload made through this scope and its children.
func NewBucket(ctx context.Context, uploader Uploader, prefix string) *Bucket {
	return &Bucket{
		ctx:      ctx,
		uploader: uploader,
		prefix:   Join("", prefix),
		logger:   logger.With(zap.String("component", "bucket_scope")),
	}
}

// Path returns the location relative to the root.
func (b *Bucket) Path() string { return b.rel }

// Cd returns a child scope; object stores need no directory creation.
func (b *Bucket) Cd(name string) (Scope, error) {
	if b.closed.Load() {
		return nil, errClosed(b.rel)
	}
	return &Bucket{
		ctx:      b.ctx,
		uploader: b.uploader,
		prefix:   b.prefix,
		rel:      Join(b.rel, name),
		logger:   b.logger,
	}, nil
}

// Create returns a writer that uploads the artifact on Close.
func (b *Bucket) Create(name string) (io.WriteCloser, error) {
	if b.closed.Load() {
		return nil, errClosed(b.rel)
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	return &objectWriter{bucket: b, key: Join(b.prefix, Join(b.rel, name))}, nil
}

// Close releases the handle.
func (b *Bucket) Close() error {
	b.closed.Store(true)
	return nil
}

type objectWriter struct {
	bucket *Bucket
	key    string
	buf    bytes.Buffer
	once   sync.Once
	err    error
}

func (w *objectWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *objectWriter) Close() error {
	w.once.Do(func() {
		start := time.Now()
		contentType := mime.TypeByExtension(path.Ext(w.key))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		size := int64(w.buf.Len())
		if err := w.bucket.uploader.Upload(w.bucket.ctx, w.key, &w.buf, size, contentType); err != nil {
			w.err = errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload artifact").
				WithDetail("key", w.key)
			return
		}
		w.bucket.logger.Debug("artifact uploaded",
			zap.String("key", w.key),
			zap.Int64("bytes", size),
			zap.Duration("duration", time.Since(start)))
	})
	return w.err
}

// S3Config configures the S3 uploader.
type S3Config struct {
	Bucket         string `yaml:"bucket" json:"bucket"`
	Region         string `yaml:"region" json:"region"`
	PartSize       int64  `yaml:"part_size" json:"part_size"`
	MaxConcurrency int    `yaml:"max_concurrency" json:"max_concurrency"`
}

// S3Uploader uploads artifacts with the AWS multipart upload manager.
type S3Uploader struct {
	bucket   string
	uploader *manager.Uploader
}

// NewS3Uploader loads the default AWS configuration for the region.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to load AWS config")
	}

	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.MaxConcurrency > 0 {
			u.Concurrency = cfg.MaxConcurrency
		}
	})
	return &S3Uploader{bucket: cfg.Bucket, uploader: uploader}, nil
}

// Upload puts one object.
func (u *S3Uploader) Upload(ctx context.Context, key string, body io.Reader, _ int64, contentType string) error {
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"producer": "harvest",
			"created":  time.Now().UTC().Format(time.RFC3339),
		},
	})
	return err
}

// GCSConfig configures the Google Cloud Storage uploader.
type GCSConfig struct {
	Bucket          string `yaml:"bucket" json:"bucket"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	// OAuth client credentials, used instead of a credentials file when
	// RefreshToken is set
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	RefreshToken string `yaml:"refresh_token" json:"refresh_token"`
}

const gcsTokenURL = "https://oauth2.googleapis.com/token"

// tokenSource returns the OAuth token source of a refresh-token config.
func (cfg GCSConfig) tokenSource(ctx context.Context) oauth2.TokenSource {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: gcsTokenURL,
		},
		Scopes: []string{storage.ScopeReadWrite},
	}
	return oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
}

// GCSUploader uploads artifacts to a Google Cloud Storage bucket.
type GCSUploader struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewGCSUploader creates a storage client with optional explicit credentials.
func NewGCSUploader(ctx context.Context, cfg GCSConfig) (*GCSUploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "gcs bucket is required")
	}
	var opts []option.ClientOption
	switch {
	case cfg.RefreshToken != "":
		opts = append(opts, option.WithTokenSource(cfg.tokenSource(ctx)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}
	return &GCSUploader{client: client, bucket: client.Bucket(cfg.Bucket)}, nil
}

// Upload writes one object.
func (u *GCSUploader) Upload(ctx context.Context, key string, body io.Reader, _ int64, contentType string) error {
	w := u.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Close releases the storage client.
func (u *GCSUploader) Close() error {
	return u.client.Close()
}
