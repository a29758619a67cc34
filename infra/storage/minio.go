// Package storage uploads result files to an S3-compatible object store.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kilianp07/moeopf/infra/logger"
)

// Config selects the bucket receiving the result files. The upload is
// disabled while Endpoint is empty.
type Config struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"use_ssl"`
	// Prefix roots the object keys: <prefix>/<run_id>/<file>.
	Prefix string `json:"prefix"`
}

// Enabled reports whether an endpoint is configured.
func (c Config) Enabled() bool { return c.Endpoint != "" }

// Validate checks an enabled configuration.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Bucket == "" {
		return fmt.Errorf("upload.bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("upload.endpoint must be host[:port], got %q", c.Endpoint)
	}
	return nil
}

type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var newObjectStore = func(cfg Config) (objectStore, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

// Uploader copies result files into the configured bucket.
type Uploader struct {
	client objectStore
	bucket string
	region string
	prefix string
	log    logger.Logger
}

// NewUploader builds the object store client. No request is made until the
// first upload.
func NewUploader(cfg Config) (*Uploader, error) {
	client, err := newObjectStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("object store client: %w", err)
	}
	return &Uploader{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.Prefix, "/"),
		log:    logger.New("storage"),
	}, nil
}

// Key returns the object key of file for runID.
func (u *Uploader) Key(runID, file string) string {
	return path.Join(u.prefix, runID, filepath.Base(file))
}

// Upload creates the bucket when missing, then puts every file under the
// run's key prefix. It returns the keys written before the first failure.
func (u *Uploader) Upload(ctx context.Context, runID string, files []string) ([]string, error) {
	ok, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket %s: %w", u.bucket, err)
	}
	if !ok {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", u.bucket, err)
		}
		u.log.Infof("created bucket %s", u.bucket)
	}
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key := u.Key(runID, f)
		opts := minio.PutObjectOptions{ContentType: mime.TypeByExtension(filepath.Ext(f))}
		info, err := u.client.FPutObject(ctx, u.bucket, key, f, opts)
		if err != nil {
			return keys, fmt.Errorf("upload %s: %w", f, err)
		}
		u.log.Debugf("uploaded %s (%d bytes)", key, info.Size)
		keys = append(keys, key)
	}
	return keys, nil
}
