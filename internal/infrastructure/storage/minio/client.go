// Package minio uploads exported result files to S3-compatible object storage.
package minio

import (
	"context"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/turtacn/trialscope/internal/config"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

// ObjectAPI is the subset of *minio.Client the uploader uses.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

const (
	defaultBucket     = "trialscope-exports"
	defaultPrefix     = "exports"
	exportExpiryDays  = 90
	connectTimeout    = 10 * time.Second
	defaultLinkExpiry = time.Hour
)

// ExportUploader stores result files under <prefix>/<yyyy-mm-dd>/<file name>.
type ExportUploader struct {
	api    ObjectAPI
	bucket string
	prefix string
	logger logging.Logger
	now    func() time.Time
}

// NewExportUploader connects to cfg.Endpoint and makes sure the bucket exists.
func NewExportUploader(cfg config.MinIOConfig, log logging.Logger) (*ExportUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to create minio client")
	}
	u := NewExportUploaderWithAPI(client, cfg.Bucket, cfg.Prefix, log)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := u.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	u.logger.Info("minio uploader ready",
		logging.String("endpoint", cfg.Endpoint), logging.String("bucket", u.bucket), logging.Bool("ssl", cfg.UseSSL))
	return u, nil
}

// NewExportUploaderWithAPI wraps an existing client.
func NewExportUploaderWithAPI(api ObjectAPI, bucket, prefix string, log logging.Logger) *ExportUploader {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if bucket == "" {
		bucket = defaultBucket
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ExportUploader{api: api, bucket: bucket, prefix: prefix, logger: log.Named("minio"), now: time.Now}
}

// EnsureBucket creates the bucket when missing and applies the export
// expiry rule. A failed lifecycle update is logged, not returned.
func (u *ExportUploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.api.BucketExists(ctx, u.bucket)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to check bucket existence").WithDetail(u.bucket)
	}
	if !exists {
		if err := u.api.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return errors.Wrap(err, errors.CodeStorageError, "failed to create bucket").WithDetail(u.bucket)
		}
		u.logger.Info("created bucket", logging.String("bucket", u.bucket))
	}

	rules := lifecycle.NewConfiguration()
	rules.Rules = []lifecycle.Rule{{
		ID:         "exports-expiry",
		Status:     "Enabled",
		Expiration: lifecycle.Expiration{Days: exportExpiryDays},
	}}
	if err := u.api.SetBucketLifecycle(ctx, u.bucket, rules); err != nil {
		u.logger.Warn("failed to set bucket lifecycle", logging.String("bucket", u.bucket), logging.Err(err))
	}
	return nil
}

// ObjectKey returns the key a file uploaded now would be stored under.
func (u *ExportUploader) ObjectKey(filePath string) string {
	return path.Join(u.prefix, u.now().UTC().Format("2006-01-02"), filepath.Base(filePath))
}

// UploadFile stores the file at filePath and returns its object key.
func (u *ExportUploader) UploadFile(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorageError, "failed to open export file").WithDetail(filePath)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorageError, "failed to stat export file").WithDetail(filePath)
	}

	key := u.ObjectKey(filePath)
	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := u.api.PutObject(ctx, u.bucket, key, f, st.Size(), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorageError, "upload failed").WithDetail(key)
	}
	u.logger.Info("export uploaded",
		logging.String("bucket", u.bucket), logging.String("key", key), logging.Int64("size", info.Size))
	return key, nil
}

// PresignedURL returns a time-limited download link for key.
func (u *ExportUploader) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = defaultLinkExpiry
	}
	link, err := u.api.PresignedGetObject(ctx, u.bucket, key, expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorageError, "failed to presign export").WithDetail(key)
	}
	return link.String(), nil
}
