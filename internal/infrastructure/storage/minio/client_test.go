package minio

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/trialscope/pkg/errors"
)

type mockObjectAPI struct {
	mock.Mock
	uploaded []byte
}

func (m *mockObjectAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	args := m.Called(ctx, bucket)
	return args.Bool(0), args.Error(1)
}

func (m *mockObjectAPI) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucket, opts).Error(0)
}

func (m *mockObjectAPI) SetBucketLifecycle(ctx context.Context, bucket string, cfg *lifecycle.Configuration) error {
	return m.Called(ctx, bucket, cfg).Error(0)
}

func (m *mockObjectAPI) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, _ := io.ReadAll(r)
	m.uploaded = body
	args := m.Called(ctx, bucket, key, size, opts.ContentType)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *mockObjectAPI) PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration, params url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucket, key, expiry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*url.URL), args.Error(1)
}

func newTestUploader(api *mockObjectAPI) *ExportUploader {
	u := NewExportUploaderWithAPI(api, "exports-bucket", "/runs/", nil)
	u.now = func() time.Time { return time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC) }
	return u
}

func TestNewExportUploaderWithAPI_Defaults(t *testing.T) {
	u := NewExportUploaderWithAPI(&mockObjectAPI{}, "", "", nil)
	assert.Equal(t, defaultBucket, u.bucket)
	assert.Equal(t, defaultPrefix, u.prefix)
}

func TestEnsureBucket_CreatesMissingBucket(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("BucketExists", mock.Anything, "exports-bucket").Return(false, nil)
	api.On("MakeBucket", mock.Anything, "exports-bucket", mock.Anything).Return(nil)
	api.On("SetBucketLifecycle", mock.Anything, "exports-bucket", mock.Anything).Return(errors.New("not supported"))

	require.NoError(t, newTestUploader(api).EnsureBucket(context.Background()))
	api.AssertExpectations(t)
}

func TestEnsureBucket_ExistingBucket(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("BucketExists", mock.Anything, "exports-bucket").Return(true, nil)
	api.On("SetBucketLifecycle", mock.Anything, "exports-bucket", mock.Anything).Return(nil)

	require.NoError(t, newTestUploader(api).EnsureBucket(context.Background()))
	api.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureBucket_CheckFails(t *testing.T) {
	api := &mockObjectAPI{}
	api.On("BucketExists", mock.Anything, "exports-bucket").Return(false, errors.New("dial tcp: refused"))

	err := newTestUploader(api).EnsureBucket(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorageError))
}

func TestUploadFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "asthma_output.csv")
	require.NoError(t, os.WriteFile(file, []byte("nct_id\nNCT1\n"), 0o644))

	api := &mockObjectAPI{}
	api.On("PutObject", mock.Anything, "exports-bucket", "runs/2024-03-09/asthma_output.csv", int64(12), mock.AnythingOfType("string")).
		Return(minio.UploadInfo{Size: 12}, nil)

	key, err := newTestUploader(api).UploadFile(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "runs/2024-03-09/asthma_output.csv", key)
	assert.Equal(t, "nct_id\nNCT1\n", string(api.uploaded))
	api.AssertExpectations(t)
}

func TestUploadFile_MissingFile(t *testing.T) {
	_, err := newTestUploader(&mockObjectAPI{}).UploadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorageError))
}

func TestPresignedURL(t *testing.T) {
	api := &mockObjectAPI{}
	link, _ := url.Parse("https://minio.local/exports-bucket/runs/x.csv?X-Amz-Signature=abc")
	api.On("PresignedGetObject", mock.Anything, "exports-bucket", "runs/x.csv", time.Hour).Return(link, nil)

	got, err := newTestUploader(api).PresignedURL(context.Background(), "runs/x.csv", 0)
	require.NoError(t, err)
	assert.Equal(t, link.String(), got)
}
