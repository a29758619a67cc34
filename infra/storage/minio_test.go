package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	exists  bool
	made    []string
	puts    map[string]string
	types   map[string]string
	failOn  string
	headErr error
}

func (f *fakeStore) BucketExists(context.Context, string) (bool, error) {
	return f.exists, f.headErr
}

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	return nil
}

func (f *fakeStore) FPutObject(_ context.Context, _, object, file string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if file == f.failOn {
		return minio.UploadInfo{}, errors.New("denied")
	}
	if f.puts == nil {
		f.puts = map[string]string{}
		f.types = map[string]string{}
	}
	f.puts[object] = file
	f.types[object] = opts.ContentType
	return minio.UploadInfo{Key: object, Size: 10}, nil
}

func useFakeStore(t *testing.T, f *fakeStore) {
	t.Helper()
	prev := newObjectStore
	newObjectStore = func(Config) (objectStore, error) { return f, nil }
	t.Cleanup(func() { newObjectStore = prev })
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"ok", Config{Endpoint: "localhost:9000", Bucket: "opf"}, false},
		{"no bucket", Config{Endpoint: "localhost:9000"}, true},
		{"scheme", Config{Endpoint: "http://localhost:9000", Bucket: "opf"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUploadCreatesBucket(t *testing.T) {
	f := &fakeStore{}
	useFakeStore(t, f)
	u, err := NewUploader(Config{Endpoint: "s3:9000", Bucket: "opf", Prefix: "/runs/"})
	require.NoError(t, err)

	keys, err := u.Upload(context.Background(), "r1", []string{"out/pareto.csv", "out/pareto.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{"opf"}, f.made)
	assert.Equal(t, []string{"runs/r1/pareto.csv", "runs/r1/pareto.json"}, keys)
	assert.Equal(t, "out/pareto.json", f.puts["runs/r1/pareto.json"])
	assert.Equal(t, "application/json", f.types["runs/r1/pareto.json"])
}

func TestUploadExistingBucket(t *testing.T) {
	f := &fakeStore{exists: true}
	useFakeStore(t, f)
	u, err := NewUploader(Config{Endpoint: "s3:9000", Bucket: "opf"})
	require.NoError(t, err)
	keys, err := u.Upload(context.Background(), "r2", []string{"pareto.html"})
	require.NoError(t, err)
	assert.Empty(t, f.made)
	assert.Equal(t, []string{"r2/pareto.html"}, keys)
}

func TestUploadErrors(t *testing.T) {
	f := &fakeStore{headErr: errors.New("unreachable")}
	useFakeStore(t, f)
	u, err := NewUploader(Config{Endpoint: "s3:9000", Bucket: "opf"})
	require.NoError(t, err)
	_, err = u.Upload(context.Background(), "r", []string{"a.csv"})
	assert.ErrorContains(t, err, "unreachable")

	f.headErr = nil
	f.exists = true
	f.failOn = "b.json"
	keys, err := u.Upload(context.Background(), "r", []string{"a.csv", "b.json", "c.html"})
	assert.ErrorContains(t, err, "denied")
	assert.Equal(t, []string{"r/a.csv"}, keys)
}
