package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pribylovaa/go-accounts/internal/config"
	"github.com/pribylovaa/go-accounts/internal/storage"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Тесты пакета minio:
// — юнит-тесты разбора URL, определения типа и валидаций Upload (без сети);
// — интеграционные тесты поднимают реальный MinIO через testcontainers-go.
//
// Запуск интеграционных:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/minio -v -race -count=1

const pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

// pngBytes возвращает PNG-сигнатуру с хвостом tail.
func pngBytes(tail ...byte) []byte {
	return append([]byte(pngHeader), tail...)
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "upload.bin")
	require.NoError(t, os.WriteFile(p, data, 0o600))

	return p
}

func newOffline() *MediaStorage {
	return &MediaStorage{
		bucket:  "media",
		prefix:  "users",
		baseURL: "http://cdn.local",
		maxSize: 1 << 10,
		allowed: []string{"image/png", "image/jpeg"},
	}
}

func TestPublicBase(t *testing.T) {
	t.Parallel()

	require.Equal(t, "http://cdn.local", publicBase("http://cdn.local/", false, "minio:9000", "media"))
	require.Equal(t, "http://minio:9000/media", publicBase("", false, "minio:9000", "media"))
	require.Equal(t, "https://s3.example.com/media", publicBase("", true, "s3.example.com", "media"))
}

func TestObjectKeyFromURL(t *testing.T) {
	t.Parallel()

	s := newOffline()

	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "ok", url: "http://cdn.local/users/abc.png", want: "users/abc.png"},
		{name: "query stripped", url: "http://cdn.local/users/abc.png?v=2", want: "users/abc.png"},
		{name: "foreign host", url: "http://evil.local/users/abc.png", wantErr: true},
		{name: "outside prefix", url: "http://cdn.local/other/abc.png", wantErr: true},
		{name: "traversal", url: "http://cdn.local/users/../secret.png", wantErr: true},
		{name: "empty key", url: "http://cdn.local/", wantErr: true},
		{name: "empty", url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.objectKeyFromURL(tt.url)
			if tt.wantErr {
				require.ErrorIs(t, err, storage.ErrInvalidArgument)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestObjectKey(t *testing.T) {
	t.Parallel()

	s := newOffline()
	key := s.objectKey("image/png")
	require.True(t, strings.HasPrefix(key, "users/"))
	require.True(t, strings.HasSuffix(key, ".png"))
	require.NotEqual(t, key, s.objectKey("image/png"))

	s.prefix = ""
	require.False(t, strings.Contains(s.objectKey("image/jpeg"), "/"))
}

func TestDetectContentType(t *testing.T) {
	t.Parallel()

	ct, err := detectContentType(writeTemp(t, pngBytes()))
	require.NoError(t, err)
	require.Equal(t, "image/png", ct)

	ct, err = detectContentType(writeTemp(t, []byte("just text")))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ct, "text/plain"))

	_, err = detectContentType(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestUpload_Validation_RemovesLocalFile(t *testing.T) {
	t.Parallel()

	s := newOffline()
	ctx := context.Background()

	t.Run("empty path", func(t *testing.T) {
		url, err := s.Upload(ctx, "")
		require.ErrorIs(t, err, storage.ErrInvalidArgument)
		require.Empty(t, url)
	})

	t.Run("missing file", func(t *testing.T) {
		url, err := s.Upload(ctx, filepath.Join(t.TempDir(), "nope.png"))
		require.ErrorIs(t, err, storage.ErrUploadFailed)
		require.Empty(t, url)
	})

	t.Run("too large", func(t *testing.T) {
		p := writeTemp(t, pngBytes(bytes.Repeat([]byte{0}, 2<<10)...))
		url, err := s.Upload(ctx, p)
		require.ErrorIs(t, err, storage.ErrInvalidArgument)
		require.Empty(t, url)
		require.NoFileExists(t, p)
	})

	t.Run("empty file", func(t *testing.T) {
		p := writeTemp(t, nil)
		_, err := s.Upload(ctx, p)
		require.ErrorIs(t, err, storage.ErrInvalidArgument)
		require.NoFileExists(t, p)
	})

	t.Run("disallowed type", func(t *testing.T) {
		p := writeTemp(t, []byte("plain text is not an image"))
		_, err := s.Upload(ctx, p)
		require.ErrorIs(t, err, storage.ErrInvalidArgument)
		require.NoFileExists(t, p)
	})
}

func startMinio(t *testing.T, createBucket bool) (*MediaStorage, *mclient.Client) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	const (
		image        = "docker.io/minio/minio:latest"
		rootUser     = "root"
		rootPassword = "rootpass"
		bucket       = "media"
	)

	req := tc.ContainerRequest{
		Image: image,
		Env: map[string]string{
			"MINIO_ROOT_USER":     rootUser,
			"MINIO_ROOT_PASSWORD": rootPassword,
		},
		Cmd:          []string{"server", "/data"},
		ExposedPorts: []string{"9000/tcp"},
		WaitingFor:   wait.ForListeningPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	admin, err := mclient.New(host+":"+port.Port(), &mclient.Options{
		Creds: credentials.NewStaticV4(rootUser, rootPassword, ""),
	})
	require.NoError(t, err)

	if createBucket {
		require.NoError(t, admin.MakeBucket(ctx, bucket, mclient.MakeBucketOptions{Region: "us-east-1"}))
	}

	cfg := &config.Config{
		S3: config.S3Config{
			Endpoint:     fmt.Sprintf("http://%s:%s", host, port.Port()),
			RootUser:     rootUser,
			RootPassword: rootPassword,
			Bucket:       bucket,
		},
		Media: config.MediaConfig{
			Prefix:              "users",
			MaxSizeBytes:        1 << 20,
			AllowedContentTypes: []string{"image/png", "image/jpeg"},
		},
	}

	st, err := New(ctx, cfg)
	if !createBucket {
		require.Error(t, err)
		return nil, admin
	}
	require.NoError(t, err)

	return st, admin
}

func TestIntegration_New_BucketMustExist(t *testing.T) {
	_, _ = startMinio(t, false)
}

func TestIntegration_UploadAndDelete(t *testing.T) {
	st, admin := startMinio(t, true)
	ctx := context.Background()

	p := writeTemp(t, pngBytes(1, 2, 3))

	url, err := st.Upload(ctx, p)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, st.baseURL+"/users/"))
	require.NoFileExists(t, p)

	// Объект доступен по выданному URL (path-style адрес MinIO).
	key, err := st.objectKeyFromURL(url)
	require.NoError(t, err)

	obj, err := admin.GetObject(ctx, st.bucket, key, mclient.GetObjectOptions{})
	require.NoError(t, err)
	body, err := io.ReadAll(obj)
	require.NoError(t, err)
	require.Equal(t, pngBytes(1, 2, 3), body)

	stat, err := admin.StatObject(ctx, st.bucket, key, mclient.StatObjectOptions{})
	require.NoError(t, err)
	require.Equal(t, "image/png", stat.ContentType)

	require.NoError(t, st.Delete(ctx, url))

	_, err = admin.StatObject(ctx, st.bucket, key, mclient.StatObjectOptions{})
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, mclient.ToErrorResponse(err).StatusCode)

	require.ErrorIs(t, st.Delete(ctx, "http://elsewhere/users/x.png"), storage.ErrInvalidArgument)
}
