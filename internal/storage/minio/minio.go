// minio предоставляет реализацию storage.MediaStorage на базе MinIO/S3.
// minio.go - конструктор клиента MinIO: нормализует endpoint,
// настраивает Secure/creds и проверяет наличие целевого бакета.
// media.go - загрузка локальных файлов в бакет и удаление объектов по публичному URL.
package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pribylovaa/go-accounts/internal/config"
	"github.com/pribylovaa/go-accounts/internal/storage"
)

// MediaStorage — адаптер MinIO для изображений пользователей.
type MediaStorage struct {
	client *mclient.Client

	bucket  string
	prefix  string
	baseURL string
	maxSize int64
	allowed []string
}

// New создает и инициализирует клиент MinIO.
// Убирает схему из endpoint, подбирает Secure по схеме
// и выполняет fail-fast-проверку доступности бакета.
func New(ctx context.Context, cfg *config.Config) (*MediaStorage, error) {
	const op = "storage/minio/New"

	endpoint := cfg.S3.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.RootUser, cfg.S3.RootPassword, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.S3.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.S3.Bucket)
	}

	return &MediaStorage{
		client:  client,
		bucket:  cfg.S3.Bucket,
		prefix:  strings.Trim(cfg.Media.Prefix, "/"),
		baseURL: publicBase(cfg.S3.PublicBaseURL, secure, endpoint, cfg.S3.Bucket),
		maxSize: cfg.Media.MaxSizeBytes,
		allowed: cfg.Media.AllowedContentTypes,
	}, nil
}

// publicBase возвращает базовый URL, от которого строятся ссылки на объекты.
// Без PublicBaseURL используется path-style адрес самого S3: <scheme>://<endpoint>/<bucket>.
func publicBase(public string, secure bool, endpoint, bucket string) string {
	if public != "" {
		return strings.TrimRight(public, "/")
	}

	scheme := "http"
	if secure {
		scheme = "https"
	}

	return scheme + "://" + endpoint + "/" + bucket
}

// Проверка выполнения контракта верхнего уровня.
var _ storage.MediaStorage = (*MediaStorage)(nil)
