package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	mclient "github.com/minio/minio-go/v7"
	"github.com/pribylovaa/go-accounts/internal/storage"
)

// sniffLen — сколько байт читается для определения типа содержимого.
const sniffLen = 512

// Upload загружает локальный файл в бакет под ключом "<prefix>/<uuid>.<ext>"
// и возвращает его публичный URL. Локальный файл удаляется при любом исходе.
func (s *MediaStorage) Upload(ctx context.Context, localPath string) (string, error) {
	const op = "storage/minio/Upload"

	if localPath == "" {
		return "", storage.ErrInvalidArgument
	}
	defer os.Remove(localPath)

	info, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, storage.ErrUploadFailed, err)
	}

	if info.Size() <= 0 || (s.maxSize > 0 && info.Size() > s.maxSize) {
		return "", storage.ErrInvalidArgument
	}

	contentType, err := detectContentType(localPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, storage.ErrUploadFailed, err)
	}

	if !isAllowedContentType(s.allowed, contentType) {
		return "", storage.ErrInvalidArgument
	}

	key := s.objectKey(contentType)

	_, err = s.client.FPutObject(ctx, s.bucket, key, localPath, mclient.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, storage.ErrUploadFailed, err)
	}

	return s.baseURL + "/" + key, nil
}

// Delete удаляет объект, на который указывает url.
// URL вне нашего бакета/префикса отклоняется с ErrInvalidArgument.
func (s *MediaStorage) Delete(ctx context.Context, url string) error {
	const op = "storage/minio/Delete"

	key, err := s.objectKeyFromURL(url)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, mclient.RemoveObjectOptions{}); err != nil {
		errResp := mclient.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.StatusCode == http.StatusNotFound {
			return storage.ErrNotFoundMedia
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// objectKey формирует ключ нового объекта.
func (s *MediaStorage) objectKey(contentType string) string {
	name := uuid.NewString() + extension(contentType)
	if s.prefix == "" {
		return name
	}

	return path.Join(s.prefix, name)
}

// objectKeyFromURL извлекает ключ объекта из публичного URL.
func (s *MediaStorage) objectKeyFromURL(url string) (string, error) {
	rest, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok {
		return "", storage.ErrInvalidArgument
	}

	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}

	key := path.Clean(rest)
	if key == "." || strings.HasPrefix(key, "../") || key == ".." {
		return "", storage.ErrInvalidArgument
	}

	if s.prefix != "" && !strings.HasPrefix(key, s.prefix+"/") {
		return "", storage.ErrInvalidArgument
	}

	return key, nil
}

// detectContentType определяет MIME-тип по первым байтам файла.
func detectContentType(localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", err
	}

	return http.DetectContentType(buf[:n]), nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}

// isAllowedContentType проверяет, что тип содержимого входит в allow-list.
func isAllowedContentType(allow []string, contentType string) bool {
	for _, a := range allow {
		if a == contentType {
			return true
		}
	}

	return false
}
