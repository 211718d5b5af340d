package storage

//go:generate mockgen -source=./media.go -destination=../../mocks/media.go -package=mocks

import (
	"context"
	"errors"
)

var (
	// ErrUploadFailed — файл не удалось загрузить во внешнее хранилище.
	ErrUploadFailed = errors.New("upload failed")
	// ErrInvalidArgument — нарушены ограничения на файл (тип/размер) или чужой URL.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFoundMedia — объект отсутствует в бакете.
	ErrNotFoundMedia = errors.New("media not found")
)

// MediaStorage — контракт внешнего хранилища файлов.
type MediaStorage interface {
	// Upload загружает локальный файл и возвращает постоянный публичный URL.
	// Локальный файл удаляется в любом случае. При ошибке URL всегда пустой.
	Upload(ctx context.Context, localPath string) (string, error)
	// Delete удаляет объект, на который указывает url.
	Delete(ctx context.Context, url string) error
}
