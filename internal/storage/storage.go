// storage содержит контракты слоя хранилищ accounts-service.
//
// storage.go - учётные записи в документной БД (создание/чтение/частичное обновление)
// и хранение текущего refresh-токена пользователя.
// media.go - контракт внешнего хранилища файлов (аватары, обложки).
package storage

//go:generate mockgen -source=./storage.go -destination=../../mocks/storage.go -package=mocks

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pribylovaa/go-accounts/internal/models"
)

var (
	// ErrNotFound — пользователь не найден.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (username/email).
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict — условное обновление не применилось: сохранённое значение
	// отличается от ожидаемого (refresh-токен уже заменён или сброшен).
	ErrConflict = errors.New("conflict")
)

// UserUpdate — частичный апдейт пользователя.
// Параметры задаются pointer-полями: только непустые указатели обновляются в БД,
// остальные поля записи не читаются и не валидируются.
type UserUpdate struct {
	FullName     *string
	Email        *string
	Avatar       *string
	CoverImage   *string
	PasswordHash *string
	// ClearRefreshToken — в том же обновлении удалить сохранённый refresh-токен.
	ClearRefreshToken bool
}

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// CreateUser создаёт нового пользователя. При конфликте уникальности — ErrAlreadyExists.
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByUsernameOrEmail находит пользователя, у которого совпадает username ИЛИ email.
	// Пустые значения в условие не попадают; если оба пусты — ErrNotFound.
	UserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	// UpdateUser обновляет только поля, заданные в update, и возвращает актуальную запись.
	UpdateUser(ctx context.Context, id uuid.UUID, update UserUpdate) (*models.User, error)
}

// RefreshTokenStorage управляет единственным активным refresh-токеном пользователя.
type RefreshTokenStorage interface {
	// SetRefreshToken безусловно перезаписывает сохранённый refresh-токен.
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
	// SwapRefreshToken заменяет refresh-токен, только если сохранено значение expected.
	// Иначе — ErrConflict.
	SwapRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error
	// UnsetRefreshToken удаляет поле refresh-токена. Повторный вызов не является ошибкой.
	UnsetRefreshToken(ctx context.Context, id uuid.UUID) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	Close()
}
