// service содержит бизнес-логику accounts-сервиса:
// выпуск/проверку/ротацию/отзыв пары токенов (сессии), регистрацию
// и операции над профилем пользователя.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; все зависимости передаются
//     явно через Deps при конструировании, глобального состояния нет;
//   - экземпляр безопасен для конкурентного использования, если
//     переданные хранилища потокобезопасны;
//   - каждая ошибка — типизированное значение из списка ниже, обёрнутое
//     в op; транспорт маппит их в HTTP-статусы (см. internal/errors).
package service

//go:generate mockgen -source=./service.go -destination=../../mocks/service.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pribylovaa/go-accounts/internal/config"
	"github.com/pribylovaa/go-accounts/internal/models"
	"github.com/pribylovaa/go-accounts/internal/storage"
)

var (
	// ErrMissingCredentials — не передан ни username, ни email, либо пустой пароль.
	// Транспорт: HTTP 400.
	ErrMissingCredentials = errors.New("username or email and password are required")

	// ErrMissingFields — не заполнены обязательные поля запроса. HTTP 400.
	ErrMissingFields = errors.New("all fields are required")

	// ErrInvalidArgument — поле заполнено, но не проходит проверку формата. HTTP 400.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUserNotFound — пользователь не существует. HTTP 404.
	ErrUserNotFound = errors.New("user does not exist")

	// ErrInvalidCredentials — пароль не совпадает с сохранённым хэшем. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid user credentials")

	// ErrDuplicateUser — username или email уже заняты. HTTP 409.
	ErrDuplicateUser = errors.New("user with email or username already exists")

	// ErrInvalidToken — подпись не сходится, токен просрочен или выпущен не нами. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMalformedToken — токен не удаётся разобрать. HTTP 401.
	ErrMalformedToken = errors.New("malformed token")

	// ErrUnauthenticated — нет действующей сессии (refresh отсутствует, отозван или заменён). HTTP 401.
	ErrUnauthenticated = errors.New("unauthorized request")

	// ErrUploadFailed — файл не удалось загрузить во внешнее хранилище. HTTP 502.
	ErrUploadFailed = errors.New("error while uploading file")

	// ErrSessionIssuance — не удалось выпустить и сохранить пару токенов. HTTP 500.
	ErrSessionIssuance = errors.New("something went wrong while generating tokens")

	// ErrTooManyAttempts — превышен лимит неудачных попыток входа. HTTP 429.
	ErrTooManyAttempts = errors.New("too many login attempts")
)

// EventPublisher публикует события жизненного цикла аккаунта.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// LoginLimiter ограничивает число неудачных попыток входа по идентификатору.
type LoginLimiter interface {
	// Allow сообщает, разрешена ли очередная попытка. При ошибке бэкенда
	// возвращает true вместе с ошибкой.
	Allow(ctx context.Context, identifier string) (bool, error)
	// Fail учитывает неудачную попытку.
	Fail(ctx context.Context, identifier string) error
	// Reset сбрасывает счётчик после успешного входа.
	Reset(ctx context.Context, identifier string) error
}

// Deps — явно сконструированные зависимости сервиса.
// Events и Limiter опциональны.
type Deps struct {
	Storage storage.Storage
	Media   storage.MediaStorage
	Events  EventPublisher
	Limiter LoginLimiter
	Auth    config.AuthConfig
}

// Service описывает бизнес-логику accounts-сервиса.
type Service struct {
	storage  storage.Storage
	media    storage.MediaStorage
	events   EventPublisher
	limiter  LoginLimiter
	cfg      config.AuthConfig
	tokens   *Tokens
	validate *validator.Validate
	now      func() time.Time
}

// New создаёт новый экземпляр Service.
func New(deps Deps) *Service {
	s := &Service{
		storage:  deps.Storage,
		media:    deps.Media,
		events:   deps.Events,
		limiter:  deps.Limiter,
		cfg:      deps.Auth,
		tokens:   NewTokens(deps.Auth),
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}

	if s.events == nil {
		s.events = nopPublisher{}
	}

	if s.limiter == nil {
		s.limiter = nopLimiter{}
	}

	return s
}

// Tokens возвращает токен-сервис (используется middleware для проверки access-токена).
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.Event) error { return nil }

type nopLimiter struct{}

func (nopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }
func (nopLimiter) Fail(context.Context, string) error          { return nil }
func (nopLimiter) Reset(context.Context, string) error         { return nil }
