// handlers — REST-обработчики accounts-service поверх service.Service.
// Успешные ответы отдаются в конверте {statusCode, data, message, success},
// ошибки — через apierrors.WriteError.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pribylovaa/go-accounts/internal/config"
	apierrors "github.com/pribylovaa/go-accounts/internal/errors"
	"github.com/pribylovaa/go-accounts/internal/http/middleware"
	"github.com/pribylovaa/go-accounts/internal/models"
	"github.com/pribylovaa/go-accounts/internal/service"
)

// Accounts — операции сервиса, которые нужны обработчикам.
type Accounts interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.User, error)
	Login(ctx context.Context, in service.LoginInput) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateAccountDetails(ctx context.Context, userID uuid.UUID, fullName, email string) (*models.User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error)
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error)
}

// Options — параметры транспорта.
type Options struct {
	Cookie config.CookieConfig
	// TempDir — каталог для multipart-файлов; пусто — os.TempDir().
	TempDir string
	// MaxBodyBytes — лимит тела запроса; <=0 — без лимита.
	MaxBodyBytes int64
}

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	svc  Accounts
	opts Options
}

func New(svc Accounts, opts Options) *Handlers {
	return &Handlers{svc: svc, opts: opts}
}

// apiResponse — конверт успешного ответа.
type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeOK(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, apiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func (h *Handlers) decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	h.limitBody(w, r)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	return badRequest(dec.Decode(value))
}

// decodeOptional — как decodeStrict, но пустое тело не ошибка.
func (h *Handlers) decodeOptional(w http.ResponseWriter, r *http.Request, value any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	err := h.decodeStrict(w, r, value)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

func (h *Handlers) limitBody(w http.ResponseWriter, r *http.Request) {
	if h.opts.MaxBodyBytes > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	}
}

// badRequest — локальная ошибка разбора тела -> ErrInvalidArgument.
// Превышение лимита тела пробрасывается как есть (413).
func badRequest(err error) error {
	if err == nil {
		return nil
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}

	return fmt.Errorf("%w: %w", service.ErrInvalidArgument, err)
}

// userID — id из контекста, положенный RequireAuth.
func userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	uid, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthenticated)
		return uuid.Nil, false
	}

	return uid, true
}
