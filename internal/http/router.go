package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-accounts/internal/http/handlers"
	"github.com/pribylovaa/go-accounts/internal/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api/v1"; если пустой — роуты регистрируются на корне.
	// Metrics — опционально; nil отключает HTTP-метрики.
	Metrics *middleware.Metrics
	// Auth проверяет access-токены на защищённых маршрутах.
	Auth     middleware.TokenValidator
	Handlers handlers.Options
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc handlers.Accounts, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Metrics != nil {
		root.Use(opts.Metrics.Middleware())
	}
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	// Зависимости хендлеров.
	h := handlers.New(svc, opts.Handlers)
	auth := middleware.RequireAuth(opts.Auth)

	// Регистрация маршрутов.
	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, auth)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, auth)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, auth middleware.Middleware) {
	// public
	r.Post("/users/register", h.Register)
	r.Post("/users/login", h.Login)
	r.Post("/users/refresh-token", h.RefreshToken)

	// secured
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/users/logout", h.Logout)
		r.Post("/users/change-password", h.ChangePassword)
		r.Get("/users/current-user", h.CurrentUser)
		r.Patch("/users/update-account", h.UpdateAccount)
		r.Patch("/users/avatar", h.UpdateAvatar)
		r.Patch("/users/cover-image", h.UpdateCoverImage)
	})
}
