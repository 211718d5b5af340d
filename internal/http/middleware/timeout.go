package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	logctx "github.com/pribylovaa/go-accounts/internal/pkg/log"
)

// Timeout ограничивает обработку запроса API: дедлайн наследуют все вызовы
// MongoDB, MinIO, Redis и Kafka внутри сервиса. Уже выставленный дедлайн
// не меняется. d <= 0 отключает мидлвар.
//
// Если обработчик вернулся после истечения дедлайна, пишется
// request_deadline_exceeded (ответ клиенту формирует сам обработчик, обычно 504).
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				logctx.From(ctx).Warn("request_deadline_exceeded",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Duration("timeout", d),
				)
			}
		})
	}
}
