package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/pribylovaa/go-accounts/internal/errors"
	logctx "github.com/pribylovaa/go-accounts/internal/pkg/log"
)

// errPanic отдаётся клиенту как 500/internal; причина паники остаётся в логе.
var errPanic = errors.New("handler panic")

// Recover превращает panic обработчика accounts-service в 500/internal.
// http.ErrAbortHandler пробрасывается дальше: им net/http обрывает соединение.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic_recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", r.Header.Get("X-Request-Id")),
					slog.Any("reason", rec),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.WriteError(w, r, errPanic)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
