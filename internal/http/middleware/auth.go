package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	apierrors "github.com/pribylovaa/go-accounts/internal/errors"
	logctx "github.com/pribylovaa/go-accounts/internal/pkg/log"
	"github.com/pribylovaa/go-accounts/internal/service"
)

// AccessCookie — имя cookie с access-токеном.
const AccessCookie = "accessToken"

// TokenValidator проверяет access-токен и возвращает id пользователя.
type TokenValidator interface {
	ValidateAccessToken(token string) (uuid.UUID, error)
}

type userIDKey struct{}

// RequireAuth пропускает запрос только с действующим access-токеном.
// Токен ищется в cookie accessToken, затем в заголовке Authorization: Bearer;
// если токен из cookie не прошёл проверку (устарел после ротации),
// проверяется Bearer. id пользователя кладётся в контекст (см. UserIDFrom)
// и в логгер запроса.
func RequireAuth(v TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			candidates := accessTokens(r)
			if len(candidates) == 0 {
				apierrors.WriteError(w, r, service.ErrUnauthenticated)
				return
			}

			var (
				uid uuid.UUID
				err error
			)
			for _, token := range candidates {
				if uid, err = v.ValidateAccessToken(token); err == nil {
					break
				}
			}
			if err != nil {
				logctx.From(r.Context()).Info("access_token_rejected")
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := WithUserID(r.Context(), uid)
			ctx = logctx.With(ctx, "user_id", uid.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUserID кладёт id пользователя в контекст.
func WithUserID(ctx context.Context, uid uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, uid)
}

// UserIDFrom возвращает id аутентифицированного пользователя.
func UserIDFrom(ctx context.Context) (uuid.UUID, bool) {
	uid, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return uid, ok
}

// accessTokens возвращает непустые токены в порядке проверки: cookie, затем Bearer.
func accessTokens(r *http.Request) []string {
	var out []string

	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		out = append(out, c.Value)
	}

	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, prefix) {
		if token := strings.TrimSpace(auth[len(prefix):]); token != "" {
			out = append(out, token)
		}
	}

	return out
}
