// errors стандартизирует ответы об ошибках HTTP-слоя accounts-service.
// На вход принимает ошибку сервисного слоя, на выход даёт:
//   - корректный HTTP-статус;
//   - стабильный машиночитаемый code;
//   - краткое безопасное message без утечки деталей (текст сентинела, без op-цепочки).
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/go-accounts/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// APIError — единый формат для фронта.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// mapping — порядок важен: первая совпавшая строка выигрывает.
// ErrSessionIssuance стоит раньше ErrUserNotFound: пропажа пользователя
// в момент выпуска токенов — серверная ошибка, а не 404.
var mapping = []struct {
	target error
	status int
	code   string
}{
	{service.ErrSessionIssuance, http.StatusInternalServerError, "session_issuance_failed"},
	{service.ErrMissingCredentials, http.StatusBadRequest, "missing_credentials"},
	{service.ErrMissingFields, http.StatusBadRequest, "missing_fields"},
	{service.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{service.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{service.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{service.ErrMalformedToken, http.StatusUnauthorized, "malformed_token"},
	{service.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{service.ErrDuplicateUser, http.StatusConflict, "duplicate_user"},
	{service.ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts"},
	{service.ErrUploadFailed, http.StatusBadGateway, "upload_failed"},
}

// ToHTTP конвертирует ошибку сервиса в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500/internal;
//   - сентинел из пакета service — статус по таблице mapping, message = текст сентинела;
//   - превышение лимита тела — 413, отмена клиентом — 499, таймаут — 504;
//   - прочее — 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return internal()
	}

	for _, m := range mapping {
		if errors.Is(err, m.target) {
			return m.status, ErrorResponse{Error: APIError{Code: m.code, Message: m.target.Error()}}
		}
	}

	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, ErrorResponse{Error: APIError{Code: "payload_too_large", Message: "request body too large"}}
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, ErrorResponse{Error: APIError{Code: "canceled", Message: "canceled"}}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: APIError{Code: "deadline_exceeded", Message: "deadline exceeded"}}
	}

	return internal()
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func internal() (int, ErrorResponse) {
	return http.StatusInternalServerError, ErrorResponse{
		Error: APIError{
			Code:    "internal",
			Message: "internal error",
		},
	}
}
