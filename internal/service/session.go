package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pribylovaa/go-accounts/internal/models"
	"github.com/pribylovaa/go-accounts/internal/pkg/log"
	"github.com/pribylovaa/go-accounts/internal/pkg/redact"
	"github.com/pribylovaa/go-accounts/internal/storage"
)

// LoginInput — учётные данные для входа: username и/или email плюс пароль.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Login выполняет вход по username или email и паролю.
// Возвращает пару токенов и проекцию пользователя без секретных полей.
func (s *Service) Login(ctx context.Context, in LoginInput) (*models.Session, error) {
	const op = "service.session.Login"

	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if (username == "" && email == "") || in.Password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingCredentials)
	}

	identifier := username
	if identifier == "" {
		identifier = email
	}

	lg := log.From(ctx).With(slog.String("op", op), slog.String("identifier", redact.Identifier(identifier)))

	user, err := s.storage.UserByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Info("login_user_not_found")
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		lg.Error("login_lookup_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Счётчик попыток ведётся по найденному аккаунту, а не по присланному
	// идентификатору: username и email одного пользователя делят один лимит.
	limitKey := user.ID.String()
	lg = lg.With(slog.String("user_id", limitKey))

	allowed, err := s.limiter.Allow(ctx, limitKey)
	if err != nil {
		lg.Warn("login_limiter_unavailable", slog.String("err", err.Error()))
	}
	if !allowed {
		lg.Warn("login_throttled")
		return nil, fmt.Errorf("%s: %w", op, ErrTooManyAttempts)
	}

	if !checkPassword(user.PasswordHash, in.Password) {
		if err := s.limiter.Fail(ctx, limitKey); err != nil {
			lg.Warn("login_limiter_unavailable", slog.String("err", err.Error()))
		}

		lg.Info("login_failed")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	tokens, user, err := s.issueTokenPair(ctx, user.ID, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.limiter.Reset(ctx, limitKey); err != nil {
		lg.Warn("login_limiter_unavailable", slog.String("err", err.Error()))
	}

	s.publish(ctx, models.EventUserLoggedIn, user.ID)
	lg.Info("login_succeeded")

	return &models.Session{Tokens: tokens, User: user.Projection()}, nil
}

// Refresh обновляет пару токенов по refresh-токену (ротация).
// Предъявленный токен должен совпадать с сохранённым у пользователя,
// иначе ErrUnauthenticated: так logout и повторный вход сразу отзывают прежние токены.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	const op = "service.session.Refresh"

	lg := log.From(ctx).With(slog.String("op", op))

	if refreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	userID, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		lg.Info("refresh_token_rejected", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthenticated, err)
	}

	lg = lg.With(slog.String("user_id", userID.String()))

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Info("refresh_user_not_found")
			return nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
		}

		lg.Error("refresh_lookup_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		lg.Warn("refresh_revoked")
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	tokens, user, err := s.issueTokenPair(ctx, user.ID, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("refresh_succeeded")

	return &models.Session{Tokens: tokens, User: user.Projection()}, nil
}

// Logout удаляет сохранённый refresh-токен пользователя.
// Повторный вызов (сессии уже нет) не является ошибкой.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "service.session.Logout"

	lg := log.From(ctx).With(slog.String("op", op), slog.String("user_id", userID.String()))

	if err := s.storage.UnsetRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		lg.Error("logout_failed", slog.String("err", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.EventUserLoggedOut, userID)
	lg.Info("logout_succeeded")

	return nil
}

// ChangePassword меняет пароль после проверки старого.
// Если не задано auth.keep_session_on_password_change, в том же обновлении
// удаляется refresh-токен: действующие сессии завершаются.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	const op = "service.session.ChangePassword"

	if oldPassword == "" || newPassword == "" {
		return fmt.Errorf("%s: %w", op, ErrMissingFields)
	}

	if err := s.validate.Struct(profileRules{Password: newPassword}); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidArgument, err)
	}

	lg := log.From(ctx).With(slog.String("op", op), slog.String("user_id", userID.String()))

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		lg.Error("change_password_lookup_failed", slog.String("err", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, oldPassword) {
		lg.Info("change_password_invalid_old")
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		lg.Error("password_hash_failed", slog.String("err", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	update := storage.UserUpdate{
		PasswordHash:      &hash,
		ClearRefreshToken: !s.cfg.KeepSessionOnPasswordChange,
	}

	if _, err := s.storage.UpdateUser(ctx, userID, update); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		lg.Error("change_password_failed", slog.String("err", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.EventPasswordChanged, userID)
	lg.Info("password_changed", slog.Bool("session_revoked", update.ClearRefreshToken))

	return nil
}

// issueTokenPair выпускает новую пару токенов и сохраняет refresh-токен у пользователя.
// Если expected == "", сохранённое значение перезаписывается (вход);
// иначе заменяется, только если всё ещё равно expected (ротация при refresh).
// Любая ошибка выпуска/сохранения оборачивается в ErrSessionIssuance,
// кроме проигранной гонки ротации: она возвращается как ErrUnauthenticated.
func (s *Service) issueTokenPair(ctx context.Context, userID uuid.UUID, expected string) (*models.TokenPair, *models.User, error) {
	const op = "service.session.issueTokenPair"

	lg := log.From(ctx).With(slog.String("op", op), slog.String("user_id", userID.String()))

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w: %w", op, ErrSessionIssuance, ErrUserNotFound)
		}

		lg.Error("issue_lookup_failed", slog.String("err", err.Error()))
		return nil, nil, fmt.Errorf("%s: %w: %v", op, ErrSessionIssuance, err)
	}

	access, accessExp, err := s.tokens.MintAccessToken(user)
	if err != nil {
		lg.Error("access_token_sign_failed", slog.String("err", err.Error()))
		return nil, nil, fmt.Errorf("%s: %w: %v", op, ErrSessionIssuance, err)
	}

	refresh, refreshExp, err := s.tokens.MintRefreshToken(user.ID)
	if err != nil {
		lg.Error("refresh_token_sign_failed", slog.String("err", err.Error()))
		return nil, nil, fmt.Errorf("%s: %w: %v", op, ErrSessionIssuance, err)
	}

	if expected == "" {
		err = s.storage.SetRefreshToken(ctx, user.ID, refresh)
	} else {
		err = s.storage.SwapRefreshToken(ctx, user.ID, expected, refresh)
	}

	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			lg.Warn("refresh_rotation_conflict")
			return nil, nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
		}

		lg.Error("save_refresh_token_failed", slog.String("err", err.Error()))
		return nil, nil, fmt.Errorf("%s: %w: %v", op, ErrSessionIssuance, err)
	}

	user.RefreshToken = refresh

	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, user, nil
}

// publish отправляет событие; ошибка только логируется.
func (s *Service) publish(ctx context.Context, typ models.EventType, userID uuid.UUID) {
	event := models.Event{Type: typ, UserID: userID, OccurredAt: s.now()}

	if err := s.events.Publish(ctx, event); err != nil {
		log.From(ctx).Warn("event_publish_failed",
			slog.String("type", string(typ)),
			slog.String("user_id", userID.String()),
			slog.String("err", err.Error()),
		)
	}
}
