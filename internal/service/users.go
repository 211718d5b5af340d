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

// RegisterInput — данные регистрации. AvatarPath и CoverImagePath —
// временные локальные файлы, которые сервис загружает в медиа-хранилище.
type RegisterInput struct {
	FullName       string
	Username       string
	Email          string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// Register создаёт пользователя: проверяет поля и уникальность,
// загружает аватар (обязателен) и обложку (опционально), сохраняет запись.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "service.users.Register"

	// Временные файлы не должны пережить запрос при ранних ошибках.
	defer removeLocal(in.AvatarPath, in.CoverImagePath)

	fullName := strings.TrimSpace(in.FullName)
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if fullName == "" || username == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingFields)
	}

	if err := s.validate.Struct(profileRules{
		Username: username,
		Email:    email,
		FullName: fullName,
		Password: in.Password,
	}); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidArgument, err)
	}

	lg := log.From(ctx).With(
		slog.String("op", op),
		slog.String("email", redact.Email(email)),
	)

	_, err := s.storage.UserByUsernameOrEmail(ctx, username, email)
	if err == nil {
		lg.Info("register_duplicate")
		return nil, fmt.Errorf("%s: %w", op, ErrDuplicateUser)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		lg.Error("register_lookup_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if in.AvatarPath == "" {
		return nil, fmt.Errorf("%s: avatar file is required: %w", op, ErrMissingFields)
	}

	avatarURL, err := s.upload(ctx, in.AvatarPath)
	if err != nil {
		lg.Warn("avatar_upload_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var coverURL string
	if in.CoverImagePath != "" {
		// Обложка необязательна: при сбое загрузки регистрация продолжается без неё.
		if coverURL, err = s.upload(ctx, in.CoverImagePath); err != nil {
			lg.Warn("cover_image_upload_failed", slog.String("err", err.Error()))
			coverURL = ""
		}
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		s.deleteMedia(ctx, avatarURL, coverURL)
		lg.Error("password_hash_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	user, err := s.storage.CreateUser(ctx, &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		FullName:     fullName,
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		s.deleteMedia(ctx, avatarURL, coverURL)

		if errors.Is(err, storage.ErrAlreadyExists) {
			lg.Info("register_duplicate")
			return nil, fmt.Errorf("%s: %w", op, ErrDuplicateUser)
		}

		lg.Error("create_user_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.EventUserRegistered, user.ID)
	lg.Info("user_registered", slog.String("user_id", user.ID.String()))

	return user.Projection(), nil
}

// CurrentUser возвращает проекцию пользователя.
func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	const op = "service.users.CurrentUser"

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user.Projection(), nil
}

// UpdateAccountDetails обновляет полное имя и email.
func (s *Service) UpdateAccountDetails(ctx context.Context, userID uuid.UUID, fullName, email string) (*models.User, error) {
	const op = "service.users.UpdateAccountDetails"

	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))

	if fullName == "" || email == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingFields)
	}

	if err := s.validate.Struct(profileRules{Email: email, FullName: fullName}); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidArgument, err)
	}

	user, err := s.storage.UpdateUser(ctx, userID, storage.UserUpdate{FullName: &fullName, Email: &email})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		case errors.Is(err, storage.ErrAlreadyExists):
			return nil, fmt.Errorf("%s: %w", op, ErrDuplicateUser)
		}

		log.From(ctx).Error("update_account_failed",
			slog.String("op", op),
			slog.String("user_id", userID.String()),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user.Projection(), nil
}

// UpdateAvatar заменяет аватар пользователя. Прежний файл удаляется без гарантий.
func (s *Service) UpdateAvatar(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error) {
	const op = "service.users.UpdateAvatar"

	user, err := s.replaceImage(ctx, userID, localPath, func(u *models.User) string { return u.Avatar },
		func(url *string) storage.UserUpdate { return storage.UserUpdate{Avatar: url} })
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.EventAvatarUpdated, userID)

	return user, nil
}

// UpdateCoverImage заменяет обложку пользователя. Прежний файл удаляется без гарантий.
func (s *Service) UpdateCoverImage(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error) {
	const op = "service.users.UpdateCoverImage"

	user, err := s.replaceImage(ctx, userID, localPath, func(u *models.User) string { return u.CoverImage },
		func(url *string) storage.UserUpdate { return storage.UserUpdate{CoverImage: url} })
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, models.EventCoverImageUpdated, userID)

	return user, nil
}

// replaceImage загружает новый файл, сохраняет его URL и удаляет прежний объект.
func (s *Service) replaceImage(
	ctx context.Context,
	userID uuid.UUID,
	localPath string,
	current func(*models.User) string,
	update func(*string) storage.UserUpdate,
) (*models.User, error) {
	const op = "service.users.replaceImage"

	if localPath == "" {
		return nil, fmt.Errorf("%s: file is missing: %w", op, ErrMissingFields)
	}

	lg := log.From(ctx).With(slog.String("op", op), slog.String("user_id", userID.String()))

	before, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		removeLocal(localPath)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	url, err := s.upload(ctx, localPath)
	if err != nil {
		lg.Warn("image_upload_failed", slog.String("err", err.Error()))
		return nil, err
	}

	user, err := s.storage.UpdateUser(ctx, userID, update(&url))
	if err != nil {
		s.deleteMedia(ctx, url)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}

		lg.Error("image_update_failed", slog.String("err", err.Error()))
		return nil, err
	}

	if old := current(before); old != "" && old != url {
		s.deleteMedia(ctx, old)
	}

	lg.Info("image_updated")

	return user.Projection(), nil
}

// upload загружает файл и маппит ошибки хранилища в ошибки сервиса.
func (s *Service) upload(ctx context.Context, localPath string) (string, error) {
	url, err := s.media.Upload(ctx, localPath)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidArgument) {
			return "", fmt.Errorf("%w: unsupported file: %v", ErrInvalidArgument, err)
		}

		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if url == "" {
		return "", ErrUploadFailed
	}

	return url, nil
}

// deleteMedia удаляет объекты без гарантий: ошибки только логируются.
func (s *Service) deleteMedia(ctx context.Context, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}

		if err := s.media.Delete(ctx, url); err != nil {
			log.From(ctx).Warn("media_delete_failed", slog.String("err", err.Error()))
		}
	}
}
