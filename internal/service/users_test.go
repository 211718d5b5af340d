package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/pribylovaa/go-accounts/internal/models"
	"github.com/pribylovaa/go-accounts/internal/storage"
	"github.com/pribylovaa/go-accounts/mocks"
	"github.com/stretchr/testify/require"
)

func newMediaService(t *testing.T) (*Service, *memStorage, *mocks.MockMediaStorage) {
	t.Helper()

	ctrl := gomock.NewController(t)
	media := mocks.NewMockMediaStorage(ctrl)
	st := newMemStorage()

	return New(Deps{Storage: st, Media: media, Auth: testAuthCfg()}), st, media
}

func tempFile(t *testing.T, name string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("img"), 0o600))

	return p
}

func validRegister(t *testing.T) RegisterInput {
	t.Helper()

	return RegisterInput{
		FullName:       " Alice Liddell ",
		Username:       "Alice",
		Email:          "Alice@Example.com",
		Password:       "secret-pw",
		AvatarPath:     tempFile(t, "avatar.png"),
		CoverImagePath: tempFile(t, "cover.png"),
	}
}

func TestRegister_OK(t *testing.T) {
	t.Parallel()

	svc, st, media := newMediaService(t)
	in := validRegister(t)

	media.EXPECT().Upload(gomock.Any(), in.AvatarPath).Return("http://cdn.local/users/a.png", nil)
	media.EXPECT().Upload(gomock.Any(), in.CoverImagePath).Return("http://cdn.local/users/c.png", nil)

	u, err := svc.Register(context.Background(), in)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, u.ID)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, "alice@example.com", u.Email)
	require.Equal(t, "Alice Liddell", u.FullName)
	require.Equal(t, "http://cdn.local/users/a.png", u.Avatar)
	require.Equal(t, "http://cdn.local/users/c.png", u.CoverImage)
	require.Empty(t, u.PasswordHash)
	require.Empty(t, u.RefreshToken)

	// Временные файлы удалены.
	require.NoFileExists(t, in.AvatarPath)
	require.NoFileExists(t, in.CoverImagePath)

	stored, err := st.UserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.True(t, checkPassword(stored.PasswordHash, "secret-pw"))

	// Зарегистрированный пользователь может войти.
	_, err = svc.Login(context.Background(), LoginInput{Username: "alice", Password: "secret-pw"})
	require.NoError(t, err)
}

func TestRegister_CoverUploadFailure_IsNotFatal(t *testing.T) {
	t.Parallel()

	svc, _, media := newMediaService(t)
	in := validRegister(t)

	media.EXPECT().Upload(gomock.Any(), in.AvatarPath).Return("http://cdn.local/users/a.png", nil)
	media.EXPECT().Upload(gomock.Any(), in.CoverImagePath).Return("", storage.ErrUploadFailed)

	u, err := svc.Register(context.Background(), in)
	require.NoError(t, err)
	require.Empty(t, u.CoverImage)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	svc, _, _ := newMediaService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		mod  func(*RegisterInput)
		want error
	}{
		{name: "blank full name", mod: func(in *RegisterInput) { in.FullName = "  " }, want: ErrMissingFields},
		{name: "blank username", mod: func(in *RegisterInput) { in.Username = "" }, want: ErrMissingFields},
		{name: "blank email", mod: func(in *RegisterInput) { in.Email = "" }, want: ErrMissingFields},
		{name: "blank password", mod: func(in *RegisterInput) { in.Password = " " }, want: ErrMissingFields},
		{name: "bad email", mod: func(in *RegisterInput) { in.Email = "not-an-email" }, want: ErrInvalidArgument},
		{name: "bad username", mod: func(in *RegisterInput) { in.Username = "a b" }, want: ErrInvalidArgument},
		{name: "short username", mod: func(in *RegisterInput) { in.Username = "ab" }, want: ErrInvalidArgument},
		{name: "password over 72 bytes", mod: func(in *RegisterInput) { in.Password = strings.Repeat("p", 73) }, want: ErrInvalidArgument},
		{name: "multibyte password over 72 bytes", mod: func(in *RegisterInput) { in.Password = strings.Repeat("ж", 40) }, want: ErrInvalidArgument},
		{name: "missing avatar", mod: func(in *RegisterInput) { in.AvatarPath = "" }, want: ErrMissingFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegister(t)
			tt.mod(&in)

			_, err := svc.Register(ctx, in)
			require.ErrorIs(t, err, tt.want)
			require.NoFileExists(t, in.CoverImagePath)
		})
	}
}

func TestRegister_Duplicate_OnLookup(t *testing.T) {
	t.Parallel()

	svc, st, _ := newMediaService(t)
	_, err := st.CreateUser(context.Background(), &models.User{Username: "alice", Email: "other@example.com"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), validRegister(t))
	require.ErrorIs(t, err, ErrDuplicateUser)
}

// Гонка уникальности на вставке: ошибка дубликата, загруженные файлы удаляются.
func TestRegister_Duplicate_OnCreate_CleansUpMedia(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	media := mocks.NewMockMediaStorage(ctrl)
	svc := New(Deps{Storage: st, Media: media, Auth: testAuthCfg()})

	in := validRegister(t)

	st.EXPECT().UserByUsernameOrEmail(gomock.Any(), "alice", "alice@example.com").Return(nil, storage.ErrNotFound)
	media.EXPECT().Upload(gomock.Any(), in.AvatarPath).Return("http://cdn.local/users/a.png", nil)
	media.EXPECT().Upload(gomock.Any(), in.CoverImagePath).Return("http://cdn.local/users/c.png", nil)
	st.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(nil, storage.ErrAlreadyExists)
	media.EXPECT().Delete(gomock.Any(), "http://cdn.local/users/a.png").Return(nil)
	media.EXPECT().Delete(gomock.Any(), "http://cdn.local/users/c.png").Return(errors.New("s3 down"))

	_, err := svc.Register(context.Background(), in)
	require.ErrorIs(t, err, ErrDuplicateUser)
}

func TestRegister_AvatarUploadErrors(t *testing.T) {
	t.Parallel()

	t.Run("upload failed", func(t *testing.T) {
		svc, _, media := newMediaService(t)
		media.EXPECT().Upload(gomock.Any(), gomock.Any()).Return("", storage.ErrUploadFailed)

		_, err := svc.Register(context.Background(), validRegister(t))
		require.ErrorIs(t, err, ErrUploadFailed)
	})

	t.Run("empty url", func(t *testing.T) {
		svc, _, media := newMediaService(t)
		media.EXPECT().Upload(gomock.Any(), gomock.Any()).Return("", nil)

		_, err := svc.Register(context.Background(), validRegister(t))
		require.ErrorIs(t, err, ErrUploadFailed)
	})

	t.Run("unsupported file", func(t *testing.T) {
		svc, _, media := newMediaService(t)
		media.EXPECT().Upload(gomock.Any(), gomock.Any()).Return("", storage.ErrInvalidArgument)

		_, err := svc.Register(context.Background(), validRegister(t))
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	svc, st, _ := newMediaService(t)
	u, err := st.CreateUser(context.Background(), &models.User{Username: "alice", Email: "a@example.com", PasswordHash: "h", RefreshToken: "r"})
	require.NoError(t, err)

	got, err := svc.CurrentUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", got.Username)
	require.Empty(t, got.PasswordHash)
	require.Empty(t, got.RefreshToken)

	_, err = svc.CurrentUser(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateAccountDetails(t *testing.T) {
	t.Parallel()

	svc, st, _ := newMediaService(t)
	ctx := context.Background()

	u, err := st.CreateUser(ctx, &models.User{Username: "alice", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = st.CreateUser(ctx, &models.User{Username: "bob", Email: "b@example.com"})
	require.NoError(t, err)

	got, err := svc.UpdateAccountDetails(ctx, u.ID, "Alice L.", "Alice@New.com")
	require.NoError(t, err)
	require.Equal(t, "Alice L.", got.FullName)
	require.Equal(t, "alice@new.com", got.Email)

	_, err = svc.UpdateAccountDetails(ctx, u.ID, "", "x@example.com")
	require.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.UpdateAccountDetails(ctx, u.ID, "Alice", "broken")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.UpdateAccountDetails(ctx, u.ID, "Alice", "b@example.com")
	require.ErrorIs(t, err, ErrDuplicateUser)

	_, err = svc.UpdateAccountDetails(ctx, uuid.New(), "Ghost", "g@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateAvatar_ReplacesAndDeletesOld(t *testing.T) {
	t.Parallel()

	svc, st, media := newMediaService(t)
	ctx := context.Background()

	u, err := st.CreateUser(ctx, &models.User{Username: "alice", Email: "a@example.com", Avatar: "http://cdn.local/users/old.png"})
	require.NoError(t, err)

	p := tempFile(t, "new.png")
	media.EXPECT().Upload(gomock.Any(), p).Return("http://cdn.local/users/new.png", nil)
	media.EXPECT().Delete(gomock.Any(), "http://cdn.local/users/old.png").Return(nil)

	got, err := svc.UpdateAvatar(ctx, u.ID, p)
	require.NoError(t, err)
	require.Equal(t, "http://cdn.local/users/new.png", got.Avatar)
}

func TestUpdateCoverImage_NoPreviousCover(t *testing.T) {
	t.Parallel()

	svc, st, media := newMediaService(t)
	ctx := context.Background()

	u, err := st.CreateUser(ctx, &models.User{Username: "alice", Email: "a@example.com", Avatar: "http://cdn.local/users/a.png"})
	require.NoError(t, err)

	p := tempFile(t, "cover.png")
	media.EXPECT().Upload(gomock.Any(), p).Return("http://cdn.local/users/c.png", nil)

	got, err := svc.UpdateCoverImage(ctx, u.ID, p)
	require.NoError(t, err)
	require.Equal(t, "http://cdn.local/users/c.png", got.CoverImage)
	require.Equal(t, "http://cdn.local/users/a.png", got.Avatar)
}

func TestUpdateImage_Errors(t *testing.T) {
	t.Parallel()

	svc, st, media := newMediaService(t)
	ctx := context.Background()

	u, err := st.CreateUser(ctx, &models.User{Username: "alice", Email: "a@example.com", Avatar: "http://cdn.local/users/a.png"})
	require.NoError(t, err)

	_, err = svc.UpdateAvatar(ctx, u.ID, "")
	require.ErrorIs(t, err, ErrMissingFields)

	p := tempFile(t, "x.png")
	_, err = svc.UpdateAvatar(ctx, uuid.New(), p)
	require.ErrorIs(t, err, ErrUserNotFound)
	require.NoFileExists(t, p)

	p = tempFile(t, "y.png")
	media.EXPECT().Upload(gomock.Any(), p).Return("", storage.ErrUploadFailed)
	_, err = svc.UpdateCoverImage(ctx, u.ID, p)
	require.ErrorIs(t, err, ErrUploadFailed)

	// Аватар остался прежним.
	got, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "http://cdn.local/users/a.png", got.Avatar)
}
