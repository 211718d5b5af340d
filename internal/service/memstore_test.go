package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/go-accounts/internal/config"
	"github.com/pribylovaa/go-accounts/internal/models"
	"github.com/pribylovaa/go-accounts/internal/storage"
	"github.com/stretchr/testify/require"
)

// memStorage — потокобезопасная in-memory реализация storage.Storage
// для проверки жизненного цикла сессии на реальном состоянии.
type memStorage struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func newMemStorage() *memStorage {
	return &memStorage{users: make(map[uuid.UUID]models.User)}
}

func (m *memStorage) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, storage.ErrAlreadyExists
		}
	}

	u := *user
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u

	return &u, nil
}

func (m *memStorage) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return &u, nil
}

func (m *memStorage) UserByUsernameOrEmail(_ context.Context, username, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return &u, nil
		}
	}

	return nil, storage.ErrNotFound
}

func (m *memStorage) UpdateUser(_ context.Context, id uuid.UUID, upd storage.UserUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	if upd.Email != nil {
		for oid, o := range m.users {
			if oid != id && o.Email == *upd.Email {
				return nil, storage.ErrAlreadyExists
			}
		}
		u.Email = *upd.Email
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	if upd.CoverImage != nil {
		u.CoverImage = *upd.CoverImage
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.ClearRefreshToken {
		u.RefreshToken = ""
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u

	return &u, nil
}

func (m *memStorage) SetRefreshToken(_ context.Context, id uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.RefreshToken = token
	m.users[id] = u

	return nil
}

func (m *memStorage) SwapRefreshToken(_ context.Context, id uuid.UUID, expected, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok || expected == "" || u.RefreshToken != expected {
		return storage.ErrConflict
	}
	u.RefreshToken = next
	m.users[id] = u

	return nil
}

func (m *memStorage) UnsetRefreshToken(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.RefreshToken = ""
	m.users[id] = u

	return nil
}

func (m *memStorage) Close() {}

func (m *memStorage) storedRefresh(t *testing.T, id uuid.UUID) string {
	t.Helper()

	u, err := m.UserByID(context.Background(), id)
	require.NoError(t, err)

	return u.RefreshToken
}

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenSecret: "refresh-secret",
		RefreshTokenTTL:    24 * time.Hour,
		Issuer:             "accounts-service",
	}
}

// newMemService создаёт сервис поверх memStorage и заводит пользователя alice.
func newMemService(t *testing.T) (*Service, *memStorage, *models.User) {
	t.Helper()

	st := newMemStorage()
	svc := New(Deps{Storage: st, Auth: testAuthCfg()})

	hash, err := hashPassword("secret-pw")
	require.NoError(t, err)

	u, err := st.CreateUser(context.Background(), &models.User{
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice Liddell",
		Avatar:       "http://cdn.local/users/a.png",
		PasswordHash: hash,
	})
	require.NoError(t, err)

	return svc, st, u
}
