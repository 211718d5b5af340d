package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/go-accounts/internal/models"
	"github.com/pribylovaa/go-accounts/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userDoc — представление пользователя в коллекции users.
// _id хранится строкой UUID, refresh_token отсутствует в документе, если сессии нет.
type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	FullName     string    `bson:"full_name"`
	Avatar       string    `bson:"avatar"`
	CoverImage   string    `bson:"cover_image"`
	Password     string    `bson:"password"`
	RefreshToken string    `bson:"refresh_token,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// MongoDB DateTime хранит миллисекунды.
func toMS(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

func fromModel(u *models.User) userDoc {
	return userDoc{
		ID:           u.ID.String(),
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		Avatar:       u.Avatar,
		CoverImage:   u.CoverImage,
		Password:     u.PasswordHash,
		RefreshToken: u.RefreshToken,
		CreatedAt:    toMS(u.CreatedAt),
		UpdatedAt:    toMS(u.UpdatedAt),
	}
}

func (d userDoc) toModel() (*models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("bad user id %q: %w", d.ID, err)
	}

	return &models.User{
		ID:           id,
		Username:     d.Username,
		Email:        d.Email,
		FullName:     d.FullName,
		Avatar:       d.Avatar,
		CoverImage:   d.CoverImage,
		PasswordHash: d.Password,
		RefreshToken: d.RefreshToken,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}, nil
}

// CreateUser вставляет документ пользователя.
// ID генерируется, если не задан; created_at/updated_at выставляются хранилищем.
func (m *Mongo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	const op = "storage/mongo/CreateUser"

	u := *user
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	now := toMS(time.Now())
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := m.users.InsertOne(ctx, fromModel(&u)); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	return &u, nil
}

// UserByID возвращает пользователя по идентификатору.
func (m *Mongo) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage/mongo/UserByID"

	return m.findOne(ctx, op, bson.D{{Key: "_id", Value: id.String()}})
}

// UserByUsernameOrEmail ищет пользователя по username ИЛИ email.
func (m *Mongo) UserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	const op = "storage/mongo/UserByUsernameOrEmail"

	or := bson.A{}
	if username != "" {
		or = append(or, bson.D{{Key: "username", Value: username}})
	}

	if email != "" {
		or = append(or, bson.D{{Key: "email", Value: email}})
	}

	if len(or) == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return m.findOne(ctx, op, bson.D{{Key: "$or", Value: or}})
}

// UpdateUser применяет частичный апдейт и возвращает запись после изменения.
// Поля, не указанные в update, не трогаются.
func (m *Mongo) UpdateUser(ctx context.Context, id uuid.UUID, update storage.UserUpdate) (*models.User, error) {
	const op = "storage/mongo/UpdateUser"

	set := bson.D{{Key: "updated_at", Value: toMS(time.Now())}}
	if update.FullName != nil {
		set = append(set, bson.E{Key: "full_name", Value: *update.FullName})
	}

	if update.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *update.Email})
	}

	if update.Avatar != nil {
		set = append(set, bson.E{Key: "avatar", Value: *update.Avatar})
	}

	if update.CoverImage != nil {
		set = append(set, bson.E{Key: "cover_image", Value: *update.CoverImage})
	}

	if update.PasswordHash != nil {
		set = append(set, bson.E{Key: "password", Value: *update.PasswordHash})
	}

	doc := bson.D{{Key: "$set", Value: set}}
	if update.ClearRefreshToken {
		doc = append(doc, bson.E{Key: "$unset", Value: bson.D{{Key: "refresh_token", Value: ""}}})
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var out userDoc
	err := m.users.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id.String()}}, doc, opts).Decode(&out)
	if err != nil {
		switch {
		case errors.Is(err, mongodriver.ErrNoDocuments):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		case mongodriver.IsDuplicateKeyError(err):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	u, err := out.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// SetRefreshToken безусловно перезаписывает refresh-токен (last write wins).
func (m *Mongo) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	const op = "storage/mongo/SetRefreshToken"

	res, err := m.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "refresh_token", Value: token},
			{Key: "updated_at", Value: toMS(time.Now())},
		}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// SwapRefreshToken — условная замена: документ обновляется, только если
// в нём всё ещё лежит expected. Из двух конкурентных обновлений с одним
// и тем же expected применится ровно одно.
func (m *Mongo) SwapRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error {
	const op = "storage/mongo/SwapRefreshToken"

	if expected == "" {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}

	res, err := m.users.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: id.String()},
			{Key: "refresh_token", Value: expected},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "refresh_token", Value: next},
			{Key: "updated_at", Value: toMS(time.Now())},
		}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}

	return nil
}

// UnsetRefreshToken удаляет поле refresh_token.
// Если поля уже нет — это не ошибка; ErrNotFound только при отсутствии пользователя.
func (m *Mongo) UnsetRefreshToken(ctx context.Context, id uuid.UUID) error {
	const op = "storage/mongo/UnsetRefreshToken"

	res, err := m.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id.String()}},
		bson.D{{Key: "$unset", Value: bson.D{{Key: "refresh_token", Value: ""}}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func (m *Mongo) findOne(ctx context.Context, op string, filter bson.D) (*models.User, error) {
	var out userDoc
	if err := m.users.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := out.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}
