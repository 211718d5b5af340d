// mongo предоставляет реализацию storage.Storage на базе MongoDB.
// mongo.go - подключение, проверка доступности и индексы уникальности.
// users.go - операции над учётными записями и refresh-токеном.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pribylovaa/go-accounts/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection = "users"
	defaultDBName   = "accounts"
	closeTimeout    = 5 * time.Second
)

// Mongo - тонкий адаптер для подключения и коллекции пользователей MongoDB.
type Mongo struct {
	client *mongodriver.Client
	db     *mongodriver.Database
	users  *mongodriver.Collection
}

// New подключается к MongoDB, проверяет его, подготавливает коллекцию и индексы.
func New(ctx context.Context, uri string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(uri))

	m := &Mongo{
		client: cli,
		db:     db,
		users:  db.Collection(usersCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		m.Close()
		return nil, err
	}

	return m, nil
}

// Close отключает клиента.
func (m *Mongo) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	_ = m.client.Disconnect(ctx)
}

// Ping проверяет доступность primary (используется readiness-пробой).
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// ensureIndexes создаёт уникальные индексы username и email:
// уникальность гарантируется БД, проверка в сервисе лишь даёт раннюю ошибку.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	models := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName("uniq_username").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_email").SetUnique(true),
		},
	}

	if _, err := m.users.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}

	return nil
}

// databaseFromURI извлекает имя базы данных из URI-пути mongodb.
// Если оно отсутствует или не поддается расшифровке, возвращает значение по умолчанию.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}

	return defaultDBName
}

// Проверка выполнения контракта верхнего уровня.
var _ storage.Storage = (*Mongo)(nil)
