// ratelimit реализует счётчик неудачных попыток входа поверх Redis
// (фиксированное окно: INCR + EXPIRE на первой попытке).
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable — Redis недоступен или вернул ошибку.
var ErrUnavailable = errors.New("rate limiter unavailable")

// Limiter считает неудачные попытки входа по ключу (сервис передаёт id аккаунта).
type Limiter struct {
	rdb    *redis.Client
	prefix string
	max    int64
	window time.Duration
}

// New создаёт клиента Redis из URL (например, redis://:pass@host:6379/0)
// и проверяет соединение. Если prefix пустой — используется "accounts:login:".
func New(ctx context.Context, redisURL, prefix string, maxAttempts int, window time.Duration) (*Limiter, error) {
	const op = "ratelimit/New"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithClient(rdb, prefix, maxAttempts, window), nil
}

// NewWithClient оборачивает готовый клиент.
func NewWithClient(rdb *redis.Client, prefix string, maxAttempts int, window time.Duration) *Limiter {
	if prefix == "" {
		prefix = "accounts:login:"
	}

	return &Limiter{
		rdb:    rdb,
		prefix: prefix,
		max:    int64(maxAttempts),
		window: window,
	}
}

func (l *Limiter) key(identifier string) string {
	return l.prefix + strings.ToLower(strings.TrimSpace(identifier))
}

// Allow сообщает, можно ли выполнять попытку входа по ключу identifier.
// Лимит <= 0 отключает ограничение.
func (l *Limiter) Allow(ctx context.Context, identifier string) (bool, error) {
	if l.max <= 0 || identifier == "" {
		return true, nil
	}

	count, err := l.rdb.Get(ctx, l.key(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}

		return true, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return count < l.max, nil
}

// Fail фиксирует неудачную попытку. TTL выставляется на первой попытке окна.
func (l *Limiter) Fail(ctx context.Context, identifier string) error {
	if l.max <= 0 || identifier == "" {
		return nil
	}

	k := l.key(identifier)

	count, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count == 1 && l.window > 0 {
		if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return nil
}

// Reset обнуляет счётчик после успешного входа.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	if l.max <= 0 || identifier == "" {
		return nil
	}

	if err := l.rdb.Del(ctx, l.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Ping проверяет доступность Redis (readiness).
func (l *Limiter) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close закрывает клиент Redis.
func (l *Limiter) Close() error { return l.rdb.Close() }
