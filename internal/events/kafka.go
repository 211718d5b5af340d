// events публикует события жизненного цикла учётных записей в Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pribylovaa/go-accounts/internal/models"
	"github.com/segmentio/kafka-go"
)

// messageWriter — часть *kafka.Writer, используемая издателем.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher пишет события в один топик; ключ сообщения — id пользователя,
// поэтому события одного пользователя попадают в одну партицию.
type Publisher struct {
	w       messageWriter
	timeout time.Duration
}

// batchTimeout — сколько writer ждёт добора пачки; по умолчанию в kafka-go это 1s,
// что при синхронной записи одного события добавляется к каждому запросу.
const batchTimeout = 5 * time.Millisecond

// NewPublisher создаёт издателя поверх kafka.Writer.
// События пишутся по одному: пачка из одного сообщения уходит сразу.
func NewPublisher(brokers []string, topic string, writeTimeout time.Duration) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           writeTimeout,
		BatchSize:              1,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}

	return &Publisher{w: w, timeout: writeTimeout}
}

// Publish сериализует событие в JSON и отправляет его синхронно.
func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	const op = "events/Publish"

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID.String()),
		Value: data,
		Time:  event.OccurredAt,
	}

	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close дожидается отправки буфера и закрывает соединения.
func (p *Publisher) Close() error { return p.w.Close() }

// Nop — издатель-заглушка, когда Kafka не сконфигурирована.
type Nop struct{}

func (Nop) Publish(context.Context, models.Event) error { return nil }

func (Nop) Close() error { return nil }
