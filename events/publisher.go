// Package events emits lead lifecycle events to a topic exchange so
// downstream services (quoting, analytics) can react to qualified leads
// without polling the store.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/danielmdadu/leadagent/lead"
)

// Routing keys.
const (
	KeyLeadQualified = "lead.qualified"
	KeyLeadReset     = "lead.reset"
)

// Envelope is the wire shape of every event.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Producer      string    `json:"producer,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Time          time.Time `json:"time"`
}

// QualifiedLead is the payload of lead.qualified.
type QualifiedLead struct {
	WAID   string       `json:"wa_id"`
	Record *lead.Record `json:"record"`
}

// Reset is the payload of lead.reset.
type Reset struct {
	WAID string `json:"wa_id"`
}

// Publisher emits one event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, data any) error
	Close() error
}

type rmqPublisher struct {
	conn     *amqp091.Connection
	exchange string
	producer string
	log      *slog.Logger
}

// NewRabbit connects, declares the topic exchange, and returns a durable
// publisher.
func NewRabbit(url, exchange string, logger *slog.Logger) (Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &rmqPublisher{
		conn:     conn,
		exchange: exchange,
		producer: "leadagent",
		log:      logger,
	}, nil
}

func (r *rmqPublisher) Publish(ctx context.Context, key string, data any) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	now := time.Now().UTC()
	id := uuid.NewString()
	body, err := sonic.Marshal(Envelope{
		Meta: Meta{
			ID:            id,
			Type:          key + ".v1",
			Producer:      r.producer,
			CorrelationID: uuid.NewString(),
			Time:          now,
		},
		Data: data,
	})
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx, r.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    id,
			Timestamp:    now,
			Body:         body,
		},
	)
	if err == nil {
		r.log.Info("event published", slog.String("key", key), slog.String("exchange", r.exchange))
	}
	return err
}

func (r *rmqPublisher) Close() error {
	return r.conn.Close()
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

func (Noop) Close() error { return nil }
