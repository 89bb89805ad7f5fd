package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"LedgerApi/internal/model"
)

const exchangeKind = "topic"

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher emits transaction.completed events to a durable topic exchange.
type Publisher struct {
	channel  Channel
	exchange string
	logger   zerolog.Logger
}

// NewPublisher declares the exchange and returns a publisher bound to it.
func NewPublisher(ch Channel, exchange string, logger zerolog.Logger) (*Publisher, error) {
	if err := ch.ExchangeDeclare(
		exchange,
		exchangeKind,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &Publisher{channel: ch, exchange: exchange, logger: logger}, nil
}

func (p *Publisher) Publish(ctx context.Context, t model.Transaction) error {
	eventID := uuid.NewString()
	body, err := json.Marshal(model.NewWebhookPayload(eventID, time.Now(), t))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		model.EventTransactionCompleted,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    eventID,
			Timestamp:    time.Now().UTC(),
			Type:         model.EventTransactionCompleted,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug().
		Str("routing_key", model.EventTransactionCompleted).
		Str("transaction_id", t.ID).
		Msg("event published")
	return nil
}
