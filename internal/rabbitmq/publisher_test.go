package rabbitmq_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"LedgerApi/internal/model"
	"LedgerApi/internal/rabbitmq"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable, autoDelete, internal, noWait, args).Error(0)
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(ctx, exchange, key, mandatory, immediate, msg).Error(0)
}

func TestPublisher_Publish(t *testing.T) {
	ch := new(MockChannel)
	ch.On("ExchangeDeclare", "ledger_events", "topic", true, false, false, false, mock.Anything).Return(nil)

	var published amqp.Publishing
	ch.On("PublishWithContext", mock.Anything, "ledger_events", "transaction.completed", false, false, mock.AnythingOfType("amqp091.Publishing")).
		Run(func(args mock.Arguments) {
			published = args.Get(5).(amqp.Publishing)
		}).
		Return(nil)

	p, err := rabbitmq.NewPublisher(ch, "ledger_events", zerolog.Nop())
	require.NoError(t, err)

	to := "acc-1"
	tx := model.Transaction{ID: "tx-1", Type: model.Credit, ToAccountID: &to, Amount: 10, Currency: "USD"}
	require.NoError(t, p.Publish(context.Background(), tx))

	assert.Equal(t, amqp.Persistent, published.DeliveryMode)
	assert.Equal(t, "application/json", published.ContentType)

	var payload model.WebhookPayload
	require.NoError(t, json.Unmarshal(published.Body, &payload))
	assert.Equal(t, published.MessageId, payload.EventID)
	assert.Equal(t, "tx-1", payload.Data.Transaction.ID)
	ch.AssertExpectations(t)
}

func TestPublisher_DeclareFailure(t *testing.T) {
	ch := new(MockChannel)
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("channel closed"))

	_, err := rabbitmq.NewPublisher(ch, "ledger_events", zerolog.Nop())
	assert.Error(t, err)
}

func TestPublisher_PublishFailure(t *testing.T) {
	ch := new(MockChannel)
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(amqp.ErrClosed)

	p, err := rabbitmq.NewPublisher(ch, "ledger_events", zerolog.Nop())
	require.NoError(t, err)

	err = p.Publish(context.Background(), model.Transaction{ID: "tx"})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}
