package model

import (
	"encoding/json"
	"time"
)

const EventTransactionCompleted = "transaction.completed"

// WebhookEndpoint is a subscriber URL. Secret signs every delivery to it.
type WebhookEndpoint struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookEvent is the audit record of a single delivery attempt.
// ResponseStatus is nil when no HTTP response was received.
type WebhookEvent struct {
	ID             string
	EndpointID     string
	TransactionID  string
	Payload        json.RawMessage
	SentAt         time.Time
	ResponseStatus *int
	ResponseBody   *string
}

// WebhookPayload is the body POSTed to subscribers. Field order is the wire order.
type WebhookPayload struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Timestamp string      `json:"timestamp"`
	Data      WebhookData `json:"data"`
}

type WebhookData struct {
	Transaction TransactionData `json:"transaction"`
}

type TransactionData struct {
	ID            string          `json:"id"`
	Type          TransactionType `json:"type"`
	FromAccountID *string         `json:"from_account_id"`
	ToAccountID   *string         `json:"to_account_id"`
	Amount        int64           `json:"amount_cents"`
	Currency      string          `json:"currency"`
	Description   *string         `json:"description"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

func NewWebhookPayload(eventID string, sentAt time.Time, t Transaction) WebhookPayload {
	return WebhookPayload{
		EventID:   eventID,
		EventType: EventTransactionCompleted,
		Timestamp: sentAt.UTC().Format(time.RFC3339),
		Data: WebhookData{
			Transaction: TransactionData{
				ID:            t.ID,
				Type:          t.Type,
				FromAccountID: t.FromAccountID,
				ToAccountID:   t.ToAccountID,
				Amount:        t.Amount,
				Currency:      t.Currency,
				Description:   t.Description,
				Status:        t.Status,
				CreatedAt:     t.CreatedAt,
			},
		},
	}
}
