package model

import (
	"encoding/json"
	"strings"
	"time"

	"chat-subscription-payments/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // waiting for the bank transfer to show up
	PaymentStatusCompleted PaymentStatus = "completed" // matched and subscription granted; terminal
)

// MatchMethodManual tags intents completed by an operator binding an
// unresolved payment by hand.
const MatchMethodManual = "manual_resolution"

// PaymentIntent records an expected but not yet confirmed bank transfer.
type PaymentIntent struct {
	ID                string          `json:"id"`        // UUID
	Reference         string          `json:"reference"` // TXN code the payer types into the narration
	UserID            string          `json:"user_id"`   // UUID (internal user id)
	PlanID            string          `json:"plan_id"`   // UUID (plan the user is upgrading to)
	Amount            int64           `json:"amount"`    // integer currency units (VND)
	Status            PaymentStatus   `json:"status"`    // pending -> completed, never back
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	WebhookReceivedAt *time.Time      `json:"webhook_received_at,omitempty"`
	BankReference     *string         `json:"bank_reference,omitempty"`  // bank's own reference code, if it sent one
	MatchMethod       string          `json:"match_method,omitempty"`    // audit label of the tier that bound this intent
	PaymentDetails    json.RawMessage `json:"payment_details,omitempty"` // raw webhook payload that completed the intent
}

// NewPaymentIntent validates and constructs a pending intent.
func NewPaymentIntent(id, reference, userID, planID string, amount int64, now time.Time) (*PaymentIntent, error) {
	if id == "" || strings.TrimSpace(reference) == "" || userID == "" || planID == "" || amount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &PaymentIntent{
		ID:        id,
		Reference: reference,
		UserID:    userID,
		PlanID:    planID,
		Amount:    amount,
		Status:    PaymentStatusPending,
		CreatedAt: now,
	}, nil
}

func (p *PaymentIntent) IsPending() bool { return p != nil && p.Status == PaymentStatusPending }

// CompletionUpdate carries the fields written when an intent flips to completed.
type CompletionUpdate struct {
	CompletedAt    time.Time
	MatchMethod    string
	PaymentDetails json.RawMessage
	BankReference  *string
}
