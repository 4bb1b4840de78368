package model

import (
	"encoding/json"
	"time"
)

type UnresolvedStatus string

const (
	UnresolvedStatusUnresolved UnresolvedStatus = "unresolved"
	UnresolvedStatusResolved   UnresolvedStatus = "resolved"
)

// UnresolvedPayment holds a webhook that no matching tier could bind,
// waiting for an operator to attach it to an intent.
type UnresolvedPayment struct {
	ID                    string               `json:"id"` // ULID, sorts by arrival
	WebhookData           json.RawMessage      `json:"webhook_data"`
	PotentialReferences   []CandidateReference `json:"potential_references"`
	Amount                int64                `json:"amount"`
	ReceivedAt            time.Time            `json:"received_at"`
	Status                UnresolvedStatus     `json:"status"`
	ResolvedAt            *time.Time           `json:"resolved_at,omitempty"`
	ResolvedTransactionID *string              `json:"resolved_transaction_id,omitempty"`
}

// ReferenceCode digs the bank's referenceCode out of the stored payload.
func (u *UnresolvedPayment) ReferenceCode() *string {
	if u == nil || len(u.WebhookData) == 0 {
		return nil
	}
	p, err := ParseWebhookPayload(u.WebhookData)
	if err != nil {
		return nil
	}
	return p.BankReference()
}
