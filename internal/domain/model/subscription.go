package model

import (
	"time"

	"chat-subscription-payments/internal/domain"
)

// Subscription is a user's plan entitlement. At most one row per user is
// active at a time.
type Subscription struct {
	ID           string    `json:"id"`      // UUID
	UserID       string    `json:"user_id"` // UUID
	PlanID       string    `json:"plan_id"` // UUID
	StartDate    time.Time `json:"start_date"`
	IsActive     bool      `json:"is_active"`
	MessagesUsed int       `json:"messages_used"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewActiveSubscription builds a fresh active subscription with a zeroed usage counter.
func NewActiveSubscription(id, userID, planID string, now time.Time) (*Subscription, error) {
	if id == "" || userID == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		ID:           id,
		UserID:       userID,
		PlanID:       planID,
		StartDate:    now,
		IsActive:     true,
		MessagesUsed: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// SubscriptionInfo is the read model served to the chat UI and cached per user.
type SubscriptionInfo struct {
	UserID            string            `json:"user_id"`
	Subscription      *Subscription     `json:"subscription,omitempty"`
	Plan              *SubscriptionPlan `json:"plan,omitempty"`
	RemainingMessages int               `json:"remaining_messages"`
}
