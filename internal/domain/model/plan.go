package model

import (
	"chat-subscription-payments/internal/domain"
)

// SubscriptionPlan is a purchasable tier with a monthly message allowance
// and a price in integer currency units.
type SubscriptionPlan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Price        int64  `json:"price"`
	MessageLimit int    `json:"message_limit"`
}

func (p *SubscriptionPlan) IsZero() bool { return p == nil || p.ID == "" }

// NewSubscriptionPlan validates and constructs a plan.
func NewSubscriptionPlan(id, name string, price int64, messageLimit int) (*SubscriptionPlan, error) {
	if id == "" || name == "" || price < 0 || messageLimit < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &SubscriptionPlan{
		ID:           id,
		Name:         name,
		Price:        price,
		MessageLimit: messageLimit,
	}, nil
}
