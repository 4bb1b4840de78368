//go:build !integration

package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"chat-subscription-payments/internal/domain"
)

// --- Payment Intent Tests ---

func TestNewPaymentIntent(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, MarketZone)

	t.Run("should create a pending intent", func(t *testing.T) {
		p, err := NewPaymentIntent("id-1", "TXNQ4R8M", "user-1", "plan-1", 100000, now)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !p.IsPending() {
			t.Errorf("expected status pending, got %q", p.Status)
		}
		if !p.CreatedAt.Equal(now) || p.CompletedAt != nil {
			t.Errorf("unexpected timestamps: %+v", p)
		}
	})

	t.Run("should reject missing fields", func(t *testing.T) {
		cases := []struct {
			name                  string
			id, ref, user, planID string
			amount                int64
		}{
			{"no id", "", "TXNQ4R8M", "u", "p", 1},
			{"blank reference", "id", "  ", "u", "p", 1},
			{"no user", "id", "TXNQ4R8M", "", "p", 1},
			{"no plan", "id", "TXNQ4R8M", "u", "", 1},
			{"negative amount", "id", "TXNQ4R8M", "u", "p", -1},
		}
		for _, tc := range cases {
			if _, err := NewPaymentIntent(tc.id, tc.ref, tc.user, tc.planID, tc.amount, now); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("%s: expected ErrInvalidArgument, got %v", tc.name, err)
			}
		}
	})

	t.Run("nil intent is not pending", func(t *testing.T) {
		var p *PaymentIntent
		if p.IsPending() {
			t.Error("nil intent reported pending")
		}
	})
}

// --- Webhook Payload Tests ---

func TestParseWebhookPayload(t *testing.T) {
	t.Run("should accept numbers and numeric strings", func(t *testing.T) {
		p, err := ParseWebhookPayload([]byte(`{
			"content": "CT DEN:123 TXNQ4R8M",
			"description": "BankAPINotify TXNQ4R8M",
			"code": 42,
			"transferAmount": "150000",
			"amount": 99000.6,
			"referenceCode": "FT25073"
		}`))
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.Code != "42" {
			t.Errorf("code should be stringified, got %q", p.Code)
		}
		if p.TransferAmount != 150000 || p.Amount != 99001 {
			t.Errorf("amounts = %d, %d", p.TransferAmount, p.Amount)
		}
		if p.DeclaredAmount() != 150000 {
			t.Errorf("transferAmount should win, got %d", p.DeclaredAmount())
		}
		if ref := p.BankReference(); ref == nil || *ref != "FT25073" {
			t.Errorf("bank reference = %v", ref)
		}
		if len(p.Raw) == 0 {
			t.Error("raw body should be kept")
		}
	})

	t.Run("amount falls back and defaults to zero", func(t *testing.T) {
		p, _ := ParseWebhookPayload([]byte(`{"amount": 5000}`))
		if p.DeclaredAmount() != 5000 {
			t.Errorf("want 5000, got %d", p.DeclaredAmount())
		}
		p, _ = ParseWebhookPayload([]byte(`{"content": "hello", "transferAmount": ""}`))
		if p.DeclaredAmount() != 0 {
			t.Errorf("want 0, got %d", p.DeclaredAmount())
		}
		if p.BankReference() != nil {
			t.Error("absent referenceCode should be nil")
		}
	})

	t.Run("should reject malformed bodies", func(t *testing.T) {
		for _, body := range []string{`{"content":`, `null`, `{"amount": "12abc"}`, `{"transferAmount": true}`} {
			if _, err := ParseWebhookPayload([]byte(body)); !errors.Is(err, domain.ErrInvalidPayload) {
				t.Errorf("%s: expected ErrInvalidPayload, got %v", body, err)
			}
		}
	})

	t.Run("summary echoes the text fields", func(t *testing.T) {
		p, _ := ParseWebhookPayload([]byte(`{"content":"a","description":"b","code":"c","referenceCode":"d"}`))
		s := p.Summary()
		if s["content"] != "a" || s["description"] != "b" || s["code"] != "c" || s["referenceCode"] != "d" {
			t.Errorf("unexpected summary %v", s)
		}
	})
}

// --- Subscription & Unresolved Tests ---

func TestNewActiveSubscription(t *testing.T) {
	now := time.Now()
	s, err := NewActiveSubscription("sub-1", "user-1", "plan-1", now)
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if !s.IsActive || s.MessagesUsed != 0 || !s.StartDate.Equal(now) {
		t.Errorf("unexpected subscription %+v", s)
	}
	if _, err := NewActiveSubscription("sub-1", "", "plan-1", now); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestUnresolvedPayment_ReferenceCode(t *testing.T) {
	u := &UnresolvedPayment{WebhookData: json.RawMessage(`{"referenceCode":"FT9"}`)}
	if ref := u.ReferenceCode(); ref == nil || *ref != "FT9" {
		t.Errorf("want FT9, got %v", ref)
	}
	if (&UnresolvedPayment{}).ReferenceCode() != nil {
		t.Error("empty payload should yield nil")
	}
	var nilRec *UnresolvedPayment
	if nilRec.ReferenceCode() != nil {
		t.Error("nil record should yield nil")
	}
}

func TestMarketNow(t *testing.T) {
	_, offset := MarketNow().Zone()
	if offset != 7*60*60 {
		t.Errorf("want UTC+7, got offset %d", offset)
	}
}
