package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/config"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/adapter"
)

var (
	_ adapter.WebhookValidator = (*AcceptAllValidator)(nil)
	_ adapter.WebhookValidator = (*HMACValidator)(nil)

	ErrMissingSignature = errors.New("missing webhook signature")
	ErrBadSignature     = errors.New("webhook signature mismatch")
)

// NewWebhookValidator picks HMAC verification when a secret is configured.
func NewWebhookValidator(cfg config.WebhookConfig, logger *zerolog.Logger) adapter.WebhookValidator {
	if cfg.HMACSecret == "" {
		logger.Warn().Msg("payment.webhook.hmac_secret is empty; webhook payloads are NOT authenticated")
		return AcceptAllValidator{}
	}
	return NewHMACValidator(cfg.HMACSecret)
}

// AcceptAllValidator trusts every delivery.
type AcceptAllValidator struct{}

func (AcceptAllValidator) Name() string { return "accept_all" }

func (AcceptAllValidator) Validate(ctx context.Context, p *model.WebhookPayload, signature string) error {
	return nil
}

// HMACValidator expects hex(HMAC-SHA256(secret, raw body)) in the signature header.
type HMACValidator struct {
	secret []byte
}

func NewHMACValidator(secret string) *HMACValidator {
	return &HMACValidator{secret: []byte(secret)}
}

func (v *HMACValidator) Name() string { return "hmac_sha256" }

func (v *HMACValidator) Validate(ctx context.Context, p *model.WebhookPayload, signature string) error {
	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(strings.ToLower(signature), "sha256=")
	if signature == "" {
		return ErrMissingSignature
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal(got, v.Sign(p.Raw)) {
		return ErrBadSignature
	}
	return nil
}

// Sign returns the raw MAC for body.
func (v *HMACValidator) Sign(body []byte) []byte {
	h := hmac.New(sha256.New, v.secret)
	h.Write(body)
	return h.Sum(nil)
}
