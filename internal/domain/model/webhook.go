package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"chat-subscription-payments/internal/domain"
)

// WebhookPayload is the subset of a bank notification the reconciler reads.
// Any field may be missing or noisy; Raw keeps the body for auditing.
type WebhookPayload struct {
	Content              string
	Description          string
	Code                 string
	TransferAmount       int64
	Amount               int64
	ReferenceCode        string
	TransactionReference string
	Raw                  json.RawMessage
}

// DeclaredAmount prefers transferAmount, then amount, then zero.
func (p *WebhookPayload) DeclaredAmount() int64 {
	if p.TransferAmount != 0 {
		return p.TransferAmount
	}
	return p.Amount
}

// BankReference returns the bank's reference code, nil when absent.
func (p *WebhookPayload) BankReference() *string {
	if p.ReferenceCode == "" {
		return nil
	}
	ref := p.ReferenceCode
	return &ref
}

// ParseWebhookPayload decodes an arbitrary bank JSON object. Strings and
// numbers are accepted interchangeably for every known field.
func ParseWebhookPayload(body []byte) (*WebhookPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: body is not a JSON object", domain.ErrInvalidPayload)
	}

	p := &WebhookPayload{
		Content:              asString(raw["content"]),
		Description:          asString(raw["description"]),
		Code:                 asString(raw["code"]),
		ReferenceCode:        asString(raw["referenceCode"]),
		TransactionReference: asString(raw["transaction_reference"]),
		Raw:                  append(json.RawMessage(nil), bytes.TrimSpace(body)...),
	}
	var err error
	if p.TransferAmount, err = asAmount(raw["transferAmount"]); err != nil {
		return nil, fmt.Errorf("%w: transferAmount: %v", domain.ErrInvalidPayload, err)
	}
	if p.Amount, err = asAmount(raw["amount"]); err != nil {
		return nil, fmt.Errorf("%w: amount: %v", domain.ErrInvalidPayload, err)
	}
	return p, nil
}

// Summary is the slice of the payload echoed back in a no-match response.
func (p *WebhookPayload) Summary() map[string]string {
	return map[string]string{
		"content":       p.Content,
		"description":   p.Description,
		"code":          p.Code,
		"referenceCode": p.ReferenceCode,
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func asAmount(v any) (int64, error) {
	var s string
	switch t := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
		if s == "" {
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return int64(math.Round(f)), nil
}
