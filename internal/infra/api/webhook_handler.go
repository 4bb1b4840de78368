package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/infra/logging"
	"chat-subscription-payments/internal/infra/metrics"
	"chat-subscription-payments/internal/usecase"
)

type webhookSuccess struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	TransactionID    string `json:"transactionId"`
	PlanName         string `json:"planName"`
	MatchMethod      string `json:"matchMethod"`
	AlreadyProcessed bool   `json:"alreadyProcessed,omitempty"`
}

type webhookMiss struct {
	Success             bool                       `json:"success"`
	Error               string                     `json:"error"`
	PotentialReferences []model.CandidateReference `json:"potentialReferences"`
	Amount              int64                      `json:"amount"`
	MatchMethod         string                     `json:"matchMethod"`
	WebhookData         map[string]string          `json:"webhookData"`
	Saved               bool                       `json:"saved"`
	UnresolvedID        string                     `json:"unresolvedId,omitempty"`
}

// webhookHandler serves POST /payment-webhook.
func webhookHandler(uc usecase.WebhookUseCase, signatureHeader string, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := r.Context()
		log := logging.With(ctx, logger)

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			metrics.ObserveWebhook("error", started)
			writeError(w, http.StatusInternalServerError, "Failed to process payment webhook", err)
			return
		}
		payload, err := model.ParseWebhookPayload(body)
		if err != nil {
			metrics.ObserveWebhook("invalid", started)
			writeError(w, http.StatusBadRequest, "Invalid webhook payload", err)
			return
		}

		out, err := uc.Handle(ctx, payload, r.Header.Get(signatureHeader))
		switch {
		case errors.Is(err, domain.ErrPayloadRejected):
			metrics.ObserveWebhook("rejected", started)
			writeError(w, http.StatusBadRequest, "Invalid webhook payload", err)
			return
		case errors.Is(err, domain.ErrStoreUnavailable):
			log.Error().Err(err).Msg("payment store unavailable")
			metrics.ObserveWebhook("error", started)
			writeError(w, http.StatusInternalServerError, "Database connection error", err)
			return
		case errors.Is(err, domain.ErrIntentIncomplete):
			log.Error().Err(err).Msg("matched intent is missing user or plan")
			metrics.ObserveWebhook("invalid", started)
			writeError(w, http.StatusBadRequest, "Invalid transaction data", err)
			return
		case err != nil:
			log.Error().Err(err).Msg("webhook processing failed")
			metrics.ObserveWebhook("error", started)
			writeError(w, http.StatusInternalServerError, "Error processing transaction", err)
			return
		}

		if !out.Matched {
			metrics.ObserveWebhook("unmatched", started)
			resp := webhookMiss{
				Success:             false,
				Error:               "Transaction not found after multiple matching attempts",
				PotentialReferences: out.Candidates,
				Amount:              out.Amount,
				MatchMethod:         out.MatchMethod,
				WebhookData:         payload.Summary(),
				Saved:               out.Saved,
			}
			if out.Unresolved != nil {
				resp.UnresolvedID = out.Unresolved.ID
			}
			writeJSON(w, http.StatusNotFound, resp)
			return
		}

		result := "matched"
		if out.AlreadyProcessed {
			result = "duplicate"
		}
		metrics.ObserveWebhook(result, started)
		writeJSON(w, http.StatusOK, webhookSuccess{
			Success:          true,
			Message:          "Payment processed successfully",
			TransactionID:    out.Intent.ID,
			PlanName:         out.PlanName,
			MatchMethod:      out.MatchMethod,
			AlreadyProcessed: out.AlreadyProcessed,
		})
	}
}
