package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/infra/logging"
	"chat-subscription-payments/internal/usecase"
)

type resolveRequest struct {
	UnresolvedID  string `json:"unresolvedId" validate:"required"`
	TransactionID string `json:"transactionId" validate:"required"`
}

type unresolvedListResponse struct {
	Success            bool                       `json:"success"`
	UnresolvedPayments []*model.UnresolvedPayment `json:"unresolvedPayments"`
}

type unresolvedDetailResponse struct {
	Success          bool                     `json:"success"`
	Payment          *model.UnresolvedPayment `json:"payment"`
	PotentialMatches []*model.PaymentIntent   `json:"potentialMatches"`
}

type resolveResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transactionId"`
	PlanName      string `json:"planName"`
}

// resolutionListHandler serves GET /manual-payment-resolution[?id=].
func resolutionListHandler(uc usecase.ResolutionUseCase, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logging.With(ctx, logger)

		id := r.URL.Query().Get("id")
		if id == "" {
			list, err := uc.List(ctx)
			if err != nil {
				log.Error().Err(err).Msg("list unresolved payments")
				writeError(w, http.StatusInternalServerError, "Error fetching unresolved payments", err)
				return
			}
			if list == nil {
				list = []*model.UnresolvedPayment{}
			}
			writeJSON(w, http.StatusOK, unresolvedListResponse{Success: true, UnresolvedPayments: list})
			return
		}

		rec, matches, err := uc.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Payment not found", nil)
			return
		}
		if err != nil {
			log.Error().Err(err).Str("unresolved_id", id).Msg("get unresolved payment")
			writeError(w, http.StatusInternalServerError, "Error fetching unresolved payments", err)
			return
		}
		if matches == nil {
			matches = []*model.PaymentIntent{}
		}
		writeJSON(w, http.StatusOK, unresolvedDetailResponse{Success: true, Payment: rec, PotentialMatches: matches})
	}
}

// resolveHandler serves POST /manual-payment-resolution.
func resolveHandler(uc usecase.ResolutionUseCase, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logging.With(ctx, logger)

		var req resolveRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Missing required parameters", err)
			return
		}

		res, err := uc.Resolve(ctx, req.UnresolvedID, req.TransactionID)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "Missing required parameters", nil)
			return
		case errors.Is(err, usecase.ErrUnresolvedPaymentNotFound):
			writeError(w, http.StatusNotFound, "Unresolved payment not found", nil)
			return
		case errors.Is(err, usecase.ErrTransactionNotFound):
			writeError(w, http.StatusNotFound, "Transaction not found", nil)
			return
		case errors.Is(err, domain.ErrAlreadyResolved),
			errors.Is(err, domain.ErrIntentAlreadyCompleted),
			errors.Is(err, domain.ErrLockNotAcquired):
			writeError(w, http.StatusConflict, "Error processing manual payment", err)
			return
		default:
			log.Error().Err(err).Str("unresolved_id", req.UnresolvedID).Str("intent_id", req.TransactionID).Msg("manual resolution failed")
			writeError(w, http.StatusInternalServerError, "Error processing manual payment", err)
			return
		}

		writeJSON(w, http.StatusOK, resolveResponse{
			Success:       true,
			Message:       "Payment manually processed successfully",
			TransactionID: res.Intent.ID,
			PlanName:      res.PlanName,
		})
	}
}
