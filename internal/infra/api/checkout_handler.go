package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/infra/logging"
	"chat-subscription-payments/internal/usecase"
)

type checkoutRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

type checkoutResponse struct {
	Success   bool      `json:"success"`
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"`
	PlanName  string    `json:"planName"`
	QRURL     string    `json:"qrUrl"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Reused    bool      `json:"reused"`
}

type paymentStatusResponse struct {
	Success     bool       `json:"success"`
	Reference   string     `json:"reference"`
	Status      string     `json:"status"`
	Amount      int64      `json:"amount"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// checkoutHandler serves POST /checkout for the authenticated user.
func checkoutHandler(uc usecase.CheckoutUseCase, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims := ClaimsFrom(ctx)
		if claims == nil {
			writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error(), nil)
			return
		}

		var req checkoutRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Missing required parameters", err)
			return
		}

		res, err := uc.Begin(ctx, claims.Subject, req.PlanID)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "Plan not found", nil)
			return
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "Missing required parameters", err)
			return
		default:
			log := logging.With(ctx, logger)
			log.Error().Err(err).Str("plan_id", req.PlanID).Msg("checkout failed")
			writeError(w, http.StatusInternalServerError, "Failed to create payment", err)
			return
		}

		status := http.StatusCreated
		if res.Reused {
			status = http.StatusOK
		}
		writeJSON(w, status, checkoutResponse{
			Success:   true,
			Reference: res.Intent.Reference,
			Amount:    res.Intent.Amount,
			PlanName:  res.Plan.Name,
			QRURL:     res.QRURL,
			Status:    string(res.Intent.Status),
			CreatedAt: res.Intent.CreatedAt,
			Reused:    res.Reused,
		})
	}
}

// paymentStatusHandler serves GET /payment-status?reference=.
func paymentStatusHandler(uc usecase.CheckoutUseCase, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims := ClaimsFrom(ctx)
		if claims == nil {
			writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error(), nil)
			return
		}
		ref := r.URL.Query().Get("reference")
		if ref == "" {
			writeError(w, http.StatusBadRequest, "Missing required parameters", nil)
			return
		}

		intent, err := uc.Status(logging.WithReference(ctx, ref), claims.Subject, ref)
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Transaction not found", nil)
			return
		}
		if err != nil {
			log := logging.With(ctx, logger)
			log.Error().Err(err).Str("reference", ref).Msg("payment status lookup failed")
			writeError(w, http.StatusInternalServerError, "Failed to fetch payment status", err)
			return
		}
		writeJSON(w, http.StatusOK, paymentStatusResponse{
			Success:     true,
			Reference:   intent.Reference,
			Status:      string(intent.Status),
			Amount:      intent.Amount,
			CompletedAt: intent.CompletedAt,
		})
	}
}
