package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/infra/logging"
	"chat-subscription-payments/internal/usecase"
)

// subscriptionHandler serves GET /subscription: the caller's active plan and remaining quota.
func subscriptionHandler(uc usecase.SubscriptionInfoUseCase, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims := ClaimsFrom(ctx)
		if claims == nil {
			writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error(), nil)
			return
		}
		info, err := uc.Get(ctx, claims.Subject)
		if err != nil {
			log := logging.With(ctx, logger)
			log.Error().Err(err).Msg("subscription info failed")
			writeError(w, http.StatusInternalServerError, "Failed to fetch subscription", err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Success bool `json:"success"`
			Data    any  `json:"data"`
		}{true, info})
	}
}
