package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/config"
	"chat-subscription-payments/internal/usecase"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the reconciliation endpoints over HTTP.
type Server struct {
	cfg          *config.Config
	webhookUC    usecase.WebhookUseCase
	resolutionUC usecase.ResolutionUseCase
	checkoutUC   usecase.CheckoutUseCase
	subInfoUC    usecase.SubscriptionInfoUseCase
	auth         *AuthManager
	limiter      limiter
	health       pinger
	log          *zerolog.Logger
	srv          *http.Server
}

func NewServer(
	cfg *config.Config,
	webhookUC usecase.WebhookUseCase,
	resolutionUC usecase.ResolutionUseCase,
	checkoutUC usecase.CheckoutUseCase,
	subInfoUC usecase.SubscriptionInfoUseCase,
	auth *AuthManager,
	rl limiter,
	health pinger,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		cfg:          cfg,
		webhookUC:    webhookUC,
		resolutionUC: resolutionUC,
		checkoutUC:   checkoutUC,
		subInfoUC:    subInfoUC,
		auth:         auth,
		limiter:      rl,
		health:       health,
		log:          logger,
	}
}

// Routes builds the router. Exported so tests can drive it with httptest.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TraceID(s.log), RequestLog(s.log), Recover(s.log))

	// The webhook runs without a request deadline; store calls carry their own.
	r.Group(func(r chi.Router) {
		r.Use(CORS(s.cfg.HTTP.AllowedOrigins))
		r.With(RateLimit(s.limiter, s.cfg.Payment.Webhook.RateLimit, s.log)).
			Post("/payment-webhook", webhookHandler(s.webhookUC, s.cfg.Payment.Webhook.SignatureHeader, s.log))
		r.Options("/payment-webhook", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.cfg.HTTP.RequestTimeout))
		r.Get("/health", s.handleHealth)
		r.Handle("/metrics", promhttp.Handler())

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Authenticated, RequireRole(RoleOperator))
			r.Get("/manual-payment-resolution", resolutionListHandler(s.resolutionUC, s.log))
			r.Post("/manual-payment-resolution", resolveHandler(s.resolutionUC, s.log))
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Authenticated)
			r.Post("/checkout", checkoutHandler(s.checkoutUC, s.log))
			r.Get("/payment-status", paymentStatusHandler(s.checkoutUC, s.log))
			r.Get("/subscription", subscriptionHandler(s.subInfoUC, s.log))
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database connection error", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.HTTP.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.HTTP.Port).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
