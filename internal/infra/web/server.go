package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/config"
	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/infra/redis"
	"ai-chat-subscription/internal/usecase"
)

type Server struct {
	chatUC       usecase.ChatUseCase
	activationUC usecase.ActivationUseCase
	commissionUC usecase.CommissionUseCase
	withdrawalUC usecase.WithdrawalUseCase
	planUC       *usecase.PlanUseCase
	statsUC      usecase.StatsUseCase

	auth    *AuthManager
	limiter *redis.RateLimiter
	cfg     *config.Config
	log     *zerolog.Logger
}

func NewServer(
	chatUC usecase.ChatUseCase,
	activationUC usecase.ActivationUseCase,
	commissionUC usecase.CommissionUseCase,
	withdrawalUC usecase.WithdrawalUseCase,
	planUC *usecase.PlanUseCase,
	statsUC usecase.StatsUseCase,
	auth *AuthManager,
	limiter *redis.RateLimiter,
	cfg *config.Config,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		chatUC:       chatUC,
		activationUC: activationUC,
		commissionUC: commissionUC,
		withdrawalUC: withdrawalUC,
		planUC:       planUC,
		statsUC:      statsUC,
		auth:         auth,
		limiter:      limiter,
		cfg:          cfg,
		log:          logger,
	}
}

// PublicRouter serves the user-facing API. Callers are identified by the
// X-User-ID header set by the fronting gateway.
func (s *Server) PublicRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)

		r.Post("/api/chat", s.handleChat)
		r.Get("/api/entitlement", s.handleEntitlement)
		r.Post("/api/activation/redeem", s.handleRedeem)

		r.Get("/api/conversations", s.handleListConversations)
		r.Post("/api/conversations", s.handleCreateConversation)
		r.Delete("/api/conversations/{id}", s.handleDeleteConversation)
		r.Get("/api/conversations/{id}/messages", s.handleListMessages)

		r.Get("/api/balance", s.handleBalance)
		r.Get("/api/commissions", s.handleListCommissions)
		r.Post("/api/withdrawals", s.handleCreateWithdrawal)
		r.Get("/api/withdrawals", s.handleListWithdrawals)

		r.Get("/api/plans", s.handleListPlans)
	})

	// The payment gateway calls back without a user session.
	r.Post("/api/payment/callback", s.handlePaymentCallback)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// AdminRouter serves the operator API on its own port.
func (s *Server) AdminRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Post("/admin/login", s.handleAdminLogin)
	r.Post("/admin/logout", s.handleAdminLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)

		r.Post("/admin/codes", s.handleGenerateCodes)
		r.Get("/admin/codes", s.handleListCodes)

		r.Get("/admin/plans", s.handleAdminListPlans)
		r.Post("/admin/plans", s.handleCreatePlan)
		r.Put("/admin/plans/{id}", s.handleRenamePlan)
		r.Delete("/admin/plans/{id}", s.handleDeactivatePlan)

		r.Get("/admin/withdrawals", s.handleAdminListWithdrawals)
		r.Post("/admin/withdrawals/{id}/accept", s.handleAcceptWithdrawal)
		r.Post("/admin/withdrawals/{id}/complete", s.handleCompleteWithdrawal)
		r.Post("/admin/withdrawals/{id}/reject", s.handleRejectWithdrawal)

		r.Get("/admin/stats", s.handleStats)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ===== Shared response plumbing =====

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string      `json:"error"`
	Quota interface{} `json:"quota,omitempty"`
}

// writeError maps domain sentinels onto HTTP statuses. Quota errors carry
// the entitlement snapshot so clients can tell trial exhaustion from a full
// conversation.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var qe *usecase.QuotaError
	if errors.As(err, &qe) {
		writeJSON(w, http.StatusPaymentRequired, errorBody{Error: "quota_exceeded", Quota: qe.Snapshot})
		return
	}

	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrCodeAlreadyUsed):
		status, msg = http.StatusConflict, "code already used"
	case errors.Is(err, domain.ErrCodeExpired):
		status, msg = http.StatusGone, "code expired"
	case errors.Is(err, domain.ErrQuotaExceeded):
		status, msg = http.StatusPaymentRequired, "quota exceeded"
	case errors.Is(err, domain.ErrInsufficientBalance):
		status, msg = http.StatusBadRequest, "insufficient balance"
	case errors.Is(err, domain.ErrInvalidState):
		status, msg = http.StatusConflict, "invalid state"
	case errors.Is(err, domain.ErrRateLimited):
		status, msg = http.StatusTooManyRequests, "rate limited"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		status, msg = http.StatusServiceUnavailable, "upstream unavailable"
	default:
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: msg})
}
