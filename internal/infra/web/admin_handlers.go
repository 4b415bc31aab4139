package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/infra/metrics"
)

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Admin.Password)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// ===== Activation codes =====

type codeDTO struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	PlanID       string     `json:"plan_id"`
	IsUsed       bool       `json:"is_used"`
	UsedByUserID *string    `json:"used_by_user_id,omitempty"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
}

func toCodeDTO(c *model.ActivationCode) codeDTO {
	return codeDTO{
		ID:           c.ID,
		Code:         c.Code,
		PlanID:       c.PlanID,
		IsUsed:       c.IsUsed,
		UsedByUserID: c.UsedByUserID,
		ActivatedAt:  c.ActivatedAt,
		ExpiresAt:    c.ExpiresAt,
	}
}

func (s *Server) handleGenerateCodes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID  string `json:"plan_id"`
		Count   int    `json:"count"`
		TTLDays int    `json:"ttl_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	ttl := s.cfg.Billing.CodeTTL
	if req.TTLDays > 0 {
		ttl = time.Duration(req.TTLDays) * 24 * time.Hour
	}
	codes, err := s.activationUC.GenerateBatch(r.Context(), req.PlanID, req.Count, ttl)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]codeDTO, 0, len(codes))
	for _, c := range codes {
		out = append(out, toCodeDTO(c))
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListCodes(w http.ResponseWriter, r *http.Request) {
	planID := r.URL.Query().Get("plan_id")
	onlyUnused := r.URL.Query().Get("only_unused") == "true"
	codes, err := s.activationUC.ListCodes(r.Context(), planID, onlyUnused)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]codeDTO, 0, len(codes))
	for _, c := range codes {
		out = append(out, toCodeDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// ===== Plans =====

func (s *Server) handleAdminListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planUC.ListAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]planDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		PriceCents   int64  `json:"price_cents"`
		DurationDays int    `json:"duration_days"`
		ChatLimit    int    `json:"chat_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}

	var (
		plan *model.Plan
		err  error
	)
	switch {
	case req.DurationDays > 0 && req.ChatLimit > 0:
		err = domain.ErrInvalidArgument
	case req.DurationDays > 0:
		plan, err = s.planUC.CreateTimeBoxed(r.Context(), req.Name, req.PriceCents, req.DurationDays)
	case req.ChatLimit > 0:
		plan, err = s.planUC.CreateTimesCard(r.Context(), req.Name, req.PriceCents, req.ChatLimit)
	default:
		err = domain.ErrInvalidArgument
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(plan))
}

func (s *Server) handleRenamePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	plan, err := s.planUC.Rename(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// handleDeactivatePlan answers DELETE but only hides the plan: rows referenced
// by issued codes must survive.
func (s *Server) handleDeactivatePlan(w http.ResponseWriter, r *http.Request) {
	if err := s.planUC.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Withdrawals =====

func (s *Server) handleAdminListWithdrawals(w http.ResponseWriter, r *http.Request) {
	status := model.WithdrawalStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.WithdrawalPending
	}
	offset, limit := pageParams(r)
	items, err := s.withdrawalUC.ListByStatus(r.Context(), status, offset, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]withdrawalDTO, 0, len(items))
	for _, wd := range items {
		out = append(out, toWithdrawalDTO(wd))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAcceptWithdrawal(w http.ResponseWriter, r *http.Request) {
	if err := s.withdrawalUC.Accept(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	metrics.IncWithdrawal(string(model.WithdrawalProcessing))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	if err := s.withdrawalUC.Complete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	metrics.IncWithdrawal(string(model.WithdrawalCompleted))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	if err := s.withdrawalUC.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason); err != nil {
		s.writeError(w, err)
		return
	}
	metrics.IncWithdrawal(string(model.WithdrawalRejected))
	w.WriteHeader(http.StatusNoContent)
}

// ===== Stats =====

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	users, activeByPlan, commissionCents, err := s.statsUC.Totals(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	pending, err := s.statsUC.PendingWithdrawals(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":                  users,
		"active_by_plan":         activeByPlan,
		"commission_cents_total": commissionCents,
		"pending_withdrawals":    pending,
	})
}
