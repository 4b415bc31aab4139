package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/infra/metrics"
	"ai-chat-subscription/internal/infra/redis"
	"ai-chat-subscription/internal/usecase"
)

// ===== Chat =====

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// httpSink writes the relayed stream onto the HTTP response. The quota
// warning travels as a header, so it must arrive before the first body byte;
// the upstream conversation id is the first body line.
type httpSink struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	wroteBody bool
	bytes     int
}

func (s *httpSink) begin() {
	if s.wroteBody {
		return
	}
	s.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	s.w.WriteHeader(http.StatusOK)
	s.wroteBody = true
}

func (s *httpSink) Warning(snapshot model.Entitlement) error {
	if s.wroteBody {
		return nil
	}
	s.w.Header().Set("X-Quota-Warning", fmt.Sprintf("%s %d/%d", snapshot.Scope, snapshot.Used, snapshot.Limit))
	return nil
}

func (s *httpSink) CID(upstreamID string) error {
	s.begin()
	if _, err := fmt.Fprintf(s.w, "CID:%s\n", upstreamID); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *httpSink) Delta(text string) error {
	s.begin()
	n, err := s.w.Write([]byte(text))
	s.bytes += n
	if err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}

	if limit := s.cfg.Quota.RateLimitPerMinute; s.limiter != nil && limit > 0 {
		ok, err := s.limiter.Allow(r.Context(), redis.ChatSendKey(uid), limit, time.Minute)
		if err != nil {
			// Redis being down must not take chat down with it.
			s.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		} else if !ok {
			s.writeError(w, domain.ErrRateLimited)
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}

	sink := &httpSink{w: w, flusher: flusher}
	start := time.Now()
	res, err := s.chatUC.SendMessage(r.Context(), uid, req.ConversationID, req.Query, sink)
	metrics.ObserveChatStream(time.Since(start).Seconds(), sink.bytes)
	if err != nil {
		var qe *usecase.QuotaError
		if errors.As(err, &qe) {
			metrics.IncChatTurn("quota")
			metrics.IncQuotaBlock(string(qe.Snapshot.Scope))
		} else {
			metrics.IncChatTurn("error")
		}
		if sink.wroteBody {
			// Status line already went out; all we can do is stop.
			s.log.Warn().Err(err).Str("user_id", uid).Msg("chat stream aborted mid-body")
			return
		}
		s.writeError(w, err)
		return
	}
	if res.Truncated {
		metrics.IncChatTurn("truncated")
	} else {
		metrics.IncChatTurn("ok")
	}
}

// ===== Entitlement & activation =====

func (s *Server) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	ent, err := s.chatUC.Entitlement(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

type redeemRequest struct {
	Code string `json:"code"`
}

type subscriptionDTO struct {
	ID          string     `json:"id"`
	PlanID      string     `json:"plan_id"`
	PlanName    string     `json:"plan_name"`
	Status      string     `json:"status"`
	PeriodStart time.Time  `json:"period_start"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}

func toSubscriptionDTO(sub *model.Subscription) subscriptionDTO {
	return subscriptionDTO{
		ID:          sub.ID,
		PlanID:      sub.PlanID,
		PlanName:    sub.PlanName,
		Status:      string(sub.Status),
		PeriodStart: sub.PeriodStart,
		PeriodEnd:   sub.PeriodEnd,
	}
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	sub, plan, err := s.activationUC.Redeem(r.Context(), req.Code, userID(r))
	if err != nil {
		metrics.IncActivation("code", "error")
		s.writeError(w, err)
		return
	}
	metrics.IncActivation("code", "ok")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subscription": toSubscriptionDTO(sub),
		"plan":         toPlanDTO(plan),
	})
}

type paymentCallbackRequest struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	PlanID  string `json:"plan_id"`
	Status  string `json:"status"`
}

func (s *Server) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req paymentCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	if req.Status != "succeeded" {
		// Acknowledge non-success events so the gateway stops retrying.
		writeJSON(w, http.StatusOK, map[string]string{"result": "ignored"})
		return
	}
	sub, err := s.activationUC.ActivateFromPayment(r.Context(), req.UserID, req.PlanID, req.EventID)
	if err != nil {
		metrics.IncActivation("payment", "error")
		s.writeError(w, err)
		return
	}
	metrics.IncActivation("payment", "ok")
	writeJSON(w, http.StatusOK, map[string]interface{}{"subscription": toSubscriptionDTO(sub)})
}

// ===== Conversations =====

type conversationDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toConversationDTO(c *model.Conversation) conversationDTO {
	return conversationDTO{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.chatUC.ListConversations(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]conversationDTO, 0, len(convs))
	for _, c := range convs {
		out = append(out, toConversationDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	conv, err := s.chatUC.StartConversation(r.Context(), userID(r), req.Title)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toConversationDTO(conv))
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.chatUC.DeleteConversation(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type messageDTO struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chatUC.ListMessages(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageDTO{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// ===== Balance, commissions, withdrawals =====

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := s.commissionUC.MyBalance(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount_cents": bal.AmountCents,
		"updated_at":   bal.UpdatedAt,
	})
}

type commissionDTO struct {
	ID            string    `json:"id"`
	InvitedUserID string    `json:"invited_user_id"`
	PlanID        string    `json:"plan_id"`
	Level         int       `json:"level"`
	AmountCents   int64     `json:"amount_cents"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s *Server) handleListCommissions(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	recs, err := s.commissionUC.MyCommissions(r.Context(), userID(r), offset, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]commissionDTO, 0, len(recs))
	for _, c := range recs {
		out = append(out, commissionDTO{
			ID:            c.ID,
			InvitedUserID: c.InvitedUserID,
			PlanID:        c.PlanID,
			Level:         c.Level,
			AmountCents:   c.AmountCents,
			CreatedAt:     c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type withdrawalDTO struct {
	ID              string     `json:"id"`
	AmountCents     int64      `json:"amount_cents"`
	PaymentMethod   string     `json:"payment_method"`
	Status          string     `json:"status"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

func toWithdrawalDTO(wd *model.WithdrawalRequest) withdrawalDTO {
	return withdrawalDTO{
		ID:              wd.ID,
		AmountCents:     wd.AmountCents,
		PaymentMethod:   wd.PaymentMethod,
		Status:          string(wd.Status),
		RejectionReason: wd.RejectionReason,
		CreatedAt:       wd.CreatedAt,
		ProcessedAt:     wd.ProcessedAt,
	}
}

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AmountCents   int64  `json:"amount_cents"`
		PaymentMethod string `json:"payment_method"`
		AccountInfo   string `json:"account_info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	wd, err := s.withdrawalUC.Create(r.Context(), userID(r), req.AmountCents, req.PaymentMethod, req.AccountInfo)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.IncWithdrawal(string(wd.Status))
	writeJSON(w, http.StatusCreated, toWithdrawalDTO(wd))
}

func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	items, err := s.withdrawalUC.ListByUser(r.Context(), userID(r))
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

// ===== Plans (public catalog) =====

type planDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	DurationDays *int   `json:"duration_days,omitempty"`
	ChatLimit    *int   `json:"chat_limit,omitempty"`
	Active       bool   `json:"active"`
}

func toPlanDTO(p *model.Plan) planDTO {
	return planDTO{
		ID:           p.ID,
		Name:         p.Name,
		PriceCents:   p.PriceCents,
		DurationDays: p.DurationDays,
		ChatLimit:    p.ChatLimit,
		Active:       p.Active,
	}
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planUC.ListActive(r.Context())
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

func pageParams(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}

var _ usecase.StreamSink = (*httpSink)(nil)
