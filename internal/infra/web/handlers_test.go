//go:build !integration

package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/config"
	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/usecase"
)

// --- Mock use cases ---

type mockChatUC struct {
	usecase.ChatUseCase // Embed interface for forward compatibility

	SendMessageFunc func(ctx context.Context, userID, conversationID, query string, sink usecase.StreamSink) (*usecase.TurnResult, error)
	EntitlementFunc func(ctx context.Context, userID string) (model.Entitlement, error)
	StartFunc       func(ctx context.Context, userID, title string) (*model.Conversation, error)
	DeleteFunc      func(ctx context.Context, userID, conversationID string) error
}

func (m *mockChatUC) SendMessage(ctx context.Context, userID, conversationID, query string, sink usecase.StreamSink) (*usecase.TurnResult, error) {
	return m.SendMessageFunc(ctx, userID, conversationID, query, sink)
}

func (m *mockChatUC) Entitlement(ctx context.Context, userID string) (model.Entitlement, error) {
	return m.EntitlementFunc(ctx, userID)
}

func (m *mockChatUC) StartConversation(ctx context.Context, userID, title string) (*model.Conversation, error) {
	return m.StartFunc(ctx, userID, title)
}

func (m *mockChatUC) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	return m.DeleteFunc(ctx, userID, conversationID)
}

type mockActivationUC struct {
	usecase.ActivationUseCase

	RedeemFunc        func(ctx context.Context, code, userID string) (*model.Subscription, *model.Plan, error)
	GenerateBatchFunc func(ctx context.Context, planID string, n int, ttl time.Duration) ([]*model.ActivationCode, error)
}

func (m *mockActivationUC) Redeem(ctx context.Context, code, userID string) (*model.Subscription, *model.Plan, error) {
	return m.RedeemFunc(ctx, code, userID)
}

func (m *mockActivationUC) GenerateBatch(ctx context.Context, planID string, n int, ttl time.Duration) ([]*model.ActivationCode, error) {
	return m.GenerateBatchFunc(ctx, planID, n, ttl)
}

type mockWithdrawalUC struct {
	usecase.WithdrawalUseCase

	CreateFunc func(ctx context.Context, userID string, amountCents int64, method, accountInfo string) (*model.WithdrawalRequest, error)
	RejectFunc func(ctx context.Context, id, reason string) error
}

func (m *mockWithdrawalUC) Create(ctx context.Context, userID string, amountCents int64, method, accountInfo string) (*model.WithdrawalRequest, error) {
	return m.CreateFunc(ctx, userID, amountCents, method, accountInfo)
}

func (m *mockWithdrawalUC) Reject(ctx context.Context, id, reason string) error {
	return m.RejectFunc(ctx, id, reason)
}

type mockCommissionUC struct {
	usecase.CommissionUseCase

	MyBalanceFunc func(ctx context.Context, userID string) (*model.Balance, error)
}

func (m *mockCommissionUC) MyBalance(ctx context.Context, userID string) (*model.Balance, error) {
	return m.MyBalanceFunc(ctx, userID)
}

// --- Harness ---

type serverFixture struct {
	srv        *Server
	chat       *mockChatUC
	activation *mockActivationUC
	withdrawal *mockWithdrawalUC
	commission *mockCommissionUC
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	cfg := &config.Config{}
	cfg.Quota.RateLimitPerMinute = 0 // no redis in unit tests
	cfg.Admin.Password = "hunter2"
	cfg.Billing.CodeTTL = 30 * 24 * time.Hour

	f := &serverFixture{
		chat:       &mockChatUC{},
		activation: &mockActivationUC{},
		withdrawal: &mockWithdrawalUC{},
		commission: &mockCommissionUC{},
	}
	auth := NewAuthManager("test-secret", false, "", time.Hour)
	f.srv = NewServer(f.chat, f.activation, f.commission, f.withdrawal, nil, nil, auth, nil, cfg, &logger)
	return f
}

func asUser(req *http.Request, userID string) *http.Request {
	req.Header.Set("X-User-ID", userID)
	return req
}

// --- Public API ---

func TestChatHandler(t *testing.T) {
	t.Run("streams CID line then deltas", func(t *testing.T) {
		f := newServerFixture(t)
		f.chat.SendMessageFunc = func(_ context.Context, userID, convID, query string, sink usecase.StreamSink) (*usecase.TurnResult, error) {
			if userID != "u1" || convID != "c1" || query != "hi" {
				t.Errorf("unexpected args: %s %s %s", userID, convID, query)
			}
			_ = sink.CID("up-42")
			_ = sink.Delta("Hello")
			_ = sink.Delta(", world")
			return &usecase.TurnResult{Reply: "Hello, world"}, nil
		}

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/chat",
			strings.NewReader(`{"conversation_id":"c1","query":"hi"}`)), "u1")
		rec := httptest.NewRecorder()
		f.srv.PublicRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if got, want := rec.Body.String(), "CID:up-42\nHello, world"; got != want {
			t.Errorf("body = %q, want %q", got, want)
		}
	})

	t.Run("quota warning travels as a header", func(t *testing.T) {
		f := newServerFixture(t)
		f.chat.SendMessageFunc = func(_ context.Context, _, _, _ string, sink usecase.StreamSink) (*usecase.TurnResult, error) {
			_ = sink.Warning(model.Entitlement{Scope: model.ScopeConversation, Used: 45, Limit: 50})
			_ = sink.Delta("ok")
			return &usecase.TurnResult{Reply: "ok"}, nil
		}

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/chat",
			strings.NewReader(`{"conversation_id":"c1","query":"hi"}`)), "u1")
		rec := httptest.NewRecorder()
		f.srv.PublicRouter().ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Quota-Warning"); got != "conversation 45/50" {
			t.Errorf("X-Quota-Warning = %q", got)
		}
		if rec.Body.String() != "ok" {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("quota exhaustion maps to 402 with snapshot", func(t *testing.T) {
		f := newServerFixture(t)
		f.chat.SendMessageFunc = func(_ context.Context, _, _, _ string, _ usecase.StreamSink) (*usecase.TurnResult, error) {
			return nil, &usecase.QuotaError{Snapshot: model.Entitlement{
				State: model.EntitlementTrialActive, Scope: model.ScopeTrial, Used: 5, Limit: 5,
			}}
		}

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/chat",
			strings.NewReader(`{"conversation_id":"c1","query":"hi"}`)), "u1")
		rec := httptest.NewRecorder()
		f.srv.PublicRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusPaymentRequired {
			t.Fatalf("status = %d, want 402", rec.Code)
		}
		var body struct {
			Error string            `json:"error"`
			Quota model.Entitlement `json:"quota"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error != "quota_exceeded" || body.Quota.Scope != model.ScopeTrial || body.Quota.Used != 5 {
			t.Errorf("unexpected body: %+v", body)
		}
	})

	t.Run("upstream failure maps to 503", func(t *testing.T) {
		f := newServerFixture(t)
		f.chat.SendMessageFunc = func(_ context.Context, _, _, _ string, _ usecase.StreamSink) (*usecase.TurnResult, error) {
			return nil, domain.ErrUpstreamUnavailable
		}

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/chat",
			strings.NewReader(`{"conversation_id":"c1","query":"hi"}`)), "u1")
		rec := httptest.NewRecorder()
		f.srv.PublicRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("missing identity header is rejected", func(t *testing.T) {
		f := newServerFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		f.srv.PublicRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestRedeemHandler(t *testing.T) {
	t.Run("used code maps to 409", func(t *testing.T) {
		f := newServerFixture(t)
		f.activation.RedeemFunc = func(_ context.Context, code, userID string) (*model.Subscription, *model.Plan, error) {
			return nil, nil, domain.ErrCodeAlreadyUsed
		}

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/activation/redeem",
			strings.NewReader(`{"code":"AAAA-BBBB-CCCC"}`)), "u1")
		rec := httptest.NewRecorder()
		f.srv.PublicRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("successful redemption returns plan and subscription", func(t *testing.T) {
		f := newServerFixture(t)
		days := 30
		plan := &model.Plan{ID: "p1", Name: "monthly", PriceCents: 9900, DurationDays: &days, Active: true}
		f.activation.RedeemFunc = func(_ context.Context, code, userID string) (*model.Subscription, *model.Plan, error) {
			end := time.Now().AddDate(0, 0, days)
			return &model.Subscription{
				ID: "s1", UserID: userID, PlanID: plan.ID, PlanName: plan.Name,
				Status: model.SubscriptionStatusActive, PeriodStart: time.Now(), PeriodEnd: &end,
			}, plan, nil
		}

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/activation/redeem",
			strings.NewReader(`{"code":"AAAA-BBBB-CCCC"}`)), "u1")
		rec := httptest.NewRecorder()
		f.srv.PublicRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Subscription subscriptionDTO `json:"subscription"`
			Plan         planDTO         `json:"plan"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Plan.ID != "p1" || body.Subscription.PlanName != "monthly" {
			t.Errorf("unexpected body: %+v", body)
		}
	})
}

func TestEntitlementHandler(t *testing.T) {
	f := newServerFixture(t)
	f.chat.EntitlementFunc = func(_ context.Context, userID string) (model.Entitlement, error) {
		return model.Entitlement{State: model.EntitlementTrialActive, Scope: model.ScopeTrial, Used: 2, Limit: 5}, nil
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/entitlement", nil), "u1")
	rec := httptest.NewRecorder()
	f.srv.PublicRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var ent model.Entitlement
	if err := json.NewDecoder(rec.Body).Decode(&ent); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ent.Used != 2 || ent.Limit != 5 {
		t.Errorf("entitlement = %+v", ent)
	}
}

func TestWithdrawalHandlers(t *testing.T) {
	t.Run("insufficient balance maps to 400", func(t *testing.T) {
		f := newServerFixture(t)
		f.withdrawal.CreateFunc = func(_ context.Context, _ string, _ int64, _, _ string) (*model.WithdrawalRequest, error) {
			return nil, domain.ErrInsufficientBalance
		}

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/withdrawals",
			strings.NewReader(`{"amount_cents":10000,"payment_method":"bank","account_info":"IR-1"}`)), "u1")
		rec := httptest.NewRecorder()
		f.srv.PublicRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("created request is echoed back", func(t *testing.T) {
		f := newServerFixture(t)
		f.withdrawal.CreateFunc = func(_ context.Context, userID string, amount int64, method, account string) (*model.WithdrawalRequest, error) {
			wd, err := model.NewWithdrawalRequest("w1", userID, amount, method, account)
			if err != nil {
				t.Fatalf("NewWithdrawalRequest: %v", err)
			}
			return wd, nil
		}

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/withdrawals",
			strings.NewReader(`{"amount_cents":5000,"payment_method":"bank","account_info":"IR-1"}`)), "u1")
		rec := httptest.NewRecorder()
		f.srv.PublicRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
		}
		var dto withdrawalDTO
		if err := json.NewDecoder(rec.Body).Decode(&dto); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if dto.ID != "w1" || dto.AmountCents != 5000 || dto.Status != "pending" {
			t.Errorf("dto = %+v", dto)
		}
	})
}

func TestBalanceHandler(t *testing.T) {
	f := newServerFixture(t)
	f.commission.MyBalanceFunc = func(_ context.Context, userID string) (*model.Balance, error) {
		return &model.Balance{UserID: userID, AmountCents: 4200}, nil
	}

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/balance", nil), "u1")
	rec := httptest.NewRecorder()
	f.srv.PublicRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		AmountCents int64 `json:"amount_cents"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.AmountCents != 4200 {
		t.Errorf("amount = %d, want 4200", body.AmountCents)
	}
}

// --- Admin API ---

func TestAdminAuth(t *testing.T) {
	t.Run("wrong password is rejected", func(t *testing.T) {
		f := newServerFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"nope"}`))
		rec := httptest.NewRecorder()
		f.srv.AdminRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("login mints a usable session", func(t *testing.T) {
		f := newServerFixture(t)
		router := f.srv.AdminRouter()

		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"hunter2"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Token == "" {
			t.Fatalf("no token in login response: %v", err)
		}

		f.activation.GenerateBatchFunc = func(_ context.Context, planID string, n int, ttl time.Duration) ([]*model.ActivationCode, error) {
			codes := make([]*model.ActivationCode, n)
			for i := range codes {
				codes[i] = &model.ActivationCode{ID: "c", Code: "AAAA-BBBB-CCCC", PlanID: planID, ExpiresAt: time.Now().Add(ttl)}
			}
			return codes, nil
		}
		gen := httptest.NewRequest(http.MethodPost, "/admin/codes", strings.NewReader(`{"plan_id":"p1","count":3}`))
		gen.Header.Set("Authorization", "Bearer "+body.Token)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, gen)
		if rec.Code != http.StatusCreated {
			t.Fatalf("generate status = %d: %s", rec.Code, rec.Body.String())
		}
		var codes []codeDTO
		if err := json.NewDecoder(rec.Body).Decode(&codes); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(codes) != 3 {
			t.Errorf("generated %d codes, want 3", len(codes))
		}
	})

	t.Run("protected routes need a session", func(t *testing.T) {
		f := newServerFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/admin/codes", strings.NewReader(`{"plan_id":"p1","count":1}`))
		rec := httptest.NewRecorder()
		f.srv.AdminRouter().ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestRejectWithdrawalHandler(t *testing.T) {
	f := newServerFixture(t)
	var gotID, gotReason string
	f.withdrawal.RejectFunc = func(_ context.Context, id, reason string) error {
		gotID, gotReason = id, reason
		return nil
	}

	router := f.srv.AdminRouter()
	login := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"hunter2"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, login)
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("login: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/withdrawals/w9/reject",
		strings.NewReader(`{"reason":"account mismatch"}`))
	req.Header.Set("Authorization", "Bearer "+body.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if gotID != "w9" || gotReason != "account mismatch" {
		t.Errorf("reject called with (%q, %q)", gotID, gotReason)
	}
}
