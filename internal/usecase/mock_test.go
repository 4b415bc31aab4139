//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain"
	"ai-chat-subscription/internal/domain/model"
	"ai-chat-subscription/internal/domain/ports/adapter"
	"ai-chat-subscription/internal/domain/ports/repository"
	"ai-chat-subscription/internal/usecase"
)

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.User
	byPhone map[string]*model.User

	SaveFunc               func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByIDFunc           func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	FindByPhoneFunc        func(ctx context.Context, tx repository.Tx, phone string) (*model.User, error)
	IncrementChatCountFunc func(ctx context.Context, tx repository.Tx, userID string) (int, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{byID: map[string]*model.User{}, byPhone: map[string]*model.User{}}
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, u)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.byID[cp.ID] = &cp
	r.byPhone[cp.Phone] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindByPhone(ctx context.Context, tx repository.Tx, phone string) (*model.User, error) {
	if r.FindByPhoneFunc != nil {
		return r.FindByPhoneFunc(ctx, tx, phone)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byPhone[phone]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) IncrementChatCount(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	if r.IncrementChatCountFunc != nil {
		return r.IncrementChatCountFunc(ctx, tx, userID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	u.ChatCount++
	return u.ChatCount, nil
}

func (r *MockUserRepo) UpdateSubscriptionFields(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[u.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.SubscriptionType = u.SubscriptionType
	stored.SubscriptionStart = u.SubscriptionStart
	stored.SubscriptionEnd = u.SubscriptionEnd
	return nil
}

func (r *MockUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

func (r *MockUserRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.User, 0, len(r.byID))
	for _, u := range r.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// ---- Mock PlanRepository ----

type MockPlanRepo struct {
	mu   sync.Mutex
	data map[string]*model.Plan

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{data: map[string]*model.Plan{}}
}

func (r *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[cp.ID] = &cp
	return nil
}

func (r *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Plan
	for _, p := range r.data {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Plan
	for _, p := range r.data {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MockPlanRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active = false
	return nil
}

// ---- Mock ActivationCodeRepository ----

type MockActivationCodeRepo struct {
	mu   sync.Mutex
	data map[string]*model.ActivationCode // keyed by code string

	ConsumeFunc func(ctx context.Context, tx repository.Tx, code, userID string, now time.Time) (*model.ActivationCode, error)
}

var _ repository.ActivationCodeRepository = (*MockActivationCodeRepo)(nil)

func NewMockActivationCodeRepo() *MockActivationCodeRepo {
	return &MockActivationCodeRepo{data: map[string]*model.ActivationCode{}}
}

func (r *MockActivationCodeRepo) Save(ctx context.Context, tx repository.Tx, c *model.ActivationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.data[cp.Code] = &cp
	return nil
}

func (r *MockActivationCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.ActivationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.data[code]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// Consume mirrors the single-conditional-update semantics of the Postgres
// repo: the check and the flip happen under one lock acquisition.
func (r *MockActivationCodeRepo) Consume(ctx context.Context, tx repository.Tx, code, userID string, now time.Time) (*model.ActivationCode, error) {
	if r.ConsumeFunc != nil {
		return r.ConsumeFunc(ctx, tx, code, userID, now)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.data[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.IsUsed {
		return nil, domain.ErrCodeAlreadyUsed
	}
	if c.Expired(now) {
		return nil, domain.ErrCodeExpired
	}
	c.IsUsed = true
	c.UsedByUserID = &userID
	c.ActivatedAt = &now
	cp := *c
	return &cp, nil
}

func (r *MockActivationCodeRepo) ListByPlan(ctx context.Context, tx repository.Tx, planID string, onlyUnused bool) ([]*model.ActivationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ActivationCode
	for _, c := range r.data {
		if c.PlanID != planID {
			continue
		}
		if onlyUnused && c.IsUsed {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Subscription

	SaveFunc             func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	FindActiveByUserFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.Subscription{}}
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.data[cp.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.data[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	if r.FindActiveByUserFunc != nil {
		return r.FindActiveByUserFunc(ctx, tx, userID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.Subscription
	for _, s := range r.data {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
				latest = s
			}
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *MockSubscriptionRepo) CancelActiveByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.data {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			s.Status = model.SubscriptionStatusCancelled
			n++
		}
	}
	return n, nil
}

func (r *MockSubscriptionRepo) MarkExpired(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	if s.Status != model.SubscriptionStatusActive {
		return domain.ErrInvalidState
	}
	s.Status = model.SubscriptionStatusExpired
	return nil
}

func (r *MockSubscriptionRepo) ExpireLapsed(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.data {
		if s.Status == model.SubscriptionStatusActive && s.PeriodEnd != nil && !now.Before(*s.PeriodEnd) {
			s.Status = model.SubscriptionStatusExpired
			n++
		}
	}
	return n, nil
}

func (r *MockSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.data {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MockSubscriptionRepo) CountActiveByPlanName(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, s := range r.data {
		if s.Status == model.SubscriptionStatusActive {
			out[s.PlanName]++
		}
	}
	return out, nil
}

// ActiveCount is a test helper for the one-active-row invariant.
func (r *MockSubscriptionRepo) ActiveCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.data {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			n++
		}
	}
	return n
}

// ---- Mock CommissionRepository ----

type MockCommissionRepo struct {
	mu   sync.Mutex
	recs []*model.CommissionRecord
	seen map[string]bool // eventID:level
}

var _ repository.CommissionRepository = (*MockCommissionRepo)(nil)

func NewMockCommissionRepo() *MockCommissionRepo {
	return &MockCommissionRepo{seen: map[string]bool{}}
}

func commissionKey(eventID string, level int) string {
	return eventID + ":" + strconv.Itoa(level)
}

func (r *MockCommissionRepo) Insert(ctx context.Context, tx repository.Tx, rec *model.CommissionRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := commissionKey(rec.ActivationCodeID, rec.Level)
	if r.seen[key] {
		return false, nil
	}
	r.seen[key] = true
	cp := *rec
	r.recs = append(r.recs, &cp)
	return true, nil
}

func (r *MockCommissionRepo) ListByInviter(ctx context.Context, tx repository.Tx, inviterUserID string, offset, limit int) ([]*model.CommissionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CommissionRecord
	for _, rec := range r.recs {
		if rec.InviterUserID == inviterUserID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockCommissionRepo) SumByInviter(ctx context.Context, tx repository.Tx, inviterUserID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, rec := range r.recs {
		if rec.InviterUserID == inviterUserID {
			sum += rec.AmountCents
		}
	}
	return sum, nil
}

func (r *MockCommissionRepo) SumAll(ctx context.Context, tx repository.Tx) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, rec := range r.recs {
		sum += rec.AmountCents
	}
	return sum, nil
}

// All returns a snapshot of the ledger for assertions.
func (r *MockCommissionRepo) All() []*model.CommissionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.CommissionRecord, len(r.recs))
	copy(out, r.recs)
	return out
}

// ---- Mock BalanceRepository ----

type MockBalanceRepo struct {
	mu       sync.Mutex
	balances map[string]int64
}

var _ repository.BalanceRepository = (*MockBalanceRepo)(nil)

func NewMockBalanceRepo() *MockBalanceRepo {
	return &MockBalanceRepo{balances: map[string]int64{}}
}

func (r *MockBalanceRepo) Get(ctx context.Context, tx repository.Tx, userID string) (*model.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	amt, ok := r.balances[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &model.Balance{UserID: userID, AmountCents: amt}, nil
}

func (r *MockBalanceRepo) Credit(ctx context.Context, tx repository.Tx, userID string, amountCents int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[userID] += amountCents
	return nil
}

// DebitIfSufficient mirrors the atomic conditional decrement: check and
// decrement happen under one lock acquisition.
func (r *MockBalanceRepo) DebitIfSufficient(ctx context.Context, tx repository.Tx, userID string, amountCents int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances[userID] < amountCents {
		return false, nil
	}
	r.balances[userID] -= amountCents
	return true, nil
}

// Amount is a test helper.
func (r *MockBalanceRepo) Amount(userID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[userID]
}

// ---- Mock WithdrawalRepository ----

type MockWithdrawalRepo struct {
	mu   sync.Mutex
	data map[string]*model.WithdrawalRequest
}

var _ repository.WithdrawalRepository = (*MockWithdrawalRepo)(nil)

func NewMockWithdrawalRepo() *MockWithdrawalRepo {
	return &MockWithdrawalRepo{data: map[string]*model.WithdrawalRequest{}}
}

func (r *MockWithdrawalRepo) Save(ctx context.Context, tx repository.Tx, w *model.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.data[cp.ID] = &cp
	return nil
}

func (r *MockWithdrawalRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.WithdrawalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.data[id]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockWithdrawalRepo) Transition(ctx context.Context, tx repository.Tx, id string, from, to model.WithdrawalStatus, rejectionReason *string, debited bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.data[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if w.Status != from {
		return false, nil
	}
	now := time.Now()
	w.Status = to
	w.RejectionReason = rejectionReason
	w.Debited = debited
	w.ProcessedAt = &now
	return true, nil
}

func (r *MockWithdrawalRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.WithdrawalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WithdrawalRequest
	for _, w := range r.data {
		if w.UserID == userID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockWithdrawalRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.WithdrawalStatus, offset, limit int) ([]*model.WithdrawalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WithdrawalRequest
	for _, w := range r.data {
		if w.Status == status {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock ConversationRepository ----

type MockConversationRepo struct {
	mu   sync.Mutex
	data map[string]*model.Conversation
}

var _ repository.ConversationRepository = (*MockConversationRepo)(nil)

func NewMockConversationRepo() *MockConversationRepo {
	return &MockConversationRepo{data: map[string]*model.Conversation{}}
}

func (r *MockConversationRepo) Save(ctx context.Context, tx repository.Tx, c *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.data[cp.ID] = &cp
	return nil
}

func (r *MockConversationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.data[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockConversationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Conversation
	for _, c := range r.data {
		if c.UserID == userID && !c.Deleted {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockConversationRepo) SetUpstreamID(ctx context.Context, tx repository.Tx, id, upstreamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.UpstreamConversationID = &upstreamID
	return nil
}

func (r *MockConversationRepo) SoftDelete(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	c.Deleted = true
	c.DeletedAt = &now
	return nil
}

// ---- Mock MessageRepository ----

type MockMessageRepo struct {
	mu   sync.Mutex
	msgs []*model.Message

	SaveFunc func(ctx context.Context, tx repository.Tx, m *model.Message) error
}

var _ repository.MessageRepository = (*MockMessageRepo)(nil)

func NewMockMessageRepo() *MockMessageRepo {
	return &MockMessageRepo{}
}

func (r *MockMessageRepo) Save(ctx context.Context, tx repository.Tx, m *model.Message) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, m)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.msgs = append(r.msgs, &cp)
	return nil
}

func (r *MockMessageRepo) ListByConversation(ctx context.Context, tx repository.Tx, conversationID string) ([]*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Message
	for _, m := range r.msgs {
		if m.ConversationID == conversationID && !m.Deleted {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockMessageRepo) CountUserMessages(ctx context.Context, tx repository.Tx, conversationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.ConversationID == conversationID && m.Role == "user" && !m.Deleted {
			n++
		}
	}
	return n, nil
}

func (r *MockMessageRepo) SoftDelete(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ID == id {
			now := time.Now()
			m.Deleted = true
			m.DeletedAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

// All returns a snapshot for assertions.
func (r *MockMessageRepo) All() []*model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Message, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// =============================
// Adapters and plumbing
// =============================

// ---- Mock AIStreamer ----

type MockAIStreamer struct {
	Frames []adapter.StreamFrame
	Err    error // returned after all frames were delivered

	StreamChatFunc func(ctx context.Context, query, upstreamConversationID string, h adapter.StreamHandler) error
}

var _ adapter.AIStreamer = (*MockAIStreamer)(nil)

func (m *MockAIStreamer) StreamChat(ctx context.Context, query, upstreamConversationID string, h adapter.StreamHandler) error {
	if m.StreamChatFunc != nil {
		return m.StreamChatFunc(ctx, query, upstreamConversationID, h)
	}
	for _, f := range m.Frames {
		if err := h(f); err != nil {
			return err
		}
	}
	return m.Err
}

// ---- Collecting StreamSink ----

type CollectSink struct {
	Warnings []model.Entitlement
	CIDs     []string
	Deltas   []string

	DeltaErr error // returned from Delta to simulate a client disconnect
}

var _ usecase.StreamSink = (*CollectSink)(nil)

func (s *CollectSink) Warning(snapshot model.Entitlement) error {
	s.Warnings = append(s.Warnings, snapshot)
	return nil
}

func (s *CollectSink) CID(upstreamID string) error {
	s.CIDs = append(s.CIDs, upstreamID)
	return nil
}

func (s *CollectSink) Delta(text string) error {
	if s.DeltaErr != nil {
		return s.DeltaErr
	}
	s.Deltas = append(s.Deltas, text)
	return nil
}

// ---- Mock TxManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx runs the function immediately without a real transaction. For
// specific transactional tests, assign a custom function to WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Inline TaskSubmitter ----

// inlineSubmitter runs settlement tasks synchronously so tests can assert
// right after the call returns.
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(task func(ctx context.Context) error) error {
	return task(context.Background())
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
