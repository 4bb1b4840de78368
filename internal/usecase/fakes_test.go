//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"chat-subscription-payments/internal/domain"
	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/adapter"
	"chat-subscription-payments/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

var testNow = time.Date(2025, 3, 14, 10, 0, 0, 0, model.MarketZone)

func fixedClock() time.Time { return testNow }

// txStore is implemented by fakes that can be rolled back by fakeTxManager.
type txStore interface {
	snapshot() any
	restore(any)
}

// ---- TxManager ----

// fakeTxManager runs fn under a single mutex and restores every registered
// store when fn fails, which is what a Postgres rollback looks like to callers.
// With concurrent=true it neither serialises nor rolls back.
type fakeTxManager struct {
	mu         sync.Mutex
	stores     []txStore
	concurrent bool

	calls int
}

var _ repository.TransactionManager = (*fakeTxManager)(nil)

func newFakeTxManager(stores ...txStore) *fakeTxManager {
	return &fakeTxManager{stores: stores}
}

func (m *fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.concurrent {
		m.mu.Lock()
		m.calls++
		m.mu.Unlock()
		return fn(ctx, "fake-tx")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	snaps := make([]any, len(m.stores))
	for i, s := range m.stores {
		snaps[i] = s.snapshot()
	}
	if err := fn(ctx, "fake-tx"); err != nil {
		for i, s := range m.stores {
			s.restore(snaps[i])
		}
		return err
	}
	return nil
}

// ---- Payment intents ----

type memIntentRepo struct {
	mu    sync.Mutex
	data  map[string]*model.PaymentIntent
	calls map[string]int
	errs  map[string]error // method name -> injected error
	// pingErr fails the liveness probe
	pingErr error
}

var _ repository.PaymentIntentRepository = (*memIntentRepo)(nil)

func newMemIntentRepo(intents ...*model.PaymentIntent) *memIntentRepo {
	r := &memIntentRepo{data: map[string]*model.PaymentIntent{}, calls: map[string]int{}, errs: map[string]error{}}
	for _, p := range intents {
		cp := *p
		r.data[p.ID] = &cp
	}
	return r
}

func (r *memIntentRepo) hit(method string) error {
	r.calls[method]++
	return r.errs[method]
}

func (r *memIntentRepo) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

func (r *memIntentRepo) Get(id string) *model.PaymentIntent {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *memIntentRepo) snapshot() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.PaymentIntent, len(r.data))
	for k, v := range r.data {
		out[k] = *v
	}
	return out
}

func (r *memIntentRepo) restore(s any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = map[string]*model.PaymentIntent{}
	for k, v := range s.(map[string]model.PaymentIntent) {
		cp := v
		r.data[k] = &cp
	}
}

func (r *memIntentRepo) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["Ping"]++
	return r.pingErr
}

func (r *memIntentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.hit("Save"); err != nil {
		return err
	}
	for _, v := range r.data {
		if v.Reference == p.Reference && v.ID != p.ID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *memIntentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.hit("FindByID"); err != nil {
		return nil, err
	}
	p, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memIntentRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.PaymentIntent, error) {
	return r.first("FindByReference", func(p *model.PaymentIntent) bool { return p.Reference == reference })
}

func (r *memIntentRepo) FindPendingByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.PaymentIntent, error) {
	return r.first("FindPendingByUserAndPlan", func(p *model.PaymentIntent) bool {
		return p.IsPending() && p.UserID == userID && p.PlanID == planID
	})
}

func (r *memIntentRepo) FindPendingByReference(ctx context.Context, tx repository.Tx, reference string) (*model.PaymentIntent, error) {
	return r.first("FindPendingByReference", func(p *model.PaymentIntent) bool {
		return p.IsPending() && p.Reference == reference
	})
}

func (r *memIntentRepo) FindPendingByReferenceContains(ctx context.Context, tx repository.Tx, fragment string) (*model.PaymentIntent, error) {
	frag := strings.ToUpper(fragment)
	return r.first("FindPendingByReferenceContains", func(p *model.PaymentIntent) bool {
		return p.IsPending() && strings.Contains(strings.ToUpper(p.Reference), frag)
	})
}

func (r *memIntentRepo) ListPendingByReferencePrefix(ctx context.Context, tx repository.Tx, prefix string, limit int) ([]*model.PaymentIntent, error) {
	pre := strings.ToUpper(prefix)
	return r.list("ListPendingByReferencePrefix", limit, func(p *model.PaymentIntent) bool {
		return p.IsPending() && strings.HasPrefix(strings.ToUpper(p.Reference), pre)
	})
}

func (r *memIntentRepo) ListPendingByAmountSince(ctx context.Context, tx repository.Tx, amount int64, since time.Time, limit int) ([]*model.PaymentIntent, error) {
	return r.list("ListPendingByAmountSince", limit, func(p *model.PaymentIntent) bool {
		return p.IsPending() && p.Amount == amount && p.CreatedAt.After(since)
	})
}

func (r *memIntentRepo) ListPendingByAmount(ctx context.Context, tx repository.Tx, amount int64, limit int) ([]*model.PaymentIntent, error) {
	return r.list("ListPendingByAmount", limit, func(p *model.PaymentIntent) bool {
		return p.IsPending() && p.Amount == amount
	})
}

func (r *memIntentRepo) CountPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time) (int, error) {
	list, err := r.list("CountPendingOlderThan", 0, func(p *model.PaymentIntent) bool {
		return p.IsPending() && p.CreatedAt.Before(olderThan)
	})
	return len(list), err
}

func (r *memIntentRepo) AnnotateWebhook(ctx context.Context, tx repository.Tx, id string, bankReference *string, receivedAt time.Time, matchMethod string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.hit("AnnotateWebhook"); err != nil {
		return err
	}
	p, ok := r.data[id]
	if !ok || !p.IsPending() {
		return nil
	}
	p.BankReference = bankReference
	p.WebhookReceivedAt = &receivedAt
	p.MatchMethod = matchMethod
	return nil
}

func (r *memIntentRepo) CompleteIfPending(ctx context.Context, tx repository.Tx, id string, upd model.CompletionUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.hit("CompleteIfPending"); err != nil {
		return false, err
	}
	p, ok := r.data[id]
	if !ok || !p.IsPending() {
		return false, nil
	}
	at := upd.CompletedAt
	p.Status = model.PaymentStatusCompleted
	p.CompletedAt = &at
	p.MatchMethod = upd.MatchMethod
	p.PaymentDetails = append(json.RawMessage(nil), upd.PaymentDetails...)
	if upd.BankReference != nil {
		p.BankReference = upd.BankReference
	}
	return true, nil
}

func (r *memIntentRepo) first(method string, pred func(*model.PaymentIntent) bool) (*model.PaymentIntent, error) {
	list, err := r.list(method, 1, pred)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	return list[0], nil
}

// list returns matches newest first.
func (r *memIntentRepo) list(method string, limit int, pred func(*model.PaymentIntent) bool) ([]*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.hit(method); err != nil {
		return nil, err
	}
	var out []*model.PaymentIntent
	for _, p := range r.data {
		if pred(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Subscriptions ----

type memSubscriptionRepo struct {
	mu      sync.Mutex
	rows    []model.Subscription
	saveErr error
	locks   int
}

var _ repository.SubscriptionRepository = (*memSubscriptionRepo)(nil)

func newMemSubscriptionRepo(rows ...model.Subscription) *memSubscriptionRepo {
	return &memSubscriptionRepo{rows: rows}
}

func (r *memSubscriptionRepo) snapshot() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Subscription(nil), r.rows...)
}

func (r *memSubscriptionRepo) restore(s any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = s.([]model.Subscription)
}

func (r *memSubscriptionRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	if tx == nil {
		return domain.ErrInvalidExecContext
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks++
	return nil
}

func (r *memSubscriptionRepo) DeactivateActiveByUser(ctx context.Context, tx repository.Tx, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.rows {
		if r.rows[i].UserID == userID && r.rows[i].IsActive {
			r.rows[i].IsActive = false
			r.rows[i].UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (r *memSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.rows = append(r.rows, *s)
	return nil
}

func (r *memSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].UserID == userID && r.rows[i].IsActive {
			cp := r.rows[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memSubscriptionRepo) CountActiveByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.rows {
		if s.UserID == userID && s.IsActive {
			n++
		}
	}
	return n, nil
}

// ---- Plans ----

type memPlanRepo struct {
	mu    sync.Mutex
	plans map[string]*model.SubscriptionPlan
	calls int
}

var _ repository.SubscriptionPlanRepository = (*memPlanRepo)(nil)

func newMemPlanRepo(plans ...*model.SubscriptionPlan) *memPlanRepo {
	r := &memPlanRepo{plans: map[string]*model.SubscriptionPlan{}}
	for _, p := range plans {
		r.plans[p.ID] = p
	}
	return r
}

func (r *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	p, ok := r.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.SubscriptionPlan, 0, len(r.plans))
	for _, p := range r.plans {
		out = append(out, p)
	}
	return out, nil
}

// ---- Unresolved payments ----

type memUnresolvedRepo struct {
	mu      sync.Mutex
	data    map[string]*model.UnresolvedPayment
	saveErr error
}

var _ repository.UnresolvedPaymentRepository = (*memUnresolvedRepo)(nil)

func newMemUnresolvedRepo(rows ...*model.UnresolvedPayment) *memUnresolvedRepo {
	r := &memUnresolvedRepo{data: map[string]*model.UnresolvedPayment{}}
	for _, u := range rows {
		cp := *u
		r.data[u.ID] = &cp
	}
	return r
}

func (r *memUnresolvedRepo) Get(id string) *model.UnresolvedPayment {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (r *memUnresolvedRepo) snapshot() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.UnresolvedPayment, len(r.data))
	for k, v := range r.data {
		out[k] = *v
	}
	return out
}

func (r *memUnresolvedRepo) restore(s any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = map[string]*model.UnresolvedPayment{}
	for k, v := range s.(map[string]model.UnresolvedPayment) {
		cp := v
		r.data[k] = &cp
	}
}

func (r *memUnresolvedRepo) Save(ctx context.Context, tx repository.Tx, u *model.UnresolvedPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *u
	r.data[u.ID] = &cp
	return nil
}

func (r *memUnresolvedRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UnresolvedPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUnresolvedRepo) ListUnresolved(ctx context.Context, tx repository.Tx) ([]*model.UnresolvedPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.UnresolvedPayment
	for _, u := range r.data {
		if u.Status == model.UnresolvedStatusUnresolved {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	return out, nil
}

func (r *memUnresolvedRepo) CountUnresolved(ctx context.Context, tx repository.Tx) (int, error) {
	list, err := r.ListUnresolved(ctx, tx)
	return len(list), err
}

func (r *memUnresolvedRepo) MarkResolvedIfUnresolved(ctx context.Context, tx repository.Tx, id, transactionID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok || u.Status != model.UnresolvedStatusUnresolved {
		return false, nil
	}
	tid := transactionID
	u.Status = model.UnresolvedStatusResolved
	u.ResolvedAt = &at
	u.ResolvedTransactionID = &tid
	return true, nil
}

// ---- Adapters ----

type memInfoCache struct {
	mu          sync.Mutex
	data        map[string]*model.SubscriptionInfo
	invalidated []string
	getErr      error
}

var _ adapter.SubscriptionInfoCache = (*memInfoCache)(nil)

func newMemInfoCache() *memInfoCache {
	return &memInfoCache{data: map[string]*model.SubscriptionInfo{}}
}

func (c *memInfoCache) Get(ctx context.Context, userID string) (*model.SubscriptionInfo, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	info, ok := c.data[userID]
	return info, ok, nil
}

func (c *memInfoCache) Set(ctx context.Context, info *model.SubscriptionInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[info.UserID] = info
	return nil
}

func (c *memInfoCache) Invalidate(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, userID)
	c.invalidated = append(c.invalidated, userID)
	return nil
}

type memLocker struct {
	mu   sync.Mutex
	held map[string]string
}

var _ adapter.Locker = (*memLocker)(nil)

func newMemLocker() *memLocker { return &memLocker{held: map[string]string{}} }

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLockNotAcquired
	}
	l.held[key] = "token-" + key
	return l.held[key], nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

var _ adapter.OperatorNotifier = (*recordingNotifier)(nil)

func (n *recordingNotifier) NotifyUnresolved(ctx context.Context, u *model.UnresolvedPayment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, u.ID)
	return n.err
}

type stubValidator struct{ err error }

var _ adapter.WebhookValidator = stubValidator{}

func (v stubValidator) Name() string { return "stub" }

func (v stubValidator) Validate(ctx context.Context, p *model.WebhookPayload, signature string) error {
	return v.err
}

var errStoreDown = errors.New("connection reset by peer")

// ---- fixtures ----

func pendingIntent(id, ref string, amount int64, createdAt time.Time) *model.PaymentIntent {
	return &model.PaymentIntent{
		ID:        id,
		Reference: ref,
		UserID:    "user-" + id,
		PlanID:    "plan-pro",
		Amount:    amount,
		Status:    model.PaymentStatusPending,
		CreatedAt: createdAt,
	}
}

func payload(body string) *model.WebhookPayload {
	p, err := model.ParseWebhookPayload([]byte(body))
	if err != nil {
		panic(err)
	}
	return p
}
