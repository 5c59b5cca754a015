// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/mehran-shabani/Apatie/internal/domain"
	"github.com/mehran-shabani/Apatie/internal/domain/model"
	"github.com/mehran-shabani/Apatie/internal/domain/ports/adapter"
	"github.com/mehran-shabani/Apatie/internal/domain/ports/repository"
)

// memPaymentRepo is a small in-memory implementation used by unit tests.
type memPaymentRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.PaymentTransaction // by ID
	saveErr error                                // used by tests to simulate save failures
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.PaymentTransaction)}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.store {
		if t.OrderID == orderID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) FindByTrackID(ctx context.Context, tx repository.Tx, gateway model.PaymentGateway, trackID int64) (*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.store {
		if t.Gateway == gateway && t.TrackID != nil && *t.TrackID == trackID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) ListReconcilable(ctx context.Context, tx repository.Tx, f repository.ReconcileFilter) ([]*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentTransaction
	for _, t := range m.store {
		if t.Gateway != f.Gateway || t.TrackID == nil {
			continue
		}
		if f.TrackID != nil {
			if *t.TrackID == *f.TrackID {
				cp := *t
				out = append(out, &cp)
			}
			continue
		}
		if t.Status.IsTerminal() || t.CreatedAt.Before(f.CreatedAfter) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type memSubscriptionRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Subscription
	saveErr error
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *memSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.UserID == userID && s.IsActive() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) ExpireOverdue(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			s.Status = model.SubscriptionStatusExpired
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// mockGateway lets each test script the provider's answers per call.
type mockGateway struct {
	mu        sync.Mutex
	requestFn func(req adapter.PaymentRequest) (*adapter.PaymentRequestResult, error)
	verifyFn  func(trackID int64) (*adapter.VerifyResult, error)
	inquiryFn func(trackID int64) (*adapter.InquiryResult, error)
	requests  int
	verifies  int
	inquiries int
}

func (g *mockGateway) Name() string { return "zibal" }

func (g *mockGateway) RequestPayment(ctx context.Context, req adapter.PaymentRequest) (*adapter.PaymentRequestResult, error) {
	g.mu.Lock()
	g.requests++
	fn := g.requestFn
	g.mu.Unlock()
	if fn == nil {
		return &adapter.PaymentRequestResult{TrackID: 1000, ResultCode: 100, Success: true}, nil
	}
	return fn(req)
}

func (g *mockGateway) VerifyPayment(ctx context.Context, trackID int64) (*adapter.VerifyResult, error) {
	g.mu.Lock()
	g.verifies++
	fn := g.verifyFn
	g.mu.Unlock()
	if fn == nil {
		return &adapter.VerifyResult{ResultCode: 100, Status: 1, Success: true}, nil
	}
	return fn(trackID)
}

func (g *mockGateway) Inquiry(ctx context.Context, trackID int64) (*adapter.InquiryResult, error) {
	g.mu.Lock()
	g.inquiries++
	fn := g.inquiryFn
	g.mu.Unlock()
	if fn == nil {
		return &adapter.InquiryResult{ResultCode: 100, Status: adapter.GatewayStatusPaid}, nil
	}
	return fn(trackID)
}

func (g *mockGateway) StartURL(trackID int64) string {
	return "https://gateway.example/start/" + strconv.FormatInt(trackID, 10)
}

func (g *mockGateway) verifyCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifies
}

// noopTxManager runs the function without a real database transaction; the
// in-memory repos ignore the tx handle anyway.
type noopTxManager struct {
	mu    sync.Mutex
	calls int
}

func (m *noopTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return fn(ctx, nil)
}
