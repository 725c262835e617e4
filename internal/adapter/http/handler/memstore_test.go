package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"donation-payments/internal/core/domain"
	"donation-payments/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memStore is an in-memory stand-in for the Postgres repositories.
// Writes made through a memTx are staged and only become visible on Commit.
// Ledger inserts claim the event id immediately, like a unique index does.
type memStore struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*domain.User
	categories   []domain.Category
	donations    map[uuid.UUID]*domain.Donation
	payments     map[uuid.UUID]*domain.DonationPayment
	events       map[string]domain.StripeEvent
	applications map[string]domain.EventOutcome
	audits       []domain.AuditLog
	statusWrites int
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[uuid.UUID]*domain.User),
		donations:    make(map[uuid.UUID]*domain.Donation),
		payments:     make(map[uuid.UUID]*domain.DonationPayment),
		events:       make(map[string]domain.StripeEvent),
		applications: make(map[string]domain.EventOutcome),
	}
}

type memTx struct {
	pgx.Tx
	store  *memStore
	ops    []func()
	staged map[uuid.UUID]*domain.DonationPayment
	done   bool
}

func (s *memStore) Begin(context.Context) (pgx.Tx, error) {
	return &memTx{store: s, staged: make(map[uuid.UUID]*domain.DonationPayment)}, nil
}

func (tx *memTx) Commit(context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.done {
		return pgx.ErrTxClosed
	}
	for _, op := range tx.ops {
		op()
	}
	tx.done = true
	return nil
}

func (tx *memTx) Rollback(context.Context) error {
	tx.done = true
	tx.ops = nil
	return nil
}

func asMemTx(tx pgx.Tx) *memTx {
	m, ok := tx.(*memTx)
	if !ok {
		panic("memStore used with a foreign transaction")
	}
	return m
}

// --- payments ---

type memPaymentRepo struct{ s *memStore }

func (r memPaymentRepo) Create(_ context.Context, tx pgx.Tx, p *domain.DonationPayment) error {
	m := asMemTx(tx)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.payments {
		if existing.ProviderIntentID == p.ProviderIntentID {
			return domain.ErrDuplicateIntent
		}
	}
	cp := *p
	m.staged[p.ID] = &cp
	m.ops = append(m.ops, func() { r.s.payments[cp.ID] = &cp })
	return nil
}

func (r memPaymentRepo) UpdateProviderIntentID(_ context.Context, tx pgx.Tx, id uuid.UUID, intentID string) error {
	m := asMemTx(tx)
	if staged, ok := m.staged[id]; ok {
		staged.ProviderIntentID = intentID
		return nil
	}
	m.ops = append(m.ops, func() {
		if p, ok := r.s.payments[id]; ok {
			p.ProviderIntentID = intentID
		}
	})
	return nil
}

func (r memPaymentRepo) UpdateStatusByIntentID(_ context.Context, tx pgx.Tx, intentID string, status domain.PaymentStatus) (int64, error) {
	m := asMemTx(tx)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var targets []*domain.DonationPayment
	for _, p := range r.s.payments {
		if p.ProviderIntentID == intentID && p.Status != status {
			targets = append(targets, p)
		}
	}
	m.ops = append(m.ops, func() {
		for _, p := range targets {
			p.Status = status
			p.UpdatedAt = time.Now().UTC()
			r.s.statusWrites++
		}
	})
	return int64(len(targets)), nil
}

func (r memPaymentRepo) GetByIntentID(_ context.Context, intentID string) (*domain.DonationPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.ProviderIntentID == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memPaymentRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.PaymentSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := []domain.PaymentSummary{}
	for _, p := range r.s.payments {
		if p.UserID == nil || *p.UserID != userID {
			continue
		}
		items = append(items, domain.PaymentSummary{
			ID:            p.ID,
			DonationTitle: r.s.donations[p.DonationID].Title,
			Amount:        p.Amount,
			Currency:      p.Currency,
			Status:        p.Status,
			CreatedAt:     p.CreatedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (r memPaymentRepo) MarkRefunded(_ context.Context, ids []uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if p, ok := r.s.payments[id]; ok && p.Status != domain.PaymentStatusRefunded {
			p.Status = domain.PaymentStatusRefunded
			n++
		}
	}
	return n, nil
}

// --- ledger ---

type memEventRepo struct{ s *memStore }

func (r memEventRepo) Insert(_ context.Context, _ pgx.Tx, e *domain.StripeEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.events[e.EventID]; exists {
		return domain.ErrDuplicateEvent
	}
	r.s.events[e.EventID] = *e
	return nil
}

func (r memEventRepo) RecordOutcome(_ context.Context, tx pgx.Tx, eventID string, outcome domain.EventOutcome, _ time.Time) error {
	m := asMemTx(tx)
	m.ops = append(m.ops, func() {
		if _, exists := r.s.applications[eventID]; !exists {
			r.s.applications[eventID] = outcome
		}
	})
	return nil
}

func (r memEventRepo) ListUnapplied(_ context.Context, receivedBefore time.Time, limit int) ([]domain.StripeEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.StripeEvent
	for id, e := range r.s.events {
		if _, applied := r.s.applications[id]; !applied && e.ReceivedAt.Before(receivedBefore) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memEventRepo) HasLaterApplied(_ context.Context, _ pgx.Tx, intentID string, receivedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, e := range r.s.events {
		if e.PaymentIntentID != nil && *e.PaymentIntentID == intentID && e.ReceivedAt.After(receivedAt) &&
			r.s.applications[id] == domain.EventOutcomeApplied {
			return true, nil
		}
	}
	return false, nil
}

func (r memEventRepo) List(_ context.Context, filter ports.StripeEventFilter) ([]domain.StripeEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.StripeEvent{}
	for _, e := range r.s.events {
		if filter.EventType == "" || e.EventType == filter.EventType {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- catalog ---

type memDonationRepo struct{ s *memStore }

func (r memDonationRepo) GetActiveByID(_ context.Context, id uuid.UUID) (*domain.Donation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.donations[id]
	if !ok || !d.IsActive {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r memDonationRepo) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Donation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.donations[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r memDonationRepo) UpdateImageKey(_ context.Context, tx pgx.Tx, id uuid.UUID, imageKey *string) error {
	m := asMemTx(tx)
	m.ops = append(m.ops, func() {
		if d, ok := r.s.donations[id]; ok {
			d.ImageKey = imageKey
		}
	})
	return nil
}

func (r memDonationRepo) ListWithActiveDonations(context.Context) ([]domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		c.Donations = nil
		for _, d := range r.s.donations {
			if d.CategoryID == c.ID && d.IsActive {
				c.Donations = append(c.Donations, *d)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// --- accounts and audit ---

type memUserRepo struct{ s *memStore }

func (r memUserRepo) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Username == u.Username {
			return domain.ErrUsernameTaken
		}
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r memUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type memAuditRepo struct{ s *memStore }

func (r memAuditRepo) Create(_ context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audits = append(r.s.audits, *log)
	return nil
}

// --- inspection helpers ---

func (s *memStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *memStore) paymentByIntent(intentID string) (domain.DonationPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.ProviderIntentID == intentID {
			return *p, true
		}
	}
	return domain.DonationPayment{}, false
}

func (s *memStore) ledgerSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *memStore) outcome(eventID string) domain.EventOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applications[eventID]
}

func (s *memStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusWrites
}

func (s *memStore) auditActions() []domain.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, a.Action)
	}
	return out
}

var errProviderDown = errors.New("stripe: connection refused")

// fakeProvider hands out sequential intent ids.
type fakeProvider struct {
	mu    sync.Mutex
	calls int
	err   error
	last  ports.ProviderIntentRequest
}

func (p *fakeProvider) CreatePaymentIntent(_ context.Context, req ports.ProviderIntentRequest) (*ports.ProviderIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.last = req
	if p.err != nil {
		return nil, p.err
	}
	id := fmt.Sprintf("pi_%d", p.calls)
	return &ports.ProviderIntent{IntentID: id, ClientSecret: id + "_secret_x"}, nil
}

type fakeObjectStore struct {
	mu      sync.Mutex
	deleted []string
}

func (s *fakeObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeObjectStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

type staticChecker struct {
	name string
	err  error
}

func (c staticChecker) Ping(context.Context) error { return c.err }
func (c staticChecker) Name() string               { return c.name }
