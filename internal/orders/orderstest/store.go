// Package orderstest provides an in-memory orders.Store for tests.
package orderstest

import (
	"context"
	"github.com/ariefcatur/go-piano-orders/internal/orders"
	"strings"
	"sync"
	"time"
)

// Store mirrors the SQL compare-and-set semantics under one mutex.
type Store struct {
	mu     sync.Mutex
	rows   map[int64]orders.Order
	nextID int64

	// Transitions counts every write that moved an order out of pending.
	Transitions int
}

func NewStore() *Store {
	return &Store{rows: map[int64]orders.Order{}}
}

// Put stores o as-is, assigning an id when it has none.
func (s *Store) Put(o orders.Order) orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		s.nextID++
		o.ID = s.nextID
	} else if o.ID > s.nextID {
		s.nextID = o.ID
	}
	if o.Status == "" {
		o.Status = orders.StatusPending
	}
	s.rows[o.ID] = o
	return o
}

func (s *Store) Snapshot(id int64) (orders.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.rows[id]
	return o, ok
}

func (s *Store) Insert(_ context.Context, o *orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.IdempotencyKey != "" {
		for _, x := range s.rows {
			if x.BuyerID == o.BuyerID && x.IdempotencyKey == o.IdempotencyKey {
				return orders.ErrDuplicateIdempotencyKey
			}
		}
	}
	s.nextID++
	o.ID = s.nextID
	o.Status = orders.StatusPending
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	s.rows[o.ID] = *o
	return nil
}

func (s *Store) Get(_ context.Context, id int64) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.rows[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

func (s *Store) FindByIdempotencyKey(_ context.Context, buyerID, key string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.rows {
		if o.BuyerID == buyerID && o.IdempotencyKey == key {
			return o, nil
		}
	}
	return orders.Order{}, orders.ErrOrderNotFound
}

// cas applies mut to a pending order that passes match.
func (s *Store) cas(id int64, match func(orders.Order) bool, mut func(*orders.Order)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.rows[id]
	if !ok || o.Status != orders.StatusPending || (match != nil && !match(o)) {
		return false
	}
	mut(&o)
	o.UpdatedAt = time.Now()
	s.rows[id] = o
	s.Transitions++
	return true
}

func note(o *orders.Order, n string) {
	if n == "" {
		return
	}
	o.AdminNotes = strings.TrimPrefix(o.AdminNotes+"\n"+n, "\n")
}

func (s *Store) Cancel(_ context.Context, buyerID string, id int64, n string) (bool, error) {
	return s.cas(id, func(o orders.Order) bool { return o.BuyerID == buyerID }, func(o *orders.Order) {
		o.Status = orders.StatusCancelled
		note(o, n)
	}), nil
}

func (s *Store) Decide(_ context.Context, id int64, to orders.Status, adminID, n string, at time.Time) (bool, error) {
	return s.cas(id, nil, func(o *orders.Order) {
		o.Status, o.ApprovedBy, o.ApprovedAt = to, adminID, &at
		note(o, n)
	}), nil
}

func (s *Store) MarkPaid(_ context.Context, id int64, code string, paidAt time.Time, n string) (bool, error) {
	return s.cas(id, nil, func(o *orders.Order) {
		o.Status, o.TransactionCode, o.PaidAt, o.ApprovedAt = orders.StatusApproved, code, &paidAt, &paidAt
		note(o, n)
	}), nil
}

func (s *Store) MarkPaymentFailed(_ context.Context, id int64, code, n string) (bool, error) {
	return s.cas(id, nil, func(o *orders.Order) {
		o.Status, o.TransactionCode = orders.StatusPaymentFailed, code
		note(o, n)
	}), nil
}

func (s *Store) AppendNote(_ context.Context, id int64, n string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.rows[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	note(&o, n)
	s.rows[id] = o
	return nil
}

func (s *Store) ExpireOverdue(_ context.Context, now time.Time, n string) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for id, o := range s.rows {
		if o.Status != orders.StatusPending || o.PaymentMethod != orders.PaymentQR ||
			o.PaymentExpiredAt == nil || !o.PaymentExpiredAt.Before(now) {
			continue
		}
		o.Status = orders.StatusCancelled
		note(&o, n)
		s.rows[id] = o
		s.Transitions++
		out = append(out, o)
	}
	return out, nil
}

// Dispatcher queues tasks until Run is called, so tests can observe that
// callers return before side effects happen.
type Dispatcher struct {
	mu    sync.Mutex
	tasks []func(ctx context.Context) error
	Names []string
}

func (d *Dispatcher) Go(name string, _ int64, fn func(ctx context.Context) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, fn)
	d.Names = append(d.Names, name)
}

func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

// Run executes queued tasks, ignoring their errors like the real runner.
func (d *Dispatcher) Run() {
	d.mu.Lock()
	tasks := d.tasks
	d.tasks = nil
	d.mu.Unlock()
	for _, fn := range tasks {
		_ = fn(context.Background())
	}
}
