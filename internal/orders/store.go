package orders

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrNotPending              = errors.New("order is no longer pending")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

// Store persists orders. Every status change is a compare-and-set from
// pending; the bool result reports whether this call won the transition.
type Store interface {
	// Insert returns ErrDuplicateIdempotencyKey when (buyer, key) exists.
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (Order, error)
	FindByIdempotencyKey(ctx context.Context, buyerID, key string) (Order, error)

	Cancel(ctx context.Context, buyerID string, id int64, note string) (bool, error)
	Decide(ctx context.Context, id int64, to Status, adminID, note string, at time.Time) (bool, error)
	MarkPaid(ctx context.Context, id int64, transactionCode string, paidAt time.Time, note string) (bool, error)
	MarkPaymentFailed(ctx context.Context, id int64, transactionCode, note string) (bool, error)
	// AppendNote only touches admin_notes and works in any status.
	AppendNote(ctx context.Context, id int64, note string) error

	// ExpireOverdue cancels pending QR orders whose payment window closed before now.
	ExpireOverdue(ctx context.Context, now time.Time, note string) ([]Order, error)
}
