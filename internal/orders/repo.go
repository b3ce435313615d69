package orders

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-piano-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"time"
)

type Repo struct{ DB postgres.DB }

const orderColumns = `id, buyer_id, piano_id, course_id, type, total_price, rental_start, rental_end,
	rental_days, status, payment_method, payment_expired_at, COALESCE(transaction_code, ''), paid_at,
	COALESCE(approved_by, ''), approved_at, admin_notes, referral_code, COALESCE(idempotency_key, ''),
	created_at, updated_at`

// appendNote builds "admin_notes = old \n new" without a leading blank line.
const appendNote = `concat_ws(E'\n', NULLIF(admin_notes, ''), NULLIF($2::text, ''))`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var typ, status, method string
	err := row.Scan(&o.ID, &o.BuyerID, &o.PianoID, &o.CourseID, &typ, &o.TotalPrice, &o.RentalStart, &o.RentalEnd,
		&o.RentalDays, &status, &method, &o.PaymentExpiredAt, &o.TransactionCode, &o.PaidAt,
		&o.ApprovedBy, &o.ApprovedAt, &o.AdminNotes, &o.ReferralCode, &o.IdempotencyKey,
		&o.CreatedAt, &o.UpdatedAt)
	o.Type, o.Status, o.PaymentMethod = Type(typ), Status(status), PaymentMethod(method)
	return o, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *Repo) Insert(ctx context.Context, o *Order) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders (buyer_id, piano_id, course_id, type, total_price, rental_start, rental_end,
			rental_days, status, payment_method, payment_expired_at, referral_code, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`,
		o.BuyerID, o.PianoID, o.CourseID, string(o.Type), o.TotalPrice, o.RentalStart, o.RentalEnd,
		o.RentalDays, string(o.PaymentMethod), o.PaymentExpiredAt, o.ReferralCode, nullIfEmpty(o.IdempotencyKey)).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return err
	}
	o.Status = StatusPending
	return nil
}

func (r *Repo) Get(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

func (r *Repo) FindByIdempotencyKey(ctx context.Context, buyerID, key string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 AND idempotency_key = $2`, buyerID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

func (r *Repo) Cancel(ctx context.Context, buyerID string, id int64, note string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = 'cancelled', admin_notes = `+appendNote+`, updated_at = now()
		WHERE id = $1 AND buyer_id = $3 AND status = 'pending'`, id, note, buyerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repo) Decide(ctx context.Context, id int64, to Status, adminID, note string, at time.Time) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = $3, approved_by = $4, approved_at = $5,
			admin_notes = `+appendNote+`, updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id, note, string(to), adminID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repo) MarkPaid(ctx context.Context, id int64, transactionCode string, paidAt time.Time, note string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = 'approved', transaction_code = $3, paid_at = $4, approved_at = $4,
			admin_notes = `+appendNote+`, updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id, note, nullIfEmpty(transactionCode), paidAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repo) MarkPaymentFailed(ctx context.Context, id int64, transactionCode, note string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = 'payment_failed', transaction_code = $3,
			admin_notes = `+appendNote+`, updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id, note, nullIfEmpty(transactionCode))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repo) AppendNote(ctx context.Context, id int64, note string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE orders SET admin_notes = `+appendNote+`, updated_at = now() WHERE id = $1`, id, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repo) ExpireOverdue(ctx context.Context, now time.Time, note string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		UPDATE orders SET status = 'cancelled', admin_notes = `+appendNote+`, updated_at = now()
		WHERE status = 'pending' AND payment_method = 'QR'
			AND payment_expired_at IS NOT NULL AND payment_expired_at < $1
		RETURNING `+orderColumns, now, note)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
