package commission

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-piano-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB postgres.DB }

func (r *Repo) ActiveAffiliateByCode(ctx context.Context, code string) (Affiliate, error) {
	var a Affiliate
	var rate string
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, referral_code, commission_rate::text, active
		FROM affiliates WHERE referral_code = $1 AND active`, code).
		Scan(&a.ID, &a.UserID, &a.ReferralCode, &rate, &a.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Affiliate{}, ErrAffiliateNotFound
	}
	if err != nil {
		return Affiliate{}, err
	}
	if a.Rate, err = decimal.NewFromString(rate); err != nil {
		return Affiliate{}, fmt.Errorf("affiliate %d rate %q: %w", a.ID, rate, err)
	}
	return a, nil
}

// Insert leans on UNIQUE (reference_type, reference_id) for at-most-once.
func (r *Repo) Insert(ctx context.Context, c *Commission) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO commissions (affiliate_id, amount, reference_type, reference_id, status, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		c.AffiliateID, c.Amount, c.ReferenceType, c.ReferenceID, string(c.Status), c.Note).
		Scan(&c.ID, &c.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return ErrDuplicateCommission
	}
	return err
}
