// Package commission records affiliate commissions for referred orders.
package commission

import (
	"context"
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"strconv"
	"strings"
	"time"
)

var (
	ErrAffiliateNotFound   = errors.New("affiliate not found")
	ErrDuplicateCommission = errors.New("commission already recorded")
)

const RefOrder = "order"

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Affiliate struct {
	ID           int64
	UserID       string
	ReferralCode string
	Rate         decimal.Decimal
	Active       bool
}

type Commission struct {
	ID            int64     `json:"id"`
	AffiliateID   int64     `json:"affiliate_id"`
	Amount        int64     `json:"amount"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   string    `json:"reference_id"`
	Status        Status    `json:"status"`
	Note          string    `json:"note"`
	CreatedAt     time.Time `json:"created_at"`
}

type Store interface {
	// ActiveAffiliateByCode returns ErrAffiliateNotFound for unknown or inactive codes.
	ActiveAffiliateByCode(ctx context.Context, code string) (Affiliate, error)
	// Insert returns ErrDuplicateCommission when the reference already has one.
	Insert(ctx context.Context, c *Commission) error
}

type Referral struct {
	Code       string
	BuyerID    string
	OrderID    int64
	OrderTotal int64
}

type Engine struct{ Store Store }

// Process records a pending commission for the referral. Skipped referrals
// (unknown code, self-referral, zero amount, already recorded) return nil, nil.
func (e *Engine) Process(ctx context.Context, ref Referral) (*Commission, error) {
	code := strings.TrimSpace(ref.Code)
	if code == "" {
		return nil, nil
	}
	log := zap.L().With(zap.Int64("order_id", ref.OrderID), zap.String("referral_code", code))

	aff, err := e.Store.ActiveAffiliateByCode(ctx, code)
	if errors.Is(err, ErrAffiliateNotFound) {
		log.Debug("referral code has no active affiliate")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup affiliate: %w", err)
	}

	if aff.UserID == ref.BuyerID {
		log.Warn("self-referral blocked", zap.String("user_id", ref.BuyerID))
		return nil, nil
	}

	amount := Amount(ref.OrderTotal, aff.Rate)
	if amount <= 0 {
		return nil, nil
	}

	c := &Commission{
		AffiliateID:   aff.ID,
		Amount:        amount,
		ReferenceType: RefOrder,
		ReferenceID:   strconv.FormatInt(ref.OrderID, 10),
		Status:        StatusPending,
		Note:          fmt.Sprintf("%s%% of order DH%d", aff.Rate.Shift(2).String(), ref.OrderID),
	}
	if err := e.Store.Insert(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCommission) {
			log.Info("commission already recorded")
			return nil, nil
		}
		return nil, fmt.Errorf("insert commission: %w", err)
	}

	log.Info("commission recorded", zap.Int64("affiliate_id", aff.ID), zap.Int64("amount", amount))
	return c, nil
}

// Amount is round-half-up(total × rate).
func Amount(total int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(total).Mul(rate).Round(0).IntPart()
}
