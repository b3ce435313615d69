package orders

import (
	"strings"
	"time"
)

type Type string

const (
	TypeBuy    Type = "buy"
	TypeRent   Type = "rent"
	TypeCourse Type = "course"
)

type PaymentMethod string

const (
	PaymentCOD PaymentMethod = "COD"
	PaymentQR  PaymentMethod = "QR"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToUpper(strings.TrimSpace(s))) {
	case PaymentCOD:
		return PaymentCOD, true
	case PaymentQR:
		return PaymentQR, true
	}
	return "", false
}

type Order struct {
	ID               int64         `json:"id"`
	BuyerID          string        `json:"buyer_id"`
	PianoID          *int64        `json:"piano_id,omitempty"`
	CourseID         *int64        `json:"course_id,omitempty"`
	Type             Type          `json:"type"`
	TotalPrice       int64         `json:"total_price"`
	RentalStart      *time.Time    `json:"rental_start,omitempty"`
	RentalEnd        *time.Time    `json:"rental_end,omitempty"`
	RentalDays       int           `json:"rental_days,omitempty"`
	Status           Status        `json:"status"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	PaymentExpiredAt *time.Time    `json:"payment_expired_at,omitempty"`
	TransactionCode  string        `json:"transaction_code,omitempty"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	ApprovedBy       string        `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time    `json:"approved_at,omitempty"`
	AdminNotes       string        `json:"admin_notes,omitempty"`
	ReferralCode     string        `json:"referral_code,omitempty"`
	IdempotencyKey   string        `json:"-"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// PaymentCode is what the payer writes in the transfer description.
func (o Order) PaymentCode() string { return PaymentCode(o.ID) }
