package wallet

import "time"

type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

type Wallet struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Available int64     `json:"available_balance"`
	Locked    int64     `json:"locked_balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w Wallet) Total() int64 { return w.Available + w.Locked }

// Entry is one immutable ledger row.
type Entry struct {
	ID            int64     `json:"id"`
	WalletID      int64     `json:"wallet_id"`
	Direction     Direction `json:"direction"`
	Amount        int64     `json:"amount"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   string    `json:"reference_id"`
	Note          string    `json:"note"`
	CreatedAt     time.Time `json:"created_at"`
}

// Signed is the entry's contribution to the wallet total.
func (e Entry) Signed() int64 {
	if e.Direction == DirectionOut {
		return -e.Amount
	}
	return e.Amount
}

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

type BankInfo struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"bank_account"`
	AccountHolder string `json:"account_holder"`
}

type Withdrawal struct {
	ID         int64            `json:"id"`
	UserID     string           `json:"user_id"`
	Amount     int64            `json:"amount"`
	Bank       BankInfo         `json:"bank_info"`
	Status     WithdrawalStatus `json:"status"`
	ResolvedBy string           `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
	AdminNote  string           `json:"admin_note,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Reference types written by this service.
const (
	RefOrder              = "order"
	RefOrderTeacherShare  = "order_teacher_share"
	RefOrderPlatformShare = "order_platform_share"
	RefWithdrawal         = "withdrawal"
)
