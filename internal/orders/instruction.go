package orders

import (
	"net/url"
	"regexp"
	"strconv"
	"time"
)

const paymentCodePrefix = "DH"

var paymentCodeRe = regexp.MustCompile(`(?i)` + paymentCodePrefix + `(\d+)`)

func PaymentCode(orderID int64) string {
	return paymentCodePrefix + strconv.FormatInt(orderID, 10)
}

// ParsePaymentCode finds the first usable DH<digits> in free text. Banks
// prepend their own tokens, so DH0 or an overflowing run is skipped.
func ParsePaymentCode(s string) (int64, bool) {
	for _, m := range paymentCodeRe.FindAllStringSubmatch(s, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

type BankAccount struct {
	BankName      string
	AccountNumber string
	AccountHolder string
	QRBaseURL     string
}

type PaymentInstruction struct {
	Amount        int64      `json:"amount"`
	BankName      string     `json:"bank_name"`
	AccountNumber string     `json:"account_number"`
	AccountHolder string     `json:"account_holder"`
	Description   string     `json:"description"`
	QRURL         string     `json:"qr_url"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (b BankAccount) Instruction(o Order) PaymentInstruction {
	code := o.PaymentCode()
	q := url.Values{}
	q.Set("acc", b.AccountNumber)
	q.Set("bank", b.BankName)
	q.Set("amount", strconv.FormatInt(o.TotalPrice, 10))
	q.Set("des", code)

	return PaymentInstruction{
		Amount:        o.TotalPrice,
		BankName:      b.BankName,
		AccountNumber: b.AccountNumber,
		AccountHolder: b.AccountHolder,
		Description:   code,
		QRURL:         b.QRBaseURL + "?" + q.Encode(),
		ExpiresAt:     o.PaymentExpiredAt,
	}
}
