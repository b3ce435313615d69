package orders

type Status string

const (
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusCancelled     Status = "cancelled"
	StatusPaymentFailed Status = "payment_failed"
)

// Semua transisi keluar dari pending; status lain final.
var validNext = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved:      true,
		StatusRejected:      true,
		StatusCancelled:     true,
		StatusPaymentFailed: true,
	},
	StatusApproved:      {},
	StatusRejected:      {},
	StatusCancelled:     {},
	StatusPaymentFailed: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Final() bool { return s.Valid() && s != StatusPending }
