package notify

import (
	"context"
	kafkax "github.com/ariefcatur/go-piano-orders/internal/kafka"
	"strings"
)

const (
	TopicEmailRequested = "notification.email"
	EventEmailRequested = "EmailRequested"
)

type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	OrderID int64  `json:"order_id,omitempty"`
}

type Result struct {
	Success     bool   `json:"success"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

func failed(err error) Result { return Result{ErrorDetail: err.Error()} }

type Mailer interface {
	Send(ctx context.Context, e Email) Result
}

// KafkaMailer hands emails to the mailer service through Kafka. Success
// means queued, not delivered.
type KafkaMailer struct {
	Publisher kafkax.Publisher
	Service   string
}

func (m *KafkaMailer) Send(_ context.Context, e Email) Result {
	if strings.TrimSpace(e.To) == "" {
		return Result{ErrorDetail: "missing recipient"}
	}
	env := kafkax.NewEnvelope(EventEmailRequested, m.Service, e.To, e)
	kafkax.PublishEnvelope(m.Publisher, TopicEmailRequested, []byte(e.To), env)
	return Result{Success: true}
}
