package orders

import (
	kafkax "github.com/ariefcatur/go-piano-orders/internal/kafka"
	"strconv"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderApproved      = "OrderApproved"
	EventOrderRejected      = "OrderRejected"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderPaymentFailed = "OrderPaymentFailed"
)

type OrderEventPayload struct {
	OrderID       int64         `json:"order_id"`
	BuyerID       string        `json:"buyer_id"`
	Type          Type          `json:"type"`
	Status        Status        `json:"status"`
	TotalPrice    int64         `json:"total_price"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Reason        string        `json:"reason,omitempty"`
}

// Events publishes order lifecycle envelopes. A nil *Events is a no-op.
type Events struct {
	Publisher kafkax.Publisher
	Service   string
}

func (e *Events) emit(topic, eventType string, o Order, reason string) {
	if e == nil || e.Publisher == nil {
		return
	}
	env := kafkax.NewEnvelope(eventType, e.Service, strconv.FormatInt(o.ID, 10), OrderEventPayload{
		OrderID:       o.ID,
		BuyerID:       o.BuyerID,
		Type:          o.Type,
		Status:        o.Status,
		TotalPrice:    o.TotalPrice,
		PaymentMethod: o.PaymentMethod,
		Reason:        reason,
	})
	kafkax.PublishEnvelope(e.Publisher, topic, PartitionKey(o.ID), env)
}

func (e *Events) Created(o Order) { e.emit(TopicOrderCreated, EventOrderCreated, o, "") }

func (e *Events) Approved(o Order, reason string) {
	e.emit(TopicOrderApproved, EventOrderApproved, o, reason)
}

func (e *Events) Rejected(o Order, reason string) {
	e.emit(TopicOrderRejected, EventOrderRejected, o, reason)
}

func (e *Events) Cancelled(o Order, reason string) {
	e.emit(TopicOrderCancelled, EventOrderCancelled, o, reason)
}

func (e *Events) PaymentFailed(o Order, reason string) {
	e.emit(TopicOrderPaymentFailed, EventOrderPaymentFailed, o, reason)
}
