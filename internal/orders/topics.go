package orders

import "strconv"

const (
	TopicOrderCreated       = "order.created"
	TopicOrderApproved      = "order.approved"
	TopicOrderRejected      = "order.rejected"
	TopicOrderCancelled     = "order.cancelled"
	TopicOrderPaymentFailed = "order.payment_failed"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
