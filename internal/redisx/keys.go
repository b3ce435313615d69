package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{buyer_id}:{key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Cache status order: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%d"

	// Dedup event processing: dedup:{service}:{id} (id = event_id atau reference code)
	KeyDedup = "dedup:%s:%s"

	// Webhook bank yang sudah diklasifikasi: webhook:ref:{reference_code}
	KeyWebhookRef = "webhook:ref:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLWebhookRef  = 48 * time.Hour
)
