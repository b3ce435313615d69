package payment

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-piano-orders/internal/postgres"
)

type EventRepo struct{ DB postgres.DB }

// Record is idempotent per reference code.
func (r *EventRepo) Record(ctx context.Context, ev Event, orderID int64, outcome Outcome) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	var ref, oid any
	if ev.ReferenceCode != "" {
		ref = ev.ReferenceCode
	}
	if orderID > 0 {
		oid = orderID
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO webhook_events (reference_code, order_id, outcome, amount, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (reference_code) DO NOTHING`, ref, oid, string(outcome), ev.Amount, payload)
	return err
}
