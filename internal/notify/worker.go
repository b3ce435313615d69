package notify

import (
	"context"
	"errors"
	"fmt"
	kafkax "github.com/ariefcatur/go-piano-orders/internal/kafka"
	"github.com/ariefcatur/go-piano-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Worker delivers EmailRequested events. It is the consumer handler of cmd/mailer.
type Worker struct {
	Mailer      Mailer
	Redis       *redis.Client
	ServiceName string
}

// HandleEmailRequested: dipasang sebagai handler consumer. Returning an
// error makes the consumer retry the email with backoff.
func (w *Worker) HandleEmailRequested(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env kafkax.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		zap.L().Error("drop undecodable email event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil // poison message, retrying won't help
	}
	if env.EventType != EventEmailRequested {
		return nil
	}

	// 2) dedup via Redis (pakai event_id)
	dkey := fmt.Sprintf(redisx.KeyDedup, w.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, w.Redis, dkey); exists {
		return nil
	}

	// 3) decode payload
	e, err := kafkax.UnwrapPayload[Email](env.Payload)
	if err != nil {
		zap.L().Error("drop email event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	// 4) kirim
	res := w.Mailer.Send(ctx, e)
	if !res.Success {
		zap.L().Warn("email delivery failed",
			zap.String("event_id", env.EventID), zap.Int64("order_id", e.OrderID),
			zap.String("to", e.To), zap.String("error", res.ErrorDetail))
		return errors.New(res.ErrorDetail)
	}

	// tandai setelah sukses supaya gagal kirim tetap di-retry
	if err := w.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err(); err != nil {
		zap.L().Warn("set email dedup key", zap.String("event_id", env.EventID), zap.Error(err))
	}
	zap.L().Info("email sent", zap.String("event_id", env.EventID), zap.Int64("order_id", e.OrderID), zap.String("to", e.To))
	return nil
}
