// Package payment reconciles bank transfer webhooks against pending orders.
package payment

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-piano-orders/internal/notify"
	"github.com/ariefcatur/go-piano-orders/internal/orders"
	"github.com/ariefcatur/go-piano-orders/internal/profiles"
	"github.com/ariefcatur/go-piano-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"strings"
	"time"
)

// Event is the inbound transfer notification.
type Event struct {
	Direction     string `json:"direction"`
	Content       string `json:"content"`
	Amount        int64  `json:"amount"`
	ReferenceCode string `json:"referenceCode"`
	AccountNumber string `json:"accountNumber"`
}

type Outcome string

const (
	OutcomeIgnoredDirection Outcome = "ignored_direction"
	OutcomeForeignAccount   Outcome = "foreign_account"
	OutcomeUnmatched        Outcome = "unmatched"
	OutcomeUnknownOrder     Outcome = "unknown_order"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeMismatched       Outcome = "mismatched"
	OutcomeApproved         Outcome = "approved"
)

type Directory interface {
	Get(ctx context.Context, id string) (profiles.Profile, error)
	Admins(ctx context.Context) ([]profiles.Profile, error)
}

// EventLog keeps an audit row per classified event.
type EventLog interface {
	Record(ctx context.Context, ev Event, orderID int64, outcome Outcome) error
}

type Reconciler struct {
	Orders    orders.Store
	Effects   orders.ApprovalEffects
	Tasks     orders.Dispatcher
	Mailer    notify.Mailer
	Directory Directory
	Events    *orders.Events
	Log       EventLog      // optional
	Redis     *redis.Client // optional fast-path dedup

	ReceivingAccount string
	Now              func() time.Time
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Handle classifies ev and applies at most one order transition. Every
// business outcome returns a nil error; only storage failures before the
// event is classified do not.
func (r *Reconciler) Handle(ctx context.Context, ev Event) (Outcome, error) {
	log := zap.L().With(zap.String("reference_code", ev.ReferenceCode), zap.Int64("amount", ev.Amount))

	if !strings.EqualFold(strings.TrimSpace(ev.Direction), "in") {
		log.Debug("webhook ignored", zap.String("direction", ev.Direction))
		return OutcomeIgnoredDirection, nil
	}
	if r.ReceivingAccount != "" && strings.TrimSpace(ev.AccountNumber) != r.ReceivingAccount {
		log.Warn("webhook for another account", zap.String("account", ev.AccountNumber))
		return r.classified(ctx, ev, 0, OutcomeForeignAccount), nil
	}

	if r.seen(ctx, ev) {
		log.Info("webhook replay absorbed")
		return OutcomeDuplicate, nil
	}

	orderID, ok := orders.ParsePaymentCode(ev.Content)
	if !ok {
		log.Info("webhook without order code", zap.String("content", ev.Content))
		return r.classified(ctx, ev, 0, OutcomeUnmatched), nil
	}
	log = log.With(zap.Int64("order_id", orderID))

	o, err := r.Orders.Get(ctx, orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		log.Info("webhook for unknown order")
		return r.classified(ctx, ev, orderID, OutcomeUnknownOrder), nil
	}
	if err != nil {
		return "", fmt.Errorf("load order %d: %w", orderID, err)
	}

	if o.Status != orders.StatusPending {
		log.Info("webhook for settled order", zap.String("status", string(o.Status)))
		return r.classified(ctx, ev, orderID, OutcomeDuplicate), nil
	}

	if ev.Amount < o.TotalPrice {
		note := fmt.Sprintf("payment mismatch: expected %d, received %d (ref %s)", o.TotalPrice, ev.Amount, ev.ReferenceCode)
		won, err := r.Orders.MarkPaymentFailed(ctx, orderID, ev.ReferenceCode, note)
		if err != nil {
			return "", fmt.Errorf("mark payment failed %d: %w", orderID, err)
		}
		if !won {
			return r.classified(ctx, ev, orderID, OutcomeDuplicate), nil
		}
		log.Warn("order payment failed", zap.Int64("expected", o.TotalPrice))
		o.Status, o.TransactionCode = orders.StatusPaymentFailed, ev.ReferenceCode
		orders.InvalidateStatus(ctx, r.Redis, orderID)
		r.Events.PaymentFailed(o, note)
		return r.classified(ctx, ev, orderID, OutcomeMismatched), nil
	}

	paidAt := r.now()
	note := ""
	if excess := ev.Amount - o.TotalPrice; excess > 0 {
		note = fmt.Sprintf("overpaid by %d (ref %s), refund manually if requested", excess, ev.ReferenceCode)
	}
	won, err := r.Orders.MarkPaid(ctx, orderID, ev.ReferenceCode, paidAt, note)
	if err != nil {
		return "", fmt.Errorf("mark paid %d: %w", orderID, err)
	}
	if !won {
		log.Info("lost approval race")
		return r.classified(ctx, ev, orderID, OutcomeDuplicate), nil
	}

	o.Status, o.TransactionCode, o.PaidAt, o.ApprovedAt = orders.StatusApproved, ev.ReferenceCode, &paidAt, &paidAt
	log.Info("order paid by bank transfer")
	orders.InvalidateStatus(ctx, r.Redis, orderID)
	r.Events.Approved(o, "bank_transfer")
	orders.DispatchApproval(r.Tasks, r.Effects, o)
	r.notifyPaid(o, ev)

	return r.classified(ctx, ev, orderID, OutcomeApproved), nil
}

func (r *Reconciler) seen(ctx context.Context, ev Event) bool {
	if r.Redis == nil || ev.ReferenceCode == "" {
		return false
	}
	ok, err := redisx.Exists(ctx, r.Redis, fmt.Sprintf(redisx.KeyWebhookRef, ev.ReferenceCode))
	return err == nil && ok
}

// classified marks the reference as handled and writes the audit row. Both
// are best effort: the order table stays the source of truth.
func (r *Reconciler) classified(ctx context.Context, ev Event, orderID int64, out Outcome) Outcome {
	if r.Redis != nil && ev.ReferenceCode != "" {
		if _, err := redisx.Mark(ctx, r.Redis, fmt.Sprintf(redisx.KeyWebhookRef, ev.ReferenceCode), redisx.TTLWebhookRef); err != nil {
			zap.L().Warn("mark webhook reference", zap.String("reference_code", ev.ReferenceCode), zap.Error(err))
		}
	}
	if r.Log != nil {
		if err := r.Log.Record(ctx, ev, orderID, out); err != nil {
			zap.L().Warn("record webhook event", zap.String("reference_code", ev.ReferenceCode), zap.Error(err))
		}
	}
	return out
}

func (r *Reconciler) notifyPaid(o orders.Order, ev Event) {
	if r.Mailer == nil || r.Directory == nil {
		return
	}
	r.Tasks.Go("payment-emails", o.ID, func(ctx context.Context) error {
		var errs []error
		if buyer, err := r.Directory.Get(ctx, o.BuyerID); err != nil {
			errs = append(errs, fmt.Errorf("buyer contact: %w", err))
		} else if res := r.Mailer.Send(ctx, buyerEmail(buyer, o, ev)); !res.Success {
			errs = append(errs, fmt.Errorf("buyer email: %s", res.ErrorDetail))
		}

		admins, err := r.Directory.Admins(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("admin contacts: %w", err))
		}
		for _, a := range admins {
			if res := r.Mailer.Send(ctx, adminEmail(a, o, ev)); !res.Success {
				errs = append(errs, fmt.Errorf("admin email %s: %s", a.ID, res.ErrorDetail))
			}
		}
		return errors.Join(errs...)
	})
}
