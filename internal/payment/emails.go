package payment

import (
	"fmt"
	"github.com/ariefcatur/go-piano-orders/internal/notify"
	"github.com/ariefcatur/go-piano-orders/internal/orders"
	"github.com/ariefcatur/go-piano-orders/internal/profiles"
)

func buyerEmail(p profiles.Profile, o orders.Order, ev Event) notify.Email {
	name := p.FullName
	if name == "" {
		name = p.Email
	}
	return notify.Email{
		To:      p.Email,
		OrderID: o.ID,
		Subject: fmt.Sprintf("Payment received for order %s", o.PaymentCode()),
		Body: fmt.Sprintf("Hi %s,\n\nWe received %d for order %s (transfer %s). Your order is now approved.\n",
			name, ev.Amount, o.PaymentCode(), ev.ReferenceCode),
	}
}

func adminEmail(p profiles.Profile, o orders.Order, ev Event) notify.Email {
	return notify.Email{
		To:      p.Email,
		OrderID: o.ID,
		Subject: fmt.Sprintf("[paid] %s %s order %s", o.Type, o.PaymentMethod, o.PaymentCode()),
		Body: fmt.Sprintf("Order %s (buyer %s) was paid by bank transfer.\nExpected: %d\nReceived: %d\nReference: %s\n",
			o.PaymentCode(), o.BuyerID, o.TotalPrice, ev.Amount, ev.ReferenceCode),
	}
}
