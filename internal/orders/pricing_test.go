package orders

import (
	"github.com/ariefcatur/go-piano-orders/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestRentalPriceTiers(t *testing.T) {
	const perDay = 200_000
	cases := []struct {
		days int
		want int64
	}{
		{1, 200_000},
		{2, 400_000},     // no discount
		{3, 540_000},     // 10% off 600k
		{5, 900_000},     // 10% off 1M
		{7, 1_260_000},   // 10% off 1.4M
		{8, 1_360_000},   // 15% off 1.6M
		{10, 1_700_000},  // 15% off 2M
		{30, 5_100_000},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, RentalPrice(perDay, c.days), "days=%d", c.days)
	}
}

func TestRentalPriceRoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(14), RentalPrice(5, 3))  // 13.5
	assert.Equal(t, int64(8), RentalPrice(3, 3))   // 8.1
	assert.Equal(t, int64(14), RentalPrice(1, 16)) // 13.6
	assert.Equal(t, int64(7), RentalPrice(1, 8))   // 6.8
}

func TestRentalPriceMonotonic(t *testing.T) {
	for _, perDay := range []int64{1, 7, 99_999, 200_000} {
		prev := int64(0)
		for d := 1; d <= 60; d++ {
			p := RentalPrice(perDay, d)
			assert.GreaterOrEqual(t, p, prev, "perDay=%d days=%d", perDay, d)
			prev = p
		}
	}
}

func TestRentalDays(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	d, err := RentalDays(start, start.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, d)

	d, err = RentalDays(start, start.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	d, err = RentalDays(start, start.Add(time.Nanosecond))
	require.NoError(t, err)
	assert.Equal(t, 1, d)

	_, err = RentalDays(start, start)
	assert.ErrorIs(t, err, ErrInvalidRentalWindow)
	_, err = RentalDays(start, start.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidRentalWindow)
}

func TestBuyPrice(t *testing.T) {
	assert.Equal(t, int64(30_000_000), BuyPrice(catalog.Piano{PricePerDay: 200_000, SalePrice: 30_000_000}))
	assert.Equal(t, int64(20_000_000), BuyPrice(catalog.Piano{PricePerDay: 200_000}))
}

func TestParsePaymentCode(t *testing.T) {
	cases := map[string]int64{
		"DH123":                          123,
		"chuyen tien dh45 cam on":        45,
		"MBVCB.123.DH9001.CT tu 0123":    9001,
		"thanh toan DH12 DH13":           12,
		"DH0 DH12":                       12,
		"ref DH99999999999999999999 dh7": 7,
	}
	for in, want := range cases {
		got, ok := ParsePaymentCode(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "thanh toan don hang", "DH", "DH0", "D H12"} {
		_, ok := ParsePaymentCode(in)
		assert.False(t, ok, in)
	}
	assert.Equal(t, "DH77", PaymentCode(77))
}

func TestInstruction(t *testing.T) {
	exp := time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)
	b := BankAccount{BankName: "MBBank", AccountNumber: "0001", AccountHolder: "PIANO SHOP", QRBaseURL: "https://qr.example/img"}
	pi := b.Instruction(Order{ID: 42, TotalPrice: 900_000, PaymentExpiredAt: &exp})

	assert.Equal(t, int64(900_000), pi.Amount)
	assert.Equal(t, "DH42", pi.Description)
	assert.Equal(t, "0001", pi.AccountNumber)
	assert.Equal(t, "https://qr.example/img?acc=0001&amount=900000&bank=MBBank&des=DH42", pi.QRURL)
	assert.Equal(t, &exp, pi.ExpiresAt)
}

func TestCanTransition(t *testing.T) {
	for _, to := range []Status{StatusApproved, StatusRejected, StatusCancelled, StatusPaymentFailed} {
		assert.True(t, CanTransition(StatusPending, to), to)
		assert.False(t, CanTransition(to, StatusPending), to)
		assert.True(t, to.Final())
	}
	assert.False(t, CanTransition(StatusApproved, StatusCancelled))
	assert.False(t, StatusPending.Final())
	assert.False(t, Status("shipped").Valid())
}

func TestParsePaymentMethod(t *testing.T) {
	m, ok := ParsePaymentMethod(" qr ")
	assert.True(t, ok)
	assert.Equal(t, PaymentQR, m)
	_, ok = ParsePaymentMethod("CARD")
	assert.False(t, ok)
}
