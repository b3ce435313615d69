package orders

import (
	"errors"
	"github.com/ariefcatur/go-piano-orders/internal/catalog"
	"github.com/shopspring/decimal"
	"math"
	"time"
)

var ErrInvalidRentalWindow = errors.New("rental end must be at least one day after start")

// Harga beli fallback kalau piano tidak punya sale price.
const buyFallbackDays = 100

var (
	longRentalRate  = decimal.New(85, -2) // >= 8 days
	shortRentalRate = decimal.New(90, -2) // 3..7 days
)

// RentalDays counts started days between start and end.
func RentalDays(start, end time.Time) (int, error) {
	if !end.After(start) {
		return 0, ErrInvalidRentalWindow
	}
	return int(math.Ceil(end.Sub(start).Hours() / 24)), nil
}

// RentalPrice applies the tiered discount to pricePerDay × days and rounds half up.
func RentalPrice(pricePerDay int64, days int) int64 {
	base := decimal.NewFromInt(pricePerDay).Mul(decimal.NewFromInt(int64(days)))
	switch {
	case days >= 8:
		base = base.Mul(longRentalRate)
	case days >= 3:
		base = base.Mul(shortRentalRate)
	}
	return base.Round(0).IntPart()
}

func BuyPrice(p catalog.Piano) int64 {
	if p.SalePrice > 0 {
		return p.SalePrice
	}
	return p.PricePerDay * buyFallbackDays
}
