package money

import "github.com/shopspring/decimal"

var (
	half    = decimal.NewFromFloat(0.5)
	hundred = decimal.NewFromInt(100)
)

// Round rounds half up (towards +Inf), matching the rounding the storefront
// has always shown to customers: 2.5 -> 3, -2.5 -> -2.
func Round(d decimal.Decimal) int64 {
	return d.Add(half).Floor().IntPart()
}

// DiscountFactor returns 1 - pct/100.
func DiscountFactor(pct float64) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(decimal.NewFromFloat(pct).Div(hundred))
}

// Discounted is the unit price after discount, rounded and never negative.
func Discounted(price, pct float64) int64 {
	if price == 0 || pct <= 0 {
		return Round(decimal.NewFromFloat(price))
	}
	p := decimal.NewFromFloat(price)
	v := Round(p.Mul(DiscountFactor(pct)))
	if v < 0 {
		return 0
	}
	return v
}

// Sum accumulates line amounts exactly; rounding happens once on the total.
type Sum struct {
	raw        decimal.Decimal
	discounted decimal.Decimal
}

func (s *Sum) Add(unitPrice, discountPct float64, qty int) {
	q := decimal.NewFromInt(int64(qty))
	p := decimal.NewFromFloat(unitPrice)
	s.raw = s.raw.Add(p.Mul(q))
	s.discounted = s.discounted.Add(p.Mul(DiscountFactor(discountPct)).Mul(q))
}

func (s Sum) Total() int64 {
	return Round(s.raw)
}

func (s Sum) DiscountedTotal() int64 {
	return Round(s.discounted)
}
