package pricing

import "github.com/shopspring/decimal"

// VatRate is the value-added tax rate applied on top of the discounted basket total.
var VatRate = decimal.RequireFromString("0.20")

var one = decimal.NewFromInt(1)

// Line describes a basket item for pricing calculation.
type Line struct {
	Price              decimal.Decimal
	Quantity           int
	IsDiscounted       bool
	DiscountPercentage decimal.Decimal
}

// Summary aggregates computed basket figures.
type Summary struct {
	Subtotal        decimal.Decimal
	DiscountAmount  decimal.Decimal
	TotalWithoutVat decimal.Decimal
	Vat             decimal.Decimal
	TotalWithVat    decimal.Decimal
}

// Round rounds a monetary amount to two decimal places, half away from zero.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

func percent(pct decimal.Decimal) decimal.Decimal {
	return pct.Shift(-2)
}

func base(line Line) decimal.Decimal {
	return line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// ItemTotal returns the line amount after any item-level discount.
func ItemTotal(line Line) decimal.Decimal {
	amount := base(line)
	if line.IsDiscounted {
		amount = amount.Mul(one.Sub(percent(line.DiscountPercentage)))
	}
	return Round(amount)
}

// ItemDiscount returns the amount taken off a discounted line. Non-discounted lines yield zero.
func ItemDiscount(line Line) decimal.Decimal {
	if !line.IsDiscounted {
		return decimal.Zero
	}
	return Round(base(line).Mul(percent(line.DiscountPercentage)))
}

// DiscountCodeApplies reports whether a basket-level code affects the line.
// Items already carrying their own discount are excluded.
func DiscountCodeApplies(line Line) bool {
	return !line.IsDiscounted
}

// Subtotal sums item totals.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(ItemTotal(line))
	}
	return Round(sum)
}

// DiscountAmount applies the basket percentage to the eligible (non-discounted) lines.
func DiscountAmount(lines []Line, pct decimal.Decimal) decimal.Decimal {
	eligible := decimal.Zero
	for _, line := range lines {
		if DiscountCodeApplies(line) {
			eligible = eligible.Add(ItemTotal(line))
		}
	}
	return Round(eligible.Mul(percent(pct)))
}

// TotalWithoutVat is the subtotal minus the basket discount.
func TotalWithoutVat(lines []Line, pct decimal.Decimal) decimal.Decimal {
	return Round(Subtotal(lines).Sub(DiscountAmount(lines, pct)))
}

// TotalWithVat adds VAT to the discounted total.
func TotalWithVat(lines []Line, pct decimal.Decimal) decimal.Decimal {
	return AddVat(TotalWithoutVat(lines, pct))
}

// Vat returns the tax due on amount.
func Vat(amount decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(VatRate))
}

// AddVat returns amount including VAT.
func AddVat(amount decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(one.Add(VatRate)))
}

// Compute calculates every basket figure in one pass over the same rounded intermediates.
func Compute(lines []Line, pct decimal.Decimal) Summary {
	subtotal := Subtotal(lines)
	discount := DiscountAmount(lines, pct)
	net := Round(subtotal.Sub(discount))
	gross := AddVat(net)
	return Summary{
		Subtotal:        subtotal,
		DiscountAmount:  discount,
		TotalWithoutVat: net,
		Vat:             gross.Sub(net),
		TotalWithVat:    gross,
	}
}
