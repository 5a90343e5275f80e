package services

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ComputeTotals returns tax and total for a subtotal, a tax rate in percent and a flat discount
func ComputeTotals(subtotal, taxRate, discount decimal.Decimal) (tax, total decimal.Decimal) {
	tax = subtotal.Mul(taxRate).Div(hundred).Round(2)
	total = subtotal.Add(tax).Sub(discount)
	return tax, total
}

// ItemLine is the priced part of a quotation or invoice line
type ItemLine struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// LineSubtotal is quantity x unit price rounded to cents
func (l ItemLine) LineSubtotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice).Round(2)
}

func validateLine(prefix string, l ItemLine, fields map[string]string) {
	if !l.Quantity.IsPositive() {
		fields[prefix+"quantity"] = "must be greater than 0"
	}
	if l.UnitPrice.IsNegative() {
		fields[prefix+"unit_price"] = "must not be negative"
	}
}
