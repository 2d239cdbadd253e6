// Package money holds the totals arithmetic for carts and orders.
// All amounts are integer paise so sums and line products are exact;
// the gateway's create-order API takes integer minor units anyway.
package money

// Paise is an amount in integer minor currency units.
type Paise int64

const (
	// FlatShippingFee is charged once per order regardless of seller count.
	FlatShippingFee Paise = 4900

	// TaxPermille is the proportional tax applied to the subtotal,
	// in parts per thousand (20 = 2%).
	TaxPermille Paise = 20

	Currency = "INR"
)

// Totals is the full price breakdown shown at review time and frozen onto
// the resulting order.
type Totals struct {
	Subtotal   Paise `json:"subtotal"`
	Shipping   Paise `json:"shipping"`
	Tax        Paise `json:"tax"`
	GrandTotal Paise `json:"grand_total"`
}

// LineTotal is unitPrice × quantity. Non-positive quantities and prices
// count as zero so a malformed line degrades instead of corrupting the sum.
func LineTotal(unitPrice Paise, quantity int) Paise {
	if quantity <= 0 || unitPrice <= 0 {
		return 0
	}
	return unitPrice * Paise(quantity)
}

// Compute derives the totals for a given subtotal. Deterministic: the same
// subtotal always yields an identical Totals value. An empty cart owes
// nothing, including shipping.
func Compute(subtotal Paise) Totals {
	if subtotal <= 0 {
		return Totals{}
	}
	tax := subtotal * TaxPermille / 1000
	return Totals{
		Subtotal:   subtotal,
		Shipping:   FlatShippingFee,
		Tax:        tax,
		GrandTotal: subtotal + FlatShippingFee + tax,
	}
}
