package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shoplite/cartkit/money"
)

// CartLine is a single product entry in the cart. Lines are matched for
// merging by product, seller and the exact variation selection, so the
// same product in two sizes occupies two lines.
type CartLine struct {
	ProductID   string            `json:"product_id"`
	SellerID    string            `json:"seller_id"`
	ProductName string            `json:"product_name"`
	UnitPrice   money.Paise       `json:"unit_price"`
	Quantity    int               `json:"quantity"`
	Variation   map[string]string `json:"variation,omitempty"`
}

// MergeKey identifies lines that should collapse into one when added twice.
func (l CartLine) MergeKey() string {
	if len(l.Variation) == 0 {
		return l.ProductID + "|" + l.SellerID
	}
	axes := make([]string, 0, len(l.Variation))
	for axis := range l.Variation {
		axes = append(axes, axis)
	}
	sort.Strings(axes)
	var b strings.Builder
	b.WriteString(l.ProductID)
	b.WriteString("|")
	b.WriteString(l.SellerID)
	for _, axis := range axes {
		b.WriteString("|")
		b.WriteString(axis)
		b.WriteString("=")
		b.WriteString(l.Variation[axis])
	}
	return b.String()
}

// Total is the line amount. Lines with a non-positive quantity count as zero
// so a malformed cart degrades to a smaller total instead of failing.
func (l CartLine) Total() money.Paise {
	return money.LineTotal(l.UnitPrice, l.Quantity)
}

type Cart struct {
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ItemCount is the sum of quantities across all lines, for the UI badge.
func (c *Cart) ItemCount() int {
	var n int
	for _, l := range c.Lines {
		if l.Quantity > 0 {
			n += l.Quantity
		}
	}
	return n
}

func (c *Cart) Subtotal() money.Paise {
	var sum money.Paise
	for _, l := range c.Lines {
		sum += l.Total()
	}
	return sum
}

// BySeller groups lines per seller, preserving insertion order within each
// seller's group. Iteration order across sellers is up to the caller.
func (c *Cart) BySeller() map[string][]CartLine {
	groups := make(map[string][]CartLine)
	for _, l := range c.Lines {
		groups[l.SellerID] = append(groups[l.SellerID], l)
	}
	return groups
}

// CloneLines returns a deep copy of the cart lines, used to seed checkout
// snapshots that must not alias live cart state.
func (c *Cart) CloneLines() []CartLine {
	if len(c.Lines) == 0 {
		return nil
	}
	out := make([]CartLine, len(c.Lines))
	copy(out, c.Lines)
	for i, l := range c.Lines {
		if l.Variation != nil {
			v := make(map[string]string, len(l.Variation))
			for k, val := range l.Variation {
				v[k] = val
			}
			out[i].Variation = v
		}
	}
	return out
}
