package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineTotal(t *testing.T) {
	assert.Equal(t, Paise(200), LineTotal(100, 2))
	assert.Equal(t, Paise(0), LineTotal(100, 0))
	assert.Equal(t, Paise(0), LineTotal(100, -3))
	assert.Equal(t, Paise(0), LineTotal(-100, 2))
}

func TestCompute(t *testing.T) {
	totals := Compute(50000)

	assert.Equal(t, Paise(50000), totals.Subtotal)
	assert.Equal(t, FlatShippingFee, totals.Shipping)
	assert.Equal(t, Paise(1000), totals.Tax)
	assert.Equal(t, Paise(50000+4900+1000), totals.GrandTotal)
}

func TestCompute_EmptyCartOwesNothing(t *testing.T) {
	assert.Equal(t, Totals{}, Compute(0))
	assert.Equal(t, Totals{}, Compute(-1))
}

func TestCompute_Deterministic(t *testing.T) {
	a := Compute(123457)
	b := Compute(123457)
	assert.Equal(t, a, b)
}
