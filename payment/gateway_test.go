package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("merchant-secret")

	cb := GatewayCallback{
		GatewayOrderRef: "gw_abc",
		PaymentID:       "pay_123",
	}
	cb.Signature = v.Sign(cb.GatewayOrderRef, cb.PaymentID)

	assert.True(t, v.Verify(cb))
}

func TestVerifier_RejectsTamperedFields(t *testing.T) {
	v := NewVerifier("merchant-secret")
	sig := v.Sign("gw_abc", "pay_123")

	assert.False(t, v.Verify(GatewayCallback{GatewayOrderRef: "gw_abc", PaymentID: "pay_999", Signature: sig}))
	assert.False(t, v.Verify(GatewayCallback{GatewayOrderRef: "gw_xyz", PaymentID: "pay_123", Signature: sig}))
	assert.False(t, v.Verify(GatewayCallback{GatewayOrderRef: "gw_abc", PaymentID: "pay_123", Signature: "deadbeef"}))
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	sig := NewVerifier("other-secret").Sign("gw_abc", "pay_123")
	v := NewVerifier("merchant-secret")

	assert.False(t, v.Verify(GatewayCallback{GatewayOrderRef: "gw_abc", PaymentID: "pay_123", Signature: sig}))
}

func TestVerifier_RejectsEmptyCallback(t *testing.T) {
	v := NewVerifier("merchant-secret")
	assert.False(t, v.Verify(GatewayCallback{}))
}
