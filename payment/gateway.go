package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// GatewayCallback is the signed payload the external gateway posts back
// after the user completes (or abandons) the hosted payment flow.
type GatewayCallback struct {
	GatewayOrderRef string `json:"gateway_order_ref"`
	PaymentID       string `json:"payment_id"`
	Signature       string `json:"signature"`
}

// Verifier checks gateway callbacks before a payment may be treated as
// settled. The signature is HMAC-SHA256 over "orderRef|paymentID" with
// the merchant secret, hex encoded.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(cb GatewayCallback) bool {
	if cb.GatewayOrderRef == "" || cb.PaymentID == "" || cb.Signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(cb.GatewayOrderRef + "|" + cb.PaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(cb.Signature))
}

// Sign produces the signature the gateway would send. Exposed for tests
// and for sandbox shells that simulate the gateway.
func (v *Verifier) Sign(gatewayOrderRef, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderRef + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
