package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"orvia_back_end/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
)

const stripeTestWebhookSecret = "whsec_test"

// signStripe produit l'en-tête Stripe-Signature attendu par le SDK :
// HMAC-SHA256 de "<timestamp>.<payload>".
func signStripe(payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(stripeTestWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newTestStripe() *StripeAdapter {
	return NewStripe("sk_test_key", stripeTestWebhookSecret)
}

func stripeIntentEvent(eventType string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_1","api_version":%q,"type":%q,"data":{"object":{"id":"pi_123","amount":2000,"metadata":{"payment_id":"pay_abc","order_number":"ORD-TEST0001"}}}}`,
		stripe.APIVersion, eventType,
	))
}

func TestStripeVerifyIntentSucceeded(t *testing.T) {
	a := newTestStripe()

	body := stripeIntentEvent("payment_intent.succeeded")
	ev, err := a.Verify(body, signStripe(body, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, models.ProviderStripe, ev.Provider)
	assert.Equal(t, models.TxCharge, ev.Kind)
	assert.Equal(t, models.PaymentSucceeded, ev.Status)
	assert.Equal(t, "pi_123", ev.ProviderTxID)
	assert.Equal(t, "pi_123", ev.PaymentRef)
	assert.Equal(t, "pay_abc", ev.LocalRef)
	assert.Equal(t, 20.00, ev.Amount)
}

func TestStripeVerifyIntentFailed(t *testing.T) {
	a := newTestStripe()

	body := stripeIntentEvent("payment_intent.payment_failed")
	ev, err := a.Verify(body, signStripe(body, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, models.PaymentFailed, ev.Status)
	assert.Equal(t, models.TxCharge, ev.Kind)
	assert.Equal(t, "pay_abc", ev.LocalRef)
}

func TestStripeVerifyChargeRefunded(t *testing.T) {
	a := newTestStripe()

	body := []byte(fmt.Sprintf(
		`{"id":"evt_2","api_version":%q,"type":"charge.refunded","data":{"object":{"id":"ch_1","amount_refunded":500,"payment_intent":{"id":"pi_123"},"metadata":{"payment_id":"pay_abc"}}}}`,
		stripe.APIVersion,
	))
	ev, err := a.Verify(body, signStripe(body, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, models.TxRefund, ev.Kind)
	assert.Equal(t, models.PaymentSucceeded, ev.Status)
	assert.Equal(t, "ch_1", ev.ProviderTxID)
	assert.Equal(t, "pi_123", ev.PaymentRef)
	assert.Equal(t, "pay_abc", ev.LocalRef)
	assert.Equal(t, 5.00, ev.Amount)
}

func TestStripeVerifyBadSignature(t *testing.T) {
	a := newTestStripe()

	body := stripeIntentEvent("payment_intent.succeeded")
	_, err := a.Verify(body, "t=12345,v1=deadbeef")
	assert.True(t, errors.Is(err, ErrBadSignature))
}

func TestStripeVerifyIgnoredEventType(t *testing.T) {
	a := newTestStripe()

	body := []byte(fmt.Sprintf(
		`{"id":"evt_3","api_version":%q,"type":"customer.created","data":{"object":{"id":"cus_1"}}}`,
		stripe.APIVersion,
	))
	_, err := a.Verify(body, signStripe(body, time.Now()))
	assert.True(t, errors.Is(err, ErrEventIgnored))
}
