package service

import (
	"context"
	"testing"
	"time"

	"orvia_back_end/internal/models"
	"orvia_back_end/internal/provider"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReconcileFixture(t *testing.T) (*ReconcileService, *fakeStore, *fakeNotifier, *fakeArchiver) {
	t.Helper()
	store := newFakeStore()
	notifier := &fakeNotifier{}
	archiver := &fakeArchiver{}
	svc := NewReconcileService(store.paymentRepo(), store.orderRepo(), notifier, archiver)
	return svc, store, notifier, archiver
}

// seedPayment pose une commande processing et un paiement pending corrélés,
// comme au sortir d'un checkout réussi.
func seedPayment(store *fakeStore, paymentID, providerName, providerRef string, amount float64) gocql.UUID {
	orderID := gocql.TimeUUID()
	now := time.Now()
	store.orders[orderID] = models.Order{
		ID:          orderID,
		OrderNumber: "ORD-TEST0001",
		UserID:      "alice",
		TotalAmount: amount,
		Currency:    "EUR",
		Status:      models.OrderProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	store.payments[paymentID] = models.Payment{
		PaymentID:     paymentID,
		OrderID:       orderID,
		OrderNumber:   "ORD-TEST0001",
		UserID:        "alice",
		Amount:        amount,
		Currency:      "EUR",
		Provider:      providerName,
		ProviderRef:   providerRef,
		Status:        models.PaymentPending,
		CustomerEmail: "alice@example.com",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	store.refIndex[providerName+"|"+providerRef] = paymentID
	return orderID
}

func chargeSucceeded(providerName, txID, ref string, amount float64) *provider.VerifiedEvent {
	return &provider.VerifiedEvent{
		Provider:     providerName,
		EventType:    "payment_intent.succeeded",
		Kind:         models.TxCharge,
		Status:       models.PaymentSucceeded,
		ProviderTxID: txID,
		PaymentRef:   ref,
		Amount:       amount,
		Raw:          []byte(`{"id":"` + txID + `"}`),
	}
}

func TestReconcileChargeSucceeded(t *testing.T) {
	svc, store, notifier, archiver := newReconcileFixture(t)
	ctx := context.Background()

	seedPayment(store, "pay_1", "stripe", "pi_123", 20.00)

	outcome, err := svc.Apply(ctx, chargeSucceeded("stripe", "pi_123", "pi_123", 20.00))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	payment := store.payments["pay_1"]
	assert.Equal(t, models.PaymentSucceeded, payment.Status)
	require.NotNil(t, payment.CompletedAt)

	// Une transaction immuable, le payload archivé
	require.Len(t, store.txs["pay_1"], 1)
	tx := store.txs["pay_1"][0]
	assert.Equal(t, models.TxCharge, tx.Kind)
	assert.Equal(t, "pi_123", tx.ProviderTxID)
	assert.Equal(t, 20.00, tx.Amount)
	assert.NotEmpty(t, tx.RawPayload)
	assert.Len(t, archiver.archived, 1)

	// Confirmation envoyée
	assert.Equal(t, 1, notifier.calls)
}

func TestReconcileDuplicateDelivery(t *testing.T) {
	svc, store, notifier, _ := newReconcileFixture(t)
	ctx := context.Background()

	seedPayment(store, "pay_1", "stripe", "pi_123", 20.00)

	ev := chargeSucceeded("stripe", "pi_123", "pi_123", 20.00)
	outcome, err := svc.Apply(ctx, ev)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	// Relivraison du même événement : no-op total
	outcome, err = svc.Apply(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	assert.Len(t, store.txs["pay_1"], 1)
	assert.Equal(t, models.PaymentSucceeded, store.payments["pay_1"].Status)
	assert.Equal(t, 1, notifier.calls)
}

func TestReconcileUnknownReference(t *testing.T) {
	svc, store, _, _ := newReconcileFixture(t)

	outcome, err := svc.Apply(context.Background(), chargeSucceeded("stripe", "pi_999", "pi_999", 10.00))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknownPayment, outcome)

	// Jamais de Payment créé depuis un événement, juste un log orphelin
	assert.Empty(t, store.payments)
	assert.Empty(t, store.txs)
	require.Len(t, store.logs[orphanLogKey], 1)
	assert.Equal(t, models.LogWarning, store.logs[orphanLogKey][0].Level)
}

func TestReconcileChargeFailed(t *testing.T) {
	svc, store, notifier, _ := newReconcileFixture(t)

	seedPayment(store, "pay_1", "stripe", "pi_123", 20.00)

	outcome, err := svc.Apply(context.Background(), &provider.VerifiedEvent{
		Provider:     "stripe",
		EventType:    "payment_intent.payment_failed",
		Kind:         models.TxCharge,
		Status:       models.PaymentFailed,
		ProviderTxID: "pi_123",
		PaymentRef:   "pi_123",
		Raw:          []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	payment := store.payments["pay_1"]
	assert.Equal(t, models.PaymentFailed, payment.Status)
	assert.Nil(t, payment.CompletedAt)
	assert.Equal(t, 0, notifier.calls)

	require.Len(t, store.txs["pay_1"], 1)
	assert.Equal(t, models.PaymentFailed, store.txs["pay_1"][0].Status)
}

func TestReconcileRefundFlow(t *testing.T) {
	svc, store, _, _ := newReconcileFixture(t)
	ctx := context.Background()

	orderID := seedPayment(store, "pay_1", "stripe", "pi_123", 20.00)

	outcome, err := svc.Apply(ctx, chargeSucceeded("stripe", "pi_123", "pi_123", 20.00))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	outcome, err = svc.Apply(ctx, &provider.VerifiedEvent{
		Provider:     "stripe",
		EventType:    "charge.refunded",
		Kind:         models.TxRefund,
		Status:       models.PaymentSucceeded,
		ProviderTxID: "re_456",
		PaymentRef:   "pi_123",
		Amount:       20.00,
		Raw:          []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	assert.Equal(t, models.PaymentRefunded, store.payments["pay_1"].Status)
	assert.Equal(t, models.OrderRefunded, store.orders[orderID].Status)
	assert.Len(t, store.txs["pay_1"], 2)
}

func TestReconcileRefundBeforeCharge(t *testing.T) {
	svc, store, _, _ := newReconcileFixture(t)

	// Un refund livré avant le succès du charge : transition succeeded→refunded
	// impossible depuis pending, l'événement est écarté
	seedPayment(store, "pay_1", "stripe", "pi_123", 20.00)

	outcome, err := svc.Apply(context.Background(), &provider.VerifiedEvent{
		Provider:     "stripe",
		EventType:    "charge.refunded",
		Kind:         models.TxRefund,
		Status:       models.PaymentSucceeded,
		ProviderTxID: "re_456",
		PaymentRef:   "pi_123",
		Raw:          []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, outcome)

	assert.Equal(t, models.PaymentPending, store.payments["pay_1"].Status)
	assert.Empty(t, store.txs["pay_1"])
}

func TestReconcileFailureAfterSuccessDropped(t *testing.T) {
	svc, store, _, _ := newReconcileFixture(t)
	ctx := context.Background()

	seedPayment(store, "pay_1", "stripe", "pi_123", 20.00)

	_, err := svc.Apply(ctx, chargeSucceeded("stripe", "pi_123", "pi_123", 20.00))
	require.NoError(t, err)

	// Un failed tardif ne doit jamais écraser un succès terminal
	outcome, err := svc.Apply(ctx, &provider.VerifiedEvent{
		Provider:     "stripe",
		EventType:    "payment_intent.payment_failed",
		Kind:         models.TxCharge,
		Status:       models.PaymentFailed,
		ProviderTxID: "pi_123_fail",
		PaymentRef:   "pi_123",
		Raw:          []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, outcome)
	assert.Equal(t, models.PaymentSucceeded, store.payments["pay_1"].Status)
}

func TestReconcileResolvesByLocalPaymentID(t *testing.T) {
	svc, store, _, _ := newReconcileFixture(t)

	// Paiement sans provider_ref (initiation jamais aboutie) : l'événement
	// porte l'identifiant local en référence
	seedPayment(store, "pay_1", "razorpay", "order_ABC", 15.00)
	delete(store.refIndex, "razorpay|order_ABC")

	outcome, err := svc.Apply(context.Background(), chargeSucceeded("razorpay", "pay_rzp1", "pay_1", 15.00))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.PaymentSucceeded, store.payments["pay_1"].Status)
}

func TestReconcileIndexesProviderTxOnSuccess(t *testing.T) {
	svc, store, _, _ := newReconcileFixture(t)
	ctx := context.Background()

	// Razorpay : le charge référence l'order, le refund référencera le payment
	// provider. Le succès doit indexer l'id de transaction pour la corrélation
	seedPayment(store, "pay_1", "razorpay", "order_ABC", 15.00)

	outcome, err := svc.Apply(ctx, chargeSucceeded("razorpay", "pay_rzp1", "order_ABC", 15.00))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, "pay_1", store.refIndex["razorpay|pay_rzp1"])

	outcome, err = svc.Apply(ctx, &provider.VerifiedEvent{
		Provider:     "razorpay",
		EventType:    "refund.processed",
		Kind:         models.TxRefund,
		Status:       models.PaymentSucceeded,
		ProviderTxID: "rfnd_1",
		PaymentRef:   "pay_rzp1",
		Amount:       15.00,
		Raw:          []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.PaymentRefunded, store.payments["pay_1"].Status)
}

func TestReconcileRefundRedeliveredAfterReorder(t *testing.T) {
	svc, store, _, _ := newReconcileFixture(t)
	ctx := context.Background()

	orderID := seedPayment(store, "pay_1", "stripe", "pi_123", 20.00)

	refund := &provider.VerifiedEvent{
		Provider:     "stripe",
		EventType:    "charge.refunded",
		Kind:         models.TxRefund,
		Status:       models.PaymentSucceeded,
		ProviderTxID: "re_456",
		PaymentRef:   "pi_123",
		Amount:       20.00,
		Raw:          []byte(`{}`),
	}

	// Refund livré avant le charge : écarté, mais la clé d'idempotence doit
	// être rendue, sinon la relivraison sera absorbée comme duplicata
	outcome, err := svc.Apply(ctx, refund)
	require.NoError(t, err)
	require.Equal(t, OutcomeDropped, outcome)
	assert.NotContains(t, store.claims, "stripe|re_456")

	_, err = svc.Apply(ctx, chargeSucceeded("stripe", "pi_123", "pi_123", 20.00))
	require.NoError(t, err)
	require.Equal(t, models.PaymentSucceeded, store.payments["pay_1"].Status)

	// Le provider relivre le même refund après le charge : il doit s'appliquer.
	// Un remboursement confirmé par le provider ne doit jamais être perdu
	outcome, err = svc.Apply(ctx, refund)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.PaymentRefunded, store.payments["pay_1"].Status)
	assert.Equal(t, models.OrderRefunded, store.orders[orderID].Status)
	assert.Len(t, store.txs["pay_1"], 2)
}

func TestReconcileResolvesByMetadataRef(t *testing.T) {
	svc, store, _, _ := newReconcileFixture(t)

	// Webhook qui arrive avant l'enregistrement de la référence provider :
	// seule la métadonnée payment_id permet encore la corrélation
	seedPayment(store, "pay_1", "stripe", "pi_123", 20.00)
	delete(store.refIndex, "stripe|pi_123")

	ev := chargeSucceeded("stripe", "pi_123", "pi_123", 20.00)
	ev.LocalRef = "pay_1"

	outcome, err := svc.Apply(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.PaymentSucceeded, store.payments["pay_1"].Status)
}
