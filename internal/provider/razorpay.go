package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"orvia_back_end/internal/models"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// RazorpayAdapter : provider order+signature. On crée un order côté Razorpay,
// le client paie out-of-band puis soumet un triplet signé (order_id, payment_id,
// signature) vérifié contre le secret partagé. Les webhooks arrivent en plus.
type RazorpayAdapter struct {
	client        *razorpay.Client
	keyID         string
	keySecret     string
	webhookSecret string
}

func NewRazorpay(keyID, keySecret, webhookSecret string, timeout time.Duration) *RazorpayAdapter {
	c := razorpay.NewClient(keyID, keySecret)
	c.SetTimeout(int16(timeout.Seconds()))
	return &RazorpayAdapter{
		client:        c,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
	}
}

func (a *RazorpayAdapter) Name() string { return models.ProviderRazorpay }

// Start crée l'order Razorpay. Le SDK ne prend pas de context : le timeout est
// posé sur le client à la construction, on vérifie juste l'annulation avant l'appel.
func (a *RazorpayAdapter) Start(ctx context.Context, order models.Order, payment models.Payment) (*StartResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	data := map[string]interface{}{
		"amount":          int64(math.Round(payment.Amount * 100)),
		"currency":        payment.Currency,
		"receipt":         order.OrderNumber,
		"payment_capture": 1,
		"notes": map[string]interface{}{
			"order_number": order.OrderNumber,
			"payment_id":   payment.PaymentID,
			"user_id":      order.UserID,
		},
	}

	body, err := a.client.Order.Create(data, nil)
	if err != nil {
		// Le SDK ne type pas ses erreurs : un refus contient une description
		// d'erreur API, tout le reste est du transport.
		if _, ok := err.(*json.SyntaxError); ok {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: réponse sans id d'order", ErrRejected)
	}

	return &StartResult{
		ProviderRef: id,
		Extra: map[string]string{
			"razorpay_order_id": id,
			"razorpay_key_id":   a.keyID,
		},
	}, nil
}

// razorpayWebhook est l'enveloppe des webhooks Razorpay.
type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
				Amount    int64  `json:"amount"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// Verify authentifie un webhook Razorpay (HMAC du body contre le secret webhook).
func (a *RazorpayAdapter) Verify(payload []byte, signature string) (*VerifiedEvent, error) {
	if !utils.VerifyWebhookSignature(string(payload), signature, a.webhookSecret) {
		return nil, ErrBadSignature
	}

	var wh razorpayWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, fmt.Errorf("décodage webhook: %v", err)
	}

	switch wh.Event {
	case "payment.captured", "payment.failed":
		status := models.PaymentSucceeded
		if wh.Event == "payment.failed" {
			status = models.PaymentFailed
		}
		return &VerifiedEvent{
			Provider:     models.ProviderRazorpay,
			EventType:    wh.Event,
			Kind:         models.TxCharge,
			Status:       status,
			ProviderTxID: wh.Payload.Payment.Entity.ID,
			PaymentRef:   wh.Payload.Payment.Entity.OrderID,
			Amount:       float64(wh.Payload.Payment.Entity.Amount) / 100,
			Raw:          payload,
		}, nil

	case "refund.processed":
		return &VerifiedEvent{
			Provider:     models.ProviderRazorpay,
			EventType:    wh.Event,
			Kind:         models.TxRefund,
			Status:       models.PaymentSucceeded,
			ProviderTxID: wh.Payload.Refund.Entity.ID,
			PaymentRef:   wh.Payload.Refund.Entity.PaymentID,
			Amount:       float64(wh.Payload.Refund.Entity.Amount) / 100,
			Raw:          payload,
		}, nil

	default:
		return nil, ErrEventIgnored
	}
}

// razorpayClientConfirmation est le triplet soumis par le client après paiement.
type razorpayClientConfirmation struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

// VerifyClient vérifie le triplet signé soumis par le client. On ne fait
// JAMAIS confiance à un succès déclaré sans cette vérification.
func (a *RazorpayAdapter) VerifyClient(payload []byte) (*VerifiedEvent, error) {
	var conf razorpayClientConfirmation
	if err := json.Unmarshal(payload, &conf); err != nil {
		return nil, fmt.Errorf("décodage confirmation: %v", err)
	}
	if conf.RazorpayOrderID == "" || conf.RazorpayPaymentID == "" || conf.RazorpaySignature == "" {
		return nil, ErrBadSignature
	}

	params := map[string]interface{}{
		"razorpay_order_id":   conf.RazorpayOrderID,
		"razorpay_payment_id": conf.RazorpayPaymentID,
	}
	if !utils.VerifyPaymentSignature(params, conf.RazorpaySignature, a.keySecret) {
		return nil, ErrBadSignature
	}

	return &VerifiedEvent{
		Provider:     models.ProviderRazorpay,
		EventType:    "client.verified",
		Kind:         models.TxCharge,
		Status:       models.PaymentSucceeded,
		ProviderTxID: conf.RazorpayPaymentID,
		PaymentRef:   conf.RazorpayOrderID,
		Raw:          payload,
	}, nil
}
