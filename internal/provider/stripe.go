package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"orvia_back_end/internal/models"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/client"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeAdapter : provider à intent direct. Le client complète le paiement avec
// le client_secret, le statut final arrive par webhook.
type StripeAdapter struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *StripeAdapter {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeAdapter{api: api, webhookSecret: webhookSecret}
}

func (a *StripeAdapter) Name() string { return models.ProviderStripe }

// Start crée le PaymentIntent Stripe avec les métadonnées de corrélation.
func (a *StripeAdapter) Start(ctx context.Context, order models.Order, payment models.Payment) (*StartResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(math.Round(payment.Amount * 100))),
		Currency: stripe.String(strings.ToLower(payment.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String("Paiement commande " + order.OrderNumber),
		Metadata: map[string]string{
			"order_number": order.OrderNumber,
			"payment_id":   payment.PaymentID,
			"user_id":      order.UserID,
		},
	}
	params.Context = ctx

	intent, err := a.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classifyStripeError(err)
	}

	return &StartResult{
		ProviderRef:  intent.ID,
		ClientSecret: intent.ClientSecret,
		Extra: map[string]string{
			"intent_id": intent.ID,
		},
	}, nil
}

// Verify authentifie un webhook Stripe et le traduit en VerifiedEvent.
// Purement cryptographique + parsing, aucun effet de bord.
func (a *StripeAdapter) Verify(payload []byte, signature string) (*VerifiedEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, a.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("décodage PaymentIntent: %v", err)
		}
		status := models.PaymentSucceeded
		if event.Type == "payment_intent.payment_failed" {
			status = models.PaymentFailed
		}
		return &VerifiedEvent{
			Provider:     models.ProviderStripe,
			EventType:    string(event.Type),
			Kind:         models.TxCharge,
			Status:       status,
			ProviderTxID: pi.ID,
			PaymentRef:   pi.ID,
			// Métadonnée posée par Start : permet de corréler un webhook qui
			// arrive avant l'enregistrement de la référence provider
			LocalRef: pi.Metadata["payment_id"],
			Amount:   float64(pi.Amount) / 100,
			Raw:      payload,
		}, nil

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("décodage Charge: %v", err)
		}
		ref := ""
		if ch.PaymentIntent != nil {
			ref = ch.PaymentIntent.ID
		}
		return &VerifiedEvent{
			Provider:     models.ProviderStripe,
			EventType:    string(event.Type),
			Kind:         models.TxRefund,
			Status:       models.PaymentSucceeded,
			ProviderTxID: ch.ID,
			PaymentRef:   ref,
			LocalRef:     ch.Metadata["payment_id"],
			Amount:       float64(ch.AmountRefunded) / 100,
			Raw:          payload,
		}, nil

	default:
		return nil, ErrEventIgnored
	}
}

// classifyStripeError sépare refus explicite et indisponibilité transport.
func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
			return fmt.Errorf("%w: %s", ErrRejected, stripeErr.Msg)
		}
		return fmt.Errorf("%w: %s", ErrUnavailable, stripeErr.Msg)
	}
	// timeout, DNS, connexion coupée
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
