package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"orvia_back_end/internal/models"
	"orvia_back_end/internal/provider"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

const checkoutLockTTL = 30 * time.Second

// priceTolerance retourne l'écart admis entre total client et total serveur :
// un centime, ou 0,1 % du total serveur pour les gros paniers.
func priceTolerance(serverTotal float64) float64 {
	return math.Max(0.01, serverTotal*0.001)
}

type CheckoutRequest struct {
	Shipping      models.AddressFields
	MakeDefault   bool
	Provider      string
	ClientTotal   float64
	CustomerName  string
	CustomerPhone string
}

type CheckoutResult struct {
	OrderID      gocql.UUID
	OrderNumber  string
	PaymentID    string
	Provider     string
	Amount       float64
	Currency     string
	ClientSecret string
	Extra        map[string]string
}

// CheckoutService fige un panier en commande immuable et réserve un paiement
// pending, le tout en une unité atomique, puis initie le paiement provider.
type CheckoutService struct {
	carts       CartRepository
	addresses   *AddressService
	orders      OrderRepository
	payments    PaymentRepository
	catalog     Catalog
	locker      Locker
	providers   provider.Registry
	callTimeout time.Duration
	maxAttempts int // 0 = illimité
}

func NewCheckoutService(
	carts CartRepository,
	addresses *AddressService,
	orders OrderRepository,
	payments PaymentRepository,
	catalog Catalog,
	locker Locker,
	providers provider.Registry,
	callTimeout time.Duration,
	maxAttempts int,
) *CheckoutService {
	return &CheckoutService{
		carts:       carts,
		addresses:   addresses,
		orders:      orders,
		payments:    payments,
		catalog:     catalog,
		locker:      locker,
		providers:   providers,
		callTimeout: callTimeout,
		maxAttempts: maxAttempts,
	}
}

// orderNumber dérive le numéro public de l'identifiant de commande : il hérite
// de l'unicité de la clé primaire, sans table de réservation supplémentaire.
func orderNumber(id gocql.UUID) string {
	return "ORD-" + strings.ToUpper(hex.EncodeToString(id[:]))
}

func newPaymentID() string {
	return "pay_" + uuid.NewString()
}

// Checkout exécute la transition panier → commande.
// Les étapes validation → re-pricing → adresse → batch(commande+items+paiement
// +vidage panier) sont tout-ou-rien ; l'appel provider est hors batch et son
// échec est signalé par *PaymentInitError (commande déjà enregistrée).
func (s *CheckoutService) Checkout(ctx context.Context, userID, email string, req CheckoutRequest) (*CheckoutResult, error) {
	// 1. Validation avant tout accès au stockage
	if err := ValidateShippingFields(req.Shipping); err != nil {
		return nil, err
	}
	adapter, ok := s.providers.Get(req.Provider)
	if !ok {
		return nil, &ValidationError{Field: "provider", Reason: "provider inconnu : " + req.Provider}
	}

	// 2. Sérialisation par utilisateur : deux checkouts concurrents ne doivent
	// jamais courser le même panier
	release, ok, err := s.locker.Acquire(ctx, "checkout_lock:"+userID, checkoutLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCheckoutLocked
	}
	defer release()

	// 3. Panier
	lines, err := s.carts.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyBasket
	}

	// 4. Re-pricing côté serveur : on ne fait jamais confiance au total client
	items := make([]models.OrderItem, 0, len(lines))
	var serverTotal float64
	currency := ""
	for _, l := range lines {
		product, err := s.catalog.FetchProduct(ctx, l.ProductID)
		if err != nil {
			return nil, err
		}
		if l.Quantity > product.Stock {
			return nil, fmt.Errorf("%w : %s (disponible %d, demandé %d)", ErrOutOfStock, product.Name, product.Stock, l.Quantity)
		}
		if currency == "" {
			currency = product.Currency
		} else if product.Currency != currency {
			// Pas de conversion : un panier se règle dans une seule devise
			return nil, &ValidationError{Field: "currency", Reason: fmt.Sprintf("devises mélangées dans le panier : %s et %s", currency, product.Currency)}
		}
		items = append(items, models.OrderItem{
			ProductID: l.ProductID,
			Name:      product.Name,
			Quantity:  l.Quantity,
			UnitPrice: product.Price,
		})
		serverTotal += product.Price * float64(l.Quantity)
	}
	serverTotal = math.Round(serverTotal*100) / 100

	if math.Abs(serverTotal-req.ClientTotal) > priceTolerance(serverTotal) {
		return nil, fmt.Errorf("%w (serveur %.2f, client %.2f)", ErrPriceMismatch, serverTotal, req.ClientTotal)
	}

	// 5. Adresse de livraison
	addr, err := s.addresses.ResolveOrCreate(ctx, userID, req.Shipping, req.MakeDefault)
	if err != nil {
		return nil, err
	}

	// 6-7. Commande + items + paiement pending + vidage panier : un seul batch
	now := time.Now()
	orderID := gocql.TimeUUID()
	order := models.Order{
		ID:            orderID,
		OrderNumber:   orderNumber(orderID),
		UserID:        userID,
		AddressID:     &addr.ID,
		TotalAmount:   serverTotal,
		Currency:      currency,
		PaymentMethod: req.Provider,
		Status:        models.OrderProcessing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i := range items {
		items[i].OrderID = order.ID
	}

	payment := models.Payment{
		PaymentID:     newPaymentID(),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        userID,
		Amount:        serverTotal,
		Currency:      currency,
		Provider:      req.Provider,
		Status:        models.PaymentPending,
		CustomerEmail: email,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.orders.CreateWithPayment(ctx, order, items, payment); err != nil {
		return nil, err
	}

	log.Printf("🧾 Commande %s créée pour %s (%.2f %s, %d articles)",
		order.OrderNumber, userID, serverTotal, currency, len(items))

	// 8. Initiation provider, hors du batch : la commande existe déjà
	return s.startProvider(ctx, adapter, order, payment)
}

// startProvider appelle le provider avec un timeout borné et classe l'échec.
// Rejet explicite → paiement failed ; indisponibilité (dont timeout) → le
// paiement reste pending, réconciliable par un webhook tardif.
func (s *CheckoutService) startProvider(ctx context.Context, adapter provider.Adapter, order models.Order, payment models.Payment) (*CheckoutResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	start, err := adapter.Start(callCtx, order, payment)
	if err != nil {
		return nil, s.handleStartFailure(ctx, order, payment, err)
	}

	metadata := map[string]string{"provider_ref": start.ProviderRef}
	if start.ClientSecret != "" {
		metadata["client_secret"] = start.ClientSecret
	}
	for k, v := range start.Extra {
		metadata[k] = v
	}

	if err := s.payments.AttachProviderRef(ctx, payment.PaymentID, payment.Provider, start.ProviderRef, metadata); err != nil {
		log.Printf("⚠️ Référence provider non persistée pour %s: %v", payment.PaymentID, err)
	}

	s.payments.AppendLog(ctx, models.PaymentLog{
		ID:        gocql.TimeUUID(),
		PaymentID: payment.PaymentID,
		EventType: "payment_intent_created",
		Level:     models.LogInfo,
		Message:   fmt.Sprintf("Intent %s créé chez %s pour la commande %s", start.ProviderRef, payment.Provider, order.OrderNumber),
		Data:      map[string]string{"provider_ref": start.ProviderRef},
		CreatedAt: time.Now(),
	})

	log.Printf("💳 Paiement initié : %s (%s, ref %s)", payment.PaymentID, payment.Provider, start.ProviderRef)

	return &CheckoutResult{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		PaymentID:    payment.PaymentID,
		Provider:     payment.Provider,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
		ClientSecret: start.ClientSecret,
		Extra:        start.Extra,
	}, nil
}

func (s *CheckoutService) handleStartFailure(ctx context.Context, order models.Order, payment models.Payment, cause error) error {
	switch {
	case errors.Is(cause, provider.ErrRejected):
		// Refus explicite : la tentative est terminée
		if _, err := s.payments.CompareAndSwapStatus(ctx, payment.PaymentID, models.PaymentPending, models.PaymentFailed, nil); err != nil {
			log.Printf("⚠️ Impossible de marquer %s failed: %v", payment.PaymentID, err)
		}
		s.payments.AppendLog(ctx, models.PaymentLog{
			ID:        gocql.TimeUUID(),
			PaymentID: payment.PaymentID,
			EventType: "payment_init_rejected",
			Level:     models.LogError,
			Message:   cause.Error(),
			CreatedAt: time.Now(),
		})
		log.Printf("❌ Paiement %s refusé par %s: %v", payment.PaymentID, payment.Provider, cause)
		return &PaymentInitError{OrderNumber: order.OrderNumber, PaymentID: payment.PaymentID, Cause: ErrProviderRejected}

	default:
		// Indisponibilité (timeout inclus) : le paiement reste pending, un
		// webhook tardif ou un retry-payment pourra encore le réconcilier
		s.payments.AppendLog(ctx, models.PaymentLog{
			ID:        gocql.TimeUUID(),
			PaymentID: payment.PaymentID,
			EventType: "payment_init_unavailable",
			Level:     models.LogWarning,
			Message:   cause.Error(),
			CreatedAt: time.Now(),
		})
		log.Printf("⚠️ Provider %s injoignable pour %s: %v", payment.Provider, payment.PaymentID, cause)
		return &PaymentInitError{OrderNumber: order.OrderNumber, PaymentID: payment.PaymentID, Cause: ErrProviderUnavailable}
	}
}

// RetryPayment crée une nouvelle tentative de paiement pour une commande dont
// aucune tentative n'a abouti. Le checkout lui-même n'est jamais rejoué.
func (s *CheckoutService) RetryPayment(ctx context.Context, userID string, orderID gocql.UUID, providerName string) (*CheckoutResult, error) {
	adapter, ok := s.providers.Get(providerName)
	if !ok {
		return nil, &ValidationError{Field: "provider", Reason: "provider inconnu : " + providerName}
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}

	attempts, err := s.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, p := range attempts {
		if p.Status == models.PaymentSucceeded || p.Status == models.PaymentRefunded {
			return nil, &ValidationError{Field: "order", Reason: "commande déjà payée"}
		}
	}
	if s.maxAttempts > 0 && len(attempts) >= s.maxAttempts {
		return nil, ErrTooManyAttempts
	}

	now := time.Now()
	payment := models.Payment{
		PaymentID:   newPaymentID(),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      userID,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
		Provider:    providerName,
		Status:      models.PaymentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(attempts) > 0 {
		payment.CustomerEmail = attempts[0].CustomerEmail
		payment.CustomerName = attempts[0].CustomerName
		payment.CustomerPhone = attempts[0].CustomerPhone
	}

	if err := s.payments.Insert(ctx, payment); err != nil {
		return nil, err
	}

	log.Printf("🔁 Nouvelle tentative de paiement %s pour la commande %s (%d précédentes)",
		payment.PaymentID, order.OrderNumber, len(attempts))

	return s.startProvider(ctx, adapter, *order, payment)
}
