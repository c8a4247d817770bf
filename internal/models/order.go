package models

import (
	"time"

	"github.com/gocql/gocql"
)

// Statuts de commande (fulfillment, distinct du statut de paiement)
const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
	OrderRefunded   = "refunded"
)

// OrderStatuses liste les statuts valides pour la mise à jour admin.
var OrderStatuses = map[string]bool{
	OrderPending:    true,
	OrderProcessing: true,
	OrderShipped:    true,
	OrderDelivered:  true,
	OrderCancelled:  true,
	OrderRefunded:   true,
}

type Order struct {
	ID            gocql.UUID  `json:"id"`
	OrderNumber   string      `json:"order_number"`
	UserID        string      `json:"user_id"`
	AddressID     *gocql.UUID `json:"address_id,omitempty"` // nullable : l'adresse peut être supprimée indépendamment
	TotalAmount   float64     `json:"total_amount"`
	Currency      string      `json:"currency"`
	PaymentMethod string      `json:"payment_method"` // "stripe", "razorpay"
	Status        string      `json:"status"`
	Items         []OrderItem `json:"items,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// OrderItem fige le prix au moment de l'achat, jamais recalculé depuis le catalogue.
type OrderItem struct {
	OrderID   gocql.UUID `json:"order_id"`
	ProductID string     `json:"product_id"`
	Name      string     `json:"name"`
	Quantity  int        `json:"quantity"`
	UnitPrice float64    `json:"unit_price"`
}
