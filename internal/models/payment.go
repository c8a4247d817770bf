package models

import (
	"time"

	"github.com/gocql/gocql"
)

// Statuts de paiement. succeeded et refunded sont terminaux et monotones.
const (
	PaymentPending    = "pending"
	PaymentProcessing = "processing"
	PaymentSucceeded  = "succeeded"
	PaymentFailed     = "failed"
	PaymentRefunded   = "refunded"
	PaymentCancelled  = "cancelled"
)

// Providers supportés
const (
	ProviderStripe   = "stripe"
	ProviderRazorpay = "razorpay"
)

// Payment est une tentative de paiement liée à une commande. Une commande peut
// accumuler plusieurs tentatives si les premières échouent ; au plus une peut
// être succeeded.
type Payment struct {
	PaymentID     string            `json:"payment_id"` // jeton local pay_<uuid>
	OrderID       gocql.UUID        `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	UserID        string            `json:"user_id"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Provider      string            `json:"provider"`
	ProviderRef   string            `json:"provider_ref,omitempty"` // intent Stripe / order Razorpay
	Status        string            `json:"status"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	CustomerName  string            `json:"customer_name,omitempty"`
	CustomerPhone string            `json:"customer_phone,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"` // posé uniquement au succès terminal
}

// IsTerminal indique si le statut ne doit plus jamais être quitté
// (refunded mis à part pour succeeded).
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentSucceeded || p.Status == PaymentRefunded
}

// Types de transaction
const (
	TxCharge  = "charge"
	TxRefund  = "refund"
	TxCapture = "capture"
)

// Transaction est l'enregistrement immuable d'un événement provider appliqué à
// un paiement. Jamais modifiée ni supprimée : c'est la piste d'audit.
type Transaction struct {
	ID           gocql.UUID `json:"id"`
	PaymentID    string     `json:"payment_id"`
	ProviderTxID string     `json:"provider_tx_id"`
	Kind         string     `json:"kind"` // charge, refund, capture
	Amount       float64    `json:"amount"`
	Status       string     `json:"status"`
	RawPayload   string     `json:"raw_payload,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Niveaux de log
const (
	LogDebug   = "debug"
	LogInfo    = "info"
	LogWarning = "warning"
	LogError   = "error"
)

// PaymentLog est une entrée de diagnostic libre, jamais utilisée pour une
// décision métier. PaymentID peut être vide (événement orphelin).
type PaymentLog struct {
	ID        gocql.UUID        `json:"id"`
	PaymentID string            `json:"payment_id,omitempty"`
	EventType string            `json:"event_type"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
