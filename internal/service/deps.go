package service

import (
	"context"
	"time"

	"orvia_back_end/internal/models"

	"github.com/gocql/gocql"
)

// Interfaces que doivent implémenter les repositories (implémentations Scylla
// dans internal/repository, fakes en mémoire dans les tests).

type CartRepository interface {
	Lines(ctx context.Context, userID string) ([]models.CartLine, error)
	UpsertLine(ctx context.Context, userID, productID string, quantity int) error
	DeleteLine(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

type AddressRepository interface {
	FindByHash(ctx context.Context, userID, fieldsHash string) (*models.Address, error)
	// InsertIfAbsent est un LWT : en cas de course, retourne la ligne gagnante.
	InsertIfAbsent(ctx context.Context, addr models.Address) (*models.Address, error)
	SetDefault(ctx context.Context, userID, fieldsHash string, addressID gocql.UUID) error
	DefaultAddress(ctx context.Context, userID string) (*models.Address, error)
	LatestAddress(ctx context.Context, userID string) (*models.Address, error)
	ListByUser(ctx context.Context, userID string) ([]models.Address, error)
}

type OrderRepository interface {
	// CreateWithPayment écrit commande + items + paiement et vide le panier en
	// un seul batch loggé : tout ou rien.
	CreateWithPayment(ctx context.Context, order models.Order, items []models.OrderItem, payment models.Payment) error
	GetByID(ctx context.Context, orderID gocql.UUID) (*models.Order, error)
	Items(ctx context.Context, orderID gocql.UUID) ([]models.OrderItem, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID gocql.UUID, status string) error
	Touch(ctx context.Context, orderID gocql.UUID) error
}

type PaymentRepository interface {
	GetByID(ctx context.Context, paymentID string) (*models.Payment, error)
	GetByProviderRef(ctx context.Context, provider, providerRef string) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID gocql.UUID) ([]models.Payment, error)
	List(ctx context.Context, statusFilter, providerFilter string) ([]models.Payment, error)
	Insert(ctx context.Context, p models.Payment) error
	AttachProviderRef(ctx context.Context, paymentID, provider, providerRef string, metadata map[string]string) error
	// IndexProviderRef ajoute une référence de corrélation supplémentaire sans
	// toucher à la ligne paiement (remboursements Razorpay).
	IndexProviderRef(ctx context.Context, provider, providerRef, paymentID string) error
	// CompareAndSwapStatus est un LWT IF status = from ; retourne false si le
	// statut courant a bougé entre-temps.
	CompareAndSwapStatus(ctx context.Context, paymentID, from, to string, completedAt *time.Time) (bool, error)
	// ClaimProviderTx revendique la clé d'idempotence (provider, provider_tx_id)
	// via INSERT IF NOT EXISTS ; false = événement déjà appliqué.
	ClaimProviderTx(ctx context.Context, provider, providerTxID, paymentID string) (bool, error)
	// ReleaseProviderTx rend la clé quand l'événement n'a finalement pas été
	// appliqué, pour que la relivraison provider puisse retenter.
	ReleaseProviderTx(ctx context.Context, provider, providerTxID string) error
	InsertTransaction(ctx context.Context, tx models.Transaction) error
	Transactions(ctx context.Context, paymentID string) ([]models.Transaction, error)
	AppendLog(ctx context.Context, entry models.PaymentLog) error
	Logs(ctx context.Context, paymentID string, limit int) ([]models.PaymentLog, error)
}

// Catalog est le collaborateur externe de lecture produit (prix/stock courants).
type Catalog interface {
	FetchProduct(ctx context.Context, productID string) (*models.Product, error)
}

// Locker sérialise les mutations par utilisateur (verrou Redis en prod).
type Locker interface {
	// Acquire retourne (release, true) si le verrou est pris, (nil, false) sinon.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error)
}

// Notifier envoie les effets de bord non critiques après un paiement réussi.
type Notifier interface {
	OrderPaid(order models.Order, items []models.OrderItem, payment models.Payment)
}

// Archiver conserve les payloads bruts des providers (MinIO en prod).
type Archiver interface {
	Archive(ctx context.Context, provider, providerTxID string, payload []byte) error
}
