package service

import (
	"context"
	"sync"
	"time"

	"orvia_back_end/internal/models"
	"orvia_back_end/internal/provider"

	"github.com/gocql/gocql"
)

// fakeStore porte les données partagées par les fakes. Les vues fakeCarts,
// fakeAddrs, fakeOrders et fakePayments implémentent chacune leur interface
// avec la même sémantique que les implémentations Scylla : batch tout-ou-rien,
// LWT sur le statut et sur la clé d'idempotence.
type fakeStore struct {
	mu sync.Mutex

	carts     map[string]map[string]int // userID → productID → quantité
	addresses map[string]map[string]models.Address
	defaults  map[string]struct {
		hash string
		id   gocql.UUID
	}

	orders   map[gocql.UUID]models.Order
	items    map[gocql.UUID][]models.OrderItem
	payments map[string]models.Payment
	refIndex map[string]string // provider|ref → paymentID
	claims   map[string]string // provider|txID → paymentID
	txs      map[string][]models.Transaction
	logs     map[string][]models.PaymentLog

	failCreate error // injecté pour simuler un échec du batch
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		carts:     map[string]map[string]int{},
		addresses: map[string]map[string]models.Address{},
		defaults: map[string]struct {
			hash string
			id   gocql.UUID
		}{},
		orders:   map[gocql.UUID]models.Order{},
		items:    map[gocql.UUID][]models.OrderItem{},
		payments: map[string]models.Payment{},
		refIndex: map[string]string{},
		claims:   map[string]string{},
		txs:      map[string][]models.Transaction{},
		logs:     map[string][]models.PaymentLog{},
	}
}

func (f *fakeStore) cartRepo() fakeCarts       { return fakeCarts{f} }
func (f *fakeStore) addressRepo() fakeAddrs    { return fakeAddrs{f} }
func (f *fakeStore) orderRepo() fakeOrders     { return fakeOrders{f} }
func (f *fakeStore) paymentRepo() fakePayments { return fakePayments{f} }

// --- CartRepository ---

type fakeCarts struct{ s *fakeStore }

func (r fakeCarts) Lines(_ context.Context, userID string) ([]models.CartLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var lines []models.CartLine
	for pid, qty := range r.s.carts[userID] {
		lines = append(lines, models.CartLine{ProductID: pid, Quantity: qty})
	}
	return lines, nil
}

func (r fakeCarts) UpsertLine(_ context.Context, userID, productID string, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.carts[userID] == nil {
		r.s.carts[userID] = map[string]int{}
	}
	r.s.carts[userID][productID] = quantity
	return nil
}

func (r fakeCarts) DeleteLine(_ context.Context, userID, productID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.carts[userID], productID)
	return nil
}

func (r fakeCarts) Clear(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.carts, userID)
	return nil
}

// --- AddressRepository ---

type fakeAddrs struct{ s *fakeStore }

func (r fakeAddrs) FindByHash(_ context.Context, userID, fieldsHash string) (*models.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.addresses[userID][fieldsHash]; ok {
		cp := a
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r fakeAddrs) InsertIfAbsent(_ context.Context, addr models.Address) (*models.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.addresses[addr.UserID][addr.FieldsHash]; ok {
		cp := existing
		return &cp, nil
	}
	if r.s.addresses[addr.UserID] == nil {
		r.s.addresses[addr.UserID] = map[string]models.Address{}
	}
	r.s.addresses[addr.UserID][addr.FieldsHash] = addr
	cp := addr
	return &cp, nil
}

func (r fakeAddrs) SetDefault(_ context.Context, userID, fieldsHash string, addressID gocql.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.defaults[userID] = struct {
		hash string
		id   gocql.UUID
	}{fieldsHash, addressID}
	return nil
}

func (r fakeAddrs) DefaultAddress(_ context.Context, userID string) (*models.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	def, ok := r.s.defaults[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if a, ok := r.s.addresses[userID][def.hash]; ok {
		cp := a
		cp.IsDefault = true
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r fakeAddrs) LatestAddress(_ context.Context, userID string) (*models.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.Address
	for _, a := range r.s.addresses[userID] {
		cp := a
		if latest == nil || cp.CreatedAt.After(latest.CreatedAt) {
			latest = &cp
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (r fakeAddrs) ListByUser(_ context.Context, userID string) ([]models.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var addrs []models.Address
	for _, a := range r.s.addresses[userID] {
		addrs = append(addrs, a)
	}
	return addrs, nil
}

// --- OrderRepository ---

type fakeOrders struct{ s *fakeStore }

func (r fakeOrders) CreateWithPayment(_ context.Context, order models.Order, items []models.OrderItem, payment models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failCreate != nil {
		return r.s.failCreate
	}
	// Même atomicité que le batch loggé : commande, lignes, paiement, panier
	r.s.orders[order.ID] = order
	r.s.items[order.ID] = items
	r.s.payments[payment.PaymentID] = payment
	delete(r.s.carts, order.UserID)
	return nil
}

func (r fakeOrders) GetByID(_ context.Context, orderID gocql.UUID) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o, ok := r.s.orders[orderID]; ok {
		cp := o
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r fakeOrders) Items(_ context.Context, orderID gocql.UUID) ([]models.OrderItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.items[orderID], nil
}

func (r fakeOrders) ListByUser(_ context.Context, userID string) ([]models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Order
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r fakeOrders) UpdateStatus(_ context.Context, orderID gocql.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	r.s.orders[orderID] = o
	return nil
}

func (r fakeOrders) Touch(_ context.Context, orderID gocql.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.UpdatedAt = time.Now()
	r.s.orders[orderID] = o
	return nil
}

// --- PaymentRepository ---

type fakePayments struct{ s *fakeStore }

func (r fakePayments) GetByID(_ context.Context, paymentID string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.payments[paymentID]; ok {
		cp := p
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r fakePayments) GetByProviderRef(_ context.Context, providerName, providerRef string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.refIndex[providerName+"|"+providerRef]
	if !ok {
		return nil, ErrNotFound
	}
	if p, ok := r.s.payments[id]; ok {
		cp := p
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r fakePayments) ListByOrder(_ context.Context, orderID gocql.UUID) ([]models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Payment
	for _, p := range r.s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r fakePayments) List(_ context.Context, statusFilter, providerFilter string) ([]models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Payment
	for _, p := range r.s.payments {
		if statusFilter != "" && p.Status != statusFilter {
			continue
		}
		if providerFilter != "" && p.Provider != providerFilter {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r fakePayments) Insert(_ context.Context, p models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[p.PaymentID] = p
	return nil
}

func (r fakePayments) AttachProviderRef(_ context.Context, paymentID, providerName, providerRef string, metadata map[string]string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[paymentID]
	if !ok {
		return ErrNotFound
	}
	p.ProviderRef = providerRef
	p.Metadata = metadata
	p.UpdatedAt = time.Now()
	r.s.payments[paymentID] = p
	r.s.refIndex[providerName+"|"+providerRef] = paymentID
	return nil
}

func (r fakePayments) IndexProviderRef(_ context.Context, providerName, providerRef, paymentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.refIndex[providerName+"|"+providerRef] = paymentID
	return nil
}

func (r fakePayments) CompareAndSwapStatus(_ context.Context, paymentID, from, to string, completedAt *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[paymentID]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.CompletedAt = completedAt
	p.UpdatedAt = time.Now()
	r.s.payments[paymentID] = p
	return true, nil
}

func (r fakePayments) ClaimProviderTx(_ context.Context, providerName, providerTxID, paymentID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := providerName + "|" + providerTxID
	if _, exists := r.s.claims[key]; exists {
		return false, nil
	}
	r.s.claims[key] = paymentID
	return true, nil
}

func (r fakePayments) ReleaseProviderTx(_ context.Context, providerName, providerTxID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.claims, providerName+"|"+providerTxID)
	return nil
}

func (r fakePayments) InsertTransaction(_ context.Context, tx models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.txs[tx.PaymentID] = append(r.s.txs[tx.PaymentID], tx)
	return nil
}

func (r fakePayments) Transactions(_ context.Context, paymentID string) ([]models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.txs[paymentID], nil
}

func (r fakePayments) AppendLog(_ context.Context, entry models.PaymentLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.logs[entry.PaymentID] = append(r.s.logs[entry.PaymentID], entry)
	return nil
}

func (r fakePayments) Logs(_ context.Context, paymentID string, limit int) ([]models.PaymentLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	logs := r.s.logs[paymentID]
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

// fakeCatalog sert des produits fixés par le test.
type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]models.Product
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[string]models.Product{}}
}

func (c *fakeCatalog) add(id string, price float64, stock int) {
	c.addWithCurrency(id, price, "EUR", stock)
}

func (c *fakeCatalog) addWithCurrency(id string, price float64, currency string, stock int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[id] = models.Product{
		Name: "Produit " + id, Price: price, Currency: currency, Stock: stock, IsActive: true,
	}
}

func (c *fakeCatalog) FetchProduct(_ context.Context, productID string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// fakeLocker est un vrai verrou par clé, pas un stub : les tests de
// concurrence passent par lui.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}
	return release, true, nil
}

// fakeAdapter simule un provider : résultat ou erreur configurés par le test.
type fakeAdapter struct {
	mu         sync.Mutex
	name       string
	startRes   *provider.StartResult
	startErr   error
	startCalls int
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Start(_ context.Context, _ models.Order, _ models.Payment) (*provider.StartResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startCalls++
	if a.startErr != nil {
		return nil, a.startErr
	}
	if a.startRes != nil {
		return a.startRes, nil
	}
	return &provider.StartResult{ProviderRef: "ref_test", ClientSecret: "secret_test"}, nil
}

func (a *fakeAdapter) Verify(_ []byte, _ string) (*provider.VerifiedEvent, error) {
	return nil, provider.ErrEventIgnored
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *fakeNotifier) OrderPaid(models.Order, []models.OrderItem, models.Payment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived [][]byte
}

func (a *fakeArchiver) Archive(_ context.Context, _, _ string, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, payload)
	return nil
}
