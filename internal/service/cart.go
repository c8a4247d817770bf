package service

import (
	"context"
	"fmt"
	"time"

	"orvia_back_end/internal/models"
)

const cartLockTTL = 5 * time.Second

// CartService gère le panier par utilisateur. Les totaux ne sont jamais
// persistés : chaque lecture reprend les prix courants du catalogue.
type CartService struct {
	repo    CartRepository
	catalog Catalog
	locker  Locker
}

func NewCartService(repo CartRepository, catalog Catalog, locker Locker) *CartService {
	return &CartService{repo: repo, catalog: catalog, locker: locker}
}

func (s *CartService) lock(ctx context.Context, userID string) (func(), error) {
	release, ok, err := s.locker.Acquire(ctx, "cart_lock:"+userID, cartLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCheckoutLocked
	}
	return release, nil
}

// Add ajoute quantity au panier. Une ligne existante s'accumule ; la toute
// première écriture pose la quantité exacte.
func (s *CartService) Add(ctx context.Context, userID, productID string, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Reason: "doit être strictement positive"}
	}

	release, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	product, err := s.catalog.FetchProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}

	newQty := quantity
	for _, l := range lines {
		if l.ProductID == productID {
			newQty += l.Quantity
			break
		}
	}

	// Le stock est vérifié sur la quantité totale de la ligne, pas sur le delta
	if newQty > product.Stock {
		return nil, fmt.Errorf("%w : %s (disponible %d, demandé %d)", ErrOutOfStock, product.Name, product.Stock, newQty)
	}

	if err := s.repo.UpsertLine(ctx, userID, productID, newQty); err != nil {
		return nil, err
	}

	return s.snapshotLocked(ctx, userID)
}

// Update remplace la quantité d'une ligne. quantity <= 0 supprime la ligne :
// c'est une suppression signalée, pas une erreur.
func (s *CartService) Update(ctx context.Context, userID, productID string, quantity int) (cart *models.Cart, deleted bool, err error) {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	lines, err := s.repo.Lines(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	found := false
	for _, l := range lines {
		if l.ProductID == productID {
			found = true
			break
		}
	}
	if !found {
		return nil, false, ErrNotFound
	}

	if quantity <= 0 {
		if err := s.repo.DeleteLine(ctx, userID, productID); err != nil {
			return nil, false, err
		}
		cart, err := s.snapshotLocked(ctx, userID)
		return cart, true, err
	}

	product, err := s.catalog.FetchProduct(ctx, productID)
	if err != nil {
		return nil, false, err
	}
	if quantity > product.Stock {
		return nil, false, fmt.Errorf("%w : %s (disponible %d, demandé %d)", ErrOutOfStock, product.Name, product.Stock, quantity)
	}

	if err := s.repo.UpsertLine(ctx, userID, productID, quantity); err != nil {
		return nil, false, err
	}
	cart, err = s.snapshotLocked(ctx, userID)
	return cart, false, err
}

// Remove supprime une ligne du panier.
func (s *CartService) Remove(ctx context.Context, userID, productID string) error {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	return s.repo.DeleteLine(ctx, userID, productID)
}

// Snapshot retourne le panier revalorisé aux prix catalogue courants.
func (s *CartService) Snapshot(ctx context.Context, userID string) (*models.Cart, error) {
	return s.snapshotLocked(ctx, userID)
}

func (s *CartService) snapshotLocked(ctx context.Context, userID string) (*models.Cart, error) {
	lines, err := s.repo.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart := &models.Cart{UserID: userID, Lines: []models.CartLine{}}
	for _, l := range lines {
		product, err := s.catalog.FetchProduct(ctx, l.ProductID)
		if err != nil {
			// Produit retiré du catalogue : on garde la ligne sans prix plutôt
			// que de casser tout le panier
			cart.Lines = append(cart.Lines, l)
			continue
		}
		l.Name = product.Name
		l.Price = product.Price
		cart.Lines = append(cart.Lines, l)
		cart.Total += product.Price * float64(l.Quantity)
	}
	return cart, nil
}
