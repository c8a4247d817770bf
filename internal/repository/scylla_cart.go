package repository

import (
	"context"
	"fmt"
	"time"

	"orvia_back_end/internal/models"

	"github.com/gocql/gocql"
)

// ScyllaCartRepository persiste les lignes de panier dans orders_ks.carts.
// Seuls product_id et quantity sont stockés : le prix vient toujours du
// catalogue au moment de la lecture.
type ScyllaCartRepository struct {
	session *gocql.Session
}

func NewScyllaCartRepository(session *gocql.Session) *ScyllaCartRepository {
	return &ScyllaCartRepository{session: session}
}

func (r *ScyllaCartRepository) Lines(ctx context.Context, userID string) ([]models.CartLine, error) {
	iter := r.session.Query(
		"SELECT product_id, quantity FROM carts WHERE user_id = ?", userID,
	).WithContext(ctx).Iter()

	var lines []models.CartLine
	var productID string
	var quantity int
	for iter.Scan(&productID, &quantity) {
		lines = append(lines, models.CartLine{ProductID: productID, Quantity: quantity})
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("lecture panier: %w", err)
	}
	return lines, nil
}

func (r *ScyllaCartRepository) UpsertLine(ctx context.Context, userID, productID string, quantity int) error {
	return r.session.Query(
		"INSERT INTO carts (user_id, product_id, quantity, updated_at) VALUES (?, ?, ?, ?)",
		userID, productID, quantity, time.Now(),
	).WithContext(ctx).Exec()
}

func (r *ScyllaCartRepository) DeleteLine(ctx context.Context, userID, productID string) error {
	return r.session.Query(
		"DELETE FROM carts WHERE user_id = ? AND product_id = ?", userID, productID,
	).WithContext(ctx).Exec()
}

func (r *ScyllaCartRepository) Clear(ctx context.Context, userID string) error {
	return r.session.Query(
		"DELETE FROM carts WHERE user_id = ?", userID,
	).WithContext(ctx).Exec()
}
