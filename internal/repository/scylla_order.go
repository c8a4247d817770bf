package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orvia_back_end/internal/models"
	"orvia_back_end/internal/service"

	"github.com/gocql/gocql"
)

// ScyllaOrderRepository persiste commandes et lignes dans orders_ks.
type ScyllaOrderRepository struct {
	session *gocql.Session
}

func NewScyllaOrderRepository(session *gocql.Session) *ScyllaOrderRepository {
	return &ScyllaOrderRepository{session: session}
}

// CreateWithPayment commite commande, lignes, paiement initial et vidage du
// panier dans un seul batch loggé : soit tout est visible, soit rien. Toutes
// les tables vivent dans le keyspace orders, condition pour que le batch
// reste atomique.
func (r *ScyllaOrderRepository) CreateWithPayment(ctx context.Context, order models.Order, items []models.OrderItem, payment models.Payment) error {
	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)

	batch.Query(
		`INSERT INTO orders (order_id, order_number, user_id, address_id, total_amount, currency, payment_method, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OrderNumber, order.UserID, order.AddressID, order.TotalAmount,
		order.Currency, order.PaymentMethod, order.Status, order.CreatedAt, order.UpdatedAt,
	)

	for _, item := range items {
		batch.Query(
			"INSERT INTO order_items (order_id, product_id, name, quantity, unit_price) VALUES (?, ?, ?, ?, ?)",
			item.OrderID, item.ProductID, item.Name, item.Quantity, item.UnitPrice,
		)
	}

	batch.Query(
		`INSERT INTO payments (payment_id, order_id, order_number, user_id, amount, currency, provider, status, customer_email, customer_name, customer_phone, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.PaymentID, payment.OrderID, payment.OrderNumber, payment.UserID,
		payment.Amount, payment.Currency, payment.Provider, payment.Status,
		payment.CustomerEmail, payment.CustomerName, payment.CustomerPhone,
		payment.Metadata, payment.CreatedAt, payment.UpdatedAt,
	)

	batch.Query("DELETE FROM carts WHERE user_id = ?", order.UserID)

	if err := r.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("création commande %s: %w", order.OrderNumber, err)
	}
	return nil
}

func (r *ScyllaOrderRepository) GetByID(ctx context.Context, orderID gocql.UUID) (*models.Order, error) {
	var o models.Order
	err := r.session.Query(
		`SELECT order_id, order_number, user_id, address_id, total_amount, currency, payment_method, status, created_at, updated_at
		 FROM orders WHERE order_id = ?`, orderID,
	).WithContext(ctx).Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.AddressID, &o.TotalAmount,
		&o.Currency, &o.PaymentMethod, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, service.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture commande: %w", err)
	}
	return &o, nil
}

func (r *ScyllaOrderRepository) Items(ctx context.Context, orderID gocql.UUID) ([]models.OrderItem, error) {
	iter := r.session.Query(
		"SELECT order_id, product_id, name, quantity, unit_price FROM order_items WHERE order_id = ?", orderID,
	).WithContext(ctx).Iter()

	var items []models.OrderItem
	for {
		var it models.OrderItem
		if !iter.Scan(&it.OrderID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice) {
			break
		}
		items = append(items, it)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("lecture lignes commande: %w", err)
	}
	return items, nil
}

func (r *ScyllaOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	iter := r.session.Query(
		`SELECT order_id, order_number, user_id, address_id, total_amount, currency, payment_method, status, created_at, updated_at
		 FROM orders WHERE user_id = ? ALLOW FILTERING`, userID,
	).WithContext(ctx).Iter()

	var orders []models.Order
	for {
		var o models.Order
		if !iter.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.AddressID, &o.TotalAmount,
			&o.Currency, &o.PaymentMethod, &o.Status, &o.CreatedAt, &o.UpdatedAt) {
			break
		}
		orders = append(orders, o)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("liste commandes: %w", err)
	}
	return orders, nil
}

func (r *ScyllaOrderRepository) UpdateStatus(ctx context.Context, orderID gocql.UUID, status string) error {
	return r.session.Query(
		"UPDATE orders SET status = ?, updated_at = ? WHERE order_id = ?",
		status, time.Now(), orderID,
	).WithContext(ctx).Exec()
}

// Touch rafraîchit updated_at sans toucher au statut.
func (r *ScyllaOrderRepository) Touch(ctx context.Context, orderID gocql.UUID) error {
	return r.session.Query(
		"UPDATE orders SET updated_at = ? WHERE order_id = ?", time.Now(), orderID,
	).WithContext(ctx).Exec()
}
