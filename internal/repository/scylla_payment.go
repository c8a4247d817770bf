package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orvia_back_end/internal/database"
	"orvia_back_end/internal/models"
	"orvia_back_end/internal/service"

	"github.com/gocql/gocql"
)

// ScyllaPaymentRepository est le ledger : table payments (état courant),
// payments_by_provider_ref (corrélation), transactions_by_provider
// (idempotence), transactions et payment_logs (append-only).
type ScyllaPaymentRepository struct {
	session *gocql.Session
}

func NewScyllaPaymentRepository(session *gocql.Session) *ScyllaPaymentRepository {
	return &ScyllaPaymentRepository{session: session}
}

const paymentColumns = "payment_id, order_id, order_number, user_id, amount, currency, provider, provider_ref, status, customer_email, customer_name, customer_phone, metadata, created_at, updated_at, completed_at"

func (r *ScyllaPaymentRepository) scanPayment(q *gocql.Query) (*models.Payment, error) {
	var p models.Payment
	err := q.Scan(&p.PaymentID, &p.OrderID, &p.OrderNumber, &p.UserID, &p.Amount,
		&p.Currency, &p.Provider, &p.ProviderRef, &p.Status,
		&p.CustomerEmail, &p.CustomerName, &p.CustomerPhone,
		&p.Metadata, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, service.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture paiement: %w", err)
	}
	return &p, nil
}

func (r *ScyllaPaymentRepository) GetByID(ctx context.Context, paymentID string) (*models.Payment, error) {
	if q := database.GetPreparedPaymentByID(); q != nil {
		return r.scanPayment(q.WithContext(ctx).Bind(paymentID))
	}
	return r.scanPayment(r.session.Query(
		"SELECT "+paymentColumns+" FROM payments WHERE payment_id = ?", paymentID,
	).WithContext(ctx))
}

func (r *ScyllaPaymentRepository) GetByProviderRef(ctx context.Context, provider, providerRef string) (*models.Payment, error) {
	var paymentID string
	var err error
	if q := database.GetPreparedPaymentIDByProviderRef(); q != nil {
		err = q.WithContext(ctx).Bind(provider, providerRef).Scan(&paymentID)
	} else {
		err = r.session.Query(
			"SELECT payment_id FROM payments_by_provider_ref WHERE provider = ? AND provider_ref = ?",
			provider, providerRef,
		).WithContext(ctx).Scan(&paymentID)
	}
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, service.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("corrélation provider_ref: %w", err)
	}
	return r.GetByID(ctx, paymentID)
}

func (r *ScyllaPaymentRepository) ListByOrder(ctx context.Context, orderID gocql.UUID) ([]models.Payment, error) {
	return r.list(ctx, r.session.Query(
		"SELECT "+paymentColumns+" FROM payments WHERE order_id = ? ALLOW FILTERING", orderID,
	).WithContext(ctx))
}

// List alimente le dashboard admin. Filtres optionnels statut/provider.
func (r *ScyllaPaymentRepository) List(ctx context.Context, statusFilter, providerFilter string) ([]models.Payment, error) {
	cql := "SELECT " + paymentColumns + " FROM payments"
	var args []interface{}
	switch {
	case statusFilter != "" && providerFilter != "":
		cql += " WHERE status = ? AND provider = ? ALLOW FILTERING"
		args = append(args, statusFilter, providerFilter)
	case statusFilter != "":
		cql += " WHERE status = ? ALLOW FILTERING"
		args = append(args, statusFilter)
	case providerFilter != "":
		cql += " WHERE provider = ? ALLOW FILTERING"
		args = append(args, providerFilter)
	}
	return r.list(ctx, r.session.Query(cql, args...).WithContext(ctx))
}

func (r *ScyllaPaymentRepository) list(ctx context.Context, q *gocql.Query) ([]models.Payment, error) {
	iter := q.Iter()
	var payments []models.Payment
	for {
		var p models.Payment
		if !iter.Scan(&p.PaymentID, &p.OrderID, &p.OrderNumber, &p.UserID, &p.Amount,
			&p.Currency, &p.Provider, &p.ProviderRef, &p.Status,
			&p.CustomerEmail, &p.CustomerName, &p.CustomerPhone,
			&p.Metadata, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt) {
			break
		}
		payments = append(payments, p)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("liste paiements: %w", err)
	}
	return payments, nil
}

func (r *ScyllaPaymentRepository) Insert(ctx context.Context, p models.Payment) error {
	return r.session.Query(
		`INSERT INTO payments (payment_id, order_id, order_number, user_id, amount, currency, provider, status, customer_email, customer_name, customer_phone, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PaymentID, p.OrderID, p.OrderNumber, p.UserID, p.Amount, p.Currency,
		p.Provider, p.Status, p.CustomerEmail, p.CustomerName, p.CustomerPhone,
		p.Metadata, p.CreatedAt, p.UpdatedAt,
	).WithContext(ctx).Exec()
}

// AttachProviderRef pose la référence provider sur le paiement et l'indexe
// pour la corrélation webhook.
func (r *ScyllaPaymentRepository) AttachProviderRef(ctx context.Context, paymentID, provider, providerRef string, metadata map[string]string) error {
	if err := r.session.Query(
		"UPDATE payments SET provider_ref = ?, metadata = ?, updated_at = ? WHERE payment_id = ?",
		providerRef, metadata, time.Now(), paymentID,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("attache provider_ref: %w", err)
	}
	return r.IndexProviderRef(ctx, provider, providerRef, paymentID)
}

func (r *ScyllaPaymentRepository) IndexProviderRef(ctx context.Context, provider, providerRef, paymentID string) error {
	return r.session.Query(
		"INSERT INTO payments_by_provider_ref (provider, provider_ref, payment_id) VALUES (?, ?, ?)",
		provider, providerRef, paymentID,
	).WithContext(ctx).Exec()
}

// CompareAndSwapStatus linéarise les transitions de statut : le LWT ne
// s'applique que si le statut courant est exactement from.
func (r *ScyllaPaymentRepository) CompareAndSwapStatus(ctx context.Context, paymentID, from, to string, completedAt *time.Time) (bool, error) {
	var q *gocql.Query
	if completedAt != nil {
		q = r.session.Query(
			"UPDATE payments SET status = ?, completed_at = ?, updated_at = ? WHERE payment_id = ? IF status = ?",
			to, *completedAt, time.Now(), paymentID, from,
		)
	} else {
		q = r.session.Query(
			"UPDATE payments SET status = ?, updated_at = ? WHERE payment_id = ? IF status = ?",
			to, time.Now(), paymentID, from,
		)
	}
	var current string
	applied, err := q.WithContext(ctx).ScanCAS(&current)
	if err != nil {
		return false, fmt.Errorf("CAS statut paiement: %w", err)
	}
	return applied, nil
}

// ClaimProviderTx revendique la clé d'idempotence. false = relivraison.
func (r *ScyllaPaymentRepository) ClaimProviderTx(ctx context.Context, provider, providerTxID, paymentID string) (bool, error) {
	applied, err := r.session.Query(
		"INSERT INTO transactions_by_provider (provider, provider_tx_id, payment_id, claimed_at) VALUES (?, ?, ?, ?) IF NOT EXISTS",
		provider, providerTxID, paymentID, time.Now(),
	).WithContext(ctx).ScanCAS()
	if err != nil {
		return false, fmt.Errorf("revendication tx provider: %w", err)
	}
	return applied, nil
}

// ReleaseProviderTx supprime une revendication dont la transition n'a pas abouti.
func (r *ScyllaPaymentRepository) ReleaseProviderTx(ctx context.Context, provider, providerTxID string) error {
	return r.session.Query(
		"DELETE FROM transactions_by_provider WHERE provider = ? AND provider_tx_id = ?",
		provider, providerTxID,
	).WithContext(ctx).Exec()
}

func (r *ScyllaPaymentRepository) InsertTransaction(ctx context.Context, tx models.Transaction) error {
	return r.session.Query(
		`INSERT INTO transactions (payment_id, created_at, transaction_id, provider_tx_id, kind, amount, status, raw_payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.PaymentID, tx.CreatedAt, tx.ID, tx.ProviderTxID, tx.Kind, tx.Amount, tx.Status, tx.RawPayload,
	).WithContext(ctx).Exec()
}

func (r *ScyllaPaymentRepository) Transactions(ctx context.Context, paymentID string) ([]models.Transaction, error) {
	iter := r.session.Query(
		`SELECT payment_id, created_at, transaction_id, provider_tx_id, kind, amount, status, raw_payload
		 FROM transactions WHERE payment_id = ?`, paymentID,
	).WithContext(ctx).Iter()

	var txs []models.Transaction
	for {
		var tx models.Transaction
		if !iter.Scan(&tx.PaymentID, &tx.CreatedAt, &tx.ID, &tx.ProviderTxID, &tx.Kind, &tx.Amount, &tx.Status, &tx.RawPayload) {
			break
		}
		txs = append(txs, tx)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("liste transactions: %w", err)
	}
	return txs, nil
}

func (r *ScyllaPaymentRepository) AppendLog(ctx context.Context, entry models.PaymentLog) error {
	return r.session.Query(
		"INSERT INTO payment_logs (payment_id, created_at, log_id, event_type, level, message, data) VALUES (?, ?, ?, ?, ?, ?, ?)",
		entry.PaymentID, entry.CreatedAt, entry.ID, entry.EventType, entry.Level, entry.Message, entry.Data,
	).WithContext(ctx).Exec()
}

func (r *ScyllaPaymentRepository) Logs(ctx context.Context, paymentID string, limit int) ([]models.PaymentLog, error) {
	iter := r.session.Query(
		"SELECT payment_id, created_at, log_id, event_type, level, message, data FROM payment_logs WHERE payment_id = ? LIMIT ?",
		paymentID, limit,
	).WithContext(ctx).Iter()

	var logs []models.PaymentLog
	for {
		var l models.PaymentLog
		if !iter.Scan(&l.PaymentID, &l.CreatedAt, &l.ID, &l.EventType, &l.Level, &l.Message, &l.Data) {
			break
		}
		logs = append(logs, l)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("liste logs paiement: %w", err)
	}
	return logs, nil
}
