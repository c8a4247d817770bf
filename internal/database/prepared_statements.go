package database

import (
	"log"
	"sync"

	"github.com/gocql/gocql"
)

var (
	// Prepared statements pour les requêtes chaudes de réconciliation
	stmtGetPaymentByID  *gocql.Query
	stmtGetPaymentIDRef *gocql.Query
	stmtGetProductByID  *gocql.Query

	preparedOnce sync.Once
)

// InitPreparedStatements initialise les prepared statements
func InitPreparedStatements() {
	preparedOnce.Do(func() {
		ordersSession, err := GetOrdersSession()
		if err != nil {
			log.Printf("⚠️ Impossible d'initialiser les prepared statements (orders): %v", err)
			return
		}

		// Paiement complet par identifiant local
		stmtGetPaymentByID = ordersSession.Query(`SELECT payment_id, order_id, order_number, user_id, amount, currency, provider, provider_ref, status, customer_email, customer_name, customer_phone, metadata, created_at, updated_at, completed_at
			FROM payments WHERE payment_id = ?`)

		// Corrélation provider_ref → payment_id
		stmtGetPaymentIDRef = ordersSession.Query("SELECT payment_id FROM payments_by_provider_ref WHERE provider = ? AND provider_ref = ?")

		productsSession, err := GetProductsSession()
		if err != nil {
			log.Printf("⚠️ Impossible d'initialiser les prepared statements (products): %v", err)
			return
		}

		stmtGetProductByID = productsSession.Query(`SELECT product_id, name, description, price, currency, stock, is_active, created_at, updated_at
			FROM products WHERE product_id = ?`)

		log.Println("✅ Prepared statements initialisés")
	})
}

func GetPreparedPaymentByID() *gocql.Query {
	return stmtGetPaymentByID
}

func GetPreparedPaymentIDByProviderRef() *gocql.Query {
	return stmtGetPaymentIDRef
}

func GetPreparedProductByID() *gocql.Query {
	return stmtGetProductByID
}
