package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"orvia_back_end/internal/database"
	"orvia_back_end/internal/models"
	"orvia_back_end/internal/service"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

const ProductCacheTTL = 10 * time.Minute

// ProductCatalog lit les produits avec cache Redis devant ScyllaDB.
// Le prix servi est celui du catalogue au moment de la lecture : les lignes de
// panier ne stockent jamais de prix.
type ProductCatalog struct {
	session *gocql.Session
}

func NewProductCatalog(session *gocql.Session) *ProductCatalog {
	return &ProductCatalog{session: session}
}

func (c *ProductCatalog) FetchProduct(ctx context.Context, productID string) (*models.Product, error) {
	key := "product:" + productID

	// 1. Essayer le cache Redis
	if database.Redis != nil {
		if data, err := database.Redis.Get(ctx, key).Result(); err == nil {
			var p models.Product
			if json.Unmarshal([]byte(data), &p) == nil {
				return &p, nil
			}
		}
	}

	// 2. Récupérer de ScyllaDB
	uid, err := uuid.Parse(productID)
	if err != nil {
		return nil, service.ErrNotFound
	}

	p, err := c.fetchFromScylla(ctx, gocql.UUID(uid))
	if err != nil {
		return nil, err
	}

	// 3. Mettre en cache
	if database.Redis != nil {
		if jsonData, err := json.Marshal(p); err == nil {
			database.Redis.Set(ctx, key, jsonData, ProductCacheTTL)
		}
	}
	return p, nil
}

func (c *ProductCatalog) fetchFromScylla(ctx context.Context, productID gocql.UUID) (*models.Product, error) {
	var p models.Product
	var err error

	scan := func(q *gocql.Query) error {
		return q.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Currency,
			&p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	}

	if q := database.GetPreparedProductByID(); q != nil {
		err = scan(q.WithContext(ctx).Bind(productID))
	} else {
		err = scan(c.session.Query(
			`SELECT product_id, name, description, price, currency, stock, is_active, created_at, updated_at
			 FROM products WHERE product_id = ?`, productID,
		).WithContext(ctx))
	}
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, service.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture produit: %w", err)
	}
	return &p, nil
}

// InvalidateProduct purge le cache après une mise à jour catalogue.
func InvalidateProduct(productID string) {
	if database.Redis == nil {
		return
	}
	database.Redis.Del(context.Background(), "product:"+productID)
}
