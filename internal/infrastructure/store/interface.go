package store

import (
	"context"
	"sort"

	"github.com/example/ec-storefront/internal/domain/basket"
	"github.com/example/ec-storefront/internal/domain/checkout"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/domain/user"
)

// Store is implemented by every backend and serves all domain services.
type Store interface {
	product.Repository
	user.Repository
	basket.Repository
	order.Repository
	checkout.Store
	GetOrder(ctx context.Context, id string) (*order.Order, error)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MongoStore)(nil)
)

// sortProducts orders a catalog listing oldest first, by name within equal timestamps.
func sortProducts(products []*product.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.Before(products[j].CreatedAt)
		}
		return products[i].Name < products[j].Name
	})
}
