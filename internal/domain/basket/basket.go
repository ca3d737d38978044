package basket

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ec-storefront/internal/domain/product"
)

var (
	ErrInvalidProduct  = errors.New("productId is required")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotInBasket = errors.New("product not found in basket")
	ErrInvalidPolicy   = errors.New("stock policy must be requested or cumulative")
)

// Item is one stored basket entry. A basket holds at most one Item per ProductID.
type Item struct {
	ProductID string `json:"productId" bson:"productId"`
	Quantity  int    `json:"quantity" bson:"quantity"`
}

// Line is a basket entry with its product resolved from the catalog.
type Line struct {
	Product  *product.Product `json:"productId"`
	Quantity int              `json:"quantity"`
}

// StockPolicy selects what an add is checked against.
type StockPolicy string

const (
	// StockCheckRequested compares only the quantity being added with stock.
	StockCheckRequested StockPolicy = "requested"
	// StockCheckCumulative compares the resulting basket quantity with stock.
	StockCheckCumulative StockPolicy = "cumulative"
)

func ParseStockPolicy(s string) (StockPolicy, error) {
	switch StockPolicy(s) {
	case "", StockCheckRequested:
		return StockCheckRequested, nil
	case StockCheckCumulative:
		return StockCheckCumulative, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
}

// Repository reads and writes the basket embedded in a user record.
// Both methods return user.ErrUserNotFound for an unknown user.
type Repository interface {
	GetBasket(ctx context.Context, userID string) ([]Item, error)
	SaveBasket(ctx context.Context, userID string, items []Item) error
}

// Catalog is the part of the product store the basket reads.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*product.Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]*product.Product, error)
}

// Service keeps a user's basket consistent with the catalog at mutation time.
// It never reserves or changes stock.
type Service struct {
	repo    Repository
	catalog Catalog
	policy  StockPolicy
}

func NewService(repo Repository, catalog Catalog, policy StockPolicy) *Service {
	if policy == "" {
		policy = StockCheckRequested
	}
	return &Service{repo: repo, catalog: catalog, policy: policy}
}

// Get returns the resolved basket. Entries whose product no longer exists are left
// out of the result but stay in storage.
func (s *Service) Get(ctx context.Context, userID string) ([]Line, error) {
	items, err := s.repo.GetBasket(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, items)
}

// Add merges quantity into the entry for productID, appending a new entry if needed.
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) ([]Line, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	items, err := s.repo.GetBasket(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	idx := indexOf(items, productID)
	required := quantity
	if s.policy == StockCheckCumulative && idx >= 0 {
		required += items[idx].Quantity
	}
	if err := p.CheckAvailable(required); err != nil {
		return nil, err
	}

	if idx >= 0 {
		items[idx].Quantity += quantity
	} else {
		items = append(items, Item{ProductID: productID, Quantity: quantity})
	}

	if err := s.repo.SaveBasket(ctx, userID, items); err != nil {
		return nil, err
	}
	return s.resolve(ctx, items)
}

// SetQuantity replaces the quantity of an entry already in the basket.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) ([]Line, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	items, err := s.repo.GetBasket(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := p.CheckAvailable(quantity); err != nil {
		return nil, err
	}

	idx := indexOf(items, productID)
	if idx < 0 {
		return nil, ErrItemNotInBasket
	}
	items[idx].Quantity = quantity

	if err := s.repo.SaveBasket(ctx, userID, items); err != nil {
		return nil, err
	}
	return s.resolve(ctx, items)
}

// Remove drops the entry for productID. Removing an absent entry is not an error.
func (s *Service) Remove(ctx context.Context, userID, productID string) ([]Line, error) {
	items, err := s.repo.GetBasket(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}

	if err := s.repo.SaveBasket(ctx, userID, kept); err != nil {
		return nil, err
	}
	return s.resolve(ctx, kept)
}

func (s *Service) resolve(ctx context.Context, items []Item) ([]Line, error) {
	lines := make([]Line, 0, len(items))
	if len(items) == 0 {
		return lines, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		p, ok := products[item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, Line{Product: p, Quantity: item.Quantity})
	}
	return lines, nil
}

func indexOf(items []Item, productID string) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
