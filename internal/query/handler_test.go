package query

import (
	"context"
	"testing"
	"time"

	"github.com/example/ec-storefront/internal/domain/basket"
	"github.com/example/ec-storefront/internal/domain/checkout"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.CreateUser(ctx, &user.User{ID: "user-1", Login: "aigerim", Email: "aigerim@example.com", Role: user.RoleUser}))
	require.NoError(t, s.CreateProduct(ctx, &product.Product{
		ID: "prod-1", Name: "Green tea", Price: decimal.NewFromInt(100), Stock: 5,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, s.CreateProduct(ctx, &product.Product{
		ID: "prod-2", Name: "Porcelain cup", Price: decimal.NewFromInt(2500), Stock: 1,
		CreatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}))

	handler := NewHandler(
		basket.NewService(s, s, basket.StockCheckRequested),
		order.NewService(s, s, s, nil),
		product.NewService(s),
	)
	return handler, s
}

// ============================================
// Basket Query Tests
// ============================================

func TestHandler_GetBasket_Empty(t *testing.T) {
	handler, _ := newTestHandler(t)

	lines, err := handler.GetBasket(context.Background(), "user-1")

	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
}

func TestHandler_GetBasket_DropsVanishedProducts(t *testing.T) {
	handler, s := newTestHandler(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{
		{ProductID: "prod-1", Quantity: 2},
		{ProductID: "gone", Quantity: 1},
	}))

	lines, err := handler.GetBasket(ctx, "user-1")

	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "prod-1", lines[0].Product.ID)
}

func TestHandler_GetBasket_UnknownUser(t *testing.T) {
	handler, _ := newTestHandler(t)

	_, err := handler.GetBasket(context.Background(), "ghost")

	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

// ============================================
// Product Query Tests
// ============================================

func TestHandler_ListProducts(t *testing.T) {
	handler, _ := newTestHandler(t)

	products, err := handler.ListProducts(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "prod-1", products[0].ID)
}

func TestHandler_ListProducts_EmptyCatalog(t *testing.T) {
	s := store.NewMemoryStore()
	handler := NewHandler(nil, nil, product.NewService(s))

	products, err := handler.ListProducts(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

// ============================================
// Order Query Tests
// ============================================

func TestHandler_ListOrders_Populated(t *testing.T) {
	handler, s := newTestHandler(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{{ProductID: "prod-1", Quantity: 3}}))
	_, err := checkout.NewProcessor(s, nil).Checkout(ctx, "user-1", checkout.Request{
		FirstName: "Aigerim", Email: "aigerim@example.com", Phone: "+7 700 000 0000", Address: "Abay 1", City: "Almaty", PostalCode: "050000", PaymentMethod: "card",
	})
	require.NoError(t, err)

	views, err := handler.ListOrders(ctx)

	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].User)
	assert.Equal(t, "aigerim", views[0].User.Login)
	require.Len(t, views[0].Items, 1)
	require.NotNil(t, views[0].Items[0].Product)
	assert.Equal(t, "Green tea", views[0].Items[0].Product.Name)
}
