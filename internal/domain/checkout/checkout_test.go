package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/ec-storefront/internal/domain/basket"
	"github.com/example/ec-storefront/internal/domain/checkout"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/infrastructure/store/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor(t *testing.T) (*checkout.Processor, *store.MemoryStore, *mocks.MockPublisher) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.CreateUser(ctx, &user.User{ID: "user-1", Login: "aigerim", Email: "aigerim@example.com", Role: user.RoleUser}))
	require.NoError(t, s.CreateProduct(ctx, &product.Product{ID: "P1", Name: "Green tea", Price: decimal.NewFromInt(100), Stock: 5}))
	require.NoError(t, s.CreateProduct(ctx, &product.Product{ID: "P2", Name: "Porcelain cup", Price: decimal.NewFromInt(2500), Stock: 1}))

	publisher := mocks.NewMockPublisher()
	return checkout.NewProcessor(s, publisher), s, publisher
}

func validRequest() checkout.Request {
	return checkout.Request{
		FirstName:     "Aigerim",
		Email:         "aigerim@example.com",
		Phone:         "+7 700 000 0000",
		Address:       "Abay 1",
		City:          "Almaty",
		PostalCode:    "050000",
		PaymentMethod: "card",
	}
}

func stockOf(t *testing.T, s *store.MemoryStore, id string) int {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

// ============================================
// Request Validation Tests
// ============================================

func TestRequest_Validate_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *checkout.Request)
		field  string
	}{
		{"firstName", func(r *checkout.Request) { r.FirstName = "" }, "firstName"},
		{"blank firstName", func(r *checkout.Request) { r.FirstName = "   " }, "firstName"},
		{"address", func(r *checkout.Request) { r.Address = "" }, "address"},
		{"city", func(r *checkout.Request) { r.City = "" }, "city"},
		{"postalCode", func(r *checkout.Request) { r.PostalCode = "" }, "postalCode"},
		{"paymentMethod", func(r *checkout.Request) { r.PaymentMethod = "" }, "paymentMethod"},
		{"unknown paymentMethod", func(r *checkout.Request) { r.PaymentMethod = "barter" }, "paymentMethod"},
		{"email", func(r *checkout.Request) { r.Email = "" }, "email"},
		{"malformed email", func(r *checkout.Request) { r.Email = "not-an-email" }, "email"},
		{"phone", func(r *checkout.Request) { r.Phone = "" }, "phone"},
		{"blank phone", func(r *checkout.Request) { r.Phone = "  " }, "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := req.Validate()

			var verr *checkout.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, []string{tt.field}, verr.Fields)
		})
	}
}

func TestRequest_Validate_LastNameOptional(t *testing.T) {
	req := validRequest()
	req.LastName = ""

	assert.NoError(t, req.Validate())
}

func TestProcessor_Checkout_MissingContactLeavesStateUnchanged(t *testing.T) {
	processor, s, publisher := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{{ProductID: "P1", Quantity: 1}}))

	req := validRequest()
	req.Email = ""
	req.Phone = ""
	_, err := processor.Checkout(ctx, "user-1", req)

	var verr *checkout.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{"email", "phone"}, verr.Fields)
	assert.Equal(t, 5, stockOf(t, s, "P1"))
	orders, _ := s.ListOrders(ctx)
	assert.Empty(t, orders)
	assert.Empty(t, publisher.PublishCalls)
}

// ============================================
// Checkout Tests
// ============================================

func TestProcessor_Checkout_Success(t *testing.T) {
	processor, s, _ := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{{ProductID: "P1", Quantity: 3}}))

	o, err := processor.Checkout(ctx, "user-1", validRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "user-1", o.UserID)
	assert.True(t, decimal.NewFromInt(300).Equal(o.Total))
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentCard, o.PaymentMethod)
	assert.Equal(t, "Almaty", o.ShippingAddress.City)

	assert.Equal(t, 2, stockOf(t, s, "P1"))
	items, err := s.GetBasket(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, items)

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestProcessor_Checkout_SeveralProducts(t *testing.T) {
	processor, s, _ := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, s.CreateProduct(ctx, &product.Product{ID: "P3", Name: "Honey jar", Price: decimal.NewFromInt(250), Stock: 4}))
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{
		{ProductID: "P3", Quantity: 2},
		{ProductID: "P1", Quantity: 3},
	}))

	o, err := processor.Checkout(ctx, "user-1", validRequest())

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(800).Equal(o.Total), "total was %s", o.Total)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "P3", o.Items[0].ProductID)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(250).Equal(o.Items[0].Price))
	assert.Equal(t, "P1", o.Items[1].ProductID)
	assert.Equal(t, 3, o.Items[1].Quantity)
	assert.True(t, decimal.NewFromInt(100).Equal(o.Items[1].Price))

	assert.Equal(t, 2, stockOf(t, s, "P1"))
	assert.Equal(t, 2, stockOf(t, s, "P3"))
	assert.Equal(t, 1, stockOf(t, s, "P2"))
	items, err := s.GetBasket(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestProcessor_Checkout_PriceIsSnapshot(t *testing.T) {
	processor, s, _ := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{{ProductID: "P1", Quantity: 1}}))

	o, err := processor.Checkout(ctx, "user-1", validRequest())
	require.NoError(t, err)

	require.NoError(t, s.CreateProduct(ctx, &product.Product{ID: "P1", Name: "Green tea", Price: decimal.NewFromInt(999), Stock: 4}))
	stored, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(stored.Items[0].Price))
}

func TestProcessor_Checkout_OutOfStockNamesProduct(t *testing.T) {
	processor, s, publisher := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{
		{ProductID: "P1", Quantity: 1},
		{ProductID: "P2", Quantity: 2},
	}))

	_, err := processor.Checkout(ctx, "user-1", validRequest())

	require.ErrorIs(t, err, product.ErrOutOfStock)
	assert.Contains(t, err.Error(), "Porcelain cup")
	assert.Equal(t, 5, stockOf(t, s, "P1"))
	assert.Equal(t, 1, stockOf(t, s, "P2"))
	items, _ := s.GetBasket(ctx, "user-1")
	assert.Len(t, items, 2)
	orders, _ := s.ListOrders(ctx)
	assert.Empty(t, orders)
	assert.Empty(t, publisher.PublishCalls)
}

func TestProcessor_Checkout_EmptyBasket(t *testing.T) {
	processor, s, _ := newTestProcessor(t)

	_, err := processor.Checkout(context.Background(), "user-1", validRequest())

	assert.ErrorIs(t, err, checkout.ErrEmptyBasket)
	orders, _ := s.ListOrders(context.Background())
	assert.Empty(t, orders)
}

func TestProcessor_Checkout_IgnoresClientBasket(t *testing.T) {
	processor, s, _ := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{{ProductID: "P1", Quantity: 2}}))

	req := validRequest()
	req.Basket = json.RawMessage(`[{"productId":{"id":"P2","price":1},"quantity":1}]`)
	o, err := processor.Checkout(ctx, "user-1", req)

	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "P1", o.Items[0].ProductID)
	assert.True(t, decimal.NewFromInt(200).Equal(o.Total))
	assert.Equal(t, 1, stockOf(t, s, "P2"))
}

func TestProcessor_Checkout_ValidationBeforeStore(t *testing.T) {
	processor, s, _ := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{{ProductID: "P1", Quantity: 1}}))

	req := validRequest()
	req.City = ""
	_, err := processor.Checkout(ctx, "user-1", req)

	var verr *checkout.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 5, stockOf(t, s, "P1"))
}

func TestProcessor_Checkout_VanishedProduct(t *testing.T) {
	processor, s, _ := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{
		{ProductID: "P1", Quantity: 1},
		{ProductID: "gone", Quantity: 1},
	}))

	_, err := processor.Checkout(ctx, "user-1", validRequest())

	assert.ErrorIs(t, err, product.ErrProductNotFound)
	assert.Equal(t, 5, stockOf(t, s, "P1"))
}

func TestProcessor_Checkout_UnknownUser(t *testing.T) {
	processor, _, _ := newTestProcessor(t)

	_, err := processor.Checkout(context.Background(), "ghost", validRequest())

	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestProcessor_Checkout_PublishesOrderPlaced(t *testing.T) {
	processor, s, publisher := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{{ProductID: "P1", Quantity: 3}}))

	o, err := processor.Checkout(ctx, "user-1", validRequest())
	require.NoError(t, err)

	require.Len(t, publisher.PublishCalls, 1)
	call := publisher.PublishCalls[0]
	assert.Equal(t, o.ID, call.Key)
	assert.Equal(t, order.EventOrderPlaced, call.Event.EventType)
	assert.Equal(t, order.AggregateType, call.Event.AggregateType)

	var data order.OrderPlaced
	require.NoError(t, json.Unmarshal(call.Event.Data, &data))
	assert.Equal(t, o.ID, data.OrderID)
	assert.Equal(t, "aigerim@example.com", data.Email)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "Green tea", data.Items[0].Name)
	assert.True(t, decimal.NewFromInt(300).Equal(data.Total))
	assert.WithinDuration(t, time.Now(), data.PlacedAt, time.Minute)
}

func TestProcessor_Checkout_PublishFailureKeepsOrder(t *testing.T) {
	processor, s, publisher := newTestProcessor(t)
	ctx := context.Background()
	publisher.PublishErr = errors.New("broker unavailable")
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{{ProductID: "P1", Quantity: 1}}))

	o, err := processor.Checkout(ctx, "user-1", validRequest())

	require.NoError(t, err)
	_, err = s.GetOrder(ctx, o.ID)
	assert.NoError(t, err)
}

func TestProcessor_Checkout_ConcurrentLastUnit(t *testing.T) {
	processor, s, _ := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &user.User{ID: "user-2", Login: "daniyar", Email: "daniyar@example.com", Role: user.RoleUser}))
	require.NoError(t, s.SaveBasket(ctx, "user-1", []basket.Item{{ProductID: "P2", Quantity: 1}}))
	require.NoError(t, s.SaveBasket(ctx, "user-2", []basket.Item{{ProductID: "P2", Quantity: 1}}))

	errs := make(chan error, 2)
	for _, id := range []string{"user-1", "user-2"} {
		go func(userID string) {
			_, err := processor.Checkout(ctx, userID, validRequest())
			errs <- err
		}(id)
	}

	var succeeded, outOfStock int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, product.ErrOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, outOfStock)
	assert.Equal(t, 0, stockOf(t, s, "P2"))
}
