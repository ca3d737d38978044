package command

import "github.com/example/ec-storefront/internal/domain/checkout"

// Basket Commands
type AddToBasket struct {
	UserID    string `json:"-"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type SetBasketQuantity struct {
	UserID    string `json:"-"`
	ProductID string `json:"-"`
	Quantity  int    `json:"quantity"`
}

type RemoveFromBasket struct {
	UserID    string
	ProductID string
}

// Order Commands
type PlaceOrder struct {
	UserID  string
	Request checkout.Request
}

type DeleteOrder struct {
	OrderID string
}
