package query

import (
	"context"
	"log"

	"github.com/example/ec-storefront/internal/domain/basket"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
)

type Handler struct {
	basketSvc  *basket.Service
	orderSvc   *order.Service
	productSvc *product.Service
}

func NewHandler(basketSvc *basket.Service, orderSvc *order.Service, productSvc *product.Service) *Handler {
	return &Handler{
		basketSvc:  basketSvc,
		orderSvc:   orderSvc,
		productSvc: productSvc,
	}
}

// Basket
func (h *Handler) GetBasket(ctx context.Context, userID string) ([]basket.Line, error) {
	lines, err := h.basketSvc.Get(ctx, userID)
	if err != nil {
		log.Printf("[Query] Error getting basket of user %s: %v", userID, err)
		return nil, err
	}
	return lines, nil
}

// Products
func (h *Handler) ListProducts(ctx context.Context) ([]*product.Product, error) {
	products, err := h.productSvc.List(ctx)
	if err != nil {
		log.Printf("[Query] Error listing products: %v", err)
		return nil, err
	}
	if products == nil {
		products = []*product.Product{}
	}
	return products, nil
}

// ListOrders returns every order with its references populated (admin use).
func (h *Handler) ListOrders(ctx context.Context) ([]order.View, error) {
	views, err := h.orderSvc.ListDetailed(ctx)
	if err != nil {
		log.Printf("[Query] Error listing orders: %v", err)
		return nil, err
	}
	return views, nil
}
