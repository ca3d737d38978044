package command

import (
	"context"
	"log"

	"github.com/example/ec-storefront/internal/domain/basket"
	"github.com/example/ec-storefront/internal/domain/checkout"
	"github.com/example/ec-storefront/internal/domain/order"
)

// Handler is the entry point for every state-changing request.
type Handler struct {
	basketSvc *basket.Service
	processor *checkout.Processor
	orderSvc  *order.Service
}

func NewHandler(basketSvc *basket.Service, processor *checkout.Processor, orderSvc *order.Service) *Handler {
	return &Handler{
		basketSvc: basketSvc,
		processor: processor,
		orderSvc:  orderSvc,
	}
}

// AddToBasket returns the resolved basket after the merge.
func (h *Handler) AddToBasket(ctx context.Context, cmd AddToBasket) ([]basket.Line, error) {
	return h.basketSvc.Add(ctx, cmd.UserID, cmd.ProductID, cmd.Quantity)
}

func (h *Handler) SetBasketQuantity(ctx context.Context, cmd SetBasketQuantity) ([]basket.Line, error) {
	return h.basketSvc.SetQuantity(ctx, cmd.UserID, cmd.ProductID, cmd.Quantity)
}

func (h *Handler) RemoveFromBasket(ctx context.Context, cmd RemoveFromBasket) ([]basket.Line, error) {
	return h.basketSvc.Remove(ctx, cmd.UserID, cmd.ProductID)
}

// PlaceOrder checks out the user's stored basket.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder) (*order.Order, error) {
	o, err := h.processor.Checkout(ctx, cmd.UserID, cmd.Request)
	if err != nil {
		return nil, err
	}
	log.Printf("[Command] Order %s placed by user %s (%d items, total %s)", o.ID, o.UserID, len(o.Items), o.Total.StringFixed(2))
	return o, nil
}

func (h *Handler) DeleteOrder(ctx context.Context, cmd DeleteOrder) error {
	return h.orderSvc.Delete(ctx, cmd.OrderID)
}
