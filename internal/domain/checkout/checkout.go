package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/example/ec-storefront/internal/domain/basket"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/events"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var ErrEmptyBasket = errors.New("basket is empty")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Request is the checkout form. Basket is the client's view of its basket; it is
// accepted for compatibility and never read, the stored basket is authoritative.
type Request struct {
	Basket        json.RawMessage `json:"basket,omitempty"`
	FirstName     string          `json:"firstName" validate:"required"`
	LastName      string          `json:"lastName"`
	Email         string          `json:"email" validate:"required,email"`
	Phone         string          `json:"phone" validate:"required"`
	Address       string          `json:"address" validate:"required"`
	City          string          `json:"city" validate:"required"`
	PostalCode    string          `json:"postalCode" validate:"required"`
	PaymentMethod string          `json:"paymentMethod" validate:"required,oneof=card cash online"`
}

// ValidationError lists the request fields that failed validation, by JSON name.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

// Validate trims every text field and checks the required ones.
func (r *Request) Validate() error {
	for _, f := range []*string{&r.FirstName, &r.LastName, &r.Email, &r.Phone, &r.Address, &r.City, &r.PostalCode, &r.PaymentMethod} {
		*f = strings.TrimSpace(*f)
	}

	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (r *Request) shippingAddress() order.ShippingAddress {
	return order.ShippingAddress{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Email:      r.Email,
		Phone:      r.Phone,
		Address:    r.Address,
		City:       r.City,
		PostalCode: r.PostalCode,
	}
}

// Tx is the set of store operations checkout performs inside one transaction.
type Tx interface {
	GetBasket(ctx context.Context, userID string) ([]basket.Item, error)
	SaveBasket(ctx context.Context, userID string, items []basket.Item) error
	// GetProductForUpdate reads a product and, where the backend supports it, locks
	// it until the transaction ends.
	GetProductForUpdate(ctx context.Context, id string) (*product.Product, error)
	CreateOrder(ctx context.Context, o *order.Order) error
	// DecrementStock lowers stock by quantity only if stock >= quantity, and
	// returns product.ErrOutOfStock otherwise.
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

// Store runs fn in a transaction. It commits when fn returns nil and rolls back
// otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Processor struct {
	store     Store
	publisher events.Publisher
	now       func() time.Time
}

func NewProcessor(store Store, publisher events.Publisher) *Processor {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Processor{
		store:     store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Checkout turns the user's stored basket into an order. Stock is checked for every
// line before anything is written; the order insert, the stock decrements and the
// basket reset commit together or not at all.
func (p *Processor) Checkout(ctx context.Context, userID string, req Request) (*order.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		placed *order.Order
		names  map[string]string
	)
	err := p.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		items, err := tx.GetBasket(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyBasket
		}

		// rows are locked in product id order so concurrent checkouts cannot deadlock
		products := make([]*product.Product, len(items))
		for _, i := range lockOrder(items) {
			prod, err := tx.GetProductForUpdate(ctx, items[i].ProductID)
			if err != nil {
				return fmt.Errorf("load product %s: %w", items[i].ProductID, err)
			}
			products[i] = prod
		}

		for i, item := range items {
			if err := products[i].CheckAvailable(item.Quantity); err != nil {
				return err
			}
		}

		o := &order.Order{
			ID:              uuid.New().String(),
			UserID:          userID,
			Items:           make([]order.Item, 0, len(items)),
			ShippingAddress: req.shippingAddress(),
			PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
			Status:          order.StatusPending,
			CreatedAt:       p.now(),
		}
		names = make(map[string]string, len(items))
		for i, item := range items {
			o.Items = append(o.Items, order.Item{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     products[i].Price,
			})
			names[item.ProductID] = products[i].Name
		}
		o.Total = order.CalculateTotal(o.Items)

		if err := tx.CreateOrder(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for i, item := range o.Items {
			if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, product.ErrOutOfStock) {
					return &product.OutOfStockError{
						ProductID: item.ProductID,
						Name:      products[i].Name,
						Requested: item.Quantity,
						Available: products[i].Stock,
					}
				}
				return fmt.Errorf("decrement stock of %s: %w", item.ProductID, err)
			}
		}

		if err := tx.SaveBasket(ctx, userID, []basket.Item{}); err != nil {
			return fmt.Errorf("clear basket: %w", err)
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.publishPlaced(ctx, placed, names)
	return placed, nil
}

// lockOrder returns the indexes of items sorted by product id.
func lockOrder(items []basket.Item) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return items[idx[a]].ProductID < items[idx[b]].ProductID
	})
	return idx
}

func (p *Processor) publishPlaced(ctx context.Context, o *order.Order, names map[string]string) {
	items := make([]order.PlacedItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, order.PlacedItem{
			ProductID: item.ProductID,
			Name:      names[item.ProductID],
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	event, err := events.NewEvent(o.ID, order.AggregateType, order.EventOrderPlaced, 1, order.OrderPlaced{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Email:         o.ShippingAddress.Email,
		FirstName:     o.ShippingAddress.FirstName,
		Items:         items,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		PlacedAt:      o.CreatedAt,
	})
	if err != nil {
		log.Printf("[Checkout] Failed to build %s event for order %s: %v", order.EventOrderPlaced, o.ID, err)
		return
	}
	if err := p.publisher.Publish(ctx, o.ID, event); err != nil {
		log.Printf("[Checkout] Failed to publish %s for order %s: %v", order.EventOrderPlaced, o.ID, err)
	}
}
