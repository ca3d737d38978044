package order

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/example/ec-storefront/internal/events"
	"github.com/shopspring/decimal"
)

const AggregateType = "Order"

type Status string

const StatusPending Status = "pending"

type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

var ErrOrderNotFound = errors.New("order not found")

// Item is an order line. Price is the catalog price captured at checkout.
type Item struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type ShippingAddress struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName,omitempty"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

// Order is immutable after creation; it can only be deleted.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []Item          `json:"items"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// CalculateTotal returns the sum of price times quantity over items.
func CalculateTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

type UserRef struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

type ProductRef struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type ItemView struct {
	Product  *ProductRef     `json:"productId"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// View is an order with its user and product references populated for display.
// A reference whose target no longer exists is nil.
type View struct {
	ID              string          `json:"id"`
	User            *UserRef        `json:"userId"`
	Items           []ItemView      `json:"items"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type Repository interface {
	ListOrders(ctx context.Context) ([]*Order, error)
	// DeleteOrder returns ErrOrderNotFound when no order has the id.
	DeleteOrder(ctx context.Context, id string) error
}

type UserLookup interface {
	GetUsers(ctx context.Context, ids []string) (map[string]*user.User, error)
}

type ProductLookup interface {
	GetProducts(ctx context.Context, ids []string) (map[string]*product.Product, error)
}

// Service serves the admin side of orders.
type Service struct {
	repo      Repository
	users     UserLookup
	products  ProductLookup
	publisher events.Publisher
}

func NewService(repo Repository, users UserLookup, products ProductLookup, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{repo: repo, users: users, products: products, publisher: publisher}
}

// ListDetailed returns every order, newest first, with references populated.
func (s *Service) ListDetailed(ctx context.Context) ([]View, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	userIDs := make([]string, 0, len(orders))
	var productIDs []string
	for _, o := range orders {
		userIDs = append(userIDs, o.UserID)
		for _, item := range o.Items {
			productIDs = append(productIDs, item.ProductID)
		}
	}

	users, err := s.users.GetUsers(ctx, dedupe(userIDs))
	if err != nil {
		return nil, err
	}
	products, err := s.products.GetProducts(ctx, dedupe(productIDs))
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(orders))
	for _, o := range orders {
		views = append(views, populate(o, users, products))
	}
	return views, nil
}

// Delete removes an order. Nothing else is touched.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}

	event, err := events.NewEvent(id, AggregateType, EventOrderDeleted, 2, OrderDeleted{
		OrderID:   id,
		DeletedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[Order] Failed to build %s event for %s: %v", EventOrderDeleted, id, err)
		return nil
	}
	if err := s.publisher.Publish(ctx, id, event); err != nil {
		log.Printf("[Order] Failed to publish %s for %s: %v", EventOrderDeleted, id, err)
	}
	return nil
}

func populate(o *Order, users map[string]*user.User, products map[string]*product.Product) View {
	v := View{
		ID:              o.ID,
		Items:           make([]ItemView, 0, len(o.Items)),
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
	}
	if u, ok := users[o.UserID]; ok {
		v.User = &UserRef{ID: u.ID, Login: u.Login, Email: u.Email}
	}
	for _, item := range o.Items {
		iv := ItemView{Quantity: item.Quantity, Price: item.Price}
		if p, ok := products[item.ProductID]; ok {
			iv.Product = &ProductRef{ID: p.ID, Name: p.Name, Price: p.Price}
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
