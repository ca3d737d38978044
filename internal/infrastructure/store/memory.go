package store

import (
	"context"
	"sync"

	"github.com/example/ec-storefront/internal/domain/basket"
	"github.com/example/ec-storefront/internal/domain/checkout"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/domain/user"
)

type memUser struct {
	user   user.User
	basket []basket.Item
}

type memState struct {
	users    map[string]*memUser
	products map[string]*product.Product
	orders   map[string]*order.Order
}

func newMemState() *memState {
	return &memState{
		users:    make(map[string]*memUser),
		products: make(map[string]*product.Product),
		orders:   make(map[string]*order.Order),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for id, u := range s.users {
		c.users[id] = &memUser{user: u.user, basket: append([]basket.Item(nil), u.basket...)}
	}
	for id, p := range s.products {
		cp := *p
		c.products[id] = &cp
	}
	for id, o := range s.orders {
		c.orders[id] = cloneOrder(o)
	}
	return c
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	c.Items = append([]order.Item(nil), o.Items...)
	return &c
}

// MemoryStore keeps users, products and orders in process memory. Transactions
// hold the write lock for their whole duration and restore a snapshot on error.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// Product operations

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getProduct(id)
}

func (m *MemoryStore) GetProducts(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*product.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.state.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *MemoryStore) ListProducts(ctx context.Context) ([]*product.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*product.Product, 0, len(m.state.products))
	for _, p := range m.state.products {
		cp := *p
		out = append(out, &cp)
	}
	sortProducts(out)
	return out, nil
}

func (m *MemoryStore) CreateProduct(ctx context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.state.products[p.ID] = &cp
	return nil
}

// User operations

func (m *MemoryStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.state.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cu := u.user
	return &cu, nil
}

func (m *MemoryStore) GetUsers(ctx context.Context, ids []string) (map[string]*user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*user.User, len(ids))
	for _, id := range ids {
		if u, ok := m.state.users[id]; ok {
			cu := u.user
			out[id] = &cu
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.state.users {
		if existing.user.Login == u.Login || existing.user.Email == u.Email {
			return user.ErrDuplicateUser
		}
	}
	m.state.users[u.ID] = &memUser{user: *u, basket: []basket.Item{}}
	return nil
}

// Basket operations

func (m *MemoryStore) GetBasket(ctx context.Context, userID string) ([]basket.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getBasket(userID)
}

func (m *MemoryStore) SaveBasket(ctx context.Context, userID string, items []basket.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.saveBasket(userID, items)
}

// Order operations

func (m *MemoryStore) ListOrders(ctx context.Context) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*order.Order, 0, len(m.state.orders))
	for _, o := range m.state.orders {
		out = append(out, cloneOrder(o))
	}
	return out, nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.state.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryStore) DeleteOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.orders[id]; !ok {
		return order.ErrOrderNotFound
	}
	delete(m.state.orders, id)
	return nil
}

// WithinTx implements checkout.Store.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(ctx, &memTx{state: m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// memTx operates on state directly; the caller holds the store's write lock.
type memTx struct {
	state *memState
}

func (t *memTx) GetBasket(ctx context.Context, userID string) ([]basket.Item, error) {
	return t.state.getBasket(userID)
}

func (t *memTx) SaveBasket(ctx context.Context, userID string, items []basket.Item) error {
	return t.state.saveBasket(userID, items)
}

func (t *memTx) GetProductForUpdate(ctx context.Context, id string) (*product.Product, error) {
	return t.state.getProduct(id)
}

func (t *memTx) CreateOrder(ctx context.Context, o *order.Order) error {
	t.state.orders[o.ID] = cloneOrder(o)
	return nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	p, ok := t.state.products[productID]
	if !ok {
		return product.ErrProductNotFound
	}
	if p.Stock < quantity {
		return product.ErrOutOfStock
	}
	p.Stock -= quantity
	return nil
}

func (s *memState) getProduct(id string) (*product.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memState) getBasket(userID string) ([]basket.Item, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return append([]basket.Item{}, u.basket...), nil
}

func (s *memState) saveBasket(userID string, items []basket.Item) error {
	u, ok := s.users[userID]
	if !ok {
		return user.ErrUserNotFound
	}
	u.basket = append([]basket.Item{}, items...)
	return nil
}
