package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/domain/basket"
	"github.com/example/ec-storefront/internal/domain/checkout"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	productsCollection = "products"
	ordersCollection   = "orders"
)

type productDoc struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Price       primitive.Decimal128 `bson:"price"`
	Stock       int                  `bson:"stock"`
	Category    string               `bson:"category"`
	Description string               `bson:"description,omitempty"`
	Image       string               `bson:"image,omitempty"`
	CreatedAt   time.Time            `bson:"createdAt"`
}

// userDoc embeds the basket in the user document.
type userDoc struct {
	ID     string        `bson:"_id"`
	Login  string        `bson:"login"`
	Email  string        `bson:"email"`
	Role   string        `bson:"role"`
	Name   string        `bson:"name,omitempty"`
	Phone  string        `bson:"phone,omitempty"`
	Basket []basket.Item `bson:"basket"`
}

type orderItemDoc struct {
	ProductID string               `bson:"productId"`
	Quantity  int                  `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
}

type shippingDoc struct {
	FirstName  string `bson:"firstName"`
	LastName   string `bson:"lastName,omitempty"`
	Email      string `bson:"email"`
	Phone      string `bson:"phone"`
	Address    string `bson:"address"`
	City       string `bson:"city"`
	PostalCode string `bson:"postalCode"`
}

type orderDoc struct {
	ID              string               `bson:"_id"`
	UserID          string               `bson:"userId"`
	Items           []orderItemDoc       `bson:"items"`
	Total           primitive.Decimal128 `bson:"total"`
	ShippingAddress shippingDoc          `bson:"shippingAddress"`
	PaymentMethod   string               `bson:"paymentMethod"`
	Status          string               `bson:"status"`
	CreatedAt       time.Time            `bson:"createdAt"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(d.String())
}

func newProductDoc(p *product.Product) (productDoc, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return productDoc{}, fmt.Errorf("encode price of %s: %w", p.ID, err)
	}
	return productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Price:       price,
		Stock:       p.Stock,
		Category:    p.Category,
		Description: p.Description,
		Image:       p.Image,
		CreatedAt:   p.CreatedAt,
	}, nil
}

func (d productDoc) toProduct() (*product.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return nil, fmt.Errorf("decode price of %s: %w", d.ID, err)
	}
	return &product.Product{
		ID:          d.ID,
		Name:        d.Name,
		Price:       price,
		Stock:       d.Stock,
		Category:    d.Category,
		Description: d.Description,
		Image:       d.Image,
		CreatedAt:   d.CreatedAt,
	}, nil
}

func (d userDoc) toUser() *user.User {
	return &user.User{ID: d.ID, Login: d.Login, Email: d.Email, Role: d.Role, Name: d.Name, Phone: d.Phone}
}

func newOrderDoc(o *order.Order) (orderDoc, error) {
	total, err := toDecimal128(o.Total)
	if err != nil {
		return orderDoc{}, fmt.Errorf("encode total of %s: %w", o.ID, err)
	}
	doc := orderDoc{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           make([]orderItemDoc, 0, len(o.Items)),
		Total:           total,
		ShippingAddress: shippingDoc(o.ShippingAddress),
		PaymentMethod:   string(o.PaymentMethod),
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
	}
	for _, item := range o.Items {
		price, err := toDecimal128(item.Price)
		if err != nil {
			return orderDoc{}, fmt.Errorf("encode price of %s: %w", item.ProductID, err)
		}
		doc.Items = append(doc.Items, orderItemDoc{ProductID: item.ProductID, Quantity: item.Quantity, Price: price})
	}
	return doc, nil
}

func (d orderDoc) toOrder() (*order.Order, error) {
	total, err := fromDecimal128(d.Total)
	if err != nil {
		return nil, fmt.Errorf("decode total of %s: %w", d.ID, err)
	}
	o := &order.Order{
		ID:              d.ID,
		UserID:          d.UserID,
		Items:           make([]order.Item, 0, len(d.Items)),
		Total:           total,
		ShippingAddress: order.ShippingAddress(d.ShippingAddress),
		PaymentMethod:   order.PaymentMethod(d.PaymentMethod),
		Status:          order.Status(d.Status),
		CreatedAt:       d.CreatedAt,
	}
	for _, item := range d.Items {
		price, err := fromDecimal128(item.Price)
		if err != nil {
			return nil, fmt.Errorf("decode price of %s: %w", item.ProductID, err)
		}
		o.Items = append(o.Items, order.Item{ProductID: item.ProductID, Quantity: item.Quantity, Price: price})
	}
	return o, nil
}

// MongoStore implements Store on MongoDB. Checkout transactions need a replica set.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(database)}
}

// ConnectMongo connects and pings the server.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the unique user indexes and the order listing index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "login", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	_, err = s.db.Collection(ordersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create order index: %w", err)
	}
	return nil
}

// Product operations

func (s *MongoStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	return findProduct(ctx, s.db, id)
}

func (s *MongoStore) GetProducts(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	out := make(map[string]*product.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cur, err := s.db.Collection(productsCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		p, err := d.toProduct()
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, nil
}

func (s *MongoStore) ListProducts(ctx context.Context) ([]*product.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "name", Value: 1}})
	cur, err := s.db.Collection(productsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	products := make([]*product.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.toProduct()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *MongoStore) CreateProduct(ctx context.Context, p *product.Product) error {
	doc, err := newProductDoc(p)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(productsCollection).ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func findProduct(ctx context.Context, db *mongo.Database, id string) (*product.Product, error) {
	var doc productDoc
	err := db.Collection(productsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, product.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toProduct()
}

// User operations

func (s *MongoStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	var doc userDoc
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toUser(), nil
}

func (s *MongoStore) GetUsers(ctx context.Context, ids []string) (map[string]*user.User, error) {
	out := make(map[string]*user.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	opts := options.Find().SetProjection(bson.M{"basket": 0})
	cur, err := s.db.Collection(usersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID] = d.toUser()
	}
	return out, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u *user.User) error {
	doc := userDoc{
		ID:     u.ID,
		Login:  u.Login,
		Email:  u.Email,
		Role:   u.Role,
		Name:   u.Name,
		Phone:  u.Phone,
		Basket: []basket.Item{},
	}
	_, err := s.db.Collection(usersCollection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return user.ErrDuplicateUser
	}
	return err
}

// Basket operations

func (s *MongoStore) GetBasket(ctx context.Context, userID string) ([]basket.Item, error) {
	return findBasket(ctx, s.db, userID)
}

func (s *MongoStore) SaveBasket(ctx context.Context, userID string, items []basket.Item) error {
	return updateBasket(ctx, s.db, userID, items)
}

func findBasket(ctx context.Context, db *mongo.Database, userID string) ([]basket.Item, error) {
	var doc struct {
		Basket []basket.Item `bson:"basket"`
	}
	opts := options.FindOne().SetProjection(bson.M{"basket": 1})
	err := db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if doc.Basket == nil {
		return []basket.Item{}, nil
	}
	return doc.Basket, nil
}

func updateBasket(ctx context.Context, db *mongo.Database, userID string, items []basket.Item) error {
	if items == nil {
		items = []basket.Item{}
	}
	res, err := db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"basket": items}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// Order operations

func (s *MongoStore) ListOrders(ctx context.Context) ([]*order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.db.Collection(ordersCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	orders := make([]*order.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.toOrder()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (s *MongoStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	var doc orderDoc
	err := s.db.Collection(ordersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toOrder()
}

func (s *MongoStore) DeleteOrder(ctx context.Context, id string) error {
	res, err := s.db.Collection(ordersCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// WithinTx implements checkout.Store with a session transaction. The driver may
// run fn more than once on transient errors.
func (s *MongoStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mongoTx{db: s.db})
	})
	return err
}

// mongoTx runs every operation with the session context it is handed.
type mongoTx struct {
	db *mongo.Database
}

func (t *mongoTx) GetBasket(ctx context.Context, userID string) ([]basket.Item, error) {
	return findBasket(ctx, t.db, userID)
}

func (t *mongoTx) SaveBasket(ctx context.Context, userID string, items []basket.Item) error {
	return updateBasket(ctx, t.db, userID, items)
}

func (t *mongoTx) GetProductForUpdate(ctx context.Context, id string) (*product.Product, error) {
	return findProduct(ctx, t.db, id)
}

func (t *mongoTx) CreateOrder(ctx context.Context, o *order.Order) error {
	doc, err := newOrderDoc(o)
	if err != nil {
		return err
	}
	_, err = t.db.Collection(ordersCollection).InsertOne(ctx, doc)
	return err
}

func (t *mongoTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	res, err := t.db.Collection(productsCollection).UpdateOne(ctx,
		bson.M{"_id": productID, "stock": bson.M{"$gte": quantity}},
		bson.M{"$inc": bson.M{"stock": -quantity}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return product.ErrOutOfStock
	}
	return nil
}
