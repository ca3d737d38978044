package store

import (
	"context"
	"fmt"
	"log"

	"github.com/example/ec-storefront/internal/config"
)

// Open connects the backend selected by cfg.StoreBackend and prepares its schema.
// The returned close function releases the connection.
func Open(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		log.Println("[Store] Using in-memory store; data is lost on exit")
		return NewMemoryStore(), func() {}, nil

	case config.StorePostgres:
		db, err := ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		s := NewPostgresStore(db)
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Println("[Store] Connected to PostgreSQL")
		return s, func() { db.Close() }, nil

	case config.StoreMongo:
		client, err := ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		s := NewMongoStore(client, cfg.MongoDatabase)
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		log.Printf("[Store] Connected to MongoDB (database %s)", cfg.MongoDatabase)
		return s, func() { _ = client.Disconnect(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
