package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

//go:embed catalog.json
var defaultCatalog []byte

type seedFile struct {
	Products []product.Product `json:"products"`
	Users    []user.User       `json:"users"`
}

func main() {
	path := flag.String("file", "", "seed file (JSON with products and users); the bundled catalog when empty")
	flag.Parse()

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("[Seed] Invalid configuration: %v", err)
	}

	data := defaultCatalog
	if *path != "" {
		if data, err = os.ReadFile(*path); err != nil {
			log.Fatalf("[Seed] %v", err)
		}
	}

	ctx := context.Background()
	st, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("[Seed] Failed to open store: %v", err)
	}
	defer closeStore()

	products, users, err := seed(ctx, st, data)
	if err != nil {
		log.Fatalf("[Seed] %v", err)
	}
	log.Printf("[Seed] Created %d products and %d users in %s store", products, users, cfg.StoreBackend)
}

// seed creates every product and user in data. Users that already exist are skipped.
func seed(ctx context.Context, st store.Store, data []byte) (int, int, error) {
	var file seedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, 0, fmt.Errorf("parse seed file: %w", err)
	}

	productSvc := product.NewService(st)
	userSvc := user.NewService(st)

	var products, users int
	for _, p := range file.Products {
		if _, err := productSvc.Create(ctx, p); err != nil {
			return products, users, fmt.Errorf("product %q: %w", p.Name, err)
		}
		products++
	}
	for _, u := range file.Users {
		if _, err := userSvc.Create(ctx, u); err != nil {
			if errors.Is(err, user.ErrDuplicateUser) {
				log.Printf("[Seed] User %s already exists, skipping", u.Login)
				continue
			}
			return products, users, fmt.Errorf("user %q: %w", u.Login, err)
		}
		users++
	}
	return products, users, nil
}
