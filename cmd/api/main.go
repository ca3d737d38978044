package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-storefront/internal/api"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/domain/basket"
	"github.com/example/ec-storefront/internal/domain/checkout"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/infrastructure/dynamo"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/query"
	"github.com/shopspring/decimal"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}

	// prices go out as JSON numbers, as the storefront client expects
	decimal.MarshalJSONWithoutQuotes = true

	log.Println("[API] ========================================")
	log.Println("[API] Storefront - basket and checkout")
	log.Println("[API] ========================================")
	log.Printf("[API] Store:  %s", cfg.StoreBackend)
	log.Printf("[API] Events: %s", cfg.EventBackend)
	log.Printf("[API] CORS:   %v", cfg.CORSOrigins)

	st, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("[API] Failed to open store: %v", err)
	}
	defer closeStore()

	publisher, closePublisher, err := newPublisher(ctx, cfg)
	if err != nil {
		log.Fatalf("[API] Failed to set up event publisher: %v", err)
	}
	defer closePublisher()

	policy, err := basket.ParseStockPolicy(cfg.BasketStockCheck)
	if err != nil {
		log.Fatalf("[API] %v", err)
	}

	// Initialize domain services
	basketSvc := basket.NewService(st, st, policy)
	orderSvc := order.NewService(st, st, st, publisher)
	productSvc := product.NewService(st)
	processor := checkout.NewProcessor(st, publisher)

	// Sessions are issued by the login service; only validation happens here.
	sessions := auth.NewSessionService(cfg.JWTSecret, 24*time.Hour)

	cmdHandler := command.NewHandler(basketSvc, processor, orderSvc)
	queryHandler := query.NewHandler(basketSvc, orderSvc, productSvc)
	router := api.NewRouter(api.NewHandlers(cmdHandler, queryHandler), sessions, cfg.CORSOrigins)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Shutdown error: %v", err)
	}
}

// newPublisher picks where order events go. Publishing is best effort, so "none"
// is a valid production setting.
func newPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, func(), error) {
	switch cfg.EventBackend {
	case config.EventsKafka:
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Printf("[API] Publishing order events to Kafka topic %s", cfg.KafkaTopic)
		return producer, func() { _ = producer.Close() }, nil

	case config.EventsDynamoDB:
		client, err := dynamo.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[API] Journaling order events to DynamoDB table %s", cfg.DynamoTable)
		return dynamo.NewJournal(client, cfg.DynamoTable), func() {}, nil
	}
	return events.NopPublisher{}, func() {}, nil
}
