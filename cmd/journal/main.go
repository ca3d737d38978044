package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/infrastructure/dynamo"
)

type historySource interface {
	History(ctx context.Context, aggregateID string) ([]events.Event, error)
}

// errNoHistory is returned when the journal holds nothing for the order.
var errNoHistory = errors.New("no journaled events")

func main() {
	orderID := flag.String("order", "", "order id whose journaled events are printed")
	flag.Parse()

	if *orderID == "" {
		log.Fatal("[Journal] -order is required")
	}

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("[Journal] Invalid configuration: %v", err)
	}

	ctx := context.Background()
	client, err := dynamo.NewClient(ctx)
	if err != nil {
		log.Fatalf("[Journal] Failed to create DynamoDB client: %v", err)
	}

	if err := printHistory(ctx, dynamo.NewJournal(client, cfg.DynamoTable), *orderID, os.Stdout); err != nil {
		log.Fatalf("[Journal] %v", err)
	}
}

// printHistory writes the order's events to w as JSON lines, oldest first.
func printHistory(ctx context.Context, src historySource, orderID string, w io.Writer) error {
	history, err := src.History(ctx, orderID)
	if err != nil {
		return fmt.Errorf("read history of %s: %w", orderID, err)
	}
	if len(history) == 0 {
		return fmt.Errorf("%w for order %s", errNoHistory, orderID)
	}

	enc := json.NewEncoder(w)
	for _, e := range history {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
