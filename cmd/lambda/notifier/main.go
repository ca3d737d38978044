package main

import (
	"context"
	"log"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/infrastructure/kinesis"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/notification"
)

var notificationHandler *notification.Handler

func init() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("[Lambda Notifier] Invalid configuration: %v", err)
	}

	st, _, err := store.Open(context.Background(), cfg)
	if err != nil {
		log.Fatalf("[Lambda Notifier] Failed to open store: %v", err)
	}

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	notificationHandler = notification.NewHandler(emailSvc, st)

	log.Printf("[Lambda Notifier] Initialized (store %s, SMTP %s:%s)", cfg.StoreBackend, cfg.SMTPHost, cfg.SMTPPort)
}

// handler reads the journal table's change stream. Failed records are reported back
// so only they are retried.
func handler(ctx context.Context, kinesisEvent lambdaevents.KinesisEvent) (lambdaevents.KinesisEventResponse, error) {
	log.Printf("[Lambda Notifier] Received %d records", len(kinesisEvent.Records))

	var batchItemFailures []lambdaevents.KinesisBatchItemFailure
	fail := func(record lambdaevents.KinesisEventRecord) {
		batchItemFailures = append(batchItemFailures, lambdaevents.KinesisBatchItemFailure{
			ItemIdentifier: record.Kinesis.SequenceNumber,
		})
	}

	for _, record := range kinesisEvent.Records {
		event, err := kinesis.DecodeRecord(record)
		if err != nil {
			log.Printf("[Lambda Notifier] Failed to decode record %s: %v", record.EventID, err)
			fail(record)
			continue
		}
		// MODIFY and REMOVE changes carry no new event
		if event == nil {
			continue
		}

		if err := notificationHandler.Handle(ctx, *event); err != nil {
			log.Printf("[Lambda Notifier] Failed to process event %s: %v", event.ID, err)
			fail(record)
		}
	}

	log.Printf("[Lambda Notifier] Processed %d/%d records successfully",
		len(kinesisEvent.Records)-len(batchItemFailures), len(kinesisEvent.Records))

	return lambdaevents.KinesisEventResponse{BatchItemFailures: batchItemFailures}, nil
}

func main() {
	lambda.Start(handler)
}
