package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/ec-storefront/internal/events"
)

// Attribute names of a journal item. The stream consumer decodes the same names.
const (
	AttrAggregateID   = "aggregate_id"
	AttrVersion       = "version"
	AttrID            = "id"
	AttrAggregateType = "aggregate_type"
	AttrEventType     = "event_type"
	AttrData          = "data"
	AttrCreatedAt     = "created_at"
)

// ErrDuplicateEvent is returned when the journal already holds the aggregate version.
var ErrDuplicateEvent = errors.New("event version already journaled")

type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// item is the DynamoDB layout of a journaled event.
type item struct {
	AggregateID   string `dynamodbav:"aggregate_id"`
	Version       int    `dynamodbav:"version"`
	ID            string `dynamodbav:"id"`
	AggregateType string `dynamodbav:"aggregate_type"`
	EventType     string `dynamodbav:"event_type"`
	Data          string `dynamodbav:"data"`
	CreatedAt     string `dynamodbav:"created_at"`
}

// Journal appends order events to a DynamoDB table keyed by (aggregate_id, version).
// The table's Kinesis stream feeds the notifier Lambda.
type Journal struct {
	client    API
	tableName string
}

func NewJournal(client API, tableName string) *Journal {
	return &Journal{client: client, tableName: tableName}
}

// NewClient builds a DynamoDB client from the default AWS configuration chain.
func NewClient(ctx context.Context) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// Publish implements events.Publisher. The key argument is unused; items are keyed
// by the event's aggregate ID and version.
func (j *Journal) Publish(ctx context.Context, _ string, event events.Event) error {
	av, err := attributevalue.MarshalMap(item{
		AggregateID:   event.AggregateID,
		Version:       event.Version,
		ID:            event.ID,
		AggregateType: event.AggregateType,
		EventType:     event.EventType,
		Data:          string(event.Data),
		CreatedAt:     event.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = j.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(j.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(aggregate_id) AND attribute_not_exists(version)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("%w: %s v%d", ErrDuplicateEvent, event.AggregateID, event.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to put event: %w", err)
	}
	return nil
}

// History returns the journaled events of one aggregate in version order.
func (j *Journal) History(ctx context.Context, aggregateID string) ([]events.Event, error) {
	result, err := j.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(j.tableName),
		KeyConditionExpression: aws.String("aggregate_id = :aid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: aggregateID},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}

	history := make([]events.Event, 0, len(result.Items))
	for _, raw := range result.Items {
		var it item
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		history = append(history, events.Event{
			ID:            it.ID,
			AggregateID:   it.AggregateID,
			AggregateType: it.AggregateType,
			EventType:     it.EventType,
			Data:          []byte(it.Data),
			Timestamp:     ts,
			Version:       it.Version,
		})
	}
	return history, nil
}
