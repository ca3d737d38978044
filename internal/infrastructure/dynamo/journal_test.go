package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/ec-storefront/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	puts    []*dynamodb.PutItemInput
	putErr  error
	items   []map[string]types.AttributeValue
	queries []*dynamodb.QueryInput
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	return &dynamodb.QueryOutput{Items: f.items}, nil
}

func newTestEvent(t *testing.T) events.Event {
	t.Helper()
	event, err := events.NewEvent("order-1", "Order", "OrderPlaced", 1, map[string]string{"order_id": "order-1"})
	require.NoError(t, err)
	return event
}

// ============================================
// Publish Tests
// ============================================

func TestJournal_Publish(t *testing.T) {
	api := &fakeAPI{}
	journal := NewJournal(api, "order-events")
	event := newTestEvent(t)

	err := journal.Publish(context.Background(), "ignored", event)

	require.NoError(t, err)
	require.Len(t, api.puts, 1)
	in := api.puts[0]
	assert.Equal(t, "order-events", aws.ToString(in.TableName))
	assert.Contains(t, aws.ToString(in.ConditionExpression), "attribute_not_exists(aggregate_id)")

	assert.Equal(t, &types.AttributeValueMemberS{Value: "order-1"}, in.Item[AttrAggregateID])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1"}, in.Item[AttrVersion])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "OrderPlaced"}, in.Item[AttrEventType])
	assert.Equal(t, &types.AttributeValueMemberS{Value: string(event.Data)}, in.Item[AttrData])
}

func TestJournal_Publish_Duplicate(t *testing.T) {
	api := &fakeAPI{putErr: &types.ConditionalCheckFailedException{Message: aws.String("exists")}}
	journal := NewJournal(api, "order-events")

	err := journal.Publish(context.Background(), "", newTestEvent(t))

	assert.ErrorIs(t, err, ErrDuplicateEvent)
}

func TestJournal_Publish_Error(t *testing.T) {
	api := &fakeAPI{putErr: errors.New("throttled")}
	journal := NewJournal(api, "order-events")

	err := journal.Publish(context.Background(), "", newTestEvent(t))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateEvent)
	assert.Contains(t, err.Error(), "throttled")
}

// ============================================
// History Tests
// ============================================

func TestJournal_History_RoundTrip(t *testing.T) {
	api := &fakeAPI{}
	journal := NewJournal(api, "order-events")
	event := newTestEvent(t)
	require.NoError(t, journal.Publish(context.Background(), "", event))

	history, err := journal.History(context.Background(), "order-1")

	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, event.ID, history[0].ID)
	assert.Equal(t, event.EventType, history[0].EventType)
	assert.JSONEq(t, string(event.Data), string(history[0].Data))
	assert.WithinDuration(t, event.Timestamp, history[0].Timestamp, time.Microsecond)
	require.Len(t, api.queries, 1)
	assert.Equal(t, "aggregate_id = :aid", aws.ToString(api.queries[0].KeyConditionExpression))
}
