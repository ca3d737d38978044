package kinesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/infrastructure/dynamo"
)

const insertEvent = "INSERT"

var errNilImage = errors.New("stream record has no new image")

// DecodeRecord reads a Kinesis record carrying a DynamoDB stream change of the order
// journal. Changes other than inserts yield a nil event and no error.
func DecodeRecord(record lambdaevents.KinesisEventRecord) (*events.Event, error) {
	var change lambdaevents.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &change); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}
	return DecodeStreamRecord(change)
}

// DecodeStreamRecord decodes a change read directly from a DynamoDB stream.
func DecodeStreamRecord(change lambdaevents.DynamoDBEventRecord) (*events.Event, error) {
	if change.EventName != insertEvent {
		return nil, nil
	}
	return decodeImage(change.Change.NewImage)
}

func decodeImage(image map[string]lambdaevents.DynamoDBAttributeValue) (*events.Event, error) {
	if image == nil {
		return nil, errNilImage
	}

	str := func(name string) string {
		if v, ok := image[name]; ok && v.DataType() == lambdaevents.DataTypeString {
			return v.String()
		}
		return ""
	}

	event := &events.Event{
		ID:            str(dynamo.AttrID),
		AggregateID:   str(dynamo.AttrAggregateID),
		AggregateType: str(dynamo.AttrAggregateType),
		EventType:     str(dynamo.AttrEventType),
		Data:          json.RawMessage(str(dynamo.AttrData)),
	}
	if event.ID == "" || event.AggregateID == "" || event.EventType == "" {
		return nil, fmt.Errorf("missing required fields: id=%q aggregate_id=%q event_type=%q",
			event.ID, event.AggregateID, event.EventType)
	}

	if created := str(dynamo.AttrCreatedAt); created != "" {
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		event.Timestamp = ts
	}
	if v, ok := image[dynamo.AttrVersion]; ok {
		version, err := v.Integer()
		if err != nil {
			return nil, fmt.Errorf("failed to parse version: %w", err)
		}
		event.Version = int(version)
	}

	return event, nil
}
