package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/ec-storefront/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	events []events.Event
	err    error
	asked  string
}

func (f *fakeHistory) History(_ context.Context, aggregateID string) ([]events.Event, error) {
	f.asked = aggregateID
	return f.events, f.err
}

func TestPrintHistory_WritesJSONLines(t *testing.T) {
	src := &fakeHistory{events: []events.Event{
		{ID: "e1", AggregateID: "order-1", AggregateType: "Order", EventType: "OrderPlaced", Data: json.RawMessage(`{"total":"300"}`), Timestamp: time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC), Version: 1},
		{ID: "e2", AggregateID: "order-1", AggregateType: "Order", EventType: "OrderDeleted", Data: json.RawMessage(`{}`), Timestamp: time.Date(2025, 2, 2, 10, 0, 0, 0, time.UTC), Version: 2},
	}}
	var out bytes.Buffer

	require.NoError(t, printHistory(context.Background(), src, "order-1", &out))

	assert.Equal(t, "order-1", src.asked)
	var got []events.Event
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var e events.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "OrderPlaced", got[0].EventType)
	assert.Equal(t, 2, got[1].Version)
}

func TestPrintHistory_Empty(t *testing.T) {
	var out bytes.Buffer

	err := printHistory(context.Background(), &fakeHistory{}, "order-9", &out)

	assert.ErrorIs(t, err, errNoHistory)
	assert.Empty(t, out.String())
}

func TestPrintHistory_SourceError(t *testing.T) {
	boom := errors.New("throttled")

	err := printHistory(context.Background(), &fakeHistory{err: boom}, "order-1", &bytes.Buffer{})

	assert.ErrorIs(t, err, boom)
}
