package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestEventMetaHeaders(t *testing.T) {
	headers := EventMeta{EventID: "id-1", EventType: "availability.booking.confirmed.v1"}.Headers()
	assert.Equal(t, "id-1", HeaderValue(headers, HeaderEventID))
	assert.Equal(t, "availability.booking.confirmed.v1", HeaderValue(headers, HeaderEventType))
	assert.Empty(t, HeaderValue(headers, "missing"))
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, SplitBrokers(""))
}

func TestInjectTraceHeaders_NoSpanKeepsHeaders(t *testing.T) {
	in := []kafka.Header{{Key: "event_id", Value: []byte("x")}}
	out := InjectTraceHeaders(context.Background(), in)
	assert.Equal(t, "x", HeaderValue(out, "event_id"))
}
