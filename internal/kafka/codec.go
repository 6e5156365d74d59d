package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/events"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

// Encode turns an envelope into a message for topic, keyed by the entity id
// so all events of one order land on one partition in order.
func Encode(topic string, ev events.Envelope) (kafka.Message, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode envelope %s: %w", ev.EventID, err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   events.PartitionKey(ev.CorrelationID),
		Value: b,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(ev.EventType)},
			{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(ev.EventVersion))},
		},
	}, nil
}

// Decode reads the envelope back out of a consumed message.
func Decode(m kafka.Message) (events.Envelope, error) {
	var ev events.Envelope
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return ev, fmt.Errorf("decode envelope at %s/%d@%d: %w", m.Topic, m.Partition, m.Offset, err)
	}
	if ev.EventID == "" {
		return ev, fmt.Errorf("decode envelope at %s/%d@%d: missing event_id", m.Topic, m.Partition, m.Offset)
	}
	return ev, nil
}

// Header returns the value of header k, or "" when absent.
func Header(m kafka.Message, k string) string {
	for _, h := range m.Headers {
		if h.Key == k {
			return string(h.Value)
		}
	}
	return ""
}
