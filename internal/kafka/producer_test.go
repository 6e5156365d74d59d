package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stockEvent(t *testing.T) events.Envelope {
	t.Helper()
	ev, err := events.New(events.EventStockReceived, "catalog", "TRN-HEX-10",
		events.StockReceivedPayload{SKU: "TRN-HEX-10", Qty: 5}, time.Now())
	require.NoError(t, err)
	return ev
}

func TestPublishNeverBlocksOnFullQueue(t *testing.T) {
	// not started: nothing drains the queue
	p := NewProducer([]string{"localhost:9092"}, 2, nil)
	ev := stockEvent(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			p.Publish(context.Background(), events.TopicStock, ev)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	assert.Len(t, p.inbox, 2)
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, 4, nil)
	ev := stockEvent(t)
	p.Publish(context.Background(), events.TopicStock, ev)
	p.Close()
	p.Close()
	p.Publish(context.Background(), events.TopicStock, ev)
	assert.Len(t, p.inbox, 1)
}

func TestCloseWhilePublishing(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, 1024, nil)
	ev := stockEvent(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p.Publish(context.Background(), events.TopicStock, ev)
			}
		}()
	}
	p.Close()
	queued := len(p.inbox)
	wg.Wait()

	// nothing is enqueued once Close has returned
	assert.Equal(t, queued, len(p.inbox))
}
