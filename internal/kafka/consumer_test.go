package kafka

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConsumer() *Consumer {
	return &Consumer{
		workers: 1,
		log:     slog.Default(),
		Backoff: func() retry.Backoff { return retry.NewConstant(time.Millisecond) },
	}
}

func TestProcessRetriesUntilHandlerSucceeds(t *testing.T) {
	c := testConsumer()
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("journal unavailable")
		}
		return nil
	}

	err := c.process(context.Background(), h, kafka.Message{Topic: "order-events", Offset: 7})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestProcessGivesUpOnlyOnShutdown(t *testing.T) {
	c := testConsumer()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls == 5 {
			cancel()
		}
		return errors.New("journal unavailable")
	}

	err := c.process(ctx, h, kafka.Message{Topic: "order-events"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, calls, 5)
}

func TestLaneKeepsPartitionOnOneWorker(t *testing.T) {
	a := kafka.Message{Topic: "order-events", Partition: 2, Offset: 10}
	b := kafka.Message{Topic: "order-events", Partition: 2, Offset: 11}
	for _, n := range []int{1, 3, 8} {
		assert.Equal(t, lane(a, n), lane(b, n))
		assert.Less(t, lane(a, n), n)
	}
}
