package kafka

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
)

// Handler must return nil only when the message is fully processed and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *slog.Logger
	// Backoff builds the retry schedule for one failing message.
	Backoff func() retry.Backoff
}

func NewConsumer(brokers []string, group string, topics []string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{r: r, workers: workers, log: log, Backoff: DefaultBackoff}
}

// DefaultBackoff retries forever, doubling from 200ms up to 30s.
func DefaultBackoff() retry.Backoff {
	return retry.WithCappedDuration(30*time.Second, retry.NewExponential(200*time.Millisecond))
}

// Start fetches messages and fans them out to a fixed worker pool until ctx
// is cancelled. A partition always lands on the same worker, so its messages
// are handled and committed in offset order. A failing message is retried
// and blocks its partition until it succeeds; its offset is never committed
// before that.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if err := c.process(ctx, h, m); err != nil {
					// shutting down; the uncommitted offset is redelivered
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.Warn("kafka commit", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
				}
			}
		}(lanes[i])
	}
	stop := func() {
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case lanes[lane(m, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// process runs h until it succeeds. It returns an error only when ctx ends
// first.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) error {
	attempt := 0
	return retry.Do(ctx, c.Backoff(), func(ctx context.Context) error {
		attempt++
		if err := h(ctx, m); err != nil {
			c.log.Warn("consumer handler failed, retrying",
				"topic", m.Topic, "partition", m.Partition, "offset", m.Offset,
				"event_type", Header(m, HeaderEventType), "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func lane(m kafka.Message, n int) int {
	return int(xxhash.Sum64String(m.Topic+"/"+strconv.Itoa(m.Partition)) % uint64(n))
}
