package kafka

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ariefcatur/go-order-to-cash/internal/events"
	"github.com/segmentio/kafka-go"
)

// Producer is an async writer: Publish queues, a single goroutine hands
// messages to an async kafka.Writer. The topic travels on each message, so one
// Producer serves every topic. Publish never blocks; when the queue is full or
// the producer is closed the event is dropped with a warning.
type Producer struct {
	w       *kafka.Writer
	log     *slog.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}
	stopped chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, buf int, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	p := &Producer{
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	p.w = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             p.completed,
	}
	return p
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		defer func() {
			if err := p.w.Close(); err != nil {
				p.log.Error("kafka writer close", "error", err)
			}
		}()
		for {
			select {
			case m := <-p.inbox:
				p.write(m)
			case <-ctx.Done():
				p.Close()
				p.drain()
				return
			case <-p.stopped:
				p.drain()
				return
			}
		}
	}()
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			return
		}
	}
}

// completed reports async write failures; the writer calls it once per batch.
func (p *Producer) completed(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range msgs {
		p.log.Error("kafka write", "topic", m.Topic, "event_type", Header(m, HeaderEventType), "error", err)
	}
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error("kafka write", "topic", m.Topic, "event_type", Header(m, HeaderEventType), "error", err)
	}
}

// Publish implements events.Publisher.
func (p *Producer) Publish(ctx context.Context, topic string, ev events.Envelope) {
	if ev.TraceID == "" {
		ev.TraceID = events.TraceID(ctx)
	}
	m, err := Encode(topic, ev)
	if err != nil {
		p.log.ErrorContext(ctx, "kafka encode", "error", err)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.WarnContext(ctx, "producer closed, event dropped", "event_type", ev.EventType, "event_id", ev.EventID)
		return
	}
	select {
	case p.inbox <- m:
	default:
		p.log.WarnContext(ctx, "producer queue full, event dropped", "event_type", ev.EventType, "event_id", ev.EventID)
	}
}

// Close stops accepting events. Events queued before Close are flushed by the
// writer goroutine.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.stopped)
}

// WaitClosed blocks until the writer goroutine has flushed and exited.
func (p *Producer) WaitClosed() { <-p.closeCh }
