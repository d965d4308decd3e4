package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ticket-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrBusClosed is returned when publishing to a closed LocalBus
var ErrBusClosed = errors.New("local bus closed")

// LocalBus is an in-process stand-in for the Kafka topic, used when Kafka is disabled.
// Messages are delivered in publish order to the handler passed to StartConsuming.
// The queue is unbounded, so a handler may publish back into the bus it drains.
type LocalBus struct {
	mu     sync.Mutex
	closed bool
	queue  []kafka.Message
	ready  chan struct{}
	warnAt int
	logger *zap.Logger
}

// NewLocalBus creates a bus. size is the initial queue capacity; a warning is
// logged whenever the backlog grows past another multiple of it.
func NewLocalBus(size int) *LocalBus {
	if size <= 0 {
		size = 64
	}
	return &LocalBus{
		queue:  make([]kafka.Message, 0, size),
		ready:  make(chan struct{}, 1),
		warnAt: size,
		logger: util.ComponentLogger("local_bus"),
	}
}

// PublishEvent enqueues event and returns without waiting for the consumer
func (b *LocalBus) PublishEvent(ctx context.Context, key string, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.queue = append(b.queue, kafka.Message{Key: []byte(key), Value: eventBytes, Time: time.Now()})
	depth := len(b.queue)
	b.mu.Unlock()

	util.LocalBusBacklog.Set(float64(depth))
	if depth%b.warnAt == 0 {
		b.logger.Warn("Local bus backlog growing", zap.Int("depth", depth))
	}
	b.signal()
	return nil
}

func (b *LocalBus) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// next pops the oldest message. done is true once the bus is closed and empty.
func (b *LocalBus) next() (msg kafka.Message, ok bool, done bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return kafka.Message{}, false, b.closed
	}
	msg = b.queue[0]
	b.queue[0] = kafka.Message{}
	b.queue = b.queue[1:]
	util.LocalBusBacklog.Set(float64(len(b.queue)))
	return msg, true, false
}

// StartConsuming hands queued messages to handler until ctx is cancelled or the
// bus is closed and drained
func (b *LocalBus) StartConsuming(ctx context.Context, handler MessageHandler) error {
	var offset int64
	for {
		msg, ok, done := b.next()
		if done {
			return nil
		}
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-b.ready:
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		msg.Offset = offset
		offset++
		if err := handler(ctx, msg); err != nil {
			b.logger.Error("Error handling message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// Close stops accepting events; queued messages are still delivered
func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.signal()
	return nil
}
