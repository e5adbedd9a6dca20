package progress

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/insight/internal/queue"
)

const (
	// subscriberBuffer bounds each subscriber channel; a full channel
	// drops its oldest buffered event first.
	subscriberBuffer = 16

	tailBlock      = 25 * time.Second
	tailBatch      = 100
	tailRetryDelay = time.Second
)

type topic struct {
	subs map[chan Event]struct{}
	stop context.CancelFunc
}

// Broker fans per-task progress streams out to in-memory subscribers.
// One tail goroutine per task runs while the task has subscribers; the
// first subscriber starts it and the last one leaving stops it.
type Broker struct {
	rdb    *redis.Client
	logger *slog.Logger

	mu     sync.Mutex
	topics map[int64]*topic
}

func NewBroker(rdb *redis.Client, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		rdb:    rdb,
		logger: logger,
		topics: make(map[int64]*topic),
	}
}

// Subscription is one subscriber's handle on a task's events. Close
// releases it; C is closed afterwards.
type Subscription struct {
	C <-chan Event

	broker *Broker
	taskID int64
	ch     chan Event
}

func (s *Subscription) Close() {
	s.broker.unsubscribe(s.taskID, s.ch)
}

// Subscribe registers for a task's progress events. A late subscriber
// immediately receives the most recent event already on the stream.
func (b *Broker) Subscribe(ctx context.Context, taskID int64) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	if last, ok := b.lastEvent(ctx, taskID); ok {
		ch <- last
	}

	b.mu.Lock()
	t, ok := b.topics[taskID]
	if !ok {
		tailCtx, cancel := context.WithCancel(context.Background())
		t = &topic{subs: make(map[chan Event]struct{}), stop: cancel}
		b.topics[taskID] = t
		if b.rdb != nil {
			go b.tail(tailCtx, taskID, t)
		}
	}
	t.subs[ch] = struct{}{}
	b.mu.Unlock()

	return &Subscription{C: ch, broker: b, taskID: taskID, ch: ch}
}

func (b *Broker) unsubscribe(taskID int64, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[taskID]
	if !ok {
		return
	}
	if _, ok := t.subs[ch]; !ok {
		return
	}
	delete(t.subs, ch)
	close(ch)
	if len(t.subs) == 0 {
		t.stop()
		delete(b.topics, taskID)
	}
}

// tail follows one task's stream from now on, broadcasting every new
// entry. It exits when the topic's last subscriber leaves.
func (b *Broker) tail(ctx context.Context, taskID int64, t *topic) {
	stream := queue.ProgressStreamName(taskID)
	lastID := "$"
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := b.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Block:   tailBlock,
			Count:   tailBatch,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			b.logger.WarnContext(ctx, "progress tail read failed",
				"task_id", taskID,
				"error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(tailRetryDelay):
			}
			continue
		}
		for _, sr := range res {
			for _, msg := range sr.Messages {
				lastID = msg.ID
				b.broadcast(t, eventFromValues(msg.Values))
			}
		}
	}
}

func (b *Broker) broadcast(t *topic, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range t.subs {
		deliver(ch, event)
	}
}

// deliver queues event without ever blocking the tail goroutine: when
// the subscriber's buffer is full, its oldest event is dropped to make
// room. Slow readers lose history, never liveness.
func deliver(ch chan Event, event Event) {
	for {
		select {
		case ch <- event:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (b *Broker) lastEvent(ctx context.Context, taskID int64) (Event, bool) {
	if b.rdb == nil {
		return Event{}, false
	}
	msgs, err := b.rdb.XRevRangeN(ctx, queue.ProgressStreamName(taskID), "+", "-", 1).Result()
	if err != nil || len(msgs) == 0 {
		return Event{}, false
	}
	return eventFromValues(msgs[0].Values), true
}
