package progress

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/insight/internal/queue"
)

// streamMaxLen bounds each per-task progress stream; old entries are
// trimmed approximately on write.
const streamMaxLen = 2000

const defaultStreamTTL = 24 * time.Hour

// Publisher writes progress events to per-task Redis streams. Writes
// are best effort: progress is observability, a failed publish never
// fails the work that produced it.
type Publisher struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewPublisher(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Publisher {
	if ttl <= 0 {
		ttl = defaultStreamTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{rdb: rdb, ttl: ttl, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil || p.rdb == nil {
		return
	}
	stream := queue.ProgressStreamName(event.TaskID)
	if err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: eventValues(event),
	}).Err(); err != nil {
		p.logger.WarnContext(ctx, "progress publish failed",
			"task_id", event.TaskID,
			"error", err)
		return
	}
	// refresh on every write so active streams outlive the TTL
	if err := p.rdb.Expire(ctx, stream, p.ttl).Err(); err != nil {
		p.logger.WarnContext(ctx, "progress stream expire failed",
			"task_id", event.TaskID,
			"error", err)
	}
}
