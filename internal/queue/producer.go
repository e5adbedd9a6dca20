package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, job Job) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, job Job) error {
	attempt := job.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	jobType := job.JobType
	if jobType == "" {
		jobType = JobTypeProcessDocument
	}

	fields := map[string]any{
		"job_type":    string(jobType),
		"document_id": job.DocumentID,
		"task_id":     job.TaskID,
		"attempt":     attempt,
	}

	if job.View != "" {
		fields["view"] = job.View
	}

	if len(job.Views) > 0 {
		fields["views"] = strings.Join(job.Views, ",")
	}

	if job.TraceID != nil && *job.TraceID != "" {
		fields["trace_id"] = *job.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued job", "job_type", jobType, "document_id", job.DocumentID, "task_id", job.TaskID, "view", job.View, "attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
