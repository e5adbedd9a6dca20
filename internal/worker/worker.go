package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"basegraph.app/insight/common/logger"
	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/progress"
	"basegraph.app/insight/internal/queue"
	"basegraph.app/insight/internal/store"
	"go.opentelemetry.io/otel/trace"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Processor abstracts the pipeline engine for testability.
// *views.Engine satisfies it.
type Processor interface {
	Run(ctx context.Context, documentID, taskID int64, hint []model.ViewName) error
	RunView(ctx context.Context, documentID, taskID int64, view model.ViewName, isPrimary bool) error
}

// StoreProvider mirrors the slice of the store surface the worker needs
// to pin terminal states after the last retry.
type StoreProvider interface {
	Documents() store.DocumentStore
	Tasks() store.TaskStore
}

// EventSink receives the terminal progress event of an exhausted job.
// A nil sink drops it.
type EventSink interface {
	Publish(ctx context.Context, event progress.Event)
}

type Config struct {
	// Concurrency is the number of parallel read loops; at most this
	// many jobs run at once. Zero means one.
	Concurrency int

	MaxAttempts int
	JobTimeout  time.Duration
}

// Worker consumes pipeline jobs and drives the engine. Retries are
// redelivery-based: a non-nil processing error requeues the message
// with an incremented attempt until MaxAttempts, then the job goes to
// the DLQ and its task is terminalized.
type Worker struct {
	consumer  Consumer
	processor Processor
	stores    StoreProvider
	events    EventSink
	cfg       Config
	logger    *slog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, processor Processor, stores StoreProvider, events EventSink, cfg Config, log *slog.Logger) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		consumer:  consumer,
		processor: processor,
		stores:    stores,
		events:    events,
		cfg:       cfg,
		logger:    log,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until ctx ends or Stop is called. Each loop reads its own
// batches, so the consumer group spreads jobs across the loops.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	w.logger.InfoContext(ctx, "worker started",
		"concurrency", w.cfg.Concurrency,
		"max_attempts", w.cfg.MaxAttempts,
		"job_timeout", w.cfg.JobTimeout)

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runLoop(ctx)
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	w.logger.InfoContext(ctx, "worker stopped")
	return nil
}

// Stop signals all loops and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
			if err := w.processOneBatch(ctx); err != nil {
				w.logger.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff so a dead Redis does not spin the loop.
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			w.logger.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"document_id", msg.DocumentID,
				"task_id", msg.TaskID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"document_id", msg.DocumentID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage runs one job under the job deadline and acknowledges
// it on success. Exported so the reclaimer can reuse it.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	spanName := "worker.process_document"
	if msg.JobType == queue.JobTypeProcessView {
		spanName = "worker.process_view"
	}
	// Links the span to the upload request's trace carried through Redis.
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, spanName, trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		DocumentID: &msg.DocumentID,
		TaskID:     &msg.TaskID,
	})

	w.logger.InfoContext(ctx, "processing message",
		"message_id", msg.ID,
		"job_type", msg.JobType,
		"view", msg.View,
		"attempt", msg.Attempt)

	runCtx := ctx
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}

	var err error
	switch msg.JobType {
	case queue.JobTypeProcessDocument:
		err = w.processor.Run(runCtx, msg.DocumentID, msg.TaskID, viewHint(msg.Views))
	case queue.JobTypeProcessView:
		// Fan-out only enqueues secondaries; the primary ran inline.
		err = w.processor.RunView(runCtx, msg.DocumentID, msg.TaskID, model.ViewName(msg.View), false)
	default:
		// ParseMessage already rejects unknown types.
		w.logger.ErrorContext(ctx, "unknown job type, dropping", "job_type", msg.JobType)
	}
	if err != nil {
		sc.RecordError(err)
		return err
	}

	if ackErr := w.consumer.Ack(ctx, msg); ackErr != nil {
		// The reclaimer redelivers; processing is idempotent.
		w.logger.WarnContext(ctx, "failed to ACK message",
			"error", ackErr,
			"message_id", msg.ID)
	}
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		w.logger.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"document_id", msg.DocumentID,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			w.logger.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		w.terminalizeExhausted(ctx, msg, err)
		return
	}

	w.logger.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"document_id", msg.DocumentID,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		w.logger.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}

// terminalizeExhausted pins the terminal state once retries are spent,
// so nothing sits in processing forever. A view job only settles its
// own task; the document status belongs to the primary pipeline.
func (w *Worker) terminalizeExhausted(ctx context.Context, msg queue.Message, cause error) {
	ctx = context.WithoutCancel(ctx)

	status := model.DocumentStatusFailed
	kind := apperr.KindServerError
	if errors.Is(cause, context.DeadlineExceeded) || apperr.IsKind(cause, apperr.KindTimeout) {
		status = model.DocumentStatusTimeout
		kind = apperr.KindTimeout
	}
	errType := string(kind)
	errMsg := cause.Error()

	if err := w.stores.Tasks().Terminalize(ctx, msg.TaskID, status, &errType, &errMsg); err != nil {
		w.logger.ErrorContext(ctx, "terminalizing exhausted task failed",
			"task_id", msg.TaskID, "error", err)
	}
	if msg.JobType == queue.JobTypeProcessDocument {
		if err := w.stores.Documents().SetStatus(ctx, msg.DocumentID, status); err != nil {
			w.logger.ErrorContext(ctx, "document status write failed",
				"document_id", msg.DocumentID, "error", err)
		}
	}
	if w.events != nil {
		w.events.Publish(ctx, progress.Event{
			Type:         progress.EventError,
			TaskID:       msg.TaskID,
			DocumentID:   msg.DocumentID,
			CurrentStage: "failed",
			Status:       status,
		})
	}
}

func viewHint(views []string) []model.ViewName {
	if len(views) == 0 {
		return nil
	}
	hint := make([]model.ViewName, 0, len(views))
	for _, v := range views {
		hint = append(hint, model.ViewName(v))
	}
	return hint
}
