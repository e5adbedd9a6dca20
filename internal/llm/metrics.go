package llm

import (
	"context"
	"log/slog"
	"time"

	"basegraph.app/insight/common/id"
	"basegraph.app/insight/internal/model"
)

// MetricAppender persists one AI call metric row. Mirrors the store
// interface locally to avoid an import cycle.
type MetricAppender interface {
	Append(ctx context.Context, metric *model.AiCallMetric) error
}

const metricBufferSize = 256

// metricEmitter decouples metric persistence from the call path: emit
// never blocks, a full buffer drops the metric, a background goroutine
// drains into the sink.
type metricEmitter struct {
	sink   MetricAppender
	ch     chan model.AiCallMetric
	done   chan struct{}
	logger *slog.Logger
}

func newMetricEmitter(sink MetricAppender, logger *slog.Logger) *metricEmitter {
	e := &metricEmitter{
		sink:   sink,
		ch:     make(chan model.AiCallMetric, metricBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go e.drain()
	return e
}

func (e *metricEmitter) emit(m model.AiCallMetric) {
	select {
	case e.ch <- m:
	default:
		e.logger.Warn("metric buffer full, dropping ai call metric", "call_type", m.CallType)
	}
}

func (e *metricEmitter) drain() {
	defer close(e.done)
	for m := range e.ch {
		if m.ID == 0 {
			m.ID = id.New()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.sink.Append(ctx, &m); err != nil {
			e.logger.Warn("ai call metric append failed", "error", err, "call_type", m.CallType)
		}
		cancel()
	}
}

// Close flushes buffered metrics and stops the drain goroutine.
func (e *metricEmitter) Close() {
	close(e.ch)
	<-e.done
}
