package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"basegraph.app/insight/common/llm"
	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
	"github.com/redis/go-redis/v9"
)

// Gateway wraps the provider client with retry, failure classification,
// mock injection, fallback caching and call metrics. Every LLM call in
// the pipeline goes through it.
type Gateway struct {
	client  llm.Client
	cfg     Config
	mock    *mockInjector
	cache   *fallbackCache
	metrics *metricEmitter
	logger  *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGateway builds the gateway. rdb enables the fallback cache when
// non-nil; sink enables call metrics when non-nil.
func NewGateway(client llm.Client, cfg Config, rdb *redis.Client, sink MetricAppender, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		client: client,
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if cfg.Mock.Enabled {
		mock, err := newMockInjector(cfg.Mock, cfg.Production)
		if err != nil {
			return nil, err
		}
		g.mock = mock
		logger.Warn("llm mock injection enabled",
			"failure_type", cfg.Mock.FailureType,
			"probability", cfg.Mock.Probability)
	}

	if rdb != nil {
		g.cache = newFallbackCache(rdb, cfg.FallbackTTL)
	}

	if sink != nil {
		g.metrics = newMetricEmitter(sink, logger)
	}

	return g, nil
}

// Model reports the configured model name.
func (g *Gateway) Model() string {
	return g.client.Model()
}

// Close flushes pending metrics.
func (g *Gateway) Close() {
	if g.metrics != nil {
		g.metrics.Close()
	}
}

// SmokeCheck verifies the provider answers at all, through the full
// retry envelope. A worker refuses to start on a dead key or endpoint
// rather than fail every job it picks up.
func (g *Gateway) SmokeCheck(ctx context.Context) error {
	_, err := g.ChatCompletion(ctx, []llm.Message{
		{Role: "user", Content: "Reply with the single word: ok"},
	}, WithCallType("smoke_check"), WithMaxTokens(8))
	return err
}

// ChatCompletion runs one retried chat call and returns the reply text.
// With WithFallback, terminal failure degrades to the cached response
// for the same messages, or the declared default.
func (g *Gateway) ChatCompletion(ctx context.Context, messages []llm.Message, opts ...CallOption) (string, error) {
	o := applyOptions(opts)

	resp, err := g.invoke(ctx, messages, o, false)
	if err != nil {
		if o.fallbackDefault != nil {
			if g.cache != nil {
				if cached, ok := g.cache.Get(ctx, messages); ok {
					g.logger.WarnContext(ctx, "llm unavailable, serving cached response",
						"call_type", o.callType, "error", err)
					return cached, nil
				}
			}
			g.logger.WarnContext(ctx, "llm unavailable, serving declared default",
				"call_type", o.callType, "error", err)
			return *o.fallbackDefault, nil
		}
		return "", err
	}

	if g.cache != nil {
		g.cache.Put(ctx, messages, resp.Content)
	}
	return resp.Content, nil
}

// GenerateJSON runs a retried chat call in JSON mode and returns the
// parsed object. One repair round trip on malformed output, then a
// best-effort balanced-brace extraction; anything still invalid is a
// parse_error. Fallback defaults are refused: structured artifacts must
// come from the model, not from a canned string.
func (g *Gateway) GenerateJSON(ctx context.Context, messages []llm.Message, schemaHint string, opts ...CallOption) (json.RawMessage, error) {
	o := applyOptions(opts)
	if o.fallbackDefault != nil {
		return nil, apperr.New(apperr.KindBadRequest, "structured generation does not support fallback defaults")
	}

	msgs := messages
	if schemaHint != "" {
		msgs = make([]llm.Message, len(messages), len(messages)+1)
		copy(msgs, messages)
		msgs = append(msgs, llm.Message{
			Role:    "user",
			Content: "Respond with a single JSON object only, no prose and no code fences. It must match this JSON schema:\n" + schemaHint,
		})
	}

	resp, err := g.invoke(ctx, msgs, o, true)
	if err != nil {
		return nil, err
	}

	if raw, ok := parseJSONObject(resp.Content); ok {
		return raw, nil
	}

	// One repair round trip: show the model its reply and ask again.
	repairMsgs := append(append([]llm.Message{}, msgs...),
		llm.Message{Role: "assistant", Content: resp.Content},
		llm.Message{Role: "user", Content: "That was not valid JSON. Emit valid JSON only: a single JSON object with no surrounding text."},
	)

	repaired, err := g.invoke(ctx, repairMsgs, o, true)
	if err != nil {
		return nil, err
	}

	if raw, ok := parseJSONObject(repaired.Content); ok {
		return raw, nil
	}
	if raw, ok := parseJSONObject(resp.Content); ok {
		return raw, nil
	}

	return nil, apperr.New(apperr.KindParseError, "model output is not valid JSON").
		WithDetail("reason", "invalid_response").
		WithDetail("content_prefix", prefix(repaired.Content, 200))
}

// invoke is one attempt-set: up to MaxAttempts tries with classified
// retries and jittered backoff, emitting exactly one metric.
func (g *Gateway) invoke(ctx context.Context, messages []llm.Message, o callOptions, jsonMode bool) (*llm.ChatResponse, error) {
	start := time.Now()
	maxAttempts := g.cfg.maxAttempts()

	var (
		resp     *llm.ChatResponse
		lastErr  error
		mocked   bool
		attempts int
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		resp, mocked, lastErr = g.attempt(ctx, messages, o, jsonMode)
		if lastErr == nil {
			break
		}

		kind := ClassifyError(lastErr)
		if !kind.Retryable() || attempt == maxAttempts {
			break
		}

		delay := g.backoff(attempt)
		if apiErr, ok := llm.AsAPIError(lastErr); ok && apiErr.RetryAfter > 0 {
			delay = apiErr.RetryAfter
		}

		g.logger.WarnContext(ctx, "llm call failed, retrying",
			"call_type", o.callType,
			"kind", kind,
			"attempt", attempt,
			"delay", delay)

		if err := sleepCtx(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	g.emitMetric(o, lastErr, mocked, attempts, time.Since(start))

	if lastErr != nil {
		kind := ClassifyError(lastErr)
		return nil, apperr.Wrap(apperr.KindAiCallFailed, lastErr).
			WithDetail("last_error_kind", string(kind)).
			WithDetail("attempts", attempts)
	}
	return resp, nil
}

func (g *Gateway) attempt(ctx context.Context, messages []llm.Message, o callOptions, jsonMode bool) (*llm.ChatResponse, bool, error) {
	if g.mock != nil {
		if hit, resp, err := g.mock.intercept(); hit {
			return resp, true, err
		}
	}

	maxTokens := o.maxTokens
	if maxTokens <= 0 {
		maxTokens = g.cfg.MaxTokens
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.callTimeout())
	defer cancel()

	resp, err := g.client.Chat(callCtx, llm.ChatRequest{
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: o.temperature,
		JSONMode:    jsonMode,
	})
	if err != nil {
		return nil, false, err
	}
	return resp, false, nil
}

func (g *Gateway) emitMetric(o callOptions, lastErr error, mocked bool, attempts int, elapsed time.Duration) {
	if g.metrics == nil {
		return
	}

	m := model.AiCallMetric{
		DocumentID:     o.documentID,
		TaskID:         o.taskID,
		CallType:       o.callType,
		Status:         model.AiCallStatusSuccess,
		ResponseTimeMs: elapsed.Milliseconds(),
		RetryCount:     int32(attempts - 1),
	}

	switch {
	case lastErr != nil:
		m.Status = model.AiCallStatusFailed
		kind := string(ClassifyError(lastErr))
		m.ErrorType = &kind
	case mocked:
		m.Status = model.AiCallStatusMocked
	}

	g.metrics.emit(m)
}

// backoff computes min(10s, 2s*2^attempt) with +-50% jitter.
func (g *Gateway) backoff(attempt int) time.Duration {
	d := g.cfg.baseBackoff() << uint(attempt)
	if d > g.cfg.maxBackoff() || d <= 0 {
		d = g.cfg.maxBackoff()
	}

	g.mu.Lock()
	f := g.rng.Float64()
	g.mu.Unlock()

	// uniform in [0.5d, 1.5d)
	return d/2 + time.Duration(f*float64(d))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseJSONObject accepts content that is a bare JSON object, or
// contains one (code fences, leading prose), and returns it compacted
// to the first balanced {...} substring.
func parseJSONObject(content string) (json.RawMessage, bool) {
	trimmed := strings.TrimSpace(content)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed), true
	}

	extracted, ok := firstBalancedObject(trimmed)
	if !ok || !json.Valid([]byte(extracted)) {
		return nil, false
	}
	return json.RawMessage(extracted), true
}

// firstBalancedObject scans for the first top-level {...} span,
// honoring strings and escapes so braces inside values don't count.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
