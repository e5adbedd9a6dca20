package llm

import "time"

// Config tunes the gateway's retry envelope. Zero values fall back to
// the documented defaults.
type Config struct {
	CallTimeout time.Duration // per-attempt deadline, default 60s
	MaxAttempts int           // total attempts per call, default 3
	MaxTokens   int           // completion budget when a call leaves it 0
	Mock        MockConfig    // failure injection, refused in production
	Production  bool
	FallbackTTL time.Duration // lifetime of cached fallback responses
	BaseBackoff time.Duration // retry backoff base, default 2s
	MaxBackoff  time.Duration // retry backoff ceiling, default 10s
}

const (
	defaultCallTimeout = 60 * time.Second
	defaultMaxAttempts = 3
	defaultMaxBackoff  = 10 * time.Second
	defaultBaseBackoff = 2 * time.Second
)

func (c Config) callTimeout() time.Duration {
	if c.CallTimeout > 0 {
		return c.CallTimeout
	}
	return defaultCallTimeout
}

func (c Config) maxAttempts() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return defaultMaxAttempts
}

func (c Config) baseBackoff() time.Duration {
	if c.BaseBackoff > 0 {
		return c.BaseBackoff
	}
	return defaultBaseBackoff
}

func (c Config) maxBackoff() time.Duration {
	if c.MaxBackoff > 0 {
		return c.MaxBackoff
	}
	return defaultMaxBackoff
}

// CallOption customizes a single gateway call.
type CallOption func(*callOptions)

type callOptions struct {
	callType        string
	documentID      *int64
	taskID          *int64
	maxTokens       int
	temperature     *float64
	fallbackDefault *string
}

// WithCallType labels the call for metrics, e.g. "view_classification".
func WithCallType(callType string) CallOption {
	return func(o *callOptions) { o.callType = callType }
}

// WithDocument attributes the call's metric to a document and task.
func WithDocument(documentID, taskID int64) CallOption {
	return func(o *callOptions) {
		o.documentID = &documentID
		o.taskID = &taskID
	}
}

// WithMaxTokens overrides the completion budget for this call.
func WithMaxTokens(maxTokens int) CallOption {
	return func(o *callOptions) { o.maxTokens = maxTokens }
}

// WithTemperature pins the sampling temperature for this call.
func WithTemperature(t float64) CallOption {
	return func(o *callOptions) { o.temperature = &t }
}

// WithFallback opts the call into degraded-mode answers: on terminal
// failure the gateway returns a cached response for the same messages,
// or def when none is cached. Chat completions only.
func WithFallback(def string) CallOption {
	return func(o *callOptions) { o.fallbackDefault = &def }
}

func applyOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.callType == "" {
		o.callType = "chat"
	}
	return o
}
