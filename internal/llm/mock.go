package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"basegraph.app/insight/common/llm"
)

// MockConfig drives deterministic failure injection for tests and local
// runs. Never enabled in production.
type MockConfig struct {
	Enabled     bool
	FailureType string
	Probability float64
	Seed        int64
}

// Injectable failure types.
const (
	MockFailureTimeout            = "timeout"
	MockFailureRateLimit          = "rate_limit"
	MockFailureServerError        = "server_error"
	MockFailureNetworkError       = "network_error"
	MockFailureInvalidResponse    = "invalid_response"
	MockFailureUnauthorized       = "unauthorized"
	MockFailureBadRequest         = "bad_request"
	MockFailureServiceUnavailable = "service_unavailable"
)

var mockFailureTypes = map[string]bool{
	MockFailureTimeout:            true,
	MockFailureRateLimit:          true,
	MockFailureServerError:        true,
	MockFailureNetworkError:       true,
	MockFailureInvalidResponse:    true,
	MockFailureUnauthorized:       true,
	MockFailureBadRequest:         true,
	MockFailureServiceUnavailable: true,
}

type mockInjector struct {
	cfg MockConfig

	mu  sync.Mutex
	rng *rand.Rand
}

func newMockInjector(cfg MockConfig, production bool) (*mockInjector, error) {
	if production {
		return nil, fmt.Errorf("mock injection is not allowed in production")
	}
	if !mockFailureTypes[cfg.FailureType] {
		return nil, fmt.Errorf("unknown mock failure type %q", cfg.FailureType)
	}
	if cfg.Probability < 0 || cfg.Probability > 1 {
		return nil, fmt.Errorf("mock probability must be in [0,1]")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	return &mockInjector{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// intercept rolls the seeded RNG once per attempt. When the roll lands
// it produces the configured failure shaped exactly like a provider one,
// so the retry and classification paths above cannot tell the difference.
func (m *mockInjector) intercept() (bool, *llm.ChatResponse, error) {
	m.mu.Lock()
	roll := m.rng.Float64()
	m.mu.Unlock()

	if roll >= m.cfg.Probability {
		return false, nil, nil
	}

	switch m.cfg.FailureType {
	case MockFailureTimeout:
		return true, nil, &llm.APIError{Err: context.DeadlineExceeded}
	case MockFailureRateLimit:
		return true, nil, &llm.APIError{
			StatusCode: http.StatusTooManyRequests,
			RetryAfter: time.Second,
			Err:        errors.New("mock: rate limited"),
		}
	case MockFailureServerError:
		return true, nil, &llm.APIError{
			StatusCode: http.StatusInternalServerError,
			Err:        errors.New("mock: internal server error"),
		}
	case MockFailureNetworkError:
		return true, nil, &llm.APIError{Err: errors.New("mock: connection reset by peer")}
	case MockFailureUnauthorized:
		return true, nil, &llm.APIError{
			StatusCode: http.StatusUnauthorized,
			Err:        errors.New("mock: invalid api key"),
		}
	case MockFailureBadRequest:
		return true, nil, &llm.APIError{
			StatusCode: http.StatusBadRequest,
			Err:        errors.New("mock: malformed request"),
		}
	case MockFailureServiceUnavailable:
		return true, nil, &llm.APIError{
			StatusCode: http.StatusServiceUnavailable,
			RetryAfter: 2 * time.Second,
			Err:        errors.New("mock: service unavailable"),
		}
	case MockFailureInvalidResponse:
		// A "successful" reply that no JSON parser will accept.
		return true, &llm.ChatResponse{
			Content:      "I'd be happy to help! Here is some text that is definitely not JSON {",
			FinishReason: "stop",
		}, nil
	default:
		return false, nil, nil
	}
}
