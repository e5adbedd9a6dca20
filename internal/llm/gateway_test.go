package llm_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	corellm "basegraph.app/insight/common/llm"
	"basegraph.app/insight/internal/apperr"
	gw "basegraph.app/insight/internal/llm"
	"basegraph.app/insight/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeClient struct {
	mu     sync.Mutex
	chatFn func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error)
	reqs   []corellm.ChatRequest
}

func (f *fakeClient) Chat(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.chatFn(ctx, req)
}

func (f *fakeClient) Model() string { return "fake-model" }

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *fakeClient) request(i int) corellm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[i]
}

type fakeMetricSink struct {
	mu      sync.Mutex
	metrics []model.AiCallMetric
}

func (s *fakeMetricSink) Append(ctx context.Context, metric *model.AiCallMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, *metric)
	return nil
}

func (s *fakeMetricSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.metrics)
}

func (s *fakeMetricSink) last() model.AiCallMetric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics[len(s.metrics)-1]
}

func fastConfig() gw.Config {
	return gw.Config{
		CallTimeout: time.Second,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

var userMessages = []corellm.Message{
	{Role: "system", Content: "You label documents."},
	{Role: "user", Content: "Label this."},
}

var _ = Describe("Gateway.ChatCompletion", func() {
	var (
		client *fakeClient
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &fakeClient{}
	})

	It("returns the reply content on success", func() {
		client.chatFn = func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return &corellm.ChatResponse{Content: "learning"}, nil
		}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		out, err := gateway.ChatCompletion(ctx, userMessages)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("learning"))
		Expect(client.calls()).To(Equal(1))
		Expect(client.request(0).JSONMode).To(BeFalse())
	})

	It("retries retryable failures until the call succeeds", func() {
		client.chatFn = func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			if client.calls() < 3 {
				return nil, &corellm.APIError{StatusCode: http.StatusInternalServerError, Err: errors.New("boom")}
			}
			return &corellm.ChatResponse{Content: "recovered"}, nil
		}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		out, err := gateway.ChatCompletion(ctx, userMessages)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("recovered"))
		Expect(client.calls()).To(Equal(3))
	})

	It("does not retry non-retryable failures", func() {
		client.chatFn = func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return nil, &corellm.APIError{StatusCode: http.StatusUnauthorized, Err: errors.New("bad key")}
		}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = gateway.ChatCompletion(ctx, userMessages)
		Expect(apperr.IsKind(err, apperr.KindAiCallFailed)).To(BeTrue())
		Expect(apperr.DetailsOf(err)).To(HaveKeyWithValue("last_error_kind", "unauthorized"))
		Expect(client.calls()).To(Equal(1))
	})

	It("gives up after three attempts and reports the last kind", func() {
		client.chatFn = func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return nil, &corellm.APIError{Err: errors.New("connection refused")}
		}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = gateway.ChatCompletion(ctx, userMessages)
		Expect(apperr.IsKind(err, apperr.KindAiCallFailed)).To(BeTrue())
		Expect(apperr.DetailsOf(err)).To(HaveKeyWithValue("last_error_kind", "network_error"))
		Expect(apperr.DetailsOf(err)).To(HaveKeyWithValue("attempts", 3))
		Expect(client.calls()).To(Equal(3))
	})

	It("retries rate limits", func() {
		client.chatFn = func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			if client.calls() < 2 {
				return nil, &corellm.APIError{
					StatusCode: http.StatusTooManyRequests,
					RetryAfter: time.Millisecond,
					Err:        errors.New("slow down"),
				}
			}
			return &corellm.ChatResponse{Content: "ok"}, nil
		}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		out, err := gateway.ChatCompletion(ctx, userMessages)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("ok"))
		Expect(client.calls()).To(Equal(2))
	})

	It("serves the declared default on terminal failure with fallback opt-in", func() {
		client.chatFn = func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return nil, &corellm.APIError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("down")}
		}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		out, err := gateway.ChatCompletion(ctx, userMessages, gw.WithFallback("degraded answer"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("degraded answer"))
	})

	It("surfaces the failure when fallback was not requested", func() {
		client.chatFn = func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return nil, &corellm.APIError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("down")}
		}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = gateway.ChatCompletion(ctx, userMessages)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Gateway.GenerateJSON", func() {
	var (
		client *fakeClient
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &fakeClient{}
	})

	It("returns the object and requests JSON mode with the schema hint", func() {
		client.chatFn = func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return &corellm.ChatResponse{Content: `{"view":"qa","confidence":0.8}`}, nil
		}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		raw, err := gateway.GenerateJSON(ctx, userMessages, `{"type":"object"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(Equal(`{"view":"qa","confidence":0.8}`))

		req := client.request(0)
		Expect(req.JSONMode).To(BeTrue())
		Expect(req.Messages).To(HaveLen(len(userMessages) + 1))
		Expect(req.Messages[len(req.Messages)-1].Content).To(ContainSubstring(`{"type":"object"}`))
	})

	It("extracts the object from fenced or prosaic replies", func() {
		client.chatFn = func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return &corellm.ChatResponse{Content: "Here you go:\n```json\n{\"a\": 1}\n```\nHope that helps!"}, nil
		}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		raw, err := gateway.GenerateJSON(ctx, userMessages, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(Equal(`{"a": 1}`))
		Expect(client.calls()).To(Equal(1))
	})

	It("repairs malformed output with one extra round trip", func() {
		client.chatFn = func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			if client.calls() == 1 {
				return &corellm.ChatResponse{Content: "certainly, the answer is yes"}, nil
			}
			return &corellm.ChatResponse{Content: `{"fixed":true}`}, nil
		}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		raw, err := gateway.GenerateJSON(ctx, userMessages, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(Equal(`{"fixed":true}`))
		Expect(client.calls()).To(Equal(2))

		repairReq := client.request(1)
		last := repairReq.Messages[len(repairReq.Messages)-1]
		Expect(last.Content).To(ContainSubstring("valid JSON only"))
	})

	It("reports parse_error when repair does not help", func() {
		client.chatFn = func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return &corellm.ChatResponse{Content: "still not json"}, nil
		}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = gateway.GenerateJSON(ctx, userMessages, "")
		Expect(apperr.IsKind(err, apperr.KindParseError)).To(BeTrue())
		Expect(apperr.DetailsOf(err)).To(HaveKeyWithValue("reason", "invalid_response"))
		Expect(client.calls()).To(Equal(2))
	})

	It("refuses fallback defaults", func() {
		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = gateway.GenerateJSON(ctx, userMessages, "", gw.WithFallback("{}"))
		Expect(apperr.IsKind(err, apperr.KindBadRequest)).To(BeTrue())
	})
})

var _ = Describe("Gateway mock injection", func() {
	It("is refused in production", func() {
		cfg := fastConfig()
		cfg.Production = true
		cfg.Mock = gw.MockConfig{Enabled: true, FailureType: gw.MockFailureTimeout, Probability: 1}

		_, err := gw.NewGateway(&fakeClient{}, cfg, nil, nil, nil)
		Expect(err).To(MatchError(ContainSubstring("not allowed in production")))
	})

	It("rejects unknown failure types", func() {
		cfg := fastConfig()
		cfg.Mock = gw.MockConfig{Enabled: true, FailureType: "solar_flare", Probability: 1}

		_, err := gw.NewGateway(&fakeClient{}, cfg, nil, nil, nil)
		Expect(err).To(MatchError(ContainSubstring("unknown mock failure type")))
	})

	It("injects the configured failure without touching the provider", func() {
		client := &fakeClient{chatFn: func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return &corellm.ChatResponse{Content: "real"}, nil
		}}

		cfg := fastConfig()
		cfg.Mock = gw.MockConfig{Enabled: true, FailureType: gw.MockFailureBadRequest, Probability: 1, Seed: 42}

		gateway, err := gw.NewGateway(client, cfg, nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = gateway.ChatCompletion(context.Background(), userMessages)
		Expect(apperr.IsKind(err, apperr.KindAiCallFailed)).To(BeTrue())
		Expect(apperr.DetailsOf(err)).To(HaveKeyWithValue("last_error_kind", "bad_request"))
		Expect(client.calls()).To(BeZero())
	})

	It("makes GenerateJSON fail as parse_error on injected garbage", func() {
		client := &fakeClient{chatFn: func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return &corellm.ChatResponse{Content: `{"never":"reached"}`}, nil
		}}

		cfg := fastConfig()
		cfg.Mock = gw.MockConfig{Enabled: true, FailureType: gw.MockFailureInvalidResponse, Probability: 1, Seed: 7}

		gateway, err := gw.NewGateway(client, cfg, nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = gateway.GenerateJSON(context.Background(), userMessages, "")
		Expect(apperr.IsKind(err, apperr.KindParseError)).To(BeTrue())
		Expect(client.calls()).To(BeZero())
	})
})

var _ = Describe("Gateway.SmokeCheck", func() {
	It("passes when the provider answers", func() {
		client := &fakeClient{chatFn: func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return &corellm.ChatResponse{Content: "ok"}, nil
		}}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(gateway.SmokeCheck(context.Background())).To(Succeed())
		Expect(client.request(0).MaxTokens).To(Equal(8))
	})

	It("fails once retries are exhausted", func() {
		client := &fakeClient{chatFn: func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return nil, &corellm.APIError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("down")}
		}}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		err = gateway.SmokeCheck(context.Background())
		Expect(apperr.IsKind(err, apperr.KindAiCallFailed)).To(BeTrue())
		Expect(client.calls()).To(Equal(3))
	})
})

var _ = Describe("Gateway metrics", func() {
	It("emits one success metric per attempt-set", func() {
		client := &fakeClient{chatFn: func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return &corellm.ChatResponse{Content: "ok"}, nil
		}}
		sink := &fakeMetricSink{}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, sink, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = gateway.ChatCompletion(context.Background(), userMessages,
			gw.WithCallType("view_classification"), gw.WithDocument(11, 22))
		Expect(err).NotTo(HaveOccurred())

		Eventually(sink.count).Should(Equal(1))
		m := sink.last()
		Expect(m.CallType).To(Equal("view_classification"))
		Expect(m.Status).To(Equal(model.AiCallStatusSuccess))
		Expect(m.RetryCount).To(Equal(int32(0)))
		Expect(*m.DocumentID).To(Equal(int64(11)))
		Expect(*m.TaskID).To(Equal(int64(22)))
	})

	It("labels exhausted calls failed with the retry count and error type", func() {
		client := &fakeClient{chatFn: func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return nil, &corellm.APIError{StatusCode: http.StatusInternalServerError, Err: errors.New("boom")}
		}}
		sink := &fakeMetricSink{}

		gateway, err := gw.NewGateway(client, fastConfig(), nil, sink, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = gateway.ChatCompletion(context.Background(), userMessages)
		Expect(err).To(HaveOccurred())

		Eventually(sink.count).Should(Equal(1))
		m := sink.last()
		Expect(m.Status).To(Equal(model.AiCallStatusFailed))
		Expect(m.RetryCount).To(Equal(int32(2)))
		Expect(*m.ErrorType).To(Equal("server_error"))
	})

	It("labels mock-served calls mocked", func() {
		client := &fakeClient{chatFn: func(ctx context.Context, req corellm.ChatRequest) (*corellm.ChatResponse, error) {
			return &corellm.ChatResponse{Content: "real"}, nil
		}}
		sink := &fakeMetricSink{}

		cfg := fastConfig()
		cfg.Mock = gw.MockConfig{Enabled: true, FailureType: gw.MockFailureInvalidResponse, Probability: 1}

		gateway, err := gw.NewGateway(client, cfg, nil, sink, nil)
		Expect(err).NotTo(HaveOccurred())

		out, err := gateway.ChatCompletion(context.Background(), userMessages)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("not JSON"))

		Eventually(sink.count).Should(Equal(1))
		Expect(sink.last().Status).To(Equal(model.AiCallStatusMocked))
	})
})
