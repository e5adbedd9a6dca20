package llm_test

import (
	"strings"
	"time"

	"basegraph.app/insight/common/llm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("New", func() {
	It("rejects a missing API key", func() {
		_, err := llm.New(llm.Config{Provider: llm.ProviderOpenAI})
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unknown provider", func() {
		_, err := llm.New(llm.Config{Provider: "palm", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("unsupported LLM provider")))
	})

	It("defaults to OpenAI", func() {
		client, err := llm.New(llm.Config{APIKey: "k", Model: "gpt-4o-mini"})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Model()).To(Equal("gpt-4o-mini"))
	})
})

var _ = Describe("SchemaJSON", func() {
	type verdict struct {
		View       string `json:"view"`
		Confidence float64 `json:"confidence"`
	}

	It("renders a schema with the struct's fields", func() {
		out := llm.SchemaJSON(&verdict{})
		Expect(out).To(ContainSubstring(`"view"`))
		Expect(out).To(ContainSubstring(`"confidence"`))
		Expect(strings.TrimSpace(out)).To(HavePrefix("{"))
	})

	It("forbids additional properties", func() {
		out := llm.SchemaJSON(&verdict{})
		Expect(out).To(ContainSubstring(`"additionalProperties": false`))
	})
})

var _ = Describe("APIError", func() {
	It("unwraps to the underlying error", func() {
		inner := &llm.APIError{StatusCode: 429, RetryAfter: 2 * time.Second}
		got, ok := llm.AsAPIError(inner)
		Expect(ok).To(BeTrue())
		Expect(got.StatusCode).To(Equal(429))
		Expect(got.RetryAfter).To(Equal(2 * time.Second))
	})
})
