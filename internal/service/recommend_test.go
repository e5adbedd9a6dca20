package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/service"
	"basegraph.app/insight/internal/store"
	"basegraph.app/insight/internal/views"
)

var _ = Describe("RecommendService", func() {
	var (
		ctx context.Context
		st  *mockStores
		gw  *fakeGateway
		svc service.RecommendService
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = newMockStores()
		gw = &fakeGateway{}
		svc = service.NewRecommendService(st, views.NewClassifier(gw, 0, 0))
	})

	It("requires stored intermediate artifacts", func() {
		_, err := svc.Recommend(ctx, 42)
		Expect(err).To(MatchError(store.ErrNotFound))
	})

	It("returns the rule verdict with scores, cache key and type mapping", func() {
		st.intermediates.getFn = func(_ context.Context, _ int64) (*model.IntermediateResult, error) {
			return &model.IntermediateResult{
				DocumentID:       42,
				PreprocessedText: "This tutorial is a step by step guide to Docker.\n\nQ: What is Docker?\nA: Docker is a container runtime.",
			}, nil
		}

		out, err := svc.Recommend(ctx, 42)

		Expect(err).NotTo(HaveOccurred())
		Expect(out.PrimaryView).To(Equal(model.ViewLearning))
		Expect(out.EnabledViews).To(ConsistOf(model.ViewLearning, model.ViewQA, model.ViewSystem))
		Expect(out.Method).To(Equal(model.DetectionMethodRule))
		Expect(out.DetectionScores).To(HaveLen(3))
		for _, score := range out.DetectionScores {
			Expect(score).To(BeNumerically(">", 0.9))
		}
		Expect(out.CacheKey).To(Equal(views.CacheKey(42, out.DetectionScores)))
		Expect(out.TypeMapping).To(HaveKeyWithValue(model.ViewLearning, "tutorial"))
		Expect(out.TypeMapping).To(HaveKeyWithValue(model.ViewQA, "faq"))
		Expect(out.TypeMapping).To(HaveKeyWithValue(model.ViewSystem, "technical_doc"))

		// Confident rule verdicts never reach the model.
		Expect(gw.callCount()).To(BeZero())
	})
})
