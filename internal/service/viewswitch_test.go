package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/service"
	"basegraph.app/insight/internal/store"
	"basegraph.app/insight/internal/views"
)

var _ = Describe("ViewSwitchService", func() {
	var (
		ctx context.Context
		st  *mockStores
		gw  *fakeGateway
		svc service.ViewSwitchService
	)

	knownDocument := func() {
		st.docs.getByIDFn = func(_ context.Context, _ int64) (*model.Document, error) {
			return &model.Document{ID: 42, Status: model.DocumentStatusCompleted}, nil
		}
	}

	classified := func() {
		st.profiles.getFn = func(_ context.Context, _ int64) (*model.DocumentViewProfile, error) {
			return &model.DocumentViewProfile{
				DocumentID:   42,
				PrimaryView:  model.ViewLearning,
				EnabledViews: []model.ViewName{model.ViewLearning},
			}, nil
		}
	}

	withIntermediate := func() {
		st.intermediates.getFn = func(_ context.Context, _ int64) (*model.IntermediateResult, error) {
			return &model.IntermediateResult{
				ID:               5,
				DocumentID:       42,
				RawText:          "Q: What is Docker?\nA: Docker is a container runtime.",
				PreprocessedText: "Q: What is Docker?\nA: Docker is a container runtime.",
				Segments: []model.Segment{
					{ID: 1, Text: "Q: What is Docker?\nA: Docker is a container runtime.", Start: 0, End: 52},
				},
			}, nil
		}
	}

	qaReplies := func() []any {
		return []any{
			`{"key_points":["Docker basics"],"question_types":{"conceptual":2},"difficulty":{"easy":2},"total_questions":2,"confidence":70,"source_ids":[1]}`,
			`{"questions":[{"question":"What is Docker?","answer":"A container runtime.","confidence":70,"source_ids":[1]}]}`,
			`{"answers":["Docker is a container runtime."]}`,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		st = newMockStores()
		gw = &fakeGateway{}
		tx := &mockTxRunner{stores: st}
		svc = service.NewViewSwitchService(st, tx, views.NewRegistry(gw, 0), nil)
	})

	It("rejects views without a processor", func() {
		_, err := svc.Switch(ctx, 42, "graph")
		Expect(apperr.IsKind(err, apperr.KindBadRequest)).To(BeTrue())
	})

	It("returns not found for an unknown document", func() {
		_, err := svc.Switch(ctx, 42, model.ViewQA)
		Expect(err).To(MatchError(store.ErrNotFound))
	})

	It("rejects documents that have no view profile yet", func() {
		knownDocument()

		_, err := svc.Switch(ctx, 42, model.ViewQA)

		Expect(apperr.IsKind(err, apperr.KindBadRequest)).To(BeTrue())
		Expect(err).To(MatchError(ContainSubstring("not been classified")))
	})

	It("serves an existing result from cache without touching the gateway", func() {
		knownDocument()
		classified()
		st.results.getFn = func(_ context.Context, _ int64, view model.ViewName) (*model.ProcessingResult, error) {
			return &model.ProcessingResult{
				DocumentID:            42,
				View:                  view,
				ResultData:            []byte(`{"cached":true}`),
				ProcessingTimeSeconds: 2.5,
			}, nil
		}

		out, err := svc.Switch(ctx, 42, model.ViewQA)

		Expect(err).NotTo(HaveOccurred())
		Expect(out.FromCache).To(BeTrue())
		Expect(out.UsedIntermediateResults).To(BeFalse())
		Expect(string(out.Result)).To(Equal(`{"cached":true}`))
		Expect(out.ProcessingTimeSeconds).To(Equal(2.5))
		Expect(gw.callCount()).To(BeZero())
		Expect(st.results.upserted).To(BeEmpty())
	})

	It("generates a missing view inline from the stored intermediate", func() {
		knownDocument()
		classified()
		withIntermediate()
		gw.enqueue(qaReplies()...)

		out, err := svc.Switch(ctx, 42, model.ViewQA)

		Expect(err).NotTo(HaveOccurred())
		Expect(out.FromCache).To(BeFalse())
		Expect(out.UsedIntermediateResults).To(BeTrue())
		Expect(string(out.Result)).To(ContainSubstring("What is Docker?"))
		Expect(out.ProcessingTimeSeconds).To(BeNumerically(">=", 0))
		Expect(gw.callCount()).To(Equal(3))

		Expect(st.results.upserted).To(HaveLen(1))
		stored := st.results.upserted[0]
		Expect(stored.ID).NotTo(BeZero())
		Expect(stored.View).To(Equal(model.ViewQA))
		Expect(stored.IsPrimary).To(BeFalse())

		Expect(st.quality.appended).To(HaveLen(1))
		Expect(st.quality.appended[0].View).To(Equal(model.ViewQA))
	})

	It("rejects generation when the intermediate artifacts are gone", func() {
		knownDocument()
		classified()

		_, err := svc.Switch(ctx, 42, model.ViewQA)

		Expect(apperr.IsKind(err, apperr.KindBadRequest)).To(BeTrue())
		Expect(err).To(MatchError(ContainSubstring("no intermediate artifacts")))
	})

	It("propagates processor failures without storing anything", func() {
		knownDocument()
		classified()
		withIntermediate()
		gw.enqueue(apperr.New(apperr.KindAiCallFailed, "model unavailable"))

		_, err := svc.Switch(ctx, 42, model.ViewQA)

		Expect(err).To(MatchError(ContainSubstring("generating qa view")))
		Expect(st.results.upserted).To(BeEmpty())
		Expect(st.quality.appended).To(BeEmpty())
	})

	It("propagates a failed result write", func() {
		knownDocument()
		classified()
		withIntermediate()
		gw.enqueue(qaReplies()...)
		st.results.upsertFn = func(_ context.Context, _ *model.ProcessingResult) error {
			return errors.New("pool exhausted")
		}

		_, err := svc.Switch(ctx, 42, model.ViewQA)

		Expect(err).To(MatchError(ContainSubstring("storing qa result")))
		Expect(st.quality.appended).To(BeEmpty())
	})
})
