package service_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/service"
	"basegraph.app/insight/internal/store"
)

var _ = Describe("ResultService", func() {
	var (
		ctx context.Context
		st  *mockStores
		svc service.ResultService
	)

	knownDocument := func() {
		st.docs.getByIDFn = func(_ context.Context, _ int64) (*model.Document, error) {
			return &model.Document{ID: 42, Status: model.DocumentStatusCompleted}, nil
		}
	}

	resultRow := func(view model.ViewName, primary bool, updated time.Time) model.ProcessingResult {
		return model.ProcessingResult{
			ID:                    int64(len(view)),
			DocumentID:            42,
			View:                  view,
			ResultData:            json.RawMessage(`{"view":"` + string(view) + `"}`),
			IsPrimary:             primary,
			ProcessingTimeSeconds: 1.5,
			CreatedAt:             updated.Add(-time.Minute),
			UpdatedAt:             updated,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		st = newMockStores()
		svc = service.NewResultService(st)
	})

	Describe("MultiView", func() {
		It("returns not found when the document has no results yet", func() {
			knownDocument()
			_, err := svc.MultiView(ctx, 42)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("bundles every stored view with profile metadata", func() {
			knownDocument()
			newest := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
			st.results.listFn = func(_ context.Context, _ int64) ([]model.ProcessingResult, error) {
				return []model.ProcessingResult{
					resultRow(model.ViewLearning, true, newest.Add(-time.Hour)),
					resultRow(model.ViewQA, false, newest),
				}, nil
			}
			st.profiles.getFn = func(_ context.Context, _ int64) (*model.DocumentViewProfile, error) {
				return &model.DocumentViewProfile{
					DocumentID:   42,
					PrimaryView:  model.ViewLearning,
					EnabledViews: []model.ViewName{model.ViewLearning, model.ViewQA},
					Confidence:   0.93,
				}, nil
			}

			out, err := svc.MultiView(ctx, 42)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Views).To(HaveLen(2))
			Expect(out.Views).To(HaveKey(model.ViewLearning))
			Expect(out.Views).To(HaveKey(model.ViewQA))
			Expect(out.Meta.PrimaryView).To(Equal(model.ViewLearning))
			Expect(out.Meta.Confidence).To(Equal(0.93))
			Expect(out.Meta.ViewCount).To(Equal(2))
			Expect(out.Meta.Timestamp).To(Equal(newest))
		})
	})

	Describe("SingleView", func() {
		It("rejects unknown view names", func() {
			_, err := svc.SingleView(ctx, 42, "graph")
			Expect(apperr.IsKind(err, apperr.KindBadRequest)).To(BeTrue())
		})

		It("returns not found when the view has no result", func() {
			_, err := svc.SingleView(ctx, 42, model.ViewQA)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("labels the result with the primary view's document type and quality score", func() {
			st.results.getFn = func(_ context.Context, _ int64, view model.ViewName) (*model.ProcessingResult, error) {
				row := resultRow(view, false, time.Now())
				return &row, nil
			}
			st.profiles.getFn = func(_ context.Context, _ int64) (*model.DocumentViewProfile, error) {
				return &model.DocumentViewProfile{PrimaryView: model.ViewLearning}, nil
			}
			st.quality.getLatestFn = func(_ context.Context, _ int64, _ model.ViewName) (*model.AiResultQuality, error) {
				return &model.AiResultQuality{QualityScore: 0.81}, nil
			}

			out, err := svc.SingleView(ctx, 42, model.ViewQA)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.View).To(Equal(model.ViewQA))
			Expect(out.DocumentType).To(Equal("tutorial"))
			Expect(out.QualityScore).To(HaveValue(Equal(0.81)))
			Expect(out.ProcessingTimeSeconds).To(Equal(1.5))
		})

		It("falls back to the requested view's type without a profile", func() {
			st.results.getFn = func(_ context.Context, _ int64, view model.ViewName) (*model.ProcessingResult, error) {
				row := resultRow(view, false, time.Now())
				return &row, nil
			}

			out, err := svc.SingleView(ctx, 42, model.ViewSystem)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.DocumentType).To(Equal("technical_doc"))
			Expect(out.QualityScore).To(BeNil())
		})
	})

	Describe("SelectedViews", func() {
		It("rejects an empty list", func() {
			_, err := svc.SelectedViews(ctx, 42, nil)
			Expect(apperr.IsKind(err, apperr.KindBadRequest)).To(BeTrue())
		})

		It("omits requested views that have no result", func() {
			knownDocument()
			st.results.getFn = func(_ context.Context, _ int64, view model.ViewName) (*model.ProcessingResult, error) {
				if view != model.ViewLearning {
					return nil, store.ErrNotFound
				}
				row := resultRow(view, true, time.Now())
				return &row, nil
			}

			out, err := svc.SelectedViews(ctx, 42, []model.ViewName{model.ViewLearning, model.ViewSystem})

			Expect(err).NotTo(HaveOccurred())
			Expect(out.RequestedViews).To(Equal([]model.ViewName{model.ViewLearning, model.ViewSystem}))
			Expect(out.Results).To(HaveLen(1))
			Expect(out.Results).To(HaveKey(model.ViewLearning))
		})

		It("returns not found when none of the requested views exist", func() {
			knownDocument()
			_, err := svc.SelectedViews(ctx, 42, []model.ViewName{model.ViewQA})
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("Status", func() {
		It("marks stored views ready and pending ones not", func() {
			knownDocument()
			st.profiles.getFn = func(_ context.Context, _ int64) (*model.DocumentViewProfile, error) {
				return &model.DocumentViewProfile{
					PrimaryView:  model.ViewLearning,
					EnabledViews: []model.ViewName{model.ViewLearning, model.ViewQA, model.ViewSystem},
				}, nil
			}
			st.results.getFn = func(_ context.Context, _ int64, view model.ViewName) (*model.ProcessingResult, error) {
				if view != model.ViewLearning {
					return nil, store.ErrNotFound
				}
				row := resultRow(view, true, time.Now())
				return &row, nil
			}
			st.tasks.getLatestByViewFn = func(_ context.Context, _ int64, view model.ViewName) (*model.ProcessingTask, error) {
				if view != model.ViewSystem {
					return nil, store.ErrNotFound
				}
				return &model.ProcessingTask{Status: model.DocumentStatusFailed}, nil
			}

			out, err := svc.Status(ctx, 42)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.PrimaryView).To(Equal(model.ViewLearning))
			Expect(out.Views).To(HaveLen(3))

			learning := out.Views[model.ViewLearning]
			Expect(learning.Ready).To(BeTrue())
			Expect(learning.Status).To(Equal(model.DocumentStatusCompleted))
			Expect(learning.IsPrimary).To(BeTrue())
			Expect(learning.ProcessingTimeSeconds).To(HaveValue(Equal(1.5)))
			Expect(learning.HasContent).To(HaveValue(BeTrue()))

			system := out.Views[model.ViewSystem]
			Expect(system.Ready).To(BeFalse())
			Expect(system.Status).To(Equal(model.DocumentStatusFailed))
			Expect(system.IsPrimary).To(BeFalse())

			qa := out.Views[model.ViewQA]
			Expect(qa.Ready).To(BeFalse())
			Expect(qa.Status).To(Equal(model.DocumentStatusPending))
		})

		It("reports all known views as pending before classification", func() {
			knownDocument()

			out, err := svc.Status(ctx, 42)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.EnabledViews).To(BeEmpty())
			Expect(out.Views).To(HaveLen(len(model.AllViews)))
			for _, vs := range out.Views {
				Expect(vs.Ready).To(BeFalse())
				Expect(vs.Status).To(Equal(model.DocumentStatusPending))
			}
		})
	})
})
