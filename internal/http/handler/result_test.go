package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/insight/internal/http/handler"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/service"
)

var _ = Describe("ResultHandler", func() {
	var (
		router *gin.Engine
		svc    *mockResultService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockResultService{}
		h := handler.NewResultHandler(svc)
		router.GET("/documents/:id/result", h.Result)
		router.GET("/documents/:id/views/status", h.ViewsStatus)
	})

	Describe("Result", func() {
		It("serves the multi-view bundle by default", func() {
			svc.multiViewFn = func(_ context.Context, documentID int64) (*service.MultiViewResult, error) {
				Expect(documentID).To(Equal(int64(42)))
				return &service.MultiViewResult{
					DocumentID: 42,
					Views: map[model.ViewName]json.RawMessage{
						model.ViewLearning: json.RawMessage(`{"steps":[]}`),
						model.ViewQA:       json.RawMessage(`{"faq":[]}`),
					},
					Meta: service.ResultMeta{
						EnabledViews: []model.ViewName{model.ViewLearning, model.ViewQA},
						PrimaryView:  model.ViewLearning,
						Confidence:   0.93,
						ViewCount:    2,
						Timestamp:    time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
					},
				}, nil
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/42/result", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["document_id"]).To(Equal("42"))

			views, ok := resp["views"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(views).To(HaveKey("learning"))
			Expect(views).To(HaveKey("qa"))

			meta, ok := resp["meta"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(meta["primary_view"]).To(Equal("learning"))
			Expect(meta["view_count"]).To(BeNumerically("==", 2))
			Expect(meta["confidence"]).To(BeNumerically("~", 0.93, 1e-9))
		})

		It("returns 404 when nothing is stored yet", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/42/result", nil))

			Expect(w.Code).To(Equal(http.StatusNotFound))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["error"]).To(Equal("no results stored for document"))
		})

		It("serves a single view when ?view= is given", func() {
			score := 0.81
			svc.singleViewFn = func(_ context.Context, documentID int64, view model.ViewName) (*service.SingleViewResult, error) {
				Expect(documentID).To(Equal(int64(42)))
				Expect(view).To(Equal(model.ViewQA))
				return &service.SingleViewResult{
					DocumentID:            42,
					View:                  model.ViewQA,
					DocumentType:          "faq",
					Result:                json.RawMessage(`{"faq":[{"q":"?"}]}`),
					ProcessingTimeSeconds: 1.5,
					QualityScore:          &score,
					CreatedAt:             time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
				}, nil
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/42/result?view=qa", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["view"]).To(Equal("qa"))
			Expect(resp["document_type"]).To(Equal("faq"))
			Expect(resp["processing_time"]).To(BeNumerically("~", 1.5, 1e-9))
			Expect(resp["quality_score"]).To(BeNumerically("~", 0.81, 1e-9))
		})

		It("serves the requested subset when ?views= is given", func() {
			var requested []model.ViewName
			svc.selectedViewsFn = func(_ context.Context, _ int64, views []model.ViewName) (*service.SelectedViewsResult, error) {
				requested = views
				return &service.SelectedViewsResult{
					DocumentID:     42,
					RequestedViews: views,
					Results: map[model.ViewName]json.RawMessage{
						model.ViewQA: json.RawMessage(`{"faq":[]}`),
					},
				}, nil
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/42/result?views=qa,system", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(requested).To(Equal([]model.ViewName{model.ViewQA, model.ViewSystem}))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			results, ok := resp["results"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(results).To(HaveKey("qa"))
			Expect(results).NotTo(HaveKey("system"))
		})
	})

	Describe("ViewsStatus", func() {
		It("reports per-view readiness", func() {
			seconds := 1.5
			hasContent := true
			svc.statusFn = func(_ context.Context, _ int64) (*service.ViewsStatus, error) {
				return &service.ViewsStatus{
					DocumentID: 42,
					Views: map[model.ViewName]service.ViewStatus{
						model.ViewLearning: {
							View:                  model.ViewLearning,
							Status:                model.DocumentStatusCompleted,
							Ready:                 true,
							IsPrimary:             true,
							ProcessingTimeSeconds: &seconds,
							HasContent:            &hasContent,
						},
						model.ViewQA: {
							View:   model.ViewQA,
							Status: model.DocumentStatusPending,
						},
					},
					PrimaryView:  model.ViewLearning,
					EnabledViews: []model.ViewName{model.ViewLearning, model.ViewQA},
				}, nil
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/42/views/status", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["primary_view"]).To(Equal("learning"))

			statuses, ok := resp["views_status"].(map[string]any)
			Expect(ok).To(BeTrue())
			learning, _ := statuses["learning"].(map[string]any)
			Expect(learning["ready"]).To(BeTrue())
			Expect(learning["is_primary"]).To(BeTrue())
			Expect(learning["has_content"]).To(BeTrue())
			qa, _ := statuses["qa"].(map[string]any)
			Expect(qa["ready"]).To(BeFalse())
			Expect(qa).NotTo(HaveKey("processing_time"))
		})
	})
})
