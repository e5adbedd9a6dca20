package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/http/handler"
	"basegraph.app/insight/internal/model"
)

func multipartUpload(filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", filename)
	_, _ = part.Write([]byte(content))
	for k, v := range fields {
		_ = writer.WriteField(k, v)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

var _ = Describe("UploadHandler", func() {
	var (
		router *gin.Engine
		svc    *mockUploadService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockUploadService{}
		h := handler.NewUploadHandler(svc)
		router.POST("/upload", h.Upload)
	})

	It("returns 200 with document and task IDs as strings", func() {
		uploaded := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
		svc.uploadFn = func(_ context.Context, filename string, size int64, content io.Reader, _ []model.ViewName) (*model.Document, *model.ProcessingTask, error) {
			data, err := io.ReadAll(content)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("# Docker Guide"))
			Expect(size).To(Equal(int64(len("# Docker Guide"))))
			return &model.Document{
					ID:         42,
					Filename:   filename,
					FileSize:   size,
					FileType:   model.FileTypeMarkdown,
					Status:     model.DocumentStatusPending,
					UploadTime: uploaded,
				}, &model.ProcessingTask{
					ID:         7,
					DocumentID: 42,
				}, nil
		}

		body, contentType := multipartUpload("guide.md", "# Docker Guide", nil)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["document_id"]).To(Equal("42"))
		Expect(resp["task_id"]).To(Equal("7"))
		Expect(resp["filename"]).To(Equal("guide.md"))
		Expect(resp["file_type"]).To(Equal("md"))
		Expect(resp["status"]).To(Equal("pending"))
	})

	It("forwards the comma-separated views hint", func() {
		var hint []model.ViewName
		svc.uploadFn = func(_ context.Context, _ string, _ int64, _ io.Reader, viewsHint []model.ViewName) (*model.Document, *model.ProcessingTask, error) {
			hint = viewsHint
			return &model.Document{ID: 1, Status: model.DocumentStatusPending}, &model.ProcessingTask{ID: 2}, nil
		}

		body, contentType := multipartUpload("faq.txt", "Q: what?", map[string]string{
			"views": "qa, learning",
		})
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(hint).To(Equal([]model.ViewName{model.ViewQA, model.ViewLearning}))
	})

	It("returns 400 when the file part is missing", func() {
		req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("not multipart"))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["status"]).To(Equal("failed"))
		Expect(resp["error_type"]).To(Equal("bad_request"))
		Expect(resp["user_actions"]).To(BeEmpty())
	})

	It("maps legacy .doc rejections to 400 with the convert action first", func() {
		svc.uploadFn = func(_ context.Context, _ string, _ int64, _ io.Reader, _ []model.ViewName) (*model.Document, *model.ProcessingTask, error) {
			return nil, nil, apperr.New(apperr.KindUnsupportedFormat, "legacy .doc is not supported").
				WithDetail("extension", "doc").
				WithDetail("suggested_action", "convert_to_docx")
		}

		body, contentType := multipartUpload("old.doc", "ancient", nil)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["error_type"]).To(Equal("unsupported_format"))

		details, ok := resp["error_details"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(details["extension"]).To(Equal("doc"))

		actions, ok := resp["user_actions"].([]any)
		Expect(ok).To(BeTrue())
		Expect(actions).To(HaveLen(2))
		first, _ := actions[0].(map[string]any)
		Expect(first["action"]).To(Equal("convert_to_docx"))
	})

	It("maps oversized uploads to 413 with split and re-upload actions", func() {
		svc.uploadFn = func(_ context.Context, _ string, _ int64, _ io.Reader, _ []model.ViewName) (*model.Document, *model.ProcessingTask, error) {
			return nil, nil, apperr.Newf(apperr.KindFileTooLarge, "file exceeds the 30 MiB limit")
		}

		body, contentType := multipartUpload("big.pdf", "xxxx", nil)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())

		actions, ok := resp["user_actions"].([]any)
		Expect(ok).To(BeTrue())
		var names []string
		for _, a := range actions {
			m, _ := a.(map[string]any)
			names = append(names, m["action"].(string))
		}
		Expect(names).To(Equal([]string{"split_document", "re_upload"}))
	})
})
