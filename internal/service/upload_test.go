package service_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/insight/core/config"
	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/queue"
	"basegraph.app/insight/internal/service"
	"basegraph.app/insight/internal/store"
)

type uploadFixture struct {
	st    *mockStores
	tx    *mockTxRunner
	blobs *mockBlobStore
	prod  *mockProducer
	svc   service.UploadService
}

func newUploadFixture(cfg config.ProcessingConfig) *uploadFixture {
	f := &uploadFixture{
		st:    newMockStores(),
		blobs: &mockBlobStore{},
		prod:  &mockProducer{},
	}
	f.tx = &mockTxRunner{stores: f.st}
	f.svc = service.NewUploadService(f.tx, f.blobs, f.prod, cfg, nil)
	return f
}

var _ = Describe("UploadService", func() {
	var (
		ctx context.Context
		cfg config.ProcessingConfig
		f   *uploadFixture
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.ProcessingConfig{
			MaxFileSizeBytes:   30 * 1024 * 1024,
			TimeCeilingSeconds: 600,
		}
		f = newUploadFixture(cfg)
	})

	Describe("validation", func() {
		It("rejects legacy .doc with the conversion hint", func() {
			_, _, err := f.svc.Upload(ctx, "report.doc", 100, strings.NewReader("x"), nil)

			Expect(apperr.IsKind(err, apperr.KindUnsupportedFormat)).To(BeTrue())
			Expect(apperr.DetailsOf(err)).To(HaveKeyWithValue("extension", "doc"))
			Expect(apperr.DetailsOf(err)).To(HaveKeyWithValue("suggested_action", "convert_to_docx"))
			Expect(f.blobs.writes).To(BeEmpty())
			Expect(f.prod.jobs).To(BeEmpty())
		})

		It("rejects extensions outside the allowed set", func() {
			_, _, err := f.svc.Upload(ctx, "archive.zip", 100, strings.NewReader("x"), nil)

			Expect(apperr.IsKind(err, apperr.KindUnsupportedFormat)).To(BeTrue())
			Expect(apperr.DetailsOf(err)).To(HaveKeyWithValue("extension", "zip"))
		})

		It("rejects files over the declared size limit before reading the stream", func() {
			_, _, err := f.svc.Upload(ctx, "big.pdf", cfg.MaxFileSizeBytes+1, strings.NewReader("tiny"), nil)

			Expect(apperr.IsKind(err, apperr.KindFileTooLarge)).To(BeTrue())
			Expect(f.blobs.writes).To(BeEmpty())
		})

		It("rejects uploads whose processing estimate exceeds the ceiling", func() {
			// 1 MiB of plain text across the assumed three views
			// estimates 10+1048 seconds.
			_, _, err := f.svc.Upload(ctx, "huge.txt", 1024*1024, strings.NewReader("x"), nil)

			Expect(apperr.IsKind(err, apperr.KindTimeExceedsBudget)).To(BeTrue())
			Expect(apperr.DetailsOf(err)).To(HaveKeyWithValue("estimated_seconds", 1058))
		})

		It("lets a views hint bring the same file under the ceiling", func() {
			_, _, err := f.svc.Upload(ctx, "huge.txt", 1024*1024, strings.NewReader("x"),
				[]model.ViewName{model.ViewLearning})

			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects unknown views in the hint", func() {
			_, _, err := f.svc.Upload(ctx, "guide.txt", 10, strings.NewReader("x"),
				[]model.ViewName{"graph"})

			Expect(apperr.IsKind(err, apperr.KindBadRequest)).To(BeTrue())
		})

		It("rejects a stream that outgrows the size limit mid-read", func() {
			small := cfg
			small.MaxFileSizeBytes = 64
			f = newUploadFixture(small)

			_, _, err := f.svc.Upload(ctx, "notes.txt", 10, strings.NewReader(strings.Repeat("a", 200)), nil)

			Expect(apperr.IsKind(err, apperr.KindFileTooLarge)).To(BeTrue())
			Expect(f.blobs.writes).To(BeEmpty())
		})
	})

	Describe("successful upload", func() {
		It("stores the blob, creates pending rows and enqueues the job", func() {
			doc, task, err := f.svc.Upload(ctx, "Guide.MD", 11, strings.NewReader("hello world"), nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(doc.ID).NotTo(BeZero())
			Expect(doc.Filename).To(Equal("Guide.MD"))
			Expect(doc.FileType).To(Equal(model.FileTypeMarkdown))
			Expect(doc.Status).To(Equal(model.DocumentStatusPending))
			Expect(doc.FileSize).To(BeEquivalentTo(11))
			Expect(doc.BlobPath).NotTo(BeEmpty())

			Expect(task.DocumentID).To(Equal(doc.ID))
			Expect(task.Stage).To(Equal(model.TaskStageExtract))
			Expect(task.Status).To(Equal(model.DocumentStatusPending))
			Expect(task.Progress).To(BeZero())

			Expect(f.blobs.writes).To(HaveLen(1))
			Expect(f.blobs.writes[0].documentID).To(Equal(doc.ID))
			Expect(f.blobs.writes[0].size).To(Equal(11))

			Expect(f.st.docs.created).To(HaveLen(1))
			Expect(f.st.tasks.created).To(HaveLen(1))

			Expect(f.prod.jobs).To(Equal([]queue.Job{{
				JobType:    queue.JobTypeProcessDocument,
				DocumentID: doc.ID,
				TaskID:     task.ID,
			}}))
		})

		It("forwards the views hint on the job", func() {
			_, _, err := f.svc.Upload(ctx, "faq.txt", 10, strings.NewReader("0123456789"),
				[]model.ViewName{model.ViewQA, model.ViewLearning})

			Expect(err).NotTo(HaveOccurred())
			Expect(f.prod.jobs).To(HaveLen(1))
			Expect(f.prod.jobs[0].Views).To(Equal([]string{"qa", "learning"}))
		})
	})

	Describe("failure handling", func() {
		It("maps an empty blob to bad_request", func() {
			f.blobs.writeFn = func(_ context.Context, _ int64, _ string, _ []byte) (string, error) {
				return "", store.ErrBlobEmpty
			}

			_, _, err := f.svc.Upload(ctx, "empty.txt", 0, strings.NewReader(""), nil)

			Expect(apperr.IsKind(err, apperr.KindBadRequest)).To(BeTrue())
		})

		It("removes the blob when the transaction fails", func() {
			f.tx.err = errors.New("pool exhausted")

			_, _, err := f.svc.Upload(ctx, "guide.txt", 5, strings.NewReader("hello"), nil)

			Expect(err).To(MatchError(ContainSubstring("pool exhausted")))
			Expect(f.blobs.deleted).To(HaveLen(1))
			Expect(f.prod.jobs).To(BeEmpty())
		})

		It("terminalizes the rows when the job cannot be enqueued", func() {
			f.prod.enqueueFn = func(_ context.Context, _ queue.Job) error {
				return errors.New("stream gone")
			}

			_, _, err := f.svc.Upload(ctx, "guide.txt", 5, strings.NewReader("hello"), nil)

			Expect(err).To(MatchError(ContainSubstring("enqueueing processing job")))
			Expect(f.st.tasks.terminals).To(HaveLen(1))
			Expect(f.st.tasks.terminals[0].status).To(Equal(model.DocumentStatusFailed))
			Expect(f.st.tasks.terminals[0].errType).To(Equal("server_error"))
			Expect(f.st.docs.statuses).To(Equal([]model.DocumentStatus{model.DocumentStatusFailed}))
		})
	})
})
