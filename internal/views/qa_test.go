package views_test

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/views"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("QA processor", func() {
	var (
		ctx context.Context
		gw  *fakeGateway
		rec *progressRecorder
		p   views.Processor
	)

	BeforeEach(func() {
		ctx = context.Background()
		gw = &fakeGateway{}
		rec = &progressRecorder{}
		p = processorFor(views.NewRegistry(gw, time.Minute), model.ViewQA)
	})

	It("reports three steps", func() {
		Expect(p.View()).To(Equal(model.ViewQA))
		Expect(p.Steps()).To(Equal(3))
	})

	It("keeps absent confidence absent", func() {
		answers := make([]string, 25)
		for i := range answers {
			answers[i] = fmt.Sprintf("answer %d", i+1)
		}
		answersReply, err := json.Marshal(map[string]any{"answers": answers})
		Expect(err).NotTo(HaveOccurred())

		gw.enqueue(
			`{"key_points": ["Docker install", "Registry mirroring"], "question_types": {"factual": 2}, "difficulty": {"easy": 1, "medium": 1}, "total_questions": 2}`,
			`{"questions": [
				{"question": "How do you install Docker?", "answer": "Run the installer.", "difficulty": "easy", "confidence": 75, "source_ids": [1]},
				{"question": "Where do pulls go?", "answer": "Through the mirror.", "source_ids": [2]},
				{"question": "What runs last?", "answer": "The health check.", "hint": "See the end."}
			]}`,
			string(answersReply),
		)

		raw, err := p.Process(ctx, sampleInput(rec))
		Expect(err).NotTo(HaveOccurred())

		var result model.QAResult
		Expect(json.Unmarshal(raw, &result)).To(Succeed())

		// the model omitted summary confidence, so the weak contract
		// leaves it unset instead of defaulting
		Expect(result.Summary.Confidence).To(BeNil())
		Expect(result.Summary.Sources).To(BeEmpty())
		Expect(result.Summary.KeyPoints).To(Equal([]string{"Docker install", "Registry mirroring"}))
		Expect(result.Summary.TotalQuestions).To(Equal(2))

		Expect(result.GeneratedQuestions).To(HaveLen(3))

		first := result.GeneratedQuestions[0]
		Expect(first.Confidence).NotTo(BeNil())
		Expect(*first.Confidence).To(Equal(70))
		Expect(first.Sources).To(HaveLen(1))
		Expect(first.Sources[0].ID).To(Equal(1))
		Expect(*first.Difficulty).To(Equal("easy"))

		// sources resolve even without a confidence
		second := result.GeneratedQuestions[1]
		Expect(second.Confidence).To(BeNil())
		Expect(second.Sources).To(HaveLen(1))
		Expect(second.Sources[0].ID).To(Equal(2))

		third := result.GeneratedQuestions[2]
		Expect(third.Confidence).To(BeNil())
		Expect(third.Sources).To(BeEmpty())
		Expect(*third.Hint).To(Equal("See the end."))

		Expect(result.ExtractedAnswers.Answers).To(HaveLen(20))
		Expect(result.ExtractedAnswers.Answers[0]).To(Equal("answer 1"))
		Expect(result.ExtractedAnswers.Answers[19]).To(Equal("answer 20"))

		Expect(rec.recorded()).To(Equal([]string{
			"1:summary",
			"2:question generation",
			"3:answer extraction",
		}))
	})

	It("rescores the summary when the model reports confidence", func() {
		gw.enqueue(
			`{"key_points": ["Docker"], "question_types": {}, "difficulty": {}, "total_questions": 1, "confidence": 60, "source_ids": [1]}`,
			`{"questions": []}`,
			`{"answers": []}`,
		)

		raw, err := p.Process(ctx, sampleInput(nil))
		Expect(err).NotTo(HaveOccurred())

		var result model.QAResult
		Expect(json.Unmarshal(raw, &result)).To(Succeed())
		Expect(result.Summary.Confidence).NotTo(BeNil())
		Expect(*result.Summary.Confidence).To(Equal(71))
		Expect(result.Summary.Sources).To(HaveLen(1))
	})

	It("counts generated questions when the summary total is zero", func() {
		gw.enqueue(
			`{"key_points": [], "question_types": {}, "difficulty": {}, "total_questions": 0}`,
			`{"questions": [
				{"question": "One?", "answer": "Yes."},
				{"question": "Two?", "answer": "Also yes."}
			]}`,
			`{"answers": []}`,
		)

		raw, err := p.Process(ctx, sampleInput(nil))
		Expect(err).NotTo(HaveOccurred())

		var result model.QAResult
		Expect(json.Unmarshal(raw, &result)).To(Succeed())
		Expect(result.Summary.TotalQuestions).To(Equal(2))
	})
})
