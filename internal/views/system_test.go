package views_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/views"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("System processor", func() {
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
		p = processorFor(views.NewRegistry(gw, time.Minute), model.ViewSystem)
	})

	It("reports six steps", func() {
		Expect(p.View()).To(Equal(model.ViewSystem))
		Expect(p.Steps()).To(Equal(6))
	})

	It("assembles the artifact across its six steps", func() {
		items := make([]string, 22)
		for i := range items {
			items[i] = fmt.Sprintf("check %d", i+1)
		}
		checklistReply, err := json.Marshal(map[string]any{"items": items})
		Expect(err).NotTo(HaveOccurred())

		gw.enqueue(
			`{"steps": [
				{"step": 0, "description": "Install Docker.", "confidence": 80, "source_ids": [1]},
				{"step": 2, "description": "Configure the mirror."}
			]}`,
			`{"components": [
				{"name": "registry", "description": "Stores images.", "type": "service"},
				{"name": "", "description": "unnamed, dropped"}
			]}`,
			`{"architecture_view": "graph LR; client --> registry"}`,
			`{"plain_explanation": "Images flow through a local mirror."}`,
			string(checklistReply),
			`{"technologies": ["Docker", "Docker", "Registry (镜像仓库)"], "confidence": 90, "source_ids": [1, 2]}`,
		)

		raw, err := p.Process(ctx, sampleInput(rec))
		Expect(err).NotTo(HaveOccurred())

		var result model.SystemResult
		Expect(json.Unmarshal(raw, &result)).To(Succeed())

		Expect(result.ConfigSteps).To(HaveLen(2))
		// a zero step number is repaired from list position
		Expect(result.ConfigSteps[0].Step).To(Equal(1))
		Expect(result.ConfigSteps[0].Confidence).NotTo(BeNil())
		Expect(result.ConfigSteps[0].Sources).To(HaveLen(1))
		Expect(result.ConfigSteps[1].Step).To(Equal(2))
		Expect(result.ConfigSteps[1].Confidence).To(BeNil())

		Expect(result.Components).To(HaveLen(1))
		Expect(result.Components[0].Name).To(Equal("registry"))
		Expect(*result.Components[0].Type).To(Equal("service"))

		Expect(result.ArchitectureView).To(Equal("graph LR; client --> registry"))
		Expect(result.PlainExplanation).To(Equal("Images flow through a local mirror."))

		Expect(result.Checklist.Items).To(HaveLen(20))
		Expect(result.Checklist.Items[19]).To(Equal("check 20"))

		Expect(result.RelatedTechnologies.Technologies).To(Equal([]string{"Docker", "Registry"}))

		// short input: no truncation note
		Expect(result.Metadata).To(BeEmpty())

		Expect(gw.callCount()).To(Equal(6))
		Expect(rec.recorded()).To(Equal([]string{
			"1:configuration steps",
			"2:components",
			"3:architecture",
			"4:plain explanation",
			"5:checklist",
			"6:related technologies",
		}))
	})

	It("truncates long input and notes it in the metadata", func() {
		long := strings.Repeat("a", 21000)
		in := views.ProcessInput{
			DocumentID:   11,
			TaskID:       22,
			Preprocessed: long,
			Segments:     []model.Segment{{ID: 1, Text: long, Start: 0, End: 21000}},
		}
		gw.enqueue(
			`{"steps": []}`,
			`{"components": []}`,
			`{"architecture_view": ""}`,
			`{"plain_explanation": ""}`,
			`{"items": []}`,
			`{"technologies": []}`,
		)

		raw, err := p.Process(ctx, in)
		Expect(err).NotTo(HaveOccurred())

		Expect(gw.call(0).user).To(ContainSubstring("[... middle of document omitted ...]"))

		var result model.SystemResult
		Expect(json.Unmarshal(raw, &result)).To(Succeed())
		Expect(result.Metadata).To(HaveKeyWithValue("input_truncated", true))
		Expect(result.Metadata).To(HaveKeyWithValue("original_chars", float64(21000)))
	})
})
