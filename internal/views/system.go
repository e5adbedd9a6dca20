package views

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"basegraph.app/insight/internal/model"
)

const (
	// System view prompt budget: inputs beyond head+tail runes are cut
	// to the first systemPromptHead plus the last systemPromptTail with
	// an omission marker, noted in the result metadata.
	systemPromptHead = 15000
	systemPromptTail = 5000

	maxChecklistItems     = 20
	maxSystemTechnologies = 20
)

type configStepsReply struct {
	Steps []configStepReply `json:"steps" jsonschema_description:"Ordered setup or configuration steps"`
}

type configStepReply struct {
	Step        int    `json:"step" jsonschema_description:"1-based order"`
	Description string `json:"description"`
	Confidence  *int   `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=100"`
	SourceIDs   []int  `json:"source_ids,omitempty"`
}

type componentsReply struct {
	Components []componentReply `json:"components"`
	Confidence *int             `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=100"`
	SourceIDs  []int            `json:"source_ids,omitempty"`
}

type componentReply struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Type        *string `json:"type,omitempty" jsonschema_description:"Component class, e.g. service, database, queue"`
}

type architectureReply struct {
	ArchitectureView string `json:"architecture_view" jsonschema_description:"Architecture description; a Mermaid diagram in a fenced block is welcome"`
	Confidence       *int   `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=100"`
	SourceIDs        []int  `json:"source_ids,omitempty"`
}

type explanationReply struct {
	PlainExplanation string `json:"plain_explanation" jsonschema_description:"The system explained without jargon"`
	Confidence       *int   `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=100"`
	SourceIDs        []int  `json:"source_ids,omitempty"`
}

type checklistReply struct {
	Items      []string `json:"items" jsonschema_description:"Verification items an operator walks through"`
	Confidence *int     `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=100"`
	SourceIDs  []int    `json:"source_ids,omitempty"`
}

type systemProcessor struct {
	gw          Gateway
	stepTimeout time.Duration
}

func newSystemProcessor(gw Gateway, stepTimeout time.Duration) *systemProcessor {
	return &systemProcessor{gw: gw, stepTimeout: stepTimeout}
}

func (p *systemProcessor) View() model.ViewName { return model.ViewSystem }
func (p *systemProcessor) Steps() int           { return 6 }

func (p *systemProcessor) Process(ctx context.Context, in ProcessInput) (json.RawMessage, error) {
	doc, truncated := truncateMiddle(renderSegments(in.Segments), systemPromptHead, systemPromptTail)
	var out model.SystemResult
	if truncated {
		out.Metadata = map[string]any{
			"input_truncated": true,
			"original_chars":  utf8.RuneCountInString(in.Preprocessed),
		}
	}

	var cfg configStepsReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "system_config_steps", in, systemSystemPrompt, stepPrompt(systemConfigInstr, doc), &cfg); err != nil {
		return nil, err
	}
	out.ConfigSteps = make([]model.ConfigStep, 0, len(cfg.Steps))
	for i, st := range cfg.Steps {
		step := model.ConfigStep{
			Step:        st.Step,
			Description: st.Description,
		}
		if step.Step <= 0 {
			step.Step = i + 1
		}
		if st.Confidence != nil {
			cit := resolveCitation(st.Confidence, st.SourceIDs, in.Segments)
			conf := rescore(rescoreInput{
				Base:         cit.Confidence,
				Sources:      cit.Sources,
				SegmentCount: len(in.Segments),
				OutOfRange:   cit.OutOfRange,
				Text:         in.Preprocessed,
			})
			step.Confidence = &conf
			step.Sources = cit.Sources
		}
		out.ConfigSteps = append(out.ConfigSteps, step)
	}
	in.report(1, "configuration steps")

	var comps componentsReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "system_components", in, systemSystemPrompt, stepPrompt(systemComponentsInstr, doc), &comps); err != nil {
		return nil, err
	}
	out.Components = make([]model.SystemComponent, 0, len(comps.Components))
	for _, c := range comps.Components {
		if c.Name == "" {
			continue
		}
		out.Components = append(out.Components, model.SystemComponent{
			Name:        c.Name,
			Description: c.Description,
			Type:        c.Type,
		})
	}
	in.report(2, "components")

	var arch architectureReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "system_architecture", in, systemSystemPrompt, stepPrompt(systemArchitectureInstr, doc), &arch); err != nil {
		return nil, err
	}
	out.ArchitectureView = arch.ArchitectureView
	in.report(3, "architecture")

	var expl explanationReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "system_explanation", in, systemSystemPrompt, stepPrompt(systemExplanationInstr, doc), &expl); err != nil {
		return nil, err
	}
	out.PlainExplanation = expl.PlainExplanation
	in.report(4, "plain explanation")

	var check checklistReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "system_checklist", in, systemSystemPrompt, stepPrompt(systemChecklistInstr, doc), &check); err != nil {
		return nil, err
	}
	out.Checklist = model.Checklist{
		Items: capStrings(check.Items, maxChecklistItems),
	}
	in.report(5, "checklist")

	var tech relatedTechReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "system_technologies", in, systemSystemPrompt, stepPrompt(systemTechInstr, doc), &tech); err != nil {
		return nil, err
	}
	technologies := normalizeTechnologies(tech.Technologies, maxSystemTechnologies)
	cit := resolveCitation(tech.Confidence, tech.SourceIDs, in.Segments)
	conf := rescore(rescoreInput{
		Base:         cit.Confidence,
		Sources:      cit.Sources,
		SegmentCount: len(in.Segments),
		OutOfRange:   cit.OutOfRange,
		Claims:       technologies,
		Text:         in.Preprocessed,
	})
	out.RelatedTechnologies = model.RelatedTechnologies{
		Technologies:    technologies,
		Confidence:      conf,
		ConfidenceLabel: model.ConfidenceLabelFor(conf),
		Sources:         cit.Sources,
	}
	in.report(6, "related technologies")

	return json.Marshal(out)
}

const systemSystemPrompt = `You explain IT systems from their documentation: setup, structure and operation.
You answer in JSON only, grounded strictly in the provided document segments.`

const systemConfigInstr = `Extract the ordered configuration or setup steps this document describes.
Each step gets a 1-based number and a self-contained description an operator can follow.`

const systemComponentsInstr = `List the system components this document describes: name, what it does,
and its class (service, database, queue, proxy, ...) when identifiable.`

const systemArchitectureInstr = `Describe the system architecture: how the components connect and how
data flows. If the structure is clear enough, include a Mermaid diagram in a fenced code block.`

const systemExplanationInstr = `Explain what this system does and how it works in plain language,
for a reader who knows basic IT but none of this document's specifics.`

const systemChecklistInstr = `Produce an operator checklist from this document: up to 20 concrete,
verifiable items covering setup, configuration and health.`

const systemTechInstr = `List the technologies this system uses or integrates with. Names only.`
