package views

import (
	"context"
	"encoding/json"
	"time"

	"basegraph.app/insight/internal/model"
)

// maxLearningTechnologies caps the related-technologies list of the
// learning view.
const maxLearningTechnologies = 10

type prerequisitesReply struct {
	Required    []string `json:"required" jsonschema_description:"Knowledge the reader must already have"`
	Recommended []string `json:"recommended" jsonschema_description:"Helpful but optional background"`
	Confidence  *int     `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=100"`
	SourceIDs   []int    `json:"source_ids,omitempty" jsonschema_description:"Segment ids supporting this answer"`
}

type learningPathReply struct {
	Stages []learningStageReply `json:"stages" jsonschema_description:"Ordered study stages derived from the document"`
}

type learningStageReply struct {
	Stage      int    `json:"stage" jsonschema_description:"1-based position in the path"`
	Title      string `json:"title"`
	Content    string `json:"content" jsonschema_description:"What to study in this stage"`
	Confidence *int   `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=100"`
	SourceIDs  []int  `json:"source_ids,omitempty"`
}

type learningMethodsReply struct {
	Theory     string `json:"theory" jsonschema_description:"How to study the theoretical side"`
	Practice   string `json:"practice" jsonschema_description:"Hands-on work to cement it"`
	Confidence *int   `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=100"`
	SourceIDs  []int  `json:"source_ids,omitempty"`
}

type relatedTechReply struct {
	Technologies []string `json:"technologies" jsonschema_description:"Technology names mentioned or adjacent"`
	Confidence   *int     `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=100"`
	SourceIDs    []int    `json:"source_ids,omitempty"`
}

type learningProcessor struct {
	gw          Gateway
	stepTimeout time.Duration
}

func newLearningProcessor(gw Gateway, stepTimeout time.Duration) *learningProcessor {
	return &learningProcessor{gw: gw, stepTimeout: stepTimeout}
}

func (p *learningProcessor) View() model.ViewName { return model.ViewLearning }
func (p *learningProcessor) Steps() int           { return 4 }

func (p *learningProcessor) Process(ctx context.Context, in ProcessInput) (json.RawMessage, error) {
	doc := renderSegments(in.Segments)
	var out model.LearningResult

	var pre prerequisitesReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "learning_prerequisites", in, learningSystemPrompt, stepPrompt(learningPrerequisitesInstr, doc), &pre); err != nil {
		return nil, err
	}
	cit := resolveCitation(pre.Confidence, pre.SourceIDs, in.Segments)
	conf := rescore(rescoreInput{
		Base:          cit.Confidence,
		Sources:       cit.Sources,
		SegmentCount:  len(in.Segments),
		OutOfRange:    cit.OutOfRange,
		Claims:        append(append([]string{}, pre.Required...), pre.Recommended...),
		Text:          in.Preprocessed,
		Contradiction: overlaps(pre.Required, pre.Recommended),
	})
	out.Prerequisites = model.Prerequisites{
		Required:        capStrings(pre.Required, 0),
		Recommended:     capStrings(pre.Recommended, 0),
		Confidence:      conf,
		ConfidenceLabel: model.ConfidenceLabelFor(conf),
		Sources:         cit.Sources,
	}
	in.report(1, "prerequisites")

	var path learningPathReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "learning_path", in, learningSystemPrompt, stepPrompt(learningPathInstr, doc), &path); err != nil {
		return nil, err
	}
	out.LearningPath = make([]model.LearningStage, 0, len(path.Stages))
	for i, st := range path.Stages {
		cit := resolveCitation(st.Confidence, st.SourceIDs, in.Segments)
		conf := rescore(rescoreInput{
			Base:         cit.Confidence,
			Sources:      cit.Sources,
			SegmentCount: len(in.Segments),
			OutOfRange:   cit.OutOfRange,
			Claims:       []string{st.Title},
			Text:         in.Preprocessed,
		})
		stage := st.Stage
		if stage <= 0 {
			stage = i + 1
		}
		out.LearningPath = append(out.LearningPath, model.LearningStage{
			Stage:      stage,
			Title:      st.Title,
			Content:    st.Content,
			Confidence: conf,
			Sources:    cit.Sources,
		})
	}
	in.report(2, "learning path")

	var methods learningMethodsReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "learning_methods", in, learningSystemPrompt, stepPrompt(learningMethodsInstr, doc), &methods); err != nil {
		return nil, err
	}
	cit = resolveCitation(methods.Confidence, methods.SourceIDs, in.Segments)
	conf = rescore(rescoreInput{
		Base:         cit.Confidence,
		Sources:      cit.Sources,
		SegmentCount: len(in.Segments),
		OutOfRange:   cit.OutOfRange,
		Text:         in.Preprocessed,
	})
	out.LearningMethods = model.LearningMethods{
		Theory:     methods.Theory,
		Practice:   methods.Practice,
		Confidence: conf,
		Sources:    cit.Sources,
	}
	in.report(3, "learning methods")

	var tech relatedTechReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "learning_technologies", in, learningSystemPrompt, stepPrompt(learningTechInstr, doc), &tech); err != nil {
		return nil, err
	}
	technologies := normalizeTechnologies(tech.Technologies, maxLearningTechnologies)
	cit = resolveCitation(tech.Confidence, tech.SourceIDs, in.Segments)
	conf = rescore(rescoreInput{
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
	in.report(4, "related technologies")

	return json.Marshal(out)
}

const learningSystemPrompt = `You build structured learning material from IT documents.
You answer in JSON only, grounded strictly in the provided document segments.`

const learningPrerequisitesInstr = `List what a reader needs before studying this document.
"required" is knowledge the document assumes without explaining; "recommended" helps but is optional.
Keep entries short (a technology or concept name each). The two lists must not overlap.`

const learningPathInstr = `Lay out an ordered learning path through this document: 3 to 7 stages,
each with a title and a short description of what to study and why it comes at that point.`

const learningMethodsInstr = `Describe how to study this material: "theory" covers reading and
concepts, "practice" names concrete hands-on work the document supports.`

const learningTechInstr = `List the technologies related to this document: mentioned directly or
commonly used together with its subject. Names only, no descriptions.`
