package views

import (
	"context"
	"encoding/json"
	"time"

	"basegraph.app/insight/internal/model"
)

// maxExtractedAnswers caps the answer list of the qa view.
const maxExtractedAnswers = 20

type qaSummaryReply struct {
	KeyPoints      []string       `json:"key_points" jsonschema_description:"The document's main points"`
	QuestionTypes  map[string]int `json:"question_types" jsonschema_description:"Question category to count, e.g. {\"conceptual\": 4}"`
	Difficulty     map[string]int `json:"difficulty" jsonschema_description:"Difficulty bucket to count, e.g. {\"easy\": 3, \"hard\": 1}"`
	TotalQuestions int            `json:"total_questions"`
	Confidence     *int           `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=100"`
	SourceIDs      []int          `json:"source_ids,omitempty"`
}

type qaQuestionsReply struct {
	Questions []generatedQuestionReply `json:"questions"`
}

type generatedQuestionReply struct {
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Hint       *string `json:"hint,omitempty" jsonschema_description:"Optional nudge shown before the answer"`
	Difficulty *string `json:"difficulty,omitempty" jsonschema:"enum=easy,enum=medium,enum=hard"`
	Confidence *int    `json:"confidence,omitempty" jsonschema:"minimum=0,maximum=100"`
	SourceIDs  []int   `json:"source_ids,omitempty"`
}

type qaAnswersReply struct {
	Answers []string `json:"answers" jsonschema_description:"Answer statements lifted from the document"`
}

// qaProcessor generates the question/answer artifact. Its confidence
// and source fields are optional end to end: absent stays absent
// rather than defaulting, so the display layer can hide them.
type qaProcessor struct {
	gw          Gateway
	stepTimeout time.Duration
}

func newQAProcessor(gw Gateway, stepTimeout time.Duration) *qaProcessor {
	return &qaProcessor{gw: gw, stepTimeout: stepTimeout}
}

func (p *qaProcessor) View() model.ViewName { return model.ViewQA }
func (p *qaProcessor) Steps() int           { return 3 }

func (p *qaProcessor) Process(ctx context.Context, in ProcessInput) (json.RawMessage, error) {
	doc := renderSegments(in.Segments)
	var out model.QAResult

	var summary qaSummaryReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "qa_summary", in, qaSystemPrompt, stepPrompt(qaSummaryInstr, doc), &summary); err != nil {
		return nil, err
	}
	out.Summary = model.QASummary{
		KeyPoints:      capStrings(summary.KeyPoints, 0),
		QuestionTypes:  summary.QuestionTypes,
		Difficulty:     summary.Difficulty,
		TotalQuestions: summary.TotalQuestions,
	}
	if summary.Confidence != nil {
		cit := resolveCitation(summary.Confidence, summary.SourceIDs, in.Segments)
		conf := rescore(rescoreInput{
			Base:         cit.Confidence,
			Sources:      cit.Sources,
			SegmentCount: len(in.Segments),
			OutOfRange:   cit.OutOfRange,
			Claims:       summary.KeyPoints,
			Text:         in.Preprocessed,
		})
		out.Summary.Confidence = &conf
		out.Summary.Sources = cit.Sources
	}
	in.report(1, "summary")

	var questions qaQuestionsReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "qa_questions", in, qaSystemPrompt, stepPrompt(qaQuestionsInstr, doc), &questions); err != nil {
		return nil, err
	}
	out.GeneratedQuestions = make([]model.GeneratedQuestion, 0, len(questions.Questions))
	for _, q := range questions.Questions {
		gq := model.GeneratedQuestion{
			Question:   q.Question,
			Answer:     q.Answer,
			Hint:       q.Hint,
			Difficulty: q.Difficulty,
		}
		if q.Confidence != nil {
			cit := resolveCitation(q.Confidence, q.SourceIDs, in.Segments)
			conf := rescore(rescoreInput{
				Base:         cit.Confidence,
				Sources:      cit.Sources,
				SegmentCount: len(in.Segments),
				OutOfRange:   cit.OutOfRange,
				Text:         in.Preprocessed,
			})
			gq.Confidence = &conf
			gq.Sources = cit.Sources
		} else if len(q.SourceIDs) > 0 {
			cit := resolveCitation(nil, q.SourceIDs, in.Segments)
			gq.Sources = cit.Sources
		}
		out.GeneratedQuestions = append(out.GeneratedQuestions, gq)
	}
	in.report(2, "question generation")

	var answers qaAnswersReply
	if err := callStep(ctx, p.gw, p.stepTimeout, "qa_answers", in, qaSystemPrompt, stepPrompt(qaAnswersInstr, doc), &answers); err != nil {
		return nil, err
	}
	out.ExtractedAnswers = model.ExtractedAnswers{
		Answers: capStrings(answers.Answers, maxExtractedAnswers),
	}
	in.report(3, "answer extraction")

	if out.Summary.TotalQuestions == 0 {
		out.Summary.TotalQuestions = len(out.GeneratedQuestions)
	}

	return json.Marshal(out)
}

const qaSystemPrompt = `You turn IT documents into question/answer study material.
You answer in JSON only, grounded strictly in the provided document segments.`

const qaSummaryInstr = `Summarize this document for a reader preparing to be quizzed on it:
the key points, what categories of questions it can support and how many of each,
a difficulty distribution, and the total number of questions you would generate.`

const qaQuestionsInstr = `Generate study questions from this document. Each needs a question and
a full answer; add a hint and a difficulty where useful. Cover the document evenly
rather than clustering on one section.`

const qaAnswersInstr = `Extract up to 20 standalone factual statements from this document that
directly answer a likely question. Quote or closely paraphrase the document.`
