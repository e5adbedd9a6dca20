package views

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"basegraph.app/insight/internal/model"
)

const (
	defaultEnableThreshold    = 0.3
	defaultConfidentThreshold = 0.5

	// markerSaturation shapes the density curve d/(d+k): a document
	// with ~10 weighted hits per thousand words scores around 0.77.
	markerSaturation = 3.0

	// classifierExcerptChars bounds the document text shown to the
	// LLM verdict prompt.
	classifierExcerptChars = 8000
)

// Detection is the classifier verdict for one document.
type Detection struct {
	Scores     map[model.ViewName]float64
	Primary    model.ViewName
	Enabled    []model.ViewName
	Method     model.DetectionMethod
	Confidence float64
}

// viewMarkers are the rule-pass signals for one view: substrings
// counted anywhere, and prefixes counted once per line that starts
// with them (Q:/A: style markers would otherwise hit inside words).
type viewMarkers struct {
	substrings map[string]float64
	prefixes   map[string]float64
}

var ruleMarkers = map[model.ViewName]viewMarkers{
	model.ViewLearning: {
		substrings: map[string]float64{
			"tutorial":     1.0,
			"step by step": 1.0,
			"how to":       0.8,
			"guide":        0.8,
			"chapter":      0.8,
			"lesson":       0.8,
			"prerequisite": 0.8,
			"learn":        0.6,
			"exercise":     0.6,
			"beginner":     0.6,
			"course":       0.6,
			"objective":    0.4,
		},
	},
	model.ViewQA: {
		substrings: map[string]float64{
			"faq":       1.0,
			"q&a":       1.0,
			"question":  0.8,
			"answer":    0.8,
			"quiz":      0.8,
			"interview": 0.6,
			"?":         0.15,
		},
		prefixes: map[string]float64{
			"q:": 1.0,
			"a:": 1.0,
			"q.": 0.8,
			"a.": 0.8,
		},
	},
	model.ViewSystem: {
		substrings: map[string]float64{
			"architecture":   1.0,
			"component":      0.8,
			"deploy":         0.8,
			"infrastructure": 0.8,
			"config":         0.6,
			"cluster":        0.6,
			"install":        0.6,
			"docker":         0.6,
			"kubernetes":     0.6,
			"diagram":        0.6,
			"pipeline":       0.5,
			"server":         0.4,
			"database":       0.4,
			"service":        0.4,
		},
	},
}

// Classifier scores a document's fit for each view. The rule pass is
// pure; the LLM verdict is consulted only when the rules are not
// confident. A nil gateway disables the LLM path.
type Classifier struct {
	gw                 Gateway
	enableThreshold    float64
	confidentThreshold float64
}

func NewClassifier(gw Gateway, enableThreshold, confidentThreshold float64) *Classifier {
	if enableThreshold <= 0 {
		enableThreshold = defaultEnableThreshold
	}
	if confidentThreshold <= 0 {
		confidentThreshold = defaultConfidentThreshold
	}
	return &Classifier{
		gw:                 gw,
		enableThreshold:    enableThreshold,
		confidentThreshold: confidentThreshold,
	}
}

type classifyReply struct {
	View       string  `json:"view" jsonschema:"enum=learning,enum=qa,enum=system" jsonschema_description:"Best primary view for this document"`
	Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=1" jsonschema_description:"How certain the verdict is, 0 to 1"`
}

// Classify runs the rule pass and, below the confidence threshold, one
// LLM verdict. The returned Detection always has a primary inside a
// non-empty enabled set.
func (c *Classifier) Classify(ctx context.Context, documentID, taskID int64, preprocessed string) (Detection, error) {
	scores := ruleScores(preprocessed)
	primary, top := argmax(scores)
	allZero := top == 0

	det := Detection{
		Scores:     scores,
		Primary:    primary,
		Method:     model.DetectionMethodRule,
		Confidence: top,
	}
	if allZero {
		det.Method = model.DetectionMethodNone
	}

	if top < c.confidentThreshold && c.gw != nil {
		if verdict, ok := c.llmClassify(ctx, documentID, taskID, preprocessed); ok {
			switch {
			case allZero:
				det.Primary = verdict.view
				det.Method = model.DetectionMethodAI
				det.Confidence = verdict.confidence
			case verdict.confidence >= top:
				det.Primary = verdict.view
				det.Method = model.DetectionMethodHybrid
				det.Confidence = verdict.confidence
			}
		}
	}

	det.Enabled = enabledViews(det.Primary, scores, c.enableThreshold)
	return det, nil
}

type llmVerdict struct {
	view       model.ViewName
	confidence float64
}

// llmClassify asks the gateway for a single classification. Failures
// degrade to the rule verdict; classification must not sink a document
// the rules can still route.
func (c *Classifier) llmClassify(ctx context.Context, documentID, taskID int64, preprocessed string) (llmVerdict, bool) {
	var reply classifyReply
	err := callStep(ctx, c.gw, 0, "classify_views",
		ProcessInput{DocumentID: documentID, TaskID: taskID},
		classifierSystemPrompt,
		"Document:\n\n"+excerpt(preprocessed, classifierExcerptChars),
		&reply,
	)
	if err != nil {
		slog.WarnContext(ctx, "view classification llm verdict failed, using rule scores",
			"document_id", documentID,
			"error", err)
		return llmVerdict{}, false
	}

	view := model.ViewName(reply.View)
	if !model.ValidView(view) {
		slog.WarnContext(ctx, "view classification returned unknown view",
			"document_id", documentID,
			"view", reply.View)
		return llmVerdict{}, false
	}
	conf := reply.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return llmVerdict{view: view, confidence: conf}, true
}

// ruleScores computes the pure marker-density score per view,
// saturating into [0,1).
func ruleScores(text string) map[model.ViewName]float64 {
	lower := strings.ToLower(text)
	lines := strings.Split(lower, "\n")
	words := len(strings.Fields(lower))
	if words < 50 {
		words = 50
	}

	scores := make(map[model.ViewName]float64, len(ruleMarkers))
	for view, markers := range ruleMarkers {
		var raw float64
		for substr, weight := range markers.substrings {
			raw += weight * float64(strings.Count(lower, substr))
		}
		for prefix, weight := range markers.prefixes {
			for _, line := range lines {
				if strings.HasPrefix(strings.TrimSpace(line), prefix) {
					raw += weight
				}
			}
		}
		density := raw * 1000 / float64(words)
		scores[view] = density / (density + markerSaturation)
	}
	return scores
}

// argmax picks the highest-scoring view, ties resolved by the fixed
// order of model.AllViews.
func argmax(scores map[model.ViewName]float64) (model.ViewName, float64) {
	best := model.AllViews[0]
	top := scores[best]
	for _, v := range model.AllViews[1:] {
		if scores[v] > top {
			best, top = v, scores[v]
		}
	}
	return best, top
}

// enabledViews is the primary plus every view at or above the enable
// threshold, in fixed order.
func enabledViews(primary model.ViewName, scores map[model.ViewName]float64, threshold float64) []model.ViewName {
	out := make([]model.ViewName, 0, len(model.AllViews))
	for _, v := range model.AllViews {
		if v == primary || scores[v] >= threshold {
			out = append(out, v)
		}
	}
	return out
}

// CacheKey derives the stable key for classifier-dependent caches from
// the document id and the rule scores alone. Primary and enabled are
// derived values and would make equal inputs diverge.
func CacheKey(documentID int64, scores map[model.ViewName]float64) string {
	names := make([]string, 0, len(scores))
	for v := range scores {
		names = append(names, string(v))
	}
	sort.Strings(names)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|", documentID)
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(';')
		}
		fmt.Fprintf(&sb, "%s:%.6f", name, scores[model.ViewName(name)])
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

const classifierSystemPrompt = `You classify IT documents into the view that serves readers best.

Views:
- learning: tutorials, guides, courses, anything teaching a skill progressively
- qa: FAQ collections, interview prep, question/answer formatted material
- system: architecture docs, deployment guides, component and infrastructure descriptions

Read the document and answer with the single best view and your confidence.`
