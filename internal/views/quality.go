package views

import (
	"encoding/json"
	"strings"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
)

// Quality score weights. Field completeness and sources completeness are
// fractions in [0,1], confidence_avg is already on the [0,100] scale, so
// the three terms sum to at most 100.
const (
	qualityWeightCompleteness = 35.0
	qualityWeightSources      = 30.0
	qualityWeightConfidence   = 0.35
)

type qualityStats struct {
	confidences       []float64
	groups            int
	groupsWithSources int
	sourcesCount      int
}

// ComputeQuality derives an AiResultQuality row from a finished view
// payload. It walks the JSON generically so all three view shapes share
// one implementation: top-level fields (minus metadata) drive field
// completeness, and every object carrying a confidence or sources key
// counts as one citation group for the confidence and sources stats.
func ComputeQuality(documentID int64, view model.ViewName, payload json.RawMessage) (*model.AiResultQuality, error) {
	var root map[string]any
	if err := json.Unmarshal(payload, &root); err != nil {
		return nil, apperr.Wrap(apperr.KindParseError, err).WithDetail("view", string(view))
	}

	total, filled := 0, 0
	for key, value := range root {
		if key == "metadata" {
			continue
		}
		total++
		if contentFilled(value) {
			filled++
		}
	}

	var st qualityStats
	collectCitations(root, &st)

	q := &model.AiResultQuality{
		DocumentID:   documentID,
		View:         view,
		SourcesCount: int32(st.sourcesCount),
	}
	if total > 0 {
		q.FieldCompleteness = float64(filled) / float64(total)
	}
	if len(st.confidences) > 0 {
		min, max, sum := st.confidences[0], st.confidences[0], 0.0
		for _, c := range st.confidences {
			if c < min {
				min = c
			}
			if c > max {
				max = c
			}
			sum += c
		}
		q.ConfidenceAvg = sum / float64(len(st.confidences))
		q.ConfidenceMin = min
		q.ConfidenceMax = max
	}
	if st.groups > 0 {
		q.SourcesCompleteness = float64(st.groupsWithSources) / float64(st.groups)
	}
	q.QualityScore = qualityWeightCompleteness*q.FieldCompleteness +
		qualityWeightSources*q.SourcesCompleteness +
		qualityWeightConfidence*q.ConfidenceAvg
	return q, nil
}

// contentFilled reports whether a JSON value carries content. Zero
// values are empty; objects are judged by their non-bookkeeping members.
func contentFilled(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case float64:
		return t != 0
	case bool:
		return t
	case []any:
		return len(t) > 0
	case map[string]any:
		for key, member := range t {
			if bookkeepingKey(key) {
				continue
			}
			if contentFilled(member) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func bookkeepingKey(key string) bool {
	switch key {
	case "confidence", "confidence_label", "sources", "metadata":
		return true
	}
	return false
}

func collectCitations(v any, st *qualityStats) {
	switch t := v.(type) {
	case map[string]any:
		conf, hasConf := t["confidence"].(float64)
		srcs, hasSrcs := t["sources"].([]any)
		if hasConf || hasSrcs {
			st.groups++
			if hasConf {
				st.confidences = append(st.confidences, conf)
			}
			if len(srcs) > 0 {
				st.groupsWithSources++
				st.sourcesCount += len(srcs)
			}
		}
		for key, member := range t {
			// Source entries themselves are not citation groups.
			if key == "sources" {
				continue
			}
			collectCitations(member, st)
		}
	case []any:
		for _, member := range t {
			collectCitations(member, st)
		}
	}
}
