package views

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	corellm "basegraph.app/insight/common/llm"
	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/llm"
	"basegraph.app/insight/internal/model"
)

const defaultStepTimeout = 120 * time.Second

// citationRules is appended to every structured step prompt so the
// model grounds each field group in segment ids.
const citationRules = `Ground every answer in the document segments. Each field group must carry:
- "source_ids": the segment ids (the [n] numbers) the answer is based on
- "confidence": an integer 0-100 for how well the segments support it
Use only ids that appear in the document. Do not invent content that is not in the segments.`

// renderSegments renders the numbered segments the way prompts embed
// them: "[id] text" blocks separated by blank lines.
func renderSegments(segments []model.Segment) string {
	var sb strings.Builder
	for _, s := range segments {
		fmt.Fprintf(&sb, "[%d] %s\n\n", s.ID, s.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// stepPrompt assembles one structured step's user prompt: the step
// instruction, the citation contract, then the numbered segments.
func stepPrompt(instruction, doc string) string {
	return instruction + "\n\n" + citationRules + "\n\nDocument segments:\n\n" + doc
}

// truncateMiddle keeps the first head and last tail runes of s with an
// omission marker between them. Reports whether it cut anything.
func truncateMiddle(s string, head, tail int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= head+tail {
		return s, false
	}
	return string(runes[:head]) + "\n\n[... middle of document omitted ...]\n\n" + string(runes[len(runes)-tail:]), true
}

// callStep runs one structured generation step and decodes the reply
// into out. The schema of out doubles as the prompt's schema hint.
func callStep[T any](ctx context.Context, gw Gateway, timeout time.Duration, callType string, in ProcessInput, system, user string, out *T) error {
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := gw.GenerateJSON(ctx,
		[]corellm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		corellm.SchemaJSON(out),
		llm.WithCallType(callType),
		llm.WithDocument(in.DocumentID, in.TaskID),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", callType, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Wrap(apperr.KindParseError, err).WithDetail("call_type", callType)
	}
	return nil
}
