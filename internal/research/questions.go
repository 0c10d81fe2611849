// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/stevebottos/dxtr-cli/internal/llm"
)

// ErrNoQuestions is returned when question generation yields nothing usable.
var ErrNoQuestions = errors.New("no exploration questions generated")

var questionsSchema = llm.JSONSchema{
	Name: "exploration_questions",
	Schema: json.RawMessage(`{"type":"object","properties":{"questions":{"type":"array","items":{"type":"string"}}},"required":["questions"]}`),
}

var numberedLine = regexp.MustCompile(`^\s*\d+[\.\)]\s*(.+)$`)

// ParseQuestions extracts exploration questions from a generation. The
// structured form {"questions": [...]} is tried first, then a bare JSON
// array, then numbered-list lines such as "1. ..." or "2) ...". A code
// fence around the output is ignored. Quotes and
// surrounding space are trimmed, blanks and exact repeats dropped, and at
// most max questions kept (no cap when max <= 0).
func ParseQuestions(raw string, max int) []string {
	text := llm.StripFences(raw)

	var candidates []string
	var obj struct {
		Questions []string `json:"questions"`
	}
	switch {
	case json.Unmarshal([]byte(text), &obj) == nil && len(obj.Questions) > 0:
		candidates = obj.Questions
	case json.Unmarshal([]byte(text), &candidates) == nil:
	default:
		candidates = nil
		for _, line := range strings.Split(text, "\n") {
			if m := numberedLine.FindStringSubmatch(line); m != nil {
				candidates = append(candidates, m[1])
			}
		}
	}

	seen := map[string]bool{}
	var out []string
	for _, q := range candidates {
		q = cleanQuestion(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

func cleanQuestion(q string) string {
	q = strings.TrimSpace(q)
	q = strings.Trim(q, "\"'`*")
	return strings.TrimSpace(q)
}
