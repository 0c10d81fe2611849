// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ranking

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/stevebottos/dxtr-cli/internal/llm"
)

const scoreSystemPrompt = `You rate how relevant a research paper is to one specific reader.

Use the reader's profile: their stated interests, the problems they work on,
and the tools and languages they use. A paper is relevant when the reader
would plausibly read it this week and act on it.

Scale:
1 - unrelated to anything in the profile
2 - same broad field, no direct connection
3 - touches one of the reader's interests
4 - directly about one of the reader's interests or tools
5 - the reader would want to read this today`

const scoreInstruction = "---\nFinal Score (1-5), integer only. You must answer in valid json."

// forkData feeds the per-paper messages shared by every fork.
type forkData struct {
	Profile  string
	Title    string
	Abstract string
}

var forkTmpl = []*template.Template{
	template.Must(template.New("profile").Parse(`The user profile: {{.Profile}}`)),
	template.Must(template.New("paper").Parse(`The paper: {{.Title}}

The paper abstract: {{.Abstract}}`)),
	template.Must(template.New("instruction").Parse(
		`Now consider possible scores for this paper, with reasons. Then, settle on a final score.`)),
}

// renderPrompt executes each template into its own user message.
func renderPrompt(tmpls []*template.Template, data any) ([]llm.Message, error) {
	msgs := make([]llm.Message, 0, len(tmpls))
	for _, t := range tmpls {
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
		}
		msgs = append(msgs, llm.UserMessage(buf.String()))
	}
	return msgs, nil
}
