// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/stevebottos/dxtr-cli/pkg/types"
)

const questionsSystemPrompt = `You plan how to search a research paper.

Given the paper abstract, the reader's profile and the reader's request,
write between {{.Min}} and {{.Max}} short search questions whose answers,
found in the paper's text, would let someone answer the request well.
Cover different parts of the paper: method, results, limitations,
and anything the reader's background makes important.

Respond with JSON: {"questions": ["...", "..."]}`

const questionsUserPrompt = `The paper: {{.Title}}

Abstract: {{.Abstract}}

The user profile: {{.Profile}}

The user's request: {{.Query}}`

const synthesisPrompt = `{{if .Profile}}{{.Profile}}

-----

{{end}}You are analyzing a research paper with the user's background in mind.

The paper: {{.Title}}

Context from the paper:
{{range $i, $c := .Chunks}}
[{{inc $i}}]{{if $c.Section}} ({{$c.Section}}, p. {{$c.Page}}){{end}}
{{$c.Text}}
{{end}}
-----

Question: {{.Query}}

Answer based on the paper context above, tailoring your response to the user's interests and background described in the profile. Cite passages by their [number].`

type promptData struct {
	Min, Max int
	Title    string
	Abstract string
	Profile  string
	Query    string
	Chunks   []types.Chunk
}

var (
	questionsSystemTmpl = template.Must(template.New("questions-system").Parse(questionsSystemPrompt))
	questionsUserTmpl   = template.Must(template.New("questions-user").Parse(questionsUserPrompt))
	synthesisTmpl       = template.Must(template.New("synthesis").
				Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
				Parse(synthesisPrompt))
)

func render(t *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
