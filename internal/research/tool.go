// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/stevebottos/dxtr-cli/internal/llm"
	"github.com/stevebottos/dxtr-cli/internal/papers"
	"github.com/stevebottos/dxtr-cli/internal/tools"
)

// Tool exposes research to the chat model as deep_research.
type Tool struct {
	Store       *papers.Store
	Researcher  *Researcher
	ProfilePath string

	// Out receives the streamed answer; nil discards it.
	Out io.Writer
}

// Answer is the tool result returned to the model.
type Answer struct {
	PaperID      string `json:"paper_id"`
	Title        string `json:"title"`
	Answer       string `json:"answer"`
	UniqueChunks int    `json:"unique_chunks"`
	TotalChunks  int    `json:"total_chunks"`
}

func (t *Tool) Name() string { return "deep_research" }

func (t *Tool) Schema() llm.ToolSpec {
	return tools.Spec("deep_research",
		"Answer a question about a research paper using retrieval over its full text. "+
			"Use this when the user asks to analyze, summarize, or explore a specific paper. "+
			"ALWAYS pass the user's original question/request verbatim.",
		tools.Param{Name: "paper_id", Type: "string", Description: "Paper ID (e.g., '2512.12345' or 'arxiv:2512.12345')", Required: true},
		tools.Param{Name: "user_query", Type: "string", Description: "The user's original question/request about the paper, passed through verbatim", Required: true},
		tools.Param{Name: "date", Type: "string", Description: "Date in YYYY-MM-DD format (optional, all dates are searched if not provided)"},
	)
}

func (t *Tool) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := tools.Decode[struct {
		PaperID   string `json:"paper_id"`
		UserQuery string `json:"user_query"`
		Date      string `json:"date"`
	}](raw, "paper_id", "user_query")
	if err != nil {
		return nil, err
	}
	if args.Date != "" && !papers.ValidDate(args.Date) {
		return fmt.Sprintf("Error: invalid date %q, expected YYYY-MM-DD.", args.Date), nil
	}
	id := papers.NormalizeID(args.PaperID)

	paper, ix, err := Open(t.Store, id, args.Date)
	var np *NotPreparedError
	if errors.As(err, &np) {
		return "Error: " + np.Error(), nil
	}
	if err != nil {
		return nil, err
	}
	defer ix.Close()

	profile, err := os.ReadFile(t.ProfilePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	report, err := t.Researcher.Run(ctx, ix, paper, string(profile), args.UserQuery, t.Out)
	if err != nil {
		return nil, err
	}
	return Answer{
		PaperID:      paper.ID,
		Title:        paper.DisplayTitle(),
		Answer:       report.Answer,
		UniqueChunks: report.UniqueChunks,
		TotalChunks:  report.TotalChunks,
	}, nil
}
