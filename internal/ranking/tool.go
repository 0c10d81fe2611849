// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stevebottos/dxtr-cli/internal/llm"
	"github.com/stevebottos/dxtr-cli/internal/papers"
	"github.com/stevebottos/dxtr-cli/internal/tools"
)

// topReasons is how many leading papers get their reasoning included in
// the tool result.
const topReasons = 3

// Tool exposes ranking to the chat model as rank_papers.
type Tool struct {
	Store       *papers.Store
	Ranker      *Ranker
	ProfilePath string

	// Now returns the current time; nil means time.Now.
	Now func() time.Time
}

func (t *Tool) Name() string { return "rank_papers" }

func (t *Tool) Schema() llm.ToolSpec {
	return tools.Spec("rank_papers", "Rank research papers by relevance to the user's profile and interests.",
		tools.Param{Name: "user_query", Type: "string", Description: "The user's original question/request about papers", Required: true},
		tools.Param{Name: "date", Type: "string", Description: "Date in YYYY-MM-DD format (optional, defaults to today)"},
	)
}

func (t *Tool) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := tools.Decode[struct {
		UserQuery string `json:"user_query"`
		Date      string `json:"date"`
	}](raw, "user_query")
	if err != nil {
		return nil, err
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	date := args.Date
	if date == "" {
		date = papers.Today(now())
	}
	if !papers.ValidDate(date) {
		return fmt.Sprintf("Error: invalid date %q, expected YYYY-MM-DD.", date), nil
	}

	profile, err := os.ReadFile(t.ProfilePath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Sprintf("Error: no profile found at %s. Create one with synthesize_profile first.", t.ProfilePath), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	list, err := t.Store.LoadDate(date)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return fmt.Sprintf("Error: no papers found for %s. Run 'dxtr papers fetch --date %s' first.\n\n%s",
			date, date, papers.FormatAvailableDates(t.Store.AvailableDates(now(), 7))), nil
	}

	res := t.Ranker.Rank(ctx, list, string(profile))
	res.Date = date

	var b strings.Builder
	fmt.Fprintf(&b, "Ranked %d papers for %s.\nUser request: %s\n\n%s", res.PaperCount, date, args.UserQuery, res.FinalRanking)

	shown := 0
	for _, s := range res.Scores {
		if shown == topReasons || s.Degraded() {
			break
		}
		if shown == 0 {
			b.WriteString("\n\nReasoning for the top papers:")
		}
		fmt.Fprintf(&b, "\n\n[%s] %s\n%s", s.PaperID, s.Title, firstBranchReason(s.Reason()))
		shown++
	}

	path := filepath.Join(t.Store.DateDir(date), papers.RankingsFile)
	if err := WriteResult(path, res); err != nil {
		fmt.Fprintf(&b, "\n\nError: could not save rankings: %v", err)
	} else {
		fmt.Fprintf(&b, "\n\nSaved to %s", path)
	}
	return b.String(), nil
}

// firstBranchReason trims a joined reason to the first branch, capped in
// length, to keep the tool result short.
func firstBranchReason(reason string) string {
	if i := strings.Index(reason, "\n---\n"); i >= 0 {
		reason = reason[:i]
	}
	r := []rune(reason)
	if len(r) > 600 {
		return string(r[:600]) + "..."
	}
	return reason
}
