// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chat

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stevebottos/dxtr-cli/internal/papers"
)

// availableDays is how far back the workspace description lists papers.
const availableDays = 7

// Workspace describes the user's on-disk state to the model so it can
// suggest the right next step.
type Workspace struct {
	SeedProfile   string
	Profile       string
	GitHubSummary string
	Papers        *papers.Store

	// Now returns the current time; nil means time.Now.
	Now func() time.Time
}

// Describe returns a short Markdown summary of what exists.
func (w *Workspace) Describe() string {
	var b strings.Builder
	b.WriteString("# Workspace state\n")
	fmt.Fprintf(&b, "- Seed profile (%s): %s\n", w.SeedProfile, presence(w.SeedProfile))
	fmt.Fprintf(&b, "- Synthesized profile (%s): %s\n", w.Profile, presence(w.Profile))
	fmt.Fprintf(&b, "- GitHub summary (%s): %s\n", w.GitHubSummary, presence(w.GitHubSummary))

	if w.Papers != nil {
		now := time.Now
		if w.Now != nil {
			now = w.Now
		}
		fmt.Fprintf(&b, "- Today is %s.\n\n", papers.Today(now()))
		b.WriteString(papers.FormatAvailableDates(w.Papers.AvailableDates(now(), availableDays)))
		b.WriteString("\n")
	}
	return b.String()
}

func presence(path string) string {
	if path == "" {
		return "not configured"
	}
	if _, err := os.Stat(path); err != nil {
		return "missing"
	}
	return "present"
}
