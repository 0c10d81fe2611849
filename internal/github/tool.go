// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/stevebottos/dxtr-cli/internal/llm"
	"github.com/stevebottos/dxtr-cli/internal/logging"
	"github.com/stevebottos/dxtr-cli/internal/tools"
)

// Tool exposes repository analysis to the chat model as analyze_github.
type Tool struct {
	Client      *http.Client
	Cloner      *Cloner
	Summarizer  *Summarizer
	SummaryPath string
	MaxFiles    int

	// Exclude drops pinned repositories whose URL ends with any suffix.
	Exclude []string

	Logger *zap.Logger
	Out    io.Writer
}

func (t *Tool) Name() string { return "analyze_github" }

func (t *Tool) Schema() llm.ToolSpec {
	return tools.Spec("analyze_github",
		"Analyze the pinned repositories of a GitHub profile. Clones each repository, summarizes its source files, and saves the result for profile synthesis.",
		tools.Param{Name: "github_url", Type: "string", Description: "GitHub profile URL, e.g. https://github.com/octocat", Required: true},
	)
}

func (t *Tool) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := tools.Decode[struct {
		GitHubURL string `json:"github_url"`
	}](raw, "github_url")
	if err != nil {
		return nil, err
	}
	return t.Analyze(ctx, args.GitHubURL)
}

// Analyze runs the whole pipeline for one profile URL. Expected failures
// (bad URL, nothing pinned, nothing cloned) are reported in the returned
// message rather than as errors.
func (t *Tool) Analyze(ctx context.Context, profileURL string) (string, error) {
	logger := logging.OrNop(t.Logger)
	out := t.Out
	if out == nil {
		out = io.Discard
	}

	if !IsProfileURL(profileURL) {
		return fmt.Sprintf("Error: Not a valid GitHub profile URL: %s", profileURL), nil
	}

	pinned, err := FetchPinned(ctx, t.Client, profileURL)
	if err != nil {
		logger.Warn("fetching pinned repositories", zap.String("url", profileURL), zap.Error(err))
		return "Error: Could not fetch GitHub profile page", nil
	}
	pinned = t.filter(pinned)
	if len(pinned) == 0 {
		return "No pinned repositories found on profile", nil
	}

	fmt.Fprintf(out, "Cloning %d repos...\n", len(pinned))
	var repos []Repo
	for _, u := range pinned {
		repo, err := t.Cloner.Clone(ctx, u)
		if err != nil {
			fmt.Fprintf(out, "  %v\n", err)
			logger.Warn("clone failed", zap.String("url", u), zap.Error(err))
			continue
		}
		if repo.Cached {
			fmt.Fprintf(out, "  %s (cached)\n", repo.FullName())
		} else {
			fmt.Fprintf(out, "  %s\n", repo.FullName())
		}
		repos = append(repos, repo)
	}
	if len(repos) == 0 {
		return "No repositories could be cloned", nil
	}

	var files []SourceFile
	for _, r := range repos {
		found, err := FindSourceFiles(r, t.MaxFiles)
		if err != nil {
			logger.Warn("listing source files", zap.String("repo", r.FullName()), zap.Error(err))
			continue
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return "No source files found to analyze", nil
	}

	summary := t.Summarizer.Summarize(ctx, repos, files)
	if err := summary.Save(t.SummaryPath); err != nil {
		return "", fmt.Errorf("saving summary: %w", err)
	}
	return fmt.Sprintf("GitHub analysis complete. Analyzed %d files across %d repos. Saved to %s.",
		summary.Files(), summary.ReposAnalyzed, t.SummaryPath), nil
}

func (t *Tool) filter(urls []string) []string {
	var out []string
next:
	for _, u := range urls {
		for _, suffix := range t.Exclude {
			if strings.HasSuffix(u, suffix) {
				continue next
			}
		}
		out = append(out, u)
	}
	return out
}
