// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stevebottos/dxtr-cli/internal/llm"
	"github.com/stevebottos/dxtr-cli/internal/logging"
	"github.com/stevebottos/dxtr-cli/internal/parallel"
)

const fileSystemPrompt = `You describe source files for a profile of their author.

For the file you are given, write 2-4 sentences covering what it does,
the libraries and techniques it uses, and what it suggests about the
author's skills and interests. Do not repeat the code.`

// maxFileChars truncates very large files before they are sent.
const maxFileChars = 24000

var fileSampling = llm.Request{Temperature: 0.2, MaxTokens: 300}

// FileSummary is the analysis of one file.
type FileSummary struct {
	File     string `json:"file"`
	Analysis string `json:"analysis,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RepoSummary groups the file summaries of one repository.
type RepoSummary struct {
	Repo          string        `json:"repo"`
	URL           string        `json:"url"`
	FilesAnalyzed int           `json:"files_analyzed"`
	FileSummaries []FileSummary `json:"file_summaries"`
}

// Summary is the content of github_summary.json.
type Summary struct {
	ReposAnalyzed int           `json:"repos_analyzed"`
	Summaries     []RepoSummary `json:"summaries"`
}

// Files returns the number of files across all repositories.
func (s Summary) Files() int {
	n := 0
	for _, r := range s.Summaries {
		n += r.FilesAnalyzed
	}
	return n
}

// Save writes s as indented JSON to path.
func (s Summary) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadSummary reads a summary written by Save.
func LoadSummary(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing %s: %w", path, err)
	}
	return s, nil
}

// Summarizer describes source files with the model, many at once.
type Summarizer struct {
	endpoint       llm.Endpoint
	maxConcurrency int
	statusInterval time.Duration
	logger         *zap.Logger
	out            io.Writer
}

// NewSummarizer returns a Summarizer. Progress lines go to out (nil
// discards them); writes are serialized across files.
func NewSummarizer(endpoint llm.Endpoint, maxConcurrency int, statusInterval time.Duration, logger *zap.Logger, out io.Writer) *Summarizer {
	return &Summarizer{
		endpoint:       endpoint,
		maxConcurrency: maxConcurrency,
		statusInterval: statusInterval,
		logger:         logging.OrNop(logger),
		out:            parallel.SyncWriter(out),
	}
}

// Summarize analyzes files concurrently and groups the results by
// repository in the order repositories first appear. A file that cannot
// be analyzed keeps its slot with Error set.
func (s *Summarizer) Summarize(ctx context.Context, repos []Repo, files []SourceFile) Summary {
	results := parallel.Map(ctx, files,
		func(ctx context.Context, f SourceFile, idx, total int) (FileSummary, error) {
			analysis, err := s.summarizeFile(ctx, f)
			if err != nil {
				fmt.Fprintf(s.out, "  x [%d/%d] %s (ERROR: %v)\n", idx, total, f.Path, err)
				return FileSummary{}, err
			}
			fmt.Fprintf(s.out, "  ok [%d/%d] %s\n", idx, total, f.Path)
			return FileSummary{File: f.Path, Analysis: analysis}, nil
		},
		func(f SourceFile, err error) FileSummary {
			s.logger.Warn("file not summarized", zap.String("file", f.Path), zap.Error(err))
			return FileSummary{File: f.Path, Error: err.Error()}
		},
		parallel.Options{
			Desc:           "Analyzing files",
			MaxConcurrency: s.maxConcurrency,
			StatusInterval: s.statusInterval,
			Report:         func(line string) { fmt.Fprintln(s.out, line) },
		},
	)

	byRepo := map[string]*RepoSummary{}
	summary := Summary{ReposAnalyzed: len(repos)}
	for _, r := range repos {
		summary.Summaries = append(summary.Summaries, RepoSummary{Repo: r.FullName(), URL: r.URL})
	}
	for i := range summary.Summaries {
		byRepo[summary.Summaries[i].Repo] = &summary.Summaries[i]
	}
	for i, res := range results {
		rs, ok := byRepo[files[i].Repo.FullName()]
		if !ok {
			continue
		}
		rs.FileSummaries = append(rs.FileSummaries, res)
		rs.FilesAnalyzed++
	}
	return summary
}

func (s *Summarizer) summarizeFile(ctx context.Context, f SourceFile) (string, error) {
	content := f.Content
	if len(content) > maxFileChars {
		content = content[:maxFileChars] + "\n... (truncated)"
	}
	lang := strings.TrimPrefix(filepath.Ext(f.Path), ".")

	req := fileSampling
	req.Messages = []llm.Message{
		llm.SystemMessage(fileSystemPrompt),
		llm.UserMessage(fmt.Sprintf("Analyze this file (%s/%s):\n\n```%s\n%s\n```", f.Repo.FullName(), f.Path, lang, content)),
	}
	analysis, err := llm.Complete(ctx, s.endpoint, req, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(analysis), nil
}
