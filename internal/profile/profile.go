// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package profile builds the reader profile that ranking and research
// are tailored to. A hand-written seed profile is enriched with the
// GitHub summary, when one exists, and rewritten by the model.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/stevebottos/dxtr-cli/internal/llm"
	"github.com/stevebottos/dxtr-cli/internal/logging"
	"github.com/stevebottos/dxtr-cli/internal/tools"
)

const systemPrompt = `You write a reader profile used to pick research papers for one person.

From the material provided, write a concise Markdown profile with these sections:
## Background
## Current interests
## Tools and languages
## What to recommend
## What to skip

Be specific. Prefer concrete topics, methods and libraries over general fields.
Use only what the material supports.`

var synthesisSampling = llm.Request{Temperature: 0.3, MaxTokens: 1500}

// ErrSeedNotFound is returned when the seed profile is missing.
var ErrSeedNotFound = errors.New("seed profile not found")

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Synthesizer writes enriched profiles.
type Synthesizer struct {
	endpoint llm.Endpoint
	logger   *zap.Logger
}

// NewSynthesizer returns a Synthesizer.
func NewSynthesizer(endpoint llm.Endpoint, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{endpoint: endpoint, logger: logging.OrNop(logger)}
}

// Synthesize reads seedPath and, when present, githubSummaryPath, asks the
// model for an enriched profile, and writes it to outPath. The profile
// text is streamed to w when w is non-nil.
func (s *Synthesizer) Synthesize(ctx context.Context, seedPath, githubSummaryPath, outPath string, w io.Writer) (string, error) {
	seed, err := os.ReadFile(seedPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrSeedNotFound, seedPath)
	}
	if err != nil {
		return "", fmt.Errorf("reading seed profile: %w", err)
	}

	parts := []string{"# Seed Profile\n\n" + strings.TrimSpace(string(seed))}
	if summary, ok := s.readSummary(githubSummaryPath); ok {
		parts = append(parts, "# GitHub Summary\n\n```json\n"+summary+"\n```")
	}

	req := synthesisSampling
	req.Messages = []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage("Create an enriched profile from the following information:\n\n" + strings.Join(parts, "\n\n---\n\n")),
	}
	raw, err := llm.Complete(ctx, s.endpoint, req, w)
	if err != nil {
		return "", fmt.Errorf("synthesizing profile: %w", err)
	}

	profile := strings.TrimSpace(thinkBlock.ReplaceAllString(raw, ""))
	if profile == "" {
		return "", errors.New("synthesizing profile: model returned an empty profile")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", filepath.Dir(outPath), err)
	}
	if err := os.WriteFile(outPath, []byte(profile+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("writing profile: %w", err)
	}
	s.logger.Info("profile synthesized", zap.String("path", outPath), zap.Int("bytes", len(profile)))
	return profile, nil
}

// readSummary returns the GitHub summary re-indented, or false when it is
// missing or unreadable.
func (s *Synthesizer) readSummary(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("reading GitHub summary", zap.String("path", path), zap.Error(err))
		}
		return "", false
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warn("ignoring malformed GitHub summary", zap.String("path", path), zap.Error(err))
		return "", false
	}
	pretty, _ := json.MarshalIndent(v, "", "  ")
	return string(pretty), true
}

// Tool exposes synthesis to the chat model as synthesize_profile.
type Tool struct {
	Synthesizer       *Synthesizer
	SeedPath          string
	GitHubSummaryPath string
	OutPath           string
}

func (t *Tool) Name() string { return "synthesize_profile" }

func (t *Tool) Schema() llm.ToolSpec {
	return tools.Spec("synthesize_profile",
		"Synthesize an enriched user profile from the seed profile and any GitHub analysis. Use this when the user wants to create or update their profile.",
		tools.Param{Name: "seed_profile_path", Type: "string", Description: "Path to the seed profile.md (optional, defaults to the configured seed profile)"},
	)
}

func (t *Tool) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := tools.Decode[struct {
		SeedProfilePath string `json:"seed_profile_path"`
	}](raw)
	if err != nil {
		return nil, err
	}
	seed := t.SeedPath
	if args.SeedProfilePath != "" {
		seed = tools.ExpandHome(args.SeedProfilePath)
	}

	_, err = t.Synthesizer.Synthesize(ctx, seed, t.GitHubSummaryPath, t.OutPath, nil)
	if errors.Is(err, ErrSeedNotFound) {
		return fmt.Sprintf("Error: Seed profile not found: %s", seed), nil
	}
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("Profile synthesized and saved to %s", t.OutPath), nil
}
