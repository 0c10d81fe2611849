// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ranking scores papers against the user's profile. Each paper is
// scored by several independent reasoning forks whose integer scores are
// averaged once every fork has finished.
package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stevebottos/dxtr-cli/internal/llm"
	"github.com/stevebottos/dxtr-cli/internal/logging"
	"github.com/stevebottos/dxtr-cli/internal/metrics"
	"github.com/stevebottos/dxtr-cli/pkg/types"
)

const (
	// DefaultForks is the number of scoring branches per paper.
	DefaultForks = 3

	minScore = 1
	maxScore = 5
)

var (
	// ErrMalformedScore is returned by ParseScore for unusable output.
	ErrMalformedScore = errors.New("malformed score")

	// ErrNoScores is returned when every fork of a paper failed.
	ErrNoScores = errors.New("no fork produced a valid score")
)

var scoreSchema = llm.JSONSchema{
	Name:   "score",
	Schema: json.RawMessage(`{"type":"object","properties":{"value":{"type":"integer"}},"required":["value"]}`),
}

// Sampling for the two steps of a fork.
var (
	reasoningSampling = llm.Request{Temperature: 0.2, MaxTokens: 600, FrequencyPenalty: 1.1, PresencePenalty: 0.1}
	scoreSampling     = llm.Request{Temperature: 0, MaxTokens: 20, Format: &scoreSchema}
)

// ParseScore extracts a 1..5 integer from a score completion. The expected
// form is {"value": n}; code fences are tolerated and a bare integer is
// accepted as a fallback.
func ParseScore(raw string) (int, error) {
	text := llm.StripFences(raw)
	if text == "" {
		return 0, fmt.Errorf("%w: empty output", ErrMalformedScore)
	}

	var n float64
	if strings.HasPrefix(text, "{") {
		var obj struct {
			Value *json.Number `json:"value"`
		}
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformedScore, err)
		}
		if obj.Value == nil {
			return 0, fmt.Errorf("%w: missing \"value\"", ErrMalformedScore)
		}
		f, err := obj.Value.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformedScore, err)
		}
		n = f
	} else {
		i, err := strconv.Atoi(text)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformedScore, text)
		}
		n = float64(i)
	}

	if n != math.Trunc(n) {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrMalformedScore, n)
	}
	if n < minScore || n > maxScore {
		return 0, fmt.Errorf("%w: %v is outside %d..%d", ErrMalformedScore, n, minScore, maxScore)
	}
	return int(n), nil
}

// Aggregate computes the final score of paper from its branches. Branches
// without a valid score are excluded from the mean. It fails only when no
// branch is usable.
func Aggregate(paper types.Paper, branches []types.ScoreBranch) (types.AggregatedScore, error) {
	agg := types.AggregatedScore{
		PaperID:  paper.ID,
		Title:    paper.DisplayTitle(),
		Upvotes:  paper.Upvotes,
		Branches: branches,
	}

	sum, n := 0, 0
	for _, b := range branches {
		if !b.OK() {
			agg.ExcludedForks++
			continue
		}
		sum += b.Score
		n++
	}
	if n == 0 {
		return agg, fmt.Errorf("%w (%d forks)", ErrNoScores, len(branches))
	}
	agg.FinalScore = math.Round(float64(sum)/float64(n)*10) / 10
	return agg, nil
}

// Scorer runs the forked scoring of a single paper.
type Scorer struct {
	endpoint llm.Endpoint
	forks    int
	logger   *zap.Logger
}

// NewScorer returns a Scorer using forks branches (DefaultForks when <= 0).
func NewScorer(endpoint llm.Endpoint, forks int, logger *zap.Logger) *Scorer {
	if forks <= 0 {
		forks = DefaultForks
	}
	return &Scorer{endpoint: endpoint, forks: forks, logger: logging.OrNop(logger)}
}

// Score runs every fork concurrently and aggregates after all of them
// return. A fork whose score cannot be parsed is retried once and then
// excluded.
func (s *Scorer) Score(ctx context.Context, paper types.Paper, profile string) (types.AggregatedScore, error) {
	prefix, err := renderPrompt(forkTmpl, forkData{Profile: profile, Title: paper.DisplayTitle(), Abstract: paper.Summary})
	if err != nil {
		return types.AggregatedScore{}, err
	}

	branches := make([]types.ScoreBranch, s.forks)
	var g errgroup.Group
	for i := range branches {
		g.Go(func() error {
			branches[i] = s.runFork(ctx, prefix)
			return nil
		})
	}
	_ = g.Wait()

	agg, err := Aggregate(paper, branches)
	if agg.ExcludedForks > 0 {
		metrics.ExcludedForksTotal.Add(float64(agg.ExcludedForks))
		s.logger.Warn("scoring forks excluded",
			zap.String("paper", paper.ID),
			zap.Int("excluded", agg.ExcludedForks),
			zap.Int("forks", s.forks),
		)
	}
	return agg, err
}

func (s *Scorer) runFork(ctx context.Context, prefix []llm.Message) types.ScoreBranch {
	msgs := append([]llm.Message{llm.SystemMessage(scoreSystemPrompt)}, prefix...)

	req := reasoningSampling
	req.Messages = msgs
	reasoning, err := llm.Complete(ctx, s.endpoint, req, nil)
	if err != nil {
		return types.ScoreBranch{Err: fmt.Sprintf("reasoning: %v", err)}
	}
	branch := types.ScoreBranch{Reasoning: strings.TrimSpace(reasoning)}

	scoreMsgs := append(append([]llm.Message(nil), msgs...),
		llm.AssistantMessage(reasoning),
		llm.UserMessage(scoreInstruction),
	)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req := scoreSampling
		req.Messages = scoreMsgs
		raw, err := llm.Complete(ctx, s.endpoint, req, nil)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		score, err := ParseScore(raw)
		if err == nil {
			branch.Score = score
			return branch
		}
		lastErr = err
		s.logger.Debug("unparsable score", zap.String("raw", raw), zap.Int("attempt", attempt+1))
	}
	branch.Err = fmt.Sprintf("score: %v", lastErr)
	return branch
}
