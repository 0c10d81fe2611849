// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ranking

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/stevebottos/dxtr-cli/internal/logging"
	"github.com/stevebottos/dxtr-cli/internal/metrics"
	"github.com/stevebottos/dxtr-cli/internal/parallel"
	"github.com/stevebottos/dxtr-cli/pkg/types"
)

// PaperScorer scores one paper. Scorer is the production implementation.
type PaperScorer interface {
	Score(ctx context.Context, paper types.Paper, profile string) (types.AggregatedScore, error)
}

// Options tunes a ranking run.
type Options struct {
	// MaxConcurrency bounds papers scored at once. Zero means unbounded.
	MaxConcurrency int

	// PaperTimeout bounds the scoring of a single paper. Zero means none.
	PaperTimeout time.Duration

	// StatusInterval is the period of batch status lines.
	StatusInterval time.Duration

	// PopularityThreshold forces a score of 5 for papers with more
	// upvotes. Zero disables the boost.
	PopularityThreshold int
}

// OptionsFromConfig maps configuration onto Options.
func OptionsFromConfig(cfg types.RankingConfig) Options {
	return Options{
		MaxConcurrency:      cfg.MaxConcurrency,
		PaperTimeout:        cfg.PaperTimeout,
		StatusInterval:      cfg.StatusInterval,
		PopularityThreshold: cfg.PopularityThreshold,
	}
}

// Result is the outcome of a ranking run.
type Result struct {
	Date       string                  `yaml:"date,omitempty"`
	PaperCount int                     `yaml:"paper_count"`
	Scores     []types.AggregatedScore `yaml:"scores"`

	// FinalRanking is one "N. [score/5] Title" line per paper.
	FinalRanking string `yaml:"final_ranking"`
}

// Ranker scores a batch of papers and orders them by relevance.
type Ranker struct {
	scorer PaperScorer
	opts   Options
	logger *zap.Logger
	out    io.Writer
}

// NewRanker returns a Ranker. Progress lines go to out (nil discards them);
// writes to out are serialized, so it need not be safe for concurrent use.
func NewRanker(scorer PaperScorer, opts Options, logger *zap.Logger, out io.Writer) *Ranker {
	return &Ranker{scorer: scorer, opts: opts, logger: logging.OrNop(logger), out: parallel.SyncWriter(out)}
}

// Rank scores every paper and returns them sorted by final score,
// descending. Papers that could not be scored are kept, marked with an
// error, and sorted last.
func (r *Ranker) Rank(ctx context.Context, papers []types.Paper, profile string) Result {
	total := len(papers)

	scores := parallel.Map(ctx, papers,
		func(ctx context.Context, p types.Paper, idx, total int) (types.AggregatedScore, error) {
			short := shortTitle(p.DisplayTitle())
			fmt.Fprintf(r.out, "  [%d/%d] Scoring: %s\n", idx, total, short)
			agg, err := r.scorer.Score(ctx, p, profile)
			if err != nil {
				fmt.Fprintf(r.out, "  [%d/%d] Error: %s - %v\n", idx, total, short, err)
				return agg, err
			}
			fmt.Fprintf(r.out, "  [%d/%d] Done: %.1f/5 - %s\n", idx, total, agg.FinalScore, short)
			return agg, nil
		},
		func(p types.Paper, err error) types.AggregatedScore {
			r.logger.Warn("paper not scored", zap.String("paper", p.ID), zap.Error(err))
			return types.AggregatedScore{
				PaperID: p.ID,
				Title:   p.DisplayTitle(),
				Upvotes: p.Upvotes,
				Error:   err.Error(),
			}
		},
		parallel.Options{
			Desc:           "Ranking papers",
			MaxConcurrency: r.opts.MaxConcurrency,
			ItemTimeout:    r.opts.PaperTimeout,
			StatusInterval: r.opts.StatusInterval,
			Report:         func(line string) { fmt.Fprintln(r.out, line) },
		},
	)

	for _, s := range scores {
		if s.Degraded() {
			metrics.PapersScoredTotal.WithLabelValues("error").Inc()
		} else {
			metrics.PapersScoredTotal.WithLabelValues("ok").Inc()
		}
	}

	ApplyPopularityBoost(scores, r.opts.PopularityThreshold)
	SortScores(scores)

	return Result{
		PaperCount:   total,
		Scores:       scores,
		FinalRanking: FormatRanking(scores),
	}
}

// ApplyPopularityBoost sets the final score of every scored paper with
// more than threshold upvotes to the maximum. A threshold <= 0 disables it.
func ApplyPopularityBoost(scores []types.AggregatedScore, threshold int) {
	if threshold <= 0 {
		return
	}
	for i := range scores {
		if scores[i].Degraded() || scores[i].Upvotes <= threshold {
			continue
		}
		scores[i].FinalScore = maxScore
		scores[i].Boosted = true
	}
}

// SortScores orders scores by final score descending, with degraded
// entries last. Equal scores keep their input order.
func SortScores(scores []types.AggregatedScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Degraded() != b.Degraded() {
			return !a.Degraded()
		}
		return a.FinalScore > b.FinalScore
	})
}

// FormatRanking renders sorted scores as numbered lines.
func FormatRanking(scores []types.AggregatedScore) string {
	lines := make([]string, 0, len(scores))
	for i, s := range scores {
		switch {
		case s.Degraded():
			lines = append(lines, fmt.Sprintf("%d. [error] %s", i+1, s.Title))
		case s.Boosted:
			lines = append(lines, fmt.Sprintf("%d. [%.1f/5] %s (popular: %d upvotes)", i+1, s.FinalScore, s.Title, s.Upvotes))
		default:
			lines = append(lines, fmt.Sprintf("%d. [%.1f/5] %s", i+1, s.FinalScore, s.Title))
		}
	}
	return strings.Join(lines, "\n")
}

// WriteResult persists res as YAML at path.
func WriteResult(path string, res Result) error {
	data, err := yaml.Marshal(&res)
	if err != nil {
		return fmt.Errorf("marshaling rankings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadResult loads rankings written by WriteResult.
func ReadResult(path string) (Result, error) {
	var res Result
	data, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}
	if err := yaml.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("parsing %s: %w", path, err)
	}
	return res, nil
}

func shortTitle(title string) string {
	r := []rune(title)
	if len(r) > 40 {
		return string(r[:40]) + "..."
	}
	return title
}
