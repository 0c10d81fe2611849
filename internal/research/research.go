// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research answers questions about one paper. A single request
// is expanded into several exploration questions, each question retrieves
// chunks from the paper's index, the chunks are merged without duplicates,
// and one answer is synthesized from them for the original request.
package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stevebottos/dxtr-cli/internal/index"
	"github.com/stevebottos/dxtr-cli/internal/llm"
	"github.com/stevebottos/dxtr-cli/internal/logging"
	"github.com/stevebottos/dxtr-cli/internal/metrics"
	"github.com/stevebottos/dxtr-cli/internal/papers"
	"github.com/stevebottos/dxtr-cli/pkg/types"
)

// Stage names a step of a research request.
type Stage string

const (
	StageGenerateQuestions Stage = "GENERATE_QUESTIONS"
	StageRetrieveDedup     Stage = "RETRIEVE_DEDUP"
	StageSynthesizeAnswer  Stage = "SYNTHESIZE_ANSWER"
	StageDone              Stage = "DONE"
)

// Index is the retrieval surface of a paper. *index.Index implements it.
type Index interface {
	Retrieve(ctx context.Context, query string, topK int) ([]types.Chunk, error)
	Size(ctx context.Context) (int, error)
}

// NotPreparedError reports a paper that cannot be researched yet. Its
// message tells the user what to run.
type NotPreparedError struct {
	PaperID string
	Reason  string
}

func (e *NotPreparedError) Error() string { return e.Reason }

// Sampling for the two generations of a request.
var (
	questionsSampling = llm.Request{Temperature: 0.3, MaxTokens: 400, Format: &questionsSchema}
	synthesisSampling = llm.Request{Temperature: 0.3, MaxTokens: 2000}
)

// Researcher runs research requests against an inference endpoint.
type Researcher struct {
	endpoint llm.Endpoint
	cfg      types.ResearchConfig
	logger   *zap.Logger
	out      io.Writer
}

// NewResearcher returns a Researcher. Progress lines go to out (nil
// discards them). Zero config values take their defaults.
func NewResearcher(endpoint llm.Endpoint, cfg types.ResearchConfig, logger *zap.Logger, out io.Writer) *Researcher {
	def := types.DefaultConfig().Research
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = def.MaxQuestions
	}
	if cfg.MinQuestions <= 0 || cfg.MinQuestions > cfg.MaxQuestions {
		cfg.MinQuestions = min(def.MinQuestions, cfg.MaxQuestions)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if out == nil {
		out = io.Discard
	}
	return &Researcher{endpoint: endpoint, cfg: cfg, logger: logging.OrNop(logger), out: out}
}

// Open locates a paper in store and opens its index. Missing pieces are
// reported as *NotPreparedError. The caller closes the returned index.
func Open(store *papers.Store, paperID, date string) (types.Paper, *index.Index, error) {
	dir, err := store.Find(paperID, date)
	if errors.Is(err, papers.ErrPaperNotFound) {
		return types.Paper{}, nil, &NotPreparedError{
			PaperID: paperID,
			Reason:  fmt.Sprintf("Paper %s not found. Make sure it has been downloaded.", paperID),
		}
	}
	if err != nil {
		return types.Paper{}, nil, err
	}

	paper, err := papers.ReadMetadata(dir)
	if err != nil {
		return types.Paper{}, nil, &NotPreparedError{
			PaperID: paperID,
			Reason:  fmt.Sprintf("Metadata not found for paper %s. Run 'dxtr papers fetch' for its date.", paperID),
		}
	}

	ix, err := index.Open(filepath.Join(dir, papers.IndexDir), paperID)
	if errors.Is(err, index.ErrNotFound) {
		date := filepath.Base(filepath.Dir(dir))
		return types.Paper{}, nil, &NotPreparedError{
			PaperID: paperID,
			Reason:  fmt.Sprintf("Index not found for paper %s. Run 'dxtr index build --date %s' to build it.", paperID, date),
		}
	}
	if err != nil {
		return types.Paper{}, nil, err
	}
	return paper, ix, nil
}

// Run answers query about paper using ix. The answer is streamed to w
// when w is non-nil.
func (r *Researcher) Run(ctx context.Context, ix Index, paper types.Paper, profile, query string, w io.Writer) (types.ResearchReport, error) {
	report := types.ResearchReport{PaperID: paper.ID, Query: query}

	total, err := ix.Size(ctx)
	if err != nil {
		return report, fmt.Errorf("reading index size: %w", err)
	}
	report.TotalChunks = total
	fmt.Fprintf(r.out, "  Index loaded (%d chunks)\n", total)

	r.stage(paper.ID, StageGenerateQuestions)
	questions, err := r.GenerateQuestions(ctx, paper, profile, query)
	if err != nil {
		return report, err
	}
	report.Questions = questions
	fmt.Fprintf(r.out, "  Generated %d exploration questions\n", len(questions))

	r.stage(paper.ID, StageRetrieveDedup)
	perQuestion, err := RetrieveAll(ctx, ix, questions, r.cfg.TopK)
	if err != nil {
		return report, err
	}
	report.Chunks = MergeChunks(perQuestion)
	report.UniqueChunks = len(report.Chunks)
	for _, cs := range perQuestion {
		report.RetrievedChunks += len(cs)
	}
	metrics.ResearchChunks.WithLabelValues("unique").Observe(float64(report.UniqueChunks))
	metrics.ResearchChunks.WithLabelValues("retrieved").Observe(float64(report.RetrievedChunks))
	fmt.Fprintf(r.out, "  Retrieved %d unique chunks (%d before dedup) of %d\n",
		report.UniqueChunks, report.RetrievedChunks, report.TotalChunks)
	r.logger.Info("research retrieval",
		zap.String("paper", paper.ID),
		zap.Int("questions", len(questions)),
		zap.Int("unique_chunks", report.UniqueChunks),
		zap.Int("retrieved_chunks", report.RetrievedChunks),
		zap.Int("total_chunks", report.TotalChunks),
	)

	r.stage(paper.ID, StageSynthesizeAnswer)
	answer, err := r.Synthesize(ctx, paper, profile, query, report.Chunks, w)
	if err != nil {
		return report, err
	}
	report.Answer = answer

	r.stage(paper.ID, StageDone)
	return report, nil
}

func (r *Researcher) stage(paperID string, s Stage) {
	r.logger.Debug("research stage", zap.String("paper", paperID), zap.String("stage", string(s)))
}

// GenerateQuestions asks the model for exploration questions in one
// generation. It fails with ErrNoQuestions when none can be parsed.
func (r *Researcher) GenerateQuestions(ctx context.Context, paper types.Paper, profile, query string) ([]string, error) {
	data := promptData{
		Min: r.cfg.MinQuestions, Max: r.cfg.MaxQuestions,
		Title: paper.DisplayTitle(), Abstract: paper.Summary,
		Profile: profile, Query: query,
	}
	system, err := render(questionsSystemTmpl, data)
	if err != nil {
		return nil, err
	}
	user, err := render(questionsUserTmpl, data)
	if err != nil {
		return nil, err
	}

	req := questionsSampling
	req.Messages = []llm.Message{llm.SystemMessage(system), llm.UserMessage(user)}
	raw, err := llm.Complete(ctx, r.endpoint, req, nil)
	if err != nil {
		return nil, fmt.Errorf("generating questions: %w", err)
	}

	questions := ParseQuestions(raw, r.cfg.MaxQuestions)
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w from %d bytes of output", ErrNoQuestions, len(raw))
	}
	if len(questions) < r.cfg.MinQuestions {
		r.logger.Warn("fewer exploration questions than requested",
			zap.Int("got", len(questions)), zap.Int("min", r.cfg.MinQuestions))
	}
	return questions, nil
}

// RetrieveAll queries ix for every question concurrently. Results are
// indexed like questions.
func RetrieveAll(ctx context.Context, ix Index, questions []string, topK int) ([][]types.Chunk, error) {
	results := make([][]types.Chunk, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range questions {
		g.Go(func() error {
			chunks, err := ix.Retrieve(gctx, q, topK)
			if err != nil {
				return fmt.Errorf("retrieving for question %d: %w", i+1, err)
			}
			results[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MergeChunks flattens per-question results keeping the first occurrence
// of each chunk ID, in question order then rank order.
func MergeChunks(perQuestion [][]types.Chunk) []types.Chunk {
	seen := map[string]bool{}
	var out []types.Chunk
	for _, chunks := range perQuestion {
		for _, c := range chunks {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out
}

// Synthesize answers the original query from chunks.
func (r *Researcher) Synthesize(ctx context.Context, paper types.Paper, profile, query string, chunks []types.Chunk, w io.Writer) (string, error) {
	prompt, err := render(synthesisTmpl, promptData{
		Title:   paper.DisplayTitle(),
		Profile: strings.TrimSpace(profile),
		Query:   query,
		Chunks:  chunks,
	})
	if err != nil {
		return "", err
	}

	req := synthesisSampling
	req.Messages = []llm.Message{llm.UserMessage(prompt)}
	answer, err := llm.Complete(ctx, r.endpoint, req, w)
	if err != nil {
		return "", fmt.Errorf("synthesizing answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
