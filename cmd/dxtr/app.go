// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/stevebottos/dxtr-cli/internal/chat"
	"github.com/stevebottos/dxtr-cli/internal/github"
	"github.com/stevebottos/dxtr-cli/internal/index"
	"github.com/stevebottos/dxtr-cli/internal/llm"
	"github.com/stevebottos/dxtr-cli/internal/logging"
	"github.com/stevebottos/dxtr-cli/internal/papers"
	"github.com/stevebottos/dxtr-cli/internal/profile"
	"github.com/stevebottos/dxtr-cli/internal/ranking"
	"github.com/stevebottos/dxtr-cli/internal/research"
	"github.com/stevebottos/dxtr-cli/internal/tools"
	"github.com/stevebottos/dxtr-cli/pkg/types"
)

const (
	// fetchRetries is the retry budget for paper listing requests.
	fetchRetries = 3

	webTimeout = time.Minute
)

// app holds the components every subcommand builds from configuration.
type app struct {
	cfg      types.Config
	logger   *zap.Logger
	endpoint llm.Endpoint
	store    *papers.Store
	web      *http.Client
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	hc := &http.Client{Timeout: cfg.Inference.Timeout}
	return &app{
		cfg:      cfg,
		logger:   logger,
		endpoint: llm.NewClient(cfg.Inference, llm.WithHTTPClient(hc)),
		store:    papers.NewStore(cfg.Paths.PapersDir, logger),
		web:      &http.Client{Timeout: webTimeout},
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) fetcher() *papers.Fetcher {
	return &papers.Fetcher{Client: a.web, MaxRetries: fetchRetries}
}

func (a *app) chunkOptions() index.ChunkOptions {
	return index.ChunkOptions{Words: a.cfg.Research.ChunkWords, Overlap: a.cfg.Research.ChunkOverlap}
}

func (a *app) ranker(out io.Writer) *ranking.Ranker {
	rc := a.cfg.Ranking
	return ranking.NewRanker(
		ranking.NewScorer(a.endpoint, rc.Forks, a.logger),
		ranking.OptionsFromConfig(rc),
		a.logger, out,
	)
}

func (a *app) researcher(out io.Writer) *research.Researcher {
	return research.NewResearcher(a.endpoint, a.cfg.Research, a.logger, out)
}

func (a *app) synthesizer() *profile.Synthesizer {
	return profile.NewSynthesizer(a.endpoint, a.logger)
}

func (a *app) githubTool(out io.Writer) *github.Tool {
	gc := a.cfg.GitHub
	return &github.Tool{
		Client:      a.web,
		Cloner:      github.NewCloner(a.cfg.Paths.ReposDir),
		Summarizer:  github.NewSummarizer(a.endpoint, gc.MaxConcurrency, a.cfg.Ranking.StatusInterval, a.logger, out),
		SummaryPath: a.cfg.Paths.GitHubSummary,
		MaxFiles:    gc.MaxFiles,
		Logger:      a.logger,
		Out:         out,
	}
}

// registry builds the chat tool set. Tool progress and streamed sub-answers
// go to out.
func (a *app) registry(out io.Writer) (*tools.Registry, error) {
	p := a.cfg.Paths
	return tools.NewRegistry(a.logger,
		tools.ReadFile{},
		a.githubTool(out),
		&profile.Tool{
			Synthesizer:       a.synthesizer(),
			SeedPath:          p.SeedProfile,
			GitHubSummaryPath: p.GitHubSummary,
			OutPath:           p.Profile,
		},
		&ranking.Tool{Store: a.store, Ranker: a.ranker(out), ProfilePath: p.Profile},
		&research.Tool{Store: a.store, Researcher: a.researcher(out), ProfilePath: p.Profile, Out: out},
	)
}

func (a *app) workspace() *chat.Workspace {
	p := a.cfg.Paths
	return &chat.Workspace{
		SeedProfile:   p.SeedProfile,
		Profile:       p.Profile,
		GitHubSummary: p.GitHubSummary,
		Papers:        a.store,
	}
}

// readProfile returns the synthesized profile, or "" when none exists.
func (a *app) readProfile() string {
	data, err := os.ReadFile(a.cfg.Paths.Profile)
	if err != nil {
		return ""
	}
	return string(data)
}
