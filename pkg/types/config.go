// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// InferenceConfig holds settings for the OpenAI-compatible inference endpoint.
type InferenceConfig struct {
	// BaseURL is the API root including the version segment
	// (default "http://localhost:30000/v1").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// APIKey is sent as a bearer token. Local servers usually ignore it.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Model is the model name passed on every request (default "default").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// Temperature is the sampling temperature for chat turns (default 0.3).
	Temperature float32 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens caps each chat turn response (default 2000).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Timeout is the HTTP client timeout for a single request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// PathsConfig locates the on-disk workspace.
type PathsConfig struct {
	// WorkDir is the root for generated state (default ".dxtr").
	WorkDir string `json:"work_dir" yaml:"work_dir" mapstructure:"work_dir"`

	// PapersDir holds <date>/<paper_id>/ directories (default ".dxtr/hf_papers").
	PapersDir string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir"`

	// SeedProfile is the hand-written profile the user maintains (default "profile.md").
	SeedProfile string `json:"seed_profile" yaml:"seed_profile" mapstructure:"seed_profile"`

	// Profile is the synthesized profile (default ".dxtr/dxtr_profile.md").
	Profile string `json:"profile" yaml:"profile" mapstructure:"profile"`

	// GitHubSummary is the per-file repository summary (default ".dxtr/github_summary.json").
	GitHubSummary string `json:"github_summary" yaml:"github_summary" mapstructure:"github_summary"`

	// ReposDir caches shallow clones (default ".dxtr/repos").
	ReposDir string `json:"repos_dir" yaml:"repos_dir" mapstructure:"repos_dir"`
}

// ChatConfig bounds the conversation loop.
type ChatConfig struct {
	// MaxToolRounds caps tool-dispatch rounds within one turn (default 5).
	MaxToolRounds int `json:"max_tool_rounds" yaml:"max_tool_rounds" mapstructure:"max_tool_rounds"`

	// TurnTimeout bounds a whole user turn (default 10m).
	TurnTimeout time.Duration `json:"turn_timeout" yaml:"turn_timeout" mapstructure:"turn_timeout"`
}

// RankingConfig holds settings for relevance scoring.
type RankingConfig struct {
	// Forks is the number of independent scoring branches per paper (default 3).
	Forks int `json:"forks" yaml:"forks" mapstructure:"forks"`

	// MaxConcurrency limits papers scored at once. Zero means unbounded.
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency" mapstructure:"max_concurrency"`

	// PopularityThreshold forces a score of 5 for papers with more upvotes.
	// Zero disables the boost.
	PopularityThreshold int `json:"popularity_threshold" yaml:"popularity_threshold" mapstructure:"popularity_threshold"`

	// StatusInterval is the period of batch status lines (default 10s).
	StatusInterval time.Duration `json:"status_interval" yaml:"status_interval" mapstructure:"status_interval"`

	// PaperTimeout bounds the scoring of one paper; a paper that runs
	// over is ranked as an error (default 5m). Zero means no limit.
	PaperTimeout time.Duration `json:"paper_timeout" yaml:"paper_timeout" mapstructure:"paper_timeout"`
}

// ResearchConfig holds settings for multi-query retrieval.
type ResearchConfig struct {
	// MaxQuestions caps generated exploration questions (default 5).
	MaxQuestions int `json:"max_questions" yaml:"max_questions" mapstructure:"max_questions"`

	// MinQuestions is the expected lower bound; fewer is logged, not fatal (default 3).
	MinQuestions int `json:"min_questions" yaml:"min_questions" mapstructure:"min_questions"`

	// TopK is the number of chunks retrieved per question (default 3).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// ChunkWords is the window size used when building an index (default 220).
	ChunkWords int `json:"chunk_words" yaml:"chunk_words" mapstructure:"chunk_words"`

	// ChunkOverlap is the word overlap between consecutive windows (default 40).
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
}

// GitHubConfig holds settings for repository analysis.
type GitHubConfig struct {
	// MaxFiles caps source files summarized per repository (default 100).
	MaxFiles int `json:"max_files" yaml:"max_files" mapstructure:"max_files"`

	// MaxConcurrency limits files summarized at once (default 8).
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// LogConfig selects the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default "info").
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "console" or "json" (default "console").
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config is the full dxtr configuration.
type Config struct {
	Inference InferenceConfig `json:"inference" yaml:"inference" mapstructure:"inference"`
	Paths     PathsConfig     `json:"paths" yaml:"paths" mapstructure:"paths"`
	Chat      ChatConfig      `json:"chat" yaml:"chat" mapstructure:"chat"`
	Ranking   RankingConfig   `json:"ranking" yaml:"ranking" mapstructure:"ranking"`
	Research  ResearchConfig  `json:"research" yaml:"research" mapstructure:"research"`
	GitHub    GitHubConfig    `json:"github" yaml:"github" mapstructure:"github"`
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Inference: InferenceConfig{
			BaseURL:     "http://localhost:30000/v1",
			Model:       "default",
			Temperature: 0.3,
			MaxTokens:   2000,
			Timeout:     5 * time.Minute,
		},
		Paths: PathsConfig{
			WorkDir:       ".dxtr",
			PapersDir:     ".dxtr/hf_papers",
			SeedProfile:   "profile.md",
			Profile:       ".dxtr/dxtr_profile.md",
			GitHubSummary: ".dxtr/github_summary.json",
			ReposDir:      ".dxtr/repos",
		},
		Chat: ChatConfig{
			MaxToolRounds: 5,
			TurnTimeout:   10 * time.Minute,
		},
		Ranking: RankingConfig{
			Forks:          3,
			StatusInterval: 10 * time.Second,
			PaperTimeout:   5 * time.Minute,
		},
		Research: ResearchConfig{
			MaxQuestions: 5,
			MinQuestions: 3,
			TopK:         3,
			ChunkWords:   220,
			ChunkOverlap: 40,
		},
		GitHub: GitHubConfig{
			MaxFiles:       100,
			MaxConcurrency: 8,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
