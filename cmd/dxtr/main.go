// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the dxtr CLI: an interactive research
// assistant plus one subcommand per pipeline stage (papers, index, rank,
// research, profile).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stevebottos/dxtr-cli/internal/secrets"
	"github.com/stevebottos/dxtr-cli/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the dxtr CLI.
var rootCmd = &cobra.Command{
	Use:   "dxtr",
	Short: "Research assistant for keeping up with ML papers",
	Long: `dxtr is a research assistant backed by a local OpenAI-compatible inference
server. Run "dxtr chat" for the interactive assistant. The assistant drives the
same stages exposed here as subcommands: fetching daily papers, indexing them,
ranking them against your profile and answering questions about one paper.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", secrets.Keys(s))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./dxtr.yaml or ~/.config/dxtr/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("model", "", "model name sent to the inference server")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("inference.model", rootCmd.PersistentFlags().Lookup("model"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("dxtr")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "dxtr"))
		}
	}

	setDefaults(types.DefaultConfig())
	viper.SetEnvPrefix("DXTR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every configuration key so environment variables
// such as DXTR_INFERENCE_BASE_URL resolve even without a config file.
func setDefaults(d types.Config) {
	defaults := map[string]any{
		"inference.base_url":           d.Inference.BaseURL,
		"inference.api_key":            d.Inference.APIKey,
		"inference.model":              d.Inference.Model,
		"inference.temperature":        d.Inference.Temperature,
		"inference.max_tokens":         d.Inference.MaxTokens,
		"inference.timeout":            d.Inference.Timeout,
		"paths.work_dir":               d.Paths.WorkDir,
		"paths.papers_dir":             d.Paths.PapersDir,
		"paths.seed_profile":           d.Paths.SeedProfile,
		"paths.profile":                d.Paths.Profile,
		"paths.github_summary":         d.Paths.GitHubSummary,
		"paths.repos_dir":              d.Paths.ReposDir,
		"chat.max_tool_rounds":         d.Chat.MaxToolRounds,
		"chat.turn_timeout":            d.Chat.TurnTimeout,
		"ranking.forks":                d.Ranking.Forks,
		"ranking.max_concurrency":      d.Ranking.MaxConcurrency,
		"ranking.popularity_threshold": d.Ranking.PopularityThreshold,
		"ranking.status_interval":      d.Ranking.StatusInterval,
		"ranking.paper_timeout":        d.Ranking.PaperTimeout,
		"research.max_questions":       d.Research.MaxQuestions,
		"research.min_questions":       d.Research.MinQuestions,
		"research.top_k":               d.Research.TopK,
		"research.chunk_words":         d.Research.ChunkWords,
		"research.chunk_overlap":       d.Research.ChunkOverlap,
		"github.max_files":             d.GitHub.MaxFiles,
		"github.max_concurrency":       d.GitHub.MaxConcurrency,
		"log.level":                    d.Log.Level,
		"log.format":                   d.Log.Format,
	}
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// loadConfig decodes the merged viper state. The inference API key falls
// back to .secrets/inference-api-key.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Inference.APIKey = secretDefault("inference-api-key", cfg.Inference.APIKey)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
