// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Build the user profile used for ranking",
}

var profileSynthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Write the enriched profile from the seed profile and GitHub summary",
	RunE:  runProfileSynthesize,
}

func runProfileSynthesize(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	p := a.cfg.Paths
	seed, _ := cmd.Flags().GetString("seed")
	if seed == "" {
		seed = p.SeedProfile
	}
	out := cmd.OutOrStdout()
	if _, err := a.synthesizer().Synthesize(cmd.Context(), seed, p.GitHubSummary, p.Profile, out); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nSaved to %s\n", p.Profile)
	return nil
}

var profileGitHubCmd = &cobra.Command{
	Use:   "github <profile-url>",
	Short: "Summarize the source files of a GitHub user's pinned repositories",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileGitHub,
}

func runProfileGitHub(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	msg, err := a.githubTool(out).Analyze(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, msg)
	return nil
}

func init() {
	profileSynthesizeCmd.Flags().String("seed", "", "seed profile path (default from config)")

	profileCmd.AddCommand(profileSynthesizeCmd)
	profileCmd.AddCommand(profileGitHubCmd)
	rootCmd.AddCommand(profileCmd)
}
