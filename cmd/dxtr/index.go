// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevebottos/dxtr-cli/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build per-paper retrieval indexes",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Chunk each paper.md of a date into a searchable index",
	Long: `Build splits every paper.md under the date directory into heading-aware
chunks and stores them in a SQLite full-text index next to the paper.
Papers whose index is newer than paper.md are skipped unless --force is set.`,
	RunE: runIndexBuild,
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	date, err := dateFlag(cmd)
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")

	out := cmd.OutOrStdout()
	summary, err := index.BuildDate(cmd.Context(), a.store, date, a.chunkOptions(), force, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Indexed %d, skipped %d, missing markdown %d, failed %d\n",
		summary.Built, summary.Skipped, summary.Missing, summary.Failed)
	if summary.HasFailures() {
		return fmt.Errorf("%d paper(s) failed indexing", summary.Failed)
	}
	return nil
}

func init() {
	indexBuildCmd.Flags().String("date", "", "date to index (YYYY-MM-DD, default today)")
	indexBuildCmd.Flags().Bool("force", false, "rebuild indexes that are up to date")

	indexCmd.AddCommand(indexBuildCmd)
	rootCmd.AddCommand(indexCmd)
}
