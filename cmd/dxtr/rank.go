// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stevebottos/dxtr-cli/internal/papers"
	"github.com/stevebottos/dxtr-cli/internal/ranking"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Score a day's papers against your profile",
	Long: `Rank scores every paper of a date from 1 to 5 against the synthesized
profile. Each paper is scored by several independent branches and the scores
are averaged. The ranking is printed and saved to rankings.yaml in the date
directory.`,
	RunE: runRank,
}

func runRank(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	date, err := dateFlag(cmd)
	if err != nil {
		return err
	}
	profile := a.readProfile()
	if profile == "" {
		return fmt.Errorf("no profile at %s; run 'dxtr profile synthesize' first", a.cfg.Paths.Profile)
	}
	list, err := a.store.LoadDate(date)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("no papers for %s; run 'dxtr papers fetch --date %s' first", date, date)
	}

	out := cmd.OutOrStdout()
	res := a.ranker(out).Rank(cmd.Context(), list, profile)
	res.Date = date

	fmt.Fprintf(out, "\n%s\n", res.FinalRanking)
	path := filepath.Join(a.store.DateDir(date), papers.RankingsFile)
	if err := ranking.WriteResult(path, res); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved to %s\n", path)
	return nil
}

func init() {
	rankCmd.Flags().String("date", "", "date to rank (YYYY-MM-DD, default today)")

	rootCmd.AddCommand(rankCmd)
}
