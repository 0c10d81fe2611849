// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevebottos/dxtr-cli/internal/papers"
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "Fetch and list daily papers",
	Long: `Papers manages the local copy of Hugging Face daily papers. Each date is a
directory of <paper_id>/ folders holding metadata.json and, once converted,
paper.md.`,
}

// --- fetch subcommand ---

var papersFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the paper listing for a date",
	RunE:  runPapersFetch,
}

func runPapersFetch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	date, err := dateFlag(cmd)
	if err != nil {
		return err
	}
	_, err = a.store.Download(cmd.Context(), a.fetcher(), date, cmd.OutOrStdout())
	return err
}

// --- list subcommand ---

var papersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded papers for a date, or available dates",
	RunE:  runPapersList,
}

func runPapersList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	if d, _ := cmd.Flags().GetString("date"); d == "" {
		days, _ := cmd.Flags().GetInt("days")
		fmt.Fprintln(out, papers.FormatAvailableDates(a.store.AvailableDates(time.Now(), days)))
		return nil
	}

	date, err := dateFlag(cmd)
	if err != nil {
		return err
	}
	list, err := a.store.LoadDate(date)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list) == 0 {
		fmt.Fprintf(out, "No papers for %s.\n", date)
		return nil
	}
	fmt.Fprintf(out, "%-12s  %-7s  %s\n", "ID", "Upvotes", "Title")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, p := range list {
		fmt.Fprintf(out, "%-12s  %-7d  %s\n", p.ID, p.Upvotes, p.Title)
	}
	return nil
}

// dateFlag returns --date, defaulting to today, and rejects malformed dates.
func dateFlag(cmd *cobra.Command) (string, error) {
	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		return papers.Today(time.Now()), nil
	}
	if !papers.ValidDate(date) {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return date, nil
}

func init() {
	papersFetchCmd.Flags().String("date", "", "date to fetch (YYYY-MM-DD, default today)")

	papersListCmd.Flags().String("date", "", "date to list (YYYY-MM-DD); omit to list available dates")
	papersListCmd.Flags().Int("days", 7, "days to look back when listing available dates")
	papersListCmd.Flags().Bool("json", false, "output as JSON")

	papersCmd.AddCommand(papersFetchCmd)
	papersCmd.AddCommand(papersListCmd)
	rootCmd.AddCommand(papersCmd)
}
