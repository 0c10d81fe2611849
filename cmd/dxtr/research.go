// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stevebottos/dxtr-cli/internal/papers"
	"github.com/stevebottos/dxtr-cli/internal/research"
)

var researchCmd = &cobra.Command{
	Use:   "research <paper-id> <question...>",
	Short: "Answer a question about one paper",
	Long: `Research generates exploration questions from the paper abstract, retrieves
the most relevant chunks of the paper for each, and streams an answer grounded
in those chunks. The paper must be fetched and indexed first.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runResearch,
}

func runResearch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	date, _ := cmd.Flags().GetString("date")
	if date != "" && !papers.ValidDate(date) {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	paperID := papers.NormalizeID(args[0])
	query := strings.Join(args[1:], " ")

	paper, ix, err := research.Open(a.store, paperID, date)
	if err != nil {
		return err
	}
	defer ix.Close()

	out := cmd.OutOrStdout()
	report, err := a.researcher(cmd.ErrOrStderr()).Run(cmd.Context(), ix, paper, a.readProfile(), query, out)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return nil
}

func init() {
	researchCmd.Flags().String("date", "", "date directory of the paper (default: search all dates)")
	researchCmd.Flags().Bool("json", false, "also print the research report as JSON")

	rootCmd.AddCommand(researchCmd)
}
