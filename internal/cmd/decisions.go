package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagecraft/stagecraft/internal/idea"
	"github.com/stagecraft/stagecraft/internal/ledger"
)

var (
	decisionsRepo string
	decisionsAll  bool
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Show the idea's decision records",
	Long: `Render the active decision set across all stage branches. With --all,
the full cumulative history is shown instead, reversals included.`,
	RunE: runDecisions,
}

func init() {
	decisionsCmd.Flags().StringVar(&decisionsRepo, "repo", "", "repository address (owner/name)")
	decisionsCmd.Flags().BoolVar(&decisionsAll, "all", false, "include superseded records")
	_ = decisionsCmd.MarkFlagRequired("repo")
	rootCmd.AddCommand(decisionsCmd)
}

func runDecisions(cmd *cobra.Command, args []string) error {
	repo, err := idea.ParseRepository(decisionsRepo)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	var records []*ledger.Decision
	if decisionsAll {
		records, err = d.ledger.History(ctx, repo)
	} else {
		records, err = d.ledger.Active(ctx, repo)
	}
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No decisions recorded.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintln(cmd.OutOrStdout(), renderDecision(rec))
	}
	return nil
}
