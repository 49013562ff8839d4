package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagecraft/stagecraft/internal/engine"
	"github.com/stagecraft/stagecraft/internal/idea"
)

var (
	advanceRepo   string
	advanceBranch string
	advanceIdea   string
)

var advanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Process one branch update",
	Long: `Run a single stage-progression invocation for a branch, exactly as a
webhook delivery would: evaluate completeness and, when complete,
generate, commit, open the transition PR, review, and merge or block.`,
	RunE: runAdvance,
}

func init() {
	advanceCmd.Flags().StringVar(&advanceRepo, "repo", "", "repository address (owner/name)")
	advanceCmd.Flags().StringVar(&advanceBranch, "branch", "", "stage branch that was updated")
	advanceCmd.Flags().StringVar(&advanceIdea, "idea", "", "idea identifier for events and ledger records")
	_ = advanceCmd.MarkFlagRequired("repo")
	_ = advanceCmd.MarkFlagRequired("branch")
	rootCmd.AddCommand(advanceCmd)
}

func runAdvance(cmd *cobra.Command, args []string) error {
	repo, err := idea.ParseRepository(advanceRepo)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	out, err := d.engine.HandleBranchUpdate(ctx, engine.Trigger{
		IdeaID:    advanceIdea,
		Repo:      repo,
		BranchRef: advanceBranch,
	})
	if out != nil {
		fmt.Fprint(cmd.OutOrStdout(), renderOutcome(out))
	}
	return err
}
