package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagecraft/stagecraft/internal/engine"
	"github.com/stagecraft/stagecraft/internal/idea"
)

var (
	promoteRepo string
	promoteIdea string
)

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote active implementation to stable",
	Long: `Move the active implementation branch's content onto the stable branch.
The promotion only runs when the active sub-stage is complete and the
ledger holds an active "` + engine.PromotionDecision + `" decision
choosing "` + engine.PromotionChoice + `".`,
	RunE: runPromote,
}

func init() {
	promoteCmd.Flags().StringVar(&promoteRepo, "repo", "", "repository address (owner/name)")
	promoteCmd.Flags().StringVar(&promoteIdea, "idea", "", "idea identifier for events and ledger records")
	_ = promoteCmd.MarkFlagRequired("repo")
	rootCmd.AddCommand(promoteCmd)
}

func runPromote(cmd *cobra.Command, args []string) error {
	repo, err := idea.ParseRepository(promoteRepo)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	out, err := d.engine.PromoteImplementation(ctx, engine.Trigger{
		IdeaID: promoteIdea,
		Repo:   repo,
	})
	if out != nil {
		fmt.Fprint(cmd.OutOrStdout(), renderOutcome(out))
	}
	return err
}
