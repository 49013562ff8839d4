package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagecraft/stagecraft/internal/artifact"
	"github.com/stagecraft/stagecraft/internal/completeness"
	"github.com/stagecraft/stagecraft/internal/idea"
	"github.com/stagecraft/stagecraft/internal/stage"
)

var (
	statusRepo   string
	statusBranch string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Evaluate a stage without acting on it",
	Long: `Load a stage branch's artifacts, run its completeness predicate and
render the verdict with the specific criteria and measured metrics.
Nothing is generated or committed.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusRepo, "repo", "", "repository address (owner/name)")
	statusCmd.Flags().StringVar(&statusBranch, "branch", "", "stage branch to evaluate")
	_ = statusCmd.MarkFlagRequired("repo")
	_ = statusCmd.MarkFlagRequired("branch")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	repo, err := idea.ParseRepository(statusRepo)
	if err != nil {
		return err
	}
	s, err := stage.ParseBranch(statusBranch)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	set, err := artifact.Load(ctx, d.store, repo, s)
	if err != nil {
		return err
	}
	verdict := completeness.NewRegistry(d.cfg.Completeness).Evaluate(ctx, set)
	fmt.Fprint(cmd.OutOrStdout(), renderVerdict(s.BranchName(), verdict))
	return nil
}
