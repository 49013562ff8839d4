package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagecraft/stagecraft/internal/errors"
	"github.com/stagecraft/stagecraft/internal/idea"
	"github.com/stagecraft/stagecraft/internal/stage"
)

var (
	initRepo string
	initFrom string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an idea's stage branches",
	Long: `Create the fixed set of stage branches (requirements through
deployment) in the idea's repository, all pointing at the head of the
source branch. Branches that already exist are left untouched.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initRepo, "repo", "", "repository address (owner/name)")
	initCmd.Flags().StringVar(&initFrom, "from", "main", "branch to fork the stage branches from")
	_ = initCmd.MarkFlagRequired("repo")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	repo, err := idea.ParseRepository(initRepo)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	head, err := d.store.GetBranchHead(ctx, repo, initFrom)
	if err != nil {
		return fmt.Errorf("reading %s head: %w", initFrom, err)
	}

	created := 0
	for _, branch := range stage.AllBranches() {
		err := d.store.CreateBranch(ctx, repo, branch, head)
		switch {
		case err == nil:
			created++
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", branch)
		case errors.Is(err, errors.ErrBranchExists):
			fmt.Fprintf(cmd.OutOrStdout(), "exists  %s\n", branch)
		default:
			return fmt.Errorf("creating %s: %w", branch, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d stage branches created\n", created, len(stage.AllBranches()))
	return nil
}
