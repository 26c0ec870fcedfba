package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/ardentforge/branchctl/pkg/domain"
	"github.com/ardentforge/branchctl/pkg/errors"
)

func runMergeCommand(args []string) error {
	if len(args) == 0 {
		return errors.Validation("merge requires a subcommand: request, approve, reject, execute, commit")
	}

	switch args[0] {
	case "request":
		return runMergeRequest(args[1:])
	case "approve":
		return runMergeApprove(args[1:])
	case "reject":
		return runMergeReject(args[1:])
	case "execute":
		return runMergeExecute(args[1:])
	case "commit":
		return runMergeCommit(args[1:])
	default:
		return errors.Validation("unknown merge subcommand: " + args[0])
	}
}

func runMergeRequest(args []string) error {
	fs := flag.NewFlagSet("merge request", flag.ContinueOnError)
	branchID := fs.String("branch", "", "branch id to request a merge for")
	strategy := fs.String("strategy", "", "merge strategy name (defaults to config)")
	requireApproval := fs.Bool("require-approval", false, "require explicit approval before execution")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *branchID == "" {
		return errors.Validation("--branch is required")
	}

	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	if *strategy == "" {
		*strategy = a.cfg.Merge.DefaultStrategy
	}

	id, err := a.branches.RequestMerge(context.Background(), domain.BranchId(*branchID), *strategy, *requireApproval)
	if err != nil {
		return err
	}

	fmt.Println(id)
	return nil
}

func runMergeApprove(args []string) error {
	fs := flag.NewFlagSet("merge approve", flag.ContinueOnError)
	approver := fs.String("by", "", "name of the approver")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.Validation("merge approve requires a merge request id")
	}
	if *approver == "" {
		return errors.Validation("--by is required")
	}

	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	id := domain.MergeRequestId(fs.Arg(0))
	if err := a.branches.ApproveMerge(context.Background(), id, *approver); err != nil {
		return err
	}

	fmt.Printf("approved %s\n", id)
	return nil
}

func runMergeReject(args []string) error {
	fs := flag.NewFlagSet("merge reject", flag.ContinueOnError)
	reason := fs.String("reason", "", "rejection reason")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.Validation("merge reject requires a merge request id")
	}

	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	id := domain.MergeRequestId(fs.Arg(0))
	if err := a.branches.RejectMerge(context.Background(), id, *reason); err != nil {
		return err
	}

	fmt.Printf("rejected %s\n", id)
	return nil
}

func runMergeExecute(args []string) error {
	fs := flag.NewFlagSet("merge execute", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.Validation("merge execute requires a merge request id")
	}

	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	id := domain.MergeRequestId(fs.Arg(0))
	result, err := a.branches.ExecuteMerge(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Printf("strategy: %s\n", result.StrategyUsed)
	fmt.Printf("changes:  %d\n", len(result.MergedChanges))
	fmt.Printf("conflicts: %d\n", len(result.Conflicts))
	for _, c := range result.Conflicts {
		fmt.Printf("  conflict: %s (%s)\n", c.Path, c.Kind)
	}
	return nil
}

func runMergeCommit(args []string) error {
	fs := flag.NewFlagSet("merge commit", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.Validation("merge commit requires a merge request id")
	}

	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	id := domain.MergeRequestId(fs.Arg(0))
	if err := a.branches.CommitMerge(context.Background(), id); err != nil {
		return err
	}

	fmt.Printf("committed %s\n", id)
	return nil
}
