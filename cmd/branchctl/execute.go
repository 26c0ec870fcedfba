package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/ardentforge/branchctl/pkg/domain"
	"github.com/ardentforge/branchctl/pkg/errors"
	"github.com/ardentforge/branchctl/pkg/parallel"
)

func runExecuteCommand(args []string) error {
	if len(args) == 0 {
		return errors.Validation("execute requires a subcommand: branch, tree")
	}

	switch args[0] {
	case "branch":
		return runExecuteBranch(args[1:])
	case "tree":
		return runExecuteTree(args[1:])
	default:
		return errors.Validation("unknown execute subcommand: " + args[0])
	}
}

func runExecuteBranch(args []string) error {
	fs := flag.NewFlagSet("execute branch", flag.ContinueOnError)
	timeoutFlag := fs.String("timeout", "", "per-branch execution timeout (e.g. 5m), defaults to config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.Validation("execute branch requires a branch id")
	}

	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	timeout, err := parseDuration(*timeoutFlag, a.cfg.Orchestrator.DefaultTimeout)
	if err != nil {
		return errors.Validation("invalid --timeout: " + err.Error())
	}

	id := domain.BranchId(fs.Arg(0))
	progress := make(chan parallel.BranchProgress, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			fmt.Printf("[%s] %.0f%% (%d/%d agents)\n", p.Status, p.PercentComplete, p.CompletedAgents, p.TotalAgents)
		}
	}()

	result, err := a.engine.ExecuteBranchWithProgress(context.Background(), id, timeout, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	fmt.Printf("files changed: %d\n", len(result.FileChanges))
	fmt.Printf("agents run:    %d\n", result.Metrics.AgentsExecuted)
	fmt.Printf("duration:      %dms\n", result.Metrics.TotalDurationMs)
	return nil
}

func runExecuteTree(args []string) error {
	fs := flag.NewFlagSet("execute tree", flag.ContinueOnError)
	timeoutFlag := fs.String("timeout", "", "per-branch execution timeout (e.g. 5m), defaults to config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.Validation("execute tree requires a root branch id")
	}

	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	timeout, err := parseDuration(*timeoutFlag, a.cfg.Orchestrator.DefaultTimeout)
	if err != nil {
		return errors.Validation("invalid --timeout: " + err.Error())
	}

	id := domain.BranchId(fs.Arg(0))
	if err := a.engine.ExecuteTree(context.Background(), id, timeout); err != nil {
		return err
	}

	fmt.Printf("executed tree rooted at %s\n", id)
	return nil
}
