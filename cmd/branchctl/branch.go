package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/ardentforge/branchctl/pkg/domain"
	"github.com/ardentforge/branchctl/pkg/errors"
)

func runBranchCommand(args []string) error {
	if len(args) == 0 {
		return errors.Validation("branch requires a subcommand: create, list, status, tree, abort")
	}

	switch args[0] {
	case "create":
		return runBranchCreate(args[1:])
	case "list":
		return runBranchList(args[1:])
	case "status":
		return runBranchStatus(args[1:])
	case "tree":
		return runBranchTree(args[1:])
	case "abort":
		return runBranchAbort(args[1:])
	default:
		return errors.Validation("unknown branch subcommand: " + args[0])
	}
}

type agentFlags []string

func (a *agentFlags) String() string { return strings.Join(*a, ",") }

func (a *agentFlags) Set(value string) error {
	*a = append(*a, value)
	return nil
}

func runBranchCreate(args []string) error {
	fs := flag.NewFlagSet("branch create", flag.ContinueOnError)
	source := fs.String("source", "", "base directory path to branch from")
	parent := fs.String("parent", "", "parent branch id to branch from")
	name := fs.String("name", "", "human-readable branch name")
	concurrent := fs.Bool("parallel", false, "dispatch this branch's agents concurrently")
	maxConcurrent := fs.Int("max-concurrent", 0, "bound on concurrent agent dispatches (with --parallel)")
	autoMerge := fs.Bool("auto-merge", false, "merge completed children back automatically")
	mergeStrategy := fs.String("merge-strategy", "", "merge strategy name (defaults to config)")
	var agents agentFlags
	fs.Var(&agents, "agent", "agent id to assign (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if (*source == "") == (*parent == "") {
		return errors.Validation("exactly one of --source or --parent is required")
	}

	var src domain.BranchSource
	if *source != "" {
		src = domain.BaseSource(*source)
	} else {
		src = domain.BranchSourceFrom(domain.BranchId(*parent))
	}

	strategy := domain.Sequential()
	if *concurrent {
		strategy = domain.Parallel(*maxConcurrent)
	}

	assignments := make([]domain.AgentAssignment, 0, len(agents))
	for i, agentID := range agents {
		assignments = append(assignments, domain.AgentAssignment{AgentID: agentID, Priority: uint8(i)})
	}

	cfg := domain.BranchConfig{
		Name:              *name,
		Agents:            assignments,
		ExecutionStrategy: strategy,
		AutoMerge:         *autoMerge,
		MergeStrategy:     *mergeStrategy,
	}

	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.MergeStrategy == "" {
		cfg.MergeStrategy = a.cfg.Merge.DefaultStrategy
	}

	id, err := a.branches.CreateBranch(context.Background(), src, cfg)
	if err != nil {
		return err
	}

	fmt.Println(id)
	return nil
}

func runBranchList(args []string) error {
	fs := flag.NewFlagSet("branch list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	branches, err := a.branches.ListActiveBranches(context.Background())
	if err != nil {
		return err
	}

	for _, b := range branches {
		fmt.Printf("%s\t%s\t%s\n", b.ID, b.Status, b.Name)
	}
	return nil
}

func runBranchStatus(args []string) error {
	if len(args) == 0 {
		return errors.Validation("branch status requires an id")
	}
	id := domain.BranchId(args[0])

	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.branches.GetBranch(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Printf("id:       %s\n", b.ID)
	fmt.Printf("name:     %s\n", b.Name)
	fmt.Printf("status:   %s\n", b.Status)
	fmt.Printf("session:  %s\n", b.SessionID)
	if b.ParentID != nil {
		fmt.Printf("parent:   %s\n", *b.ParentID)
	}
	fmt.Printf("children: %d\n", len(b.Children))
	if b.FailureReason != nil {
		fmt.Printf("failure:  %s\n", *b.FailureReason)
	}
	return nil
}

func runBranchTree(args []string) error {
	if len(args) == 0 {
		return errors.Validation("branch tree requires an id")
	}
	id := domain.BranchId(args[0])

	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	tree, err := a.branches.GetBranchTree(context.Background(), id)
	if err != nil {
		return err
	}

	printBranchTree(tree, 0)
	return nil
}

func printBranchTree(node *domain.BranchTree, depth int) {
	fmt.Printf("%s%s [%s] %s\n", strings.Repeat("  ", depth), node.Branch.ID, node.Branch.Status, node.Branch.Name)
	for _, child := range node.Children {
		printBranchTree(child, depth+1)
	}
}

func runBranchAbort(args []string) error {
	if len(args) == 0 {
		return errors.Validation("branch abort requires an id")
	}
	id := domain.BranchId(args[0])

	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.branches.AbortBranch(context.Background(), id); err != nil {
		return err
	}

	fmt.Printf("aborted %s\n", id)
	return nil
}
