package main

import "testing"

func TestRunBranchCommandRequiresSubcommand(t *testing.T) {
	if err := runBranchCommand(nil); err == nil {
		t.Fatal("expected error for missing branch subcommand")
	}
}

func TestRunBranchCommandUnknownSubcommand(t *testing.T) {
	if err := runBranchCommand([]string{"frobnicate"}); err == nil {
		t.Fatal("expected error for unknown branch subcommand")
	}
}

func TestRunBranchCreateRequiresSourceOrParent(t *testing.T) {
	if err := runBranchCreate(nil); err == nil {
		t.Fatal("expected error when neither --source nor --parent is set")
	}
}

func TestRunBranchCreateRejectsBothSourceAndParent(t *testing.T) {
	err := runBranchCreate([]string{"--source", "/tmp/x", "--parent", "abc"})
	if err == nil {
		t.Fatal("expected error when both --source and --parent are set")
	}
}

func TestRunBranchStatusRequiresID(t *testing.T) {
	if err := runBranchStatus(nil); err == nil {
		t.Fatal("expected error for missing branch id")
	}
}

func TestRunBranchTreeRequiresID(t *testing.T) {
	if err := runBranchTree(nil); err == nil {
		t.Fatal("expected error for missing branch id")
	}
}

func TestRunBranchAbortRequiresID(t *testing.T) {
	if err := runBranchAbort(nil); err == nil {
		t.Fatal("expected error for missing branch id")
	}
}

func TestRunMergeCommandRequiresSubcommand(t *testing.T) {
	if err := runMergeCommand(nil); err == nil {
		t.Fatal("expected error for missing merge subcommand")
	}
}

func TestRunMergeCommandUnknownSubcommand(t *testing.T) {
	if err := runMergeCommand([]string{"frobnicate"}); err == nil {
		t.Fatal("expected error for unknown merge subcommand")
	}
}

func TestRunMergeRequestRequiresBranch(t *testing.T) {
	if err := runMergeRequest(nil); err == nil {
		t.Fatal("expected error for missing --branch")
	}
}

func TestRunMergeApproveRequiresIDAndBy(t *testing.T) {
	if err := runMergeApprove(nil); err == nil {
		t.Fatal("expected error for missing merge request id")
	}
	if err := runMergeApprove([]string{"mr-1"}); err == nil {
		t.Fatal("expected error for missing --by")
	}
}

func TestRunMergeRejectRequiresID(t *testing.T) {
	if err := runMergeReject(nil); err == nil {
		t.Fatal("expected error for missing merge request id")
	}
}

func TestRunMergeExecuteRequiresID(t *testing.T) {
	if err := runMergeExecute(nil); err == nil {
		t.Fatal("expected error for missing merge request id")
	}
}

func TestRunMergeCommitRequiresID(t *testing.T) {
	if err := runMergeCommit(nil); err == nil {
		t.Fatal("expected error for missing merge request id")
	}
}

func TestRunExecuteCommandRequiresSubcommand(t *testing.T) {
	if err := runExecuteCommand(nil); err == nil {
		t.Fatal("expected error for missing execute subcommand")
	}
}

func TestRunExecuteCommandUnknownSubcommand(t *testing.T) {
	if err := runExecuteCommand([]string{"frobnicate"}); err == nil {
		t.Fatal("expected error for unknown execute subcommand")
	}
}

func TestRunExecuteBranchRequiresID(t *testing.T) {
	if err := runExecuteBranch(nil); err == nil {
		t.Fatal("expected error for missing branch id")
	}
}

func TestRunExecuteTreeRequiresID(t *testing.T) {
	if err := runExecuteTree(nil); err == nil {
		t.Fatal("expected error for missing root branch id")
	}
}
