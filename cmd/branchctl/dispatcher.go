package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/ardentforge/branchctl/pkg/parallel"
)

// envAgentCommand names the environment variable holding the shell command
// template used to dispatch an agent. "{agent}" is replaced with the
// assignment's AgentID, "{task}" with the task content. Falls back to a
// no-op echo so a freshly installed branchctl can still exercise a branch
// end to end without any agent configured.
const envAgentCommand = "BRANCHCTL_AGENT_CMD"

const defaultAgentCommand = `echo "[{agent}] {task}"`

// subprocessDispatcher runs each agent as a short-lived shell command,
// mirroring the teacher's sandboxed shell execution (sh -c under a context).
type subprocessDispatcher struct {
	template string
}

func newSubprocessDispatcher() *subprocessDispatcher {
	template := strings.TrimSpace(os.Getenv(envAgentCommand))
	if template == "" {
		template = defaultAgentCommand
	}
	return &subprocessDispatcher{template: template}
}

func (d *subprocessDispatcher) Dispatch(ctx context.Context, agentID string, task parallel.Task) (parallel.DispatchResult, error) {
	command := strings.NewReplacer("{agent}", agentID, "{task}", task.Content).Replace(d.template)

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return parallel.DispatchResult{
			Outcome: parallel.Completed,
			Output:  stderr.String(),
		}, err
	}

	return parallel.DispatchResult{
		Outcome: parallel.Completed,
		Output:  stdout.String(),
	}, nil
}
