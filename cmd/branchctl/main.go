// Command branchctl drives the branching orchestrator from the shell: it
// wires the Branch Manager, Parallel Execution Engine, Session Manager and
// merge strategy registry over a SQLite-backed repository and dispatches to
// one of a small set of subcommands.
package main

import (
	"fmt"
	"os"
	"runtime"
)

// Version information - set via ldflags during build.
var (
	version   = "0.1.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var configPathFlag string

func main() {
	args := os.Args[1:]
	args, configPathFlag = extractGlobalFlags(args)

	if handled, exitCode := dispatchSubcommand(args); handled {
		os.Exit(exitCode)
	}

	printHelp()
	os.Exit(1)
}

// extractGlobalFlags pulls --config out of the argument list wherever it
// appears, leaving the subcommand and its own flags untouched.
func extractGlobalFlags(args []string) ([]string, string) {
	var out []string
	var configPath string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		default:
			out = append(out, args[i])
		}
	}
	return out, configPath
}

func dispatchSubcommand(args []string) (bool, int) {
	if len(args) == 0 {
		return false, 0
	}

	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return true, 0
	case "--help", "-h", "help":
		printHelp()
		return true, 0
	case "branch":
		return true, runCommand(runBranchCommand, args[1:])
	case "merge":
		return true, runCommand(runMergeCommand, args[1:])
	case "execute":
		return true, runCommand(runExecuteCommand, args[1:])
	case "serve":
		return true, runCommand(runServeCommand, args[1:])
	case "migrate":
		err := runMigrateCommand(args[1:])
		return true, exitCodeForError(err)
	}

	return false, 0
}

func runCommand(handler func([]string) error, args []string) int {
	if err := handler(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeForError(err)
	}
	return 0
}

func printVersion() {
	fmt.Printf("branchctl %s\n", version)
	if commit != "unknown" {
		fmt.Printf("  Commit:     %s\n", commit)
	}
	if buildDate != "unknown" {
		fmt.Printf("  Built:      %s\n", buildDate)
	}
	fmt.Printf("  Go version: %s\n", runtime.Version())
}

func printHelp() {
	fmt.Println("branchctl - multi-agent branching orchestrator")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  branchctl [--config PATH] COMMAND [ARGS]")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  branch create --source PATH|--parent ID [--name NAME] [--agent ID]...")
	fmt.Println("  branch list")
	fmt.Println("  branch status ID")
	fmt.Println("  branch tree ID")
	fmt.Println("  branch abort ID")
	fmt.Println("  merge request --branch ID [--strategy NAME] [--require-approval]")
	fmt.Println("  merge approve --by NAME ID")
	fmt.Println("  merge reject [--reason TEXT] ID")
	fmt.Println("  merge execute ID")
	fmt.Println("  merge commit ID")
	fmt.Println("  execute branch [--timeout DURATION] ID")
	fmt.Println("  execute tree [--timeout DURATION] ID")
	fmt.Println("  serve [--bind ADDR]")
	fmt.Println("  migrate")
	fmt.Println("  version")
	fmt.Println()
	fmt.Println("Configuration is loaded from ~/.branchctl/config.yaml, ./.branchctl/config.yaml,")
	fmt.Println("and BRANCHCTL_* environment variables, in that order of increasing precedence.")
}
