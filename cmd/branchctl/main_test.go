package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = old
	out, _ := io.ReadAll(r)
	return string(out)
}

func withTempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	project := t.TempDir()
	if err := os.Chdir(project); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })
	return home
}

func TestDispatchSubcommandVersion(t *testing.T) {
	out := captureStdout(t, func() {
		handled, code := dispatchSubcommand([]string{"version"})
		if !handled {
			t.Fatal("version should be handled")
		}
		if code != 0 {
			t.Fatalf("expected code 0, got %d", code)
		}
	})
	if out == "" {
		t.Fatal("expected version output")
	}
}

func TestDispatchSubcommandHelp(t *testing.T) {
	out := captureStdout(t, func() {
		handled, code := dispatchSubcommand([]string{"--help"})
		if !handled {
			t.Fatal("--help should be handled")
		}
		if code != 0 {
			t.Fatalf("expected code 0, got %d", code)
		}
	})
	if out == "" {
		t.Fatal("expected help output")
	}
}

func TestDispatchSubcommandUnknown(t *testing.T) {
	handled, _ := dispatchSubcommand([]string{"nonsense"})
	if handled {
		t.Fatal("unknown subcommand should not be handled")
	}
}

func TestDispatchSubcommandEmpty(t *testing.T) {
	handled, code := dispatchSubcommand(nil)
	if handled || code != 0 {
		t.Fatalf("empty args should be unhandled with code 0, got handled=%v code=%d", handled, code)
	}
}

func TestDispatchSubcommandMigrate(t *testing.T) {
	withTempHome(t)

	out := captureStdout(t, func() {
		handled, code := dispatchSubcommand([]string{"migrate"})
		if !handled {
			t.Fatal("migrate should be handled")
		}
		if code != 0 {
			t.Fatalf("migrate should succeed, got code %d", code)
		}
	})
	if out == "" {
		t.Fatal("expected schema version output")
	}
}

func TestExtractGlobalFlags(t *testing.T) {
	rest, cfgPath := extractGlobalFlags([]string{"--config", "/tmp/x.yaml", "branch", "list"})
	if cfgPath != "/tmp/x.yaml" {
		t.Fatalf("expected config path extracted, got %q", cfgPath)
	}
	if len(rest) != 2 || rest[0] != "branch" || rest[1] != "list" {
		t.Fatalf("unexpected remaining args: %v", rest)
	}
}

func TestDispatchSubcommandBranchListSucceedsOnEmptyStore(t *testing.T) {
	home := withTempHome(t)
	cfgDir := filepath.Join(home, ".branchctl")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	handled, code := dispatchSubcommand([]string{"branch", "list"})
	if !handled {
		t.Fatal("branch list should be handled")
	}
	if code != 0 {
		t.Fatalf("expected empty branch list to succeed, got code %d", code)
	}
}
