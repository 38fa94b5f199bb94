package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("FME_JOURNAL", "")
	t.Setenv("FME_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	cmd := newCommand()
	cmd.Writer = io.Discard
	cmd.ErrWriter = io.Discard
	return cmd.Run(context.Background(), append([]string{"fme"}, args...))
}

func TestOperationRequiresDir(t *testing.T) {
	for _, args := range [][]string{
		{"add", "x"},
		{"remove", "x"},
		{"replace", "a", "b"},
		{"clear"},
		{"remove-aliases"},
		{"remove-id"},
	} {
		err := runCLI(t, args...)
		if err == nil || !strings.Contains(err.Error(), `"dir"`) {
			t.Errorf("%s: err = %v, want missing dir flag", args[0], err)
		}
	}
}

func TestOperationWithDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	if err := os.WriteFile(path, []byte("---\ntags:\n  - a\n---\nbody"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runCLI(t, "add", "--dir", dir, "b"); err != nil {
		t.Fatalf("add: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "---\ntags:\n  - a\n  - b\n---\nbody" {
		t.Errorf("a.md = %q", got)
	}
}

func TestOperationBadArity(t *testing.T) {
	if err := runCLI(t, "replace", "--dir", t.TempDir(), "only-one"); err == nil {
		t.Fatal("expected arity error")
	}
}
