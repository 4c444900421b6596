package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindBookRoot(t *testing.T) {
	t.Setenv(HomeEnv, "")

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "book.toml"), []byte("[book]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "src", "ch01")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindBookRoot(nested)
	if err != nil {
		t.Fatalf("FindBookRoot() error = %v", err)
	}
	if got != root {
		t.Errorf("FindBookRoot() = %q, want %q", got, root)
	}
}

func TestFindBookRoot_BookcheckDirWins(t *testing.T) {
	t.Setenv(HomeEnv, "")

	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "book.toml"), nil, 0644)
	inner := filepath.Join(root, "sub")
	if err := os.MkdirAll(filepath.Join(inner, ".bookcheck"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindBookRoot(inner)
	if err != nil {
		t.Fatal(err)
	}
	if got != inner {
		t.Errorf("FindBookRoot() = %q, want nearest marker %q", got, inner)
	}
}

func TestFindBookRoot_EnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	got, err := FindBookRoot(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if got != home {
		t.Errorf("FindBookRoot() = %q, want %q", got, home)
	}
}

func TestResolve(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ToolsFile = "/etc/bookcheck/tools.yaml"
	cfg.Resolve("/books/ruchy")

	if cfg.BookDir != filepath.Join("/books/ruchy", "src") {
		t.Errorf("BookDir = %q", cfg.BookDir)
	}
	if cfg.History.DBPath != filepath.Join("/books/ruchy", ".bookcheck", "history.db") {
		t.Errorf("History.DBPath = %q", cfg.History.DBPath)
	}
	if cfg.ToolsFile != "/etc/bookcheck/tools.yaml" {
		t.Errorf("absolute paths are kept, got %q", cfg.ToolsFile)
	}
	if cfg.MetricsFile != "" {
		t.Errorf("empty paths stay empty, got %q", cfg.MetricsFile)
	}
	if ConfigPath("/books/ruchy") != filepath.Join("/books/ruchy", ".bookcheck", "config.yaml") {
		t.Errorf("ConfigPath = %q", ConfigPath("/books/ruchy"))
	}
}
