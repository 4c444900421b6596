package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides book root detection.
const HomeEnv = "BOOKCHECK_HOME"

// FindBookRoot returns the directory bookcheck treats as the book root.
// Priority order:
//  1. BOOKCHECK_HOME environment variable (if set)
//  2. The nearest directory at or above start holding a .bookcheck
//     directory or an mdBook book.toml
//  3. start itself (fallback)
func FindBookRoot(start string) (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return filepath.Abs(home)
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	current := abs
	for {
		if info, err := os.Stat(filepath.Join(current, ".bookcheck")); err == nil && info.IsDir() {
			return current, nil
		}
		if _, err := os.Stat(filepath.Join(current, "book.toml")); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return abs, nil
}

// ConfigPath returns the default config file location under root.
func ConfigPath(root string) string {
	return filepath.Join(root, ".bookcheck", "config.yaml")
}

// Resolve makes every relative path in the configuration relative to root.
func (c *Config) Resolve(root string) {
	for _, p := range []*string{&c.BookDir, &c.ScriptsDir, &c.ReportPath, &c.ToolsFile, &c.LogDir, &c.History.DBPath, &c.MetricsFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}
