package registry

import (
	"time"

	"github.com/harrison/bookcheck/internal/models"
)

// Phase names of the built-in catalog.
const (
	PhaseCore       = "core"
	PhaseQuality    = "quality"
	PhaseAdditional = "additional"
)

// DefaultToolTimeout bounds each built-in tool when no timeout is configured.
const DefaultToolTimeout = 30 * time.Second

// Default returns the built-in catalog of toolchain subcommands, invoking
// binary (normally "ruchy"). Every tool is non-blocking so a failure in one
// never hides results from the others.
func Default(binary string, timeout time.Duration) *Registry {
	if binary == "" {
		binary = "ruchy"
	}
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	tool := func(name string, syntax bool, args ...string) models.ToolSpec {
		return models.ToolSpec{
			Name:         name,
			Command:      append([]string{binary}, args...),
			Timeout:      timeout,
			ChecksSyntax: syntax,
		}
	}

	testTool := tool("test", false, "test", models.FilePlaceholder)
	testTool.PassPatterns = []string{"No test functions found"}

	// The mcp server cannot run against a file; only its presence is checked.
	mcpTool := tool("mcp", false, "mcp", "--help")
	mcpTool.OmitFile = true
	mcpTool.PassPatterns = []string{"Usage"}

	return MustNew(
		Phase{Name: PhaseCore, Tools: []models.ToolSpec{
			tool("run", true, "run", models.FilePlaceholder),
			tool("compile", true, "compile", models.FilePlaceholder),
			tool("wasm", false, "wasm", models.FilePlaceholder),
		}},
		Phase{Name: PhaseQuality, Tools: []models.ToolSpec{
			tool("check", true, "check", models.FilePlaceholder),
			testTool,
			tool("fmt", false, "fmt", "--check", models.FilePlaceholder),
			tool("lint", false, "lint", models.FilePlaceholder),
			tool("provability", false, "provability", models.FilePlaceholder),
			tool("runtime", false, "runtime", models.FilePlaceholder),
			tool("score", false, "score", models.FilePlaceholder),
			tool("quality-gate", false, "quality-gate", models.FilePlaceholder),
			tool("optimize", false, "optimize", models.FilePlaceholder),
			tool("prove", false, "prove", models.FilePlaceholder),
			tool("doc", false, "doc", models.FilePlaceholder),
			tool("bench", false, "bench", "--iterations", "10", models.FilePlaceholder),
			tool("ast", true, "ast", models.FilePlaceholder),
			tool("coverage", false, "coverage", models.FilePlaceholder),
			mcpTool,
		}},
		Phase{Name: PhaseAdditional, Tools: []models.ToolSpec{
			tool("parse", true, "parse", models.FilePlaceholder),
			tool("property-tests", false, "property-tests", "--cases", "10", models.FilePlaceholder),
			tool("mutations", false, "mutations", models.FilePlaceholder),
			tool("fuzz", false, "fuzz", "--iterations", "100", models.FilePlaceholder),
		}},
	)
}
