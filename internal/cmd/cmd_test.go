package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/bookcheck/internal/config"
	"github.com/harrison/bookcheck/internal/executor"
	"github.com/harrison/bookcheck/internal/extract"
	"github.com/harrison/bookcheck/internal/gate"
	"github.com/harrison/bookcheck/internal/models"
	"github.com/harrison/bookcheck/internal/report"
)

// fakeTool fails on any example containing BOOM.
const fakeTool = `#!/bin/sh
if grep -q BOOM "$1"; then
  echo "Error: boom at line 1" >&2
  exit 1
fi
echo ok
`

const passingChapter = "# Chapter 1\n\n" +
	"<!-- DOC_STATUS_START -->\nAll examples working\n<!-- DOC_STATUS_END -->\n\n" +
	"```ruchy\n// Status: ✅ Working\nprintln(\"one\")\n```\n\n" +
	"```ruchy\n// Status: ✅ Working\nprintln(\"two\")\n```\n"

const failingChapter = "# Chapter 2\n\n" +
	"```ruchy\n// Status: ✅ Working\nprintln(\"fine\")\n```\n\n" +
	"```ruchy\n// Status: ✅ Working\nBOOM\n```\n"

// newBook lays out a book root with a config, a one-tool catalog and the
// given chapters, and points BOOKCHECK_HOME at it.
func newBook(t *testing.T, chapters map[string]string) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv(config.HomeEnv, root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, ".bookcheck"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))

	tool := filepath.Join(root, "fake-ruchy.sh")
	require.NoError(t, os.WriteFile(tool, []byte(fakeTool), 0o755))

	catalog := fmt.Sprintf(`phases:
  - name: core
    tools:
      - name: run
        command: [%q, "{file}"]
        checks_syntax: true
`, tool)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".bookcheck", "tools.yaml"), []byte(catalog), 0o644))

	cfg := `language: ruchy
extension: .ruchy
tools_file: .bookcheck/tools.yaml
max_concurrency: 2
log_level: warn
version_command: ["echo", "ruchy 9.9.9"]
`
	require.NoError(t, os.WriteFile(config.ConfigPath(root), []byte(cfg), 0o644))

	for name, content := range chapters {
		require.NoError(t, os.WriteFile(filepath.Join(root, "src", name), []byte(content), 0o644))
	}
	return root
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append(args, "--no-color"))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRunCommand_Passing(t *testing.T) {
	root := newBook(t, map[string]string{"ch01-intro.md": passingChapter})

	stdout, _, err := execute(t, "run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "All gates passed")

	rep, err := report.ReadArtifact(filepath.Join(root, "test", "extracted-examples", "validation-report.json"))
	require.NoError(t, err)
	assert.Equal(t, "run", rep.Mode)
	assert.Equal(t, 2, rep.Totals.Passed)
	assert.Equal(t, 0, rep.Totals.Failed)
	assert.Equal(t, 100.0, rep.PassRate)
	assert.Equal(t, "ruchy 9.9.9", rep.ToolchainVersion)
	assert.True(t, rep.GatePassed)

	_, err = os.Stat(filepath.Join(root, ".bookcheck", "logs", "latest.log"))
	assert.NoError(t, err, "run log should be linked as latest.log")
}

func TestRunCommand_GateFails(t *testing.T) {
	root := newBook(t, map[string]string{
		"ch01-intro.md": passingChapter,
		"ch02-vars.md":  failingChapter,
	})

	stdout, _, err := execute(t, "run", "ch02")
	require.ErrorIs(t, err, executor.ErrGateFailed)
	assert.Contains(t, stdout, "Quality gate failed")
	assert.Contains(t, stdout, "pass rate 50.00% is below target 95.00%")

	rep, err := report.ReadArtifact(filepath.Join(root, "test", "extracted-examples", "validation-report.json"))
	require.NoError(t, err)
	assert.Equal(t, "ch02", rep.Selection)
	assert.Equal(t, 1, rep.Totals.Passed)
	assert.Equal(t, 1, rep.Totals.Failed)
	assert.False(t, rep.GatePassed)
	require.NotEmpty(t, rep.Violations)
	assert.Equal(t, gate.ThresholdPassRate, rep.Violations[0].Threshold)
}

func TestRunCommand_NoMatchingChapters(t *testing.T) {
	newBook(t, map[string]string{"ch01-intro.md": passingChapter})

	_, _, err := execute(t, "run", "ch99")
	require.Error(t, err)
	assert.True(t, errors.Is(err, extract.ErrNoSources), "got %v", err)
}

func TestRunCommand_UnknownTool(t *testing.T) {
	newBook(t, map[string]string{"ch01-intro.md": passingChapter})

	_, _, err := execute(t, "run", "--tool", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown tool "nope"`)
}

func TestHeredocCommand(t *testing.T) {
	root := newBook(t, nil)
	script := "#!/bin/bash\n" +
		"echo \"Test 1: greeting\"\n" +
		"cat > /tmp/greet.ruchy << 'EOF'\n" +
		"// Status: ✅ Working\nprintln(\"hello\")\nEOF\n" +
		"cat > /tmp/notes.txt << 'EOF'\nnot an example\nEOF\n"
	dir := filepath.Join(root, "test", "ch03")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test_all_ch03.sh"), []byte(script), 0o755))

	stdout, _, err := execute(t, "heredoc", "ch03")
	require.NoError(t, err)
	assert.Contains(t, stdout, "All gates passed")

	rep, err := report.ReadArtifact(filepath.Join(root, "test", "extracted-examples", "heredoc-report.json"))
	require.NoError(t, err)
	assert.Equal(t, "heredoc", rep.Mode)
	assert.Equal(t, "ch03", rep.Selection)
	assert.Equal(t, 1, rep.Totals.Passed)
}

func TestHeredocCommand_MissingScript(t *testing.T) {
	newBook(t, nil)

	_, stderr, err := execute(t, "heredoc", "ch07")
	require.Error(t, err)
	assert.True(t, IsMissingInput(err))
	assert.Contains(t, err.Error(), "test_all_ch07.sh")
	assert.Contains(t, stderr, "test script not found")
	assert.Contains(t, stderr, buildRemediation)
}

func TestHeredocScript(t *testing.T) {
	tests := []struct {
		name          string
		arg           string
		wantScript    string
		wantSelection string
	}{
		{"default chapter", "", filepath.Join("test", "ch01", "test_all_ch01.sh"), "ch01"},
		{"named chapter", "ch05", filepath.Join("test", "ch05", "test_all_ch05.sh"), "ch05"},
		{"explicit script", "scripts/smoke.sh", "scripts/smoke.sh", "smoke"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, selection := heredocScript("test", tt.arg)
			assert.Equal(t, tt.wantScript, script)
			assert.Equal(t, tt.wantSelection, selection)
		})
	}
}

// sampleLCOV: lines 80%, functions 80%, branches 50% -> 74 overall.
const sampleLCOV = `TN:
SF:src/lib.rs
FNF:10
FNH:8
BRF:10
BRH:5
LF:100
LH:80
end_of_record
`

func TestCoverageCommand(t *testing.T) {
	tests := []struct {
		name      string
		threshold string
		wantErr   bool
	}{
		{"below default threshold", "", true},
		{"meets lowered threshold", "70", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newBook(t, nil)
			require.NoError(t, os.WriteFile(filepath.Join(root, "coverage.lcov"), []byte(sampleLCOV), 0o644))
			if tt.threshold != "" {
				t.Setenv("BOOKCHECK_GATES__COVERAGE__MIN_OVERALL_COVERAGE", tt.threshold)
			}

			stdout, _, err := execute(t, "coverage")
			assert.Contains(t, stdout, "Overall:")
			if tt.wantErr {
				require.ErrorIs(t, err, executor.ErrGateFailed)
			} else {
				require.NoError(t, err)
			}

			rep, err := report.ReadArtifact(filepath.Join(root, "test", "extracted-examples", "coverage-report.json"))
			require.NoError(t, err)
			require.NotNil(t, rep.Coverage)
			assert.InDelta(t, 74.0, rep.Coverage.Overall, 0.001)
			assert.Equal(t, !tt.wantErr, rep.GatePassed)
		})
	}
}

func TestCoverageCommand_MissingReport(t *testing.T) {
	newBook(t, nil)

	_, _, err := execute(t, "coverage", "build/lcov.info")
	require.Error(t, err)
	assert.True(t, IsMissingInput(err))
}

func TestStatusCommand(t *testing.T) {
	unannotated := "# Chapter 3\n\n```ruchy\nprintln(\"no marker\")\n```\n"
	newBook(t, map[string]string{
		"ch01-intro.md": passingChapter,
		"ch03-loops.md": unannotated,
	})

	_, stderr, err := execute(t, "status")
	require.ErrorIs(t, err, executor.ErrGateFailed)
	assert.Contains(t, stderr, "has no status annotation")

	_, _, err = execute(t, "status", "ch01")
	assert.NoError(t, err)
}

func TestStatusReport(t *testing.T) {
	missing := models.Example{SourceFile: "src/ch02.md", StartLine: 14, Ordinal: 2, DeclaredStatus: models.DispositionUnannotated}
	statuses := []extract.FileStatus{
		{File: "src/ch01.md", HasHeader: true, Examples: 2, Annotated: 2},
		{File: "src/ch02.md", HasHeader: true, Examples: 2, Annotated: 1, Unannotated: []models.Example{missing}},
		{File: "src/ch03.md", HasHeader: false, Examples: 0},
	}

	rep := statusReport(statuses, "", gate.Thresholds{MinPassRate: 50})
	assert.Equal(t, "status", rep.Mode)
	assert.Equal(t, 3, rep.Totals.Passed)
	assert.Equal(t, 1, rep.Totals.Failed)
	assert.Equal(t, 75.0, rep.PassRate)
	assert.True(t, rep.GatePassed, "chapters without examples need no header")

	var failed []models.ToolOutcome
	for _, ex := range rep.Examples {
		for _, o := range ex.Outcomes {
			if o.Kind == models.OutcomeFail {
				failed = append(failed, o)
			}
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, "src/ch02.md#2", failed[0].ExampleKey)
	assert.Equal(t, missingStatusMsg, failed[0].RootCause)
}

func TestStatusReport_MissingHeader(t *testing.T) {
	statuses := []extract.FileStatus{
		{File: "src/ch01.md", HasHeader: false, Examples: 1, Annotated: 1},
	}

	rep := statusReport(statuses, "ch01", gate.Thresholds{MinPassRate: 100})
	assert.Equal(t, 100.0, rep.PassRate)
	assert.False(t, rep.GatePassed)
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, headerViolation, rep.Violations[0].Threshold)
}

func TestToolsCommand(t *testing.T) {
	newBook(t, nil)

	stdout, _, err := execute(t, "tools")
	require.NoError(t, err)
	assert.Contains(t, stdout, "core (1 tools)")
	assert.Contains(t, stdout, "[syntax]")
	assert.Contains(t, stdout, "Total: 1 tools in 1 phases")
}

func TestHistoryCommand(t *testing.T) {
	newBook(t, map[string]string{"ch01-intro.md": passingChapter})

	stdout, _, err := execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs recorded yet")

	_, _, err = execute(t, "run")
	require.NoError(t, err)
	_, _, err = execute(t, "run", "ch01")
	require.NoError(t, err)

	stdout, _, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "STARTED")
	assert.Contains(t, stdout, "ch01")

	stdout, _, err = execute(t, "history", "--mode", "coverage")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs recorded yet")

	_, _, err = execute(t, "history", "--prune", "1")
	require.NoError(t, err)
}

func TestRunCommand_NoHistory(t *testing.T) {
	root := newBook(t, map[string]string{"ch01-intro.md": passingChapter})

	_, _, err := execute(t, "run", "--no-history")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, ".bookcheck", "history.db"))
	assert.True(t, os.IsNotExist(err), "history database should not be created")
}

func TestRunCommand_NoHistoryComparesWithLastReport(t *testing.T) {
	root := newBook(t, map[string]string{"ch01-intro.md": passingChapter})

	_, _, err := execute(t, "run", "--no-history")
	require.NoError(t, err)

	broken := strings.Replace(passingChapter, `println("two")`, "BOOM", 1)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "ch01-intro.md"), []byte(broken), 0o644))

	stdout, _, err := execute(t, "run", "--no-history")
	require.ErrorIs(t, err, executor.ErrGateFailed)
	assert.Contains(t, stdout, "Changes Since Previous Run")
	assert.Contains(t, stdout, "1 of 1 changes are regressions")
	assert.Contains(t, stdout, "REGRESSION")

	rep, err := report.ReadArtifact(filepath.Join(root, "test", "extracted-examples", "validation-report.json"))
	require.NoError(t, err)
	require.Len(t, rep.Changes, 1)
	assert.Equal(t, models.ChangeRegression, rep.Changes[0].Kind)
	assert.Len(t, report.Regressions(rep.Changes), 1)
}

func TestRunCommand_LastReportIgnoredForOtherSelection(t *testing.T) {
	root := newBook(t, map[string]string{"ch01-intro.md": passingChapter})

	_, _, err := execute(t, "run", "--no-history")
	require.NoError(t, err)

	broken := strings.Replace(passingChapter, `println("two")`, "BOOM", 1)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "ch01-intro.md"), []byte(broken), 0o644))

	stdout, _, err := execute(t, "run", "ch01", "--no-history")
	require.ErrorIs(t, err, executor.ErrGateFailed)
	assert.NotContains(t, stdout, "Changes Since Previous Run")
}

func TestMissingInputError(t *testing.T) {
	err := fmt.Errorf("coverage: %w", &MissingInputError{
		What:        "coverage report",
		Path:        "coverage.lcov",
		Remediation: buildRemediation,
	})
	assert.True(t, IsMissingInput(err))
	assert.Equal(t, "coverage: coverage report not found: coverage.lcov (Run the build step first (make test))", err.Error())
	assert.False(t, IsMissingInput(errors.New("other")))
}
