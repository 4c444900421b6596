package executor

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/harrison/bookcheck/internal/models"
)

// DefaultKillGrace is how long Wait keeps draining output after a timed-out
// process is killed, before its pipes are closed forcibly.
const DefaultKillGrace = 2 * time.Second

// ToolRunner runs one tool against one example. Implementations never return
// errors: launch failures and timeouts are reported through the outcome's
// exit-code sentinels.
type ToolRunner interface {
	Run(ctx context.Context, example models.Example, tool models.ToolSpec) models.ToolOutcome
}

// MarkerSource supplies the output markers to scan for when running tool.
type MarkerSource interface {
	OutputMarkers(tool models.ToolSpec) []string
}

// ProcessRunner materializes each example into a scratch file under a run
// directory and executes the tool as a subprocess.
type ProcessRunner struct {
	runDir      string
	extension   string
	outputLimit int
	killGrace   time.Duration
	markers     MarkerSource
}

// RunnerOption configures a ProcessRunner.
type RunnerOption func(*ProcessRunner)

// WithOutputLimit sets the per-stream capture budget.
func WithOutputLimit(n int) RunnerOption {
	return func(r *ProcessRunner) { r.outputLimit = n }
}

// WithExtension sets the extension used for examples without a file name.
func WithExtension(ext string) RunnerOption {
	return func(r *ProcessRunner) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.extension = ext
	}
}

// WithMarkers sets the marker source (normally the disposition classifier).
func WithMarkers(m MarkerSource) RunnerOption {
	return func(r *ProcessRunner) { r.markers = m }
}

// WithKillGrace overrides DefaultKillGrace.
func WithKillGrace(d time.Duration) RunnerOption {
	return func(r *ProcessRunner) { r.killGrace = d }
}

// NewProcessRunner creates a runner writing scratch files below runDir.
func NewProcessRunner(runDir string, opts ...RunnerOption) *ProcessRunner {
	r := &ProcessRunner{
		runDir:      runDir,
		extension:   ".ruchy",
		outputLimit: DefaultOutputLimit,
		killGrace:   DefaultKillGrace,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizePathPart(s string) string {
	s = unsafePathChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-.")
}

// ScratchDir returns the directory used for (example, tool). It is stable for
// the lifetime of the run directory so tools that cache by path can do so.
// A short hash of the example key keeps keys that sanitize alike apart.
func (r *ProcessRunner) ScratchDir(example models.Example, tool models.ToolSpec) string {
	key := example.Key()
	sum := sha256.Sum256([]byte(key))
	part := fmt.Sprintf("%s-%s", sanitizePathPart(key), hex.EncodeToString(sum[:4]))
	return filepath.Join(r.runDir, part, sanitizePathPart(tool.Name))
}

func (r *ProcessRunner) fileName(example models.Example) string {
	if example.FileName != "" {
		return filepath.Base(example.FileName)
	}
	return fmt.Sprintf("example_%d%s", example.Ordinal, r.extension)
}

// Run implements ToolRunner. The scratch directory is removed on every path,
// including when the tool cannot be started.
func (r *ProcessRunner) Run(ctx context.Context, example models.Example, tool models.ToolSpec) models.ToolOutcome {
	outcome := models.ToolOutcome{
		ExampleKey: example.Key(),
		ToolName:   tool.Name,
	}

	dir := r.ScratchDir(example, tool)
	defer os.RemoveAll(dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return launchFailure(outcome, fmt.Errorf("failed to create scratch dir: %w", err))
	}
	path := filepath.Join(dir, r.fileName(example))
	if err := os.WriteFile(path, []byte(example.Code+"\n"), 0o644); err != nil {
		return launchFailure(outcome, fmt.Errorf("failed to write example: %w", err))
	}
	if len(tool.Command) == 0 {
		return launchFailure(outcome, errors.New("tool has no command"))
	}

	runCtx, cancel := context.WithTimeout(ctx, tool.Timeout)
	defer cancel()

	name, args := tool.Invocation(path)
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = r.killGrace
	killProcessGroup(cmd)

	var markers []string
	if r.markers != nil {
		markers = r.markers.OutputMarkers(tool)
	}
	stdout := newBoundedCapture(r.outputLimit, markers)
	stderr := newBoundedCapture(r.outputLimit, markers)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if tool.Stdin {
		cmd.Stdin = strings.NewReader(example.Code + "\n")
	}

	start := time.Now()
	err := cmd.Run()
	outcome.DurationMs = time.Since(start).Milliseconds()

	outcome.Stdout = stdout.String()
	outcome.Stderr = stderr.String()
	outcome.Truncated = stdout.Truncated() || stderr.Truncated()
	outcome.Markers = mergeMarkers(stdout.Markers(), stderr.Markers())

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		outcome.ExitCode = 0
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		outcome.ExitCode = models.ExitTimedOut
	case errors.As(err, &exitErr):
		outcome.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil:
		// Exited, but a grandchild kept the output pipes open.
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	default:
		return launchFailure(outcome, err)
	}
	return outcome
}

func launchFailure(outcome models.ToolOutcome, err error) models.ToolOutcome {
	outcome.ExitCode = models.ExitLaunchFailed
	outcome.LaunchError = err.Error()
	return outcome
}

// ProbeVersion runs command (e.g. ruchy --version) and returns the first line
// of its output.
func ProbeVersion(ctx context.Context, command []string, timeout time.Duration) (string, error) {
	if len(command) == 0 {
		return "", errors.New("version command is empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, command[0], command[1:]...).Output()
	if err != nil {
		return "", fmt.Errorf("failed to run %s: %w", strings.Join(command, " "), err)
	}
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("%s printed nothing", strings.Join(command, " "))
}
