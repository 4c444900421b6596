package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/bookcheck/internal/config"
	"github.com/harrison/bookcheck/internal/disposition"
	"github.com/harrison/bookcheck/internal/display"
	"github.com/harrison/bookcheck/internal/executor"
	"github.com/harrison/bookcheck/internal/gate"
	"github.com/harrison/bookcheck/internal/gitinfo"
	"github.com/harrison/bookcheck/internal/history"
	"github.com/harrison/bookcheck/internal/logger"
	"github.com/harrison/bookcheck/internal/metrics"
	"github.com/harrison/bookcheck/internal/models"
	"github.com/harrison/bookcheck/internal/registry"
	"github.com/harrison/bookcheck/internal/report"
)

// versionProbeTimeout bounds the toolchain --version call.
const versionProbeTimeout = 10 * time.Second

// app is the resolved state shared by every subcommand.
type app struct {
	cfg       *config.Config
	root      string
	stdout    io.Writer
	stderr    io.Writer
	color     bool
	verbose   bool
	tools     []string
	phases    []string
	noHistory bool
	console   *logger.ConsoleLogger
}

// newApp loads configuration for cmd: book root detection, config file,
// BOOKCHECK_* environment, then command-line flags.
func newApp(cmd *cobra.Command) (*app, error) {
	flags := cmd.Flags()

	root, err := config.FindBookRoot(".")
	if err != nil {
		return nil, err
	}

	configPath, _ := flags.GetString("config")
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
	} else {
		configPath = config.ConfigPath(root)
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var maxConcurrencyPtr *int
	if flags.Changed("max-concurrency") {
		v, _ := flags.GetInt("max-concurrency")
		maxConcurrencyPtr = &v
	}
	var timeoutPtr *time.Duration
	if flags.Changed("timeout") {
		v, _ := flags.GetDuration("timeout")
		timeoutPtr = &v
	}
	var logLevelPtr *string
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		logLevelPtr = &v
	}
	var metricsPtr *string
	if flags.Changed("metrics-file") {
		v, _ := flags.GetString("metrics-file")
		metricsPtr = &v
	}
	cfg.MergeWithFlags(maxConcurrencyPtr, timeoutPtr, logLevelPtr, metricsPtr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Resolve(root)

	noColor, _ := flags.GetBool("no-color")
	verbose, _ := flags.GetBool("verbose")
	tools, _ := flags.GetStringSlice("tool")
	phases, _ := flags.GetStringSlice("phase")
	noHistory, _ := flags.GetBool("no-history")

	a := &app{
		cfg:       cfg,
		root:      root,
		stdout:    cmd.OutOrStdout(),
		stderr:    cmd.ErrOrStderr(),
		color:     !noColor && colorWriter(cmd.OutOrStdout()),
		verbose:   verbose,
		tools:     tools,
		phases:    phases,
		noHistory: noHistory,
	}
	a.console = logger.NewConsoleLogger(a.stderr, cfg.LogLevel)
	a.console.SetColor(!noColor && colorWriter(a.stderr))
	return a, nil
}

// colorWriter reports whether w is a terminal that accepts color.
func colorWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// registry returns the tool catalog (configured file or built-in) narrowed by
// --tool and --phase. defaultTools applies when neither flag is given.
func (a *app) registry(defaultTools ...string) (*registry.Registry, error) {
	var reg *registry.Registry
	if a.cfg.ToolsFile != "" {
		loaded, err := registry.Load(a.cfg.ToolsFile, a.cfg.DefaultTimeout)
		if err != nil {
			return nil, err
		}
		reg = loaded
	} else {
		reg = registry.Default(a.cfg.ToolBinary, a.cfg.DefaultTimeout)
	}

	tools := a.tools
	if len(tools) == 0 && len(a.phases) == 0 {
		tools = defaultTools
	}
	return reg.Select(tools, a.phases)
}

func (a *app) markers() disposition.Markers {
	return disposition.Markers{
		HardError:      a.cfg.Markers.HardError,
		NotImplemented: a.cfg.Markers.NotImplemented,
		ExpectedError:  a.cfg.Markers.ExpectedError,
	}
}

func (a *app) thresholds(g config.GateConfig) gate.Thresholds {
	return gate.Thresholds{
		MinPassRate:        g.MinPassRate,
		MinOverallCoverage: g.MinOverallCoverage,
		MaxTotalDurationMs: g.MaxTotalDurationMs,
	}
}

// runLogger combines the console with a structured run log. A run log that
// cannot be created is reported and skipped.
func (a *app) runLogger(runID string) (executor.Logger, func()) {
	runLog, err := logger.NewRunLogger(a.cfg.LogDir, runID)
	if err != nil {
		a.console.LogWarn(fmt.Sprintf("run log disabled: %v", err))
		return a.console, func() {}
	}
	a.console.LogDebug(fmt.Sprintf("run log: %s", runLog.Path()))
	return logger.NewMultiLogger(a.console, runLog), func() { runLog.Close() }
}

// openHistory returns nil when history is disabled or unavailable.
func (a *app) openHistory() *history.Store {
	if !a.cfg.History.Enabled || a.noHistory {
		return nil
	}
	store, err := history.NewStore(a.cfg.History.DBPath)
	if err != nil {
		a.console.LogWarn(fmt.Sprintf("run history disabled: %v", err))
		return nil
	}
	return store
}

// artifactPath keeps the primary run report at report_path and writes the
// other modes next to it.
func (a *app) artifactPath(mode string) string {
	if mode == modeRun {
		return a.cfg.ReportPath
	}
	return filepath.Join(filepath.Dir(a.cfg.ReportPath), mode+"-report.json")
}

// previousFromArtifact reads the last report artifact when run history is off.
// It only counts as the previous run when mode and selection match.
func (a *app) previousFromArtifact(mode, selection string) []models.ToolOutcome {
	rep, err := report.ReadArtifact(a.artifactPath(mode))
	if err != nil {
		if !os.IsNotExist(err) {
			a.console.LogDebug(fmt.Sprintf("previous report unreadable: %v", err))
		}
		return nil
	}
	if rep.Mode != mode || rep.Selection != selection {
		return nil
	}
	return rep.Outcomes()
}

func (a *app) missingInput(what, path string) error {
	display.WarnMissingInput(what, path, buildRemediation).Display(a.stderr, a.color)
	return &MissingInputError{What: what, Path: path, Remediation: buildRemediation}
}

// validate runs the tool pipeline over the extracted examples and finishes
// the report.
func (a *app) validate(ctx context.Context, mode, selection string, reg *registry.Registry, thresholds gate.Thresholds, extract executor.ExtractFunc) error {
	runID := uuid.NewString()
	log, closeLog := a.runLogger(runID)
	defer closeLog()

	version, err := executor.ProbeVersion(ctx, a.cfg.VersionCommand, versionProbeTimeout)
	if err != nil {
		a.console.LogDebug(fmt.Sprintf("toolchain version unavailable: %v", err))
	}

	store := a.openHistory()
	if store != nil {
		defer store.Close()
	}
	var previous []models.ToolOutcome
	if store != nil {
		previous, err = store.PreviousOutcomes(ctx, mode, selection)
		if err != nil {
			a.console.LogWarn(fmt.Sprintf("previous run unavailable: %v", err))
		}
	} else {
		previous = a.previousFromArtifact(mode, selection)
	}

	runDir, err := os.MkdirTemp("", "bookcheck-run-")
	if err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	defer os.RemoveAll(runDir)

	classifier := disposition.New(a.markers())
	runner := executor.NewProcessRunner(runDir,
		executor.WithOutputLimit(a.cfg.OutputLimit),
		executor.WithExtension(a.cfg.Extension),
		executor.WithMarkers(classifier),
	)
	pool := executor.NewPool(runner, classifier, a.cfg.MaxConcurrency)
	pipeline := executor.NewPipeline(pool, reg, log)

	result, err := pipeline.Run(ctx, executor.RunConfig{
		Mode:             mode,
		Selection:        selection,
		RunID:            runID,
		ToolchainVersion: version,
		BookRevision:     gitinfo.Describe(a.root),
		Thresholds:       thresholds,
		Previous:         previous,
	}, extract)
	if err != nil {
		return err
	}
	return a.finish(ctx, result.Report, store)
}

// finish writes the artifact, records history and metrics, renders the
// report and turns a failing verdict into ErrGateFailed.
func (a *app) finish(ctx context.Context, rep models.ValidationReport, store *history.Store) error {
	path := a.artifactPath(rep.Mode)
	if err := report.WriteArtifact(ctx, path, rep); err != nil {
		return err
	}
	a.console.LogDebug(fmt.Sprintf("report written to %s", path))

	if store != nil {
		if _, err := store.RecordRun(ctx, rep); err != nil {
			a.console.LogWarn(fmt.Sprintf("failed to record run history: %v", err))
		}
	}

	if a.cfg.MetricsFile != "" {
		m := metrics.New()
		m.ObserveReport(rep)
		if err := m.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.console.LogWarn(err.Error())
		}
	}

	renderer := report.NewRenderer(a.stdout, a.color)
	renderer.SetVerbose(a.verbose)
	if err := renderer.Render(rep); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if !rep.GatePassed {
		return executor.ErrGateFailed
	}
	return nil
}
