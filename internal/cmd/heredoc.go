package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/bookcheck/internal/extract"
	"github.com/harrison/bookcheck/internal/models"
)

// defaultHeredocChapter is validated when no chapter is given.
const defaultHeredocChapter = "ch01"

// NewHeredocCommand creates the heredoc command
func NewHeredocCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "heredoc [chapter | script.sh]",
		Short: "Validate the example files written by a chapter's test script",
		Long: `Extract the example files that a chapter test script writes through
heredocs (cat > file.ruchy << 'EOF' ... EOF) and run each one.

The script is <scripts_dir>/<chapter>/test_all_<chapter>.sh; a path ending
in .sh is used as given. Only the "run" tool is used unless --tool or
--phase selects others.

Examples:
  bookcheck heredoc                    # test/ch01/test_all_ch01.sh
  bookcheck heredoc ch03
  bookcheck heredoc scripts/smoke.sh --tool run --tool check`,
		Args: cobra.MaximumNArgs(1),
		RunE: heredocCommand,
	}
}

// heredocScript resolves the chapter argument to a script path.
func heredocScript(scriptsDir, arg string) (script, selection string) {
	if arg == "" {
		arg = defaultHeredocChapter
	}
	if strings.HasSuffix(arg, ".sh") {
		return arg, strings.TrimSuffix(filepath.Base(arg), ".sh")
	}
	return filepath.Join(scriptsDir, arg, fmt.Sprintf("test_all_%s.sh", arg)), arg
}

func heredocCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	arg := ""
	if len(args) == 1 {
		arg = args[0]
	}
	script, selection := heredocScript(a.cfg.ScriptsDir, arg)
	if _, err := os.Stat(script); os.IsNotExist(err) {
		return a.missingInput("test script", script)
	}

	reg, err := a.registry("run")
	if err != nil {
		return err
	}

	extractor := extract.New(extract.Options{Language: a.cfg.Language, Extension: a.cfg.Extension})
	return a.validate(cmd.Context(), modeHeredoc, selection, reg, a.thresholds(a.cfg.Gates.Heredoc), func() ([]models.Example, error) {
		return extractor.ExtractFile(script)
	})
}
