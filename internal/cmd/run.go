package cmd

import (
	"github.com/spf13/cobra"

	"github.com/harrison/bookcheck/internal/display"
	"github.com/harrison/bookcheck/internal/extract"
	"github.com/harrison/bookcheck/internal/models"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run [chapter]",
		Short: "Validate the examples in the book's chapters",
		Long: `Extract every tagged code block from the markdown chapters under book_dir
and run each one through the tool catalog.

The optional chapter argument selects chapter files whose name starts with,
or whose path contains, the given text.

Examples:
  bookcheck run                        # every chapter
  bookcheck run ch04                   # chapters matching "ch04"
  bookcheck run --phase core           # only the core tools
  bookcheck run --tool run --tool lint # two tools
  bookcheck run -v                     # include tool output for failures`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommand,
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	selection := ""
	if len(args) == 1 {
		selection = args[0]
	}

	reg, err := a.registry()
	if err != nil {
		return err
	}

	extractor := extract.New(extract.Options{Language: a.cfg.Language, Extension: a.cfg.Extension})
	return a.validate(cmd.Context(), modeRun, selection, reg, a.thresholds(a.cfg.Gates.Run), func() ([]models.Example, error) {
		var progress *display.ProgressIndicator
		examples, err := extractor.ExtractDir(a.cfg.BookDir, selection, func(path string, index, total int) {
			if progress == nil {
				progress = display.NewProgressIndicator(a.stderr, total, a.color)
				progress.Start()
			}
			progress.Step(path)
		})
		if err != nil {
			return nil, err
		}
		progress.Complete(len(examples))
		return examples, nil
	})
}
