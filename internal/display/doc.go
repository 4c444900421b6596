// Package display provides terminal output helpers for user-facing
// warnings and chapter scanning progress.
//
// # Warning Messages
//
//	warning := display.Warning{
//	    Title:      "Coverage report not found",
//	    Files:      []string{"coverage.lcov"},
//	    Suggestion: "Run the build step first (make test)",
//	}
//	warning.Display(os.Stderr, true)
//
// # Progress Indicators
//
//	progress := display.NewProgressIndicator(os.Stderr, len(chapters), true)
//	progress.Start()
//	for _, ch := range chapters {
//	    progress.Step(ch)
//	}
//	progress.Complete(examples)
//
// Every helper takes an io.Writer and an explicit color switch; the caller
// decides whether the destination is a terminal.
package display
