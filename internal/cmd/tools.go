package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewToolsCommand creates the tools command
func NewToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalog grouped by phase",
		Long: `Print every tool that validation runs, phase by phase, in execution
order. --tool and --phase narrow the list the same way they narrow a run.`,
		Args: cobra.NoArgs,
		RunE: toolsCommand,
	}
}

func toolsCommand(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}

	out := a.stdout
	for i, phase := range reg.Phases() {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s (%d tools)\n", phase.Name, len(phase.Tools))
		for _, tool := range phase.Tools {
			var traits []string
			if tool.Blocking {
				traits = append(traits, "blocking")
			}
			if tool.ChecksSyntax {
				traits = append(traits, "syntax")
			}
			if tool.Stdin {
				traits = append(traits, "stdin")
			}
			line := fmt.Sprintf("  %-16s %-44s %6s", tool.Name, tool.CommandLine(), tool.Timeout)
			if len(traits) > 0 {
				line += "  [" + strings.Join(traits, ", ") + "]"
			}
			fmt.Fprintln(out, line)
		}
	}
	fmt.Fprintf(out, "\nTotal: %d tools in %d phases\n", reg.Len(), len(reg.Phases()))
	return nil
}
