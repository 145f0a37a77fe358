package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/systmms/rolecreds/internal/resolve"
)

func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "rolecreds %s\n", version)
			_, _ = fmt.Fprintf(out, "  commit:     %s\n", commit)
			_, _ = fmt.Fprintf(out, "  built:      %s\n", date)
			_, _ = fmt.Fprintf(out, "  go:         %s\n", runtime.Version())
			_, _ = fmt.Fprintf(out, "  dev source: %t\n", resolve.DevSourceCompiledIn())
			return nil
		},
	}
}
