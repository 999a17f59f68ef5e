package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// newVersionCmd creates the Cobra command for displaying the application version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of discover",
		Long:  `All software has versions. This is discover's.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "discover version %s (%s %s/%s)\n",
				rootCmd.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
