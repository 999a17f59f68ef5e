package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"discover/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfigError indicates invalid or unreadable configuration.
	ExitCodeConfigError = 2
)

// rootCmd represents the base command for the discover application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "discover",
	Short: "Register Docker container services in etcd",
	Long: `discover watches the Docker containers on this host and publishes the
services they declare (via the DISCOVER environment variable or label) to etcd,
under /<prefix>/<realm>/<service>/<host>-<port>, with leases that are renewed
while the container runs.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "discover version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		var ce config.ConfigurationError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.DetailedError())
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	if config.IsConfigurationError(err) {
		return ExitCodeConfigError
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListCmd())
}
