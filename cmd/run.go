package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"discover/internal/app"
	"discover/internal/config"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	configPath string
	debug      bool
	overrides  app.Overrides
}

// newRunCmd creates the command that starts the agent.
func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the registration agent",
		Long: `Connects to the Docker engine and to etcd, registers the services of all
running containers on this host and keeps the registry in line with container
starts and stops until interrupted. On SIGINT or SIGTERM the host's entries
are removed before exiting.

A container declares services with the DISCOVER environment variable (or a
label of the same name), for example:

  DISCOVER=web:80/tcp,admin:8081

Configuration is read from /etc/discover/config.yaml when present, or from
--config. Flags override values from the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Configuration file (default "+config.GetDefaultConfigPath()+")")
	f.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	f.StringVar(&opts.overrides.LogFormat, "log-format", "", "Log format: text or json")
	f.StringVar(&opts.overrides.LogFile, "log-file", "", "Also append logs to this file")
	f.StringVar(&opts.overrides.Registry, "registry", "", "Registry backend: etcd or memory")
	f.StringVar(&opts.overrides.HostID, "host-id", "", "Host id used in registry keys (default: hostname)")
	f.StringVar(&opts.overrides.HostIP, "host-ip", "", "Address published for services (default: $"+config.HostIPEnv+")")
	f.StringVar(&opts.overrides.Realm, "realm", "", "Realm to register services in")
	f.StringSliceVar(&opts.overrides.EtcdEndpoints, "etcd-endpoints", nil, "Comma separated etcd endpoints")
	f.StringVar(&opts.overrides.EtcdPrefix, "etcd-prefix", "", "Registry key prefix")
	f.StringVar(&opts.overrides.ServiceVariable, "service-variable", "", "Environment variable or label holding service declarations")
	f.StringVar(&opts.overrides.MetricsAddress, "metrics-address", "", "Serve /metrics and /healthz on this address")

	return cmd
}

func runAgent(cmd *cobra.Command, opts *runOptions) error {
	dc, err := app.LoadDiscoverConfig(opts.configPath, opts.overrides)
	if err != nil {
		return err
	}

	if dc.Logging.Format == "" || dc.Logging.Format == "text" {
		printBanner(cmd.OutOrStdout(), GetVersion())
	}

	cfg := app.NewConfig(opts.debug, opts.configPath, opts.overrides)
	cfg.DiscoverConfig = &dc

	application, err := app.NewApplication(cfg)
	if err != nil {
		if config.IsConfigurationError(err) {
			return err
		}
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

var banner = []string{
	`   ___  _                         `,
	`  / _ \(_)__ _______ _  _____ ____`,
	` / // / (_-</ __/ _ \ |/ / -_) __/`,
	`/____/_/___/\__/\___/___/\__/_/   `,
}

func printBanner(w io.Writer, version string) {
	for _, line := range banner {
		fmt.Fprintln(w, text.FgCyan.Sprint(line))
	}
	if version != "" {
		fmt.Fprintf(w, "%s\n\n", text.FgHiBlack.Sprintf("version %s", version))
	}
}
