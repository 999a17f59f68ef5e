package cmd

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"discover/internal/app"
	"discover/internal/config"
	"discover/internal/formatting"
	"discover/internal/registry"
	"discover/pkg/logging"
)

// openStore is replaced in tests.
var openStore = app.OpenStore

// listOptions holds the flags of the list command.
type listOptions struct {
	configPath string
	output     string
	noHeaders  bool
	wide       bool
	host       string
	overrides  app.Overrides
}

// newListCmd creates the command that prints registry entries.
func newListCmd() *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list [service]",
		Short: "List registered services",
		Long: `Lists the registry entries of the configured realm, optionally limited to
one service. The service argument may contain the wildcards * and ?.

Examples:
  discover list
  discover list web --realm prod
  discover list 'api-*' --output json
  discover list --host h1 --output plain --no-headers`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := ""
			if len(args) == 1 {
				service = args[0]
			}
			return runList(cmd, opts, service)
		},
	}

	names := make([]string, len(formatting.Formats))
	for i, f := range formatting.Formats {
		names[i] = string(f)
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Configuration file (default "+config.GetDefaultConfigPath()+")")
	f.StringVarP(&opts.output, "output", "o", string(formatting.FormatTable), "Output format: "+strings.Join(names, ", "))
	f.BoolVar(&opts.noHeaders, "no-headers", false, "Omit the header row of table and plain output")
	f.BoolVar(&opts.wide, "wide", false, "Show agent, registration time and key columns")
	f.StringVar(&opts.host, "host", "", "Only show entries of this host id")
	f.StringVar(&opts.overrides.Realm, "realm", "", "Realm to list")
	f.StringSliceVar(&opts.overrides.EtcdEndpoints, "etcd-endpoints", nil, "Comma separated etcd endpoints")
	f.StringVar(&opts.overrides.EtcdPrefix, "etcd-prefix", "", "Registry key prefix")

	return cmd
}

func runList(cmd *cobra.Command, opts *listOptions, service string) error {
	format, err := formatting.ParseFormat(opts.output)
	if err != nil {
		return err
	}
	if service != "" && !validPattern(service) {
		return fmt.Errorf("invalid service pattern %q", service)
	}

	logging.InitForCLI(logging.LevelWarn, os.Stderr)

	dc, err := app.LoadDiscoverConfig(opts.configPath, opts.overrides)
	if err != nil {
		return err
	}
	if dc.Registry.Backend == config.RegistryMemory {
		return config.NewConfigurationError(opts.configPath, "validation",
			"list needs a shared registry; the memory backend only exists inside a running agent")
	}
	if !strings.HasPrefix(dc.Etcd.Prefix, "/") {
		return config.NewConfigurationError(opts.configPath, "validation",
			fmt.Sprintf("etcd.prefix must start with '/': %q", dc.Etcd.Prefix))
	}

	store, err := openStore(dc)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, dc.Etcd.DialTimeout+dc.Etcd.RequestTimeout)
	defer cancel()

	layout := registry.NewLayout(dc.Etcd.Prefix)
	prefix := layout.RealmPrefix(dc.Host.Realm)
	if service != "" && !hasWildcard(service) {
		prefix = layout.ServicePrefix(dc.Host.Realm, service)
	}

	entries, err := store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	entries = filterEntries(entries, service, opts.host)

	formatter := formatting.NewFormatter(formatting.Options{
		Format:    format,
		NoHeaders: opts.noHeaders,
		Wide:      opts.wide,
		Color:     cmd.OutOrStdout() == os.Stdout && os.Getenv("NO_COLOR") == "",
	})
	return formatter.FormatEntries(cmd.OutOrStdout(), entries)
}

// filterEntries keeps the entries whose service matches pattern and whose
// host equals host. Empty filters match everything.
func filterEntries(entries []registry.Entry, pattern, host string) []registry.Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if !matchesWildcard(e.Service, pattern) {
			continue
		}
		if host != "" && e.Host != host {
			continue
		}
		out = append(out, e)
	}
	return out
}

// matchesWildcard checks if name matches a pattern with * and ? wildcards.
func matchesWildcard(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	// path.Match uses the same wildcard syntax we want
	matched, err := path.Match(pattern, name)
	if err != nil {
		return false
	}
	return matched
}

func hasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

func validPattern(pattern string) bool {
	if strings.Contains(pattern, "/") {
		return false
	}
	_, err := path.Match(pattern, "")
	return err == nil
}
