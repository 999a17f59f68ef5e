package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"discover/internal/config"
)

func TestRunCmdFlags(t *testing.T) {
	cmd := newRunCmd()

	for _, name := range []string{
		"config", "debug", "log-format", "log-file", "registry", "host-id", "host-ip",
		"realm", "etcd-endpoints", "etcd-prefix", "service-variable", "metrics-address",
	} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("Expected flag --%s", name)
		}
	}
}

func TestRunCmd_ConfigurationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("host: [unterminated\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := newRunCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"--config", path})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("Expected an error for a malformed config file")
	}
	if getExitCode(err) != ExitCodeConfigError {
		t.Errorf("Expected configuration error exit code, got %d (%v)", getExitCode(err), err)
	}
}

func TestRunCmd_ValidationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("registry:\n  backend: memory\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := newRunCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	// an address that is not an IP fails validation
	cmd.SetArgs([]string{"--config", path, "--host-id", "h1", "--host-ip", "not-an-ip", "--log-format", "json"})

	err := cmd.Execute()
	if !config.IsConfigurationError(err) {
		t.Fatalf("Expected a configuration error, got %v", err)
	}
	if strings.Contains(buf.String(), "/____/") {
		t.Error("Banner should only be printed for text logs")
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	printBanner(&buf, "1.0.0")

	out := buf.String()
	if !strings.Contains(out, "/____/_/___/") {
		t.Errorf("Banner missing from output %q", out)
	}
	if !strings.Contains(out, "version 1.0.0") {
		t.Errorf("Version missing from output %q", out)
	}
}
