package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/giantswarm/toolgate/internal/cli"
	"github.com/giantswarm/toolgate/internal/client"
	"github.com/giantswarm/toolgate/internal/gateway"
	"github.com/giantswarm/toolgate/internal/oauth"
)

func TestSetVersion(t *testing.T) {
	// Test setting version
	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	// Test root command properties
	if rootCmd.Use != "toolgate" {
		t.Errorf("Expected Use to be 'toolgate', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestVersionTemplate(t *testing.T) {
	// Create a new command to test version template
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}

	// Set the same version template as in Execute()
	testCmd.SetVersionTemplate(`{{printf "toolgate version %s\n" .Version}}`)

	// Capture output
	var buf bytes.Buffer
	testCmd.SetOut(&buf)

	// Execute version command
	testCmd.SetArgs([]string{"--version"})
	err := testCmd.Execute()
	if err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	output := buf.String()
	expected := "toolgate version 1.0.0\n"
	if output != expected {
		t.Errorf("Expected version output %q, got %q", expected, output)
	}
}

func TestSubcommands(t *testing.T) {
	// Test that subcommands are added
	commands := rootCmd.Commands()

	expectedCommands := []string{"version", "self-update", "serve", "tools", "describe", "invoke", "token", "repl"}
	foundCommands := make(map[string]bool)

	for _, cmd := range commands {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestRootCommandHelp(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"--help"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("Error executing help command: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "toolgate") {
		t.Errorf("Help output should contain 'toolgate'. Got: %q", output)
	}

	if !strings.Contains(output, "fronts remote agent runtimes") {
		t.Errorf("Help output should contain the long description. Got: %q", output)
	}

	if !strings.Contains(output, "--config-path") {
		t.Errorf("Help output should list persistent flags. Got: %q", output)
	}
}

func TestRootRejectsUnknownOutputFormat(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"version", "--output", "wide"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		flags.OutputFormat = "table"
	}()

	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Errorf("Expected output format error, got %v", err)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"generic", errors.New("boom"), ExitCodeError},
		{"unauthenticated", fmt.Errorf("open: %w", &client.UnauthenticatedError{Err: errors.New("401")}), ExitCodeAuthRequired},
		{"exchange", &oauth.AuthExchangeError{Provider: "cognito", StatusCode: 401, Code: "invalid_client"}, ExitCodeAuthFailed},
		{"tool result", &cli.ResultError{Tool: "x", Result: gateway.InvocationResult{StatusCode: 400, IsError: true}}, ExitCodeToolFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
