package main

import (
	"context"
	"log/slog"
	"testing"
)

func TestVersionCmd_RunsWithoutError(t *testing.T) {
	cmd := versionCmd()
	if cmd.RunE != nil {
		t.Fatal("versionCmd should use Run, not RunE")
	}
	if cmd.Run == nil {
		t.Fatal("versionCmd has no Run function")
	}
	cmd.Run(cmd, nil)
}

func TestRootCmd_RegistersAllSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "doctor", "validate-config", "version"} {
		if !names[want] {
			t.Errorf("rootCmd missing subcommand %q, got %+v", want, names)
		}
	}
}

func TestSetupLogging_VerboseSetsDebugLevel(t *testing.T) {
	old := verbose
	t.Cleanup(func() { verbose = old })

	verbose = true
	logger := setupLogging()
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("setupLogging() with verbose=true should enable debug-level logging")
	}
}

func TestSetupLogging_DebugEnvVarSetsDebugLevel(t *testing.T) {
	old := verbose
	verbose = false
	t.Cleanup(func() { verbose = old })
	t.Setenv("RSP4COPILOT_DEBUG", "true")

	logger := setupLogging()
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("setupLogging() with RSP4COPILOT_DEBUG=true should enable debug-level logging")
	}
}

func TestEnvBoolTrue(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1", true}, {"true", true}, {"yes", true}, {"on", true},
		{"0", false}, {"false", false}, {"", false}, {"garbage", false},
	}
	for _, tt := range tests {
		if got := envBoolTrue(tt.in); got != tt.want {
			t.Errorf("envBoolTrue(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
