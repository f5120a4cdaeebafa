package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	if !names["serve"] {
		t.Error("expected root command to register serve")
	}
	if !names["version"] {
		t.Error("expected root command to register version")
	}
}

func TestNewRootCmd_HasConfigFlag(t *testing.T) {
	root := NewRootCmd()
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("expected a persistent --config flag")
	}
}

func TestVersionCmd_PrintsVersion(t *testing.T) {
	Version = "v1.2.3-test"
	defer func() { Version = "dev" }()

	cmd := NewVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if !strings.Contains(out.String(), "v1.2.3-test") {
		t.Errorf("output %q does not contain the version string", out.String())
	}
}

func TestNewServeCmd_RegistersConfigFlags(t *testing.T) {
	cmd := NewServeCmd()
	// config.RegisterFlags should have wired at least the server address flag.
	if cmd.Flags().Lookup("addr") == nil {
		t.Error("expected serve command to register an --addr flag")
	}
}
