package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoader_Defaults(t *testing.T) {
	loader, err := NewLoader("")
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg, err := loader.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Signer.Type != "pem" {
		t.Errorf("Signer.Type = %q, want pem", cfg.Signer.Type)
	}
	if cfg.TokenExpiry != 10 {
		t.Errorf("TokenExpiry = %d, want 10", cfg.TokenExpiry)
	}
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authd.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9090\"\ntoken_expiry: 30\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader, err := NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg, err := loader.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.TokenExpiry != 30 {
		t.Errorf("TokenExpiry = %d, want 30", cfg.TokenExpiry)
	}
	// Untouched defaults should still be present.
	if cfg.Signer.Type != "pem" {
		t.Errorf("Signer.Type = %q, want pem", cfg.Signer.Type)
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authd.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("AUTHD_SERVER__ADDR", ":7070")

	loader, err := NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg, err := loader.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Server.Addr = %q, want :7070 (env should win over file)", cfg.Server.Addr)
	}
}

func TestLoader_FlagsOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authd.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("AUTHD_SERVER__ADDR", ":7070")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	if err := flags.Set("addr", ":6060"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	loader, err := NewLoaderWithFlags(path, flags)
	if err != nil {
		t.Fatalf("NewLoaderWithFlags: %v", err)
	}
	cfg, err := loader.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Server.Addr != ":6060" {
		t.Errorf("Server.Addr = %q, want :6060 (explicit flag should win over everything)", cfg.Server.Addr)
	}
}

func TestLoader_UnsetFlagsDoNotOverride(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	// Note: addr is never explicitly Set, so f.Changed stays false.

	loader, err := NewLoaderWithFlags("", flags)
	if err != nil {
		t.Fatalf("NewLoaderWithFlags: %v", err)
	}
	cfg, err := loader.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want the default :8080 since no flag was set", cfg.Server.Addr)
	}
}

func TestLoader_UnsupportedFileFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authd.ini")
	if err := os.WriteFile(path, []byte("addr=:9090"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := NewLoader(path); err == nil {
		t.Fatal("expected an error for an unsupported config file extension")
	}
}
