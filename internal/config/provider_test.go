package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/openpermissions/authd/internal/probe"
)

func writeFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "directory.yaml")
	content := `
organisations:
  - id: acme
services:
  - id: acme-catalog
    org_id: acme
    secret_hash: catalog-secret
repositories:
  - id: acme-search
    org_id: acme
    service_id: acme-catalog
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func writeDevCert(t *testing.T, dir string) (keyPath, certPath string) {
	t.Helper()
	// Reuses the repo's own bundled dev key/cert so provider tests exercise
	// the real PEM-loading path without generating fresh key material.
	keyPath = filepath.Join(dir, "localhost.key")
	certPath = filepath.Join(dir, "localhost.crt")
	for _, name := range []string{"localhost.key", "localhost.crt"} {
		data, err := os.ReadFile(filepath.Join("..", "..", name))
		if err != nil {
			t.Skipf("bundled dev cert %s not available: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return keyPath, certPath
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	fixturePath := writeFixture(t, dir)
	keyPath, certPath := writeDevCert(t, dir)

	return &Config{
		Server:  ServerConfig{Addr: ":8080"},
		URLAuth: "https://auth.example.com",
		Signer: SignerConfig{
			Type: "pem",
			PEM:  PEMConfig{KeyPath: keyPath, CertPath: certPath},
		},
		Directory:    DirectoryConfig{FixturePath: fixturePath},
		TokenExpiry:  10,
		DefaultScope: "",
	}
}

func TestProvider_Directory(t *testing.T) {
	p := NewProvider(testConfig(t))
	dir, err := p.Directory()
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	svc, err := dir.GetService(context.Background(), "acme-catalog")
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}
	if svc.ID != "acme-catalog" {
		t.Errorf("ID = %q, want acme-catalog", svc.ID)
	}
}

func TestProvider_Directory_IsCached(t *testing.T) {
	p := NewProvider(testConfig(t))
	first, err := p.Directory()
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	second, err := p.Directory()
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if first != second {
		t.Fatal("expected Directory to cache and return the same instance on repeated calls")
	}
}

func TestProvider_Signer(t *testing.T) {
	p := NewProvider(testConfig(t))
	signer, err := p.Signer(context.Background())
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	if signer.Algorithm() != "RS256" {
		t.Errorf("Algorithm() = %q, want RS256", signer.Algorithm())
	}
}

func TestProvider_Signer_UnknownType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Signer.Type = "carrier-pigeon"
	p := NewProvider(cfg)
	if _, err := p.Signer(context.Background()); err == nil {
		t.Fatal("expected an error for an unknown signer type")
	}
}

func TestProvider_Codec(t *testing.T) {
	p := NewProvider(testConfig(t))
	codec, err := p.Codec(context.Background())
	if err != nil {
		t.Fatalf("Codec: %v", err)
	}
	if codec == nil {
		t.Fatal("expected a non-nil codec")
	}
}

func TestProvider_GrantDeps(t *testing.T) {
	p := NewProvider(testConfig(t))
	deps, err := p.GrantDeps(context.Background())
	if err != nil {
		t.Fatalf("GrantDeps: %v", err)
	}
	if deps.Directory == nil || deps.Codec == nil {
		t.Fatal("expected GrantDeps to populate Directory and Codec")
	}
}

func TestProvider_Observer_DefaultsToLogging(t *testing.T) {
	p := NewProvider(testConfig(t))
	if p.Observer() == nil {
		t.Fatal("expected a non-nil default observer")
	}
}

func TestProvider_Observer_CanBeOverridden(t *testing.T) {
	p := NewProvider(testConfig(t))
	fake := probe.NewFakeObserver(t)
	p.SetObserver(fake)
	if p.Observer() != fake {
		t.Fatal("expected SetObserver to stick")
	}
}

func TestProvider_Addr_DefaultsWhenEmpty(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Addr = ""
	p := NewProvider(cfg)
	if p.Addr() != ":8080" {
		t.Errorf("Addr() = %q, want :8080", p.Addr())
	}
}
