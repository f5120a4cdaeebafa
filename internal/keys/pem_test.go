package keys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/openpermissions/authd/internal/fs"
)

// fakeTicker lets tests trigger a clock.Ticker's callback synchronously
// instead of waiting on a real time.Ticker.
type fakeTicker struct {
	fn      func()
	stopped bool
}

func (f *fakeTicker) Start(fn func()) { f.fn = fn }
func (f *fakeTicker) Stop()           { f.stopped = true }
func (f *fakeTicker) fire()           { f.fn() }

// generateTestPEM returns a freshly generated RSA key and a self-signed
// certificate over it, both PEM-encoded, for tests that need real key
// material without touching disk.
func generateTestPEM(t *testing.T) (keyPEM, certPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "authd-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}

	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	return keyPEM, certPEM
}

func TestPEMSigner_SignAndVerify(t *testing.T) {
	keyPEM, certPEM := generateTestPEM(t)

	memFS := fs.NewMemFileSystem()
	memFS.WriteFile("/key.pem", keyPEM)
	memFS.WriteFile("/cert.pem", certPEM)

	signer := NewPEMSigner(PEMSignerConfig{
		KeyPath:    "/key.pem",
		CertPath:   "/cert.pem",
		FileSystem: memFS,
	})

	if got := signer.Algorithm(); got != "RS256" {
		t.Fatalf("Algorithm() = %q, want RS256", got)
	}

	ctx := context.Background()
	cryptoSigner, keyID, err := signer.CryptoSigner(ctx)
	if err != nil {
		t.Fatalf("CryptoSigner: %v", err)
	}
	if cryptoSigner == nil {
		t.Fatal("CryptoSigner returned a nil signer")
	}
	if keyID != "" {
		t.Fatalf("expected no key ID for a PEM signer, got %q", keyID)
	}

	pub, err := signer.PublicKey(ctx)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	if !pub.Equal(cryptoSigner.Public()) {
		t.Fatal("PublicKey does not match the signer's own public key")
	}
}

func TestPEMSigner_MissingKeyFile(t *testing.T) {
	memFS := fs.NewMemFileSystem()
	signer := NewPEMSigner(PEMSignerConfig{KeyPath: "/missing.pem", CertPath: "/missing.crt", FileSystem: memFS})

	if _, _, err := signer.CryptoSigner(context.Background()); err == nil {
		t.Fatal("expected an error reading a missing key file")
	}
}

func TestPEMSigner_CachesWhenConfigured(t *testing.T) {
	keyPEM, certPEM := generateTestPEM(t)

	memFS := fs.NewMemFileSystem()
	memFS.WriteFile("/key.pem", keyPEM)
	memFS.WriteFile("/cert.pem", certPEM)

	signer := NewPEMSigner(PEMSignerConfig{
		KeyPath:    "/key.pem",
		CertPath:   "/cert.pem",
		FileSystem: memFS,
		Cache:      true,
	})

	ctx := context.Background()
	if _, _, err := signer.CryptoSigner(ctx); err != nil {
		t.Fatalf("CryptoSigner: %v", err)
	}

	// Corrupt the backing file; a cached signer should not notice.
	memFS.WriteFile("/key.pem", []byte("not a key"))
	if _, _, err := signer.CryptoSigner(ctx); err != nil {
		t.Fatalf("expected cached signer to ignore the corrupted file, got: %v", err)
	}

	if err := signer.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, _, err := signer.CryptoSigner(ctx); err == nil {
		t.Fatal("expected an error after Reload re-reads the corrupted file")
	}
}

func TestPEMSigner_StartAutoReload(t *testing.T) {
	keyPEM, certPEM := generateTestPEM(t)

	memFS := fs.NewMemFileSystem()
	memFS.WriteFile("/key.pem", keyPEM)
	memFS.WriteFile("/cert.pem", certPEM)

	signer := NewPEMSigner(PEMSignerConfig{
		KeyPath:    "/key.pem",
		CertPath:   "/cert.pem",
		FileSystem: memFS,
		Cache:      true,
	})

	ctx := context.Background()
	if _, _, err := signer.CryptoSigner(ctx); err != nil {
		t.Fatalf("CryptoSigner: %v", err)
	}

	// Corrupt the backing file; the cached signer shouldn't notice until the
	// ticker fires.
	memFS.WriteFile("/key.pem", []byte("not a key"))
	if _, _, err := signer.CryptoSigner(ctx); err != nil {
		t.Fatalf("expected cached signer to ignore the corrupted file before a tick, got: %v", err)
	}

	ticker := &fakeTicker{}
	stop := signer.StartAutoReload(ticker)
	ticker.fire()

	if _, _, err := signer.CryptoSigner(ctx); err == nil {
		t.Fatal("expected an error after the auto-reload tick re-reads the corrupted file")
	}

	stop()
	if !ticker.stopped {
		t.Fatal("expected StartAutoReload's stop function to stop the ticker")
	}
}
