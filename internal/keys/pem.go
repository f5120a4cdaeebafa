package keys

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"

	"github.com/openpermissions/authd/internal/clock"
	"github.com/openpermissions/authd/internal/fs"
)

// PEMSignerConfig configures PEMSigner.
type PEMSignerConfig struct {
	// KeyPath is the path to a PEM-encoded RSA private key (PKCS#1 or PKCS#8).
	KeyPath string

	// CertPath is the path to a PEM-encoded X.509 certificate whose public
	// key corresponds to KeyPath. Only the public key is used; the
	// certificate is not used for chain validation.
	CertPath string

	// FileSystem is an optional filesystem abstraction (defaults to OSFileSystem).
	FileSystem fs.FileSystem

	// Cache, if true, reads KeyPath/CertPath once and serves the cached key
	// material thereafter until Reload is called. If false (the default),
	// every Sign/PublicKey call re-reads both files from disk, matching the
	// source design's "re-read on every call" semantics (spec.md §9).
	Cache bool
}

// PEMSigner is the default Signer (spec.md §4.1, §6 ssl_key/ssl_cert): an
// RSA private key and certificate loaded from PEM files on disk.
type PEMSigner struct {
	cfg PEMSignerConfig

	mu      sync.RWMutex
	cached  bool
	signer  crypto.Signer
	pub     *rsa.PublicKey
}

// NewPEMSigner builds a PEMSigner from cfg.
func NewPEMSigner(cfg PEMSignerConfig) *PEMSigner {
	if cfg.FileSystem == nil {
		cfg.FileSystem = fs.NewOSFileSystem()
	}
	return &PEMSigner{cfg: cfg}
}

func (s *PEMSigner) Algorithm() string { return "RS256" }

// StartAutoReload invalidates the cached key material on every tick of t,
// so an operator rotating ssl_key/ssl_cert on disk doesn't need to restart
// the process. Only useful when cfg.Cache is true; a no-op otherwise since
// every call already re-reads from disk. Returns a stop function.
func (s *PEMSigner) StartAutoReload(t clock.Ticker) (stop func()) {
	t.Start(func() {
		_ = s.Reload(context.Background())
	})
	return t.Stop
}

// Reload invalidates any cached key material; the next call re-reads from disk.
func (s *PEMSigner) Reload(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = false
	s.signer = nil
	s.pub = nil
	return nil
}

func (s *PEMSigner) CryptoSigner(_ context.Context) (crypto.Signer, string, error) {
	signer, _, err := s.load()
	if err != nil {
		return nil, "", err
	}
	return signer, "", nil
}

func (s *PEMSigner) PublicKey(_ context.Context) (*rsa.PublicKey, error) {
	_, pub, err := s.load()
	return pub, err
}

func (s *PEMSigner) load() (crypto.Signer, *rsa.PublicKey, error) {
	if s.cfg.Cache {
		s.mu.RLock()
		if s.cached {
			signer, pub := s.signer, s.pub
			s.mu.RUnlock()
			return signer, pub, nil
		}
		s.mu.RUnlock()
	}

	signer, pub, err := s.readFromDisk()
	if err != nil {
		return nil, nil, err
	}

	if s.cfg.Cache {
		s.mu.Lock()
		s.signer, s.pub, s.cached = signer, pub, true
		s.mu.Unlock()
	}

	return signer, pub, nil
}

func (s *PEMSigner) readFromDisk() (crypto.Signer, *rsa.PublicKey, error) {
	keyBytes, err := s.cfg.FileSystem.ReadFile(s.cfg.KeyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read private key %s: %w", s.cfg.KeyPath, err)
	}
	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, nil, fmt.Errorf("no PEM block found in private key %s", s.cfg.KeyPath)
	}

	var signer crypto.Signer
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		signer = key
	} else if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, nil, fmt.Errorf("private key %s is not RSA", s.cfg.KeyPath)
		}
		signer = rsaKey
	} else {
		return nil, nil, fmt.Errorf("failed to parse private key %s: %w", s.cfg.KeyPath, err)
	}

	certBytes, err := s.cfg.FileSystem.ReadFile(s.cfg.CertPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read certificate %s: %w", s.cfg.CertPath, err)
	}
	certBlock, _ := pem.Decode(certBytes)
	if certBlock == nil {
		return nil, nil, fmt.Errorf("no PEM block found in certificate %s", s.cfg.CertPath)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse certificate %s: %w", s.cfg.CertPath, err)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("certificate %s does not contain an RSA public key", s.cfg.CertPath)
	}

	return signer, pub, nil
}
