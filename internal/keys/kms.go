package keys

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"io/fs"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	authdfs "github.com/openpermissions/authd/internal/fs"
)

// pemBlockKMSPublicKey is the PEM block type used when caching a KMS public
// key to disk.
const pemBlockKMSPublicKey = "PUBLIC KEY"

// KMSSignerConfig configures KMSSigner.
type KMSSignerConfig struct {
	// KeyID is the KMS key ID or ARN of an asymmetric RSA signing key.
	KeyID string

	// Region overrides the AWS SDK's default region resolution, if set.
	Region string

	// Client, if set, is used instead of constructing one from Region. Lets
	// callers point at a local KMS-compatible endpoint in tests.
	Client *kms.Client

	// FileSystem and CachePath, if both set, back PublicKey with an
	// on-disk cache of the last KMS-fetched key: a successful fetch is
	// written through to CachePath, and a failed fetch (KMS unreachable)
	// falls back to whatever was last cached there rather than failing
	// token verification outright.
	FileSystem authdfs.FileSystem
	CachePath  string
}

// KMSSigner is an alternate production Signer backend that signs via AWS
// KMS asymmetric signing operations instead of holding private key material
// in the process. Selected with signer.type: kms (SPEC_FULL.md §4.7).
type KMSSigner struct {
	client    *kms.Client
	keyID     string
	fsys      authdfs.FileSystem
	cachePath string

	mu  sync.RWMutex
	pub *rsa.PublicKey
}

// NewKMSSigner builds a KMSSigner, constructing an AWS client from the
// default credential chain unless cfg.Client is provided.
func NewKMSSigner(ctx context.Context, cfg KMSSignerConfig) (*KMSSigner, error) {
	client := cfg.Client
	if client == nil {
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = kms.NewFromConfig(awsCfg)
	}

	return &KMSSigner{client: client, keyID: cfg.KeyID, fsys: cfg.FileSystem, cachePath: cfg.CachePath}, nil
}

func (s *KMSSigner) Algorithm() string { return "RS256" }

func (s *KMSSigner) Reload(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pub = nil
	return nil
}

// CryptoSigner returns a crypto.Signer that delegates signing to KMS.
func (s *KMSSigner) CryptoSigner(ctx context.Context) (crypto.Signer, string, error) {
	pub, err := s.PublicKey(ctx)
	if err != nil {
		return nil, "", err
	}
	return &kmsCryptoSigner{ctx: ctx, client: s.client, keyID: s.keyID, pub: pub}, s.keyID, nil
}

func (s *KMSSigner) PublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	s.mu.RLock()
	if s.pub != nil {
		pub := s.pub
		s.mu.RUnlock()
		return pub, nil
	}
	s.mu.RUnlock()

	out, err := s.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: &s.keyID})
	if err != nil {
		if cached, cacheErr := s.readCache(); cacheErr == nil {
			s.mu.Lock()
			s.pub = cached
			s.mu.Unlock()
			return cached, nil
		}
		return nil, fmt.Errorf("failed to fetch KMS public key %s: %w", s.keyID, err)
	}

	rsaPub, err := parseRSAPublicKeyDER(out.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse KMS public key %s: %w", s.keyID, err)
	}

	s.mu.Lock()
	s.pub = rsaPub
	s.mu.Unlock()

	s.writeCache(out.PublicKey)

	return rsaPub, nil
}

func parseRSAPublicKeyDER(der []byte) (*rsa.PublicKey, error) {
	pubAny, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key is not an RSA key")
	}
	return rsaPub, nil
}

// readCache loads the last KMS-fetched public key from disk, for use when
// KMS itself is unreachable. Returns an error if no cache is configured or
// no key has ever been cached.
func (s *KMSSigner) readCache() (*rsa.PublicKey, error) {
	if s.fsys == nil || s.cachePath == "" {
		return nil, fmt.Errorf("no disk cache configured for KMS key %s", s.keyID)
	}
	data, err := s.fsys.ReadFile(s.cachePath)
	if err != nil {
		return nil, fmt.Errorf("reading cached KMS public key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("cached KMS public key at %s is not valid PEM", s.cachePath)
	}
	return parseRSAPublicKeyDER(block.Bytes)
}

// writeCache persists a freshly fetched KMS public key to disk so a later
// outage can fall back to it. Best-effort: a write failure doesn't fail the
// fetch that's already succeeded.
func (s *KMSSigner) writeCache(der []byte) {
	if s.fsys == nil || s.cachePath == "" {
		return
	}
	block := &pem.Block{Type: pemBlockKMSPublicKey, Bytes: der}
	_ = s.fsys.WriteFileAtomic(s.cachePath, pem.EncodeToMemory(block), fs.FileMode(0o644))
}

// kmsCryptoSigner adapts a KMS asymmetric signing key to crypto.Signer so it
// can be handed to jwx's jwt.WithKey.
type kmsCryptoSigner struct {
	ctx    context.Context
	client *kms.Client
	keyID  string
	pub    *rsa.PublicKey
}

func (k *kmsCryptoSigner) Public() crypto.PublicKey { return k.pub }

func (k *kmsCryptoSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if opts.HashFunc() != crypto.SHA256 {
		return nil, fmt.Errorf("kms signer only supports SHA256 digests, got %s", opts.HashFunc())
	}

	out, err := k.client.Sign(k.ctx, &kms.SignInput{
		KeyId:            &k.keyID,
		Message:          digest,
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecRsassaPkcs1V15Sha256,
	})
	if err != nil {
		return nil, fmt.Errorf("kms sign failed: %w", err)
	}
	return out.Signature, nil
}
