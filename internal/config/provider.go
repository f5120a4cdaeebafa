package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openpermissions/authd/internal/clock"
	"github.com/openpermissions/authd/internal/directory"
	"github.com/openpermissions/authd/internal/fs"
	"github.com/openpermissions/authd/internal/grant"
	"github.com/openpermissions/authd/internal/keys"
	"github.com/openpermissions/authd/internal/probe"
	"github.com/openpermissions/authd/internal/token"
)

// Provider constructs all application components from configuration. This
// is the main entry point for building a configured authd instance.
type Provider struct {
	config *Config

	// Lazily constructed components, cached after first build.
	directory directory.Directory
	signer    keys.Signer
	codec     *token.Codec
	observer  probe.Observer
}

// NewProvider creates a new provider from configuration.
func NewProvider(config *Config) *Provider {
	return &Provider{config: config}
}

// SetObserver overrides the observer this provider hands to grant.Deps.
// Must be called before GrantDeps if the default slog-backed observer
// isn't wanted (tests typically install a probe.FakeObserver this way).
func (p *Provider) SetObserver(observer probe.Observer) {
	p.observer = observer
}

// Observer returns the configured observer, building the default
// slog-backed one on first use.
func (p *Provider) Observer() probe.Observer {
	if p.observer == nil {
		p.observer = probe.NewLoggingObserver(slog.Default())
	}
	return p.observer
}

// Directory returns the configured Directory, loading the YAML fixture at
// directory.fixture_path and wrapping it in a CachedDirectory and
// PolicyDirectory per configuration.
func (p *Provider) Directory() (directory.Directory, error) {
	if p.directory != nil {
		return p.directory, nil
	}

	source, err := directory.LoadStaticDirectory(fs.NewOSFileSystem(), p.config.Directory.FixturePath)
	if err != nil {
		return nil, fmt.Errorf("loading directory fixture: %w", err)
	}

	var d directory.Directory = source
	if p.config.Directory.Cache.Enabled {
		ttl := time.Duration(p.config.Directory.Cache.TTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = time.Minute
		}
		d = directory.NewCachedDirectory(d, directory.CachedDirectoryConfig{
			GroupName:      "authd-directory",
			CacheSizeBytes: p.config.Directory.Cache.SizeBytes,
			TTL:            ttl,
		})
	}

	policyDir, err := directory.NewPolicyDirectory(d)
	if err != nil {
		return nil, fmt.Errorf("building policy directory: %w", err)
	}
	d = policyDir

	p.directory = d
	return d, nil
}

// Signer returns the configured key material signer, either a disk-backed
// PEM signer (default) or an AWS KMS signer.
func (p *Provider) Signer(ctx context.Context) (keys.Signer, error) {
	if p.signer != nil {
		return p.signer, nil
	}

	switch p.config.Signer.Type {
	case "", "pem":
		pemSigner := keys.NewPEMSigner(keys.PEMSignerConfig{
			KeyPath:    p.config.Signer.PEM.KeyPath,
			CertPath:   p.config.Signer.PEM.CertPath,
			FileSystem: fs.NewOSFileSystem(),
			Cache:      true,
		})
		if interval := p.config.Signer.PEM.ReloadIntervalSeconds; interval > 0 {
			pemSigner.StartAutoReload(clock.NewIntervalTicker(time.Duration(interval) * time.Second))
		}
		p.signer = pemSigner
	case "kms":
		signer, err := keys.NewKMSSigner(ctx, keys.KMSSignerConfig{
			KeyID:      p.config.Signer.KMS.KeyID,
			Region:     p.config.Signer.KMS.Region,
			FileSystem: fs.NewOSFileSystem(),
			CachePath:  p.config.Signer.KMS.CachePath,
		})
		if err != nil {
			return nil, fmt.Errorf("building KMS signer: %w", err)
		}
		p.signer = signer
	default:
		return nil, fmt.Errorf("unknown signer.type %q", p.config.Signer.Type)
	}

	return p.signer, nil
}

// Codec returns the configured token codec.
func (p *Provider) Codec(ctx context.Context) (*token.Codec, error) {
	if p.codec != nil {
		return p.codec, nil
	}

	signer, err := p.Signer(ctx)
	if err != nil {
		return nil, err
	}

	expiry := time.Duration(p.config.TokenExpiry) * time.Minute
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}

	codec, err := token.NewCodec(signer, p.config.URLAuth, expiry)
	if err != nil {
		return nil, fmt.Errorf("building token codec: %w", err)
	}

	p.codec = codec
	return codec, nil
}

// GrantDeps returns the collaborators every grant needs, for use by the
// HTTP handlers building a grant.Request per call.
func (p *Provider) GrantDeps(ctx context.Context) (grant.Deps, error) {
	dir, err := p.Directory()
	if err != nil {
		return grant.Deps{}, err
	}

	codec, err := p.Codec(ctx)
	if err != nil {
		return grant.Deps{}, err
	}

	return grant.Deps{
		Directory:    dir,
		Codec:        codec,
		DefaultScope: p.config.DefaultScope,
	}, nil
}

// Addr returns the address the HTTP server should listen on.
func (p *Provider) Addr() string {
	if p.config.Server.Addr == "" {
		return ":8080"
	}
	return p.config.Server.Addr
}
