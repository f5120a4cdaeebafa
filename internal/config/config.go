package config

// Config is the fully-resolved configuration for one authd process,
// assembled by Loader from defaults, an optional config file, environment
// variables and command-line flags, in that order of increasing
// precedence.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	URLAuth   string          `koanf:"url_auth"`
	Signer    SignerConfig    `koanf:"signer"`
	Directory DirectoryConfig `koanf:"directory"`

	TokenExpiry  int    `koanf:"token_expiry"`
	DefaultScope string `koanf:"default_scope"`

	// Processes is accepted for compatibility with deployments that still
	// set it; a single authd process serves all connections concurrently
	// via goroutines, so this has no effect and process supervision is left
	// to the orchestrator (systemd unit count, Kubernetes replica count).
	Processes int `koanf:"processes"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type SignerConfig struct {
	// Type selects the signing backend: "pem" (default) or "kms".
	Type string    `koanf:"type"`
	PEM  PEMConfig `koanf:"pem"`
	KMS  KMSConfig `koanf:"kms"`
}

type PEMConfig struct {
	KeyPath  string `koanf:"key_path"`
	CertPath string `koanf:"cert_path"`

	// ReloadIntervalSeconds, if positive, re-reads the key/cert files from
	// disk on that interval instead of caching them for the process
	// lifetime, so rotating ssl_key/ssl_cert in place doesn't require a
	// restart. Zero (the default) keeps whatever was loaded on first use.
	ReloadIntervalSeconds int `koanf:"reload_interval_seconds"`
}

type KMSConfig struct {
	KeyID  string `koanf:"key_id"`
	Region string `koanf:"region"`

	// CachePath, if set, caches the last KMS-fetched public key on disk so
	// token verification survives a transient KMS outage.
	CachePath string `koanf:"cache_path"`
}

type DirectoryConfig struct {
	FixturePath string               `koanf:"fixture_path"`
	Cache       DirectoryCacheConfig `koanf:"cache"`
}

type DirectoryCacheConfig struct {
	// Enabled wraps the fixture directory in a groupcache-backed
	// CachedDirectory. Off by default since StaticDirectory lookups are
	// already in-memory map reads; useful once Directory is backed by a
	// networked service.
	Enabled   bool  `koanf:"enabled"`
	SizeBytes int64 `koanf:"size_bytes"`
	// TTLSeconds is the cache freshness window, in seconds.
	TTLSeconds int `koanf:"ttl_seconds"`
}
