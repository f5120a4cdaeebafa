package config

import "github.com/spf13/pflag"

// flagMapping pairs a command-line flag name with the config key it
// overrides. Kept as a single source of truth so RegisterFlags and
// GetFlagMapping can't drift apart.
var flagMapping = map[string]string{
	"addr":                "server.addr",
	"url-auth":            "url_auth",
	"signer-type":         "signer.type",
	"ssl-key":             "signer.pem.key_path",
	"ssl-cert":            "signer.pem.cert_path",
	"ssl-reload-interval": "signer.pem.reload_interval_seconds",
	"kms-key-id":          "signer.kms.key_id",
	"kms-region":          "signer.kms.region",
	"kms-cache-path":      "signer.kms.cache_path",
	"directory":           "directory.fixture_path",
	"token-expiry":        "token_expiry",
	"default-scope":       "default_scope",
}

// RegisterFlags registers the command-line flags that NewLoaderWithFlags
// recognizes via GetFlagMapping. Flags left unset by the caller don't
// override anything (posflag.ProviderWithFlag only consults f.Changed).
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("addr", "", "address to listen on, e.g. :8080")
	flags.String("url-auth", "", "base URL this server is reachable at, used for iss/aud claims")
	flags.String("signer-type", "", "token signing backend: pem or kms")
	flags.String("ssl-key", "", "path to the PEM-encoded RSA private key")
	flags.String("ssl-cert", "", "path to the PEM-encoded certificate carrying the public key")
	flags.Int("ssl-reload-interval", 0, "seconds between re-reading ssl-key/ssl-cert from disk, 0 to disable")
	flags.String("kms-key-id", "", "AWS KMS key ID or ARN, when signer-type is kms")
	flags.String("kms-region", "", "AWS region for the KMS signer")
	flags.String("kms-cache-path", "", "path to cache the last KMS-fetched public key, for fallback during a KMS outage")
	flags.String("directory", "", "path to the YAML directory fixture")
	flags.Int("token-expiry", 0, "token lifetime in minutes")
	flags.String("default-scope", "", "scope granted when a /token request omits one")
}

// GetFlagMapping returns the flag-name to config-key mapping NewLoaderWithFlags
// uses to translate changed flags into koanf overrides.
func GetFlagMapping() map[string]string {
	return flagMapping
}
