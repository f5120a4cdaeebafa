// Package directory defines the contract this server uses to resolve
// clients, services and repositories, and supplies a fixture-backed
// implementation for local development and tests.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookup methods when no matching record exists.
var ErrNotFound = errors.New("not found")

type ResourceType string

const (
	ResourceTypeService    ResourceType = "service"
	ResourceTypeRepository ResourceType = "repository"
)

// Resource is anything a scope clause can name: a service or a repository.
type Resource interface {
	Key() string
	ResourceType() ResourceType
	Location() string // registered URL, empty if none
	OrganisationID() string
}

// Organisation owns services and repositories and may carry a policy
// expression gating authorization decisions (see PolicyDirectory).
type Organisation struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	PolicyExpression string `yaml:"policy_expression"`
}

// Service is a registered, directory-known service. It satisfies Resource
// and additionally carries the client credentials used to authenticate it
// and the static permission grants used by Client.Authorized. A service's
// client_id is its own ID: the same identifier names it as a directory
// resource and as an OAuth2 client.
type Service struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	OrgID string `yaml:"org_id"`
	// SecretHash authenticates this service as an OAuth2 client. A real
	// directory would store a salted hash here; StaticDirectory compares it
	// directly since it only ever reads from a local fixture file.
	SecretHash string  `yaml:"secret_hash"`
	Grants     []Grant `yaml:"grants"`
}

func (s *Service) Key() string                { return s.ID }
func (s *Service) ResourceType() ResourceType { return ResourceTypeService }
func (s *Service) Location() string           { return s.URL }
func (s *Service) OrganisationID() string     { return s.OrgID }

// Repository is a registered, directory-known protected resource.
type Repository struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	OrgID     string  `yaml:"org_id"`
	ServiceID string  `yaml:"service_id"` // the service that hosts this repository
	Grants    []Grant `yaml:"grants"`
}

func (r *Repository) Key() string                { return r.ID }
func (r *Repository) ResourceType() ResourceType { return ResourceTypeRepository }
func (r *Repository) Location() string           { return "" }
func (r *Repository) OrganisationID() string     { return r.OrgID }

// Grant is one static permission entry: a client is allowed "access"
// ("r", "w", or "rw") to a resource.
type Grant struct {
	ClientID string `yaml:"client_id"`
	Access   string `yaml:"access"`
}

// Client is the authenticated caller of /token. It wraps the Service record
// that authenticated and exposes the authorization predicate scope.Validate
// consults.
type Client struct {
	ID      string
	Service *Service
}

// Authorized reports whether this client has "access" permission
// (any of "r", "w", "rw") to target, per the target's static grant list.
func (c *Client) Authorized(access string, target Resource) bool {
	var grants []Grant
	switch t := target.(type) {
	case *Service:
		grants = t.Grants
	case *Repository:
		grants = t.Grants
	default:
		return false
	}

	for _, g := range grants {
		if g.ClientID != c.ID {
			continue
		}
		if grantCovers(g.Access, access) {
			return true
		}
	}
	return false
}

func grantCovers(granted, requested string) bool {
	for _, c := range requested {
		if !containsRune(granted, c) {
			return false
		}
	}
	return true
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}

// Authorizer is implemented by Directory decorators that add an
// authorization decision beyond Client.Authorized's static grant check
// (see PolicyDirectory). Callers should prefer this over Client.Authorized
// directly when the configured Directory might be policy-aware, falling
// back to Client.Authorized when it isn't.
type Authorizer interface {
	Authorize(ctx context.Context, client *Client, access string, target Resource) (bool, error)
}

// Directory is the external collaborator this server depends on to
// authenticate clients and resolve the resources named in scope requests.
// It is explicitly out of this system's ownership (spec.md §1, §6): the
// production implementation is expected to be a separate service reached
// over the network; StaticDirectory below exists to exercise this
// interface locally.
type Directory interface {
	// Authenticate validates a client_id/client_secret pair and returns the
	// authenticated Client, or ErrNotFound if the credentials don't match.
	Authenticate(ctx context.Context, clientID, clientSecret string) (*Client, error)

	// GetService resolves a service by its directory ID.
	GetService(ctx context.Context, id string) (*Service, error)

	// GetServiceByLocation resolves a service by its registered URL.
	GetServiceByLocation(ctx context.Context, url string) (*Service, error)

	// GetRepository resolves a repository by its directory ID.
	GetRepository(ctx context.Context, id string) (*Repository, error)

	// FindByKey resolves either a service or a repository by ID, whichever
	// matches. Used for scope resource IDs, which don't declare their type.
	FindByKey(ctx context.Context, key string) (Resource, error)

	// GetParent resolves the organisation that owns r.
	GetParent(ctx context.Context, r Resource) (Organisation, error)
}
