// Package scope implements the request scope grammar and its evaluation
// against a directory of registered services and repositories.
//
// A scope string is a space-separated list of clauses:
//
//	read
//	read[resource]
//	write[resource]
//	delegate[delegate]:read[resource]
//	delegate[delegate]:write[resource]
//
// "read" with no bracket grants read access to every resource. Every other
// clause is scoped to one resource, identified either by an opaque ID or by
// a registered service's URL (anything starting with "http").
package scope

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/openpermissions/authd/internal/directory"
)

const (
	AccessRead  = "r"
	AccessWrite = "w"
)

var (
	readRegex     = regexp.MustCompile(`^read\[(.+)\]$`)
	writeRegex    = regexp.MustCompile(`^write\[(.+)\]$`)
	delegateRegex = regexp.MustCompile(`^delegate\[(.+)\]:(read|write)\[(.+)\]$`)
)

// Access pairs an access level with an optional delegate that was granted it.
type Access struct {
	Level      string
	DelegateID string // empty unless this access was granted via a delegate clause
}

// Scope is the parsed, evaluable form of a scope string.
type Scope struct {
	raw       string
	ReadAll   bool
	Resources map[string]map[Access]struct{}
	Delegates map[string]map[Access]struct{}
}

// String returns the original scope string the Scope was parsed from.
func (s *Scope) String() string { return s.raw }

// Parse parses a scope string into its tagged clauses.
//
// Returns ErrInvalidScope, wrapped with a reason, if any clause is malformed.
func Parse(raw string) (*Scope, error) {
	s := &Scope{
		raw:       raw,
		Resources: make(map[string]map[Access]struct{}),
		Delegates: make(map[string]map[Access]struct{}),
	}

	for _, clause := range strings.Fields(raw) {
		switch {
		case strings.HasPrefix(clause, "read"):
			if err := s.addRead(clause); err != nil {
				return nil, err
			}
		case strings.HasPrefix(clause, "write"):
			if err := s.addWrite(clause); err != nil {
				return nil, err
			}
		case strings.HasPrefix(clause, "delegate"):
			if err := s.addDelegate(clause); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: scope has missing elements: %q", ErrInvalidScope, clause)
		}
	}

	return s, nil
}

func (s *Scope) addRead(clause string) error {
	m := readRegex.FindStringSubmatch(clause)
	if m == nil {
		if clause != "read" {
			return fmt.Errorf("%w: invalid read clause: %q", ErrInvalidScope, clause)
		}
		s.ReadAll = true
		return nil
	}
	s.grant(s.Resources, m[1], Access{Level: AccessRead})
	return nil
}

func (s *Scope) addWrite(clause string) error {
	m := writeRegex.FindStringSubmatch(clause)
	if m == nil {
		return fmt.Errorf("%w: write scope requires a resource ID", ErrInvalidScope)
	}
	s.grant(s.Resources, m[1], Access{Level: AccessWrite})
	return nil
}

func (s *Scope) addDelegate(clause string) error {
	m := delegateRegex.FindStringSubmatch(clause)
	if m == nil {
		return fmt.Errorf("%w: invalid delegate scope: %q", ErrInvalidScope, clause)
	}
	delegateID, action, resourceID := m[1], m[2], m[3]

	level := AccessRead
	if action == "write" {
		level = AccessWrite
	}

	s.grant(s.Delegates, delegateID, Access{Level: level})
	s.grant(s.Resources, resourceID, Access{Level: level, DelegateID: delegateID})
	return nil
}

func (s *Scope) grant(set map[string]map[Access]struct{}, key string, access Access) {
	if set[key] == nil {
		set[key] = make(map[Access]struct{})
	}
	set[key][access] = struct{}{}
}

// WithinScope reports whether access ("r", "w", or "rw") to resourceID is
// granted by this scope, either directly, via a delegate grant against the
// resource, or because resourceID is itself a delegate named in the scope.
func (s *Scope) WithinScope(access, resourceID string) bool {
	if s.ReadAll && strings.Contains(access, AccessRead) {
		return true
	}

	granted := s.Resources[resourceID]
	delegated := s.Delegates[resourceID]
	for level := range accessLevels(access) {
		if _, ok := granted[Access{Level: level}]; ok {
			return true
		}
		for a := range granted {
			if a.Level == level && a.DelegateID != "" {
				return true
			}
		}
		if _, ok := delegated[Access{Level: level}]; ok {
			return true
		}
	}
	return false
}

func accessLevels(access string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, c := range access {
		switch c {
		case 'r':
			out[AccessRead] = struct{}{}
		case 'w':
			out[AccessWrite] = struct{}{}
		}
	}
	return out
}

// Validate checks that every resource and delegate named in the scope
// exists in the directory and that client is authorized for the requested
// access to each of them.
//
// Resource and delegate lookups are fanned out concurrently; Validate
// returns the first error encountered, cancelling the remaining lookups.
func Validate(ctx context.Context, dir directory.Directory, client *directory.Client, s *Scope) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- checkResourceGroup(ctx, dir, client, s.Resources, checkResourceAccess) }()
	go func() { errCh <- checkResourceGroup(ctx, dir, client, s.Delegates, checkDelegateAccess) }()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}

type accessChecker func(client *directory.Client, res directory.Resource, accesses map[Access]struct{}) error

func checkResourceGroup(ctx context.Context, dir directory.Directory, client *directory.Client, resources map[string]map[Access]struct{}, check accessChecker) error {
	ids := map[string]map[Access]struct{}{}
	urls := map[string]map[Access]struct{}{}
	for key, accesses := range resources {
		if strings.HasPrefix(key, "http") {
			urls[key] = accesses
		} else {
			ids[key] = accesses
		}
	}

	errCh := make(chan error, len(ids)+len(urls))
	for id, accesses := range ids {
		go func(id string, accesses map[Access]struct{}) {
			errCh <- checkByID(ctx, dir, client, id, accesses, check)
		}(id, accesses)
	}
	for url, accesses := range urls {
		go func(url string, accesses map[Access]struct{}) {
			errCh <- checkByURL(ctx, dir, client, url, accesses, check)
		}(url, accesses)
	}

	var firstErr error
	for i := 0; i < len(ids)+len(urls); i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func checkByID(ctx context.Context, dir directory.Directory, client *directory.Client, id string, accesses map[Access]struct{}, check accessChecker) error {
	res, err := dir.FindByKey(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: scope contains an unknown resource ID %q", ErrInvalidScope, id)
	}
	if _, err := dir.GetParent(ctx, res); err != nil {
		return fmt.Errorf("%w: invalid resource - missing parent %q", ErrInvalidScope, id)
	}
	return check(client, res, accesses)
}

func checkByURL(ctx context.Context, dir directory.Directory, client *directory.Client, url string, accesses map[Access]struct{}, check accessChecker) error {
	res, err := dir.GetServiceByLocation(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: scope contains an unknown location %q", ErrInvalidScope, url)
	}
	return check(client, res, accesses)
}

func checkResourceAccess(client *directory.Client, res directory.Resource, accesses map[Access]struct{}) error {
	requested := concatenateAccess(accesses)
	if !client.Authorized(requested, res) {
		return fmt.Errorf("%w: client %q does not have %q access to %q", ErrUnauthorized, client.ID, requested, res.Key())
	}
	return nil
}

func checkDelegateAccess(client *directory.Client, res directory.Resource, accesses map[Access]struct{}) error {
	if res.ResourceType() != directory.ResourceTypeService {
		return fmt.Errorf("%w: only services can be delegates, %q is a %s", ErrInvalidScope, res.Key(), res.ResourceType())
	}
	return checkResourceAccess(client, res, accesses)
}

func concatenateAccess(accesses map[Access]struct{}) string {
	seen := map[string]struct{}{}
	for a := range accesses {
		seen[a.Level] = struct{}{}
	}
	out := ""
	if _, ok := seen[AccessRead]; ok {
		out += AccessRead
	}
	if _, ok := seen[AccessWrite]; ok {
		out += AccessWrite
	}
	return out
}
