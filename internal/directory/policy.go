package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// PolicyDirectory decorates a Directory's authorization decision with an
// optional per-organisation CEL expression, evaluated against the access
// level and target resource before the client's static grants are
// consulted. When an organisation has no policy expression configured,
// decisions pass straight through to the static grant check.
//
// Expressions see three variables: `access` (string, "r"/"w"/"rw"),
// `client_id` (string) and `target_id` (string), e.g.:
//
//	access == "w" && target_id.startsWith("repo-")
type PolicyDirectory struct {
	Directory

	mu       sync.RWMutex
	programs map[string]cel.Program // organisation ID -> compiled policy
	env      *cel.Env
}

// NewPolicyDirectory wraps source. Policy expressions are compiled lazily
// the first time a client belonging to that organisation is authorized.
func NewPolicyDirectory(source Directory) (*PolicyDirectory, error) {
	env, err := cel.NewEnv(
		cel.Variable("access", cel.StringType),
		cel.Variable("client_id", cel.StringType),
		cel.Variable("target_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build policy CEL environment: %w", err)
	}

	return &PolicyDirectory{
		Directory: source,
		programs:  make(map[string]cel.Program),
		env:       env,
	}, nil
}

// Authorize evaluates, in addition to client.Authorized, any policy
// expression configured on the organisation owning target. It returns false
// if either check fails.
func (p *PolicyDirectory) Authorize(ctx context.Context, client *Client, access string, target Resource) (bool, error) {
	if !client.Authorized(access, target) {
		return false, nil
	}

	org, err := p.GetParent(ctx, target)
	if err != nil {
		return false, err
	}
	if org.PolicyExpression == "" {
		return true, nil
	}

	prog, err := p.program(org)
	if err != nil {
		return false, err
	}

	out, _, err := prog.Eval(map[string]any{
		"access":    access,
		"client_id": client.ID,
		"target_id": target.Key(),
	})
	if err != nil {
		return false, fmt.Errorf("policy evaluation failed for organisation %s: %w", org.ID, err)
	}

	allowed, ok := out.Value().(bool)
	return ok && allowed, nil
}

func (p *PolicyDirectory) program(org Organisation) (cel.Program, error) {
	p.mu.RLock()
	prog, ok := p.programs[org.ID]
	p.mu.RUnlock()
	if ok {
		return prog, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if prog, ok := p.programs[org.ID]; ok {
		return prog, nil
	}

	ast, issues := p.env.Compile(org.PolicyExpression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid policy expression for organisation %s: %w", org.ID, issues.Err())
	}
	prog, err := p.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build policy program for organisation %s: %w", org.ID, err)
	}

	p.programs[org.ID] = prog
	return prog, nil
}
