// Package credentials holds the secrets a pipeline run needs and hands them
// out as scoped, releasable handles. The store is populated once at process
// start; stages receive exactly the scope their kind requires and release it
// when they finish.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Scope names a class of credential a stage may request.
type Scope string

const (
	// ScopeRegistryWrite authorizes pushing tags to the image registry.
	ScopeRegistryWrite Scope = "registry-write"
	// ScopeClusterAdmin authorizes applying manifests and reading rollout
	// state on the target cluster.
	ScopeClusterAdmin Scope = "cluster-admin"
)

// ErrScopeUnavailable is returned by Resolve and Check when the store was
// never populated with a credential for the requested scope.
var ErrScopeUnavailable = errors.New("credential scope unavailable")

// RegistryCredential is a registry write credential.
type RegistryCredential struct {
	Username string
	Password string
}

// String keeps the password out of accidental %v formatting.
func (c RegistryCredential) String() string {
	return c.Username + ":" + Marker
}

// Resolver is the in-memory credential store. It is constructed at process
// start and passed explicitly to the components that need it; nothing in
// this package keeps package-level state.
type Resolver struct {
	mu          sync.Mutex
	registry    *RegistryCredential
	kubeconfig  []byte
	outstanding int
}

// Environment variables read by FromEnv.
const (
	EnvRegistryUsername     = "SLIPWAY_REGISTRY_USERNAME"
	EnvRegistryPassword     = "SLIPWAY_REGISTRY_PASSWORD"
	EnvRegistryPasswordFile = "SLIPWAY_REGISTRY_PASSWORD_FILE"
	EnvKubeconfig           = "SLIPWAY_KUBECONFIG"
)

// NewResolver creates an empty store. Populate it with SetRegistry and
// SetKubeconfig.
func NewResolver() *Resolver {
	return &Resolver{}
}

// FromEnv populates a store from the process environment. Unset variables
// leave the matching scope unavailable; that only becomes an error when a
// pipeline needing the scope is run. A password file named but unreadable
// is an immediate error.
func FromEnv() (*Resolver, error) {
	r := NewResolver()

	user := os.Getenv(EnvRegistryUsername)
	pass := os.Getenv(EnvRegistryPassword)
	if passFile := os.Getenv(EnvRegistryPasswordFile); pass == "" && passFile != "" {
		data, err := os.ReadFile(passFile)
		if err != nil {
			return nil, fmt.Errorf("reading registry password file: %w", err)
		}
		pass = strings.TrimSpace(string(data))
	}
	if user != "" && pass != "" {
		r.SetRegistry(RegistryCredential{Username: user, Password: pass})
	}

	kubePath := os.Getenv(EnvKubeconfig)
	if kubePath == "" {
		kubePath = os.Getenv("KUBECONFIG")
	}
	if kubePath != "" {
		data, err := os.ReadFile(kubePath)
		if err != nil {
			return nil, fmt.Errorf("reading kubeconfig %s: %w", kubePath, err)
		}
		r.SetKubeconfig(data)
	}

	return r, nil
}

// SetRegistry installs the registry-write credential.
func (r *Resolver) SetRegistry(c RegistryCredential) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registry = &c
}

// SetKubeconfig installs the cluster-admin credential material.
func (r *Resolver) SetKubeconfig(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kubeconfig = data
}

// Has reports whether the store holds a credential for scope.
func (r *Resolver) Has(scope Scope) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch scope {
	case ScopeRegistryWrite:
		return r.registry != nil
	case ScopeClusterAdmin:
		return len(r.kubeconfig) > 0
	}
	return false
}

// Check verifies every scope is resolvable, naming all missing ones so a
// run can fail before any stage produces side effects.
func (r *Resolver) Check(scopes ...Scope) error {
	var missing []string
	for _, s := range scopes {
		if !r.Has(s) {
			missing = append(missing, string(s)+" ("+scopeHint(s)+")")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrScopeUnavailable, strings.Join(missing, ", "))
	}
	return nil
}

func scopeHint(s Scope) string {
	switch s {
	case ScopeRegistryWrite:
		return "set " + EnvRegistryUsername + " and " + EnvRegistryPassword
	case ScopeClusterAdmin:
		return "set " + EnvKubeconfig
	}
	return "unknown scope"
}

// Resolve hands out a scoped handle. The caller must Release it when the
// stage finishes, on every exit path.
func (r *Resolver) Resolve(scope Scope) (*ScopedCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &ScopedCredential{scope: scope, resolver: r}
	switch scope {
	case ScopeRegistryWrite:
		if r.registry == nil {
			return nil, fmt.Errorf("%w: %s (%s)", ErrScopeUnavailable, scope, scopeHint(scope))
		}
		c.registry = *r.registry
	case ScopeClusterAdmin:
		if len(r.kubeconfig) == 0 {
			return nil, fmt.Errorf("%w: %s (%s)", ErrScopeUnavailable, scope, scopeHint(scope))
		}
		c.kubeconfig = append([]byte(nil), r.kubeconfig...)
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", ErrScopeUnavailable, scope)
	}

	r.outstanding++
	return c, nil
}

// Outstanding returns the number of handles resolved but not yet released.
// A run that ends with outstanding handles has leaked a credential scope.
func (r *Resolver) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outstanding
}

// SecretValues returns every secret string the store holds, for building
// output redaction. Values shorter than four bytes are omitted so a
// degenerate secret cannot blank out arbitrary output.
func (r *Resolver) SecretValues() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var values []string
	if r.registry != nil && len(r.registry.Password) >= 4 {
		values = append(values, r.registry.Password)
	}
	if len(r.kubeconfig) >= 4 {
		values = append(values, string(r.kubeconfig))
	}
	return values
}

// ScopedCredential is a single stage's lease on one credential scope.
// Accessors for the wrong scope return zero values.
type ScopedCredential struct {
	scope      Scope
	registry   RegistryCredential
	kubeconfig []byte

	resolver *Resolver
	released bool
}

// Scope returns the scope this handle was resolved for.
func (c *ScopedCredential) Scope() Scope { return c.scope }

// Registry returns the registry credential for a registry-write handle.
func (c *ScopedCredential) Registry() RegistryCredential {
	if c.scope != ScopeRegistryWrite {
		return RegistryCredential{}
	}
	return c.registry
}

// Kubeconfig returns the kubeconfig material for a cluster-admin handle.
func (c *ScopedCredential) Kubeconfig() []byte {
	if c.scope != ScopeClusterAdmin {
		return nil
	}
	return c.kubeconfig
}

// Release returns the lease to the store. It is safe to call more than
// once; only the first call counts.
func (c *ScopedCredential) Release() {
	if c == nil || c.resolver == nil {
		return
	}
	c.resolver.mu.Lock()
	defer c.resolver.mu.Unlock()
	if c.released {
		return
	}
	c.released = true
	c.resolver.outstanding--
}
