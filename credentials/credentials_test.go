package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveAndRelease(t *testing.T) {
	r := NewResolver()
	r.SetRegistry(RegistryCredential{Username: "acme", Password: "hunter22"})

	c, err := r.Resolve(ScopeRegistryWrite)
	if err != nil {
		t.Fatalf("Resolve(registry-write) returned error: %v", err)
	}
	if c.Scope() != ScopeRegistryWrite {
		t.Errorf("Scope() = %q, want registry-write", c.Scope())
	}
	if got := c.Registry(); got.Username != "acme" || got.Password != "hunter22" {
		t.Errorf("Registry() = %+v, want acme credential", got.Username)
	}
	if got := r.Outstanding(); got != 1 {
		t.Errorf("Outstanding() = %d, want 1", got)
	}

	c.Release()
	if got := r.Outstanding(); got != 0 {
		t.Errorf("Outstanding() after release = %d, want 0", got)
	}

	// Release is idempotent.
	c.Release()
	if got := r.Outstanding(); got != 0 {
		t.Errorf("Outstanding() after double release = %d, want 0", got)
	}
}

func TestResolveMissingScope(t *testing.T) {
	r := NewResolver()

	_, err := r.Resolve(ScopeClusterAdmin)
	if !errors.Is(err, ErrScopeUnavailable) {
		t.Fatalf("Resolve error = %v, want ErrScopeUnavailable", err)
	}
	if !strings.Contains(err.Error(), "cluster-admin") {
		t.Errorf("error does not identify the scope: %v", err)
	}
	if !strings.Contains(err.Error(), EnvKubeconfig) {
		t.Errorf("error does not hint at the fix: %v", err)
	}
}

func TestCheckNamesAllMissingScopes(t *testing.T) {
	r := NewResolver()

	err := r.Check(ScopeRegistryWrite, ScopeClusterAdmin)
	if !errors.Is(err, ErrScopeUnavailable) {
		t.Fatalf("Check error = %v, want ErrScopeUnavailable", err)
	}
	for _, scope := range []string{"registry-write", "cluster-admin"} {
		if !strings.Contains(err.Error(), scope) {
			t.Errorf("Check error missing scope %s: %v", scope, err)
		}
	}

	r.SetRegistry(RegistryCredential{Username: "acme", Password: "hunter22"})
	r.SetKubeconfig([]byte("apiVersion: v1\nkind: Config\n"))
	if err := r.Check(ScopeRegistryWrite, ScopeClusterAdmin); err != nil {
		t.Errorf("Check with populated store returned error: %v", err)
	}
}

func TestScopedAccessorsWrongScope(t *testing.T) {
	r := NewResolver()
	r.SetKubeconfig([]byte("apiVersion: v1\nkind: Config\n"))

	c, err := r.Resolve(ScopeClusterAdmin)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	defer c.Release()

	if got := c.Registry(); got != (RegistryCredential{}) {
		t.Errorf("Registry() on cluster handle = %+v, want zero", got)
	}
	if len(c.Kubeconfig()) == 0 {
		t.Error("Kubeconfig() on cluster handle is empty")
	}
}

func TestFromEnv(t *testing.T) {
	dir := t.TempDir()
	kubePath := filepath.Join(dir, "kubeconfig")
	if err := os.WriteFile(kubePath, []byte("apiVersion: v1\nkind: Config\n"), 0o600); err != nil {
		t.Fatalf("writing kubeconfig: %v", err)
	}

	t.Setenv(EnvRegistryUsername, "acme")
	t.Setenv(EnvRegistryPassword, "hunter22")
	t.Setenv(EnvKubeconfig, kubePath)

	r, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}
	if !r.Has(ScopeRegistryWrite) {
		t.Error("registry-write scope not populated from env")
	}
	if !r.Has(ScopeClusterAdmin) {
		t.Error("cluster-admin scope not populated from env")
	}
}

func TestFromEnvPasswordFile(t *testing.T) {
	dir := t.TempDir()
	passPath := filepath.Join(dir, "password")
	if err := os.WriteFile(passPath, []byte("hunter22\n"), 0o600); err != nil {
		t.Fatalf("writing password file: %v", err)
	}

	t.Setenv(EnvRegistryUsername, "acme")
	t.Setenv(EnvRegistryPassword, "")
	t.Setenv(EnvRegistryPasswordFile, passPath)
	t.Setenv(EnvKubeconfig, "")
	t.Setenv("KUBECONFIG", "")

	r, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}
	c, err := r.Resolve(ScopeRegistryWrite)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	defer c.Release()
	if got := c.Registry().Password; got != "hunter22" {
		t.Errorf("password from file = %q, want hunter22", got)
	}
}

func TestSecretValuesSkipsShortSecrets(t *testing.T) {
	r := NewResolver()
	r.SetRegistry(RegistryCredential{Username: "acme", Password: "ab"})

	if got := r.SecretValues(); len(got) != 0 {
		t.Errorf("SecretValues() = %v, want none for a two-byte password", got)
	}
}

func TestRegistryCredentialStringRedacts(t *testing.T) {
	c := RegistryCredential{Username: "acme", Password: "hunter22"}
	s := c.String()
	if strings.Contains(s, "hunter22") {
		t.Errorf("String() leaked the password: %q", s)
	}
	if !strings.Contains(s, Marker) {
		t.Errorf("String() = %q, want marker", s)
	}
}
