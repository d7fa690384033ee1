package credentials

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// ParseEnvVars reads key=value pairs from an io.Reader.
// Supports # comments, double/single quotes, and export prefix.
func ParseEnvVars(r io.Reader) (map[string]string, error) {
	env := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		line = strings.TrimSpace(line)

		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		// Strip matching quotes
		if len(val) >= 2 {
			if (val[0] == '"' && val[len(val)-1] == '"') ||
				(val[0] == '\'' && val[len(val)-1] == '\'') {
				val = val[1 : len(val)-1]
			}
		}
		env[key] = val
	}
	return env, scanner.Err()
}

// LoadSecretsFile reads a .env style secrets file and applies the
// recognized SLIPWAY_* keys to the store. The file is a fallback: scopes
// already populated from the real environment are left alone. Missing
// files are not an error.
func LoadSecretsFile(r *Resolver, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	vars, err := ParseEnvVars(f)
	if err != nil {
		return err
	}

	user := vars[EnvRegistryUsername]
	pass := vars[EnvRegistryPassword]
	if user != "" && pass != "" && !r.Has(ScopeRegistryWrite) {
		r.SetRegistry(RegistryCredential{Username: user, Password: pass})
	}
	if kubePath := vars[EnvKubeconfig]; kubePath != "" && !r.Has(ScopeClusterAdmin) {
		data, err := os.ReadFile(kubePath)
		if err != nil {
			return err
		}
		r.SetKubeconfig(data)
	}
	return nil
}
