package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"

	"github.com/slipway-io/slipway/credentials"
)

// isInteractive reports whether stdin is a terminal a prompt can use.
func isInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd())
}

// promptSecrets interactively collects credentials for scopes the
// environment did not provide. Prompted values live only in the resolver;
// nothing is written back to disk.
func promptSecrets(r *credentials.Resolver, scopes []credentials.Scope) error {
	for _, scope := range scopes {
		switch scope {
		case credentials.ScopeRegistryWrite:
			user, err := askText("Registry username", "")
			if err != nil {
				return err
			}
			pass, err := askPassword("Registry password")
			if err != nil {
				return err
			}
			r.SetRegistry(credentials.RegistryCredential{Username: user, Password: pass})
		case credentials.ScopeClusterAdmin:
			path, err := askText("Path to kubeconfig", defaultKubeconfigPath())
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading kubeconfig: %w", err)
			}
			r.SetKubeconfig(data)
		}
	}
	return nil
}

func defaultKubeconfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kube", "config")
}

// askText prompts for a text value with an optional default.
func askText(label, defaultVal string) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: defaultVal,
	}
	result, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("prompt %q failed: %w", label, err)
	}
	return result, nil
}

// askPassword prompts for a secret value with character masking.
func askPassword(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}
	result, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("prompt %q failed: %w", label, err)
	}
	return result, nil
}
