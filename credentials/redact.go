package credentials

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Marker replaces secret material in redacted output.
const Marker = "[REDACTED]"

// Patterns that leak credentials even when the literal secret value is not
// present, e.g. basic auth baked into URLs by external tools.
var leakPatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{
		pattern:     regexp.MustCompile(`https?://[^:/\s]+:[^@\s]+@`),
		replacement: "https://" + Marker + "@",
	},
	{
		pattern:     regexp.MustCompile(`"auth":\s*"[^"]+"`),
		replacement: `"auth": "` + Marker + `"`,
	},
	{
		pattern:     regexp.MustCompile(`[Aa]uthorization:\s*[A-Za-z]+\s+[A-Za-z0-9+/=._-]+`),
		replacement: "Authorization: " + Marker,
	},
}

// Redactor rewrites captured output so no configured secret value survives
// into stored results or logs.
type Redactor struct {
	mu      sync.RWMutex
	secrets []string
}

// NewRedactor builds a redactor over the given secret values. Empty values
// are ignored. Longer secrets are applied first so a secret that contains
// another is not partially replaced.
func NewRedactor(values ...string) *Redactor {
	r := &Redactor{}
	r.Add(values...)
	return r
}

// Add registers further secret values, for credentials discovered after
// construction.
func (r *Redactor) Add(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range values {
		if v == "" {
			continue
		}
		r.secrets = append(r.secrets, v)
	}
	sort.Slice(r.secrets, func(i, j int) bool {
		return len(r.secrets[i]) > len(r.secrets[j])
	})
}

// Redact replaces every known secret value and credential-shaped pattern
// in s with the marker.
func (r *Redactor) Redact(s string) string {
	r.mu.RLock()
	secrets := r.secrets
	r.mu.RUnlock()

	for _, secret := range secrets {
		s = strings.ReplaceAll(s, secret, Marker)
	}
	for _, lp := range leakPatterns {
		s = lp.pattern.ReplaceAllString(s, lp.replacement)
	}
	return s
}
