package container

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultRegistryURL is probed when the runner configuration does not name
// an explicit registry endpoint.
const DefaultRegistryURL = "https://registry-1.docker.io"

var registryClient = &http.Client{Timeout: 10 * time.Second}

// CheckRegistryReachable probes the registry's /v2/ endpoint before a push
// so network and endpoint failures surface early. A 401 counts as
// reachable: the registry answered and merely wants credentials.
func CheckRegistryReachable(ctx context.Context, baseURL string) error {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}
	url := strings.TrimSuffix(baseURL, "/") + "/v2/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building registry probe request: %w", err)
	}

	resp, err := registryClient.Do(req)
	if err != nil {
		return fmt.Errorf("reaching registry %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("unexpected response from registry %s: %d", baseURL, resp.StatusCode)
	}
	return nil
}
