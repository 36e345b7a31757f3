package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/lector/internal/domain"
)

const detectTimeout = 10 * time.Second

// Detect probes a backend URL and returns the message from its health
// endpoint. It does not retry; setup uses it to validate user input.
func Detect(ctx context.Context, backendURL string) (string, error) {
	backendURL = strings.TrimRight(strings.TrimSpace(backendURL), "/")
	if !strings.HasPrefix(backendURL, "http://") && !strings.HasPrefix(backendURL, "https://") {
		return "", fmt.Errorf("invalid backend URL %q: must start with http:// or https://", backendURL)
	}

	client := &http.Client{
		Timeout: detectTimeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, backendURL+"/", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackendOffline, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var health healthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return "", fmt.Errorf("not a lector backend: %w", err)
	}
	if health.Status != "ok" {
		return "", fmt.Errorf("not a lector backend (status: %q)", health.Status)
	}
	return health.Message, nil
}
