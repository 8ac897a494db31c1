// Package registry fetches best-effort package metadata from crates.io.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/crateguard/crateguard/internal/domain/analysis"
)

const (
	defaultBaseURL = "https://crates.io"
	lookupTimeout  = 10 * time.Second
)

// Client queries the crates.io API. Lookups are advisory: any failure or
// timeout yields (nil, nil) so a flaky registry never fails a unit.
type Client struct {
	http    *http.Client
	baseURL string
	log     *slog.Logger
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: lookupTimeout},
		baseURL: baseURL,
		log:     slog.Default().With("component", "registry"),
	}
}

type crateEnvelope struct {
	Crate struct {
		CreatedAt time.Time `json:"created_at"`
		Downloads *int64    `json:"downloads"`
	} `json:"crate"`
}

// Metadata performs GET /api/v1/crates/{name}.
func (c *Client) Metadata(ctx context.Context, name string) (*analysis.RegistryMetadata, error) {
	url := fmt.Sprintf("%s/api/v1/crates/%s", c.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil
	}
	req.Header.Set("User-Agent", "crateguard")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("registry lookup failed", "crate", name, "err", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Debug("registry lookup non-200", "crate", name, "status", resp.StatusCode)
		return nil, nil
	}

	var env crateEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.log.Debug("registry payload undecodable", "crate", name, "err", err)
		return nil, nil
	}
	return &analysis.RegistryMetadata{
		CreatedAt: env.Crate.CreatedAt,
		Downloads: env.Crate.Downloads,
	}, nil
}
