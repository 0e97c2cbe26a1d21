package resolver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 64 * 1024 * 1024 // 64MB, generous for a single package's artifacts
)

// HTTPRepository speaks a NuGet-v3-shaped package repository protocol:
//   - GET {baseURL}/{id}/index.json            -> {"versions": ["1.0.0", ...]}
//   - GET {baseURL}/{id}/{version}/variants.json -> [{"targetFramework": "...",
//     "files": {"lib/net8.0/Foo.dll": "<base64>"}}]
//
// The exact wire format belongs to the package repository collaborator,
// out of scope for this repo (spec.md §1); this client only needs to
// speak whatever shape the configured repository serves.
type HTTPRepository struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPRepository returns a repository client with a bounded per-request
// timeout, the same http.Client{Timeout: ...} shape used elsewhere in this
// repo for outbound fetches.
func NewHTTPRepository(baseURL string) *HTTPRepository {
	return &HTTPRepository{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: defaultTimeout},
	}
}

type versionIndexResponse struct {
	Versions []string `json:"versions"`
}

func (h *HTTPRepository) ListVersions(ctx context.Context, packageID string) ([]string, error) {
	var out versionIndexResponse
	if err := h.getJSON(ctx, fmt.Sprintf("%s/%s/index.json", h.BaseURL, packageID), &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

type variantResponse struct {
	TargetFramework string            `json:"targetFramework"`
	Files           map[string]string `json:"files"` // path -> base64 bytes
}

func (h *HTTPRepository) FetchVariants(ctx context.Context, packageID, version string) ([]Variant, error) {
	var resp []variantResponse
	url := fmt.Sprintf("%s/%s/%s/variants.json", h.BaseURL, packageID, version)
	if err := h.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	variants := make([]Variant, 0, len(resp))
	for _, v := range resp {
		files := make(map[string][]byte, len(v.Files))
		for path, encoded := range v.Files {
			data, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("decode artifact %s: %w", path, err)
			}
			files[path] = data
		}
		variants = append(variants, Variant{TargetFramework: v.TargetFramework, Files: files})
	}
	return variants, nil
}

func (h *HTTPRepository) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: not found", url)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
