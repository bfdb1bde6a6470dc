// Package crates provides access to the crates.io sparse index for
// cross-checking the checksums recorded in a lockfile against the
// checksums the registry actually published.
package crates

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/lockvendor/pkg/cache"
	"github.com/matzehuels/lockvendor/pkg/integrations"
)

// Client provides access to the crates.io sparse index.
// It handles HTTP requests with caching and automatic retries.
//
// All methods are safe for concurrent use by multiple goroutines.
//
// Note: crates.io requires a User-Agent header; this client sets one automatically.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a crates.io sparse-index client with the given cache backend.
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	headers := map[string]string{
		"User-Agent": "lockvendor/1.0 (https://github.com/matzehuels/lockvendor)",
	}
	return &Client{
		Client:  integrations.NewClient(backend, "crates:", cacheTTL, headers),
		baseURL: "https://index.crates.io",
	}
}

// Checksum returns the SHA-256 checksum the registry published for the
// given crate version. If refresh is true, the cache is bypassed.
//
// Returns [integrations.ErrNotFound] if the crate or the exact version
// doesn't exist in the index.
func (c *Client) Checksum(ctx context.Context, name, version string, refresh bool) (string, error) {
	key := fmt.Sprintf("cksum:%s@%s", name, version)

	var cksum string
	err := c.Cached(ctx, key, refresh, &cksum, func() error {
		return c.fetchChecksum(ctx, name, version, &cksum)
	})
	if err != nil {
		return "", err
	}
	return cksum, nil
}

func (c *Client) fetchChecksum(ctx context.Context, name, version string, cksum *string) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, IndexPath(name))
	text, err := c.GetText(ctx, url)
	if err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: crate %s", err, name)
		}
		return err
	}

	// The sparse index serves one JSON object per line, one line per
	// published version.
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line indexLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Version == version {
			*cksum = line.Checksum
			return nil
		}
	}
	return fmt.Errorf("%w: crate %s version %s", integrations.ErrNotFound, name, version)
}

// IndexPath returns the sparse-index path for a crate name, following the
// registry's sharding scheme: 1-character names under "1/", 2-character
// names under "2/", 3-character names under "3/<first-char>/", and longer
// names under "<chars 1-2>/<chars 3-4>/".
func IndexPath(name string) string {
	lower := strings.ToLower(name)
	switch len(lower) {
	case 0:
		return lower
	case 1:
		return "1/" + lower
	case 2:
		return "2/" + lower
	case 3:
		return "3/" + lower[:1] + "/" + lower
	default:
		return lower[:2] + "/" + lower[2:4] + "/" + lower
	}
}

type indexLine struct {
	Version  string `json:"vers"`
	Checksum string `json:"cksum"`
}
