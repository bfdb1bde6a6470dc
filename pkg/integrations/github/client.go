// Package github provides access to the GitHub API for resolving the
// contents of a repository at a pinned commit.
package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/matzehuels/lockvendor/pkg/cache"
	"github.com/matzehuels/lockvendor/pkg/integrations"
)

// Client provides access to the GitHub API. It handles HTTP requests with
// caching, automatic retries, and optional authentication.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a GitHub API client with optional authentication.
// Pass an empty string for token to use unauthenticated requests (lower rate limits).
func NewClient(backend cache.Cache, token string, cacheTTL time.Duration) *Client {
	headers := map[string]string{"Accept": "application/vnd.github.v3+json"}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	return &Client{
		Client:  integrations.NewClient(backend, "github:", cacheTTL, headers),
		baseURL: "https://api.github.com",
	}
}

// Tree returns the paths of all blobs in the repository tree at the pinned
// commit. The project is the "owner/repo" path. If refresh is true, cached
// data is bypassed.
//
// Returns [integrations.ErrNotFound] if the repository or commit doesn't exist.
func (c *Client) Tree(ctx context.Context, project, commit string, refresh bool) ([]string, error) {
	key := fmt.Sprintf("tree:%s@%s", project, commit)

	var paths []string
	err := c.Cached(ctx, key, refresh, &paths, func() error {
		return c.fetchTree(ctx, project, commit, &paths)
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// File returns the contents of a single file at the pinned commit.
//
// Returns [integrations.ErrNotFound] if the file doesn't exist at that commit.
func (c *Client) File(ctx context.Context, project, commit, path string, refresh bool) ([]byte, error) {
	key := fmt.Sprintf("file:%s@%s:%s", project, commit, path)

	var content []byte
	err := c.Cached(ctx, key, refresh, &content, func() error {
		return c.fetchFile(ctx, project, commit, path, &content)
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (c *Client) fetchTree(ctx context.Context, project, commit string, paths *[]string) error {
	var data treeResponse
	url := fmt.Sprintf("%s/repos/%s/git/trees/%s?recursive=1", c.baseURL, project, commit)
	if err := c.Get(ctx, url, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: github repo %s at %s", err, project, commit)
		}
		return err
	}
	if data.Truncated {
		// The tree API caps responses at ~100k entries; crate repos never
		// come close, but fail loudly rather than resolve from a partial tree.
		return fmt.Errorf("github tree for %s at %s is truncated", project, commit)
	}

	*paths = (*paths)[:0]
	for _, e := range data.Tree {
		if e.Type == "blob" {
			*paths = append(*paths, e.Path)
		}
	}
	return nil
}

func (c *Client) fetchFile(ctx context.Context, project, commit, path string, content *[]byte) error {
	var data contentResponse
	url := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s", c.baseURL, project, path, commit)
	if err := c.Get(ctx, url, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: %s in %s at %s", err, path, project, commit)
		}
		return err
	}

	switch data.Encoding {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(stripNewlines(data.Content))
		if err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		*content = decoded
	default:
		*content = []byte(data.Content)
	}
	return nil
}

// stripNewlines removes the line breaks GitHub inserts into base64 payloads.
func stripNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\n' && s[i] != '\r' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}
