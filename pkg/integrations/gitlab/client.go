// Package gitlab provides access to the GitLab API for resolving the
// contents of a repository at a pinned commit.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matzehuels/lockvendor/pkg/cache"
	"github.com/matzehuels/lockvendor/pkg/integrations"
)

const perPage = 100

// Client provides access to the GitLab API. It handles HTTP requests with
// caching, automatic retries, and optional authentication.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a GitLab API client for the given host (e.g. "gitlab.com",
// including self-hosted instances) with optional authentication.
func NewClient(backend cache.Cache, host, token string, cacheTTL time.Duration) *Client {
	var headers map[string]string
	if token != "" {
		headers = map[string]string{"PRIVATE-TOKEN": token}
	}

	return &Client{
		Client:  integrations.NewClient(backend, "gitlab:"+host+":", cacheTTL, headers),
		baseURL: "https://" + host + "/api/v4",
	}
}

// Tree returns the paths of all blobs in the repository tree at the pinned
// commit. The project is the full namespace path ("group/subgroup/repo").
// If refresh is true, cached data is bypassed.
//
// Returns [integrations.ErrNotFound] if the project or commit doesn't exist.
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

// File returns the raw contents of a single file at the pinned commit.
//
// Returns [integrations.ErrNotFound] if the file doesn't exist at that commit.
func (c *Client) File(ctx context.Context, project, commit, path string, refresh bool) ([]byte, error) {
	key := fmt.Sprintf("file:%s@%s:%s", project, commit, path)

	var content []byte
	err := c.Cached(ctx, key, refresh, &content, func() error {
		url := fmt.Sprintf("%s/projects/%s/repository/files/%s/raw?ref=%s",
			c.baseURL, integrations.URLEncode(project), integrations.URLEncode(path), commit)
		text, err := c.GetText(ctx, url)
		if err != nil {
			if errors.Is(err, integrations.ErrNotFound) {
				return fmt.Errorf("%w: %s in %s at %s", err, path, project, commit)
			}
			return err
		}
		content = []byte(text)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (c *Client) fetchTree(ctx context.Context, project, commit string, paths *[]string) error {
	*paths = (*paths)[:0]
	for page := 1; ; page++ {
		var entries []treeEntry
		url := fmt.Sprintf("%s/projects/%s/repository/tree?ref=%s&recursive=true&per_page=%d&page=%d",
			c.baseURL, integrations.URLEncode(project), commit, perPage, page)
		if err := c.Get(ctx, url, &entries); err != nil {
			if errors.Is(err, integrations.ErrNotFound) {
				return fmt.Errorf("%w: gitlab project %s at %s", err, project, commit)
			}
			return err
		}

		for _, e := range entries {
			if e.Type == "blob" {
				*paths = append(*paths, e.Path)
			}
		}
		if len(entries) < perPage {
			return nil
		}
	}
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}
