package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a repository, revision, or crate doesn't
	// exist at the queried host.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout for host requests.
// An attempt that exceeds the timeout surfaces as a retryable network error.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
	"git@gitlab.com:", "https://gitlab.com/",
)

// NormalizeRepoURL converts various repository URL formats to canonical HTTPS form.
// Handles git@, git://, and git+ prefixes, and removes .git suffixes.
// Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	return strings.TrimSuffix(s, ".git")
}

// SplitRepoURL breaks a normalized repository URL into its host and project
// path ("owner/repo" or a deeper group path on GitLab). The project path
// never carries a leading or trailing slash.
func SplitRepoURL(repo string) (host, project string, err error) {
	u, err := url.Parse(repo)
	if err != nil {
		return "", "", err
	}
	project = strings.Trim(u.Path, "/")
	project = strings.TrimSuffix(project, ".git")
	return u.Host, project, nil
}

// URLEncode percent-encodes a string for use in URL path segments.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }
