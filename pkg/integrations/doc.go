// Package integrations provides API clients for the remote hosts the
// metadata resolver talks to.
//
// # Overview
//
// Each subpackage implements a client for one host:
//
//   - [github]: repository trees and file contents at a pinned commit
//   - [gitlab]: repository trees and raw files at a pinned commit
//   - [crates]: published checksums from the crates.io sparse index
//
// The shared [Client] in this package handles the concerns common to all
// of them: response caching, retry with exponential backoff, default
// headers, and consistent status-code handling (404 becomes [ErrNotFound],
// 5xx becomes a retryable [ErrNetwork]).
//
// # Usage
//
//	backend, _ := cache.NewFileCache(dir)
//	gh := github.NewClient(backend, token, 24*time.Hour)
//	entries, err := gh.Tree(ctx, "serde-rs", "serde", commit, false)
//
// All clients are safe for concurrent use by multiple goroutines.
package integrations
