// Package pkg provides the core libraries for lockvendor manifest generation.
//
// # Overview
//
// Lockvendor reads a Cargo.lock and emits a manifest of every remote source
// the locked build depends on, plus the cargo configuration that redirects
// those sources to a local vendor directory for fully offline builds. The
// pkg directory is organized into three main areas:
//
//  1. Domain logic - lockfile parsing, source classification, resolution,
//     and manifest assembly
//  2. Infrastructure - caching, retry, and structured errors
//  3. Integrations - HTTP clients for code hosts and the crates.io index
//
// # Architecture
//
// The typical data flow through lockvendor:
//
//	Cargo.lock
//	     ↓
//	[lockfile] package (parse + validate)
//	     ↓
//	[source] package (classify + deduplicate into groups)
//	     ↓
//	[resolve] package (fill git subpaths, verify checksums)
//	     ↓
//	[manifest] package (assemble + write generated-sources.json)
//
// # Main Packages
//
// [lockfile] - Cargo.lock parsing. Handles modern [[package]] tables and
// folds legacy v1 [metadata] checksums into their packages.
//
// [source] - Source classification and grouping. Maps every locked package
// to a registry archive, a git checkout at a pinned commit, or a local path,
// and deduplicates registry pins and (repository, commit) pairs.
//
// [resolve] - Metadata resolution over hosting provider APIs. Locates each
// git package's subdirectory inside its checkout on a bounded worker pool,
// and optionally cross-checks crates.io checksums.
//
// [manifest] - Manifest assembly and atomic output. Produces the sorted
// source list and the cargo vendor-redirection configuration.
//
// ## Infrastructure
//
// [cache] - HTTP response caching. FileCache for persistent CLI use,
// NullCache for cache-free runs and testing.
//
// [errors] - Structured errors with stable codes for the fatal conditions a
// lockfile can trigger.
//
// [httputil] - Retry with exponential backoff for transient network errors.
//
// ## External Integrations
//
// [integrations] - Shared HTTP client with response caching, plus clients
// for GitHub, GitLab (including self-hosted), and the crates.io sparse
// index.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...          # All tests
//	go test ./pkg/source/...   # Specific package
//
// [lockfile]: https://pkg.go.dev/github.com/matzehuels/lockvendor/pkg/lockfile
// [source]: https://pkg.go.dev/github.com/matzehuels/lockvendor/pkg/source
// [resolve]: https://pkg.go.dev/github.com/matzehuels/lockvendor/pkg/resolve
// [manifest]: https://pkg.go.dev/github.com/matzehuels/lockvendor/pkg/manifest
// [cache]: https://pkg.go.dev/github.com/matzehuels/lockvendor/pkg/cache
// [errors]: https://pkg.go.dev/github.com/matzehuels/lockvendor/pkg/errors
// [httputil]: https://pkg.go.dev/github.com/matzehuels/lockvendor/pkg/httputil
// [integrations]: https://pkg.go.dev/github.com/matzehuels/lockvendor/pkg/integrations
package pkg
