// Package httputil provides retry support for the HTTP clients that query
// package registries and repository hosts.
//
// [Retry] wraps a request with automatic retry for transient failures:
//
//   - Network errors
//   - 5xx server errors
//   - Attempt timeouts
//
// Only errors wrapped with [RetryableError] are retried; definitive answers
// (404, malformed responses) fail immediately. Exponential backoff doubles
// the delay after each attempt, and cancellation is observed between
// attempts so an aborted run never sits out its full retry budget.
package httputil
