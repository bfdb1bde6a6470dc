// Package resolve fills the metadata gaps the lockfile doesn't carry.
//
// The lock pins a git dependency to (repository, commit) but doesn't record
// where inside the checkout each package lives, which matters when the
// repository is a multi-package workspace. The resolver asks the hosting
// provider for the repository tree at the pinned commit and maps every
// package to its manifest directory.
//
// Lookups run on a bounded worker pool, one task per distinct
// (repository, commit) group - never per package - with results merged back
// by group key so the output order is independent of completion order.
package resolve

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/lockvendor/pkg/errors"
	"github.com/matzehuels/lockvendor/pkg/integrations"
	"github.com/matzehuels/lockvendor/pkg/source"
)

// DefaultJobs is the default concurrency ceiling for remote lookups.
// Kept small to avoid hammering the hosting providers.
const DefaultJobs = 4

// RepoHost answers questions about a repository at a pinned commit.
// Implemented by the github and gitlab integration clients.
type RepoHost interface {
	// Tree returns the paths of all files at the commit.
	Tree(ctx context.Context, project, commit string, refresh bool) ([]string, error)
	// File returns the contents of one file at the commit.
	File(ctx context.Context, project, commit, path string, refresh bool) ([]byte, error)
}

// ChecksumSource looks up the checksum a registry published for a version.
// Implemented by the crates integration client.
type ChecksumSource interface {
	Checksum(ctx context.Context, name, version string, refresh bool) (string, error)
}

// Options controls a resolution run.
type Options struct {
	// Jobs caps concurrent remote lookups. Defaults to DefaultJobs.
	Jobs int
	// Refresh bypasses the HTTP response cache.
	Refresh bool
	// VerifyChecksums cross-checks every crates.io archive checksum in the
	// lock against the checksum the registry actually published.
	VerifyChecksums bool
	// Logger receives warnings and progress messages. Defaults to a no-op.
	Logger func(msg string, args ...any)
}

func (o Options) withDefaults() Options {
	if o.Jobs <= 0 {
		o.Jobs = DefaultJobs
	}
	if o.Logger == nil {
		o.Logger = func(string, ...any) {}
	}
	return o
}

// Resolver resolves git subdirectories and optionally verifies registry
// checksums. Safe for a single Resolve call at a time per instance.
type Resolver struct {
	// HostFor returns the client for a repository host, or nil when the
	// host is not supported.
	HostFor func(host string) RepoHost
	// Registry is consulted when Options.VerifyChecksums is set. May be nil.
	Registry ChecksumSource

	mu      sync.Mutex
	claimed map[string]bool
}

// New creates a Resolver with the given host lookup and registry client.
func New(hostFor func(host string) RepoHost, registry ChecksumSource) *Resolver {
	return &Resolver{HostFor: hostFor, Registry: registry}
}

// Resolve fills the Subpath of every package in every git group, and
// verifies registry checksums when requested. Groups are mutated in place;
// entry order never changes, so the result is deterministic regardless of
// which lookups finish first.
//
// Any definitive failure (unknown host, missing repository or revision,
// package absent from the checkout, checksum mismatch) aborts the whole
// run: a manifest that silently omits a dependency is worse than a build
// that fails loudly.
func (r *Resolver) Resolve(ctx context.Context, groups *source.Groups, opts Options) error {
	opts = opts.withDefaults()

	r.mu.Lock()
	r.claimed = make(map[string]bool)
	r.mu.Unlock()

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Jobs)

	for i := range groups.Git {
		g := &groups.Git[i]
		if !r.claim(g.Key()) {
			continue
		}
		eg.Go(func() error {
			return r.resolveGit(ctx, g, opts)
		})
	}

	if opts.VerifyChecksums && r.Registry != nil {
		for i := range groups.Registry {
			g := &groups.Registry[i]
			if !r.claim(g.Key()) {
				continue
			}
			eg.Go(func() error {
				return r.verifyChecksum(ctx, g, opts)
			})
		}
	}

	return eg.Wait()
}

// claim marks a group key as dispatched. The first caller wins; duplicate
// keys are never queried twice within a run.
func (r *Resolver) claim(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimed[key] {
		return false
	}
	r.claimed[key] = true
	return true
}

func (r *Resolver) resolveGit(ctx context.Context, g *source.GitGroup, opts Options) error {
	host, project, err := integrations.SplitRepoURL(g.RepoURL)
	if err != nil || host == "" || project == "" {
		return errors.New(errors.ErrCodeResolution,
			"cannot determine host for git source %s", g.RepoURL)
	}

	client := r.HostFor(host)
	if client == nil {
		return errors.New(errors.ErrCodeResolution,
			"no metadata endpoint known for host %s (source %s)", host, g.RepoURL)
	}

	opts.Logger("resolving %s at %s", g.RepoURL, shortCommit(g.Commit))

	paths, err := client.Tree(ctx, project, g.Commit, opts.Refresh)
	if err != nil {
		return errors.Wrap(errors.ErrCodeResolution, err,
			"listing %s at %s", g.RepoURL, shortCommit(g.Commit))
	}

	dirs := manifestDirs(paths)
	if len(dirs) == 0 {
		return errors.New(errors.ErrCodeResolution,
			"%s at %s contains no Cargo.toml", g.RepoURL, shortCommit(g.Commit))
	}

	// Manifest names are fetched lazily and memoized; a basename match
	// avoids the extra lookup entirely for conventionally laid-out repos.
	names := make(map[string]string)
	lookup := func(dir string) (string, error) {
		if name, ok := names[dir]; ok {
			return name, nil
		}
		data, err := client.File(ctx, project, g.Commit, path.Join(dir, "Cargo.toml"), opts.Refresh)
		if err != nil {
			return "", err
		}
		name := manifestPackageName(data)
		names[dir] = name
		return name, nil
	}

	for i := range g.Packages {
		pkg := &g.Packages[i]
		subpath, err := locatePackage(pkg.Name, dirs, lookup)
		if err != nil {
			return errors.Wrap(errors.ErrCodeResolution, err,
				"locating package %s in %s at %s", pkg.Name, g.RepoURL, shortCommit(g.Commit))
		}
		if subpath == notFound {
			return errors.New(errors.ErrCodeResolution,
				"package %s not found in %s at %s", pkg.Name, g.RepoURL, shortCommit(g.Commit))
		}
		pkg.Subpath = subpath
	}
	return nil
}

func (r *Resolver) verifyChecksum(ctx context.Context, g *source.RegistryGroup, opts Options) error {
	if !strings.HasPrefix(g.DownloadURL, "https://static.crates.io/") {
		// Only crates.io publishes a queryable sparse index.
		opts.Logger("skipping checksum verification for %s (not a crates.io archive)", g.Name)
		return nil
	}

	published, err := r.Registry.Checksum(ctx, g.Name, g.Version, opts.Refresh)
	if err != nil {
		return errors.Wrap(errors.ErrCodeResolution, err,
			"fetching published checksum for %s %s", g.Name, g.Version)
	}
	if published != g.Checksum {
		return errors.New(errors.ErrCodeChecksumMismatch,
			"checksum for %s %s does not match the registry: lock has %s, registry published %s",
			g.Name, g.Version, g.Checksum, published)
	}
	return nil
}

// notFound marks a package that matched no manifest directory. An empty
// string is a valid subpath (the repository root), so a sentinel is needed.
const notFound = "\x00"

// locatePackage maps a package name to its manifest directory. Directories
// whose basename equals the package name are checked first; if none
// confirms, every manifest in the checkout is inspected.
func locatePackage(name string, dirs []string, lookup func(dir string) (string, error)) (string, error) {
	var candidates, rest []string
	for _, dir := range dirs {
		if path.Base(dir) == name {
			candidates = append(candidates, dir)
		} else {
			rest = append(rest, dir)
		}
	}

	// A unique basename match is taken at face value, which covers the
	// conventional crates/<name> layout without any extra lookups.
	// Ambiguous or absent matches are confirmed against the manifests.
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	for _, dir := range append(candidates, rest...) {
		got, err := lookup(dir)
		if err != nil {
			return "", err
		}
		if got == name {
			return dir, nil
		}
	}
	return notFound, nil
}

// manifestDirs extracts the directories containing a Cargo.toml from a flat
// file listing. The repository root maps to "".
func manifestDirs(paths []string) []string {
	var dirs []string
	for _, p := range paths {
		if path.Base(p) != "Cargo.toml" {
			continue
		}
		dir := path.Dir(p)
		if dir == "." {
			dir = ""
		}
		dirs = append(dirs, dir)
	}
	return dirs
}

// manifestPackageName pulls [package].name out of a Cargo.toml blob.
// Returns empty for workspace-only manifests or unparseable files.
func manifestPackageName(data []byte) string {
	var m struct {
		Package struct {
			Name string `toml:"name"`
		} `toml:"package"`
	}
	if err := toml.Unmarshal(data, &m); err != nil {
		return ""
	}
	return m.Package.Name
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
