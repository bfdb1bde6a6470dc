// Package source classifies lockfile packages by where their bytes come
// from and groups them into the deduplicated units the manifest records.
//
// Classification is a closed set: registry archive, git checkout, or local
// path. Anything else is rejected loudly, because a source the generator
// doesn't understand would otherwise silently break the offline build that
// consumes the manifest.
package source

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/matzehuels/lockvendor/pkg/errors"
	"github.com/matzehuels/lockvendor/pkg/integrations"
	"github.com/matzehuels/lockvendor/pkg/lockfile"
)

// Kind identifies where a package's bytes come from.
type Kind int

const (
	// KindLocal is a path dependency already present in the buildable tree.
	// Local sources are excluded from the manifest entirely.
	KindLocal Kind = iota

	// KindRegistry is a versioned archive published to a package registry,
	// downloaded over HTTPS and verified against the lock's checksum.
	KindRegistry

	// KindGit is a checkout of a source repository at a pinned commit.
	KindGit
)

// String returns the kind's manifest type name.
func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRegistry:
		return "archive"
	case KindGit:
		return "git"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Source is one classified package source. Kind selects which of the
// kind-specific fields are populated; switches over Kind are exhaustive.
type Source struct {
	Kind    Kind
	Name    string
	Version string

	// Registry fields
	IndexURL    string
	DownloadURL string
	Checksum    string

	// Git fields
	RepoURL string
	Commit  string

	// Dest is the deterministic vendor path the offline build reads from.
	// Identical for all members of a group.
	Dest string
}

// Key returns the source's group identity. Two sources with equal keys are
// satisfied by the same manifest entry: registry archives collapse on
// (name, version, checksum), git checkouts on (repository, commit).
func (s Source) Key() string {
	switch s.Kind {
	case KindRegistry:
		return fmt.Sprintf("crate %s %s %s", s.Name, s.Version, s.Checksum)
	case KindGit:
		return fmt.Sprintf("git %s %s", s.RepoURL, s.Commit)
	default:
		return fmt.Sprintf("local %s %s", s.Name, s.Version)
	}
}

// Options controls classification.
type Options struct {
	// VendorDir is the root the build's source replacement points at.
	// Defaults to "vendor".
	VendorDir string
}

func (o Options) withDefaults() Options {
	if o.VendorDir == "" {
		o.VendorDir = "vendor"
	}
	return o
}

// Source descriptor prefixes used by the lock format.
const (
	registryPrefix = "registry+"
	sparsePrefix   = "sparse+"
	gitPrefix      = "git+"
	pathPrefix     = "path+"
)

// The crates.io index in both its git and sparse forms. Archives for both
// are served from the static download host.
const (
	cratesIOIndex       = "https://github.com/rust-lang/crates.io-index"
	cratesIOSparseIndex = "https://index.crates.io/"
	cratesIODownload    = "https://static.crates.io/crates"
)

// Classify determines a package's source kind from its lock descriptor and
// derives the kind-specific fields. It never performs network access.
//
// Error codes: MISSING_CHECKSUM for a registry package without a checksum,
// MISSING_REVISION for a git source without a pinned commit, and
// UNSUPPORTED_SOURCE for any unrecognized descriptor scheme.
func Classify(pkg lockfile.Package, opts Options) (Source, error) {
	opts = opts.withDefaults()
	desc := strings.TrimSpace(pkg.Source)

	switch {
	case desc == "" || strings.HasPrefix(desc, pathPrefix):
		return Source{Kind: KindLocal, Name: pkg.Name, Version: pkg.Version}, nil

	case strings.HasPrefix(desc, registryPrefix), strings.HasPrefix(desc, sparsePrefix):
		return classifyRegistry(pkg, desc, opts)

	case strings.HasPrefix(desc, gitPrefix):
		return classifyGit(pkg, desc, opts)

	default:
		return Source{}, errors.New(errors.ErrCodeUnsupportedSource,
			"package %s %s has unrecognized source %q", pkg.Name, pkg.Version, desc)
	}
}

func classifyRegistry(pkg lockfile.Package, desc string, opts Options) (Source, error) {
	if pkg.Checksum == "" {
		return Source{}, errors.New(errors.ErrCodeMissingChecksum,
			"registry package %s %s has no checksum; unverified archives cannot be used offline",
			pkg.Name, pkg.Version)
	}

	index := strings.TrimPrefix(strings.TrimPrefix(desc, registryPrefix), sparsePrefix)
	downloadURL, err := registryDownloadURL(index, pkg.Name, pkg.Version)
	if err != nil {
		return Source{}, errors.Wrap(errors.ErrCodeUnsupportedSource, err,
			"package %s %s has unusable registry index %q", pkg.Name, pkg.Version, index)
	}

	return Source{
		Kind:        KindRegistry,
		Name:        pkg.Name,
		Version:     pkg.Version,
		IndexURL:    strings.TrimSuffix(index, "/"),
		DownloadURL: downloadURL,
		Checksum:    pkg.Checksum,
		Dest:        path.Join(opts.VendorDir, pkg.Name+"-"+pkg.Version),
	}, nil
}

func classifyGit(pkg lockfile.Package, desc string, opts Options) (Source, error) {
	repoURL, commit, err := parseGitDescriptor(desc)
	if err != nil {
		return Source{}, errors.Wrap(errors.ErrCodeUnsupportedSource, err,
			"package %s %s has unusable git source %q", pkg.Name, pkg.Version, desc)
	}
	if commit == "" {
		return Source{}, errors.New(errors.ErrCodeMissingRevision,
			"git source for %s %s has no pinned commit: %s", pkg.Name, pkg.Version, desc)
	}

	return Source{
		Kind:    KindGit,
		Name:    pkg.Name,
		Version: pkg.Version,
		RepoURL: repoURL,
		Commit:  commit,
		Dest:    gitDest(opts.VendorDir, repoURL, commit),
	}, nil
}

// registryDownloadURL derives the archive URL from the registry index URL.
// The crates.io index maps to its static download host; any other index is
// assumed to follow the same convention on a "static." subdomain of the
// index host.
func registryDownloadURL(index, name, version string) (string, error) {
	archive := fmt.Sprintf("%s/%s-%s.crate", name, name, version)

	if strings.TrimSuffix(index, "/") == cratesIOIndex || strings.HasPrefix(index, cratesIOSparseIndex) {
		return fmt.Sprintf("%s/%s", cratesIODownload, archive), nil
	}

	u, err := url.Parse(index)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("index URL %q has no scheme or host", index)
	}
	return fmt.Sprintf("%s://static.%s/crates/%s", u.Scheme, u.Host, archive), nil
}

// parseGitDescriptor splits "git+URL?branch=...#commit" into the bare
// repository URL and the pinned commit. The fragment carries the commit the
// resolver locked; a ?rev= query is accepted as a fallback for hand-edited
// locks that pin a revision without a fragment.
func parseGitDescriptor(desc string) (repoURL, commit string, err error) {
	u, err := url.Parse(strings.TrimPrefix(desc, gitPrefix))
	if err != nil {
		return "", "", err
	}

	commit = u.Fragment
	if commit == "" {
		commit = u.Query().Get("rev")
	}

	u.RawQuery = ""
	u.Fragment = ""
	repoURL = integrations.NormalizeRepoURL(u.String())
	if repoURL == "" {
		return "", "", fmt.Errorf("git descriptor %q has no repository URL", desc)
	}
	return repoURL, commit, nil
}

// gitDest builds the deterministic checkout path for a (repository, commit)
// pair: vendor/git/<repo-base>-<short-commit>.
func gitDest(vendorDir, repoURL, commit string) string {
	base := path.Base(repoURL)
	short := commit
	if len(short) > 7 {
		short = short[:7]
	}
	return path.Join(vendorDir, "git", base+"-"+short)
}
