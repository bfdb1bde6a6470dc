// Package lockfile parses Cargo lockfiles into package records.
//
// The lockfile is the single source of truth for a run: every dependency
// the sandboxed build will need is pinned here by the upstream resolver.
// Parsing is a pure transform; no file other than the lock is read and
// nothing is written.
//
// Lock format versions 3 and 4 store everything on the [[package]] tables.
// Version 1 locks record registry checksums in a separate [metadata] table;
// those are folded back onto the owning package so the rest of the pipeline
// only ever sees one shape.
package lockfile

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/lockvendor/pkg/errors"
)

// Package is one entry from the lock: an exact (name, version) pin with an
// opaque source descriptor and an optional content checksum. Immutable once
// parsed.
type Package struct {
	Name     string `toml:"name"`
	Version  string `toml:"version"`
	Source   string `toml:"source"`
	Checksum string `toml:"checksum"`
}

type lockFile struct {
	Version  int               `toml:"version"`
	Package  []Package         `toml:"package"`
	Metadata map[string]string `toml:"metadata"`
}

// Parse decodes a raw lock document into its ordered package records.
// Returns an INVALID_LOCKFILE error when the document is not well-formed
// TOML or a package is missing its name or version.
func Parse(data []byte) ([]Package, error) {
	var lock lockFile
	if err := toml.Unmarshal(data, &lock); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidLockfile, err, "lockfile is not well-formed TOML")
	}

	for i, pkg := range lock.Package {
		if pkg.Name == "" {
			return nil, errors.New(errors.ErrCodeInvalidLockfile, "package entry %d has no name", i)
		}
		if pkg.Version == "" {
			return nil, errors.New(errors.ErrCodeInvalidLockfile, "package %s has no version", pkg.Name)
		}
	}

	if len(lock.Metadata) > 0 {
		foldMetadataChecksums(&lock)
	}
	return lock.Package, nil
}

// Load reads and parses the lockfile at path.
func Load(path string) ([]Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "lockfile %s does not exist", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "reading lockfile %s", path)
	}
	return Parse(data)
}

// foldMetadataChecksums copies v1-style [metadata] checksum entries onto
// their packages. Keys look like:
//
//	"checksum serde 1.0.0 (registry+https://github.com/rust-lang/crates.io-index)"
func foldMetadataChecksums(lock *lockFile) {
	for key, sum := range lock.Metadata {
		fields := strings.Fields(key)
		if len(fields) != 4 || fields[0] != "checksum" || sum == "<none>" {
			continue
		}
		name, version := fields[1], fields[2]
		source := strings.Trim(fields[3], "()")

		for i := range lock.Package {
			p := &lock.Package[i]
			if p.Name == name && p.Version == version && p.Checksum == "" {
				if p.Source == "" {
					p.Source = source
				}
				p.Checksum = sum
			}
		}
	}
}
