// Package manifest serializes deduplicated source groups into the offline
// manifest the sandboxed build consumes.
//
// The manifest is a pure function of the lock content: sources are sorted
// by group key, JSON encoding is stable, and the embedded vendor
// configuration follows the same ordering, so byte-identical locks always
// produce byte-identical manifests. Writing is atomic - a crash mid-write
// never leaves a partial manifest on disk.
package manifest

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/matzehuels/lockvendor/pkg/errors"
	"github.com/matzehuels/lockvendor/pkg/source"
)

// PackageRef is one package served by a git checkout.
type PackageRef struct {
	Name    string `json:"name"`
	Subpath string `json:"subpath"`
}

// Entry is one source in the manifest: either a registry archive
// (type "archive" with url/sha256) or a git checkout (type "git" with
// url/commit and the packages it serves).
type Entry struct {
	Type     string       `json:"type"`
	URL      string       `json:"url"`
	SHA256   string       `json:"sha256,omitempty"`
	Commit   string       `json:"commit,omitempty"`
	Dest     string       `json:"dest"`
	Packages []PackageRef `json:"packages,omitempty"`
}

// Manifest is the final artifact: the ordered source list plus the vendor
// redirection configuration the build toolchain loads to read every source
// from disk instead of the network.
type Manifest struct {
	Sources      []Entry `json:"sources"`
	VendorConfig string  `json:"vendor_config"`
}

// Build assembles the manifest from resolved groups. Archive entries come
// first, then git entries, each sorted by group key; the order is stable
// under any permutation of the input lock.
func Build(groups *source.Groups, vendorDir string) (*Manifest, error) {
	m := &Manifest{Sources: make([]Entry, 0, len(groups.Registry)+len(groups.Git))}

	reg := append([]source.RegistryGroup(nil), groups.Registry...)
	sort.Slice(reg, func(i, j int) bool { return reg[i].Key() < reg[j].Key() })
	for _, g := range reg {
		m.Sources = append(m.Sources, Entry{
			Type:   "archive",
			URL:    g.DownloadURL,
			SHA256: g.Checksum,
			Dest:   g.Dest,
		})
	}

	git := append([]source.GitGroup(nil), groups.Git...)
	sort.Slice(git, func(i, j int) bool { return git[i].Key() < git[j].Key() })
	for _, g := range git {
		entry := Entry{
			Type:   "git",
			URL:    g.RepoURL,
			Commit: g.Commit,
			Dest:   g.Dest,
		}
		for _, p := range g.Packages {
			entry.Packages = append(entry.Packages, PackageRef{Name: p.Name, Subpath: p.Subpath})
		}
		m.Sources = append(m.Sources, entry)
	}

	cfg, err := VendorConfig(groups, vendorDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "rendering vendor configuration")
	}
	m.VendorConfig = cfg

	return m, nil
}

// Encode renders the manifest as indented JSON with a trailing newline.
// The encoding is deterministic: struct field order is fixed and sources
// are pre-sorted by Build.
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encoding manifest")
	}
	return buf.Bytes(), nil
}

// WriteFile atomically writes the encoded manifest to path.
func (m *Manifest) WriteFile(path string) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}
