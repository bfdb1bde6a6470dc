package source

import (
	"sort"

	"github.com/matzehuels/lockvendor/pkg/errors"
)

// PackageRef names one package served by a git checkout, together with the
// subdirectory inside the checkout where its manifest lives. Subpath is
// empty until the metadata resolver fills it in (and stays empty for a
// package rooted at the top of the repository).
type PackageRef struct {
	Name    string
	Version string
	Subpath string
}

// RegistryGroup is one deduplicated registry archive. Multiple lock entries
// with identical (name, version, checksum) collapse into a single group.
type RegistryGroup struct {
	Name        string
	Version     string
	Checksum    string
	IndexURL    string
	DownloadURL string
	Dest        string
}

// Key returns the group's sort and identity key.
func (g RegistryGroup) Key() string {
	return Source{Kind: KindRegistry, Name: g.Name, Version: g.Version, Checksum: g.Checksum}.Key()
}

// GitGroup is one deduplicated git checkout. All packages pinned to the
// same (repository, commit) share the single checkout regardless of which
// subdirectory each lives in.
type GitGroup struct {
	RepoURL  string
	Commit   string
	Dest     string
	Packages []PackageRef
}

// Key returns the group's sort and identity key.
func (g GitGroup) Key() string {
	return Source{Kind: KindGit, RepoURL: g.RepoURL, Commit: g.Commit}.Key()
}

// Groups holds the deduplicated output of classification. Registry and git
// groups are each sorted by key, so the grouping of a given lock is fully
// deterministic regardless of input order.
type Groups struct {
	Registry []RegistryGroup
	Git      []GitGroup
}

// Group deduplicates classified sources. Local sources are dropped; every
// other input maps to exactly one output group, and no two groups share a
// key.
//
// Two registry entries with the same (name, version) but different
// checksums cannot both be true, so that inconsistency is rejected as
// INVALID_LOCKFILE rather than picking one silently.
func Group(sources []Source) (*Groups, error) {
	var out Groups
	regSeen := make(map[string]bool)
	regChecksum := make(map[string]string)
	gitIndex := make(map[string]int)

	for _, s := range sources {
		switch s.Kind {
		case KindLocal:
			continue

		case KindRegistry:
			pin := s.Name + " " + s.Version
			if prev, ok := regChecksum[pin]; ok && prev != s.Checksum {
				return nil, errors.New(errors.ErrCodeInvalidLockfile,
					"package %s %s appears with two different checksums", s.Name, s.Version)
			}
			regChecksum[pin] = s.Checksum

			if regSeen[s.Key()] {
				continue
			}
			regSeen[s.Key()] = true
			out.Registry = append(out.Registry, RegistryGroup{
				Name:        s.Name,
				Version:     s.Version,
				Checksum:    s.Checksum,
				IndexURL:    s.IndexURL,
				DownloadURL: s.DownloadURL,
				Dest:        s.Dest,
			})

		case KindGit:
			i, ok := gitIndex[s.Key()]
			if !ok {
				i = len(out.Git)
				gitIndex[s.Key()] = i
				out.Git = append(out.Git, GitGroup{
					RepoURL: s.RepoURL,
					Commit:  s.Commit,
					Dest:    s.Dest,
				})
			}
			g := &out.Git[i]
			if !containsPackage(g.Packages, s.Name, s.Version) {
				g.Packages = append(g.Packages, PackageRef{Name: s.Name, Version: s.Version})
			}

		default:
			return nil, errors.New(errors.ErrCodeInternal, "unhandled source kind %v", s.Kind)
		}
	}

	sort.Slice(out.Registry, func(i, j int) bool { return out.Registry[i].Key() < out.Registry[j].Key() })
	sort.Slice(out.Git, func(i, j int) bool { return out.Git[i].Key() < out.Git[j].Key() })
	for i := range out.Git {
		pkgs := out.Git[i].Packages
		sort.Slice(pkgs, func(a, b int) bool {
			if pkgs[a].Name != pkgs[b].Name {
				return pkgs[a].Name < pkgs[b].Name
			}
			return pkgs[a].Version < pkgs[b].Version
		})
	}

	return &out, nil
}

func containsPackage(refs []PackageRef, name, version string) bool {
	for _, r := range refs {
		if r.Name == name && r.Version == version {
			return true
		}
	}
	return false
}
