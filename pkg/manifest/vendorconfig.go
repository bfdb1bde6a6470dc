package manifest

import (
	"bytes"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/lockvendor/pkg/source"
)

const (
	vendoredName  = "vendored-sources"
	cratesIOName  = "crates-io"
	cratesIOIndex = "https://github.com/rust-lang/crates.io-index"
)

// sourceTable is one [source.<name>] table in the cargo configuration.
type sourceTable struct {
	Registry    string `toml:"registry,omitempty"`
	Git         string `toml:"git,omitempty"`
	Rev         string `toml:"rev,omitempty"`
	ReplaceWith string `toml:"replace-with,omitempty"`
	Directory   string `toml:"directory,omitempty"`
}

// VendorConfig renders the cargo source-replacement configuration that
// redirects every grouped source to its vendor directory. One table per
// registry origin and per (repository, commit) checkout, plus the
// vendored-sources table naming the directory itself. Tables are emitted
// in sorted key order, so the configuration is stable across runs.
func VendorConfig(groups *source.Groups, vendorDir string) (string, error) {
	if vendorDir == "" {
		vendorDir = "vendor"
	}

	tables := map[string]sourceTable{
		vendoredName: {Directory: vendorDir},
	}

	for _, g := range groups.Registry {
		name, table := registryTable(g)
		table.ReplaceWith = vendoredName
		tables[name] = table
	}

	for _, g := range groups.Git {
		tables["git+"+g.RepoURL+"#"+g.Commit] = sourceTable{
			Git:         g.RepoURL,
			Rev:         g.Commit,
			ReplaceWith: vendoredName,
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]map[string]sourceTable{"source": tables}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// registryTable names the replacement table for a registry origin. The
// crates.io index gets cargo's built-in crates-io name; any other index is
// declared explicitly by URL.
func registryTable(g source.RegistryGroup) (string, sourceTable) {
	if g.IndexURL == cratesIOIndex || g.IndexURL == "https://index.crates.io" {
		return cratesIOName, sourceTable{}
	}
	return g.IndexURL, sourceTable{Registry: g.IndexURL}
}
