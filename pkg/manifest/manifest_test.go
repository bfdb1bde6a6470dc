package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/lockvendor/pkg/lockfile"
	"github.com/matzehuels/lockvendor/pkg/source"
)

func classifyAll(t *testing.T, pkgs []lockfile.Package) *source.Groups {
	t.Helper()
	var sources []source.Source
	for _, p := range pkgs {
		s, err := source.Classify(p, source.Options{})
		if err != nil {
			t.Fatalf("Classify(%s): %v", p.Name, err)
		}
		sources = append(sources, s)
	}
	groups, err := source.Group(sources)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	return groups
}

func TestBuildRegistryEntry(t *testing.T) {
	groups := classifyAll(t, []lockfile.Package{
		{Name: "foo", Version: "1.0.0", Source: "registry+https://example/index", Checksum: "abc123"},
	})

	m, err := Build(groups, "vendor")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(m.Sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(m.Sources))
	}

	e := m.Sources[0]
	if e.Type != "archive" {
		t.Errorf("type = %q, want archive", e.Type)
	}
	if e.URL != "https://static.example/crates/foo/foo-1.0.0.crate" {
		t.Errorf("url = %q", e.URL)
	}
	if e.SHA256 != "abc123" {
		t.Errorf("sha256 = %q", e.SHA256)
	}
	if e.Dest != "vendor/foo-1.0.0" {
		t.Errorf("dest = %q", e.Dest)
	}
	if e.Commit != "" || len(e.Packages) != 0 {
		t.Errorf("archive entry carries git fields: %+v", e)
	}
}

func TestBuildGitEntry(t *testing.T) {
	desc := "git+https://github.com/acme/tools?branch=main#0123456789abcdef0123456789abcdef01234567"
	groups := classifyAll(t, []lockfile.Package{
		{Name: "tool-a", Version: "0.1.0", Source: desc},
		{Name: "tool-b", Version: "0.2.0", Source: desc},
	})
	groups.Git[0].Packages[0].Subpath = "crates/tool-a"
	groups.Git[0].Packages[1].Subpath = "crates/tool-b"

	m, err := Build(groups, "vendor")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(m.Sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(m.Sources))
	}

	e := m.Sources[0]
	if e.Type != "git" {
		t.Errorf("type = %q, want git", e.Type)
	}
	if e.URL != "https://github.com/acme/tools" {
		t.Errorf("url = %q", e.URL)
	}
	if e.Commit != "0123456789abcdef0123456789abcdef01234567" {
		t.Errorf("commit = %q", e.Commit)
	}
	if len(e.Packages) != 2 {
		t.Fatalf("got %d packages, want 2", len(e.Packages))
	}
	if e.Packages[0].Name != "tool-a" || e.Packages[0].Subpath != "crates/tool-a" {
		t.Errorf("packages[0] = %+v", e.Packages[0])
	}
	if e.SHA256 != "" {
		t.Errorf("git entry carries sha256 %q", e.SHA256)
	}
}

func TestBuildOrdersArchivesBeforeGit(t *testing.T) {
	groups := classifyAll(t, []lockfile.Package{
		{Name: "zzz", Version: "1.0.0", Source: "git+https://github.com/acme/zzz#aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{Name: "aaa", Version: "1.0.0", Source: "registry+https://github.com/rust-lang/crates.io-index", Checksum: "c1"},
	})

	m, err := Build(groups, "vendor")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.Sources[0].Type != "archive" || m.Sources[1].Type != "git" {
		t.Errorf("order = %s, %s; want archive, git", m.Sources[0].Type, m.Sources[1].Type)
	}
}

func TestBuildDeterministicUnderPermutation(t *testing.T) {
	pkgs := []lockfile.Package{
		{Name: "beta", Version: "2.0.0", Source: "registry+https://github.com/rust-lang/crates.io-index", Checksum: "b2"},
		{Name: "alpha", Version: "1.0.0", Source: "registry+https://github.com/rust-lang/crates.io-index", Checksum: "a1"},
		{Name: "gitdep", Version: "0.3.0", Source: "git+https://github.com/acme/gitdep#bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
	}
	reversed := []lockfile.Package{pkgs[2], pkgs[1], pkgs[0]}

	encode := func(in []lockfile.Package) []byte {
		m, err := Build(classifyAll(t, in), "vendor")
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		data, err := m.Encode()
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		return data
	}

	first := encode(pkgs)
	second := encode(reversed)
	if !bytes.Equal(first, second) {
		t.Errorf("permuted lock produced different manifest:\n%s\nvs\n%s", first, second)
	}

	if again := encode(pkgs); !bytes.Equal(first, again) {
		t.Error("repeated build produced different manifest")
	}
}

func TestBuildDropsLocalSources(t *testing.T) {
	groups := classifyAll(t, []lockfile.Package{
		{Name: "workspace-member", Version: "0.1.0", Source: ""},
		{Name: "foo", Version: "1.0.0", Source: "registry+https://github.com/rust-lang/crates.io-index", Checksum: "c1"},
	})

	m, err := Build(groups, "vendor")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, e := range m.Sources {
		if strings.Contains(e.URL, "workspace-member") {
			t.Errorf("local source leaked into manifest: %+v", e)
		}
	}
	if len(m.Sources) != 1 {
		t.Errorf("got %d sources, want 1", len(m.Sources))
	}
}

func TestVendorConfigCratesIO(t *testing.T) {
	groups := classifyAll(t, []lockfile.Package{
		{Name: "foo", Version: "1.0.0", Source: "registry+https://github.com/rust-lang/crates.io-index", Checksum: "c1"},
	})

	cfg, err := VendorConfig(groups, "vendor")
	if err != nil {
		t.Fatalf("VendorConfig: %v", err)
	}

	for _, want := range []string{
		"[source.crates-io]",
		`replace-with = "vendored-sources"`,
		"[source.vendored-sources]",
		`directory = "vendor"`,
	} {
		if !strings.Contains(cfg, want) {
			t.Errorf("config missing %q:\n%s", want, cfg)
		}
	}
	if strings.Contains(cfg, "registry =") {
		t.Errorf("crates-io table should not redeclare its registry URL:\n%s", cfg)
	}
}

func TestVendorConfigAlternateRegistryAndGit(t *testing.T) {
	groups := classifyAll(t, []lockfile.Package{
		{Name: "foo", Version: "1.0.0", Source: "registry+https://example/index", Checksum: "c1"},
		{Name: "bar", Version: "0.2.0", Source: "git+https://github.com/acme/bar#cccccccccccccccccccccccccccccccccccccccc"},
	})

	cfg, err := VendorConfig(groups, "custom-vendor")
	if err != nil {
		t.Fatalf("VendorConfig: %v", err)
	}

	for _, want := range []string{
		`registry = "https://example/index"`,
		`git = "https://github.com/acme/bar"`,
		`rev = "cccccccccccccccccccccccccccccccccccccccc"`,
		`directory = "custom-vendor"`,
	} {
		if !strings.Contains(cfg, want) {
			t.Errorf("config missing %q:\n%s", want, cfg)
		}
	}
}

func TestVendorConfigDeterministic(t *testing.T) {
	groups := classifyAll(t, []lockfile.Package{
		{Name: "a", Version: "1.0.0", Source: "registry+https://example/index", Checksum: "c1"},
		{Name: "b", Version: "1.0.0", Source: "registry+https://other.example/index", Checksum: "c2"},
		{Name: "c", Version: "1.0.0", Source: "git+https://github.com/acme/c#dddddddddddddddddddddddddddddddddddddddd"},
	})

	first, err := VendorConfig(groups, "vendor")
	if err != nil {
		t.Fatalf("VendorConfig: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := VendorConfig(groups, "vendor")
		if err != nil {
			t.Fatalf("VendorConfig: %v", err)
		}
		if again != first {
			t.Fatalf("config not stable across runs:\n%s\nvs\n%s", first, again)
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "generated-sources.json")

	if err := WriteFileAtomic(path, []byte("first\n")); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second\n")); err != nil {
		t.Fatalf("WriteFileAtomic overwrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "second\n" {
		t.Errorf("content = %q, want %q", data, "second\n")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestManifestWriteFile(t *testing.T) {
	groups := classifyAll(t, []lockfile.Package{
		{Name: "foo", Version: "1.0.0", Source: "registry+https://github.com/rust-lang/crates.io-index", Checksum: "c1"},
	})
	m, err := Build(groups, "vendor")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	path := filepath.Join(t.TempDir(), "generated-sources.json")
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"sources"`) || !strings.Contains(string(data), `"vendor_config"`) {
		t.Errorf("manifest missing top-level fields:\n%s", data)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("manifest missing trailing newline")
	}
}
