package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/lockvendor/pkg/errors"
)

const v3Lock = `
version = 3

[[package]]
name = "desktop-manager"
version = "0.3.0"
dependencies = ["gtk4", "serde"]

[[package]]
name = "serde"
version = "1.0.193"
source = "registry+https://github.com/rust-lang/crates.io-index"
checksum = "25dd9975e68d0cb5aa1120c288333fc98731bd1dd12f561e468ea4728c042b89"

[[package]]
name = "gtk4"
version = "0.7.3"
source = "git+https://github.com/gtk-rs/gtk4-rs?branch=master#4e5e3a4"
`

func TestParse(t *testing.T) {
	pkgs, err := Parse([]byte(v3Lock))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if len(pkgs) != 3 {
		t.Fatalf("Parse() returned %d packages, want 3", len(pkgs))
	}

	// Order follows the document.
	if pkgs[0].Name != "desktop-manager" || pkgs[0].Source != "" {
		t.Errorf("pkgs[0] = %+v, want local desktop-manager", pkgs[0])
	}
	if pkgs[1].Checksum != "25dd9975e68d0cb5aa1120c288333fc98731bd1dd12f561e468ea4728c042b89" {
		t.Errorf("pkgs[1].Checksum = %q", pkgs[1].Checksum)
	}
	if pkgs[2].Source != "git+https://github.com/gtk-rs/gtk4-rs?branch=master#4e5e3a4" {
		t.Errorf("pkgs[2].Source = %q", pkgs[2].Source)
	}
}

func TestParse_NotTOML(t *testing.T) {
	_, err := Parse([]byte("{ not toml ]"))
	if !errors.Is(err, errors.ErrCodeInvalidLockfile) {
		t.Errorf("Parse() = %v, want INVALID_LOCKFILE", err)
	}
}

func TestParse_MissingName(t *testing.T) {
	_, err := Parse([]byte("[[package]]\nversion = \"1.0.0\"\n"))
	if !errors.Is(err, errors.ErrCodeInvalidLockfile) {
		t.Errorf("Parse() = %v, want INVALID_LOCKFILE", err)
	}
}

func TestParse_MissingVersion(t *testing.T) {
	_, err := Parse([]byte("[[package]]\nname = \"serde\"\n"))
	if !errors.Is(err, errors.ErrCodeInvalidLockfile) {
		t.Errorf("Parse() = %v, want INVALID_LOCKFILE", err)
	}
}

func TestParse_Empty(t *testing.T) {
	pkgs, err := Parse([]byte("version = 3\n"))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if len(pkgs) != 0 {
		t.Errorf("Parse() returned %d packages, want 0", len(pkgs))
	}
}

func TestParse_V1MetadataChecksums(t *testing.T) {
	lock := `
[[package]]
name = "libc"
version = "0.2.62"
source = "registry+https://github.com/rust-lang/crates.io-index"

[metadata]
"checksum libc 0.2.62 (registry+https://github.com/rust-lang/crates.io-index)" = "34fcd2c08d2f832f376f4173a231990fa5aef4e99fb569867318a227ef4c06ba"
"checksum unused 1.0.0 (registry+https://github.com/rust-lang/crates.io-index)" = "<none>"
`
	pkgs, err := Parse([]byte(lock))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if pkgs[0].Checksum != "34fcd2c08d2f832f376f4173a231990fa5aef4e99fb569867318a227ef4c06ba" {
		t.Errorf("metadata checksum not folded, got %q", pkgs[0].Checksum)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cargo.lock")
	if err := os.WriteFile(path, []byte(v3Lock), 0644); err != nil {
		t.Fatal(err)
	}

	pkgs, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(pkgs) != 3 {
		t.Errorf("Load() returned %d packages, want 3", len(pkgs))
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.lock"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("Load() = %v, want FILE_NOT_FOUND", err)
	}
}
