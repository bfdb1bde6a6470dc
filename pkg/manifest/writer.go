package manifest

import (
	"os"
	"path/filepath"

	"github.com/matzehuels/lockvendor/pkg/errors"
)

// WriteFileAtomic writes data to path through a temporary file in the same
// directory followed by a rename, so a crash mid-write never leaves a
// partial file at the destination.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "creating output directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "creating temporary file in %s", dir)
	}
	defer func() {
		// Best effort; gone already if the rename succeeded.
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeInternal, err, "writing %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "closing %s", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "setting permissions on %s", tmp.Name())
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "placing %s", path)
	}
	return nil
}
