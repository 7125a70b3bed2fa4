package filelock

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// WriteFileAtomic writes data to a temporary file next to path and renames
// it over path, so readers see either the old or the new contents and never
// a partial write. Callers hold the exclusive lock for path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Annotatef(err, "creating directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Annotatef(err, "creating temporary file for %s", path)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Annotatef(err, "writing %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Annotatef(err, "syncing %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Annotatef(err, "closing %s", tmpName)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return errors.Annotatef(err, "setting permissions on %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Annotatef(err, "replacing %s", path)
	}

	committed = true
	return nil
}
