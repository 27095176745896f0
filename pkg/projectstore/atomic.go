package projectstore

import (
	"os"
	"path/filepath"
)

// writeFileAtomic replaces path with data via a temp file and rename, so
// readers never observe a half-written document.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".write-*.tmp")
	if err != nil {
		return ioErr("create temp file", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName) //nolint:gosec // tmpName comes from os.CreateTemp in a known directory
		return ioErr("write temp file", path, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:gosec // tmpName comes from os.CreateTemp in a known directory
		return ioErr("close temp file", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil { //nolint:gosec // tmpName comes from os.CreateTemp in a known directory
		_ = os.Remove(tmpName) //nolint:gosec // tmpName comes from os.CreateTemp in a known directory
		return ioErr("rename temp file", path, err)
	}

	return nil
}
