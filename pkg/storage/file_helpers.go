package storage

import (
	"os"

	"github.com/spf13/afero"
)

// PathKind classifies what, if anything, exists at a local path.
type PathKind int

const (
	PathMissing PathKind = iota
	PathRegularFile
	PathOther
)

// StatPath reports whether path is absent, a regular file, or something else
// (directory, device, socket).
func StatPath(fs afero.Fs, path string) (PathKind, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PathMissing, nil
		}
		return PathMissing, err
	}
	if info.Mode().IsRegular() {
		return PathRegularFile, nil
	}
	return PathOther, nil
}
