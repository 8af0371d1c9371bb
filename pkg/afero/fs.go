// Package afero adds write helpers on top of spf13's afero that the cache
// and image writers share.
package afero

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sgl-project/atlasdata/pkg/logging"
)

// AtomicWriteFile streams write's output into a temp file next to destPath
// and renames it into place, so readers never observe a partial file.
// Missing parent directories are created.
func AtomicWriteFile(
	fs afero.Fs,
	destPath string,
	fileMode os.FileMode,
	write func(w io.Writer) error,
	log logging.Interface,
) error {
	destDir, destFile := filepath.Split(destPath)
	if destDir == "" {
		destDir = "."
	}
	if err := fs.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", destPath, err)
	}

	log.WithField("destPath", destPath).
		Debug("Writing file...")

	tmp, err := afero.TempFile(fs, destDir, "."+destFile+"~")
	if err != nil {
		return fmt.Errorf("creating tmp file for atomic write: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = fs.Remove(tmpName) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("error writing into a temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing temp file: %w", err)
	}
	if err := fs.Chmod(tmpName, fileMode); err != nil {
		return fmt.Errorf("error setting mode on temp file: %w", err)
	}

	return fs.Rename(tmpName, destPath)
}

// AtomicWriteBytes is AtomicWriteFile for an in-memory payload.
func AtomicWriteBytes(fs afero.Fs, destPath string, data []byte, fileMode os.FileMode, log logging.Interface) error {
	return AtomicWriteFile(fs, destPath, fileMode, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}, log)
}

// Exists returns true and nil error if the given path for a file or directory
// exists.
func Exists(fs afero.Fs, path string) (bool, error) {
	return afero.Exists(fs, path)
}
