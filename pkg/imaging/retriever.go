package imaging

import (
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	atlasfs "github.com/sgl-project/atlasdata/pkg/afero"
	"github.com/sgl-project/atlasdata/pkg/logging"
	"github.com/sgl-project/atlasdata/pkg/storage"
)

const scratchPrefix = "tmp_before_crop_"

// Retriever downloads images into a scratch directory, crops them and writes
// the result to a caller-chosen path.
type Retriever struct {
	store      storage.Storage
	fs         afero.Fs
	scratchDir string
	logger     logging.Interface
}

// NewRetriever creates a retriever that stages downloads under scratchDir.
func NewRetriever(store storage.Storage, fs afero.Fs, scratchDir string, logger logging.Interface) *Retriever {
	return &Retriever{
		store:      store,
		fs:         fs,
		scratchDir: scratchDir,
		logger:     logger,
	}
}

// FetchCroppedImage downloads remoteKey, crops it to box and writes the
// result to outputPath in the format implied by its extension.
//
// An existing outputPath that is not a regular file, or any existing file
// when overwrite is false, is reported as a warning and (false, nil) is
// returned without contacting the store. The scratch download is not digest
// checked; the decoded image is the verification.
func (r *Retriever) FetchCroppedImage(ctx context.Context, remoteKey string, box image.Rectangle, outputPath string, overwrite bool) (bool, error) {
	ok, err := r.CheckOutput(outputPath, overwrite)
	if !ok || err != nil {
		return false, err
	}
	if box.Empty() {
		return false, fmt.Errorf("empty crop box %v for %s", box, remoteKey)
	}

	if err := r.fs.MkdirAll(r.scratchDir, 0755); err != nil {
		return false, fmt.Errorf("failed to create scratch directory %s: %w", r.scratchDir, err)
	}
	scratch := filepath.Join(r.scratchDir, scratchPrefix+uuid.NewString()+".tiff")
	defer func() {
		if err := r.fs.Remove(scratch); err != nil && !isNotExist(r.fs, scratch) {
			r.logger.WithError(err).WithField("path", scratch).Warn("Failed to remove scratch file")
		}
	}()

	n, err := r.store.Download(ctx, remoteKey, r.fs, scratch)
	if err != nil {
		return false, err
	}

	img, err := DecodeFile(r.fs, scratch, 0)
	if err != nil {
		return false, err
	}

	cropped, err := Crop(img, box)
	if err != nil {
		return false, err
	}

	format := FormatForPath(outputPath)
	err = atlasfs.AtomicWriteFile(r.fs, outputPath, 0644, func(w io.Writer) error {
		return Encode(w, cropped, format)
	}, r.logger)
	if err != nil {
		return false, fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	r.logger.WithField("key", remoteKey).
		WithField("path", outputPath).
		WithField("downloaded", humanize.Bytes(uint64(n))).
		WithField("box", box.String()).
		Info("Saved cropped image")

	return true, nil
}

// CheckOutput applies the collision rules for outputPath. It returns false
// after logging a warning when the path must not be written.
func (r *Retriever) CheckOutput(outputPath string, overwrite bool) (bool, error) {
	kind, err := storage.StatPath(r.fs, outputPath)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", outputPath, err)
	}

	switch kind {
	case storage.PathOther:
		r.logger.WithField("path", outputPath).
			Warnf("%s already exists but is not a file", outputPath)
		return false, nil
	case storage.PathRegularFile:
		if !overwrite {
			r.logger.WithField("path", outputPath).
				Warnf("%s already exists; re-run with overwrite=true to overwrite", outputPath)
			return false, nil
		}
	}
	return true, nil
}

func isNotExist(fs afero.Fs, path string) bool {
	exists, err := afero.Exists(fs, path)
	return err == nil && !exists
}
