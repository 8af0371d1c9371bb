package ivygap

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"maps"
	"path/filepath"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/sgl-project/atlasdata/pkg/imaging"
	"github.com/sgl-project/atlasdata/pkg/logging"
	"github.com/sgl-project/atlasdata/pkg/storage"
)

// SectionImage is one entry of a section's sub_images.
type SectionImage struct {
	// Attributes holds every field except s3_data.
	Attributes map[string]any
	Width      int
	Height     int
	// Images has one handle per s3_data entry, keyed by the entry name.
	Images map[string]*ImageHandle
}

// ImageNames returns the keys of Images in sorted order.
func (s SectionImage) ImageNames() []string {
	return slices.Sorted(maps.Keys(s.Images))
}

// ImageHandle defers reading an image until Load is called; the images run
// to gigapixels.
type ImageHandle struct {
	URI    string
	Key    string
	Width  int
	Height int

	localDir string
	store    storage.Storage
	fs       afero.Fs
	logger   logging.Interface
}

// NumPixels is the declared pixel count, used as the decode budget.
func (h *ImageHandle) NumPixels() int64 {
	return int64(h.Width) * int64(h.Height)
}

// LocalPath returns where the image is read from when a local image
// directory is configured.
func (h *ImageHandle) LocalPath() (string, bool) {
	if h.localDir == "" {
		return "", false
	}
	return filepath.Join(h.localDir, filepath.FromSlash(h.Key)), true
}

// Load decodes the image. Images larger than the declared width*height are
// rejected before their pixels are read.
func (h *ImageHandle) Load(ctx context.Context) (image.Image, error) {
	if path, ok := h.LocalPath(); ok {
		h.logger.WithField("path", path).Debug("Loading image from local directory")
		return imaging.DecodeFile(h.fs, path, h.NumPixels())
	}

	h.logger.WithField("uri", h.URI).Debug("Downloading image")
	rc, err := h.store.Get(ctx, h.Key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", h.URI, err)
	}
	h.logger.WithField("uri", h.URI).
		WithField("size", humanize.Bytes(uint64(len(data)))).
		Debug("Downloaded image")

	img, err := imaging.Decode(bytes.NewReader(data), h.NumPixels())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.URI, err)
	}
	return img, nil
}
