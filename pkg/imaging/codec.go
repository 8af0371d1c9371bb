// Package imaging fetches large microscopy images, crops them to the tissue
// region and writes the result.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/image/tiff"
)

// ErrPixelBudget is returned when an image declares more pixels than allowed.
var ErrPixelBudget = errors.New("imaging: image exceeds pixel budget")

// Format is an output encoding.
type Format string

const (
	FormatTIFF Format = "tiff"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// FormatForPath picks the encoding from the file extension; unknown
// extensions get TIFF.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG
	case ".jpg", ".jpeg":
		return FormatJPEG
	default:
		return FormatTIFF
	}
}

// Encode writes img to w in format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// Decode reads an image from r. A positive maxPixels rejects images whose
// header declares more pixels before any pixel data is decoded.
//
// TIFF input is handed to the TIFF decoder directly so that, when r is also
// an io.ReaderAt, strips are read positionally instead of buffering the
// whole stream.
func Decode(r io.ReadSeeker, maxPixels int64) (image.Image, error) {
	isTIFF, err := sniffTIFF(r)
	if err != nil {
		return nil, err
	}

	if maxPixels > 0 {
		var cfg image.Config
		if isTIFF {
			cfg, err = tiff.DecodeConfig(r)
		} else {
			cfg, _, err = image.DecodeConfig(r)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read image header: %w", err)
		}
		if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
			return nil, fmt.Errorf("%w: %dx%d is %d pixels, limit %d",
				ErrPixelBudget, cfg.Width, cfg.Height, pixels, maxPixels)
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}

	var img image.Image
	if isTIFF {
		img, err = tiff.Decode(r)
	} else {
		img, _, err = image.Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func sniffTIFF(r io.ReadSeeker) (bool, error) {
	var hdr [4]byte
	n, err := io.ReadFull(r, hdr[:])
	if _, serr := r.Seek(0, io.SeekStart); serr != nil {
		return false, serr
	}
	if err != nil {
		// too short to be anything; let the decoder report it
		return false, nil
	}
	magic := string(hdr[:n])
	return magic == "II*\x00" || magic == "MM\x00*", nil
}

// DecodeFile decodes the image at path. Bytes missing from the end of a
// truncated file read as zeros, so a short final strip decodes as black
// instead of failing.
func DecodeFile(fs afero.Fs, path string, maxPixels int64) (image.Image, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	img, err := Decode(newPaddedReader(f, info.Size()), maxPixels)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
