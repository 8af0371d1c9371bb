package imaging

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Crop returns the part of img inside rect as a new image with its origin at
// (0, 0). Parts of rect outside img's bounds are zero (transparent black),
// matching how the box was measured on the full-size tier.
func Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("empty crop box %v", rect)
	}

	dst := newLike(img, image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst, nil
}

// newLike allocates an image with img's pixel layout where one exists, so
// grayscale scans stay grayscale on output.
func newLike(img image.Image, r image.Rectangle) draw.Image {
	switch src := img.(type) {
	case *image.Gray:
		return image.NewGray(r)
	case *image.Gray16:
		return image.NewGray16(r)
	case *image.NRGBA:
		return image.NewNRGBA(r)
	case *image.NRGBA64:
		return image.NewNRGBA64(r)
	case *image.RGBA64:
		return image.NewRGBA64(r)
	case *image.CMYK:
		return image.NewCMYK(r)
	case *image.Paletted:
		return image.NewPaletted(r, append(color.Palette(nil), src.Palette...))
	default:
		return image.NewRGBA(r)
	}
}
