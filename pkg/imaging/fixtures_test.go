package imaging

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

// grayTIFF builds an uncompressed 8-bit grayscale TIFF whose directory
// precedes the pixel data, so truncating the file only loses pixels.
// Pixel (x, y) has value x + y*w.
func grayTIFF(w, h int) []byte {
	type entry struct {
		tag, typ uint16
		value    uint32
	}
	const (
		short = 3
		long  = 4
	)
	entries := []entry{
		{256, long, uint32(w)},
		{257, long, uint32(h)},
		{258, short, 8},
		{259, short, 1},
		{262, short, 1},
		{273, long, 0}, // patched below
		{277, short, 1},
		{278, long, uint32(h)},
		{279, long, uint32(w * h)},
	}
	dataOffset := uint32(8 + 2 + len(entries)*12 + 4)
	entries[5].value = dataOffset

	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.WriteString("II")
	_ = binary.Write(&buf, le, uint16(42))
	_ = binary.Write(&buf, le, uint32(8))
	_ = binary.Write(&buf, le, uint16(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&buf, le, e.tag)
		_ = binary.Write(&buf, le, e.typ)
		_ = binary.Write(&buf, le, uint32(1))
		if e.typ == short {
			_ = binary.Write(&buf, le, uint16(e.value))
			_ = binary.Write(&buf, le, uint16(0))
		} else {
			_ = binary.Write(&buf, le, e.value)
		}
	}
	_ = binary.Write(&buf, le, uint32(0))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf.WriteByte(byte(x + y*w))
		}
	}
	return buf.Bytes()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
