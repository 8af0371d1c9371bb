package imaging

import (
	"errors"
	"io"
)

// paddedReader is an io.ReadSeeker and io.ReaderAt over a file of known
// size. Positional reads past the end are zero-filled; sequential reads stop
// at the real end. The TIFF decoder fetches strips with ReadAt, which is
// where truncated uploads come up short.
type paddedReader struct {
	r    io.ReaderAt
	size int64
	off  int64
}

func newPaddedReader(r io.ReaderAt, size int64) *paddedReader {
	return &paddedReader{r: r, size: size}
}

func (p *paddedReader) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	n := 0
	if off < p.size {
		want := b
		if rest := p.size - off; int64(len(want)) > rest {
			want = want[:rest]
		}
		var err error
		n, err = p.r.ReadAt(want, off)
		if err != nil && err != io.EOF {
			return n, err
		}
	}
	clear(b[n:])
	return len(b), nil
}

func (p *paddedReader) Read(b []byte) (int, error) {
	if p.off >= p.size {
		return 0, io.EOF
	}
	if rest := p.size - p.off; int64(len(b)) > rest {
		b = b[:rest]
	}
	n, err := p.r.ReadAt(b, p.off)
	p.off += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (p *paddedReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = p.off + offset
	case io.SeekEnd:
		abs = p.size + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	p.off = abs
	return abs, nil
}
