package codec

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// Zstd compresses with Zstandard. Good ratio on page images, fast
// enough to keep archiving IO bound.
type Zstd struct{}

// Name implements Codec.
func (Zstd) Name() string { return "zstd" }

// NewWriter implements Codec.
func (Zstd) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

// NewReader implements Codec.
func (Zstd) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}

	return zr.IOReadCloser(), nil
}
