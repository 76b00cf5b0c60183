// Package codec provides the stream compression codecs used for
// snapshot archives.
//
// Codec selection is a compatibility boundary: the codec name is
// stored in the archive header, and an archive only decodes with the
// codec it was written with.
package codec

import "io"

// Codec compresses and decompresses byte streams.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Name is the stable identifier stored in archive headers.
	Name() string

	// NewWriter wraps w with a compressing writer. Close flushes the
	// stream; it does not close w.
	NewWriter(w io.Writer) (io.WriteCloser, error)

	// NewReader wraps r with a decompressing reader.
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// Default is the codec used when none is configured.
var Default Codec = Zstd{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "zstd":
		return Zstd{}, true
	case "lz4":
		return LZ4{}, true
	case "none":
		return None{}, true
	default:
		return nil, false
	}
}

// None is a pass-through codec.
type None struct{}

// Name implements Codec.
func (None) Name() string { return "none" }

// NewWriter implements Codec.
func (None) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

// NewReader implements Codec.
func (None) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
