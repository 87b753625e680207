package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a file on disk is wrapped.
type Compression int

// Supported wrappers.
const (
	None Compression = iota
	Zstd
	Gzip
	Zlib
	LZ4
	S2
)

var compressionNames = [...]string{"none", "zstd", "gzip", "zlib", "lz4", "s2"}

// String returns the wrapper name.
func (c Compression) String() string {
	if c >= 0 && int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// MaxDecompressedSize caps the size of a decompressed file.
const MaxDecompressedSize = 512 << 20

// ErrTooLarge is returned when a file decompresses past MaxDecompressedSize.
var ErrTooLarge = errors.New("decompressed file too large")

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	gzipMagic = []byte{0x1F, 0x8B}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
	s2Magic   = []byte("\xff\x06\x00\x00S2sTwO")
)

// Detect identifies the wrapper of data from its leading bytes.
// Raw DRM files start with a small little-endian version number and never
// match any of the magics.
func Detect(data []byte) Compression {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return Zstd
	case bytes.HasPrefix(data, gzipMagic):
		return Gzip
	case bytes.HasPrefix(data, lz4Magic):
		return LZ4
	case bytes.HasPrefix(data, s2Magic):
		return S2
	case isZlib(data):
		return Zlib
	}
	return None
}

// isZlib checks the RFC 1950 header: deflate method and a valid check value.
func isZlib(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	return cmf&0x0F == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// zstdDecoderPool pools zstd decoders; DecodeAll is stateless.
var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(MaxDecompressedSize),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}
		return decoder
	},
}

// Decompress unwraps data according to its detected wrapper. Unwrapped data
// is returned as is.
func Decompress(data []byte) ([]byte, Compression, error) {
	kind := Detect(data)

	var (
		out []byte
		err error
	)
	switch kind {
	case None:
		return data, None, nil
	case Zstd:
		decoder := zstdDecoderPool.Get().(*zstd.Decoder)
		defer zstdDecoderPool.Put(decoder)
		out, err = decoder.DecodeAll(data, nil)
	case Gzip:
		var r *gzip.Reader
		if r, err = gzip.NewReader(bytes.NewReader(data)); err == nil {
			out, err = readLimited(r)
			r.Close()
		}
	case Zlib:
		var r io.ReadCloser
		if r, err = zlib.NewReader(bytes.NewReader(data)); err == nil {
			out, err = readLimited(r)
			r.Close()
		}
	case LZ4:
		out, err = readLimited(lz4.NewReader(bytes.NewReader(data)))
	case S2:
		out, err = readLimited(s2.NewReader(bytes.NewReader(data)))
	}
	if err != nil {
		return nil, kind, fmt.Errorf("%s decompression failed: %w", kind, err)
	}
	return out, kind, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, MaxDecompressedSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxDecompressedSize {
		return nil, ErrTooLarge
	}
	return out, nil
}

// Compress wraps data with the given wrapper. It is used to produce packed
// copies of archives and by tests.
func Compress(data []byte, kind Compression) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser

	switch kind {
	case None:
		return data, nil
	case Zstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Zlib:
		w = zlib.NewWriter(&buf)
	case LZ4:
		w = lz4.NewWriter(&buf)
	case S2:
		w = s2.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("unknown compression %s", kind)
	}

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%s compression failed: %w", kind, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s compression failed: %w", kind, err)
	}
	return buf.Bytes(), nil
}
