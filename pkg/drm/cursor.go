package drm

import (
	"encoding/binary"
	"fmt"
	stdmath "math"

	"github.com/x448/float16"

	"github.com/Faultbox/drmview/pkg/encoding"
	"github.com/Faultbox/drmview/pkg/math"
)

// Half-float scaling conventions found across format revisions.
const (
	HalfScaleRaw    float32 = 1    // plain IEEE-754 binary16
	HalfScaleLegacy float32 = 2048 // binary16 multiplied by 2048
)

// HalfFormat selects how a 16-bit float field is expanded.
type HalfFormat int

// Half-float layouts.
const (
	HalfIEEE      HalfFormat = iota // IEEE-754 binary16
	HalfTruncated                   // upper 16 bits of a binary32 (bfloat16)
)

// String returns the config name of the format.
func (f HalfFormat) String() string {
	if f == HalfTruncated {
		return "bfloat16"
	}
	return "ieee"
}

// ParseHalfFormat parses a config value. An empty string means HalfIEEE.
func ParseHalfFormat(s string) (HalfFormat, error) {
	switch s {
	case "", "ieee":
		return HalfIEEE, nil
	case "bfloat16":
		return HalfTruncated, nil
	}
	return HalfIEEE, fmt.Errorf("invalid half float mode %q", s)
}

// Cursor is a sequential little-endian reader over an immutable buffer.
// A Cursor is not safe for concurrent use; create one per decoder.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor returns a cursor positioned at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Seek sets the absolute position. Out-of-range positions are reported by
// the next read.
func (c *Cursor) Seek(pos int) {
	c.pos = pos
}

// Skip moves the position by delta bytes; delta may be negative.
func (c *Cursor) Skip(delta int) {
	c.pos += delta
}

// Tell returns the current position.
func (c *Cursor) Tell() int {
	return c.pos
}

// Remaining returns the number of bytes left after the current position.
func (c *Cursor) Remaining() int {
	if c.pos < 0 || c.pos > len(c.data) {
		return 0
	}
	return len(c.data) - c.pos
}

// take returns the next n bytes and advances past them.
func (c *Cursor) take(n int) ([]byte, error) {
	if c.pos < 0 || n < 0 || n > len(c.data)-c.pos {
		return nil, fmt.Errorf("%w: reading %d bytes at 0x%x (size 0x%x)", ErrOutOfBounds, n, c.pos, len(c.data))
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Uint8 reads an unsigned byte.
func (c *Cursor) Uint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Int8 reads a signed byte.
func (c *Cursor) Int8() (int8, error) {
	v, err := c.Uint8()
	return int8(v), err
}

// Uint16 reads a little-endian uint16.
func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Int16 reads a little-endian int16.
func (c *Cursor) Int16() (int16, error) {
	v, err := c.Uint16()
	return int16(v), err
}

// Uint32 reads a little-endian uint32.
func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Int32 reads a little-endian int32.
func (c *Cursor) Int32() (int32, error) {
	v, err := c.Uint32()
	return int32(v), err
}

// Float32 reads a little-endian IEEE-754 single.
func (c *Cursor) Float32() (float32, error) {
	v, err := c.Uint32()
	return stdmath.Float32frombits(v), err
}

// Float16 reads a little-endian 16-bit float in format f and expands it,
// multiplying by scale (HalfScaleRaw or HalfScaleLegacy).
func (c *Cursor) Float16(f HalfFormat, scale float32) (float32, error) {
	v, err := c.Uint16()
	if err != nil {
		return 0, err
	}
	return HalfToFloat32(v, f, scale), nil
}

// HalfToFloat32 expands h and applies scale. For HalfIEEE, subnormals,
// infinities and NaN follow IEEE-754 half semantics; HalfTruncated places
// h in the upper half of a binary32.
func HalfToFloat32(h uint16, f HalfFormat, scale float32) float32 {
	if f == HalfTruncated {
		return stdmath.Float32frombits(uint32(h)<<16) * scale
	}
	return float16.Frombits(h).Float32() * scale
}

// Vec3 reads three consecutive floats.
func (c *Cursor) Vec3() (math.Vec3, error) {
	b, err := c.take(12)
	if err != nil {
		return math.Vec3{}, err
	}
	return math.Vec3{
		X: stdmath.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Y: stdmath.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: stdmath.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}, nil
}

// Mat4 reads sixteen consecutive floats in column-major order.
func (c *Cursor) Mat4() (math.Mat4, error) {
	var m math.Mat4
	b, err := c.take(64)
	if err != nil {
		return m, err
	}
	for i := range m {
		m[i] = stdmath.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return m, nil
}

// FixedString reads exactly n bytes and decodes them up to the first null.
func (c *Cursor) FixedString(n int) (string, error) {
	b, err := c.take(n)
	if err != nil {
		return "", err
	}
	return encoding.FixedString(b), nil
}

// CString reads a null-terminated string and advances past the terminator.
func (c *Cursor) CString() (string, error) {
	if c.pos < 0 || c.pos >= len(c.data) {
		return "", fmt.Errorf("%w: string at 0x%x (size 0x%x)", ErrOutOfBounds, c.pos, len(c.data))
	}
	rest := c.data[c.pos:]
	s := encoding.CutNull(rest)
	if len(s) == len(rest) {
		return "", fmt.Errorf("%w: unterminated string at 0x%x", ErrOutOfBounds, c.pos)
	}
	c.pos += len(s) + 1
	return encoding.Latin1ToUTF8(s), nil
}

// Slice returns a view of data[start:end]. The view aliases the buffer and
// must not be modified.
func (c *Cursor) Slice(start, end int) ([]byte, error) {
	if start < 0 || end < start || end > len(c.data) {
		return nil, fmt.Errorf("%w: slice [0x%x:0x%x] (size 0x%x)", ErrOutOfBounds, start, end, len(c.data))
	}
	return c.data[start:end:end], nil
}

// Bytes reads the next n bytes as a view.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	return b[:n:n], nil
}
