// Package formats decodes the records stored inside relocated DRM archives:
// levels, terrain, terrain groups and their octrees, collision meshes,
// placements, background objects, models and texture sections.
//
// Every decoder takes an archive and a drm.Pointer and opens its own cursor,
// so decoders can be called in any order and recursion needs no cursor
// bookkeeping.
package formats

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/drmview/pkg/drm"
)

// Decoding errors.
var (
	ErrNullPointer              = errors.New("required pointer is null")
	ErrModelVersion             = errors.New("unsupported model version")
	ErrUnsupportedTextureFormat = errors.New("unsupported texture format")
)

// UVScale converts signed 16-bit texture coordinates to floats (1/4096).
const UVScale float32 = 0.00024414062

// DefaultMaxOctreeDepth bounds octree recursion when no limit is configured.
const DefaultMaxOctreeDepth = 64

// LegendMode selects the markup record layout.
type LegendMode int

// Markup layouts. LegendAuto picks Legend when the terrain carries a
// render-data id.
const (
	LegendAuto LegendMode = iota
	LegendOn
	LegendOff
)

// ParseLegendMode parses "auto", "true" or "false".
func ParseLegendMode(s string) (LegendMode, error) {
	switch s {
	case "", "auto":
		return LegendAuto, nil
	case "true", "legend":
		return LegendOn, nil
	case "false", "anniversary":
		return LegendOff, nil
	}
	return LegendAuto, fmt.Errorf("invalid legend mode %q", s)
}

// DecodeOptions controls record decoding.
type DecodeOptions struct {
	// HalfScale multiplies expanded half floats (drm.HalfScaleRaw or
	// drm.HalfScaleLegacy). Zero means drm.HalfScaleRaw.
	HalfScale float32

	// HalfFormat is the layout of 16-bit float fields.
	HalfFormat drm.HalfFormat

	// MaxOctreeDepth limits octree recursion. Zero means DefaultMaxOctreeDepth.
	MaxOctreeDepth int

	Legend LegendMode

	// Logger receives debug output. Nil means no logging.
	Logger *zap.Logger
}

// Decoder decodes records from one relocated archive.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	archive *drm.Archive
	opts    DecodeOptions
	log     *zap.Logger
}

// NewDecoder returns a decoder over a.
func NewDecoder(a *drm.Archive, opts DecodeOptions) *Decoder {
	if opts.HalfScale == 0 {
		opts.HalfScale = drm.HalfScaleRaw
	}
	if opts.MaxOctreeDepth <= 0 {
		opts.MaxOctreeDepth = DefaultMaxOctreeDepth
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{archive: a, opts: opts, log: log}
}

// Archive returns the archive being decoded.
func (d *Decoder) Archive() *drm.Archive {
	return d.archive
}

// cursor opens a cursor at p.
func (d *Decoder) cursor(p drm.Pointer) (*drm.Cursor, error) {
	if p.IsNull() {
		return nil, ErrNullPointer
	}
	return d.archive.CursorAt(p)
}

// pointer consumes a pointer field at c, owned by the section of base.
func (d *Decoder) pointer(c *drm.Cursor, base drm.Pointer) (drm.Pointer, error) {
	return d.archive.PointerHere(c, base.Section)
}

// checkCount validates a record count read from the archive against the
// bytes that remain at c.
func checkCount(what string, n int32, stride int, c *drm.Cursor) error {
	if n < 0 {
		return fmt.Errorf("%w: negative %s count %d", drm.ErrStructuralInvariant, what, n)
	}
	if int64(n)*int64(stride) > int64(c.Remaining()) {
		return fmt.Errorf("%w: %d %s records of %d bytes at 0x%x", drm.ErrOutOfBounds, n, what, stride, c.Tell())
	}
	return nil
}

// readIndices reads n int16 strip indices.
func readIndices(c *drm.Cursor, n int) ([]int16, error) {
	indices := make([]int16, n)
	for i := range indices {
		v, err := c.Int16()
		if err != nil {
			return nil, err
		}
		indices[i] = v
	}
	return indices, nil
}

// stripVisitor guards linked strip lists against cycles.
type stripVisitor map[drm.Pointer]struct{}

func (v stripVisitor) visit(p drm.Pointer) error {
	if _, ok := v[p]; ok {
		return fmt.Errorf("%w: strip list revisits %s", drm.ErrStructuralInvariant, p)
	}
	v[p] = struct{}{}
	return nil
}
