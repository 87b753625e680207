package formats

import (
	"fmt"

	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/math"
)

// BGObjectSize is the stride of the background object array.
const BGObjectSize = 96

// BGVertex is a scaled background object vertex.
type BGVertex struct {
	Position math.Vec3
	U, V     float32
	Color    uint32 // 0x00RRGGBB
}

// BGStrip is a textured strip of a background object.
type BGStrip struct {
	TPageID   uint32
	TextureID uint32
	Indices   []int16
}

// BGObject is static background geometry shared by BG instances.
type BGObject struct {
	Scale    math.Vec3
	Vertices []BGVertex
	Strips   []BGStrip
}

// BGObjects decodes n consecutive background objects at p.
func (d *Decoder) BGObjects(p drm.Pointer, n int32) ([]*BGObject, error) {
	if n == 0 {
		return nil, nil
	}
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("BG objects: %w", err)
	}
	if err := checkCount("BG object", n, BGObjectSize, c); err != nil {
		return nil, err
	}

	objects := make([]*BGObject, n)
	for i := range objects {
		obj, err := d.BGObject(p.Add(uint32(i) * BGObjectSize))
		if err != nil {
			return nil, fmt.Errorf("BG object %d: %w", i, err)
		}
		objects[i] = obj
	}
	return objects, nil
}

// BGObject decodes the background object at p.
func (d *Decoder) BGObject(p drm.Pointer) (*BGObject, error) {
	c, err := d.cursor(p)
	if err != nil {
		return nil, err
	}
	start := c.Tell()

	obj := &BGObject{}
	if obj.Scale, err = c.Vec3(); err != nil {
		return nil, err
	}
	c.Seek(start + 48)
	stripHead, err := d.pointer(c, p)
	if err != nil {
		return nil, fmt.Errorf("strips: %w", err)
	}
	c.Seek(start + 68)
	vertices, err := d.pointer(c, p)
	if err != nil {
		return nil, fmt.Errorf("vertices: %w", err)
	}
	numVertices, err := c.Int32()
	if err != nil {
		return nil, err
	}
	colors, err := d.pointer(c, p)
	if err != nil {
		return nil, fmt.Errorf("colors: %w", err)
	}

	if numVertices > 0 {
		if obj.Vertices, err = d.bgVertices(vertices, colors, numVertices, obj.Scale); err != nil {
			return nil, err
		}
	}
	if obj.Strips, err = d.bgStrips(stripHead); err != nil {
		return nil, err
	}
	return obj, nil
}

func (d *Decoder) bgVertices(p, colors drm.Pointer, n int32, scale math.Vec3) ([]BGVertex, error) {
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("vertices: %w", err)
	}
	if err := checkCount("BG vertex", n, 12, c); err != nil {
		return nil, err
	}

	out := make([]BGVertex, n)
	for i := range out {
		var raw [5]int16
		for j := range raw {
			if j == 3 {
				c.Skip(2)
			}
			if raw[j], err = c.Int16(); err != nil {
				return nil, err
			}
		}
		out[i] = BGVertex{
			Position: math.Vec3{
				X: float32(raw[0]) * scale.X,
				Y: float32(raw[1]) * scale.Y,
				Z: float32(raw[2]) * scale.Z,
			},
			U: float32(raw[3]) * UVScale,
			V: float32(raw[4]) * UVScale,
		}
	}

	if colors.IsNull() {
		return out, nil
	}
	cc, err := d.cursor(colors)
	if err != nil {
		return nil, fmt.Errorf("colors: %w", err)
	}
	if err := checkCount("BG vertex color", n, 4, cc); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Color, err = cc.Uint32(); err != nil {
			return nil, err
		}
		out[i].Color &= 0xFFFFFF
	}
	return out, nil
}

func (d *Decoder) bgStrips(head drm.Pointer) ([]BGStrip, error) {
	var strips []BGStrip
	seen := stripVisitor{}

	for p := head; !p.IsNull(); {
		if err := seen.visit(p); err != nil {
			return nil, err
		}
		c, err := d.cursor(p)
		if err != nil {
			return nil, fmt.Errorf("BG strip %s: %w", p, err)
		}
		count, err := c.Int32()
		if err != nil {
			return nil, err
		}
		if count == 0 {
			break
		}
		c.Skip(8)
		tpage, err := c.Uint32()
		if err != nil {
			return nil, err
		}
		c.Skip(8)
		next, err := d.pointer(c, p)
		if err != nil {
			return nil, fmt.Errorf("BG strip %s next: %w", p, err)
		}
		if err := checkCount("BG strip index", count, 2, c); err != nil {
			return nil, err
		}
		indices, err := readIndices(c, int(count))
		if err != nil {
			return nil, err
		}
		strips = append(strips, BGStrip{TPageID: tpage, TextureID: tpage & 0x1FFF, Indices: indices})
		p = next
	}
	return strips, nil
}
