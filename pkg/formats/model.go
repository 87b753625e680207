package formats

import (
	"fmt"

	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/math"
)

// ModelVersion is the only supported model record version.
const ModelVersion int32 = 79823955

// Model record layout.
const (
	objectNumModelsOffset = 24
	objectModelListOffset = 32
	modelStripOffset      = 88
	segmentSize           = 64
	modelVertexSize       = 16
)

// Segment is a skeleton bone.
type Segment struct {
	Position math.Vec3 // relative to the parent segment
	Parent   int32     // -1 for the root
}

// ModelVertex is a model vertex in object space.
type ModelVertex struct {
	Position math.Vec3
	Segment  int16
	U, V     float32
}

// ModelStrip is a textured strip of a model.
type ModelStrip struct {
	TPageID   uint32
	TextureID uint32
	Indices   []int16
}

// Model is a skinned mesh with its skeleton.
type Model struct {
	Scale           math.Vec3
	Segments        []Segment
	VirtualSegments []int16 // segment index for each virtual segment
	Vertices        []ModelVertex
	Strips          []ModelStrip
}

// Object is the top-level record of an object archive.
type Object struct {
	Models []*Model
}

// ParseObject decodes the object stored in a relocated archive.
func ParseObject(a *drm.Archive, opts DecodeOptions) (*Object, error) {
	return NewDecoder(a, opts).Object()
}

// Object decodes the object header at the start of section 0 and every
// model in its model list.
func (d *Decoder) Object() (*Object, error) {
	base := d.archive.Entry()
	c, err := d.cursor(base)
	if err != nil {
		return nil, fmt.Errorf("object: %w", err)
	}
	start := c.Tell()

	c.Seek(start + objectNumModelsOffset)
	numModels, err := c.Int16()
	if err != nil {
		return nil, fmt.Errorf("object model count: %w", err)
	}
	c.Seek(start + objectModelListOffset)
	list, err := d.pointer(c, base)
	if err != nil {
		return nil, fmt.Errorf("object model list: %w", err)
	}

	obj := &Object{}
	if numModels <= 0 {
		return obj, nil
	}
	if list.IsNull() {
		return nil, fmt.Errorf("%w: object model list", ErrNullPointer)
	}

	for i := 0; i < int(numModels); i++ {
		mp, err := d.archive.PointerAt(list.Add(uint32(i) * 4))
		if err != nil {
			return nil, fmt.Errorf("model %d: %w", i, err)
		}
		if mp.IsNull() {
			return nil, fmt.Errorf("%w: model %d", ErrNullPointer, i)
		}
		m, err := d.Model(mp)
		if err != nil {
			return nil, fmt.Errorf("model %d: %w", i, err)
		}
		obj.Models = append(obj.Models, m)
	}
	return obj, nil
}

// Model decodes the model at p. Vertex positions are scaled and moved into
// object space through their segment's accumulated bone offset.
func (d *Decoder) Model(p drm.Pointer) (*Model, error) {
	c, err := d.cursor(p)
	if err != nil {
		return nil, err
	}
	start := c.Tell()

	version, err := c.Int32()
	if err != nil {
		return nil, err
	}
	if version != ModelVersion {
		return nil, fmt.Errorf("%w: %d", ErrModelVersion, version)
	}

	numSegments, err := c.Int32()
	if err != nil {
		return nil, err
	}
	numVirtSegments, err := c.Int32()
	if err != nil {
		return nil, err
	}
	segments, err := d.pointer(c, p)
	if err != nil {
		return nil, fmt.Errorf("segment list: %w", err)
	}

	m := &Model{}
	if m.Scale, err = c.Vec3(); err != nil {
		return nil, err
	}
	c.Skip(4)
	numVertices, err := c.Int32()
	if err != nil {
		return nil, err
	}
	vertices, err := d.pointer(c, p)
	if err != nil {
		return nil, fmt.Errorf("vertex list: %w", err)
	}
	c.Seek(start + modelStripOffset)
	stripHead, err := d.pointer(c, p)
	if err != nil {
		return nil, fmt.Errorf("strip list: %w", err)
	}

	if numSegments > 0 || numVirtSegments > 0 {
		if err := d.segments(m, segments, numSegments, numVirtSegments); err != nil {
			return nil, err
		}
	}
	if numVertices > 0 {
		if err := d.modelVertices(m, vertices, numVertices); err != nil {
			return nil, err
		}
	}
	if m.Strips, err = d.modelStrips(stripHead); err != nil {
		return nil, err
	}
	return m, nil
}

// segments reads the segment array followed by the virtual segments.
func (d *Decoder) segments(m *Model, p drm.Pointer, n, virt int32) error {
	c, err := d.cursor(p)
	if err != nil {
		return fmt.Errorf("segments: %w", err)
	}
	if n < 0 || virt < 0 {
		return fmt.Errorf("%w: segment counts %d/%d", drm.ErrStructuralInvariant, n, virt)
	}
	if err := checkCount("segment", n+virt, segmentSize, c); err != nil {
		return err
	}

	m.Segments = make([]Segment, n)
	for i := range m.Segments {
		start := c.Tell()
		c.Skip(32)
		if m.Segments[i].Position, err = c.Vec3(); err != nil {
			return err
		}
		c.Skip(12)
		if m.Segments[i].Parent, err = c.Int32(); err != nil {
			return err
		}
		c.Seek(start + segmentSize)
	}

	m.VirtualSegments = make([]int16, virt)
	for i := range m.VirtualSegments {
		start := c.Tell()
		c.Skip(56)
		idx, err := c.Int16()
		if err != nil {
			return err
		}
		if idx < 0 || int32(idx) >= n {
			return fmt.Errorf("%w: virtual segment %d maps to segment %d of %d",
				drm.ErrStructuralInvariant, i, idx, n)
		}
		m.VirtualSegments[i] = idx
		c.Seek(start + segmentSize)
	}
	return nil
}

// BonePositions returns the object-space position of each segment, the sum
// of its own position and those of its ancestors.
func (m *Model) BonePositions() ([]math.Vec3, error) {
	out := make([]math.Vec3, len(m.Segments))
	for i := range m.Segments {
		var pos math.Vec3
		cur := int32(i)
		for steps := 0; cur != -1; steps++ {
			if cur < 0 || int(cur) >= len(m.Segments) || steps > len(m.Segments) {
				return nil, fmt.Errorf("%w: segment %d has a broken parent chain",
					drm.ErrStructuralInvariant, i)
			}
			pos = pos.Add(m.Segments[cur].Position)
			cur = m.Segments[cur].Parent
		}
		out[i] = pos
	}
	return out, nil
}

// boneFor maps a vertex segment index to a real segment, following the
// virtual segment table for indices past the segment array.
func (m *Model) boneFor(segment int16) (int, error) {
	s := int(segment)
	if s >= 0 && s < len(m.Segments) {
		return s, nil
	}
	v := s - len(m.Segments)
	if v >= 0 && v < len(m.VirtualSegments) {
		return int(m.VirtualSegments[v]), nil
	}
	return 0, fmt.Errorf("%w: vertex segment %d of %d+%d",
		drm.ErrStructuralInvariant, segment, len(m.Segments), len(m.VirtualSegments))
}

func (d *Decoder) modelVertices(m *Model, p drm.Pointer, n int32) error {
	c, err := d.cursor(p)
	if err != nil {
		return fmt.Errorf("model vertices: %w", err)
	}
	if err := checkCount("model vertex", n, modelVertexSize, c); err != nil {
		return err
	}
	bones, err := m.BonePositions()
	if err != nil {
		return err
	}

	m.Vertices = make([]ModelVertex, n)
	for i := range m.Vertices {
		start := c.Tell()
		var xyz [3]int16
		for j := range xyz {
			if xyz[j], err = c.Int16(); err != nil {
				return err
			}
		}
		c.Skip(4)
		segment, err := c.Int16()
		if err != nil {
			return err
		}
		u, err := c.Float16(d.opts.HalfFormat, d.opts.HalfScale)
		if err != nil {
			return err
		}
		v, err := c.Float16(d.opts.HalfFormat, d.opts.HalfScale)
		if err != nil {
			return err
		}

		local := math.Vec3{X: float32(xyz[0]), Y: float32(xyz[1]), Z: float32(xyz[2])}.Mul(m.Scale)
		if len(bones) > 0 {
			bone, err := m.boneFor(segment)
			if err != nil {
				return fmt.Errorf("model vertex %d: %w", i, err)
			}
			local = local.Add(bones[bone])
		}
		m.Vertices[i] = ModelVertex{Position: local, Segment: segment, U: u, V: v}
		c.Seek(start + modelVertexSize)
	}
	return nil
}

func (d *Decoder) modelStrips(head drm.Pointer) ([]ModelStrip, error) {
	var strips []ModelStrip
	seen := stripVisitor{}

	for p := head; !p.IsNull(); {
		if err := seen.visit(p); err != nil {
			return nil, err
		}
		c, err := d.cursor(p)
		if err != nil {
			return nil, fmt.Errorf("model strip %s: %w", p, err)
		}
		count, err := c.Int16()
		if err != nil {
			return nil, err
		}
		if count == 0 {
			break
		}
		c.Skip(2)
		tpage, err := c.Uint32()
		if err != nil {
			return nil, err
		}
		c.Skip(8)
		next, err := d.pointer(c, p)
		if err != nil {
			return nil, fmt.Errorf("model strip %s next: %w", p, err)
		}
		if err := checkCount("model strip index", int32(count), 2, c); err != nil {
			return nil, err
		}
		indices, err := readIndices(c, int(count))
		if err != nil {
			return nil, err
		}
		strips = append(strips, ModelStrip{TPageID: tpage, TextureID: tpage & 0x1FFF, Indices: indices})
		p = next
	}
	return strips, nil
}
