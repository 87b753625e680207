package formats

import (
	"fmt"

	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/math"
)

// VertexType selects the coordinate encoding of a collision mesh.
type VertexType uint16

// Collision mesh vertex encodings.
const (
	VertexInt16   VertexType = 0
	VertexFloat32 VertexType = 1
)

// String returns the encoding name.
func (t VertexType) String() string {
	switch t {
	case VertexInt16:
		return "int16"
	case VertexFloat32:
		return "float32"
	}
	return fmt.Sprintf("VertexType(%d)", uint16(t))
}

// MeshGeometry is an indexed triangle mesh used for collision and signals.
type MeshGeometry struct {
	VertexType VertexType
	Vertices   []math.Vec3
	Faces      [][3]uint16
}

// Mesh decodes the collision mesh header at p and its vertex and face arrays.
func (d *Decoder) Mesh(p drm.Pointer) (*MeshGeometry, error) {
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("mesh %s: %w", p, err)
	}

	c.Skip(48)
	vertices, err := d.pointer(c, p)
	if err != nil {
		return nil, fmt.Errorf("mesh %s vertices: %w", p, err)
	}
	faces, err := d.pointer(c, p)
	if err != nil {
		return nil, fmt.Errorf("mesh %s faces: %w", p, err)
	}
	c.Skip(8)
	vt, err := c.Uint16()
	if err != nil {
		return nil, fmt.Errorf("mesh %s vertex type: %w", p, err)
	}
	c.Skip(2)
	numFaces, err := c.Uint16()
	if err != nil {
		return nil, fmt.Errorf("mesh %s face count: %w", p, err)
	}
	numVertices, err := c.Uint16()
	if err != nil {
		return nil, fmt.Errorf("mesh %s vertex count: %w", p, err)
	}

	mesh := &MeshGeometry{VertexType: VertexType(vt)}
	if mesh.VertexType != VertexInt16 && mesh.VertexType != VertexFloat32 {
		return nil, fmt.Errorf("%w: mesh %s vertex type %d", drm.ErrStructuralInvariant, p, vt)
	}

	if numVertices > 0 {
		if mesh.Vertices, err = d.meshVertices(vertices, mesh.VertexType, int(numVertices)); err != nil {
			return nil, fmt.Errorf("mesh %s: %w", p, err)
		}
	}
	if numFaces > 0 {
		if mesh.Faces, err = d.meshFaces(faces, int(numFaces), int(numVertices)); err != nil {
			return nil, fmt.Errorf("mesh %s: %w", p, err)
		}
	}
	return mesh, nil
}

func (d *Decoder) meshVertices(p drm.Pointer, vt VertexType, n int) ([]math.Vec3, error) {
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("vertices: %w", err)
	}

	stride := 6
	if vt == VertexFloat32 {
		stride = 16
	}
	if err := checkCount("mesh vertex", int32(n), stride, c); err != nil {
		return nil, err
	}

	out := make([]math.Vec3, n)
	for i := range out {
		if vt == VertexFloat32 {
			if out[i], err = c.Vec3(); err != nil {
				return nil, err
			}
			c.Skip(4)
			continue
		}
		var xyz [3]int16
		for j := range xyz {
			if xyz[j], err = c.Int16(); err != nil {
				return nil, err
			}
		}
		out[i] = math.Vec3{X: float32(xyz[0]), Y: float32(xyz[1]), Z: float32(xyz[2])}
	}
	return out, nil
}

func (d *Decoder) meshFaces(p drm.Pointer, n, numVertices int) ([][3]uint16, error) {
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("faces: %w", err)
	}
	if err := checkCount("mesh face", int32(n), 10, c); err != nil {
		return nil, err
	}

	out := make([][3]uint16, n)
	for i := range out {
		for j := 0; j < 3; j++ {
			if out[i][j], err = c.Uint16(); err != nil {
				return nil, err
			}
			if int(out[i][j]) >= numVertices {
				return nil, fmt.Errorf("%w: face %d references vertex %d of %d",
					drm.ErrStructuralInvariant, i, out[i][j], numVertices)
			}
		}
		c.Skip(4)
	}
	return out, nil
}
