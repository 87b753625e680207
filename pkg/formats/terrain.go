package formats

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/drmview/pkg/drm"
)

// Terrain vertex strides.
const (
	terrainVertexSize = 20
	vmoVertexSize     = 36
)

// TerrainVertex is one entry of the terrain or VMO vertex buffer.
type TerrainVertex struct {
	X, Y, Z int16
	Color   uint32 // 0xAARRGGBB
	U, V    float32
}

// RGB returns the colour channels of the vertex.
func (v TerrainVertex) RGB() (r, g, b uint8) {
	return uint8(v.Color >> 16), uint8(v.Color >> 8), uint8(v.Color)
}

// Terrain holds the geometry and placements of a level.
type Terrain struct {
	Intros      []Intro
	Portals     []StreamPortal
	Groups      []*TerrainGroup
	SignalMesh  *MeshGeometry
	BGInstances []BGInstance
	BGObjects   []*BGObject
	Vertices    []TerrainVertex
	VMOVertices []TerrainVertex

	// CDCRenderDataID is non-zero for archives carrying next-generation
	// render data, which identifies the Legend markup layout.
	CDCRenderDataID uint32
}

// terrainHeader holds the counts and pointers of the terrain record.
type terrainHeader struct {
	numIntros, numPortals, numGroups     int32
	numBGInstances, numBGObjects         int32
	numVertices, numVMOVertices          int32
	intros, portals, groups, signalGroup drm.Pointer
	bgInstances, bgObjects               drm.Pointer
	vertexBuffer, vmoBuffer              drm.Pointer
	cdcRenderDataID                      uint32
}

func (d *Decoder) terrainHeader(p drm.Pointer) (*terrainHeader, error) {
	c, err := d.cursor(p)
	if err != nil {
		return nil, err
	}
	start := c.Tell()
	h := &terrainHeader{}

	type field struct {
		off int
		i32 *int32
		ptr *drm.Pointer
	}
	fields := []field{
		{4, &h.numIntros, nil},
		{8, nil, &h.intros},
		{12, &h.numPortals, nil},
		{16, nil, &h.portals},
		{20, &h.numGroups, nil},
		{24, nil, &h.groups},
		{28, nil, &h.signalGroup},
		{40, &h.numBGInstances, nil},
		{44, nil, &h.bgInstances},
		{48, &h.numBGObjects, nil},
		{52, nil, &h.bgObjects},
		{68, nil, &h.vertexBuffer},
		{72, nil, &h.vmoBuffer},
		{84, &h.numVertices, nil},
		{92, &h.numVMOVertices, nil},
	}
	for _, f := range fields {
		c.Seek(start + f.off)
		if f.ptr != nil {
			if *f.ptr, err = d.pointer(c, p); err != nil {
				return nil, fmt.Errorf("field 0x%x: %w", f.off, err)
			}
			continue
		}
		if *f.i32, err = c.Int32(); err != nil {
			return nil, fmt.Errorf("field 0x%x: %w", f.off, err)
		}
	}

	c.Seek(start + 96)
	if h.cdcRenderDataID, err = c.Uint32(); err != nil {
		return nil, err
	}
	return h, nil
}

// Terrain decodes the terrain record at p and everything it references.
func (d *Decoder) Terrain(p drm.Pointer) (*Terrain, error) {
	h, err := d.terrainHeader(p)
	if err != nil {
		return nil, fmt.Errorf("terrain %s: %w", p, err)
	}
	t := &Terrain{CDCRenderDataID: h.cdcRenderDataID}

	if h.vertexBuffer.IsNull() && h.numVertices > 0 {
		return nil, fmt.Errorf("%w: terrain vertex buffer", ErrNullPointer)
	}
	if t.Vertices, err = d.terrainVertices(h.vertexBuffer, h.numVertices, terrainVertexSize); err != nil {
		return nil, fmt.Errorf("terrain vertices: %w", err)
	}
	if h.vmoBuffer.IsNull() && h.numVMOVertices > 0 {
		return nil, fmt.Errorf("%w: VMO vertex buffer", ErrNullPointer)
	}
	if t.VMOVertices, err = d.terrainVertices(h.vmoBuffer, h.numVMOVertices, vmoVertexSize); err != nil {
		return nil, fmt.Errorf("VMO vertices: %w", err)
	}

	if t.Groups, err = d.TerrainGroups(h.groups, h.numGroups); err != nil {
		return nil, err
	}
	if t.Intros, err = d.Intros(h.intros, h.numIntros); err != nil {
		return nil, err
	}
	if t.Portals, err = d.Portals(h.portals, h.numPortals); err != nil {
		return nil, err
	}
	if t.BGInstances, err = d.BGInstances(h.bgInstances, h.numBGInstances, h.bgObjects); err != nil {
		return nil, err
	}
	if t.BGObjects, err = d.BGObjects(h.bgObjects, h.numBGObjects); err != nil {
		return nil, err
	}
	for i, inst := range t.BGInstances {
		if inst.Object >= len(t.BGObjects) {
			return nil, fmt.Errorf("%w: BG instance %d references object %d of %d",
				drm.ErrStructuralInvariant, i, inst.Object, len(t.BGObjects))
		}
	}

	if !h.signalGroup.IsNull() {
		signal, err := d.archive.PointerAt(h.signalGroup.Add(groupCollisionOffset))
		if err != nil {
			return nil, fmt.Errorf("signal mesh: %w", err)
		}
		if !signal.IsNull() {
			if t.SignalMesh, err = d.Mesh(signal); err != nil {
				return nil, fmt.Errorf("signal mesh: %w", err)
			}
		}
	}

	d.log.Debug("terrain decoded",
		zap.Int("groups", len(t.Groups)),
		zap.Int("vertices", len(t.Vertices)),
		zap.Int("vmoVertices", len(t.VMOVertices)),
		zap.Int("intros", len(t.Intros)),
		zap.Int("portals", len(t.Portals)),
		zap.Int("bgInstances", len(t.BGInstances)),
		zap.Int("bgObjects", len(t.BGObjects)))
	return t, nil
}

func (d *Decoder) terrainVertices(p drm.Pointer, n int32, stride int) ([]TerrainVertex, error) {
	if n == 0 {
		return nil, nil
	}
	c, err := d.cursor(p)
	if err != nil {
		return nil, err
	}
	if err := checkCount("vertex", n, stride, c); err != nil {
		return nil, err
	}

	out := make([]TerrainVertex, n)
	for i := range out {
		start := c.Tell()
		v := &out[i]
		if v.X, err = c.Int16(); err != nil {
			return nil, err
		}
		if v.Y, err = c.Int16(); err != nil {
			return nil, err
		}
		if v.Z, err = c.Int16(); err != nil {
			return nil, err
		}
		c.Skip(2)
		if v.Color, err = c.Uint32(); err != nil {
			return nil, err
		}
		u, err := c.Int16()
		if err != nil {
			return nil, err
		}
		w, err := c.Int16()
		if err != nil {
			return nil, err
		}
		v.U = float32(u) * UVScale
		v.V = float32(w) * UVScale
		c.Seek(start + stride)
	}
	return out, nil
}
