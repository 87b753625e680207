package formats

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/math"
)

// TerrainGroupSize is the stride of the terrain group array.
const TerrainGroupSize = 176

// Terrain group field offsets.
const (
	groupFlagsOffset     = 32
	groupCollisionOffset = 56
	groupOctreeOffset    = 68
	groupMaterialsOffset = 144
)

// FlagSkydome marks a terrain group that renders the sky.
const FlagSkydome uint32 = 0x200000

// materialRecordSize is the stride of a material list entry.
const materialRecordSize = 20

// TerrainMaterial is one entry of a terrain group's material list.
type TerrainMaterial struct {
	TPageID          uint32
	Flags            uint32
	VertexBaseOffset uint32
	TextureID        uint32 // TPageID & 0x1FFF
}

// UsesVMOBuffer reports whether the material's strips index the VMO vertex
// buffer instead of the main terrain buffer.
func (m TerrainMaterial) UsesVMOBuffer() bool {
	return m.Flags&0x1C != 0
}

// TerrainStrip is a strip whose indices are already offset into the global
// terrain vertex pool.
type TerrainStrip struct {
	Material int
	VMO      bool // the source record references the VMO object pool
	Indices  []uint32
}

// TerrainGroup is one placement group of terrain geometry.
type TerrainGroup struct {
	Origin    math.Vec3
	Flags     uint32
	Materials []TerrainMaterial
	Octree    *OctreeNode // nil when the group has no octree
	Collision *MeshGeometry
	Strips    []TerrainStrip
}

// IsSkydome reports whether the sky-dome flag is set.
func (g *TerrainGroup) IsSkydome() bool {
	return g.Flags&FlagSkydome != 0
}

// TerrainGroups decodes n consecutive terrain groups starting at p.
func (d *Decoder) TerrainGroups(p drm.Pointer, n int32) ([]*TerrainGroup, error) {
	if n == 0 {
		return nil, nil
	}
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("terrain groups: %w", err)
	}
	if err := checkCount("terrain group", n, TerrainGroupSize, c); err != nil {
		return nil, err
	}

	groups := make([]*TerrainGroup, n)
	for i := range groups {
		g, err := d.TerrainGroup(p.Add(uint32(i) * TerrainGroupSize))
		if err != nil {
			return nil, fmt.Errorf("terrain group %d: %w", i, err)
		}
		groups[i] = g
	}
	return groups, nil
}

// TerrainGroup decodes the group at p: origin and flags, material list,
// octree with its strips and collision mesh. Strip indices are joined with
// their material's vertex base offset before returning.
func (d *Decoder) TerrainGroup(p drm.Pointer) (*TerrainGroup, error) {
	c, err := d.cursor(p)
	if err != nil {
		return nil, err
	}
	start := c.Tell()

	g := &TerrainGroup{}
	if g.Origin, err = c.Vec3(); err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	c.Seek(start + groupFlagsOffset)
	if g.Flags, err = c.Uint32(); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}

	c.Seek(start + groupCollisionOffset)
	collision, err := d.pointer(c, p)
	if err != nil {
		return nil, fmt.Errorf("collision mesh: %w", err)
	}
	c.Seek(start + groupOctreeOffset)
	octree, err := d.pointer(c, p)
	if err != nil {
		return nil, fmt.Errorf("octree: %w", err)
	}
	c.Seek(start + groupMaterialsOffset)
	materials, err := d.pointer(c, p)
	if err != nil {
		return nil, fmt.Errorf("material list: %w", err)
	}

	if !materials.IsNull() {
		if g.Materials, err = d.materialList(materials); err != nil {
			return nil, err
		}
	}

	if !octree.IsNull() {
		if g.Octree, err = d.Octree(octree); err != nil {
			return nil, err
		}
		if g.Strips, err = g.materialize(g.Octree.AllStrips()); err != nil {
			return nil, err
		}
	}

	if !collision.IsNull() {
		if g.Collision, err = d.Mesh(collision); err != nil {
			return nil, fmt.Errorf("collision mesh: %w", err)
		}
	}

	if g.IsSkydome() {
		d.log.Debug("sky-dome terrain group", zap.Stringer("group", p))
	}
	return g, nil
}

func (d *Decoder) materialList(p drm.Pointer) ([]TerrainMaterial, error) {
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("material list: %w", err)
	}
	count, err := c.Int32()
	if err != nil {
		return nil, fmt.Errorf("material count: %w", err)
	}
	if err := checkCount("material", count, materialRecordSize, c); err != nil {
		return nil, err
	}

	materials := make([]TerrainMaterial, count)
	for i := range materials {
		m := &materials[i]
		if m.TPageID, err = c.Uint32(); err != nil {
			return nil, err
		}
		if m.Flags, err = c.Uint32(); err != nil {
			return nil, err
		}
		if m.VertexBaseOffset, err = c.Uint32(); err != nil {
			return nil, err
		}
		m.TextureID = m.TPageID & 0x1FFF
		c.Skip(8)
	}
	return materials, nil
}

// materialize offsets every raw strip index by its material's vertex base.
func (g *TerrainGroup) materialize(records []StripRecord) ([]TerrainStrip, error) {
	strips := make([]TerrainStrip, 0, len(records))
	for _, r := range records {
		if r.MaterialIndex < 0 || int(r.MaterialIndex) >= len(g.Materials) {
			return nil, fmt.Errorf("%w: strip material %d of %d",
				drm.ErrStructuralInvariant, r.MaterialIndex, len(g.Materials))
		}
		base := int64(g.Materials[r.MaterialIndex].VertexBaseOffset)

		indices := make([]uint32, len(r.Indices))
		for i, raw := range r.Indices {
			final := base + int64(raw)
			if final < 0 || final > int64(^uint32(0)) {
				return nil, fmt.Errorf("%w: vertex index %d + %d out of range", drm.ErrStructuralInvariant, base, raw)
			}
			indices[i] = uint32(final)
		}
		strips = append(strips, TerrainStrip{
			Material: int(r.MaterialIndex),
			VMO:      r.UsesVMO(),
			Indices:  indices,
		})
	}
	return strips, nil
}
