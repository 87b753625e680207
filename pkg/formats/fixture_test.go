package formats

import (
	"testing"

	"github.com/Faultbox/drmview/internal/drmtest"
	"github.com/Faultbox/drmview/pkg/drm"
)

// putSphere writes an octree sphere header at off with room for n child
// pointers; the caller adds strip and child relocations.
func putSphere(s *drmtest.Section, off uint32, radius float32, n int32) {
	s.PutVec3(off, 1, 2, 3)
	s.PutF32(off+12, radius)
	s.PutU32(off+16, 0)
	s.PutI32(off+20, n)
	for i := int32(0); i < n; i++ {
		s.PutU32(off+24+uint32(i)*4, 0)
	}
}

// putStrip writes a strip record at off with a null next pointer.
func putStrip(s *drmtest.Section, off uint32, vmo, material int32, indices ...int16) {
	s.PutI32(off, int32(len(indices)))
	s.PutI32(off+stripVMOOffset, vmo)
	s.PutI32(off+stripMaterialOffset, material)
	s.PutU32(off+stripNextOffset, 0)
	for i, v := range indices {
		s.PutI16(off+stripIndicesOffset+uint32(i)*2, v)
	}
}

// putMesh writes a collision mesh header at off with int16 vertices at
// verts and faces at faces.
func putMesh(s *drmtest.Section, off, verts, faces uint32, vertices [][3]int16, tris [][3]uint16) {
	s.PutU32(off+64, uint32(VertexInt16))
	s.PutU16(off+68, uint16(len(tris)))
	s.PutU16(off+70, uint16(len(vertices)))
	s.Pointer(off+48, s, verts)
	s.Pointer(off+52, s, faces)
	for i, v := range vertices {
		for j := range v {
			s.PutI16(verts+uint32(i*6+j*2), v[j])
		}
	}
	for i, f := range tris {
		for j := range f {
			s.PutU16(faces+uint32(i*10+j*2), f[j])
		}
		s.PutU32(faces+uint32(i*10+6), 0)
	}
}

// Offsets of the records in the level fixture's data section.
const (
	fxTerrain    = 0
	fxVertices   = 112
	fxGroups     = 160
	fxMaterials  = 336
	fxOctree     = 368
	fxStrip      = 400
	fxIntros     = 448
	fxPortals    = 560
	fxBGObjects  = 720
	fxBGInstance = 816
	fxBGVertices = 1056
	fxBGColors   = 1068
	fxBGStrip    = 1072
	fxMarkups    = 1108
	fxPolyLine   = 1184
	fxLights     = 1232
	fxUnitName   = 1268
	fxPlayerName = 1276
	fxMesh       = 1284
	fxMeshVerts  = 1356
	fxMeshFaces  = 1376
	fxEnd        = 1388
)

// levelFixture builds a level archive: section 0 holds the level header and
// section 1 holds every record it references.
func levelFixture() *drmtest.Builder {
	b := drmtest.New()
	lvl := b.AddSection(drmtest.TypeGeneral, 1)
	s := b.AddSection(drmtest.TypeGeneral, 2)
	lvl.Alloc(240)
	s.Alloc(fxEnd)

	// Level header
	lvl.Pointer(levelTerrainOffset, s, fxTerrain)
	lvl.PutBytes(levelBackgroundOffset, []byte{10, 20, 30})
	lvl.PutI32(levelMarkupOffset, 1)
	lvl.Pointer(levelMarkupOffset+4, s, fxMarkups)
	lvl.Pointer(levelUnitNameOffset, s, fxUnitName)
	lvl.PutI32(levelLightsOffset, 1)
	lvl.Pointer(levelLightsOffset+4, s, fxLights)
	lvl.Pointer(levelPlayerNameOffset, s, fxPlayerName)

	// Terrain header
	s.PutI32(fxTerrain+4, 1)
	s.Pointer(fxTerrain+8, s, fxIntros)
	s.PutI32(fxTerrain+12, 1)
	s.Pointer(fxTerrain+16, s, fxPortals)
	s.PutI32(fxTerrain+20, 1)
	s.Pointer(fxTerrain+24, s, fxGroups)
	s.Pointer(fxTerrain+28, s, fxGroups)
	s.PutI32(fxTerrain+40, 1)
	s.Pointer(fxTerrain+44, s, fxBGInstance)
	s.PutI32(fxTerrain+48, 1)
	s.Pointer(fxTerrain+52, s, fxBGObjects)
	s.Pointer(fxTerrain+68, s, fxVertices)
	s.PutI32(fxTerrain+84, 2)
	s.PutI32(fxTerrain+92, 0)
	s.PutU32(fxTerrain+96, 0)

	// Terrain vertices
	for i := uint32(0); i < 2; i++ {
		off := fxVertices + i*terrainVertexSize
		s.PutI16(off, int16(100*(i+1)))
		s.PutI16(off+2, -50)
		s.PutI16(off+4, 7)
		s.PutU32(off+8, 0xFF112233)
		s.PutI16(off+12, 4096)
		s.PutI16(off+14, 2048)
	}

	// Terrain group with one material and a single-sphere octree
	s.PutVec3(fxGroups, 10, 20, 30)
	s.PutU32(fxGroups+groupFlagsOffset, 0)
	s.Pointer(fxGroups+groupCollisionOffset, s, fxMesh)
	s.Pointer(fxGroups+groupOctreeOffset, s, fxOctree)
	s.Pointer(fxGroups+groupMaterialsOffset, s, fxMaterials)

	s.PutI32(fxMaterials, 1)
	s.PutU32(fxMaterials+4, 0x200000|0x2000|42)
	s.PutU32(fxMaterials+8, 0)
	s.PutU32(fxMaterials+12, 1000)

	putSphere(s, fxOctree, 50, 0)
	s.Pointer(fxOctree+16, s, fxStrip)
	putStrip(s, fxStrip, -1, 0, 5, 6)

	// Intro
	s.PutVec3(fxIntros, 0, 0, 1.5)
	s.PutVec3(fxIntros+16, 100, 200, 300)
	s.PutI16(fxIntros+80, 77)
	s.PutI32(fxIntros+84, 9001)

	// Portal
	s.PutBytes(fxPortals, []byte("area2\x00"))
	s.PutVec3(fxPortals+48, -1, -2, -3)
	s.PutVec3(fxPortals+64, 1, 2, 3)

	// BG object: two-component scale, one vertex, one strip
	s.PutVec3(fxBGObjects, 2, 2, 0.5)
	s.Pointer(fxBGObjects+48, s, fxBGStrip)
	s.Pointer(fxBGObjects+68, s, fxBGVertices)
	s.PutI32(fxBGObjects+72, 1)
	s.Pointer(fxBGObjects+76, s, fxBGColors)
	s.PutI16(fxBGVertices, 10)
	s.PutI16(fxBGVertices+2, 20)
	s.PutI16(fxBGVertices+4, 30)
	s.PutI16(fxBGVertices+8, 4096)
	s.PutI16(fxBGVertices+10, 0)
	s.PutU32(fxBGColors, 0xAA102030)
	s.PutI32(fxBGStrip, 3)
	s.PutU32(fxBGStrip+12, 0x123)
	s.PutI16(fxBGStrip+28, 0)
	s.PutI16(fxBGStrip+30, 0)
	s.PutI16(fxBGStrip+32, 0)

	// BG instance: translation (5, 6, 7)
	for i := uint32(0); i < 4; i++ {
		s.PutF32(fxBGInstance+i*20, 1)
	}
	s.PutVec3(fxBGInstance+48, 5, 6, 7)
	s.Pointer(fxBGInstance+192, s, fxBGObjects)

	// Markup in the 76-byte layout, with a two-segment polyline
	s.PutU32(fxMarkups+40, 0x8)
	s.PutI16(fxMarkups+44, 3)
	s.PutI16(fxMarkups+46, 12)
	s.PutVec3(fxMarkups+48, 4, 5, 6)
	s.Pointer(fxMarkups+72, s, fxPolyLine)
	s.PutI32(fxPolyLine, 2)
	s.PutVec3(fxPolyLine+16, 0, 0, 0)
	s.PutVec3(fxPolyLine+32, 10, 0, 0)

	// Terrain light
	s.PutI32(fxLights, 1)
	s.PutI32(fxLights+4, 2)
	s.PutI32(fxLights+8, 3)
	s.PutI32(fxLights+12, 500)
	s.PutBytes(fxLights+16, []byte{255, 128, 0, 1})

	s.PutBytes(fxUnitName, []byte("unit01\x00"))
	s.PutBytes(fxPlayerName, []byte("lara\x00"))

	putMesh(s, fxMesh, fxMeshVerts, fxMeshFaces,
		[][3]int16{{0, 0, 0}, {100, 0, 0}, {0, 100, 0}},
		[][3]uint16{{0, 1, 2}})

	return b
}

// parseFixture parses b and returns a decoder over it.
func parseFixture(t *testing.T, b *drmtest.Builder, opts DecodeOptions) *Decoder {
	t.Helper()
	a, err := drm.Parse(b.Bytes())
	if err != nil {
		t.Fatalf("drm.Parse failed: %v", err)
	}
	return NewDecoder(a, opts)
}
