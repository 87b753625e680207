// Package scene assembles decoded level records into render-ready geometry:
// terrain batches per group and material, collision meshes, and background
// object instances, all converted to the Y-up render space.
package scene

import "github.com/Faultbox/drmview/pkg/formats"

// Vertex represents a render vertex with all attributes.
type Vertex struct {
	Position [3]float32
	TexCoord [2]float32
	Color    [4]float32
}

// BufferKind selects the terrain vertex buffer a batch indexes.
type BufferKind int

// Terrain vertex buffers.
const (
	BufferMain BufferKind = iota
	BufferVMO
)

// String returns the buffer name.
func (b BufferKind) String() string {
	if b == BufferVMO {
		return "vmo"
	}
	return "main"
}

// Batch holds the strips of one terrain group drawn with one material.
type Batch struct {
	Group     int
	Material  int
	TextureID uint32
	TPage     formats.TPage
	Buffer    BufferKind
	Origin    [3]float32 // group translation in render space
	Strips    [][]uint32 // triangle strips indexing the batch's buffer
}

// TriangleMesh is an indexed triangle list, used for collision geometry.
type TriangleMesh struct {
	Name      string
	Origin    [3]float32
	Positions [][3]float32
	Indices   []uint32
}

// ObjectStrip is one textured strip of a background object.
type ObjectStrip struct {
	TextureID uint32
	TPage     formats.TPage
	Indices   []uint32
}

// Object is background geometry in object space (render axes, unscaled).
type Object struct {
	Vertices []Vertex
	Strips   []ObjectStrip
}

// Instance places an Object. Transform includes the world scale.
type Instance struct {
	Object    int
	Transform [16]float32
}

// Bounds holds the axis-aligned bounding box of the terrain and placed
// background objects.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Stats counts geometry left out of the scene.
type Stats struct {
	SkippedSkydomes  int
	SkippedVMOStrips int
	SkippedInstances int // instances without a BG object
}

// Scene is an assembled level.
type Scene struct {
	Name       string
	Background [3]uint8

	Vertices    []Vertex // main terrain buffer
	VMOVertices []Vertex
	Batches     []*Batch
	Bounds      Bounds

	Collision []TriangleMesh
	Objects   []Object
	Instances []Instance

	// Textures maps texture ids to decoded texture sections.
	Textures map[uint32]*formats.Texture

	Stats Stats
}

// Texture returns the texture for id.
func (s *Scene) Texture(id uint32) (*formats.Texture, bool) {
	t, ok := s.Textures[id]
	return t, ok
}

// BufferVertices returns the vertex buffer a batch indexes.
func (s *Scene) BufferVertices(kind BufferKind) []Vertex {
	if kind == BufferVMO {
		return s.VMOVertices
	}
	return s.Vertices
}
