package scene

import (
	"errors"
	stdmath "math"
	"testing"

	"github.com/Faultbox/drmview/pkg/formats"
	"github.com/Faultbox/drmview/pkg/math"
)

func approx(a, b float32) bool {
	return stdmath.Abs(float64(a-b)) < 1e-5
}

// createTestLevel builds a level with a normal group, a sky-dome group,
// one VMO strip and a background object with two instances.
func createTestLevel() *formats.Level {
	vertices := make([]formats.TerrainVertex, 4)
	for i := range vertices {
		vertices[i] = formats.TerrainVertex{X: int16(i * 10), Y: 20, Z: 30, Color: 0xFF336699, U: 0.5, V: 1}
	}

	ground := &formats.TerrainGroup{
		Origin: math.Vec3{X: 100, Y: 200, Z: 300},
		Materials: []formats.TerrainMaterial{
			{TPageID: 0x200000 | 3, TextureID: 3},
			{TPageID: 0x2000 | 4, Flags: 0x4, TextureID: 4},
		},
		Strips: []formats.TerrainStrip{
			{Material: 0, Indices: []uint32{0, 1, 2}},
			{Material: 0, Indices: []uint32{1, 2, 3}},
			{Material: 1, Indices: []uint32{0, 1}},
			{Material: 0, VMO: true, Indices: []uint32{0, 1, 2}},
		},
		Collision: &formats.MeshGeometry{
			Vertices: []math.Vec3{{X: 0}, {X: 10}, {Y: 10}},
			Faces:    [][3]uint16{{0, 1, 2}},
		},
	}
	sky := &formats.TerrainGroup{
		Flags:     formats.FlagSkydome,
		Materials: []formats.TerrainMaterial{{TextureID: 9}},
		Strips:    []formats.TerrainStrip{{Material: 0, Indices: []uint32{0, 1, 2}}},
	}

	return &formats.Level{
		Background: [3]uint8{1, 2, 3},
		Terrain: &formats.Terrain{
			Vertices:    vertices,
			VMOVertices: vertices[:2],
			Groups:      []*formats.TerrainGroup{ground, sky},
			BGObjects: []*formats.BGObject{{
				Vertices: []formats.BGVertex{
					{Position: math.Vec3{X: 1, Y: 2, Z: 3}, Color: 0xFF0000},
					{Position: math.Vec3{X: 4}},
					{Position: math.Vec3{Y: 4}},
				},
				Strips: []formats.BGStrip{{TPageID: 0x8000 | 7, TextureID: 7, Indices: []int16{0, 1, 2}}},
			}},
			BGInstances: []formats.BGInstance{
				{Matrix: math.Translate(10, 20, 30), Object: 0},
				{Matrix: math.Identity(), Object: -1},
			},
		},
	}
}

func TestBuild_Batches(t *testing.T) {
	textures := map[uint32]*formats.Texture{3: {SectionID: 3}}
	s, err := Build("tomb", createTestLevel(), textures, Options{
		SkipSkydome:   true,
		SkipVMOStrips: true,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if s.Stats.SkippedSkydomes != 1 || s.Stats.SkippedVMOStrips != 1 {
		t.Errorf("stats = %+v", s.Stats)
	}
	if len(s.Batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(s.Batches))
	}

	main := s.Batches[0]
	if main.Buffer != BufferMain || main.TextureID != 3 || len(main.Strips) != 2 {
		t.Errorf("main batch = %+v", main)
	}
	if main.TPage.DoubleSided() {
		t.Error("material 0 should be single sided")
	}
	vmo := s.Batches[1]
	if vmo.Buffer != BufferVMO || vmo.TextureID != 4 || vmo.TPage.Blend() != formats.BlendAlpha {
		t.Errorf("VMO batch = %+v", vmo)
	}

	// Origin (100, 200, 300) in render space is (-100, 300, 200), scaled by 0.1.
	if !approx(main.Origin[0], -10) || !approx(main.Origin[1], 30) || !approx(main.Origin[2], 20) {
		t.Errorf("origin = %v", main.Origin)
	}

	if tex, ok := s.Texture(main.TextureID); !ok || tex.SectionID != 3 {
		t.Error("texture 3 not found through the scene mapping")
	}
	if _, ok := s.Texture(vmo.TextureID); ok {
		t.Error("texture 4 should be missing")
	}
}

func TestBuild_KeepSkydomeAndVMO(t *testing.T) {
	s, err := Build("tomb", createTestLevel(), nil, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Stats.SkippedSkydomes != 0 || s.Stats.SkippedVMOStrips != 0 {
		t.Errorf("stats = %+v", s.Stats)
	}
	// Ground: material 0 (3 strips incl. VMO), material 1; sky: one batch.
	if len(s.Batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(s.Batches))
	}
	if len(s.Batches[0].Strips) != 3 {
		t.Errorf("expected the VMO strip in batch 0, got %d strips", len(s.Batches[0].Strips))
	}
	if s.Batches[2].Group != 1 || s.Batches[2].TextureID != 9 {
		t.Errorf("sky batch = %+v", s.Batches[2])
	}
}

func TestBuild_Vertices(t *testing.T) {
	s, err := Build("tomb", createTestLevel(), nil, Options{WorldScale: 1})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(s.Vertices) != 4 || len(s.VMOVertices) != 2 {
		t.Fatalf("vertices = %d/%d", len(s.Vertices), len(s.VMOVertices))
	}
	v := s.Vertices[1]
	if v.Position != [3]float32{-10, 30, 20} {
		t.Errorf("position = %v", v.Position)
	}
	if !approx(v.Color[0], 0x33/255.0) || !approx(v.Color[2], 0x99/255.0) || v.Color[3] != 1 {
		t.Errorf("color = %v", v.Color)
	}
	if v.TexCoord != [2]float32{0.5, 1} {
		t.Errorf("uv = %v", v.TexCoord)
	}
	if s.Background != [3]uint8{1, 2, 3} {
		t.Errorf("background = %v", s.Background)
	}
}

func TestBuild_CollisionAndObjects(t *testing.T) {
	s, err := Build("tomb", createTestLevel(), nil, Options{
		SkipSkydome:      true,
		IncludeCollision: true,
		IncludeBGObjects: true,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(s.Collision) != 1 || s.Collision[0].Name != "collision_0" {
		t.Fatalf("collision = %+v", s.Collision)
	}
	if c := s.Collision[0]; len(c.Indices) != 3 || !approx(c.Positions[1][0], -1) {
		t.Errorf("collision mesh = %+v", c)
	}

	if len(s.Objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(s.Objects))
	}
	obj := s.Objects[0]
	if obj.Vertices[0].Position != [3]float32{-1, 3, 2} || obj.Vertices[0].Color[0] != 1 {
		t.Errorf("object vertex = %+v", obj.Vertices[0])
	}
	if len(obj.Strips) != 1 || obj.Strips[0].TPage.Blend() != formats.BlendMultiplicative {
		t.Errorf("object strips = %+v", obj.Strips)
	}

	if len(s.Instances) != 1 || s.Stats.SkippedInstances != 1 {
		t.Fatalf("instances = %d, skipped %d", len(s.Instances), s.Stats.SkippedInstances)
	}
	// Translation (10, 20, 30) becomes (-10, 30, 20) in render space, then 0.1 scale.
	tr := s.Instances[0].Transform
	if !approx(tr[12], -1) || !approx(tr[13], 3) || !approx(tr[14], 2) {
		t.Errorf("instance translation = %v %v %v", tr[12], tr[13], tr[14])
	}
}

func TestBuild_Errors(t *testing.T) {
	lvl := createTestLevel()
	lvl.Terrain.Groups[0].Strips[0].Indices = []uint32{0, 1, 99}
	if _, err := Build("tomb", lvl, nil, Options{}); !errors.Is(err, ErrVertexIndex) {
		t.Errorf("expected ErrVertexIndex, got %v", err)
	}

	lvl = createTestLevel()
	lvl.Terrain.BGObjects[0].Strips[0].Indices = []int16{0, -1}
	if _, err := Build("tomb", lvl, nil, Options{IncludeBGObjects: true}); !errors.Is(err, ErrVertexIndex) {
		t.Errorf("expected ErrVertexIndex for BG strip, got %v", err)
	}

	if _, err := Build("tomb", &formats.Level{}, nil, Options{}); !errors.Is(err, formats.ErrNullPointer) {
		t.Errorf("expected ErrNullPointer, got %v", err)
	}
}

func TestBuild_Bounds(t *testing.T) {
	s, err := Build("tomb", createTestLevel(), nil, Options{SkipSkydome: true, SkipVMOStrips: true, WorldScale: 1})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// Main vertices x in {0,10,20,30} -> render x in {0,-10,-20,-30}, plus origin -100.
	if s.Bounds.Min[0] != -130 || s.Bounds.Max[0] != -100 {
		t.Errorf("bounds x = %v..%v", s.Bounds.Min[0], s.Bounds.Max[0])
	}
}

func TestBuild_InstanceBounds(t *testing.T) {
	lvl := createTestLevel()
	lvl.Terrain.Groups = nil
	s, err := Build("tomb", lvl, nil, Options{IncludeBGObjects: true, WorldScale: 1})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// Object vertices in render space, moved by (-10, 30, 20).
	if s.Bounds.Min != [3]float32{-14, 30, 20} || s.Bounds.Max != [3]float32{-10, 33, 24} {
		t.Errorf("bounds = %v..%v", s.Bounds.Min, s.Bounds.Max)
	}

	empty, err := Build("empty", &formats.Level{Terrain: &formats.Terrain{}}, nil, Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if empty.Bounds != (Bounds{}) {
		t.Errorf("expected zero bounds, got %+v", empty.Bounds)
	}
}
