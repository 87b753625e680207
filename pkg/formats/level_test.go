package formats

import (
	"errors"
	stdmath "math"
	"testing"

	"github.com/Faultbox/drmview/internal/drmtest"
	"github.com/Faultbox/drmview/pkg/drm"
)

func approx(a, b float32) bool {
	return stdmath.Abs(float64(a-b)) < 1e-4
}

func TestParseLevel(t *testing.T) {
	d := parseFixture(t, levelFixture(), DecodeOptions{})
	lvl, err := d.Level()
	if err != nil {
		t.Fatalf("Level failed: %v", err)
	}

	if lvl.Background != [3]uint8{10, 20, 30} {
		t.Errorf("background = %v", lvl.Background)
	}
	if lvl.UnitName != "unit01" {
		t.Errorf("unit name = %q, want %q", lvl.UnitName, "unit01")
	}
	if lvl.PlayerName != "lara" {
		t.Errorf("player name = %q, want %q", lvl.PlayerName, "lara")
	}

	if len(lvl.Lights) != 1 {
		t.Fatalf("expected 1 light, got %d", len(lvl.Lights))
	}
	l := lvl.Lights[0]
	if l.X != 1 || l.Y != 2 || l.Z != 3 || l.Radius != 500 || l.R != 255 || l.G != 128 || l.B != 0 || l.Type != 1 {
		t.Errorf("light = %+v", l)
	}

	if len(lvl.Markups) != 1 {
		t.Fatalf("expected 1 markup, got %d", len(lvl.Markups))
	}
	mk := lvl.Markups[0]
	if mk.Flags != 0x8 || mk.Intro != 3 || mk.ID != 12 || mk.Position.Y != 5 {
		t.Errorf("markup = %+v", mk)
	}
	if len(mk.PolyLine) != 2 || mk.PolyLine[1].X != 10 {
		t.Errorf("polyline = %v", mk.PolyLine)
	}
}

func TestParseLevel_Terrain(t *testing.T) {
	d := parseFixture(t, levelFixture(), DecodeOptions{})
	lvl, err := d.Level()
	if err != nil {
		t.Fatalf("Level failed: %v", err)
	}
	ter := lvl.Terrain

	if len(ter.Vertices) != 2 || len(ter.VMOVertices) != 0 {
		t.Fatalf("vertices = %d/%d, want 2/0", len(ter.Vertices), len(ter.VMOVertices))
	}
	v := ter.Vertices[1]
	if v.X != 200 || v.Y != -50 || v.Z != 7 {
		t.Errorf("vertex 1 position = %d %d %d", v.X, v.Y, v.Z)
	}
	if r, g, b := v.RGB(); r != 0x11 || g != 0x22 || b != 0x33 {
		t.Errorf("vertex colour = %x %x %x", r, g, b)
	}
	if !approx(v.U, 1) || !approx(v.V, 0.5) {
		t.Errorf("vertex uv = %v %v", v.U, v.V)
	}

	if len(ter.Groups) != 1 {
		t.Fatalf("expected 1 terrain group, got %d", len(ter.Groups))
	}
	g := ter.Groups[0]
	if len(g.Strips) != 1 || g.Strips[0].Indices[0] != 1005 || g.Strips[0].Indices[1] != 1006 {
		t.Errorf("group strips = %+v", g.Strips)
	}
	if g.Materials[0].TextureID != 42 {
		t.Errorf("texture id = %d, want 42", g.Materials[0].TextureID)
	}
	if g.Collision == nil || len(g.Collision.Faces) != 1 || len(g.Collision.Vertices) != 3 {
		t.Errorf("collision mesh = %+v", g.Collision)
	}
	if ter.SignalMesh == nil || ter.SignalMesh.Vertices[1].X != 100 {
		t.Errorf("signal mesh = %+v", ter.SignalMesh)
	}

	if len(ter.Intros) != 1 {
		t.Fatalf("expected 1 intro, got %d", len(ter.Intros))
	}
	in := ter.Intros[0]
	if in.Object != 77 || in.ID != 9001 || in.Position.Z != 300 || in.Rotation.Z != 1.5 {
		t.Errorf("intro = %+v", in)
	}

	if len(ter.Portals) != 1 {
		t.Fatalf("expected 1 portal, got %d", len(ter.Portals))
	}
	p := ter.Portals[0]
	if p.Destination != "area2" || p.Min.X != -1 || p.Max.Z != 3 {
		t.Errorf("portal = %+v", p)
	}
}

func TestParseLevel_Background(t *testing.T) {
	d := parseFixture(t, levelFixture(), DecodeOptions{})
	lvl, err := d.Level()
	if err != nil {
		t.Fatalf("Level failed: %v", err)
	}
	ter := lvl.Terrain

	if len(ter.BGObjects) != 1 {
		t.Fatalf("expected 1 BG object, got %d", len(ter.BGObjects))
	}
	obj := ter.BGObjects[0]
	if len(obj.Vertices) != 1 {
		t.Fatalf("expected 1 BG vertex, got %d", len(obj.Vertices))
	}
	bv := obj.Vertices[0]
	if bv.Position.X != 20 || bv.Position.Y != 40 || bv.Position.Z != 15 {
		t.Errorf("BG vertex position = %+v", bv.Position)
	}
	if bv.Color != 0x102030 || !approx(bv.U, 1) {
		t.Errorf("BG vertex = %+v", bv)
	}
	if len(obj.Strips) != 1 || obj.Strips[0].TPageID != 0x123 || len(obj.Strips[0].Indices) != 3 {
		t.Errorf("BG strips = %+v", obj.Strips)
	}

	if len(ter.BGInstances) != 1 {
		t.Fatalf("expected 1 BG instance, got %d", len(ter.BGInstances))
	}
	inst := ter.BGInstances[0]
	if inst.Object != 0 {
		t.Errorf("BG instance object = %d, want 0", inst.Object)
	}
	if tr := inst.Matrix.Translation(); tr.X != 5 || tr.Y != 6 || tr.Z != 7 {
		t.Errorf("BG instance translation = %+v", tr)
	}
}

func TestParseLevel_LegendMarkup(t *testing.T) {
	b := levelFixture()
	// Reading the 76-byte record with the Legend layout shifts every field
	// by 28 bytes.
	d := parseFixture(t, b, DecodeOptions{Legend: LegendOn})
	lvl, err := d.Level()
	if err != nil {
		// The shifted polyline pointer lands on a plain field and resolves
		// to null, so decoding itself still succeeds.
		t.Fatalf("Level failed: %v", err)
	}
	if lvl.Markups[0].Flags == 0x8 {
		t.Error("Legend layout read the flags from the later-game offset")
	}
	if len(lvl.Markups[0].PolyLine) != 0 {
		t.Errorf("expected no polyline, got %d segments", len(lvl.Markups[0].PolyLine))
	}
}

func TestParseLevel_NullTerrain(t *testing.T) {
	b := drmtest.New()
	b.AddSection(drmtest.TypeGeneral, 0).Alloc(240)

	a, err := drm.Parse(b.Bytes())
	if err != nil {
		t.Fatalf("drm.Parse failed: %v", err)
	}
	if _, err := ParseLevel(a, DecodeOptions{}); !errors.Is(err, ErrNullPointer) {
		t.Errorf("expected ErrNullPointer, got %v", err)
	}
}

func TestParseLegendMode(t *testing.T) {
	tests := []struct {
		in      string
		want    LegendMode
		wantErr bool
	}{
		{"", LegendAuto, false},
		{"auto", LegendAuto, false},
		{"true", LegendOn, false},
		{"false", LegendOff, false},
		{"maybe", LegendAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseLegendMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLegendMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestDecodeMesh_Float32(t *testing.T) {
	b := drmtest.New()
	s := b.AddSection(drmtest.TypeGeneral, 0)
	s.Alloc(72)
	s.Pointer(48, s, 72)
	s.Pointer(52, s, 72+32)
	s.PutU16(64, uint16(VertexFloat32))
	s.PutU16(68, 1)
	s.PutU16(70, 2)
	s.PutVec3(72, 1.5, 2.5, 3.5)
	s.PutVec3(72+16, -1, -2, -3)
	s.PutU16(72+32, 1)
	s.PutU16(72+34, 0)
	s.PutU16(72+36, 1)
	s.PutU32(72+38, 0)

	d := parseFixture(t, b, DecodeOptions{})
	m, err := d.Mesh(drm.Pointer{Section: 0})
	if err != nil {
		t.Fatalf("Mesh failed: %v", err)
	}
	if m.VertexType != VertexFloat32 || len(m.Vertices) != 2 {
		t.Fatalf("mesh = %+v", m)
	}
	if m.Vertices[0].Y != 2.5 || m.Vertices[1].Z != -3 {
		t.Errorf("vertices = %v", m.Vertices)
	}
	if m.Faces[0] != [3]uint16{1, 0, 1} {
		t.Errorf("face = %v", m.Faces[0])
	}
}

func TestDecodeMesh_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *drmtest.Section)
	}{
		{"unknown vertex type", func(s *drmtest.Section) {
			s.PutU16(64, 7)
		}},
		{"face index past vertices", func(s *drmtest.Section) {
			s.PutU16(68, 1)
			s.PutU16(70, 1)
			s.Pointer(48, s, 72)
			s.Pointer(52, s, 80)
			s.PutU16(80, 0)
			s.PutU16(82, 1)
			s.PutU16(84, 0)
			s.PutU32(86, 0)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := drmtest.New()
			s := b.AddSection(drmtest.TypeGeneral, 0)
			s.Alloc(96)
			tt.setup(s)

			d := parseFixture(t, b, DecodeOptions{})
			if _, err := d.Mesh(drm.Pointer{Section: 0}); !errors.Is(err, drm.ErrStructuralInvariant) {
				t.Errorf("expected ErrStructuralInvariant, got %v", err)
			}
		})
	}
}
