package scene

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/drmview/pkg/formats"
	"github.com/Faultbox/drmview/pkg/math"
)

// ErrVertexIndex is returned when a strip indexes past its vertex buffer.
var ErrVertexIndex = errors.New("vertex index out of range")

// DefaultWorldScale converts game units to render units.
const DefaultWorldScale float32 = 0.1

// Options controls scene assembly.
type Options struct {
	SkipSkydome   bool
	SkipVMOStrips bool
	WorldScale    float32 // zero means DefaultWorldScale

	// IncludeCollision adds group collision meshes and the signal mesh.
	IncludeCollision bool

	// IncludeBGObjects adds background objects and their instances.
	IncludeBGObjects bool

	Logger *zap.Logger
}

// Build assembles a scene from a decoded level. textures supplies texture
// sections by id; it may be nil.
func Build(name string, lvl *formats.Level, textures map[uint32]*formats.Texture, opts Options) (*Scene, error) {
	if lvl.Terrain == nil {
		return nil, fmt.Errorf("%w: level has no terrain", formats.ErrNullPointer)
	}
	if opts.WorldScale == 0 {
		opts.WorldScale = DefaultWorldScale
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if textures == nil {
		textures = make(map[uint32]*formats.Texture)
	}

	t := lvl.Terrain
	s := &Scene{
		Name:        name,
		Background:  lvl.Background,
		Vertices:    convertTerrainVertices(t.Vertices, opts.WorldScale),
		VMOVertices: convertTerrainVertices(t.VMOVertices, opts.WorldScale),
		Textures:    textures,
		Bounds: Bounds{
			Min: [3]float32{1e10, 1e10, 1e10},
			Max: [3]float32{-1e10, -1e10, -1e10},
		},
	}

	// Terrain batches
	for gi, g := range t.Groups {
		if opts.SkipSkydome && g.IsSkydome() {
			s.Stats.SkippedSkydomes++
			log.Debug("skipping sky-dome terrain group", zap.Int("group", gi))
			continue
		}
		if err := s.addGroup(gi, g, opts); err != nil {
			return nil, fmt.Errorf("terrain group %d: %w", gi, err)
		}
	}
	if s.Stats.SkippedVMOStrips > 0 {
		log.Debug("skipped strips referencing the VMO object pool",
			zap.Int("strips", s.Stats.SkippedVMOStrips))
	}

	// Collision
	if opts.IncludeCollision {
		for gi, g := range t.Groups {
			if g.Collision == nil || (opts.SkipSkydome && g.IsSkydome()) {
				continue
			}
			m, err := convertMesh(fmt.Sprintf("collision_%d", gi), g.Collision, g.Origin, opts.WorldScale)
			if err != nil {
				return nil, fmt.Errorf("terrain group %d collision: %w", gi, err)
			}
			s.Collision = append(s.Collision, m)
		}
		if t.SignalMesh != nil {
			m, err := convertMesh("signal", t.SignalMesh, math.Vec3{}, opts.WorldScale)
			if err != nil {
				return nil, fmt.Errorf("signal mesh: %w", err)
			}
			s.Collision = append(s.Collision, m)
		}
	}

	// Background objects
	if opts.IncludeBGObjects {
		for oi, obj := range t.BGObjects {
			o, err := convertObject(obj)
			if err != nil {
				return nil, fmt.Errorf("BG object %d: %w", oi, err)
			}
			s.Objects = append(s.Objects, o)
		}
		scale := math.Scale(opts.WorldScale, opts.WorldScale, opts.WorldScale)
		for _, inst := range t.BGInstances {
			if inst.Object < 0 || inst.Object >= len(s.Objects) {
				s.Stats.SkippedInstances++
				continue
			}
			tr := scale.Mul(inst.Matrix.ToRender())
			for _, v := range s.Objects[inst.Object].Vertices {
				updateBounds(&s.Bounds, tr.TransformPoint(v.Position), [3]float32{})
			}
			s.Instances = append(s.Instances, Instance{Object: inst.Object, Transform: tr})
		}
	}

	if s.Bounds.Min[0] > s.Bounds.Max[0] {
		s.Bounds = Bounds{}
	}
	log.Debug("scene assembled",
		zap.String("name", name),
		zap.Int("batches", len(s.Batches)),
		zap.Int("collision", len(s.Collision)),
		zap.Int("objects", len(s.Objects)),
		zap.Int("instances", len(s.Instances)),
	)
	return s, nil
}

// addGroup appends one batch per (material, buffer) pair used by g.
func (s *Scene) addGroup(gi int, g *formats.TerrainGroup, opts Options) error {
	origin := g.Origin.ToRender().Scale(opts.WorldScale).Array()
	batches := make(map[[2]int]*Batch)

	for _, strip := range g.Strips {
		if opts.SkipVMOStrips && strip.VMO {
			s.Stats.SkippedVMOStrips++
			continue
		}
		mat := g.Materials[strip.Material]

		kind := BufferMain
		if mat.UsesVMOBuffer() {
			kind = BufferVMO
		}
		verts := s.BufferVertices(kind)
		for _, idx := range strip.Indices {
			if int(idx) >= len(verts) {
				return fmt.Errorf("%w: %d in %s buffer of %d", ErrVertexIndex, idx, kind, len(verts))
			}
			updateBounds(&s.Bounds, verts[idx].Position, origin)
		}

		key := [2]int{strip.Material, int(kind)}
		b, ok := batches[key]
		if !ok {
			b = &Batch{
				Group:     gi,
				Material:  strip.Material,
				TextureID: mat.TextureID,
				TPage:     formats.TPage(mat.TPageID),
				Buffer:    kind,
				Origin:    origin,
			}
			batches[key] = b
			s.Batches = append(s.Batches, b)
		}
		b.Strips = append(b.Strips, strip.Indices)
	}
	return nil
}

func convertTerrainVertices(src []formats.TerrainVertex, scale float32) []Vertex {
	out := make([]Vertex, len(src))
	for i, v := range src {
		pos := math.Vec3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
		r, g, b := v.RGB()
		out[i] = Vertex{
			Position: pos.ToRender().Scale(scale).Array(),
			TexCoord: [2]float32{v.U, v.V},
			Color:    [4]float32{float32(r) / 255.0, float32(g) / 255.0, float32(b) / 255.0, 1},
		}
	}
	return out
}

func convertMesh(name string, m *formats.MeshGeometry, origin math.Vec3, scale float32) (TriangleMesh, error) {
	out := TriangleMesh{
		Name:      name,
		Origin:    origin.ToRender().Scale(scale).Array(),
		Positions: make([][3]float32, len(m.Vertices)),
		Indices:   make([]uint32, 0, len(m.Faces)*3),
	}
	for i, v := range m.Vertices {
		out.Positions[i] = v.ToRender().Scale(scale).Array()
	}
	for _, f := range m.Faces {
		for _, idx := range f {
			if int(idx) >= len(m.Vertices) {
				return TriangleMesh{}, fmt.Errorf("%w: face index %d of %d", ErrVertexIndex, idx, len(m.Vertices))
			}
			out.Indices = append(out.Indices, uint32(idx))
		}
	}
	return out, nil
}

func convertObject(obj *formats.BGObject) (Object, error) {
	o := Object{Vertices: make([]Vertex, len(obj.Vertices))}
	for i, v := range obj.Vertices {
		o.Vertices[i] = Vertex{
			Position: v.Position.ToRender().Array(),
			TexCoord: [2]float32{v.U, v.V},
			Color: [4]float32{
				float32(uint8(v.Color>>16)) / 255.0,
				float32(uint8(v.Color>>8)) / 255.0,
				float32(uint8(v.Color)) / 255.0,
				1,
			},
		}
	}
	for _, st := range obj.Strips {
		indices := make([]uint32, len(st.Indices))
		for i, idx := range st.Indices {
			if idx < 0 || int(idx) >= len(obj.Vertices) {
				return Object{}, fmt.Errorf("%w: %d of %d", ErrVertexIndex, idx, len(obj.Vertices))
			}
			indices[i] = uint32(idx)
		}
		o.Strips = append(o.Strips, ObjectStrip{
			TextureID: st.TextureID,
			TPage:     formats.TPage(st.TPageID),
			Indices:   indices,
		})
	}
	return o, nil
}

func updateBounds(b *Bounds, p, origin [3]float32) {
	for i := 0; i < 3; i++ {
		v := p[i] + origin[i]
		if v < b.Min[i] {
			b.Min[i] = v
		}
		if v > b.Max[i] {
			b.Max[i] = v
		}
	}
}
