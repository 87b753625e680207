// Package export writes assembled scenes as glTF 2.0 documents.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/drmview/internal/scene"
	"github.com/Faultbox/drmview/pkg/formats"
)

// Options controls glTF output.
type Options struct {
	// Binary writes a single .glb container instead of JSON with embedded
	// buffers.
	Binary bool

	Logger *zap.Logger
}

// Summary describes an exported document.
type Summary struct {
	Nodes           int
	Meshes          int
	Materials       int
	Images          int
	SkippedTextures int // compressed textures have no image in the output
}

type materialKey struct {
	textureID uint32
	tpage     formats.TPage
}

// bufferAccessors holds the shared attribute accessors of one vertex buffer.
type bufferAccessors struct {
	position, texCoord, color uint32
	ok                        bool
}

type exporter struct {
	doc       *gltf.Document
	scene     *scene.Scene
	materials map[materialKey]uint32
	textures  map[uint32]*uint32 // texture id -> glTF texture index, nil if not exported
	collision *uint32
	summary   Summary
}

// Document converts s into a glTF document.
func Document(s *scene.Scene) (*gltf.Document, Summary, error) {
	e := &exporter{
		doc:       gltf.NewDocument(),
		scene:     s,
		materials: make(map[materialKey]uint32),
		textures:  make(map[uint32]*uint32),
	}

	root := e.addNode(&gltf.Node{Name: s.Name})
	e.doc.Scenes[0].Nodes = append(e.doc.Scenes[0].Nodes, root)

	// Terrain
	buffers := map[scene.BufferKind]bufferAccessors{
		scene.BufferMain: writeVertices(e.doc, s.Vertices),
		scene.BufferVMO:  writeVertices(e.doc, s.VMOVertices),
	}
	for i, b := range s.Batches {
		acc := buffers[b.Buffer]
		if !acc.ok {
			return nil, Summary{}, fmt.Errorf("batch %d indexes the empty %s buffer", i, b.Buffer)
		}
		mat, err := e.material(b.TextureID, b.TPage)
		if err != nil {
			return nil, Summary{}, err
		}

		mesh := &gltf.Mesh{Name: fmt.Sprintf("group%d_mat%d_%s", b.Group, b.Material, b.Buffer)}
		for _, strip := range b.Strips {
			if len(strip) < 3 {
				continue
			}
			mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
				Indices:    gltf.Index(modeler.WriteIndices(e.doc, strip)),
				Attributes: attributes(acc),
				Material:   gltf.Index(mat),
				Mode:       gltf.PrimitiveTriangleStrip,
			})
		}
		if len(mesh.Primitives) == 0 {
			continue
		}
		e.child(root, &gltf.Node{
			Name:        mesh.Name,
			Translation: b.Origin,
			Mesh:        gltf.Index(e.addMesh(mesh)),
		})
	}

	// Collision
	for _, m := range s.Collision {
		if len(m.Indices) == 0 {
			continue
		}
		mesh := &gltf.Mesh{
			Name: m.Name,
			Primitives: []*gltf.Primitive{{
				Indices:    gltf.Index(modeler.WriteIndices(e.doc, m.Indices)),
				Attributes: map[string]uint32{gltf.POSITION: modeler.WritePosition(e.doc, m.Positions)},
				Material:   gltf.Index(e.collisionMaterial()),
				Mode:       gltf.PrimitiveTriangles,
			}},
		}
		e.child(root, &gltf.Node{
			Name:        m.Name,
			Translation: m.Origin,
			Mesh:        gltf.Index(e.addMesh(mesh)),
		})
	}

	// Background objects
	objectMeshes := make([]*uint32, len(s.Objects))
	for oi, obj := range s.Objects {
		acc := writeVertices(e.doc, obj.Vertices)
		if !acc.ok {
			continue
		}
		mesh := &gltf.Mesh{Name: fmt.Sprintf("bgobject%d", oi)}
		for _, strip := range obj.Strips {
			if len(strip.Indices) < 3 {
				continue
			}
			mat, err := e.material(strip.TextureID, strip.TPage)
			if err != nil {
				return nil, Summary{}, err
			}
			mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
				Indices:    gltf.Index(modeler.WriteIndices(e.doc, strip.Indices)),
				Attributes: attributes(acc),
				Material:   gltf.Index(mat),
				Mode:       gltf.PrimitiveTriangleStrip,
			})
		}
		if len(mesh.Primitives) > 0 {
			objectMeshes[oi] = gltf.Index(e.addMesh(mesh))
		}
	}
	for ii, inst := range s.Instances {
		if objectMeshes[inst.Object] == nil {
			continue
		}
		e.child(root, &gltf.Node{
			Name:   fmt.Sprintf("bginstance%d", ii),
			Matrix: inst.Transform,
			Mesh:   objectMeshes[inst.Object],
		})
	}

	e.summary.Nodes = len(e.doc.Nodes)
	e.summary.Meshes = len(e.doc.Meshes)
	e.summary.Materials = len(e.doc.Materials)
	e.summary.Images = len(e.doc.Images)
	return e.doc, e.summary, nil
}

// Write encodes s to w.
func Write(w io.Writer, s *scene.Scene, opts Options) (Summary, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	doc, summary, err := Document(s)
	if err != nil {
		return Summary{}, err
	}
	if !opts.Binary {
		for _, b := range doc.Buffers {
			if b.URI == "" {
				b.EmbeddedResource()
			}
		}
	}

	enc := gltf.NewEncoder(w)
	enc.AsBinary = opts.Binary
	if err := enc.Encode(doc); err != nil {
		return Summary{}, fmt.Errorf("encoding glTF: %w", err)
	}

	log.Info("scene exported",
		zap.String("name", s.Name),
		zap.Bool("binary", opts.Binary),
		zap.Int("nodes", summary.Nodes),
		zap.Int("meshes", summary.Meshes),
		zap.Int("materials", summary.Materials),
		zap.Int("images", summary.Images),
		zap.Int("skippedTextures", summary.SkippedTextures),
	)
	return summary, nil
}

// WriteFile writes s to path. The extension is replaced by .glb or .gltf
// to match opts.Binary; the final path is returned.
func WriteFile(path string, s *scene.Scene, opts Options) (string, Summary, error) {
	ext := ".gltf"
	if opts.Binary {
		ext = ".glb"
	}
	path = strings.TrimSuffix(path, filepath.Ext(path)) + ext

	f, err := os.Create(path)
	if err != nil {
		return "", Summary{}, fmt.Errorf("creating %s: %w", path, err)
	}
	summary, err := Write(f, s, opts)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", Summary{}, err
	}
	return path, summary, nil
}

func (e *exporter) addNode(n *gltf.Node) uint32 {
	e.doc.Nodes = append(e.doc.Nodes, n)
	return uint32(len(e.doc.Nodes) - 1)
}

func (e *exporter) child(parent uint32, n *gltf.Node) {
	idx := e.addNode(n)
	e.doc.Nodes[parent].Children = append(e.doc.Nodes[parent].Children, idx)
}

func (e *exporter) addMesh(m *gltf.Mesh) uint32 {
	e.doc.Meshes = append(e.doc.Meshes, m)
	return uint32(len(e.doc.Meshes) - 1)
}

// material returns the material for a texture and tpage, creating it on
// first use.
func (e *exporter) material(textureID uint32, tpage formats.TPage) (uint32, error) {
	key := materialKey{textureID, tpage}
	if idx, ok := e.materials[key]; ok {
		return idx, nil
	}

	mat := &gltf.Material{
		Name:                 fmt.Sprintf("tex%d_%06x", textureID, uint32(tpage)),
		DoubleSided:          tpage.DoubleSided(),
		AlphaMode:            gltf.AlphaOpaque,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{MetallicFactor: gltf.Float(0)},
	}
	if tpage.Transparent() {
		mat.AlphaMode = gltf.AlphaBlend
	}

	tex, err := e.texture(textureID)
	if err != nil {
		return 0, err
	}
	if tex != nil {
		mat.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: *tex}
	}

	e.doc.Materials = append(e.doc.Materials, mat)
	idx := uint32(len(e.doc.Materials) - 1)
	e.materials[key] = idx
	return idx, nil
}

// texture exports the texture section for id as a PNG image. Compressed
// formats and missing sections yield nil.
func (e *exporter) texture(id uint32) (*uint32, error) {
	if idx, ok := e.textures[id]; ok {
		return idx, nil
	}

	t, ok := e.scene.Texture(id)
	if !ok || t.Format != formats.FormatA8R8G8B8 {
		if ok {
			e.summary.SkippedTextures++
		}
		e.textures[id] = nil
		return nil, nil
	}

	img := &image.NRGBA{
		Pix:    t.Data,
		Stride: int(t.Width) * 4,
		Rect:   image.Rect(0, 0, int(t.Width), int(t.Height)),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding texture %d: %w", id, err)
	}
	imageIdx, err := modeler.WriteImage(e.doc, fmt.Sprintf("texture%d", id), "image/png", &buf)
	if err != nil {
		return nil, fmt.Errorf("writing texture %d: %w", id, err)
	}

	e.doc.Samplers = append(e.doc.Samplers, &gltf.Sampler{
		MagFilter: gltf.MagLinear,
		MinFilter: gltf.MinLinear,
		WrapS:     gltf.WrapRepeat,
		WrapT:     gltf.WrapRepeat,
	})
	e.doc.Textures = append(e.doc.Textures, &gltf.Texture{
		Name:    fmt.Sprintf("texture%d", id),
		Sampler: gltf.Index(uint32(len(e.doc.Samplers) - 1)),
		Source:  gltf.Index(imageIdx),
	})
	idx := gltf.Index(uint32(len(e.doc.Textures) - 1))
	e.textures[id] = idx
	return idx, nil
}

func (e *exporter) collisionMaterial() uint32 {
	if e.collision == nil {
		e.doc.Materials = append(e.doc.Materials, &gltf.Material{
			Name:        "collision",
			DoubleSided: true,
			AlphaMode:   gltf.AlphaBlend,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor: &[4]float32{1, 0, 1, 0.4},
			},
		})
		e.collision = gltf.Index(uint32(len(e.doc.Materials) - 1))
	}
	return *e.collision
}

// writeVertices writes the attribute accessors of a vertex buffer.
func writeVertices(doc *gltf.Document, vertices []scene.Vertex) bufferAccessors {
	if len(vertices) == 0 {
		return bufferAccessors{}
	}
	positions := make([][3]float32, len(vertices))
	uvs := make([][2]float32, len(vertices))
	colors := make([][4]uint8, len(vertices))
	for i, v := range vertices {
		positions[i] = v.Position
		uvs[i] = v.TexCoord
		for c := range colors[i] {
			colors[i][c] = uint8(v.Color[c]*255 + 0.5)
		}
	}
	return bufferAccessors{
		position: modeler.WritePosition(doc, positions),
		texCoord: modeler.WriteTextureCoord(doc, uvs),
		color:    modeler.WriteColor(doc, colors),
		ok:       true,
	}
}

func attributes(acc bufferAccessors) map[string]uint32 {
	return map[string]uint32{
		gltf.POSITION:   acc.position,
		gltf.TEXCOORD_0: acc.texCoord,
		gltf.COLOR_0:    acc.color,
	}
}
