package formats

import (
	"fmt"

	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/math"
)

// MaxOctreeChildren is the fan-out limit of an octree sphere. A larger count
// means the decoder is reading from a misaligned offset.
const MaxOctreeChildren = 8

// Strip record layout.
const (
	stripVMOOffset      = 4
	stripMaterialOffset = 20
	stripNextOffset     = 40
	stripIndicesOffset  = 44
)

// StripRecord is one indexed triangle strip of an octree sphere.
type StripRecord struct {
	VertexCount    int32
	VMOObjectIndex int32 // -1 unless the strip indexes the VMO pool
	MaterialIndex  int32
	Next           drm.Pointer
	Indices        []int16
}

// UsesVMO reports whether the strip references the secondary VMO vertex pool.
func (s *StripRecord) UsesVMO() bool {
	return s.VMOObjectIndex != -1
}

// OctreeNode is a bounding sphere with its own strips and up to eight
// child spheres.
type OctreeNode struct {
	Center    math.Vec3
	Radius    float32
	StripHead drm.Pointer
	Strips    []StripRecord
	Children  []*OctreeNode
}

// Walk calls fn for n and every descendant, depth first, parents before
// children.
func (n *OctreeNode) Walk(fn func(node *OctreeNode, depth int)) {
	n.walk(fn, 0)
}

func (n *OctreeNode) walk(fn func(*OctreeNode, int), depth int) {
	fn(n, depth)
	for _, child := range n.Children {
		child.walk(fn, depth+1)
	}
}

// AllStrips returns the strips of n and its descendants in Walk order.
func (n *OctreeNode) AllStrips() []StripRecord {
	var out []StripRecord
	n.Walk(func(node *OctreeNode, _ int) {
		out = append(out, node.Strips...)
	})
	return out
}

// Count returns the number of spheres in the tree rooted at n.
func (n *OctreeNode) Count() int {
	count := 0
	n.Walk(func(*OctreeNode, int) { count++ })
	return count
}

// Octree decodes the sphere tree rooted at p, including every strip list.
func (d *Decoder) Octree(p drm.Pointer) (*OctreeNode, error) {
	return d.octreeNode(p, 0)
}

func (d *Decoder) octreeNode(p drm.Pointer, depth int) (*OctreeNode, error) {
	if depth > d.opts.MaxOctreeDepth {
		return nil, fmt.Errorf("%w: octree deeper than %d at %s", drm.ErrStructuralInvariant, d.opts.MaxOctreeDepth, p)
	}

	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("octree sphere %s: %w", p, err)
	}

	node := &OctreeNode{}
	if node.Center, err = c.Vec3(); err != nil {
		return nil, fmt.Errorf("octree sphere %s center: %w", p, err)
	}
	if node.Radius, err = c.Float32(); err != nil {
		return nil, fmt.Errorf("octree sphere %s radius: %w", p, err)
	}
	if node.StripHead, err = d.pointer(c, p); err != nil {
		return nil, fmt.Errorf("octree sphere %s strips: %w", p, err)
	}

	numChildren, err := c.Int32()
	if err != nil {
		return nil, fmt.Errorf("octree sphere %s child count: %w", p, err)
	}
	if numChildren < 0 || numChildren > MaxOctreeChildren {
		return nil, fmt.Errorf("%w: octree sphere %s has %d children", drm.ErrStructuralInvariant, p, numChildren)
	}

	// Child slots first; null slots are absent children.
	slots := make([]drm.Pointer, 0, numChildren)
	for i := int32(0); i < numChildren; i++ {
		child, err := d.pointer(c, p)
		if err != nil {
			return nil, fmt.Errorf("octree sphere %s child %d: %w", p, i, err)
		}
		if !child.IsNull() {
			slots = append(slots, child)
		}
	}

	for _, slot := range slots {
		child, err := d.octreeNode(slot, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	if node.Strips, err = d.Strips(node.StripHead); err != nil {
		return nil, err
	}
	return node, nil
}

// Strips walks the strip list starting at head. The list ends at a null
// next pointer or at a record whose vertex count is zero; the terminator
// record itself is not returned. A null head yields no strips.
func (d *Decoder) Strips(head drm.Pointer) ([]StripRecord, error) {
	var strips []StripRecord
	seen := stripVisitor{}

	for p := head; !p.IsNull(); {
		if err := seen.visit(p); err != nil {
			return nil, err
		}
		strip, err := d.strip(p)
		if err != nil {
			return nil, fmt.Errorf("strip %s: %w", p, err)
		}
		if strip.VertexCount == 0 {
			break
		}
		strips = append(strips, strip)
		p = strip.Next
	}
	return strips, nil
}

func (d *Decoder) strip(p drm.Pointer) (StripRecord, error) {
	var s StripRecord

	c, err := d.cursor(p)
	if err != nil {
		return s, err
	}
	start := c.Tell()

	if s.VertexCount, err = c.Int32(); err != nil {
		return s, err
	}
	if s.VertexCount == 0 {
		return s, nil
	}
	if s.VertexCount < 0 {
		return s, fmt.Errorf("%w: negative vertex count %d", drm.ErrStructuralInvariant, s.VertexCount)
	}

	c.Seek(start + stripVMOOffset)
	if s.VMOObjectIndex, err = c.Int32(); err != nil {
		return s, err
	}
	c.Seek(start + stripMaterialOffset)
	if s.MaterialIndex, err = c.Int32(); err != nil {
		return s, err
	}
	c.Seek(start + stripNextOffset)
	if s.Next, err = d.pointer(c, p); err != nil {
		return s, err
	}

	c.Seek(start + stripIndicesOffset)
	if err := checkCount("strip index", s.VertexCount, 2, c); err != nil {
		return s, err
	}
	if s.Indices, err = readIndices(c, int(s.VertexCount)); err != nil {
		return s, err
	}
	return s, nil
}
