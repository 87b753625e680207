package formats

import (
	"fmt"

	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/math"
)

// Placement record strides.
const (
	introSize        = 112
	portalSize       = 160
	bgInstanceSize   = 240
	terrainLightSize = 36
)

// Intro places an object instance in the level.
type Intro struct {
	Rotation math.Vec3
	Position math.Vec3
	Object   int16
	ID       int32
}

// StreamPortal links the level to a neighbouring stream unit.
type StreamPortal struct {
	Destination string
	Min         math.Vec3
	Max         math.Vec3
}

// BGInstance places a background object with a full transform.
type BGInstance struct {
	Matrix math.Mat4
	Object int // index into Terrain.BGObjects, -1 when unset
}

// Markup is a level annotation, optionally carrying a polyline.
type Markup struct {
	Flags    uint32
	Intro    int16
	ID       int16
	Position math.Vec3
	PolyLine []math.Vec3
}

// TerrainLight is a point light baked into the terrain.
type TerrainLight struct {
	X, Y, Z int32
	Radius  int32
	R, G, B uint8
	Type    uint8
}

// Intros decodes n intro records at p.
func (d *Decoder) Intros(p drm.Pointer, n int32) ([]Intro, error) {
	if n == 0 {
		return nil, nil
	}
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("intros: %w", err)
	}
	if err := checkCount("intro", n, introSize, c); err != nil {
		return nil, err
	}

	intros := make([]Intro, n)
	for i := range intros {
		in := &intros[i]
		if in.Rotation, err = c.Vec3(); err != nil {
			return nil, err
		}
		c.Skip(4)
		if in.Position, err = c.Vec3(); err != nil {
			return nil, err
		}
		c.Skip(52)
		if in.Object, err = c.Int16(); err != nil {
			return nil, err
		}
		c.Skip(2)
		if in.ID, err = c.Int32(); err != nil {
			return nil, err
		}
		c.Skip(24)
	}
	return intros, nil
}

// Portals decodes n stream portal records at p.
func (d *Decoder) Portals(p drm.Pointer, n int32) ([]StreamPortal, error) {
	if n == 0 {
		return nil, nil
	}
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("portals: %w", err)
	}
	if err := checkCount("portal", n, portalSize, c); err != nil {
		return nil, err
	}

	portals := make([]StreamPortal, n)
	for i := range portals {
		sp := &portals[i]
		if sp.Destination, err = c.FixedString(30); err != nil {
			return nil, err
		}
		c.Skip(18)
		if sp.Min, err = c.Vec3(); err != nil {
			return nil, err
		}
		c.Skip(4)
		if sp.Max, err = c.Vec3(); err != nil {
			return nil, err
		}
		c.Skip(84)
	}
	return portals, nil
}

// BGInstances decodes n background instances at p. Object pointers are
// converted to indices into the BG object array at objects.
func (d *Decoder) BGInstances(p drm.Pointer, n int32, objects drm.Pointer) ([]BGInstance, error) {
	if n == 0 {
		return nil, nil
	}
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("BG instances: %w", err)
	}
	if err := checkCount("BG instance", n, bgInstanceSize, c); err != nil {
		return nil, err
	}

	instances := make([]BGInstance, n)
	for i := range instances {
		inst := &instances[i]
		if inst.Matrix, err = c.Mat4(); err != nil {
			return nil, err
		}
		c.Skip(128)
		obj, err := d.pointer(c, p)
		if err != nil {
			return nil, fmt.Errorf("BG instance %d object: %w", i, err)
		}
		if inst.Object, err = bgObjectIndex(obj, objects); err != nil {
			return nil, fmt.Errorf("BG instance %d: %w", i, err)
		}
		c.Skip(44)
	}
	return instances, nil
}

func bgObjectIndex(obj, list drm.Pointer) (int, error) {
	if obj.IsNull() {
		return -1, nil
	}
	if list.IsNull() || obj.Section != list.Section || obj.Offset < list.Offset ||
		(obj.Offset-list.Offset)%BGObjectSize != 0 {
		return 0, fmt.Errorf("%w: object pointer %s is not an element of %s",
			drm.ErrStructuralInvariant, obj, list)
	}
	return int((obj.Offset - list.Offset) / BGObjectSize), nil
}

// Markups decodes n markup records at p. Legend archives use 48-byte records,
// later archives insert 28 more bytes at the start of each record.
func (d *Decoder) Markups(p drm.Pointer, n int32, legend bool) ([]Markup, error) {
	if n == 0 {
		return nil, nil
	}
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("markups: %w", err)
	}
	stride := 48
	if !legend {
		stride = 76
	}
	if err := checkCount("markup", n, stride, c); err != nil {
		return nil, err
	}

	markups := make([]Markup, n)
	for i := range markups {
		m := &markups[i]
		c.Skip(stride - 36)
		if m.Flags, err = c.Uint32(); err != nil {
			return nil, err
		}
		if m.Intro, err = c.Int16(); err != nil {
			return nil, err
		}
		if m.ID, err = c.Int16(); err != nil {
			return nil, err
		}
		if m.Position, err = c.Vec3(); err != nil {
			return nil, err
		}
		c.Skip(12)
		poly, err := d.pointer(c, p)
		if err != nil {
			return nil, fmt.Errorf("markup %d polyline: %w", i, err)
		}
		if !poly.IsNull() {
			if m.PolyLine, err = d.polyLine(poly); err != nil {
				return nil, fmt.Errorf("markup %d: %w", i, err)
			}
		}
	}
	return markups, nil
}

func (d *Decoder) polyLine(p drm.Pointer) ([]math.Vec3, error) {
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("polyline: %w", err)
	}
	n, err := c.Int32()
	if err != nil {
		return nil, err
	}
	c.Skip(12)
	if err := checkCount("polyline segment", n, 16, c); err != nil {
		return nil, err
	}

	segments := make([]math.Vec3, n)
	for i := range segments {
		if segments[i], err = c.Vec3(); err != nil {
			return nil, err
		}
		c.Skip(4)
	}
	return segments, nil
}

// TerrainLights decodes n terrain lights at p.
func (d *Decoder) TerrainLights(p drm.Pointer, n int32) ([]TerrainLight, error) {
	if n == 0 {
		return nil, nil
	}
	c, err := d.cursor(p)
	if err != nil {
		return nil, fmt.Errorf("terrain lights: %w", err)
	}
	if err := checkCount("terrain light", n, terrainLightSize, c); err != nil {
		return nil, err
	}

	lights := make([]TerrainLight, n)
	for i := range lights {
		l := &lights[i]
		for _, dst := range []*int32{&l.X, &l.Y, &l.Z, &l.Radius} {
			if *dst, err = c.Int32(); err != nil {
				return nil, err
			}
		}
		for _, dst := range []*uint8{&l.R, &l.G, &l.B, &l.Type} {
			if *dst, err = c.Uint8(); err != nil {
				return nil, err
			}
		}
		c.Skip(16)
	}
	return lights, nil
}
