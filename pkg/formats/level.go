package formats

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/drmview/pkg/drm"
)

// Level header field offsets, relative to section 0.
const (
	levelTerrainOffset    = 0
	levelBackgroundOffset = 8
	levelMarkupOffset     = 96
	levelUnitNameOffset   = 128
	levelLightsOffset     = 212
	levelPlayerNameOffset = 232
)

// Level is the top-level record of a level archive.
type Level struct {
	Terrain    *Terrain
	Background [3]uint8 // RGB
	UnitName   string
	PlayerName string
	Markups    []Markup
	Lights     []TerrainLight
}

// ParseLevel decodes the level stored in a relocated archive.
func ParseLevel(a *drm.Archive, opts DecodeOptions) (*Level, error) {
	return NewDecoder(a, opts).Level()
}

// Level decodes the level header at the start of section 0.
func (d *Decoder) Level() (*Level, error) {
	base := d.archive.Entry()
	c, err := d.cursor(base)
	if err != nil {
		return nil, fmt.Errorf("level: %w", err)
	}
	start := c.Tell()
	lvl := &Level{}

	c.Seek(start + levelTerrainOffset)
	terrain, err := d.pointer(c, base)
	if err != nil {
		return nil, fmt.Errorf("level terrain: %w", err)
	}
	if terrain.IsNull() {
		return nil, fmt.Errorf("%w: Level->terrain", ErrNullPointer)
	}

	c.Seek(start + levelBackgroundOffset)
	for i := range lvl.Background {
		if lvl.Background[i], err = c.Uint8(); err != nil {
			return nil, fmt.Errorf("level background: %w", err)
		}
	}

	c.Seek(start + levelMarkupOffset)
	numMarkups, err := c.Int32()
	if err != nil {
		return nil, fmt.Errorf("level markup count: %w", err)
	}
	markups, err := d.pointer(c, base)
	if err != nil {
		return nil, fmt.Errorf("level markups: %w", err)
	}

	c.Seek(start + levelUnitNameOffset)
	unitName, err := d.pointer(c, base)
	if err != nil {
		return nil, fmt.Errorf("level unit name: %w", err)
	}

	c.Seek(start + levelLightsOffset)
	numLights, err := c.Int32()
	if err != nil {
		return nil, fmt.Errorf("level light count: %w", err)
	}
	lights, err := d.pointer(c, base)
	if err != nil {
		return nil, fmt.Errorf("level lights: %w", err)
	}

	c.Seek(start + levelPlayerNameOffset)
	playerName, err := d.pointer(c, base)
	if err != nil {
		return nil, fmt.Errorf("level player name: %w", err)
	}

	if lvl.Terrain, err = d.Terrain(terrain); err != nil {
		return nil, err
	}
	if lvl.UnitName, err = d.String(unitName); err != nil {
		return nil, fmt.Errorf("level unit name: %w", err)
	}
	if lvl.PlayerName, err = d.String(playerName); err != nil {
		return nil, fmt.Errorf("level player name: %w", err)
	}

	legend := d.legend(lvl.Terrain)
	if lvl.Markups, err = d.Markups(markups, numMarkups, legend); err != nil {
		return nil, err
	}
	if !lights.IsNull() {
		if lvl.Lights, err = d.TerrainLights(lights, numLights); err != nil {
			return nil, err
		}
	}

	d.log.Debug("level decoded",
		zap.String("unit", lvl.UnitName),
		zap.Bool("legend", legend),
		zap.Int("markups", len(lvl.Markups)),
		zap.Int("lights", len(lvl.Lights)))
	return lvl, nil
}

// String reads the null-terminated string at p. A null pointer yields "".
func (d *Decoder) String(p drm.Pointer) (string, error) {
	if p.IsNull() {
		return "", nil
	}
	c, err := d.cursor(p)
	if err != nil {
		return "", err
	}
	return c.CString()
}

func (d *Decoder) legend(t *Terrain) bool {
	switch d.opts.Legend {
	case LegendOn:
		return true
	case LegendOff:
		return false
	}
	return t.CDCRenderDataID != 0
}
