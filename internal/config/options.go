package config

import (
	"go.uber.org/zap"

	"github.com/Faultbox/drmview/internal/scene"
	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/formats"
)

// DRMOptions returns the archive parsing options for this config.
func (c *Config) DRMOptions(log *zap.Logger) drm.Options {
	return drm.Options{
		Logger: log,
		Strict: c.Decode.StrictRelocations,
	}
}

// DecodeOptions returns the record decoding options for this config.
// The config must have passed Validate.
func (c *Config) DecodeOptions(log *zap.Logger) formats.DecodeOptions {
	legend, _ := formats.ParseLegendMode(c.Decode.LegendMarkup)
	half, _ := drm.ParseHalfFormat(c.Decode.HalfFloatMode)
	return formats.DecodeOptions{
		HalfScale:      c.Decode.HalfFloatScale,
		HalfFormat:     half,
		MaxOctreeDepth: c.Decode.MaxOctreeDepth,
		Legend:         legend,
		Logger:         log,
	}
}

// SceneOptions returns the scene assembly options for this config.
func (c *Config) SceneOptions(log *zap.Logger) scene.Options {
	return scene.Options{
		SkipSkydome:      c.Scene.SkipSkydome,
		SkipVMOStrips:    c.Scene.SkipVMOStrips,
		WorldScale:       c.Scene.WorldScale,
		IncludeCollision: c.Export.IncludeCollision,
		IncludeBGObjects: c.Export.IncludeBGObjects,
		Logger:           log,
	}
}
