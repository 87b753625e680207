// Package config handles drmtool configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/formats"
)

// Config holds all tool settings.
type Config struct {
	Decode  DecodeConfig  `yaml:"decode"`
	Scene   SceneConfig   `yaml:"scene"`
	Export  ExportConfig  `yaml:"export"`
	Data    DataConfig    `yaml:"data"`
	Logging LoggingConfig `yaml:"logging"`
}

// DecodeConfig holds archive and record decoding settings.
type DecodeConfig struct {
	HalfFloatScale    float32 `yaml:"half_float_scale"`   // 1 or 2048
	HalfFloatMode     string  `yaml:"half_float_mode"`    // ieee or bfloat16
	StrictRelocations bool    `yaml:"strict_relocations"` // reject non-pointer relocations
	LegendMarkup      string  `yaml:"legend_markup"`      // auto, true or false
	MaxOctreeDepth    int     `yaml:"max_octree_depth"`
}

// SceneConfig holds scene assembly settings.
type SceneConfig struct {
	SkipSkydome   bool    `yaml:"skip_skydome"`
	SkipVMOStrips bool    `yaml:"skip_vmo_strips"`
	WorldScale    float32 `yaml:"world_scale"`
}

// ExportConfig holds glTF export settings.
type ExportConfig struct {
	Binary           bool `yaml:"binary"` // write .glb instead of .gltf
	IncludeCollision bool `yaml:"include_collision"`
	IncludeBGObjects bool `yaml:"include_bg_objects"`
}

// DataConfig holds game data locations.
type DataConfig struct {
	SearchPaths []string `yaml:"search_paths"` // directories or files searched for DRM archives
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Decode: DecodeConfig{
			HalfFloatScale:    drm.HalfScaleRaw,
			HalfFloatMode:     "ieee",
			StrictRelocations: false,
			LegendMarkup:      "auto",
			MaxOctreeDepth:    formats.DefaultMaxOctreeDepth,
		},
		Scene: SceneConfig{
			SkipSkydome:   true,
			SkipVMOStrips: true,
			WorldScale:    0.1,
		},
		Export: ExportConfig{
			Binary:           true,
			IncludeCollision: false,
			IncludeBGObjects: true,
		},
		Data: DataConfig{
			SearchPaths: []string{"."},
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks values that cannot be expressed by the YAML types.
func (c *Config) Validate() error {
	if s := c.Decode.HalfFloatScale; s != drm.HalfScaleRaw && s != drm.HalfScaleLegacy {
		return fmt.Errorf("decode.half_float_scale must be %v or %v, got %v",
			drm.HalfScaleRaw, drm.HalfScaleLegacy, s)
	}
	if _, err := drm.ParseHalfFormat(c.Decode.HalfFloatMode); err != nil {
		return fmt.Errorf("decode.half_float_mode: %w", err)
	}
	if _, err := formats.ParseLegendMode(c.Decode.LegendMarkup); err != nil {
		return fmt.Errorf("decode.legend_markup: %w", err)
	}
	if c.Decode.MaxOctreeDepth < 0 {
		return fmt.Errorf("decode.max_octree_depth must not be negative, got %d", c.Decode.MaxOctreeDepth)
	}
	if c.Scene.WorldScale <= 0 {
		return fmt.Errorf("scene.world_scale must be positive, got %v", c.Scene.WorldScale)
	}
	return nil
}
