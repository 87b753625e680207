package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/drmview/internal/export"
	"github.com/Faultbox/drmview/internal/logger"
	"github.com/Faultbox/drmview/internal/scene"
	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/formats"
	"github.com/Faultbox/drmview/pkg/source"
)

type exportCmd struct {
	Args archiveArg `positional-args:"true"`

	Output    string   `short:"o" long:"output" description:"Output file (default: archive name in the current directory)"`
	JSON      bool     `long:"json" description:"Write .gltf with embedded buffers instead of .glb"`
	Collision bool     `long:"collision" description:"Include collision and signal meshes"`
	NoObjects bool     `long:"no-objects" description:"Leave out background objects"`
	KeepSky   bool     `long:"keep-sky" description:"Keep sky-dome terrain groups"`
	KeepVMO   bool     `long:"keep-vmo" description:"Keep strips that reference the VMO pool"`
	Textures  []string `short:"t" long:"textures" description:"Additional archive supplying texture sections (repeatable)"`
}

// Execute assembles the level scene and writes it as glTF.
func (c *exportCmd) Execute(_ []string) error {
	return withArchive(c.Args.Archive, func(s *session, f *source.File, a *drm.Archive) error {
		lvl, err := formats.ParseLevel(a, s.cfg.DecodeOptions(logger.Named("formats")))
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}

		textures, err := formats.LoadTextures(a)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		for _, name := range c.Textures {
			if err := s.mergeTextures(textures, name); err != nil {
				return err
			}
		}

		// Flags override the config
		opts := s.cfg.SceneOptions(logger.Named("scene"))
		if c.Collision {
			opts.IncludeCollision = true
		}
		if c.NoObjects {
			opts.IncludeBGObjects = false
		}
		if c.KeepSky {
			opts.SkipSkydome = false
		}
		if c.KeepVMO {
			opts.SkipVMOStrips = false
		}

		name := strings.TrimSuffix(filepath.Base(f.Name), ".drm")
		sc, err := scene.Build(name, lvl, textures, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}

		out := c.Output
		if out == "" {
			out = name
		}
		path, summary, err := export.WriteFile(out, sc, export.Options{
			Binary: s.cfg.Export.Binary && !c.JSON,
			Logger: logger.Named("export"),
		})
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %s\n", path)
		fmt.Printf("  batches:  %d\n", len(sc.Batches))
		fmt.Printf("  meshes:   %d\n", summary.Meshes)
		fmt.Printf("  nodes:    %d\n", summary.Nodes)
		fmt.Printf("  images:   %d (%d compressed textures skipped)\n", summary.Images, summary.SkippedTextures)
		if st := sc.Stats; st.SkippedSkydomes+st.SkippedVMOStrips+st.SkippedInstances > 0 {
			fmt.Printf("  skipped:  %d sky-dome groups, %d VMO strips, %d instances\n",
				st.SkippedSkydomes, st.SkippedVMOStrips, st.SkippedInstances)
		}
		return nil
	})
}

// mergeTextures adds the texture sections of another archive. Sections
// already present are kept.
func (s *session) mergeTextures(dst map[uint32]*formats.Texture, name string) error {
	_, a, err := s.archive(name)
	if err != nil {
		return err
	}
	textures, err := formats.LoadTextures(a)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	for id, t := range textures {
		if _, ok := dst[id]; !ok {
			dst[id] = t
		}
	}
	return nil
}
