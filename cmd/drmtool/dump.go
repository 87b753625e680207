package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/drmview/internal/logger"
	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/formats"
	"github.com/Faultbox/drmview/pkg/source"
)

type dumpCmd struct {
	Args archiveArg `positional-args:"true"`

	What   string `short:"w" long:"what" choice:"sections" choice:"level" choice:"object" choice:"textures" default:"sections" description:"Records to dump"`
	Format string `short:"f" long:"format" choice:"yaml" choice:"spew" default:"yaml" description:"Output format"`
	Depth  int    `long:"depth" default:"0" description:"Maximum nesting depth for spew output (0 = unlimited)"`
}

// textureHeader is a texture without its bitmap.
type textureHeader struct {
	SectionID  uint32
	Format     string
	BitmapSize uint32
	Width      uint16
	Height     uint16
	NumMipMaps uint8
	Flags      uint16
}

// Execute decodes the selected records and writes them to stdout.
func (c *dumpCmd) Execute(_ []string) error {
	return withArchive(c.Args.Archive, func(s *session, f *source.File, a *drm.Archive) error {
		v, err := c.records(s, a)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		return c.write(os.Stdout, v)
	})
}

func (c *dumpCmd) records(s *session, a *drm.Archive) (any, error) {
	opts := s.cfg.DecodeOptions(logger.Named("formats"))
	switch c.What {
	case "level":
		return formats.ParseLevel(a, opts)
	case "object":
		return formats.ParseObject(a, opts)
	case "textures":
		textures, err := formats.LoadTextures(a)
		if err != nil {
			return nil, err
		}
		out := make([]textureHeader, 0, len(textures))
		for _, t := range textures {
			out = append(out, textureHeader{
				SectionID:  t.SectionID,
				Format:     t.Format.String(),
				BitmapSize: t.BitmapSize,
				Width:      t.Width,
				Height:     t.Height,
				NumMipMaps: t.NumMipMaps,
				Flags:      t.Flags,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].SectionID < out[j].SectionID })
		return out, nil
	}
	return a.Sections, nil
}

func (c *dumpCmd) write(w io.Writer, v any) error {
	if c.Format == "spew" {
		cfg := spew.NewDefaultConfig()
		cfg.DisableCapacities = true
		cfg.DisablePointerAddresses = true
		cfg.MaxDepth = c.Depth
		_, err := io.WriteString(w, cfg.Sdump(v))
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}
