package main

import (
	"fmt"
	"sort"

	"github.com/Faultbox/drmview/internal/logger"
	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/formats"
	"github.com/Faultbox/drmview/pkg/source"
)

type listCmd struct {
	Sources bool `long:"sources" description:"Print the search paths in priority order instead"`
}

// Execute prints every archive visible through the search paths.
func (c *listCmd) Execute(_ []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	names := s.assets.List()
	if c.Sources {
		names = s.assets.Sources()
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

type infoCmd struct {
	Args archiveArg `positional-args:"true"`
}

// Execute prints the archive summary.
func (c *infoCmd) Execute(_ []string) error {
	return withArchive(c.Args.Archive, func(s *session, f *source.File, a *drm.Archive) error {
		fmt.Printf("Archive:     %s\n", f.Name)
		fmt.Printf("Path:        %s\n", f.Path)
		fmt.Printf("Compression: %s\n", f.Compression)
		fmt.Printf("Size:        %d bytes\n", len(f.Data))
		fmt.Printf("Fingerprint: %016x\n", f.Fingerprint)
		fmt.Printf("Version:     %d\n", a.Version)
		fmt.Printf("Sections:    %d\n", len(a.Sections))
		hits, misses := s.assets.CacheStats()
		fmt.Printf("Cache:       %d hits, %d misses\n", hits, misses)
		fmt.Println()

		// Count by type
		counts := make(map[drm.SectionType]int)
		sizes := make(map[drm.SectionType]uint32)
		for _, sec := range a.Sections {
			counts[sec.Type]++
			sizes[sec.Type] += sec.Size
		}
		types := make([]drm.SectionType, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

		fmt.Println("Sections by type:")
		for _, t := range types {
			fmt.Printf("  %-14s %4d  %10d bytes\n", t, counts[t], sizes[t])
		}

		if unsupported := a.UnsupportedRelocations(); len(unsupported) > 0 {
			fmt.Println()
			fmt.Println("Unresolved relocations:")
			for k, n := range unsupported {
				fmt.Printf("  %-16s %d\n", k, n)
			}
		}
		return nil
	})
}

type sectionsCmd struct {
	Args archiveArg `positional-args:"true"`
}

// Execute prints the section table.
func (c *sectionsCmd) Execute(_ []string) error {
	return withArchive(c.Args.Archive, func(_ *session, _ *source.File, a *drm.Archive) error {
		fmt.Printf("%5s %10s %-14s %10s %10s %6s %5s %8s\n",
			"INDEX", "ID", "TYPE", "OFFSET", "SIZE", "RELOCS", "RTYPE", "VERSION")
		for _, sec := range a.Sections {
			fmt.Printf("%5d %10d %-14s %#10x %10d %6d %5d %8d\n",
				sec.Index, sec.ID, sec.Type, sec.Offset, sec.Size,
				len(sec.Relocations), sec.ResourceType, sec.VersionID)
		}
		return nil
	})
}

type terrainCmd struct {
	Args archiveArg `positional-args:"true"`

	Groups bool `short:"g" long:"groups" description:"Print every terrain group"`
}

// Execute prints a summary of the level terrain.
func (c *terrainCmd) Execute(_ []string) error {
	return withArchive(c.Args.Archive, func(s *session, f *source.File, a *drm.Archive) error {
		lvl, err := formats.ParseLevel(a, s.cfg.DecodeOptions(logger.Named("formats")))
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		t := lvl.Terrain

		fmt.Printf("Level:        %s\n", f.Name)
		if lvl.UnitName != "" {
			fmt.Printf("Unit:         %s\n", lvl.UnitName)
		}
		if lvl.PlayerName != "" {
			fmt.Printf("Player:       %s\n", lvl.PlayerName)
		}
		fmt.Printf("Background:   #%02x%02x%02x\n", lvl.Background[0], lvl.Background[1], lvl.Background[2])
		fmt.Printf("Vertices:     %d (VMO %d)\n", len(t.Vertices), len(t.VMOVertices))
		fmt.Printf("Groups:       %d\n", len(t.Groups))
		fmt.Printf("Intros:       %d\n", len(t.Intros))
		fmt.Printf("Portals:      %d\n", len(t.Portals))
		fmt.Printf("BG objects:   %d (%d instances)\n", len(t.BGObjects), len(t.BGInstances))
		fmt.Printf("Markups:      %d\n", len(lvl.Markups))
		fmt.Printf("Lights:       %d\n", len(lvl.Lights))
		if t.SignalMesh != nil {
			fmt.Printf("Signal mesh:  %d vertices, %d faces\n", len(t.SignalMesh.Vertices), len(t.SignalMesh.Faces))
		}

		for _, p := range t.Portals {
			fmt.Printf("  portal -> %s\n", p.Destination)
		}

		if !c.Groups {
			return nil
		}
		fmt.Println()
		fmt.Printf("%5s %10s %5s %6s %6s %5s %s\n", "GROUP", "FLAGS", "MATS", "STRIPS", "NODES", "VMO", "NOTE")
		for i, g := range t.Groups {
			nodes, vmo := 0, 0
			if g.Octree != nil {
				nodes = g.Octree.Count()
			}
			for _, st := range g.Strips {
				if st.VMO {
					vmo++
				}
			}
			note := ""
			if g.IsSkydome() {
				note = "sky dome"
			}
			fmt.Printf("%5d %#10x %5d %6d %6d %5d %s\n", i, g.Flags, len(g.Materials), len(g.Strips), nodes, vmo, note)
		}
		return nil
	})
}

type texturesCmd struct {
	Args archiveArg `positional-args:"true"`
}

// Execute lists the texture sections of an archive.
func (c *texturesCmd) Execute(_ []string) error {
	return withArchive(c.Args.Archive, func(_ *session, f *source.File, a *drm.Archive) error {
		textures, err := formats.LoadTextures(a)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		ids := make([]uint32, 0, len(textures))
		for id := range textures {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		fmt.Printf("%6s %-10s %6s %6s %5s %10s\n", "ID", "FORMAT", "WIDTH", "HEIGHT", "MIPS", "BYTES")
		for _, id := range ids {
			t := textures[id]
			fmt.Printf("%6d %-10s %6d %6d %5d %10d\n", id, t.Format, t.Width, t.Height, t.NumMipMaps, len(t.Data))
		}
		fmt.Printf("\n%d textures\n", len(ids))
		return nil
	})
}

type modelCmd struct {
	Args archiveArg `positional-args:"true"`

	Bones bool `short:"b" long:"bones" description:"Print bone positions"`
}

// Execute prints a summary of the models in an object archive.
func (c *modelCmd) Execute(_ []string) error {
	return withArchive(c.Args.Archive, func(s *session, f *source.File, a *drm.Archive) error {
		obj, err := formats.ParseObject(a, s.cfg.DecodeOptions(logger.Named("formats")))
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}

		fmt.Printf("Object: %s (%d models)\n", f.Name, len(obj.Models))
		for i, m := range obj.Models {
			indices := 0
			for _, st := range m.Strips {
				indices += len(st.Indices)
			}
			fmt.Printf("  model %d: %d segments (%d virtual), %d vertices, %d strips, %d indices\n",
				i, len(m.Segments), len(m.VirtualSegments), len(m.Vertices), len(m.Strips), indices)

			if !c.Bones {
				continue
			}
			bones, err := m.BonePositions()
			if err != nil {
				return fmt.Errorf("model %d: %w", i, err)
			}
			for b, p := range bones {
				fmt.Printf("    bone %3d parent %3d  (%.3f, %.3f, %.3f)\n", b, m.Segments[b].Parent, p.X, p.Y, p.Z)
			}
		}
		return nil
	})
}
