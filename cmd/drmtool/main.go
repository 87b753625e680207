// drmtool inspects DRM archives and exports their levels as glTF.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/Faultbox/drmview/internal/assets"
	"github.com/Faultbox/drmview/internal/config"
	"github.com/Faultbox/drmview/internal/logger"
	"github.com/Faultbox/drmview/pkg/drm"
	"github.com/Faultbox/drmview/pkg/source"
)

type globalOptions struct {
	Config    string   `short:"c" long:"config" description:"Config file path"`
	Debug     bool     `short:"d" long:"debug" description:"Enable debug logging"`
	HalfScale float32  `long:"half-scale" description:"Half-float scale (1 or 2048)"`
	HalfMode  string   `long:"half-mode" choice:"ieee" choice:"bfloat16" description:"Half-float layout"`
	Strict    bool     `long:"strict" description:"Reject archives with unsupported relocation kinds"`
	Legend    string   `long:"legend" choice:"auto" choice:"true" choice:"false" description:"Markup record layout"`
	Data      []string `short:"D" long:"data" description:"Search path for archives (repeatable)"`
	LogFile   string   `long:"log-file" description:"Also write logs to this file"`
}

type rootCmd struct {
	globalOptions

	List     listCmd     `command:"list" alias:"ls" description:"List archives in the search paths"`
	Info     infoCmd     `command:"info" description:"Show archive summary"`
	Sections sectionsCmd `command:"sections" description:"Print the section table"`
	Terrain  terrainCmd  `command:"terrain" description:"Summarize the level terrain"`
	Textures texturesCmd `command:"textures" description:"List texture sections"`
	Model    modelCmd    `command:"model" description:"Summarize an object archive"`
	Dump     dumpCmd     `command:"dump" description:"Dump decoded records"`
	Export   exportCmd   `command:"export" description:"Export a level as glTF"`
}

var root rootCmd

func main() {
	parser := flags.NewParser(&root, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

func (o globalOptions) overrides() config.Overrides {
	return config.Overrides{
		ConfigPath:  o.Config,
		Debug:       o.Debug,
		HalfScale:   o.HalfScale,
		HalfMode:    o.HalfMode,
		Strict:      o.Strict,
		Legend:      o.Legend,
		SearchPaths: o.Data,
		LogFile:     o.LogFile,
	}
}

// archiveArg is the positional argument shared by the archive commands.
type archiveArg struct {
	Archive string `positional-arg-name:"ARCHIVE" required:"true" description:"Archive path or name in the search paths"`
}

// session holds the loaded configuration and asset sources of one command.
type session struct {
	cfg    *config.Config
	assets *assets.Manager
}

func newSession() (*session, error) {
	cfg, err := config.Load(root.overrides())
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	mgr := assets.NewManager()
	for _, p := range cfg.Data.SearchPaths {
		if err := mgr.AddSource(p); err != nil {
			logger.Warn("skipping search path", zap.String("path", p), zap.Error(err))
		}
	}
	return &session{cfg: cfg, assets: mgr}, nil
}

func (s *session) close() {
	s.assets.Close()
	logger.Sync()
}

// file resolves name to a DRM file. A path to an existing file is added as
// the highest priority source.
func (s *session) file(name string) (*source.File, error) {
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		if err := s.assets.AddSource(name); err != nil {
			return nil, err
		}
		name = filepath.Base(name)
	}
	return s.assets.Load(name)
}

// archive resolves and parses name.
func (s *session) archive(name string) (*source.File, *drm.Archive, error) {
	f, err := s.file(name)
	if err != nil {
		return nil, nil, err
	}
	a, err := f.Archive(s.cfg.DRMOptions(logger.Named("drm")))
	if err != nil {
		return nil, nil, err
	}
	return f, a, nil
}

// withArchive runs fn on a parsed archive inside a session.
func withArchive(name string, fn func(s *session, f *source.File, a *drm.Archive) error) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	f, a, err := s.archive(name)
	if err != nil {
		return err
	}
	return fn(s, f, a)
}
