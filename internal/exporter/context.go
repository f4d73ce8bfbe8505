// Package exporter runs the whole scene to C pipeline for one level.
package exporter

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/psxexport/internal/config"
	"github.com/Faultbox/psxexport/internal/convert"
	"github.com/Faultbox/psxexport/internal/logger"
	"github.com/Faultbox/psxexport/internal/vram"
	"github.com/Faultbox/psxexport/pkg/scene"
)

// Context is the state of one export run. It is created fresh for every
// run, so counters like the VRAM cursor never leak between exports.
type Context struct {
	RunID  string
	Config *config.Config
	Scene  *scene.Scene
	Dir    string // export folder
	Source string // base of relative asset paths in the scene
	Log    *zap.Logger

	Converter *convert.Converter
	VRAM      *vram.Allocator
	Mode      vram.VideoMode

	started  time.Time
	warnings error
}

// NewContext prepares a run. dir is the scene's folder; it is the export
// folder unless the config names another one.
func NewContext(cfg *config.Config, s *scene.Scene, dir string, runner convert.Runner) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := vram.ParseVideoMode(cfg.Export.VideoMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	if dir == "" {
		dir = "."
	}
	source, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if cfg.Export.Folder != "" {
		dir = cfg.Export.Folder
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	log := logger.ForRun(id, s.Name)
	if runner == nil {
		runner = convert.ExecRunner{Log: log}
	}
	conv := convert.New(cfg, runner, log)
	conv.WorkDir = filepath.Join(dir, ".psxexport")

	s.SetResolution(mode.Width, mode.Height)
	return &Context{
		RunID:     id,
		Config:    cfg,
		Scene:     s,
		Dir:       dir,
		Source:    source,
		Log:       log,
		Converter: conv,
		VRAM:      vram.NewAllocator(mode, cfg.Export.BPP),
		Mode:      mode,
		started:   time.Now(),
	}, nil
}

// warn records a non-fatal problem.
func (c *Context) warn(err error, fields ...zap.Field) {
	c.Log.Warn(err.Error(), fields...)
	c.warnings = multierr.Append(c.warnings, err)
}

// Warnings returns everything reported through warn.
func (c *Context) Warnings() []error {
	return multierr.Errors(c.warnings)
}

// path resolves a scene-relative path.
func (c *Context) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Source, p)
}

// Report summarizes a finished export.
type Report struct {
	RunID      string
	Level      string
	Files      []string
	Bytes      int64
	Symbols    int
	Textures   int
	Unresolved []string
	Warnings   error
	Duration   time.Duration
}
