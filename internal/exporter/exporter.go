package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/psxexport/internal/anim"
	"github.com/Faultbox/psxexport/internal/emit"
	"github.com/Faultbox/psxexport/internal/geometry"
	"github.com/Faultbox/psxexport/internal/partition"
	"github.com/Faultbox/psxexport/internal/sound"
	"github.com/Faultbox/psxexport/internal/visibility"
	"github.com/Faultbox/psxexport/pkg/scene"
)

// Export compiles the scene of c into the export folder. Warnings are
// collected in the report; the returned error is always fatal.
func Export(ctx context.Context, c *Context) (*Report, error) {
	cfg := c.Config.Export
	s := c.Scene
	c.Log.Info("export started",
		zap.String("folder", c.Dir),
		zap.Int("level", cfg.Level),
		zap.Float64("scale", cfg.Scale))

	meshes := s.ObjectsOf(scene.TypeMesh)
	cams := s.ObjectsOf(scene.TypeCamera)

	lvl := &emit.Level{
		Number:  cfg.Level,
		Scale:   cfg.Scale,
		Horizon: WorldColor(s.World.HorizonColor),
		Ambient: WorldColor(s.World.AmbientColor),
		CamPath: CamPath(cams, cfg.Scale),
		Lights:  Lights(s.ObjectsOf(scene.TypeLamp)),
		Anims:   make(map[string]*anim.Set),
	}
	if def := DefaultCamera(cams); def != nil {
		lvl.DefaultCamera = def.Name
	}

	// Backgrounds take VRAM before textures.
	bgs, err := c.backgrounds(ctx, cams)
	if err != nil {
		return nil, err
	}
	if lvl.Textures, err = c.textures(ctx, meshes); err != nil {
		return nil, err
	}

	// Geometry and animation.
	var portals, targets []*scene.Object
	var actor *scene.Object
	items := make([]partition.Item, 0, len(meshes))
	for _, o := range meshes {
		items = append(items, partition.ItemOf(o))
		if o.Data.Bool("isPortal") {
			portals = append(portals, o)
			continue
		}
		rec, err := geometry.Encode(o, geometry.Options{
			Scale:       cfg.Scale,
			Triangulate: cfg.Triangulate,
			Precalc:     cfg.PrecalcBackgrounds,
		})
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", o.Name, err)
		}
		lvl.Meshes = append(lvl.Meshes, rec)

		switch {
		case rec.Flags.Has(geometry.FlagActor):
			if actor == nil {
				actor = o
			}
		case rec.Flags.Has(geometry.FlagRigidBody), rec.Flags.Has(geometry.FlagStaticBody):
			targets = append(targets, o)
		}
		if rec.Flags.Has(geometry.FlagProp) && lvl.Prop == "" {
			lvl.Prop = o.Name
		}

		set, err := anim.Flatten(s, o, anim.Options{
			Scale:       cfg.Scale,
			Mix:         cfg.MixOverlappingStrips,
			Compress:    cfg.CompressAnims,
			Interpolate: rec.Interpolate,
		})
		if err != nil {
			return nil, err
		}
		if len(set.Clips) > 0 {
			lvl.Anims[o.Name] = set
		}
	}
	if actor != nil {
		lvl.Actor = actor.Name
	}

	// Spatial partition.
	lvl.Graph = partition.Build(items, lvl.Actor)
	if root := lvl.Graph.RootNode(); root != nil {
		lvl.LevelMesh = root.Plane.Name
	}
	c.Log.Debug("partition built",
		zap.Int("nodes", len(lvl.Graph.Nodes)),
		zap.String("root", lvl.LevelMesh))

	// Camera angles.
	for _, cam := range cams {
		pos, rot := CameraPosition(cam, cfg.Scale)
		lvl.Cameras = append(lvl.Cameras, emit.Camera{
			Name:       cam.Name,
			Position:   pos,
			Rotation:   rot,
			Background: bgs[cam.Name],
			Angle: visibility.Resolve(s, cam, portals, targets, actor, visibility.Options{
				Scale: cfg.Scale,
			}),
		})
	}

	// Sounds.
	sb := sound.NewBuilder(c.Converter, sound.Options{
		Dir:       c.Dir,
		SourceDir: c.Source,
		XAMode:    cfg.XAMode,
	}, c.Log)
	for _, o := range s.ObjectsOf(scene.TypeSpeaker) {
		if err := sb.Add(ctx, o); err != nil {
			return nil, err
		}
	}
	lvl.VAG = sb.VAGBank()
	lvl.XA = sb.XABanks()
	lvl.Sounds = sb.Emitters()
	if err := c.interleave(ctx, sb, lvl.XA); err != nil {
		return nil, err
	}
	for _, w := range multierr.Errors(sb.Warnings()) {
		c.warn(w)
	}

	// Output.
	types, err := emit.WriteTypesFile(c.Dir)
	if err != nil {
		return nil, err
	}
	files, err := lvl.WriteFiles(c.Dir)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:      c.RunID,
		Level:      lvl.Prefix(),
		Files:      []string{types, files.H, files.C},
		Symbols:    files.Symbols,
		Textures:   len(lvl.Textures),
		Unresolved: files.Unresolved,
		Warnings:   c.warnings,
		Duration:   time.Since(c.started),
	}
	for _, f := range rep.Files {
		if fi, err := os.Stat(f); err == nil {
			rep.Bytes += fi.Size()
		}
	}
	for _, name := range rep.Unresolved {
		c.Log.Warn("unresolved symbol written as null", zap.String("symbol", name))
	}
	c.Log.Info("export finished",
		zap.String("level", rep.Level),
		zap.Int("symbols", rep.Symbols),
		zap.Int("textures", rep.Textures),
		zap.String("size", humanize.Bytes(uint64(rep.Bytes))),
		zap.Int("warnings", len(c.Warnings())),
		zap.Duration("took", rep.Duration))
	return rep, nil
}

// interleave writes the XA manifests, runs the interleaver and registers
// the interleaved files in the ISO config.
func (c *Context) interleave(ctx context.Context, sb *sound.Builder, banks [][]*sound.Emitter) error {
	if len(banks) == 0 {
		return nil
	}
	manifests, err := sb.WriteManifests(banks)
	if err != nil {
		return err
	}
	if err := sb.Interleave(ctx, manifests); err != nil {
		return err
	}

	iso := c.Config.Export.ISOConfig
	if iso == "" {
		return nil
	}
	if !filepath.IsAbs(iso) {
		iso = filepath.Join(c.Dir, iso)
	}
	entries := make([]string, len(manifests))
	for i := range manifests {
		entries[i] = sb.ISOEntry(i)
	}
	found, err := sound.UpdateISOConfig(iso, entries)
	if err != nil {
		c.warn(fmt.Errorf("update %s: %w", iso, err))
		return nil
	}
	if !found {
		c.Log.Debug("no ISO config", zap.String("path", iso))
		return nil
	}
	c.Log.Info("ISO config checked", zap.String("path", iso), zap.Int("files", len(entries)))
	return nil
}
