// psxexport compiles authored scenes into C source for a PlayStation engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/psxexport/internal/config"
	"github.com/Faultbox/psxexport/internal/emit"
	"github.com/Faultbox/psxexport/internal/exporter"
	"github.com/Faultbox/psxexport/internal/logger"
	"github.com/Faultbox/psxexport/pkg/formats"
	"github.com/Faultbox/psxexport/pkg/scene"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "export":
		err = cmdExport(ctx, args)
	case "watch":
		err = cmdWatch(ctx, args)
	case "types":
		err = cmdTypes(args)
	case "info":
		err = cmdInfo(args)
	case "config":
		err = cmdConfig(args)
	case "schema":
		_, err = os.Stdout.Write(scene.Schema())
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`psxexport - scene to PlayStation C compiler

Usage:
  psxexport <command> [options]

Commands:
  export [options] <scene.json>   Export a scene to levels/levelN.{c,h}
  watch [options] <scene.json>    Re-export whenever the scene file changes
  types [dir]                     Write custom_types.h only
  info <file.tim>                 Show a TIM header
  config init [options] [file]    Write the effective config (default: user config dir)
  schema                          Print the scene JSON schema

Export options:
  -config <file>   Config file (.yaml or .toml)
  -o <dir>         Export folder (default: the scene's folder)
  -level <n>       Level number
  -scale <f>       World scale
  -bpp <4|8>       Texture depth
  -video <mode>    ntsc or pal
  -compress        Delta-compress animations
  -mix             Merge overlapping animation strips
  -precalc         Precalculated backgrounds
  -triangulate     Triangulate meshes
  -debug           Debug logging

Examples:
  psxexport export -level 1 scenes/level1.json
  psxexport watch -o ../engine scenes/level1.json.zst
  psxexport info TIM/brick.tim`)
}

// parseConfig parses the export flags of a command and loads the config.
func parseConfig(name string, args []string) (*config.Config, *flag.FlagSet, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, fs, nil
}

// setup parses the export flags, loads the config and starts the logger.
func setup(name string, args []string) (*config.Config, string, error) {
	cfg, fs, err := parseConfig(name, args)
	if err != nil {
		return nil, "", err
	}
	if fs.NArg() < 1 {
		return nil, "", fmt.Errorf("usage: psxexport %s [options] <scene.json>", name)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, "", fmt.Errorf("logger: %w", err)
	}
	return cfg, fs.Arg(0), nil
}

func cmdExport(ctx context.Context, args []string) error {
	cfg, path, err := setup("export", args)
	if err != nil {
		return err
	}
	rep, err := run(ctx, cfg, path)
	if err != nil {
		return err
	}
	printReport(rep)
	return nil
}

// run loads the scene and exports it with a fresh context.
func run(ctx context.Context, cfg *config.Config, path string) (*exporter.Report, error) {
	s, err := scene.Load(path)
	if err != nil {
		return nil, err
	}
	c, err := exporter.NewContext(cfg, s, filepath.Dir(path), nil)
	if err != nil {
		return nil, err
	}
	return exporter.Export(ctx, c)
}

func printReport(rep *exporter.Report) {
	fmt.Printf("Level:    %s\n", rep.Level)
	fmt.Printf("Symbols:  %d\n", rep.Symbols)
	fmt.Printf("Textures: %d\n", rep.Textures)
	fmt.Printf("Size:     %s\n", humanize.Bytes(uint64(rep.Bytes)))
	fmt.Printf("Time:     %s\n", rep.Duration.Round(time.Millisecond))
	for _, f := range rep.Files {
		fmt.Printf("  %s\n", f)
	}
	if len(rep.Unresolved) > 0 {
		fmt.Fprintf(os.Stderr, "\n%d unresolved references written as null:\n", len(rep.Unresolved))
		for _, name := range rep.Unresolved {
			fmt.Fprintf(os.Stderr, "  %s\n", name)
		}
	}
	if warnings := multierr.Errors(rep.Warnings); len(warnings) > 0 {
		fmt.Fprintf(os.Stderr, "\n%d warnings:\n", len(warnings))
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "  %v\n", w)
		}
	}
}

func cmdTypes(args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	path, err := emit.WriteTypesFile(dir)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote: %s\n", path)
	return nil
}

// cmdConfig writes the config that an export with the same flags would use.
func cmdConfig(args []string) error {
	if len(args) < 1 || args[0] != "init" {
		return errors.New("usage: psxexport config init [options] [file]")
	}
	cfg, fs, err := parseConfig("config init", args[1:])
	if err != nil {
		return err
	}
	path := filepath.Join(config.ConfigDir(), "config.yaml")
	if fs.NArg() > 0 {
		path = fs.Arg(0)
		err = cfg.SaveTo(path)
	} else {
		err = cfg.Save()
	}
	if err != nil {
		return err
	}
	fmt.Printf("Wrote: %s\n", path)
	return nil
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: psxexport info <file.tim>")
	}
	tim, err := formats.ParseTIMFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("File:   %s\n", args[0])
	fmt.Printf("Mode:   %s\n", tim.Mode)
	fmt.Printf("Image:  %dx%d px at %d,%d\n", tim.PixelWidth(), tim.Image.H, tim.Image.X, tim.Image.Y)
	if tim.HasCLUT {
		fmt.Printf("CLUT:   %d colors at %d,%d\n", tim.Colors(), tim.CLUT.X, tim.CLUT.Y)
	} else {
		fmt.Println("CLUT:   none")
	}
	return nil
}

// logRun logs the outcome of one watched export.
func logRun(rep *exporter.Report, err error) {
	if err != nil {
		logger.Error("export failed", zap.Error(err))
		return
	}
	logger.Info("export done",
		zap.String("level", rep.Level),
		zap.String("size", humanize.Bytes(uint64(rep.Bytes))),
		zap.Int("warnings", len(multierr.Errors(rep.Warnings))),
		zap.Int("unresolved", len(rep.Unresolved)))
}
