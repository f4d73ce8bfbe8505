package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/psxexport/internal/config"
)

// isolate keeps the user's own config file out of the test.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
}

func TestSetup(t *testing.T) {
	isolate(t)
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		level   int
		video   string
	}{
		{"defaults", []string{"scene.json"}, false, 0, "ntsc"},
		{"overrides", []string{"-level", "2", "-video", "pal", "scene.json"}, false, 2, "pal"},
		{"no scene", []string{"-level", "2"}, true, 0, ""},
		{"unknown flag", []string{"-nope", "scene.json"}, true, 0, ""},
		{"invalid bpp", []string{"-bpp", "3", "scene.json"}, true, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, path, err := setup("export", tt.args)
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("setup: %v", err)
			}
			if path != "scene.json" {
				t.Errorf("expected scene.json, got %s", path)
			}
			if cfg.Export.Level != tt.level {
				t.Errorf("expected level %d, got %d", tt.level, cfg.Export.Level)
			}
			if cfg.Export.VideoMode != tt.video {
				t.Errorf("expected video mode %s, got %s", tt.video, cfg.Export.VideoMode)
			}
		})
	}
}

func TestSetupInvalidConfig(t *testing.T) {
	isolate(t)
	_, _, err := setup("export", []string{"-scale", "5000", "scene.json"})
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
	_, _, err = setup("export", []string{"-h"})
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("expected flag.ErrHelp, got %v", err)
	}
}

func writeTIM(t *testing.T, path string) {
	t.Helper()
	var buf []byte
	u32 := func(v uint32) { buf = binary.LittleEndian.AppendUint32(buf, v) }
	u16 := func(v uint16) { buf = binary.LittleEndian.AppendUint16(buf, v) }
	u32(0x10)
	u32(1 | 8) // 8bpp with CLUT
	u32(12)
	u16(0)
	u16(480)
	u16(0)
	u16(1)
	u32(12)
	u16(320)
	u16(0)
	u16(0)
	u16(64)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("failed to write TIM: %v", err)
	}
}

func TestCmdInfo(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "brick.tim")
	writeTIM(t, good)

	tests := []struct {
		name     string
		args     []string
		wantErr  bool
		notExist bool
	}{
		{"valid", []string{good}, false, false},
		{"no args", nil, true, false},
		{"missing file", []string{filepath.Join(dir, "missing.tim")}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cmdInfo(tt.args)
			if tt.wantErr != (err != nil) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.notExist && !errors.Is(err, os.ErrNotExist) {
				t.Errorf("expected os.ErrNotExist, got %v", err)
			}
		})
	}
}

func TestCmdConfigInit(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "psx", "level.toml")

	if err := cmdConfig([]string{"init", "-level", "3", "-bpp", "4", path}); err != nil {
		t.Fatalf("cmdConfig: %v", err)
	}
	cfg, err := config.Load(&config.Flags{Config: path, Level: -1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Export.Level != 3 || cfg.Export.BPP != 4 {
		t.Errorf("expected level 3 at 4bpp, got level %d at %dbpp", cfg.Export.Level, cfg.Export.BPP)
	}

	if err := cmdConfig([]string{"init"}); err != nil {
		t.Fatalf("cmdConfig: %v", err)
	}
	if _, err := os.Stat(filepath.Join(config.ConfigDir(), "config.yaml")); err != nil {
		t.Errorf("expected config in the user config dir: %v", err)
	}

	if err := cmdConfig([]string{"show"}); err == nil {
		t.Error("expected usage error for unknown subcommand")
	}
}
