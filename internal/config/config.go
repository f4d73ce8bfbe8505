// Package config handles exporter configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned by Validate for unsupported option values.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all exporter settings.
type Config struct {
	Export  ExportConfig  `yaml:"export" toml:"export"`
	Tools   ToolsConfig   `yaml:"tools" toml:"tools"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ExportConfig holds the options of one export run.
type ExportConfig struct {
	Scale                float64 `yaml:"scale" toml:"scale"`
	Triangulate          bool    `yaml:"triangulate" toml:"triangulate"`
	PrecalcBackgrounds   bool    `yaml:"precalc_backgrounds" toml:"precalc_backgrounds"`
	ReducePalette        bool    `yaml:"reduce_palette" toml:"reduce_palette"`
	UseImageMagick       bool    `yaml:"use_imagemagick" toml:"use_imagemagick"`
	ConvertToPNG         bool    `yaml:"convert_to_png" toml:"convert_to_png"`
	BPP                  int     `yaml:"bpp" toml:"bpp"`
	Level                int     `yaml:"level" toml:"level"`
	Folder               string  `yaml:"folder" toml:"folder"`                 // Output folder, defaults to the scene's directory
	TextureFolder        string  `yaml:"texture_folder" toml:"texture_folder"` // Relative to Folder
	XAMode               int     `yaml:"xa_mode" toml:"xa_mode"`               // 0: 2352-byte sectors, 1: 2336
	CompressAnims        bool    `yaml:"compress_anims" toml:"compress_anims"`
	MixOverlappingStrips bool    `yaml:"mix_overlapping_strips" toml:"mix_overlapping_strips"`
	VideoMode            string  `yaml:"video_mode" toml:"video_mode"` // ntsc or pal
	ISOConfig            string  `yaml:"iso_config" toml:"iso_config"` // mkpsxiso xml, relative to Folder
}

// ToolsConfig holds the command templates of the external converters.
// Placeholders in braces are substituted before the command runs.
type ToolsConfig struct {
	ImageMagick  string `yaml:"imagemagick" toml:"imagemagick"`
	PngQuant     string `yaml:"pngquant" toml:"pngquant"`
	Img2Tim      string `yaml:"img2tim" toml:"img2tim"`
	XADecode     string `yaml:"xa_decode" toml:"xa_decode"`
	XAEncode     string `yaml:"xa_encode" toml:"xa_encode"`
	VAGDecode    string `yaml:"vag_decode" toml:"vag_decode"`
	VAGEncode    string `yaml:"vag_encode" toml:"vag_encode"`
	XAInterleave string `yaml:"xa_interleave" toml:"xa_interleave"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Scale:                65,
			Triangulate:          false,
			PrecalcBackgrounds:   false,
			ReducePalette:        true,
			BPP:                  8,
			Level:                0,
			TextureFolder:        "TEX",
			XAMode:               1,
			CompressAnims:        false,
			MixOverlappingStrips: false,
			VideoMode:            "ntsc",
			ISOConfig:            "isoconfig.xml",
		},
		Tools: ToolsConfig{
			ImageMagick:  "convert {input} -colors {colors} {output}",
			PngQuant:     "pngquant -v --force {colors} {input} --ext .pngq",
			Img2Tim:      "img2tim {transparency} -bpp {bpp} -org {x} {y} -plt {clut_x} {clut_y} -o {output} {input}",
			XADecode:     "ffmpeg -i {input} -acodec pcm_s16le -ac 2 -ar 44100 -y {output}",
			XAEncode:     "psxavenc -f 37800 -t xa -b 4 -c 2 -F {file} -C {channel} {input} {output}",
			VAGDecode:    "ffmpeg -i {input} -f s16le -ac 1 -ar 44100 -y {output}",
			VAGEncode:    "wav2vag {input} {output} -sraw16 -freq=44100",
			XAInterleave: "xainterleave {mode} {manifest} {output}",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate rejects option values the exporter cannot honor.
func (c *Config) Validate() error {
	e := c.Export
	if e.Scale < 1 || e.Scale > 1000 {
		return fmt.Errorf("%w: scale %g out of range [1,1000]", ErrInvalid, e.Scale)
	}
	if e.BPP != 4 && e.BPP != 8 {
		return fmt.Errorf("%w: bpp must be 4 or 8, got %d", ErrInvalid, e.BPP)
	}
	if e.Level < 0 || e.Level > 10 {
		return fmt.Errorf("%w: level %d out of range [0,10]", ErrInvalid, e.Level)
	}
	if e.XAMode != 0 && e.XAMode != 1 {
		return fmt.Errorf("%w: xa_mode must be 0 or 1, got %d", ErrInvalid, e.XAMode)
	}
	switch e.VideoMode {
	case "ntsc", "pal":
	default:
		return fmt.Errorf("%w: video_mode %q", ErrInvalid, e.VideoMode)
	}
	if e.TextureFolder == "" {
		return fmt.Errorf("%w: empty texture_folder", ErrInvalid)
	}
	return nil
}
