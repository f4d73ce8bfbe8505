package config

import "flag"

// Flags holds command-line overrides. Zero values mean "not set".
type Flags struct {
	Config   string
	Debug    bool
	Output   string
	Level    int
	Scale    float64
	BPP      int
	Video    string
	Compress bool
	Mix      bool
	Precalc  bool
	Tri      bool
}

// RegisterFlags declares the shared export flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file (.yaml or .toml)")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.Output, "o", "", "Export folder")
	fs.IntVar(&f.Level, "level", -1, "Level number used in symbol prefixes")
	fs.Float64Var(&f.Scale, "scale", 0, "World scale factor")
	fs.IntVar(&f.BPP, "bpp", 0, "Texture bit depth (4 or 8)")
	fs.StringVar(&f.Video, "video", "", "Video mode (ntsc or pal)")
	fs.BoolVar(&f.Compress, "compress", false, "Delta-compress vertex animations")
	fs.BoolVar(&f.Mix, "mix", false, "Merge overlapping animation strips")
	fs.BoolVar(&f.Precalc, "precalc", false, "Use precalculated backgrounds")
	fs.BoolVar(&f.Tri, "triangulate", false, "Triangulate meshes (destructive)")
	return f
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Output != "" {
		cfg.Export.Folder = f.Output
	}
	if f.Level >= 0 {
		cfg.Export.Level = f.Level
	}
	if f.Scale > 0 {
		cfg.Export.Scale = f.Scale
	}
	if f.BPP > 0 {
		cfg.Export.BPP = f.BPP
	}
	if f.Video != "" {
		cfg.Export.VideoMode = f.Video
	}
	if f.Compress {
		cfg.Export.CompressAnims = true
	}
	if f.Mix {
		cfg.Export.MixOverlappingStrips = true
	}
	if f.Precalc {
		cfg.Export.PrecalcBackgrounds = true
	}
	if f.Tri {
		cfg.Export.Triangulate = true
	}
}
