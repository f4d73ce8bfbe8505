package convert

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/psxexport/internal/config"
)

// Transparency selects how img2tim derives the semi-transparency bit.
type Transparency string

// Transparency modes.
const (
	TransparencyAlpha    Transparency = "alpha"
	TransparencyBlack    Transparency = "black"
	TransparencyNonBlack Transparency = "nonblack"
)

func (t Transparency) flag() string {
	switch t {
	case TransparencyBlack:
		return "-b"
	case TransparencyNonBlack:
		return "-t"
	}
	return "-usealpha"
}

// TIMRequest describes one image to TIM conversion.
type TIMRequest struct {
	Source       string
	Output       string
	BPP          int
	X, Y         int
	CLUTX, CLUTY int
	Transparency Transparency
}

// Converter runs the configured tool chain.
type Converter struct {
	Tools  config.ToolsConfig
	Export config.ExportConfig
	Runner Runner
	Log    *zap.Logger

	// WorkDir holds intermediate files. Defaults to os.TempDir.
	WorkDir string
}

// New returns a converter over the given runner.
func New(cfg *config.Config, runner Runner, log *zap.Logger) *Converter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{Tools: cfg.Tools, Export: cfg.Export, Runner: runner, Log: log}
}

func (c *Converter) run(ctx context.Context, tmpl string, vars map[string]string) error {
	args, err := Expand(tmpl, vars)
	if err != nil {
		return err
	}
	return c.Runner.Run(ctx, args[0], args[1:]...)
}

func (c *Converter) workDir() string {
	if c.WorkDir != "" {
		return c.WorkDir
	}
	return os.TempDir()
}

// Colors returns the palette size for a bit depth.
func Colors(bpp int) int {
	if bpp == 4 {
		return 16
	}
	return 255
}

func trimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// TIM converts an image to a TIM at a fixed VRAM position. Depending on
// the export options the image is first turned into a PNG and its palette
// reduced.
func (c *Converter) TIM(ctx context.Context, req TIMRequest) error {
	colors := strconv.Itoa(Colors(req.BPP))
	src := req.Source

	switch {
	case c.Export.UseImageMagick:
		png := trimExt(src) + ".png"
		if err := c.run(ctx, c.Tools.ImageMagick, map[string]string{
			"input": src, "output": png, "colors": colors,
		}); err != nil {
			return err
		}
		src = png
	default:
		if c.Export.ConvertToPNG && !strings.EqualFold(filepath.Ext(src), ".png") {
			png := trimExt(src) + ".png"
			if err := c.run(ctx, c.Tools.ImageMagick, map[string]string{
				"input": src, "output": png, "colors": colors,
			}); err != nil {
				return err
			}
			src = png
		}
		if c.Export.ReducePalette {
			if err := c.run(ctx, c.Tools.PngQuant, map[string]string{
				"input": src, "colors": colors,
			}); err != nil {
				return err
			}
			src = trimExt(src) + ".pngq"
		}
	}

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return err
	}
	return c.run(ctx, c.Tools.Img2Tim, map[string]string{
		"transparency": req.Transparency.flag(),
		"bpp":          strconv.Itoa(req.BPP),
		"x":            strconv.Itoa(req.X),
		"y":            strconv.Itoa(req.Y),
		"clut_x":       strconv.Itoa(req.CLUTX),
		"clut_y":       strconv.Itoa(req.CLUTY),
		"output":       req.Output,
		"input":        src,
	})
}

// XA converts a sound to an XA track on the given file and channel.
func (c *Converter) XA(ctx context.Context, src, dst string, file, channel int) error {
	tmp := filepath.Join(c.workDir(), "psxexport_xa.wav")
	if err := c.decode(ctx, src, tmp, c.Tools.XADecode, 2, false); err != nil {
		return err
	}
	defer os.Remove(tmp)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return c.run(ctx, c.Tools.XAEncode, map[string]string{
		"input":   tmp,
		"output":  dst,
		"file":    strconv.Itoa(file),
		"channel": strconv.Itoa(channel),
	})
}

// VAG converts a sound to a VAG sample.
func (c *Converter) VAG(ctx context.Context, src, dst string) error {
	tmp := filepath.Join(c.workDir(), "psxexport_vag.dat")
	if err := c.decode(ctx, src, tmp, c.Tools.VAGDecode, 1, true); err != nil {
		return err
	}
	defer os.Remove(tmp)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return c.run(ctx, c.Tools.VAGEncode, map[string]string{
		"input":  tmp,
		"output": dst,
	})
}

// decode produces 44.1kHz 16-bit PCM. WAV sources are handled in-process,
// anything else goes through the configured decoder.
func (c *Converter) decode(ctx context.Context, src, dst, tmpl string, channels int, raw bool) error {
	if strings.EqualFold(filepath.Ext(src), ".wav") {
		err := PreparePCM(src, dst, PCMFormat{SampleRate: DefaultSampleRate, Channels: channels, Raw: raw})
		if err == nil {
			return nil
		}
		c.Log.Debug("in-process decode failed, using external decoder", zap.String("source", src), zap.Error(err))
	}
	return c.run(ctx, tmpl, map[string]string{"input": src, "output": dst})
}

// Interleave builds an interleaved XA file from a manifest.
func (c *Converter) Interleave(ctx context.Context, mode int, manifest, out string) error {
	return c.run(ctx, c.Tools.XAInterleave, map[string]string{
		"mode":     strconv.Itoa(mode),
		"manifest": manifest,
		"output":   out,
	})
}
