package exporter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/psxexport/internal/convert"
	"github.com/Faultbox/psxexport/internal/symbols"
	"github.com/Faultbox/psxexport/internal/vram"
	"github.com/Faultbox/psxexport/pkg/formats"
	"github.com/Faultbox/psxexport/pkg/scene"
)

// Texture errors.
var (
	ErrTextureMissing = errors.New("texture image not found")
	ErrTIMMissing     = errors.New("converted TIM not found")
	ErrTIMMismatch    = errors.New("TIM placement differs from allocation")
)

// DefaultTIMDir is the folder, below the export folder, TIM files go to.
const DefaultTIMDir = "TIM"

const (
	backgroundTIMStem = "bg_"
	defaultTextureExt = ".png"
)

// TextureSource returns the image file of a texture: its explicit path, or
// the cleaned texture name inside the texture folder.
func (c *Context) TextureSource(t *scene.Texture) string {
	if t.Path != "" {
		return c.path(t.Path)
	}
	ext := filepath.Ext(t.Name)
	if ext == "" {
		ext = defaultTextureExt
	}
	base := strings.TrimSuffix(t.Name, filepath.Ext(t.Name))
	return filepath.Join(c.Dir, c.Config.Export.TextureFolder, symbols.CleanName(base)+ext)
}

// timPath returns the output TIM of a texture or background stem.
func (c *Context) timPath(stem string) string {
	return filepath.Join(c.Dir, DefaultTIMDir, stem+".tim")
}

// backgrounds converts the pre-rendered background of every camera. It
// returns the cameras that got one.
func (c *Context) backgrounds(ctx context.Context, cams []*scene.Object) (map[string]bool, error) {
	out := make(map[string]bool)
	if !c.Config.Export.PrecalcBackgrounds {
		return out, nil
	}
	for _, cam := range cams {
		if cam.Camera == nil || cam.Camera.Background == "" {
			continue
		}
		stem := backgroundTIMStem + symbols.CleanName(cam.Name)
		ok, err := c.placeTIM(ctx, c.path(cam.Camera.Background), stem, c.Mode.Width, convert.TransparencyNonBlack)
		if err != nil {
			return nil, err
		}
		out[cam.Name] = ok
	}
	return out, nil
}

// textures converts every texture used by the meshes, once per prefix.
func (c *Context) textures(ctx context.Context, meshes []*scene.Object) (map[string]vram.Placement, error) {
	out := make(map[string]vram.Placement)
	seen := make(map[string]bool)
	for _, o := range meshes {
		if o.Mesh == nil || o.Mesh.Texture == nil {
			continue
		}
		prefix := symbols.TexturePrefix(o.Mesh.Texture.Name)
		if seen[prefix] {
			continue
		}
		seen[prefix] = true

		src := c.TextureSource(o.Mesh.Texture)
		w, h, err := convert.ImageSize(src)
		if err != nil {
			c.warn(fmt.Errorf("%w: %s: %v", ErrTextureMissing, src, err), zap.String("object", o.Name))
			continue
		}
		if o.Mesh.Texture.Width == 0 {
			o.Mesh.Texture.Width, o.Mesh.Texture.Height = w, h
		}

		pl, err := c.place(src, w)
		if err != nil {
			c.warn(err, zap.String("texture", prefix))
			continue
		}
		if err := c.convertTIM(ctx, src, prefix, pl, convert.TransparencyAlpha); err != nil {
			return nil, err
		}
		out[prefix] = pl
	}
	return out, nil
}

// placeTIM allocates and converts one image, reporting whether it fits.
func (c *Context) placeTIM(ctx context.Context, src, stem string, width int, tr convert.Transparency) (bool, error) {
	if _, err := os.Stat(src); err != nil {
		c.warn(fmt.Errorf("%w: %s", ErrTextureMissing, src))
		return false, nil
	}
	pl, err := c.place(src, width)
	if err != nil {
		c.warn(err, zap.String("image", stem))
		return false, nil
	}
	if err := c.convertTIM(ctx, src, stem, pl, tr); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Context) place(src string, width int) (vram.Placement, error) {
	pl, err := c.VRAM.Allocate(src, width)
	if err != nil {
		return pl, fmt.Errorf("%s: %w", filepath.Base(src), err)
	}
	c.Log.Debug("texture placed",
		zap.String("path", src),
		zap.Int("x", pl.X), zap.Int("y", pl.Y),
		zap.Int("clut_x", pl.CLUTX), zap.Int("clut_y", pl.CLUTY))
	return pl, nil
}

// convertTIM runs the converter and checks the written TIM header against
// the allocation. Only a missing tool is fatal.
func (c *Context) convertTIM(ctx context.Context, src, stem string, pl vram.Placement, tr convert.Transparency) error {
	out := c.timPath(stem)
	err := c.Converter.TIM(ctx, convert.TIMRequest{
		Source:       src,
		Output:       out,
		BPP:          pl.BPP,
		X:            pl.X,
		Y:            pl.Y,
		CLUTX:        pl.CLUTX,
		CLUTY:        pl.CLUTY,
		Transparency: tr,
	})
	if err != nil {
		return err
	}
	if err := CheckTIM(out, pl); err != nil {
		c.warn(err, zap.String("tim", out))
	}
	return nil
}

// CheckTIM reads back a TIM header and compares it with the placement.
func CheckTIM(path string, pl vram.Placement) error {
	tim, err := formats.ParseTIMFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrTIMMissing, path)
		}
		return err
	}
	switch {
	case tim.Mode.BPP() != pl.BPP:
		return fmt.Errorf("%w: %s is %s, expected %dbpp", ErrTIMMismatch, filepath.Base(path), tim.Mode, pl.BPP)
	case int(tim.Image.X) != pl.X || int(tim.Image.Y) != pl.Y:
		return fmt.Errorf("%w: %s image at %d,%d, expected %d,%d",
			ErrTIMMismatch, filepath.Base(path), tim.Image.X, tim.Image.Y, pl.X, pl.Y)
	case tim.HasCLUT && (int(tim.CLUT.X) != pl.CLUTX || int(tim.CLUT.Y) != pl.CLUTY):
		return fmt.Errorf("%w: %s CLUT at %d,%d, expected %d,%d",
			ErrTIMMismatch, filepath.Base(path), tim.CLUT.X, tim.CLUT.Y, pl.CLUTX, pl.CLUTY)
	}
	return nil
}
