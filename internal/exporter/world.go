package exporter

import (
	gomath "math"
	"sort"
	"strings"

	"github.com/Faultbox/psxexport/internal/emit"
	"github.com/Faultbox/psxexport/pkg/math"
	"github.com/Faultbox/psxexport/pkg/scene"
)

// LinearToSRGB converts one linear color component to sRGB.
func LinearToSRGB(c float64) float64 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*gomath.Pow(c, 1/2.4) - 0.055
}

// WorldColor maps a linear color to the 63..255 range used for the
// background and ambient colors.
func WorldColor(c [3]float64) [3]int {
	var out [3]int
	for i, v := range c {
		out[i] = math.Round(LinearToSRGB(v)*192) + 63
	}
	return out
}

// CameraPosition returns a camera's position and rotation in target space.
// Cameras look down -Z; the target camera looks down +Z with Y down.
func CameraPosition(o *scene.Object, scale float64) (pos, rot [3]int) {
	l := o.Location
	pos = [3]int{
		math.Round(-l.X * scale),
		math.Round(l.Z * scale),
		math.Round(-l.Y * scale),
	}
	r := o.Rotation
	rot = [3]int{
		math.Angle(gomath.Pi/2 - r.X),
		math.Angle(r.Z),
		math.Angle(-r.Y),
	}
	return pos, rot
}

// DefaultCamera picks the camera flagged isDefault, else the one named
// "Default", else the first one.
func DefaultCamera(cams []*scene.Object) *scene.Object {
	for _, c := range cams {
		if c.Data.Bool("isDefault") {
			return c
		}
	}
	for _, c := range cams {
		if c.Name == "Default" {
			return c
		}
	}
	if len(cams) > 0 {
		return cams[0]
	}
	return nil
}

// CamPath returns the points of cameras named camPath*, skipping excluded ones.
func CamPath(cams []*scene.Object, scale float64) [][3]int {
	var pts [][3]int
	for _, c := range cams {
		if !strings.HasPrefix(c.Name, "camPath") || c.Data.Bool("exclude") {
			continue
		}
		pos, _ := CameraPosition(c, scale)
		pts = append(pts, pos)
	}
	return pts
}

// Lights converts up to three lamps, in name order.
func Lights(lamps []*scene.Object) []emit.Light {
	sorted := make([]*scene.Object, 0, len(lamps))
	for _, l := range lamps {
		if l.Lamp != nil {
			sorted = append(sorted, l)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	if len(sorted) > emit.MaxLights {
		sorted = sorted[:emit.MaxLights]
	}

	out := make([]emit.Light, len(sorted))
	for i, l := range sorted {
		energy := float64(int(l.Lamp.Energy * math.One))
		dir := l.Matrix().TransformDirection(math.V3(0, 0, -1))
		out[i].Direction = [3]int{
			int(dir.X * energy),
			int(-dir.Z * energy),
			int(dir.Y * energy),
		}
		for ch, v := range l.Lamp.Color {
			out[i].Color[ch] = int(v * math.One)
		}
	}
	return out
}
