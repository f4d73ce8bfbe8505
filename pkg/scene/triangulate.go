package scene

import "github.com/Faultbox/psxexport/pkg/math"

// Triangulate splits every polygon with more than three corners into a fan
// of triangles, rewriting per-corner UVs and colors to match. The mesh is
// modified in place; there is no undo.
func Triangulate(o *Object) {
	m := o.Mesh
	if m == nil {
		return
	}
	hasUV := len(m.UVs) == m.Corners()
	hasColor := len(m.Colors) == m.Corners()

	var (
		polys  [][]int
		uvs    []math.Vec2
		colors [][3]float64
	)
	corner := 0
	for _, p := range m.Polygons {
		for i := 1; i+1 < len(p); i++ {
			polys = append(polys, []int{p[0], p[i], p[i+1]})
			for _, c := range [3]int{corner, corner + i, corner + i + 1} {
				if hasUV {
					uvs = append(uvs, m.UVs[c])
				}
				if hasColor {
					colors = append(colors, m.Colors[c])
				}
			}
		}
		corner += len(p)
	}

	m.Polygons = polys
	if hasUV {
		m.UVs = uvs
	}
	if hasColor {
		m.Colors = colors
	}
}
