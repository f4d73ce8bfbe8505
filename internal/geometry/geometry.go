// Package geometry converts scene meshes into fixed-point records with the
// target's axis order (X, -Z, Y).
package geometry

import (
	"errors"
	"fmt"

	"github.com/Faultbox/psxexport/pkg/math"
	"github.com/Faultbox/psxexport/pkg/scene"
)

// ErrNgon is returned for polygons with more than four corners.
var ErrNgon = errors.New("polygon has more than 4 corners")

// ErrNotMesh is returned when encoding an object without mesh data.
var ErrNotMesh = errors.New("object has no mesh")

// Flags is the per-mesh flag bitset.
type Flags uint16

// Mesh flags, in record order.
const (
	FlagProp Flags = 1 << iota
	FlagRigidBody
	FlagStaticBody
	FlagRound
	FlagPrism
	FlagAnim
	FlagActor
	FlagLevel
	FlagWall
	FlagBG
	FlagSprite
	FlagPortal
)

// FlagOrder lists the flags written in a MESH record with their names.
var FlagOrder = []struct {
	Flag Flags
	Name string
}{
	{FlagProp, "isProp"},
	{FlagRigidBody, "isRigidBody"},
	{FlagStaticBody, "isStaticBody"},
	{FlagRound, "isRound"},
	{FlagPrism, "isPrism"},
	{FlagAnim, "isAnim"},
	{FlagActor, "isActor"},
	{FlagLevel, "isLevel"},
	{FlagWall, "isWall"},
	{FlagBG, "isBG"},
	{FlagSprite, "isSprite"},
}

// Has reports whether all bits of x are set.
func (f Flags) Has(x Flags) bool {
	return f&x == x
}

// Int returns 1 if x is set, else 0.
func (f Flags) Int(x Flags) int {
	if f.Has(x) {
		return 1
	}
	return 0
}

// Primitive codes, same as the GPU polygon codes.
const (
	CodeG3  = 3
	CodeGT3 = 4
	CodeG4  = 7
	CodeGT4 = 8
)

// Prim is one polygon: vertex indices (the 4th is 0 for triangles) and code.
type Prim struct {
	Order [4]int
	Code  int
}

// Record is an encoded mesh.
type Record struct {
	Object      string
	Mesh        string
	Vertices    [][3]int
	Normals     [][3]int
	UVs         [][2]int // nil without texture
	Colors      [][3]int // one per polygon corner
	Prims       []Prim
	Min, Max    [3]int
	Flags       Flags
	Mass        int
	Restitution int
	Position    [3]int
	Rotation    [3]int
	Texture     *scene.Texture
	Interpolate bool
}

// Options controls encoding.
type Options struct {
	Scale       float64
	Triangulate bool // destructive on the scene
	Precalc     bool // keep isBG
}

// Encode converts a mesh object.
func Encode(o *scene.Object, opts Options) (*Record, error) {
	if o.Mesh == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotMesh, o.Name)
	}
	if opts.Triangulate {
		scene.Triangulate(o)
	}
	m := o.Mesh

	rec := &Record{
		Object:   o.Name,
		Mesh:     o.MeshName(),
		Vertices: make([][3]int, len(m.Vertices)),
		Normals:  make([][3]int, len(m.Vertices)),
	}

	for i, v := range m.Vertices {
		p := math.Remap(v, opts.Scale)
		rec.Vertices[i] = p
		if i == 0 {
			rec.Min, rec.Max = p, p
			continue
		}
		for a := 0; a < 3; a++ {
			rec.Min[a] = min(rec.Min[a], p[a])
			rec.Max[a] = max(rec.Max[a], p[a])
		}
	}

	normals := m.Normals
	if len(normals) != len(m.Vertices) {
		normals = VertexNormals(m)
	}
	for i, n := range normals {
		rec.Normals[i] = math.Remap(n, math.One)
	}

	textured := m.Texture != nil && len(m.UVs) > 0
	if textured {
		rec.Texture = m.Texture
		rec.UVs = EncodeUVs(m.UVs, m.Texture.Width, m.Texture.Height)
	}
	rec.Colors = EncodeColors(m)

	for _, p := range m.Polygons {
		prim := Prim{}
		switch len(p) {
		case 3:
			prim.Code = CodeG3
			if textured {
				prim.Code = CodeGT3
			}
		case 4:
			prim.Code = CodeG4
			if textured {
				prim.Code = CodeGT4
			}
		default:
			return nil, fmt.Errorf("%w: %s has %d", ErrNgon, o.Name, len(p))
		}
		copy(prim.Order[:], p)
		rec.Prims = append(rec.Prims, prim)
	}

	data := o.Data.Flags(scene.MeshFlags)
	rec.Flags = ReadFlags(data, opts.Precalc)
	rec.Mass = data["mass"]
	if rec.Mass == 0 {
		rec.Mass = 1
	}
	rec.Restitution = data["restitution"]
	rec.Interpolate = data["isLerp"] != 0

	rec.Position = math.Remap(o.Location, opts.Scale)
	rec.Rotation = [3]int{
		math.Angle(o.Rotation.X),
		math.Angle(-o.Rotation.Z),
		math.Angle(o.Rotation.Y),
	}
	return rec, nil
}

// ReadFlags builds the flag set from datablock values read with
// scene.MeshFlags. isBG only survives with precalculated backgrounds.
func ReadFlags(data map[string]int, precalc bool) Flags {
	var f Flags
	for _, fo := range FlagOrder {
		if data[fo.Name] != 0 {
			f |= fo.Flag
		}
	}
	if data["isPortal"] != 0 {
		f |= FlagPortal
	}
	if !precalc {
		f &^= FlagBG
	}
	return f
}

// EncodeUVs scales normalized UVs to texel coordinates, flipping V, and
// clamps them to [0,255]. Coordinates beyond a 256 texel page are lost.
func EncodeUVs(uvs []math.Vec2, w, h int) [][2]int {
	out := make([][2]int, len(uvs))
	fw, fh := float64(w), float64(h)
	for i, uv := range uvs {
		out[i] = [2]int{
			math.Clamp(math.Round(uv.X*fw), 0, 255),
			math.Clamp(math.Round(fh-uv.Y*fh), 0, 255),
		}
	}
	return out
}

// EncodeColors returns one color per corner: the paint layer scaled to
// 0..255, or a grey/white/white pattern when the mesh has none.
func EncodeColors(m *scene.Mesh) [][3]int {
	if len(m.Colors) > 0 {
		out := make([][3]int, len(m.Colors))
		for i, c := range m.Colors {
			out[i] = [3]int{int(c[0] * 255), int(c[1] * 255), int(c[2] * 255)}
		}
		return out
	}
	n := m.Corners()
	out := make([][3]int, n)
	for i := range out {
		if i%3 == 0 {
			out[i] = [3]int{80, 80, 80}
		} else {
			out[i] = [3]int{128, 128, 128}
		}
	}
	return out
}

// VertexNormals averages the face normals around each vertex.
func VertexNormals(m *scene.Mesh) []math.Vec3 {
	acc := make([]math.Vec3, len(m.Vertices))
	for _, p := range m.Polygons {
		if len(p) < 3 {
			continue
		}
		a, b, c := m.Vertices[p[0]], m.Vertices[p[1]], m.Vertices[p[2]]
		n := b.Sub(a).Cross(c.Sub(a)).Normalize()
		for _, vi := range p {
			acc[vi] = acc[vi].Add(n)
		}
	}
	for i := range acc {
		acc[i] = acc[i].Normalize()
	}
	return acc
}
