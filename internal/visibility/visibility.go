// Package visibility decides, for each fixed camera, which portals and
// meshes can be seen.
package visibility

import (
	"github.com/Faultbox/psxexport/internal/partition"
	"github.com/Faultbox/psxexport/pkg/math"
	"github.com/Faultbox/psxexport/pkg/scene"
)

// MaxPortals is the number of portal slots per camera angle.
const MaxPortals = 2

// DefaultEpsilon is how far past a portal the second ray starts, in scene
// units.
const DefaultEpsilon = 1e-3

// World answers the scene queries the resolver needs. *scene.Scene
// implements it.
type World interface {
	RayCast(origin, dir math.Vec3) scene.Hit
	InFrame(cam *scene.Object, p math.Vec3) bool
	CameraView(cam *scene.Object, p math.Vec3) math.Vec3
	Resolution() (int, int)
}

// Quad is a portal's four corners, in target coordinates.
type Quad [4][3]int

// Angle is what one camera sees.
type Angle struct {
	Camera  *scene.Object
	Portals [MaxPortals]*scene.Object // back (left), front (right); nil if empty
	Quads   [MaxPortals]Quad
	Visible []*scene.Object
}

// Options controls resolution.
type Options struct {
	Scale   float64
	Epsilon float64
}

// Resolve computes the camera angle of cam.
func Resolve(w World, cam *scene.Object, portals, targets []*scene.Object, actor *scene.Object, opts Options) Angle {
	if opts.Epsilon == 0 {
		opts.Epsilon = DefaultEpsilon
	}
	a := Angle{Camera: cam}
	eye := cam.WorldLocation()

	visible := VisiblePortals(w, cam, portals)
	switch len(visible) {
	case 1:
		if screenX(w, cam, visible[0]) > 0.5 {
			a.Portals[1] = visible[0]
		} else {
			a.Portals[0] = visible[0]
		}
	case 2:
		if screenX(w, cam, visible[0]) > screenX(w, cam, visible[1]) {
			visible[0], visible[1] = visible[1], visible[0]
		}
		a.Portals[0], a.Portals[1] = visible[0], visible[1]
	}
	for i, p := range a.Portals {
		if p != nil {
			a.Quads[i] = PortalQuad(p, opts.Scale)
		}
	}

	for _, t := range targets {
		if t == actor {
			continue
		}
		if targetVisible(w, cam, eye, t, opts.Epsilon) {
			a.Visible = append(a.Visible, t)
		}
	}
	if actor != nil {
		a.Visible = append(a.Visible, actor)
	}
	return a
}

// VisiblePortals returns the portals in frame and not occluded, keeping at
// most the two nearest. Survivors keep their input order.
func VisiblePortals(w World, cam *scene.Object, portals []*scene.Object) []*scene.Object {
	eye := cam.WorldLocation()
	var visible []*scene.Object
	for _, p := range portals {
		loc := p.WorldLocation()
		if !w.InFrame(cam, loc) {
			continue
		}
		hit := w.RayCast(eye, loc.Sub(eye).Normalize())
		if hit.OK && hit.Object == p {
			visible = append(visible, p)
		}
	}

	for len(visible) > MaxPortals {
		far, farDist := 0, -1.0
		for i, p := range visible {
			// >= drops the later of two equidistant portals.
			if d := p.WorldLocation().Distance(eye); d >= farDist {
				far, farDist = i, d
			}
		}
		visible = append(visible[:far], visible[far+1:]...)
	}
	return visible
}

// screenX is the mean normalized screen X of a portal's corners.
func screenX(w World, cam *scene.Object, p *scene.Object) float64 {
	verts := p.WorldVertices()
	if len(verts) == 0 {
		return w.CameraView(cam, p.WorldLocation()).X
	}
	sum := 0.0
	for _, v := range verts {
		sum += w.CameraView(cam, v).X
	}
	return sum / float64(len(verts))
}

// PortalQuad returns corners 3, 2, 0, 1 of the portal in scaled world
// coordinates. Unlike mesh data the axes are not remapped: the engine clips
// against portal quads in scene space.
func PortalQuad(p *scene.Object, scale float64) Quad {
	var q Quad
	verts := p.WorldVertices()
	for i, vi := range [4]int{3, 2, 0, 1} {
		if vi < len(verts) {
			v := verts[vi].Scale(scale)
			q[i] = [3]int{math.Round(v.X), math.Round(v.Y), math.Round(v.Z)}
		}
	}
	return q
}

func targetVisible(w World, cam *scene.Object, eye math.Vec3, t *scene.Object, eps float64) bool {
	loc := t.WorldLocation()
	if !w.InFrame(cam, loc) {
		return false
	}
	dir := loc.Sub(eye).Normalize()
	hit := w.RayCast(eye, dir)
	if !hit.OK {
		return false
	}
	if hit.Object == t {
		return true
	}
	if !hit.Object.Data.Bool("isPortal") {
		return false
	}

	origin := hit.Point.Add(throughPortal(hit.Object, eye, dir).Scale(eps))
	second := w.RayCast(origin, dir)
	return second.OK && second.Object == t
}

// throughPortal returns the ground normal of the portal pointing away from
// the camera. The portal edge runs from vertex 0 to vertex 1.
func throughPortal(portal *scene.Object, eye, dir math.Vec3) math.Vec3 {
	verts := portal.WorldVertices()
	if len(verts) < 2 {
		return dir
	}
	v0, v1 := verts[0], verts[1]
	edge := partition.Line{X1: v0.X, Y1: v0.Y, X2: v1.X, Y2: v1.Y}
	e := v1.XY().Sub(v0.XY())
	n := math.Vec2{X: e.Y, Y: -e.X}.Normalize()
	front := math.Vec3{X: n.X, Y: n.Y}
	switch partition.ClassifyLine(edge, partition.Line{X1: eye.X, Y1: eye.Y, X2: eye.X, Y2: eye.Y}) {
	case partition.Front:
		return front.Scale(-1)
	case partition.Back:
		return front
	}
	return dir
}
