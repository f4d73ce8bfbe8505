// Package partition splits a level into walkable planes and links each
// plane to its neighbours and to the objects standing on it.
package partition

import (
	gomath "math"

	"github.com/Faultbox/psxexport/pkg/math"
	"github.com/Faultbox/psxexport/pkg/scene"
)

// Rect is an axis-aligned rectangle on the ground (world X/Y).
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// Bounds returns the world-space ground rectangle of a mesh object.
func Bounds(o *scene.Object) Rect {
	verts := o.WorldVertices()
	if len(verts) == 0 {
		p := o.WorldLocation()
		return Rect{p.X, p.Y, p.X, p.Y}
	}
	p := verts[0].XY()
	r := Rect{p.X, p.Y, p.X, p.Y}
	for _, v := range verts[1:] {
		p := v.XY()
		r.X1 = min(r.X1, p.X)
		r.Y1 = min(r.Y1, p.Y)
		r.X2 = max(r.X2, p.X)
		r.Y2 = max(r.Y2, p.Y)
	}
	return r
}

// Relation is how an object's rectangle relates to a plane.
type Relation int

// Relations. The values are the ones the runtime uses.
const (
	None      Relation = 0
	Contained Relation = 1
	OverlapS  Relation = 2
	OverlapW  Relation = 4
	OverlapE  Relation = 6
	OverlapN  Relation = 8
)

func (r Relation) String() string {
	switch r {
	case Contained:
		return "contained"
	case OverlapS:
		return "overlap S"
	case OverlapW:
		return "overlap W"
	case OverlapE:
		return "overlap E"
	case OverlapN:
		return "overlap N"
	}
	return "none"
}

// Classify tests o against plane p. Tests run in a fixed order and the
// first match wins; bounds are inclusive.
func Classify(p, o Rect) Relation {
	switch {
	case p.X1 <= o.X1 && p.X2 >= o.X2 && p.Y1 <= o.Y1 && p.Y2 >= o.Y2:
		return Contained
	case p.X1 >= o.X1 && p.X1 <= o.X2 && p.Y1 <= o.Y2 && p.Y2 >= o.Y1:
		return OverlapW
	case p.X2 <= o.X2 && p.X2 >= o.X1 && p.Y1 <= o.Y2 && p.Y2 >= o.Y1:
		return OverlapE
	case p.Y2 <= o.Y2 && p.Y2 >= o.Y1 && p.X1 <= o.X1 && p.X2 >= o.X2:
		return OverlapN
	case p.Y1 >= o.Y1 && p.Y1 <= o.Y2 && p.X1 <= o.X1 && p.X2 >= o.X2:
		return OverlapS
	}
	return None
}

// Side is one edge of a rectangle.
type Side int

// Sides.
const (
	North Side = iota
	South
	West
	East
)

func (s Side) String() string {
	return [...]string{"N", "S", "W", "E"}[s]
}

// Opposite returns the facing side.
func (s Side) Opposite() Side {
	return [...]Side{South, North, East, West}[s]
}

// Line is a 2D segment.
type Line struct {
	X1, Y1, X2, Y2 float64
}

// Start returns the first end point.
func (l Line) Start() math.Vec2 { return math.Vec2{X: l.X1, Y: l.Y1} }

// End returns the second end point.
func (l Line) End() math.Vec2 { return math.Vec2{X: l.X2, Y: l.Y2} }

// SepLine returns the edge of r on side s.
func SepLine(r Rect, s Side) Line {
	switch s {
	case North:
		return Line{r.X1, r.Y2, r.X2, r.Y2}
	case South:
		return Line{r.X1, r.Y1, r.X2, r.Y1}
	case West:
		return Line{r.X1, r.Y1, r.X1, r.Y2}
	default:
		return Line{r.X2, r.Y1, r.X2, r.Y2}
	}
}

// LineSide is where a segment lies relative to a line.
type LineSide int

// Line sides.
const (
	Front LineSide = iota
	Back
	Connected
	Intersect
)

func (s LineSide) String() string {
	return [...]string{"front", "back", "connected", "intersect"}[s]
}

func round4(v float64) float64 {
	return gomath.RoundToEven(v*1e4) / 1e4
}

// ClassifyLine reports on which side of line the segment seg lies, from
// the signs of the cross products at both endpoints.
func ClassifyLine(line, seg Line) LineSide {
	o := line.Start()
	d := line.End().Sub(o)
	v1 := round4(seg.Start().Sub(o).Cross(d))
	v2 := round4(seg.End().Sub(o).Cross(d))
	switch {
	case v1 == 0 && v2 == 0:
		return Connected
	case v1 >= 0 && v2 >= 0:
		return Front
	case v1 <= 0 && v2 <= 0:
		return Back
	}
	return Intersect
}
