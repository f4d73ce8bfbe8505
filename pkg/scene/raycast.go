package scene

import (
	gomath "math"

	"github.com/Faultbox/psxexport/pkg/math"
)

// rayEpsilon rejects hits at the ray origin.
const rayEpsilon = 1e-9

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3 // Normalized direction
}

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min math.Vec3
	Max math.Vec3
}

// Hit is the result of a ray cast.
type Hit struct {
	OK       bool
	Point    math.Vec3
	Normal   math.Vec3
	Object   *Object
	Distance float64
}

// NewAABB returns the bounds of a point set.
func NewAABB(points []math.Vec3) AABB {
	if len(points) == 0 {
		return AABB{}
	}
	box := AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		box.Min = box.Min.Min(p)
		box.Max = box.Max.Max(p)
	}
	return box
}

// Contains reports whether p lies inside or on the box.
func (b AABB) Contains(p math.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// IntersectAABB tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectAABB(box AABB) (t float64, hit bool) {
	tmin := -gomath.MaxFloat64
	tmax := gomath.MaxFloat64

	for axis := 0; axis < 3; axis++ {
		o := r.Origin.Component(axis)
		d := r.Direction.Component(axis)
		lo := box.Min.Component(axis)
		hi := box.Max.Component(axis)
		if d != 0 {
			t1 := (lo - o) / d
			t2 := (hi - o) / d
			if t1 > t2 {
				t1, t2 = t2, t1
			}
			if t1 > tmin {
				tmin = t1
			}
			if t2 < tmax {
				tmax = t2
			}
		} else if o < lo || o > hi {
			return 0, false
		}
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// IntersectTriangle is the Möller–Trumbore test. Returns the distance along
// the ray and whether the triangle was hit in front of the origin.
func (r Ray) IntersectTriangle(a, b, c math.Vec3) (float64, bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Direction.Cross(e2)
	det := e1.Dot(p)
	if gomath.Abs(det) < 1e-12 {
		return 0, false
	}
	inv := 1 / det
	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t <= rayEpsilon {
		return 0, false
	}
	return t, true
}

// RayCast returns the closest mesh surface hit by the ray from origin along
// dir. Ties keep the object that comes first in the scene.
func (s *Scene) RayCast(origin, dir math.Vec3) Hit {
	ray := Ray{Origin: origin, Direction: dir.Normalize()}
	best := Hit{Distance: gomath.MaxFloat64}

	for _, o := range s.Objects {
		if o.Type != TypeMesh || o.Mesh == nil || len(o.Mesh.Polygons) == 0 {
			continue
		}
		verts := o.WorldVertices()
		box := NewAABB(verts)
		if t, ok := ray.IntersectAABB(box); !ok || (!box.Contains(ray.Origin) && t > best.Distance) {
			continue
		}
		for _, poly := range o.Mesh.Polygons {
			for i := 1; i+1 < len(poly); i++ {
				a, b, c := verts[poly[0]], verts[poly[i]], verts[poly[i+1]]
				t, ok := ray.IntersectTriangle(a, b, c)
				if !ok || t >= best.Distance {
					continue
				}
				best = Hit{
					OK:       true,
					Point:    ray.Origin.Add(ray.Direction.Scale(t)),
					Normal:   b.Sub(a).Cross(c.Sub(a)).Normalize(),
					Object:   o,
					Distance: t,
				}
			}
		}
	}

	if !best.OK {
		return Hit{}
	}
	return best
}
