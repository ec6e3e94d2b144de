package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// ContainsPoint checks if a point is inside the AABB
func (a AABB) ContainsPoint(point mgl64.Vec3) bool {
	return point.X() >= a.Min.X() && point.X() <= a.Max.X() &&
		point.Y() >= a.Min.Y() && point.Y() <= a.Max.Y() &&
		point.Z() >= a.Min.Z() && point.Z() <= a.Max.Z()
}

// Contains checks if other is fully enclosed by a
func (a AABB) Contains(other AABB) bool {
	return a.Min.X() <= other.Min.X() && a.Min.Y() <= other.Min.Y() && a.Min.Z() <= other.Min.Z() &&
		other.Max.X() <= a.Max.X() && other.Max.Y() <= a.Max.Y() && other.Max.Z() <= a.Max.Z()
}

// Overlaps checks if two AABBs overlap
func (a AABB) Overlaps(other AABB) bool {
	// AABBs overlap if they overlap on all three axes
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

// Merge returns the smallest AABB enclosing a and other
func (a AABB) Merge(other AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{math.Min(a.Min[0], other.Min[0]), math.Min(a.Min[1], other.Min[1]), math.Min(a.Min[2], other.Min[2])},
		Max: mgl64.Vec3{math.Max(a.Max[0], other.Max[0]), math.Max(a.Max[1], other.Max[1]), math.Max(a.Max[2], other.Max[2])},
	}
}

// Fatten grows the box by margin on every side
func (a AABB) Fatten(margin float64) AABB {
	m := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: a.Min.Sub(m), Max: a.Max.Add(m)}
}

// Extend grows the box along a displacement so that a moving object stays enclosed
func (a AABB) Extend(displacement mgl64.Vec3) AABB {
	out := a
	for i := 0; i < 3; i++ {
		if displacement[i] < 0 {
			out.Min[i] += displacement[i]
		} else {
			out.Max[i] += displacement[i]
		}
	}
	return out
}

// Center returns the center of the box
func (a AABB) Center() mgl64.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// Extents returns the half size of the box
func (a AABB) Extents() mgl64.Vec3 {
	return a.Max.Sub(a.Min).Mul(0.5)
}

// SurfaceArea is the cost metric used by the dynamic tree
func (a AABB) SurfaceArea() float64 {
	d := a.Max.Sub(a.Min)
	return 2.0 * (d.X()*d.Y() + d.Y()*d.Z() + d.Z()*d.X())
}

// RayIntersect clips the segment p1 + t*(p2-p1), t in [0, maxFraction], against the box.
// It returns the entry fraction.
func (a AABB) RayIntersect(p1, p2 mgl64.Vec3, maxFraction float64) (float64, bool) {
	d := p2.Sub(p1)
	tMin := 0.0
	tMax := maxFraction

	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < 1e-12 {
			if p1[i] < a.Min[i] || p1[i] > a.Max[i] {
				return 0, false
			}
			continue
		}

		inv := 1.0 / d[i]
		t1 := (a.Min[i] - p1[i]) * inv
		t2 := (a.Max[i] - p1[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}

	return tMin, true
}
