package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// capsuleEdgeThreshold is the largest |direction.y| for which the capsule returns its side segment as feature
const capsuleEdgeThreshold = 0.02

// Capsule is a segment along the local Y axis, from -HalfHeight to +HalfHeight, inflated by Radius
type Capsule struct {
	HalfHeight float64
	Radius     float64
}

func (c *Capsule) Type() ShapeType { return ShapeTypeCapsule }
func (c *Capsule) IsConvex() bool  { return true }

// Segment returns the two local endpoints of the inner segment
func (c *Capsule) Segment() (mgl64.Vec3, mgl64.Vec3) {
	return mgl64.Vec3{0, -c.HalfHeight, 0}, mgl64.Vec3{0, c.HalfHeight, 0}
}

func (c *Capsule) ComputeAABB(transform Transform) AABB {
	a, b := c.Segment()
	wa := transform.Apply(a)
	wb := transform.Apply(b)

	segment := AABB{Min: wa, Max: wa}.Merge(AABB{Min: wb, Max: wb})
	return segment.Fatten(c.Radius)
}

func (c *Capsule) ComputeMass(density float64) float64 {
	r := c.Radius
	cylinder := math.Pi * r * r * 2.0 * c.HalfHeight
	sphere := (4.0 / 3.0) * math.Pi * r * r * r

	return density * (cylinder + sphere)
}

func (c *Capsule) ComputeInertia(mass float64) mgl64.Mat3 {
	r := c.Radius
	h := 2.0 * c.HalfHeight

	cylinderVolume := math.Pi * r * r * h
	sphereVolume := (4.0 / 3.0) * math.Pi * r * r * r
	total := cylinderVolume + sphereVolume
	if total <= 0 {
		return mgl64.Mat3{}
	}

	mc := mass * cylinderVolume / total
	ms := mass * sphereVolume / total

	// cylinder around its axis plus two hemispheres shifted by the half height
	iy := mc*r*r/2.0 + ms*2.0*r*r/5.0
	ix := mc*(3.0*r*r+h*h)/12.0 + ms*(2.0*r*r/5.0+h*h/4.0+3.0*h*r/8.0)

	return mgl64.Diag3(mgl64.Vec3{ix, iy, ix})
}

func (c *Capsule) Support(direction mgl64.Vec3) mgl64.Vec3 {
	center := mgl64.Vec3{0, c.HalfHeight, 0}
	if direction.Y() < 0 {
		center[1] = -c.HalfHeight
	}

	if direction.LenSqr() < 1e-20 {
		return center
	}
	return center.Add(direction.Normalize().Mul(c.Radius))
}

// GetContactFeature returns the side segment when direction is nearly perpendicular to the axis,
// so that a capsule lying on a face produces two contacts.
func (c *Capsule) GetContactFeature(direction mgl64.Vec3, dst []mgl64.Vec3) []mgl64.Vec3 {
	if direction.LenSqr() < 1e-20 {
		return append(dst, c.Support(direction))
	}
	dir := direction.Normalize()

	if math.Abs(dir.Y()) < capsuleEdgeThreshold && c.HalfHeight > 0 {
		side := mgl64.Vec3{dir.X(), 0, dir.Z()}
		if side.LenSqr() > 1e-20 {
			side = side.Normalize().Mul(c.Radius)
			return append(dst,
				mgl64.Vec3{0, -c.HalfHeight, 0}.Add(side),
				mgl64.Vec3{0, c.HalfHeight, 0}.Add(side),
			)
		}
	}

	return append(dst, c.Support(dir))
}
