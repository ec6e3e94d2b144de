package narrowphase

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// parallelThreshold is the squared sine under which two capsule axes are parallel
const parallelThreshold = 1e-6

// SphereVsSphere is the analytic test of two spheres
type SphereVsSphere struct{}

func (SphereVsSphere) TestCollision(batch *Batch, start, count int) bool {
	colliding := false

	for i := start; i < start+count; i++ {
		r := &batch.Requests[i]
		sphere1 := r.Shape1.(*actor.Sphere)
		sphere2 := r.Shape2.(*actor.Sphere)

		if collideSpheres(r, r.Transform1.Position, sphere1.Radius, r.Transform2.Position, sphere2.Radius) {
			colliding = true
		}
	}

	return colliding
}

// SphereVsCapsule tests a sphere against the closest point of the capsule segment
type SphereVsCapsule struct{}

func (SphereVsCapsule) TestCollision(batch *Batch, start, count int) bool {
	colliding := false

	for i := start; i < start+count; i++ {
		r := &batch.Requests[i]
		sphere := r.Shape1.(*actor.Sphere)
		capsule := r.Shape2.(*actor.Capsule)

		center := r.Transform1.Position
		segmentA, segmentB := capsuleSegment(capsule, r.Transform2)
		closest := actor.ClosestPointOnSegment(center, segmentA, segmentB)

		if collideSpheres(r, center, sphere.Radius, closest, capsule.Radius) {
			colliding = true
		}
	}

	return colliding
}

// CapsuleVsCapsule tests the closest points of the two segments. Parallel overlapping
// capsules report the two ends of the shared section.
type CapsuleVsCapsule struct{}

func (CapsuleVsCapsule) TestCollision(batch *Batch, start, count int) bool {
	colliding := false

	for i := start; i < start+count; i++ {
		r := &batch.Requests[i]
		capsule1 := r.Shape1.(*actor.Capsule)
		capsule2 := r.Shape2.(*actor.Capsule)

		a1, b1 := capsuleSegment(capsule1, r.Transform1)
		a2, b2 := capsuleSegment(capsule2, r.Transform2)
		radii := capsule1.Radius + capsule2.Radius

		p1, p2 := actor.ClosestPointsOnSegments(a1, b1, a2, b2)
		if p2.Sub(p1).LenSqr() >= radii*radii {
			r.IsColliding = false
			r.PointCount = 0
			continue
		}

		colliding = true
		if !r.ContactsWanted {
			r.IsColliding = true
			r.PointCount = 0
			continue
		}

		if collideParallelCapsules(r, a1, b1, capsule1.Radius, a2, b2, capsule2.Radius) {
			continue
		}
		collideSpheres(r, p1, capsule1.Radius, p2, capsule2.Radius)
	}

	return colliding
}

// collideParallelCapsules reports two contacts when the segments are parallel and
// their projections overlap. It returns false if the general case applies.
func collideParallelCapsules(r *Request, a1, b1 mgl64.Vec3, radius1 float64, a2, b2 mgl64.Vec3, radius2 float64) bool {
	axis1 := b1.Sub(a1)
	axis2 := b2.Sub(a2)
	length1 := axis1.LenSqr()
	if length1 < 1e-12 || axis2.LenSqr() < 1e-12 {
		return false
	}

	cross := axis1.Cross(axis2)
	if cross.LenSqr() > parallelThreshold*length1*axis2.LenSqr() {
		return false
	}

	// clip the second segment to the first one
	t0 := mgl64.Clamp(a2.Sub(a1).Dot(axis1)/length1, 0, 1)
	t1 := mgl64.Clamp(b2.Sub(a1).Dot(axis1)/length1, 0, 1)
	if math.Abs(t1-t0) < 1e-6 {
		return false
	}

	start := a1.Add(axis1.Mul(t0))
	end := a1.Add(axis1.Mul(t1))
	offset := actor.ClosestPointOnSegment(start, a2, b2).Sub(start)
	distance := offset.Len()
	if distance < 1e-9 {
		// coaxial capsules, the closest points case handles the ends
		return false
	}
	normal := offset.Mul(1 / distance)
	depth := radius1 + radius2 - distance

	r.IsColliding = true
	r.PointCount = 0
	for _, point := range [2]mgl64.Vec3{start, end} {
		r.addPoint(normal, point.Add(normal.Mul(radius1)), point.Add(offset).Sub(normal.Mul(radius2)), depth)
	}
	return true
}

// collideSpheres fills the request with the contact of two spheres. Capsules reuse it
// with the closest points of their segments as centers.
func collideSpheres(r *Request, center1 mgl64.Vec3, radius1 float64, center2 mgl64.Vec3, radius2 float64) bool {
	r.PointCount = 0

	offset := center2.Sub(center1)
	distanceSqr := offset.LenSqr()
	radii := radius1 + radius2
	if distanceSqr >= radii*radii {
		r.IsColliding = false
		return false
	}

	r.IsColliding = true
	if !r.ContactsWanted {
		return true
	}

	distance := math.Sqrt(distanceSqr)
	var normal mgl64.Vec3
	if distance > 1e-9 {
		normal = offset.Mul(1 / distance)
	} else {
		normal = mgl64.Vec3{0, 1, 0}
	}
	r.SeparatingAxis = normal

	point1 := center1.Add(normal.Mul(radius1))
	point2 := center2.Sub(normal.Mul(radius2))
	r.addPoint(normal, point1, point2, radii-distance)

	return true
}

func capsuleSegment(capsule *actor.Capsule, transform actor.Transform) (mgl64.Vec3, mgl64.Vec3) {
	a, b := capsule.Segment()
	return transform.Apply(a), transform.Apply(b)
}
