package narrowphase

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/epa"
	"github.com/go-gl/mathgl/mgl64"
)

// ConvexVsPlane tests the feature of a convex shape facing a plane against its half-space
type ConvexVsPlane struct{}

func (ConvexVsPlane) TestCollision(batch *Batch, start, count int) bool {
	colliding := false

	var featureStorage [8]mgl64.Vec3
	var pointStorage [8]epa.ContactPoint

	for i := start; i < start+count; i++ {
		r := &batch.Requests[i]
		r.PointCount = 0
		r.IsColliding = false

		convex := r.Shape1.(actor.ConvexShape)
		plane := r.Shape2.(*actor.Plane)

		planeNormal := r.Transform2.RotateToWorld(plane.Normal)
		// from the convex shape toward the plane
		normal := planeNormal.Mul(-1)
		localDirection := r.Transform1.RotateToLocal(normal)

		points := pointStorage[:0]
		feature := convex.GetContactFeature(localDirection, featureStorage[:0])
		for _, local := range feature {
			points = appendPlaneContact(points, r, plane, planeNormal, r.Transform1.Apply(local))
		}
		if len(points) == 0 {
			// the best aligned face of a convex mesh may miss the deepest vertex
			points = appendPlaneContact(points, r, plane, planeNormal, r.Transform1.Apply(convex.Support(localDirection)))
		}
		if len(points) == 0 {
			continue
		}

		r.IsColliding = true
		r.SeparatingAxis = normal
		colliding = true
		if !r.ContactsWanted {
			continue
		}

		if len(points) > MaxContactPoints {
			points = epa.ReduceTo4Points(points, normal)
		}
		for _, point := range points {
			r.addPoint(normal, point.PointA, point.PointB, point.Depth)
		}
	}

	return colliding
}

// appendPlaneContact appends the contact of a world point below the plane surface
func appendPlaneContact(points []epa.ContactPoint, r *Request, plane *actor.Plane, planeNormal, point mgl64.Vec3) []epa.ContactPoint {
	distance := plane.SignedDistance(r.Transform2.ApplyInverse(point))
	if distance >= 0 {
		return points
	}

	return append(points, epa.ContactPoint{
		PointA: point,
		PointB: point.Sub(planeNormal.Mul(distance)),
		Depth:  -distance,
	})
}
