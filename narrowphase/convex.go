package narrowphase

import (
	"log/slog"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/epa"
	"github.com/akmonengine/impulse/gjk"
)

// convexAlgorithm runs GJK, then EPA and face clipping on colliding requests
type convexAlgorithm struct {
	logger *slog.Logger
	points []epa.ContactPoint
}

func (c *convexAlgorithm) testCollision(batch *Batch, start, count int) bool {
	colliding := false

	simplex := gjk.SimplexPool.Get().(*gjk.Simplex)
	defer gjk.SimplexPool.Put(simplex)

	for i := start; i < start+count; i++ {
		r := &batch.Requests[i]
		r.PointCount = 0
		r.IsColliding = false

		a := gjk.Object{Shape: r.Shape1.(actor.ConvexShape), Transform: r.Transform1}
		b := gjk.Object{Shape: r.Shape2.(actor.ConvexShape), Transform: r.Transform2}

		simplex.Reset()
		hit, axis := gjk.GJK(a, b, r.SeparatingAxis, simplex)
		if !hit {
			r.SeparatingAxis = axis
			continue
		}

		if !r.ContactsWanted {
			r.IsColliding = true
			colliding = true
			continue
		}

		normal, depth, err := epa.EPA(a, b, simplex)
		if err != nil {
			c.logger.Debug("penetration depth failed",
				slog.String("shape1", r.Shape1.Type().String()),
				slog.String("shape2", r.Shape2.Type().String()),
				slog.Any("error", err))
			continue
		}

		r.IsColliding = true
		r.SeparatingAxis = normal
		colliding = true

		c.points = epa.GenerateManifold(a, b, normal, depth, c.points[:0])
		for _, point := range c.points {
			r.addPoint(normal, point.PointA, point.PointB, point.Depth)
		}
	}

	return colliding
}

// SphereVsConvexPolyhedron tests a sphere against a box, a convex mesh or a triangle
type SphereVsConvexPolyhedron struct {
	convexAlgorithm
}

func (s *SphereVsConvexPolyhedron) TestCollision(batch *Batch, start, count int) bool {
	return s.testCollision(batch, start, count)
}

// CapsuleVsConvexPolyhedron tests a capsule against a box, a convex mesh or a triangle
type CapsuleVsConvexPolyhedron struct {
	convexAlgorithm
}

func (c *CapsuleVsConvexPolyhedron) TestCollision(batch *Batch, start, count int) bool {
	return c.testCollision(batch, start, count)
}

// ConvexPolyhedronVsConvexPolyhedron tests two boxes, convex meshes or triangles
type ConvexPolyhedronVsConvexPolyhedron struct {
	convexAlgorithm
}

func (c *ConvexPolyhedronVsConvexPolyhedron) TestCollision(batch *Batch, start, count int) bool {
	return c.testCollision(batch, start, count)
}
