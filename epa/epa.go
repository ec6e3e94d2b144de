// Package epa implements the Expanding Polytope Algorithm for computing penetration depth.
//
// EPA is run after GJK detects a collision to determine:
//   - Penetration depth (how far shapes overlap)
//   - Contact normal (direction to separate shapes)
//
// The algorithm expands a polytope (starting from GJK's final simplex) toward the origin
// in the Minkowski difference space, finding the closest face which gives us the
// Minimum Translation Vector (MTV) to separate the shapes. The contact points are then
// obtained by clipping the features of both shapes, see GenerateManifold.
//
// References:
//   - Van den Bergen: "Proximity Queries and Penetration Depth Computation on 3D Game Objects" (2001)
package epa

import (
	"math"

	"github.com/akmonengine/impulse/gjk"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

const (
	// EPAMaxIterations limits polytope expansion. Curved shapes converge slower than
	// polyhedra, the limit is reached only in degenerate configurations.
	EPAMaxIterations = 64

	// EPAConvergenceTolerance defines when EPA has converged: the new support point
	// improves the closest face distance by less than this threshold.
	EPAConvergenceTolerance = 0.0001

	// NormalSnapThreshold is used to clamp nearly-zero normal components to exactly zero.
	NormalSnapThreshold = 1e-8

	polytopeInitialCapacity = 16

	// flatVolumeEpsilon is the triple product under which a tetrahedron is flat
	flatVolumeEpsilon = 1e-10
)

var (
	ErrDegenerateSimplex = errors.New("epa: degenerate simplex")
	ErrNoConvergence     = errors.New("epa: failed to converge")
)

// searchAxes complete a GJK simplex that ended before reaching a tetrahedron
var searchAxes = [6]mgl64.Vec3{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// EPA computes the penetration normal and depth of two overlapping objects.
//
// The simplex is the final simplex of a successful GJK query. The returned normal is
// unit length and points from a toward b, depth is positive.
func EPA(a, b gjk.Object, simplex *gjk.Simplex) (mgl64.Vec3, float64, error) {
	// GJK may stop on a flat tetrahedron when the origin lies on the simplex plane
	if simplex.Count == 4 {
		keepIndependentPoints(simplex)
	}
	if simplex.Count < 4 && !completeSimplex(a, b, simplex) {
		return mgl64.Vec3{}, 0, ErrDegenerateSimplex
	}

	builder := polytopeBuilderPool.Get().(*PolytopeBuilder)
	defer polytopeBuilderPool.Put(builder)
	builder.Reset()

	if err := builder.BuildInitialFaces(simplex); err != nil {
		return mgl64.Vec3{}, 0, err
	}

	for i := 0; i < EPAMaxIterations; i++ {
		closestFaceIndex := builder.FindClosestFaceIndex()
		if closestFaceIndex < 0 {
			break
		}
		closestFace := builder.faces[closestFaceIndex]

		support := gjk.MinkowskiSupport(a, b, closestFace.Normal)
		distance := support.Dot(closestFace.Normal)

		if distance-closestFace.Distance < EPAConvergenceTolerance {
			return closestFace.Normal, closestFace.Distance, nil
		}

		if !builder.AddPointAndRebuildFaces(support, closestFaceIndex) {
			// the polytope cannot grow anymore, the closest face is the best estimate
			return closestFace.Normal, closestFace.Distance, nil
		}
	}

	return mgl64.Vec3{}, 0, errors.Wrapf(ErrNoConvergence, "after %d iterations", EPAMaxIterations)
}

// keepIndependentPoints removes the points of the simplex that do not increase its
// dimension
func keepIndependentPoints(simplex *gjk.Simplex) {
	points, count := simplex.Points, simplex.Count
	simplex.Count = 0
	for _, point := range points[:count] {
		if increasesDimension(simplex, point) {
			simplex.Points[simplex.Count] = point
			simplex.Count++
		}
	}
}

// completeSimplex grows a GJK simplex into a tetrahedron. A triangle is first extended
// along its normal, then support points are taken along the world axes. It returns
// false when the Minkowski difference is flat.
func completeSimplex(a, b gjk.Object, simplex *gjk.Simplex) bool {
	if simplex.Count == 3 {
		p := simplex.Points
		normal := p[1].Sub(p[0]).Cross(p[2].Sub(p[0]))
		for _, direction := range [2]mgl64.Vec3{normal, normal.Mul(-1)} {
			point := gjk.MinkowskiSupport(a, b, direction)
			if increasesDimension(simplex, point) {
				simplex.Points[3] = point
				simplex.Count = 4
				return true
			}
		}
	}

	for _, axis := range searchAxes {
		if simplex.Count == 4 {
			break
		}
		point := gjk.MinkowskiSupport(a, b, axis)
		if increasesDimension(simplex, point) {
			simplex.Points[simplex.Count] = point
			simplex.Count++
		}
	}

	return simplex.Count == 4
}

func increasesDimension(simplex *gjk.Simplex, point mgl64.Vec3) bool {
	const epsilon = 1e-10
	p := simplex.Points

	switch simplex.Count {
	case 0:
		return true
	case 1:
		return point.Sub(p[0]).LenSqr() > epsilon
	case 2:
		return p[1].Sub(p[0]).Cross(point.Sub(p[0])).LenSqr() > epsilon
	case 3:
		return math.Abs(tripleProduct(p[0], p[1], p[2], point)) > flatVolumeEpsilon
	}
	return false
}

// snapNormalToAxis clamps nearly-zero components of a normal vector to exactly zero,
// axis-aligned contacts (box on ground) then keep exact tangent directions.
func snapNormalToAxis(normal mgl64.Vec3) mgl64.Vec3 {
	for i := 0; i < 3; i++ {
		if math.Abs(normal[i]) < NormalSnapThreshold {
			normal[i] = 0
		}
	}

	length := normal.Len()
	if length < 1e-8 {
		return mgl64.Vec3{0, 1, 0}
	}
	return normal.Mul(1.0 / length)
}
