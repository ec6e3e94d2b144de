package epa

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxManifoldPoints is the number of points kept per contact manifold
	MaxManifoldPoints = 4

	clipTolerance = 1e-6
)

// ContactPoint is a pair of world points, one on each shape. PointA lies inside B and
// PointB inside A, so that (PointA - PointB)·normal = Depth.
type ContactPoint struct {
	PointA mgl64.Vec3
	PointB mgl64.Vec3
	Depth  float64
}

// manifoldBuffers holds the scratch polygons of a single GenerateManifold call
type manifoldBuffers struct {
	featureA []mgl64.Vec3
	featureB []mgl64.Vec3
	clipIn   []mgl64.Vec3
	clipOut  []mgl64.Vec3
}

// GenerateManifold creates contact points for a collision using Sutherland-Hodgman clipping.
//
// Algorithm:
//  1. Get the contact feature (point, edge or face) of each shape along the normal
//  2. Transform features to world space
//  3. Pick the face most aligned with the normal as reference, the other is incident
//  4. Clip the incident feature against the side planes of the reference face
//  5. Keep the points behind the reference plane, with their own depth
//  6. Reduce to 4 points
//
// The normal points from a toward b and depth is the EPA penetration. Points are
// appended to dst.
func GenerateManifold(a, b gjk.Object, normal mgl64.Vec3, depth float64, dst []ContactPoint) []ContactPoint {
	var buffers manifoldBuffers
	var storage [4][8]mgl64.Vec3
	buffers.featureA = storage[0][:0]
	buffers.featureB = storage[1][:0]
	buffers.clipIn = storage[2][:0]
	buffers.clipOut = storage[3][:0]

	buffers.featureA = worldFeature(a, normal, buffers.featureA)
	buffers.featureB = worldFeature(b, normal.Mul(-1), buffers.featureB)

	start := len(dst)
	featureA, featureB := buffers.featureA, buffers.featureB

	switch {
	case len(featureA) == 1:
		pointA := featureA[0]
		dst = append(dst, ContactPoint{PointA: pointA, PointB: pointA.Sub(normal.Mul(depth)), Depth: depth})

	case len(featureB) == 1:
		pointB := featureB[0]
		dst = append(dst, ContactPoint{PointA: pointB.Add(normal.Mul(depth)), PointB: pointB, Depth: depth})

	case len(featureA) >= 3 || len(featureB) >= 3:
		referenceIsA := len(featureA) >= 3
		if len(featureA) >= 3 && len(featureB) >= 3 {
			referenceIsA = faceNormal(featureA).Dot(normal) >= faceNormal(featureB).Dot(normal.Mul(-1))
		}

		if referenceIsA {
			dst = clipFeatures(featureA, featureB, normal, true, &buffers, dst)
		} else {
			dst = clipFeatures(featureB, featureA, normal.Mul(-1), false, &buffers, dst)
		}

	default:
		// two edges
		pointA, pointB := actor.ClosestPointsOnSegments(featureA[0], featureA[1], featureB[0], featureB[1])
		dst = append(dst, pointPair(pointA, pointB, normal, depth))
	}

	// Fallback if clipping removed every point
	if len(dst) == start {
		pointA := a.Support(normal)
		dst = append(dst, ContactPoint{PointA: pointA, PointB: pointA.Sub(normal.Mul(depth)), Depth: depth})
	}

	if len(dst)-start > MaxManifoldPoints {
		dst = append(dst[:start], ReduceTo4Points(dst[start:], normal)...)
	}

	return dst
}

// worldFeature returns the feature of o most aligned with a world direction, in world space
func worldFeature(o gjk.Object, direction mgl64.Vec3, dst []mgl64.Vec3) []mgl64.Vec3 {
	dst = o.Shape.GetContactFeature(o.Transform.RotateToLocal(direction), dst)
	for i := range dst {
		dst[i] = o.Transform.Apply(dst[i])
	}
	return dst
}

// pointPair builds a contact from the closest points of two features. Depth is measured
// along the normal, the points are kept as found.
func pointPair(pointA, pointB, normal mgl64.Vec3, depth float64) ContactPoint {
	if d := pointA.Sub(pointB).Dot(normal); d > 0 {
		depth = d
	}
	return ContactPoint{PointA: pointA, PointB: pointB, Depth: depth}
}

// faceNormal returns the outward normal of a polygon wound counter-clockwise from outside
func faceNormal(face []mgl64.Vec3) mgl64.Vec3 {
	var normal mgl64.Vec3
	// Newell's method, robust to collinear first vertices
	for i := range face {
		current := face[i]
		next := face[(i+1)%len(face)]
		normal[0] += (current.Y() - next.Y()) * (current.Z() + next.Z())
		normal[1] += (current.Z() - next.Z()) * (current.X() + next.X())
		normal[2] += (current.X() - next.X()) * (current.Y() + next.Y())
	}

	if normal.LenSqr() < 1e-20 {
		return normal
	}
	return normal.Normalize()
}

// clipFeatures clips the incident feature against the reference face. referenceNormal
// points out of the reference shape toward the incident one.
func clipFeatures(reference, incident []mgl64.Vec3, referenceNormal mgl64.Vec3, referenceIsA bool, buffers *manifoldBuffers, dst []ContactPoint) []ContactPoint {
	refNormal := faceNormal(reference)
	if refNormal.Dot(referenceNormal) < 0 {
		refNormal = refNormal.Mul(-1)
	}
	if refNormal.LenSqr() == 0 {
		refNormal = referenceNormal
	}

	clipped := clipIncidentAgainstReference(incident, reference, refNormal, buffers)

	refPoint := reference[0]
	for _, point := range clipped {
		separation := point.Sub(refPoint).Dot(refNormal)
		if separation > 0 {
			continue
		}

		projected := point.Sub(refNormal.Mul(separation))
		if referenceIsA {
			dst = append(dst, ContactPoint{PointA: projected, PointB: point, Depth: -separation})
		} else {
			dst = append(dst, ContactPoint{PointA: point, PointB: projected, Depth: -separation})
		}
	}

	return dst
}

// clipIncidentAgainstReference clips the incident polygon against each side plane of the
// reference face. A segment is clipped parametrically, a single point is tested.
func clipIncidentAgainstReference(incident, reference []mgl64.Vec3, refNormal mgl64.Vec3, buffers *manifoldBuffers) []mgl64.Vec3 {
	output := append(buffers.clipIn[:0], incident...)
	center := computeCenter(reference)

	for i := range reference {
		if len(output) == 0 {
			break
		}

		v1 := reference[i]
		v2 := reference[(i+1)%len(reference)]
		edge := v2.Sub(v1)
		if edge.LenSqr() < 1e-20 {
			continue
		}

		// side plane normal, pointing inside the reference face
		clipNormal := refNormal.Cross(edge).Normalize()
		if center.Sub(v1).Dot(clipNormal) < 0 {
			clipNormal = clipNormal.Mul(-1)
		}

		switch len(output) {
		case 1:
			if output[0].Sub(v1).Dot(clipNormal) < -clipTolerance {
				output = output[:0]
			}
		case 2:
			output = clipSegmentAgainstPlane(output, v1, clipNormal)
		default:
			buffers.clipOut = clipPolygonAgainstPlane(output, v1, clipNormal, buffers.clipOut[:0])
			buffers.clipIn, buffers.clipOut = buffers.clipOut, output
			output = buffers.clipIn
		}
	}

	return output
}

// clipSegmentAgainstPlane keeps the part of the segment in front of the plane
func clipSegmentAgainstPlane(segment []mgl64.Vec3, planePoint, planeNormal mgl64.Vec3) []mgl64.Vec3 {
	d0 := segment[0].Sub(planePoint).Dot(planeNormal)
	d1 := segment[1].Sub(planePoint).Dot(planeNormal)

	switch {
	case d0 < -clipTolerance && d1 < -clipTolerance:
		return segment[:0]
	case d0 < -clipTolerance:
		segment[0] = lineIntersectPlane(segment[0], segment[1], planePoint, planeNormal)
	case d1 < -clipTolerance:
		segment[1] = lineIntersectPlane(segment[0], segment[1], planePoint, planeNormal)
	}
	return segment
}

// clipPolygonAgainstPlane implements Sutherland-Hodgman for a single plane, the vertices
// kept are appended to output.
func clipPolygonAgainstPlane(polygon []mgl64.Vec3, planePoint, planeNormal mgl64.Vec3, output []mgl64.Vec3) []mgl64.Vec3 {
	for i := range polygon {
		current := polygon[i]
		next := polygon[(i+1)%len(polygon)]

		currentDist := current.Sub(planePoint).Dot(planeNormal)
		nextDist := next.Sub(planePoint).Dot(planeNormal)

		if currentDist >= -clipTolerance {
			output = append(output, current)
			if nextDist < -clipTolerance {
				output = append(output, lineIntersectPlane(current, next, planePoint, planeNormal))
			}
		} else if nextDist >= -clipTolerance {
			output = append(output, lineIntersectPlane(current, next, planePoint, planeNormal))
		}
	}

	return output
}

// lineIntersectPlane calculates the intersection between a line segment and a plane
func lineIntersectPlane(p1, p2, planePoint, planeNormal mgl64.Vec3) mgl64.Vec3 {
	dir := p2.Sub(p1)
	dist := p1.Sub(planePoint).Dot(planeNormal)
	denom := dir.Dot(planeNormal)

	if math.Abs(denom) < 1e-10 {
		return p1
	}

	t := mgl64.Clamp(-dist/denom, 0, 1)
	return p1.Add(dir.Mul(t))
}

func computeCenter(points []mgl64.Vec3) mgl64.Vec3 {
	if len(points) == 0 {
		return mgl64.Vec3{}
	}

	var sum mgl64.Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1.0 / float64(len(points)))
}

// ReduceTo4Points keeps the extreme points along the two tangent directions of the
// normal. Ties keep the first point found, so the result is stable between frames.
func ReduceTo4Points(points []ContactPoint, normal mgl64.Vec3) []ContactPoint {
	tangent1, tangent2 := actor.GetTangentBasis(normal)

	var extremes [4]int
	values := [4]float64{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}

	for i, p := range points {
		x := p.PointB.Dot(tangent1)
		y := p.PointB.Dot(tangent2)

		if x < values[0] {
			values[0], extremes[0] = x, i
		}
		if x > values[1] {
			values[1], extremes[1] = x, i
		}
		if y < values[2] {
			values[2], extremes[2] = y, i
		}
		if y > values[3] {
			values[3], extremes[3] = y, i
		}
	}

	result := make([]ContactPoint, 0, MaxManifoldPoints)
	for i, idx := range extremes {
		duplicate := false
		for _, previous := range extremes[:i] {
			duplicate = duplicate || previous == idx
		}
		if !duplicate {
			result = append(result, points[idx])
		}
	}

	return result
}
