package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// ErrInvalidShape is returned when a shape has degenerate dimensions or topology
var ErrInvalidShape = errors.New("invalid shape")

// ShapeType represents the type of collision shape.
// The order matters: a pair always stores the collider with the lowest type first.
type ShapeType int

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeCapsule
	ShapeTypeBox
	ShapeTypeConvexMesh
	ShapeTypeTriangle
	ShapeTypePlane
	ShapeTypeTriangleMesh
)

func (t ShapeType) String() string {
	switch t {
	case ShapeTypeSphere:
		return "sphere"
	case ShapeTypeCapsule:
		return "capsule"
	case ShapeTypeBox:
		return "box"
	case ShapeTypeConvexMesh:
		return "convex-mesh"
	case ShapeTypeTriangle:
		return "triangle"
	case ShapeTypePlane:
		return "plane"
	case ShapeTypeTriangleMesh:
		return "triangle-mesh"
	}
	return "unknown"
}

// IsPolyhedron reports whether the shape is handled by the polyhedron algorithms (GJK/EPA + clipping)
func (t ShapeType) IsPolyhedron() bool {
	return t == ShapeTypeBox || t == ShapeTypeConvexMesh || t == ShapeTypeTriangle
}

// ShapeInterface is the interface that all collision shapes must implement.
// Shapes are expressed in their collider's local space.
type ShapeInterface interface {
	Type() ShapeType
	IsConvex() bool
	// ComputeAABB calculates the axis-aligned bounding box for the shape
	// at the given transform
	ComputeAABB(transform Transform) AABB
	// ComputeMass calculates the mass for the shape given a density
	ComputeMass(density float64) float64
	ComputeInertia(mass float64) mgl64.Mat3
	// Raycast tests a local space ray against the shape
	Raycast(ray Ray) (RaycastHit, bool)
}

// ConvexShape is a shape usable by GJK and EPA
type ConvexShape interface {
	ShapeInterface
	// Support returns the farthest local point along direction
	Support(direction mgl64.Vec3) mgl64.Vec3
	// GetContactFeature appends to dst the local vertices of the feature (face, edge or point)
	// most aligned with direction. Faces are wound counter-clockwise seen from outside.
	GetContactFeature(direction mgl64.Vec3, dst []mgl64.Vec3) []mgl64.Vec3
}

// ValidateShape checks the dimensions of a shape
func ValidateShape(shape ShapeInterface) error {
	switch s := shape.(type) {
	case nil:
		return errors.Wrap(ErrInvalidShape, "nil shape")
	case *Sphere:
		if s.Radius <= 0 {
			return errors.Wrapf(ErrInvalidShape, "sphere radius %f", s.Radius)
		}
	case *Capsule:
		if s.Radius <= 0 || s.HalfHeight < 0 {
			return errors.Wrapf(ErrInvalidShape, "capsule radius %f half height %f", s.Radius, s.HalfHeight)
		}
	case *Box:
		if s.HalfExtents.X() <= 0 || s.HalfExtents.Y() <= 0 || s.HalfExtents.Z() <= 0 {
			return errors.Wrapf(ErrInvalidShape, "box half extents %v", s.HalfExtents)
		}
	case *Plane:
		if math.Abs(s.Normal.Len()-1.0) > 1e-6 {
			return errors.Wrapf(ErrInvalidShape, "plane normal %v is not normalized", s.Normal)
		}
	case *ConvexMesh:
		if len(s.Vertices) < 4 || len(s.Faces) < 4 {
			return errors.Wrap(ErrInvalidShape, "convex mesh needs at least 4 vertices and 4 faces")
		}
	case *Triangle:
		if s.Normal().LenSqr() == 0 {
			return errors.Wrap(ErrInvalidShape, "degenerate triangle")
		}
	case *TriangleMesh:
		if len(s.Indices) == 0 {
			return errors.Wrap(ErrInvalidShape, "empty triangle mesh")
		}
	}

	return nil
}

// transformedAABB bounds a local AABB after transformation
func transformedAABB(local AABB, transform Transform) AABB {
	transform = transform.normalized()
	center := transform.Apply(local.Center())
	extents := local.Extents()

	// |R| * extents
	r := transform.Rotation.Mat4().Mat3()
	var world mgl64.Vec3
	for i := 0; i < 3; i++ {
		world[i] = math.Abs(r.At(i, 0))*extents[0] + math.Abs(r.At(i, 1))*extents[1] + math.Abs(r.At(i, 2))*extents[2]
	}

	return AABB{Min: center.Sub(world), Max: center.Add(world)}
}

// Box represents an oriented box collision shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	HalfExtents mgl64.Vec3
}

func (b *Box) Type() ShapeType { return ShapeTypeBox }
func (b *Box) IsConvex() bool  { return true }

func (b *Box) ComputeAABB(transform Transform) AABB {
	return transformedAABB(AABB{Min: b.HalfExtents.Mul(-1), Max: b.HalfExtents}, transform)
}

// ComputeMass calculates mass data for the box
func (b *Box) ComputeMass(density float64) float64 {
	// Volume = 8 * hx * hy * hz (full dimensions are 2*halfExtents)
	volume := 8.0 * b.HalfExtents.X() * b.HalfExtents.Y() * b.HalfExtents.Z()

	return density * volume
}

func (b *Box) ComputeInertia(mass float64) mgl64.Mat3 {
	x := b.HalfExtents.X() * 2
	y := b.HalfExtents.Y() * 2
	z := b.HalfExtents.Z() * 2

	// I = (m/12) * (d1² + d2²)
	factor := mass / 12.0
	return mgl64.Diag3(mgl64.Vec3{
		factor * (y*y + z*z),
		factor * (x*x + z*z),
		factor * (x*x + y*y),
	})
}

func (b *Box) Support(direction mgl64.Vec3) mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	if direction.X() < 0 {
		hx = -hx
	}
	if direction.Y() < 0 {
		hy = -hy
	}
	if direction.Z() < 0 {
		hz = -hz
	}

	return mgl64.Vec3{hx, hy, hz}
}

func (b *Box) GetContactFeature(direction mgl64.Vec3, dst []mgl64.Vec3) []mgl64.Vec3 {
	hx := b.HalfExtents.X()
	hy := b.HalfExtents.Y()
	hz := b.HalfExtents.Z()

	// the face whose normal points the most along direction
	axis := 0
	best := math.Abs(direction.X())
	if a := math.Abs(direction.Y()); a > best {
		axis, best = 1, a
	}
	if a := math.Abs(direction.Z()); a > best {
		axis = 2
	}
	positive := direction[axis] >= 0

	switch {
	case axis == 0 && positive:
		return append(dst, mgl64.Vec3{hx, -hy, -hz}, mgl64.Vec3{hx, hy, -hz}, mgl64.Vec3{hx, hy, hz}, mgl64.Vec3{hx, -hy, hz})
	case axis == 0:
		return append(dst, mgl64.Vec3{-hx, -hy, hz}, mgl64.Vec3{-hx, hy, hz}, mgl64.Vec3{-hx, hy, -hz}, mgl64.Vec3{-hx, -hy, -hz})
	case axis == 1 && positive:
		return append(dst, mgl64.Vec3{-hx, hy, -hz}, mgl64.Vec3{-hx, hy, hz}, mgl64.Vec3{hx, hy, hz}, mgl64.Vec3{hx, hy, -hz})
	case axis == 1:
		return append(dst, mgl64.Vec3{-hx, -hy, hz}, mgl64.Vec3{-hx, -hy, -hz}, mgl64.Vec3{hx, -hy, -hz}, mgl64.Vec3{hx, -hy, hz})
	case positive:
		return append(dst, mgl64.Vec3{-hx, -hy, hz}, mgl64.Vec3{hx, -hy, hz}, mgl64.Vec3{hx, hy, hz}, mgl64.Vec3{-hx, hy, hz})
	default:
		return append(dst, mgl64.Vec3{hx, -hy, -hz}, mgl64.Vec3{-hx, -hy, -hz}, mgl64.Vec3{-hx, hy, -hz}, mgl64.Vec3{hx, hy, -hz})
	}
}

// Sphere represents a spherical collision shape
type Sphere struct {
	Radius float64
}

func (s *Sphere) Type() ShapeType { return ShapeTypeSphere }
func (s *Sphere) IsConvex() bool  { return true }

// ComputeAABB calculates the axis-aligned bounding box for the sphere
func (s *Sphere) ComputeAABB(transform Transform) AABB {
	// Sphere AABB is not affected by rotation, only by position
	radiusVec := mgl64.Vec3{s.Radius, s.Radius, s.Radius}

	return AABB{
		Min: transform.Position.Sub(radiusVec),
		Max: transform.Position.Add(radiusVec),
	}
}

// ComputeMass calculates mass data for the sphere
func (s *Sphere) ComputeMass(density float64) float64 {
	// Volume of sphere = (4/3) * π * r³
	volume := (4.0 / 3.0) * math.Pi * math.Pow(s.Radius, 3)

	return density * volume
}

func (s *Sphere) ComputeInertia(mass float64) mgl64.Mat3 {
	// I = (2/5) * m * r²
	i := (2.0 / 5.0) * mass * s.Radius * s.Radius

	return mgl64.Diag3(mgl64.Vec3{i, i, i})
}

func (s *Sphere) Support(direction mgl64.Vec3) mgl64.Vec3 {
	if direction.LenSqr() < 1e-20 {
		return mgl64.Vec3{s.Radius, 0, 0}
	}
	return direction.Normalize().Mul(s.Radius)
}

func (s *Sphere) GetContactFeature(direction mgl64.Vec3, dst []mgl64.Vec3) []mgl64.Vec3 {
	return append(dst, s.Support(direction))
}

// Plane represents an infinite plane collision shape
// The plane is defined by the equation: Normal · p + Distance = 0
// where Normal is the plane's normal vector (must be normalized)
// and Distance is the signed distance from the origin along the normal.
// The solid half-space lies behind the normal. Planes are static only.
type Plane struct {
	Normal   mgl64.Vec3 // Plane normal (must be normalized)
	Distance float64    // Plane constant (signed distance from origin)
}

func (p *Plane) Type() ShapeType { return ShapeTypePlane }
func (p *Plane) IsConvex() bool  { return false }

func (p *Plane) ComputeAABB(transform Transform) AABB {
	const thickness = 1.0 // detection thickness below the surface
	const infinity = 1e10

	normal := transform.RotateToWorld(p.Normal)
	// Point on the plane closest to the local origin
	point := transform.Apply(p.Normal.Mul(-p.Distance))

	min := mgl64.Vec3{-infinity, -infinity, -infinity}
	max := mgl64.Vec3{infinity, infinity, infinity}

	// Only an axis aligned plane can be bounded along its normal
	for i := 0; i < 3; i++ {
		if math.Abs(normal[i]) < 1.0-1e-9 {
			continue
		}
		if normal[i] > 0 {
			min[i] = point[i] - thickness
			max[i] = point[i]
		} else {
			min[i] = point[i]
			max[i] = point[i] + thickness
		}
	}

	return AABB{Min: min, Max: max}
}

// ComputeMass returns zero: planes never contribute to a body's mass
func (p *Plane) ComputeMass(density float64) float64 {
	return 0
}

func (p *Plane) ComputeInertia(mass float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}

// SignedDistance returns the distance of a local point above the plane
func (p *Plane) SignedDistance(point mgl64.Vec3) float64 {
	return p.Normal.Dot(point) + p.Distance
}

// GetTangentBasis builds two unit vectors orthogonal to normal and to each other
func GetTangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var tangent1 mgl64.Vec3
	if math.Abs(normal.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	} else {
		tangent1 = mgl64.Vec3{1, 0, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}
