package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// ConvexMesh is a convex polyhedron given by its vertices and counter-clockwise faces
type ConvexMesh struct {
	Vertices []mgl64.Vec3
	Faces    [][]int
	Normals  []mgl64.Vec3
}

// NewConvexMesh builds a convex polyhedron and computes its face normals.
// Every face must index at least 3 vertices and be wound counter-clockwise seen from outside.
func NewConvexMesh(vertices []mgl64.Vec3, faces [][]int) (*ConvexMesh, error) {
	if len(vertices) < 4 || len(faces) < 4 {
		return nil, errors.Wrapf(ErrInvalidShape, "convex mesh with %d vertices and %d faces", len(vertices), len(faces))
	}

	mesh := &ConvexMesh{
		Vertices: vertices,
		Faces:    faces,
		Normals:  make([]mgl64.Vec3, len(faces)),
	}

	for i, face := range faces {
		if len(face) < 3 {
			return nil, errors.Wrapf(ErrInvalidShape, "face %d has %d vertices", i, len(face))
		}
		for _, index := range face {
			if index < 0 || index >= len(vertices) {
				return nil, errors.Wrapf(ErrInvalidShape, "face %d references vertex %d", i, index)
			}
		}

		// Newell's method
		var normal mgl64.Vec3
		for j, index := range face {
			current := vertices[index]
			next := vertices[face[(j+1)%len(face)]]
			normal[0] += (current.Y() - next.Y()) * (current.Z() + next.Z())
			normal[1] += (current.Z() - next.Z()) * (current.X() + next.X())
			normal[2] += (current.X() - next.X()) * (current.Y() + next.Y())
		}
		if normal.LenSqr() < 1e-20 {
			return nil, errors.Wrapf(ErrInvalidShape, "face %d is degenerate", i)
		}
		mesh.Normals[i] = normal.Normalize()
	}

	return mesh, nil
}

// NewConvexMeshBox builds the convex mesh of a box, mostly useful for tests and tooling
func NewConvexMeshBox(halfExtents mgl64.Vec3) *ConvexMesh {
	hx, hy, hz := halfExtents.X(), halfExtents.Y(), halfExtents.Z()
	vertices := []mgl64.Vec3{
		{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, hy, -hz}, {-hx, hy, -hz},
		{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz},
	}
	faces := [][]int{
		{0, 3, 2, 1}, // -Z
		{4, 5, 6, 7}, // +Z
		{0, 1, 5, 4}, // -Y
		{3, 7, 6, 2}, // +Y
		{0, 4, 7, 3}, // -X
		{1, 2, 6, 5}, // +X
	}

	mesh, err := NewConvexMesh(vertices, faces)
	if err != nil {
		panic(err)
	}
	return mesh
}

func (m *ConvexMesh) Type() ShapeType { return ShapeTypeConvexMesh }
func (m *ConvexMesh) IsConvex() bool  { return true }

func (m *ConvexMesh) ComputeAABB(transform Transform) AABB {
	first := transform.Apply(m.Vertices[0])
	aabb := AABB{Min: first, Max: first}
	for _, v := range m.Vertices[1:] {
		w := transform.Apply(v)
		aabb = aabb.Merge(AABB{Min: w, Max: w})
	}
	return aabb
}

// volumeIntegrals splits the faces in tetrahedra with the local origin and returns the
// signed volume, the centroid and the second moment of volume about the centroid
func (m *ConvexMesh) volumeIntegrals() (float64, mgl64.Vec3, mgl64.Mat3) {
	// integral of x*xT over the unit tetrahedron (0, e1, e2, e3)
	canonical := mgl64.Mat3{2, 1, 1, 1, 2, 1, 1, 1, 2}.Mul(1.0 / 120.0)

	volume := 0.0
	var moment mgl64.Vec3
	var covariance mgl64.Mat3
	for _, face := range m.Faces {
		a := m.Vertices[face[0]]
		for j := 1; j+1 < len(face); j++ {
			b := m.Vertices[face[j]]
			c := m.Vertices[face[j+1]]

			det := a.Dot(b.Cross(c))
			volume += det / 6.0
			moment = moment.Add(a.Add(b).Add(c).Mul(det / 24.0))

			basis := mgl64.Mat3FromCols(a, b, c)
			covariance = covariance.Add(basis.Mul3(canonical).Mul3(basis.Transpose()).Mul(det))
		}
	}

	if math.Abs(volume) < 1e-12 {
		return 0, mgl64.Vec3{}, mgl64.Mat3{}
	}
	centroid := moment.Mul(1 / volume)
	covariance = covariance.Sub(centroid.OuterProd3(centroid).Mul(volume))

	return volume, centroid, covariance
}

// ComputeMass sums the signed volumes of the tetrahedra formed with the local origin
func (m *ConvexMesh) ComputeMass(density float64) float64 {
	volume, _, _ := m.volumeIntegrals()
	return density * math.Abs(volume)
}

// LocalCenterOfMass returns the centroid of the volume, the local origin may lie anywhere
func (m *ConvexMesh) LocalCenterOfMass() mgl64.Vec3 {
	_, centroid, _ := m.volumeIntegrals()
	return centroid
}

// ComputeInertia returns the tensor about the centroid, for a uniform density
func (m *ConvexMesh) ComputeInertia(mass float64) mgl64.Mat3 {
	volume, _, covariance := m.volumeIntegrals()
	if volume == 0 {
		return mgl64.Mat3{}
	}

	inertia := mgl64.Ident3().Mul(covariance.Trace()).Sub(covariance)
	return inertia.Mul(mass / volume)
}

func (m *ConvexMesh) Support(direction mgl64.Vec3) mgl64.Vec3 {
	best := m.Vertices[0]
	bestDot := best.Dot(direction)
	for _, v := range m.Vertices[1:] {
		if d := v.Dot(direction); d > bestDot {
			best, bestDot = v, d
		}
	}
	return best
}

func (m *ConvexMesh) GetContactFeature(direction mgl64.Vec3, dst []mgl64.Vec3) []mgl64.Vec3 {
	bestFace := 0
	bestDot := -math.MaxFloat64
	for i, n := range m.Normals {
		if d := n.Dot(direction); d > bestDot {
			bestFace, bestDot = i, d
		}
	}

	for _, index := range m.Faces[bestFace] {
		dst = append(dst, m.Vertices[index])
	}
	return dst
}

// Triangle is a double sided triangle, used for the faces of triangle meshes
type Triangle struct {
	Vertices [3]mgl64.Vec3
}

func (t *Triangle) Type() ShapeType { return ShapeTypeTriangle }
func (t *Triangle) IsConvex() bool  { return true }

// Normal returns the unnormalized normal following the vertex winding
func (t *Triangle) Normal() mgl64.Vec3 {
	return t.Vertices[1].Sub(t.Vertices[0]).Cross(t.Vertices[2].Sub(t.Vertices[0]))
}

func (t *Triangle) ComputeAABB(transform Transform) AABB {
	first := transform.Apply(t.Vertices[0])
	aabb := AABB{Min: first, Max: first}
	for _, v := range t.Vertices[1:] {
		w := transform.Apply(v)
		aabb = aabb.Merge(AABB{Min: w, Max: w})
	}
	return aabb
}

func (t *Triangle) ComputeMass(density float64) float64 {
	return 0
}

func (t *Triangle) ComputeInertia(mass float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}

func (t *Triangle) Support(direction mgl64.Vec3) mgl64.Vec3 {
	best := t.Vertices[0]
	bestDot := best.Dot(direction)
	for _, v := range t.Vertices[1:] {
		if d := v.Dot(direction); d > bestDot {
			best, bestDot = v, d
		}
	}
	return best
}

// GetContactFeature returns the face seen from the side of direction
func (t *Triangle) GetContactFeature(direction mgl64.Vec3, dst []mgl64.Vec3) []mgl64.Vec3 {
	if t.Normal().Dot(direction) >= 0 {
		return append(dst, t.Vertices[0], t.Vertices[1], t.Vertices[2])
	}
	return append(dst, t.Vertices[0], t.Vertices[2], t.Vertices[1])
}
