package actor

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// TriangleMesh is a static concave shape made of independent triangles.
// It only collides with convex shapes, one triangle at a time.
type TriangleMesh struct {
	Vertices []mgl64.Vec3
	Indices  [][3]int

	bounds AABB
}

// NewTriangleMesh validates the indices and computes the local bounds
func NewTriangleMesh(vertices []mgl64.Vec3, indices [][3]int) (*TriangleMesh, error) {
	if len(vertices) < 3 || len(indices) == 0 {
		return nil, errors.Wrapf(ErrInvalidShape, "triangle mesh with %d vertices and %d triangles", len(vertices), len(indices))
	}

	for i, tri := range indices {
		for _, index := range tri {
			if index < 0 || index >= len(vertices) {
				return nil, errors.Wrapf(ErrInvalidShape, "triangle %d references vertex %d", i, index)
			}
		}
	}

	mesh := &TriangleMesh{
		Vertices: vertices,
		Indices:  indices,
		bounds:   AABB{Min: vertices[0], Max: vertices[0]},
	}
	for _, v := range vertices[1:] {
		mesh.bounds = mesh.bounds.Merge(AABB{Min: v, Max: v})
	}

	return mesh, nil
}

func (m *TriangleMesh) Type() ShapeType { return ShapeTypeTriangleMesh }
func (m *TriangleMesh) IsConvex() bool  { return false }

// TriangleCount returns the number of triangles
func (m *TriangleMesh) TriangleCount() int {
	return len(m.Indices)
}

// Triangle returns the local triangle at index
func (m *TriangleMesh) Triangle(index int) Triangle {
	tri := m.Indices[index]
	return Triangle{Vertices: [3]mgl64.Vec3{m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]}}
}

// TriangleAABB returns the local bounds of one triangle
func (m *TriangleMesh) TriangleAABB(index int) AABB {
	tri := m.Triangle(index)
	return tri.ComputeAABB(NewTransform())
}

func (m *TriangleMesh) ComputeAABB(transform Transform) AABB {
	return transformedAABB(m.bounds, transform)
}

func (m *TriangleMesh) ComputeMass(density float64) float64 {
	return 0
}

func (m *TriangleMesh) ComputeInertia(mass float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}
