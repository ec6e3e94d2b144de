package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// =============================================================================
// Shape Type Tests
// =============================================================================

func TestShapeType_Order(t *testing.T) {
	order := []ShapeType{
		ShapeTypeSphere, ShapeTypeCapsule, ShapeTypeBox, ShapeTypeConvexMesh,
		ShapeTypeTriangle, ShapeTypePlane, ShapeTypeTriangleMesh,
	}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Errorf("%s should come before %s", order[i-1], order[i])
		}
	}

	if !ShapeTypeBox.IsPolyhedron() || !ShapeTypeTriangle.IsPolyhedron() || ShapeTypeSphere.IsPolyhedron() {
		t.Error("IsPolyhedron() wrong classification")
	}
}

func TestValidateShape(t *testing.T) {
	tests := []struct {
		name    string
		shape   ShapeInterface
		wantErr bool
	}{
		{"sphere", &Sphere{Radius: 1}, false},
		{"zero sphere", &Sphere{Radius: 0}, true},
		{"box", &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, false},
		{"flat box", &Box{HalfExtents: mgl64.Vec3{1, 0, 1}}, true},
		{"capsule", &Capsule{HalfHeight: 1, Radius: 0.5}, false},
		{"negative capsule", &Capsule{HalfHeight: -1, Radius: 0.5}, true},
		{"plane", &Plane{Normal: mgl64.Vec3{0, 1, 0}}, false},
		{"unnormalized plane", &Plane{Normal: mgl64.Vec3{0, 2, 0}}, true},
		{"degenerate triangle", &Triangle{}, true},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateShape(tt.shape)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateShape() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidShape) {
				t.Errorf("error should wrap ErrInvalidShape, got %v", err)
			}
		})
	}
}

// =============================================================================
// Box Tests
// =============================================================================

func TestBox_ComputeAABB(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}

	aabb := box.ComputeAABB(NewTransformAt(mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent()))
	if !vec3Equal(aabb.Min, mgl64.Vec3{0, -1, -2}, 1e-9) || !vec3Equal(aabb.Max, mgl64.Vec3{2, 3, 4}, 1e-9) {
		t.Errorf("ComputeAABB() = %v", aabb)
	}

	// 90° around Z swaps the X and Y extents
	rotated := box.ComputeAABB(NewTransformAt(mgl64.Vec3{}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})))
	if !vec3Equal(rotated.Max, mgl64.Vec3{2, 1, 3}, 1e-9) {
		t.Errorf("rotated ComputeAABB() max = %v, want (2, 1, 3)", rotated.Max)
	}
}

func TestBox_MassInertia(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}

	mass := box.ComputeMass(2.0)
	if !floatEqual(mass, 16.0, 1e-9) {
		t.Errorf("ComputeMass() = %f, want 16", mass)
	}

	inertia := box.ComputeInertia(12.0)
	// (12/12) * (2² + 2²) = 8
	for i := 0; i < 3; i++ {
		if !floatEqual(inertia.At(i, i), 8.0, 1e-9) {
			t.Errorf("inertia[%d][%d] = %f, want 8", i, i, inertia.At(i, i))
		}
	}
}

func TestBox_Support(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}

	tests := []struct {
		name      string
		direction mgl64.Vec3
		want      mgl64.Vec3
	}{
		{"positive", mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 2, 3}},
		{"negative", mgl64.Vec3{-1, -1, -1}, mgl64.Vec3{-1, -2, -3}},
		{"mixed", mgl64.Vec3{1, -0.5, 0.2}, mgl64.Vec3{1, -2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := box.Support(tt.direction); !vec3Equal(got, tt.want, testTolerance) {
				t.Errorf("Support() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBox_GetContactFeature(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}

	directions := []mgl64.Vec3{
		{1, 0.1, 0}, {-1, 0, 0.2}, {0, 1, 0}, {0.1, -1, 0}, {0, 0, 1}, {0, 0.3, -1},
	}

	for _, direction := range directions {
		face := box.GetContactFeature(direction, nil)
		if len(face) != 4 {
			t.Fatalf("direction %v: got %d vertices, want 4", direction, len(face))
		}

		// counter-clockwise seen from outside: the winding normal points along direction
		normal := face[1].Sub(face[0]).Cross(face[2].Sub(face[0]))
		if normal.Dot(direction) <= 0 {
			t.Errorf("direction %v: face normal %v is wound the wrong way", direction, normal)
		}
	}
}

// =============================================================================
// Sphere / Capsule Tests
// =============================================================================

func TestSphere_SupportAndFeature(t *testing.T) {
	sphere := &Sphere{Radius: 2}

	if got := sphere.Support(mgl64.Vec3{0, 5, 0}); !vec3Equal(got, mgl64.Vec3{0, 2, 0}, testTolerance) {
		t.Errorf("Support() = %v", got)
	}
	if got := sphere.GetContactFeature(mgl64.Vec3{1, 0, 0}, nil); len(got) != 1 {
		t.Errorf("feature has %d points, want 1", len(got))
	}
	if mass := sphere.ComputeMass(1); !floatEqual(mass, 4.0/3.0*math.Pi*8, 1e-9) {
		t.Errorf("ComputeMass() = %f", mass)
	}
}

func TestCapsule_Feature(t *testing.T) {
	capsule := &Capsule{HalfHeight: 1, Radius: 0.5}

	side := capsule.GetContactFeature(mgl64.Vec3{1, 0, 0}, nil)
	if len(side) != 2 {
		t.Fatalf("side feature has %d points, want 2", len(side))
	}
	if !vec3Equal(side[0], mgl64.Vec3{0.5, -1, 0}, testTolerance) || !vec3Equal(side[1], mgl64.Vec3{0.5, 1, 0}, testTolerance) {
		t.Errorf("side feature = %v", side)
	}

	top := capsule.GetContactFeature(mgl64.Vec3{0, 1, 0}, nil)
	if len(top) != 1 || !vec3Equal(top[0], mgl64.Vec3{0, 1.5, 0}, testTolerance) {
		t.Errorf("top feature = %v", top)
	}

	aabb := capsule.ComputeAABB(NewTransform())
	if !vec3Equal(aabb.Max, mgl64.Vec3{0.5, 1.5, 0.5}, testTolerance) {
		t.Errorf("ComputeAABB() max = %v", aabb.Max)
	}
}

// =============================================================================
// Convex Mesh Tests
// =============================================================================

func TestConvexMesh_Box(t *testing.T) {
	mesh := NewConvexMeshBox(mgl64.Vec3{1, 1, 1})
	box := &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}

	if mass, want := mesh.ComputeMass(1), box.ComputeMass(1); !floatEqual(mass, want, 1e-9) {
		t.Errorf("ComputeMass() = %f, want %f", mass, want)
	}

	for i, n := range mesh.Normals {
		// every face normal must point away from the center
		center := mgl64.Vec3{}
		for _, index := range mesh.Faces[i] {
			center = center.Add(mesh.Vertices[index])
		}
		if n.Dot(center) <= 0 {
			t.Errorf("face %d normal %v points inward", i, n)
		}
	}

	direction := mgl64.Vec3{0.2, 1, -0.1}
	if got, want := mesh.Support(direction), box.Support(direction); !vec3Equal(got, want, testTolerance) {
		t.Errorf("Support() = %v, want %v", got, want)
	}
	if face := mesh.GetContactFeature(direction, nil); len(face) != 4 {
		t.Errorf("feature has %d points, want 4", len(face))
	}
}

func TestNewConvexMesh_Invalid(t *testing.T) {
	vertices := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

	tests := []struct {
		name     string
		vertices []mgl64.Vec3
		faces    [][]int
	}{
		{"too few vertices", []mgl64.Vec3{{0, 0, 0}}, nil},
		{"index out of range last", vertices, [][]int{{0, 1, 9}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}},
		{"index out of range first", vertices, [][]int{{9, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}},
		{"negative index", vertices, [][]int{{0, -1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}},
		{"face with two vertices", vertices, [][]int{{0, 1}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}},
		{"degenerate face", vertices, [][]int{{0, 1, 1}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConvexMesh(tt.vertices, tt.faces)
			if !errors.Is(err, ErrInvalidShape) {
				t.Errorf("expected ErrInvalidShape, got %v", err)
			}
		})
	}
}

func TestConvexMesh_OffCenterMassProperties(t *testing.T) {
	halfExtents := mgl64.Vec3{1, 2, 0.5}
	offset := mgl64.Vec3{3, 0, 0}
	centered := NewConvexMeshBox(halfExtents)

	vertices := make([]mgl64.Vec3, len(centered.Vertices))
	for i, v := range centered.Vertices {
		vertices[i] = v.Add(offset)
	}
	mesh, err := NewConvexMesh(vertices, centered.Faces)
	if err != nil {
		t.Fatal(err)
	}
	box := &Box{HalfExtents: halfExtents}

	mass := mesh.ComputeMass(1)
	if want := box.ComputeMass(1); !floatEqual(mass, want, 1e-9) {
		t.Errorf("ComputeMass() = %f, want %f", mass, want)
	}
	if center := mesh.LocalCenterOfMass(); !vec3Equal(center, offset, 1e-9) {
		t.Errorf("LocalCenterOfMass() = %v, want %v", center, offset)
	}

	// the tensor is about the centroid, so the offset does not change it
	inertia, want := mesh.ComputeInertia(mass), box.ComputeInertia(mass)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !floatEqual(inertia.At(i, j), want.At(i, j), 1e-9) {
				t.Errorf("inertia[%d][%d] = %f, want %f", i, j, inertia.At(i, j), want.At(i, j))
			}
		}
	}

	collider := NewCollider(mesh, NewTransformAt(mgl64.Vec3{0, 1, 0}, mgl64.QuatIdent()), Material{Density: 1})
	if _, center, _ := collider.MassContribution(); !vec3Equal(center, mgl64.Vec3{3, 1, 0}, 1e-9) {
		t.Errorf("MassContribution() center = %v, want (3, 1, 0)", center)
	}
}

func TestConvexMesh_TetrahedronMass(t *testing.T) {
	// counter-clockwise faces of the unit corner tetrahedron, seen from outside
	vertices := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	faces := [][]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}}
	mesh, err := NewConvexMesh(vertices, faces)
	if err != nil {
		t.Fatal(err)
	}

	if mass := mesh.ComputeMass(6); !floatEqual(mass, 1, 1e-9) {
		t.Errorf("ComputeMass() = %f, want 1", mass)
	}
	if center := mesh.LocalCenterOfMass(); !vec3Equal(center, mgl64.Vec3{0.25, 0.25, 0.25}, 1e-9) {
		t.Errorf("LocalCenterOfMass() = %v", center)
	}
	// variance 1/10 - 1/16 on each axis, covariance 1/20 - 1/16
	inertia := mesh.ComputeInertia(1)
	if !floatEqual(inertia.At(0, 0), 3.0/40.0, 1e-9) {
		t.Errorf("Ixx = %f, want %f", inertia.At(0, 0), 3.0/40.0)
	}
	if !floatEqual(inertia.At(0, 1), 1.0/80.0, 1e-9) {
		t.Errorf("Ixy = %f, want %f", inertia.At(0, 1), 1.0/80.0)
	}
}

func TestTriangle_Feature(t *testing.T) {
	tri := &Triangle{Vertices: [3]mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 0, -1}}}
	// winding normal is +Y
	if n := tri.Normal(); n.Y() <= 0 {
		t.Fatalf("Normal() = %v, want +Y", n)
	}

	for _, direction := range []mgl64.Vec3{{0, 1, 0}, {0, -1, 0}} {
		face := tri.GetContactFeature(direction, nil)
		normal := face[1].Sub(face[0]).Cross(face[2].Sub(face[0]))
		if normal.Dot(direction) <= 0 {
			t.Errorf("direction %v: feature wound the wrong way", direction)
		}
	}
}

func TestTriangleMesh(t *testing.T) {
	vertices := []mgl64.Vec3{{-1, 0, -1}, {1, 0, -1}, {1, 0, 1}, {-1, 0, 1}}
	mesh, err := NewTriangleMesh(vertices, [][3]int{{0, 2, 1}, {0, 3, 2}})
	if err != nil {
		t.Fatalf("NewTriangleMesh() error = %v", err)
	}

	if mesh.TriangleCount() != 2 {
		t.Errorf("TriangleCount() = %d, want 2", mesh.TriangleCount())
	}
	if mesh.IsConvex() {
		t.Error("triangle mesh should not be convex")
	}

	aabb := mesh.TriangleAABB(0)
	if !vec3Equal(aabb.Min, mgl64.Vec3{-1, 0, -1}, testTolerance) || !vec3Equal(aabb.Max, mgl64.Vec3{1, 0, 1}, testTolerance) {
		t.Errorf("TriangleAABB() = %v", aabb)
	}

	if _, err := NewTriangleMesh(vertices, [][3]int{{0, 1, 7}}); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("expected ErrInvalidShape, got %v", err)
	}
}

// =============================================================================
// Plane Tests
// =============================================================================

func TestPlane_ComputeAABB(t *testing.T) {
	plane := &Plane{Normal: mgl64.Vec3{0, 1, 0}, Distance: 0}

	aabb := plane.ComputeAABB(NewTransformAt(mgl64.Vec3{0, 2, 0}, mgl64.QuatIdent()))
	if !floatEqual(aabb.Max.Y(), 2, testTolerance) || !floatEqual(aabb.Min.Y(), 1, testTolerance) {
		t.Errorf("plane AABB y range = [%f, %f], want [1, 2]", aabb.Min.Y(), aabb.Max.Y())
	}
	if aabb.Max.X() < 1e9 || aabb.Min.Z() > -1e9 {
		t.Error("plane AABB should be unbounded on tangent axes")
	}
	if plane.ComputeMass(10) != 0 {
		t.Error("planes never contribute mass")
	}
}
