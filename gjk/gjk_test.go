package gjk

import (
	"math"
	"testing"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func boxObject(position mgl64.Vec3, halfExtents mgl64.Vec3) Object {
	return Object{
		Shape:     &actor.Box{HalfExtents: halfExtents},
		Transform: actor.NewTransformAt(position, mgl64.QuatIdent()),
	}
}

func sphereObject(position mgl64.Vec3, radius float64) Object {
	return Object{
		Shape:     &actor.Sphere{Radius: radius},
		Transform: actor.NewTransformAt(position, mgl64.QuatIdent()),
	}
}

// =============================================================================
// MinkowskiSupport Tests
// =============================================================================

func TestMinkowskiSupport(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Object
		direction mgl64.Vec3
		expectedX float64
	}{
		{
			name:      "separated spheres",
			a:         sphereObject(mgl64.Vec3{0, 0, 0}, 1),
			b:         sphereObject(mgl64.Vec3{3, 0, 0}, 1),
			direction: mgl64.Vec3{1, 0, 0},
			expectedX: -1,
		},
		{
			name:      "overlapping spheres",
			a:         sphereObject(mgl64.Vec3{0, 0, 0}, 1),
			b:         sphereObject(mgl64.Vec3{1.5, 0, 0}, 1),
			direction: mgl64.Vec3{1, 0, 0},
			expectedX: 0.5,
		},
		{
			name:      "boxes",
			a:         boxObject(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}),
			b:         boxObject(mgl64.Vec3{5, 0, 0}, mgl64.Vec3{2, 1, 1}),
			direction: mgl64.Vec3{-1, 0, 0},
			expectedX: -8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			support := MinkowskiSupport(tt.a, tt.b, tt.direction)
			if math.Abs(support.X()-tt.expectedX) > 1e-9 {
				t.Errorf("support.X = %v, want %v", support.X(), tt.expectedX)
			}
		})
	}
}

func TestObject_SupportRotated(t *testing.T) {
	// a 2x1x1 box rotated by 90 degrees around Y extends along Z
	o := Object{
		Shape:     &actor.Box{HalfExtents: mgl64.Vec3{2, 1, 1}},
		Transform: actor.NewTransformAt(mgl64.Vec3{0, 0, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})),
	}

	support := o.Support(mgl64.Vec3{0, 0, 1})
	if math.Abs(support.Z()-2) > 1e-9 && math.Abs(support.Z()+2) > 1e-9 {
		t.Errorf("support.Z = %v, want magnitude 2", support.Z())
	}
	if support.Z() < 0 {
		t.Errorf("support.Z = %v, want positive", support.Z())
	}
}

// =============================================================================
// GJK Tests
// =============================================================================

func TestGJK(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Object
		expected bool
	}{
		{"overlapping boxes", boxObject(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}), boxObject(mgl64.Vec3{1.5, 0, 0}, mgl64.Vec3{1, 1, 1}), true},
		{"separated boxes", boxObject(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}), boxObject(mgl64.Vec3{3, 0, 0}, mgl64.Vec3{1, 1, 1}), false},
		{"diagonal overlap", boxObject(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}), boxObject(mgl64.Vec3{1.5, 1.5, 1.5}, mgl64.Vec3{1, 1, 1}), true},
		{"diagonal gap", boxObject(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}), boxObject(mgl64.Vec3{2.5, 2.5, 0}, mgl64.Vec3{1, 1, 1}), false},
		{"overlapping spheres", sphereObject(mgl64.Vec3{0, 0, 0}, 3), sphereObject(mgl64.Vec3{7, 0, 0}, 5), true},
		{"separated spheres", sphereObject(mgl64.Vec3{0, 0, 0}, 1), sphereObject(mgl64.Vec3{0, 2.5, 0}, 1), false},
		{"sphere inside box", sphereObject(mgl64.Vec3{0, 0, 0}, 0.5), boxObject(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{2, 2, 2}), true},
		{"same position", boxObject(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 1, 1}), boxObject(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 1, 1}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			simplex := &Simplex{}
			result, _ := GJK(tt.a, tt.b, mgl64.Vec3{}, simplex)
			if result != tt.expected {
				t.Errorf("GJK() = %v, want %v", result, tt.expected)
			}
			if result && simplex.Count < 1 {
				t.Errorf("simplex is empty after a collision")
			}
		})
	}
}

func TestGJK_SeparatingAxisHint(t *testing.T) {
	a := boxObject(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})
	b := boxObject(mgl64.Vec3{4, 0, 0}, mgl64.Vec3{1, 1, 1})

	simplex := &Simplex{}
	hit, axis := GJK(a, b, mgl64.Vec3{}, simplex)
	if hit {
		t.Fatal("boxes should be separated")
	}

	// restarting from the returned axis exits immediately with the same answer
	simplex.Reset()
	hit, _ = GJK(a, b, axis, simplex)
	if hit {
		t.Error("hinted GJK should still report no collision")
	}
	if simplex.Count != 1 {
		t.Errorf("hinted GJK should stop after the first support point, simplex has %d", simplex.Count)
	}
}

func TestGJK_Pool(t *testing.T) {
	simplex := SimplexPool.Get().(*Simplex)
	defer SimplexPool.Put(simplex)
	simplex.Reset()

	if hit, _ := GJK(sphereObject(mgl64.Vec3{}, 1), sphereObject(mgl64.Vec3{1, 0, 0}, 1), mgl64.Vec3{}, simplex); !hit {
		t.Error("overlapping spheres from the pool should collide")
	}
}

// =============================================================================
// Simplex Tests
// =============================================================================

func TestLine(t *testing.T) {
	t.Run("origin behind newest point", func(t *testing.T) {
		simplex := &Simplex{}
		simplex.set(mgl64.Vec3{3, 0, 0}, mgl64.Vec3{1, 0, 0})
		direction := mgl64.Vec3{}

		if line(simplex, &direction) {
			t.Fatal("line should not contain the origin")
		}
		if simplex.Count != 1 {
			t.Errorf("simplex should reduce to one point, has %d", simplex.Count)
		}
		if direction.X() >= 0 {
			t.Errorf("direction %v should point to the origin", direction)
		}
	})

	t.Run("origin beside the segment", func(t *testing.T) {
		simplex := &Simplex{}
		simplex.set(mgl64.Vec3{-1, 1, 0}, mgl64.Vec3{1, 1, 0})
		direction := mgl64.Vec3{}

		if line(simplex, &direction) {
			t.Fatal("line should not contain the origin")
		}
		if simplex.Count != 2 {
			t.Errorf("simplex should keep the segment, has %d", simplex.Count)
		}
		if direction.Y() >= 0 {
			t.Errorf("direction %v should point down to the origin", direction)
		}
	})

	t.Run("origin on the segment", func(t *testing.T) {
		simplex := &Simplex{}
		simplex.set(mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{1, 0, 0})
		direction := mgl64.Vec3{}

		if !line(simplex, &direction) {
			t.Error("origin on the segment should be reported as contained")
		}
	})
}

func TestTriangle_WindingFacesOrigin(t *testing.T) {
	simplex := &Simplex{}
	simplex.set(mgl64.Vec3{-1, -1, 1}, mgl64.Vec3{1, -1, 1}, mgl64.Vec3{0, 1, 1})
	direction := mgl64.Vec3{}

	if triangle(simplex, &direction) {
		t.Fatal("a triangle cannot contain the origin")
	}
	if simplex.Count != 3 {
		t.Fatalf("simplex should keep the triangle, has %d", simplex.Count)
	}
	if direction.Z() >= 0 {
		t.Errorf("direction %v should point to the origin", direction)
	}

	// the stored winding produces the same direction
	a, b, c := simplex.Points[2], simplex.Points[1], simplex.Points[0]
	normal := b.Sub(a).Cross(c.Sub(a))
	if normal.Dot(direction) <= 0 {
		t.Errorf("winding normal %v does not face the origin", normal)
	}
}

func TestTetrahedron(t *testing.T) {
	tests := []struct {
		name     string
		points   []mgl64.Vec3
		expected bool
	}{
		{
			name:     "origin inside",
			points:   []mgl64.Vec3{{1, -1, -1}, {-1, -1, -1}, {0, -1, 1}, {0, 1, 0}},
			expected: true,
		},
		{
			name:     "origin outside",
			points:   []mgl64.Vec3{{1, 1, 1}, {2, 1, 1}, {1, 2, 1}, {1, 1, 2}},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			simplex := &Simplex{}
			simplex.set(tt.points...)
			direction := mgl64.Vec3{}

			if got := tetrahedron(simplex, &direction); got != tt.expected {
				t.Errorf("tetrahedron() = %v, want %v", got, tt.expected)
			}
			if !tt.expected && simplex.Count > 3 {
				t.Errorf("simplex should be reduced, has %d points", simplex.Count)
			}
		})
	}
}

func BenchmarkGJK(b *testing.B) {
	a := boxObject(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})
	o := boxObject(mgl64.Vec3{1.5, 0.2, 0.1}, mgl64.Vec3{1, 1, 1})
	simplex := &Simplex{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		simplex.Reset()
		GJK(a, o, mgl64.Vec3{}, simplex)
	}
}
