package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const testTolerance = 1e-9

func vec3Equal(a, b mgl64.Vec3, tolerance float64) bool {
	return math.Abs(a.X()-b.X()) < tolerance &&
		math.Abs(a.Y()-b.Y()) < tolerance &&
		math.Abs(a.Z()-b.Z()) < tolerance
}

func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

// =============================================================================
// AABB Tests
// =============================================================================

func TestAABB_Overlaps(t *testing.T) {
	unit := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}

	tests := []struct {
		name  string
		other AABB
		want  bool
	}{
		{"identical", unit, true},
		{"partial overlap", AABB{Min: mgl64.Vec3{0.5, 0.5, 0.5}, Max: mgl64.Vec3{2, 2, 2}}, true},
		{"touching faces", AABB{Min: mgl64.Vec3{1, 0, 0}, Max: mgl64.Vec3{2, 1, 1}}, true},
		{"separated on x", AABB{Min: mgl64.Vec3{1.1, 0, 0}, Max: mgl64.Vec3{2, 1, 1}}, false},
		{"separated on y", AABB{Min: mgl64.Vec3{0, -2, 0}, Max: mgl64.Vec3{1, -0.1, 1}}, false},
		{"separated on z", AABB{Min: mgl64.Vec3{0, 0, 5}, Max: mgl64.Vec3{1, 1, 6}}, false},
		{"contained", AABB{Min: mgl64.Vec3{0.2, 0.2, 0.2}, Max: mgl64.Vec3{0.8, 0.8, 0.8}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unit.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.other.Overlaps(unit); got != tt.want {
				t.Errorf("Overlaps() is not symmetric, got %v want %v", got, tt.want)
			}
		})
	}
}

func TestAABB_ContainsAndMerge(t *testing.T) {
	a := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}
	b := AABB{Min: mgl64.Vec3{-1, 0.5, 0}, Max: mgl64.Vec3{0.5, 3, 1}}

	merged := a.Merge(b)
	want := AABB{Min: mgl64.Vec3{-1, 0, 0}, Max: mgl64.Vec3{1, 3, 1}}
	if !vec3Equal(merged.Min, want.Min, testTolerance) || !vec3Equal(merged.Max, want.Max, testTolerance) {
		t.Errorf("Merge() = %v, want %v", merged, want)
	}
	if !merged.Contains(a) || !merged.Contains(b) {
		t.Error("merged box should contain both inputs")
	}
	if a.Contains(b) {
		t.Error("a should not contain b")
	}
	if !a.ContainsPoint(mgl64.Vec3{0.5, 0.5, 0.5}) || a.ContainsPoint(mgl64.Vec3{2, 0, 0}) {
		t.Error("ContainsPoint() wrong result")
	}
}

func TestAABB_FattenExtend(t *testing.T) {
	a := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{2, 2, 2}}

	fat := a.Fatten(0.1)
	if !vec3Equal(fat.Min, mgl64.Vec3{-0.1, -0.1, -0.1}, testTolerance) || !vec3Equal(fat.Max, mgl64.Vec3{2.1, 2.1, 2.1}, testTolerance) {
		t.Errorf("Fatten() = %v", fat)
	}

	extended := a.Extend(mgl64.Vec3{1, -2, 0})
	if !vec3Equal(extended.Min, mgl64.Vec3{0, -2, 0}, testTolerance) || !vec3Equal(extended.Max, mgl64.Vec3{3, 2, 2}, testTolerance) {
		t.Errorf("Extend() = %v", extended)
	}

	if !floatEqual(a.SurfaceArea(), 24, testTolerance) {
		t.Errorf("SurfaceArea() = %f, want 24", a.SurfaceArea())
	}
	if !vec3Equal(a.Center(), mgl64.Vec3{1, 1, 1}, testTolerance) {
		t.Errorf("Center() = %v", a.Center())
	}
}

func TestAABB_RayIntersect(t *testing.T) {
	box := AABB{Min: mgl64.Vec3{-1, -1, -1}, Max: mgl64.Vec3{1, 1, 1}}

	tests := []struct {
		name         string
		from, to     mgl64.Vec3
		wantHit      bool
		wantFraction float64
	}{
		{"hit from left", mgl64.Vec3{-3, 0, 0}, mgl64.Vec3{3, 0, 0}, true, 1.0 / 3.0},
		{"miss above", mgl64.Vec3{-3, 2, 0}, mgl64.Vec3{3, 2, 0}, false, 0},
		{"too short", mgl64.Vec3{-3, 0, 0}, mgl64.Vec3{-2, 0, 0}, false, 0},
		{"start inside", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{3, 0, 0}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fraction, hit := box.RayIntersect(tt.from, tt.to, 1.0)
			if hit != tt.wantHit {
				t.Fatalf("hit = %v, want %v", hit, tt.wantHit)
			}
			if hit && !floatEqual(fraction, tt.wantFraction, 1e-9) {
				t.Errorf("fraction = %f, want %f", fraction, tt.wantFraction)
			}
		})
	}
}

// =============================================================================
// Transform Tests
// =============================================================================

func TestTransform_ApplyInverse(t *testing.T) {
	rotation := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
	transform := NewTransformAt(mgl64.Vec3{1, 2, 3}, rotation)

	local := mgl64.Vec3{1, 0, 0}
	world := transform.Apply(local)
	if !vec3Equal(world, mgl64.Vec3{1, 3, 3}, 1e-9) {
		t.Errorf("Apply() = %v, want (1, 3, 3)", world)
	}
	if back := transform.ApplyInverse(world); !vec3Equal(back, local, 1e-9) {
		t.Errorf("ApplyInverse() = %v, want %v", back, local)
	}
}

func TestTransform_Mul(t *testing.T) {
	parent := NewTransformAt(mgl64.Vec3{0, 5, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0}))
	child := NewTransformAt(mgl64.Vec3{1, 0, 0}, mgl64.QuatIdent())

	composed := parent.Mul(child)
	// +X rotated 90° around Y is -Z
	if !vec3Equal(composed.Position, mgl64.Vec3{0, 5, -1}, 1e-9) {
		t.Errorf("Mul() position = %v, want (0, 5, -1)", composed.Position)
	}

	point := mgl64.Vec3{0.3, -0.2, 0.7}
	if !vec3Equal(composed.Apply(point), parent.Apply(child.Apply(point)), 1e-9) {
		t.Error("Mul() should compose Apply")
	}
}

func TestTransform_ZeroValue(t *testing.T) {
	var transform Transform
	transform.Position = mgl64.Vec3{1, 0, 0}

	if got := transform.Apply(mgl64.Vec3{1, 1, 1}); !vec3Equal(got, mgl64.Vec3{2, 1, 1}, testTolerance) {
		t.Errorf("zero rotation should behave as identity, got %v", got)
	}
}
