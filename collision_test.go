package impulse

import (
	"math"
	"math/rand"
	"testing"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/config"
	"github.com/davecgh/go-spew/spew"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// =============================================================================
// Detection scenarios
// =============================================================================

func TestDetection_BoxFaceContact(t *testing.T) {
	for _, broadPhase := range []string{config.BroadPhaseTree, config.BroadPhaseGrid} {
		t.Run(broadPhase, func(t *testing.T) {
			w := newTestWorld(t, func(cfg *config.Config) { cfg.BroadPhase = broadPhase })
			addBody(t, w, mgl64.Vec3{}, actor.BodyTypeStatic, box(3, 3, 3))
			addBody(t, w, mgl64.Vec3{0, 4.5, 0}, actor.BodyTypeDynamic, box(4, 2, 8))

			w.RunCollisionDetection()

			pairs := w.ContactPairs()
			manifolds := w.ContactManifolds()
			points := w.ContactPoints()
			if len(pairs) != 1 || len(manifolds) != 1 || len(points) != 4 {
				t.Fatalf("got %d pairs, %d manifolds, %d points, want 1, 1, 4: %s",
					len(pairs), len(manifolds), len(points), spew.Sdump(manifolds, points))
			}
			if pairs[0].ManifoldCount != 1 || pairs[0].PointCount != 4 {
				t.Errorf("pair ranges = %s", spew.Sdump(pairs[0]))
			}
			for _, p := range points {
				if math.Abs(p.Depth-0.5) > 1e-3 {
					t.Errorf("depth = %v, want 0.5", p.Depth)
				}
			}
		})
	}
}

func TestDetection_SphereContact(t *testing.T) {
	w := newTestWorld(t, nil)
	addBody(t, w, mgl64.Vec3{}, actor.BodyTypeDynamic, &actor.Sphere{Radius: 3})
	addBody(t, w, mgl64.Vec3{7, 0, 0}, actor.BodyTypeDynamic, &actor.Sphere{Radius: 5})

	w.RunCollisionDetection()

	manifolds := w.ContactManifolds()
	points := w.ContactPoints()
	if len(manifolds) != 1 || len(points) != 1 {
		t.Fatalf("got %d manifolds and %d points, want 1 and 1", len(manifolds), len(points))
	}
	if math.Abs(points[0].Depth-1) > 1e-9 {
		t.Errorf("depth = %v, want 1", points[0].Depth)
	}
	if math.Abs(math.Abs(points[0].Normal.X())-1) > 1e-9 {
		t.Errorf("normal = %v, want along the x axis", points[0].Normal)
	}
}

func TestDetection_DisableCollision(t *testing.T) {
	w := newTestWorld(t, withoutGravity)
	a, _ := addBody(t, w, mgl64.Vec3{}, actor.BodyTypeDynamic, box(1, 1, 1))
	b, _ := addBody(t, w, mgl64.Vec3{1.5, 0, 0}, actor.BodyTypeDynamic, box(1, 1, 1))

	if err := w.DisableCollision(a, b); err != nil {
		t.Fatal(err)
	}
	for step := 0; step < 5; step++ {
		w.Step(dt)
		if len(w.ContactPairs()) != 0 {
			t.Fatalf("step %d: got %d contact pairs between disabled bodies", step, len(w.ContactPairs()))
		}
	}

	if err := w.EnableCollision(a, b); err != nil {
		t.Fatal(err)
	}
	w.Step(dt)
	if len(w.ContactPairs()) != 1 {
		t.Errorf("got %d contact pairs after EnableCollision, want 1", len(w.ContactPairs()))
	}
}

func TestDetection_DisableCollidingPair(t *testing.T) {
	w := newTestWorld(t, withoutGravity)
	a, _ := addBody(t, w, mgl64.Vec3{}, actor.BodyTypeDynamic, box(1, 1, 1))
	b, _ := addBody(t, w, mgl64.Vec3{1.5, 0, 0}, actor.BodyTypeDynamic, box(1, 1, 1))
	w.Step(dt)

	if err := w.DisableCollision(b, a); err != nil {
		t.Fatal(err)
	}
	if w.OverlappingPairCount() != 0 || len(w.LostContactPairs()) != 1 {
		t.Errorf("pairs = %d, lost = %s", w.OverlappingPairCount(), spew.Sdump(w.LostContactPairs()))
	}
}

func TestDetection_Filters(t *testing.T) {
	tests := []struct {
		name      string
		typeA     actor.BodyType
		typeB     actor.BodyType
		category  uint16
		mask      uint16
		wantPairs int
	}{
		{"dynamic dynamic", actor.BodyTypeDynamic, actor.BodyTypeDynamic, 0x0001, 0xFFFF, 1},
		{"dynamic static", actor.BodyTypeDynamic, actor.BodyTypeStatic, 0x0001, 0xFFFF, 1},
		{"static static", actor.BodyTypeStatic, actor.BodyTypeStatic, 0x0001, 0xFFFF, 0},
		{"masked", actor.BodyTypeDynamic, actor.BodyTypeDynamic, 0x0002, 0xFFFE, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorld(t, withoutGravity)
			addBody(t, w, mgl64.Vec3{}, tt.typeA, box(1, 1, 1))
			_, collider := addBody(t, w, mgl64.Vec3{1.5, 0, 0}, tt.typeB, box(1, 1, 1))
			if err := w.SetColliderFilter(collider, tt.category, tt.mask); err != nil {
				t.Fatal(err)
			}

			w.RunCollisionDetection()

			if len(w.ContactPairs()) != tt.wantPairs {
				t.Errorf("got %d contact pairs, want %d", len(w.ContactPairs()), tt.wantPairs)
			}
		})
	}
}

func TestDetection_SameBody(t *testing.T) {
	w := newTestWorld(t, withoutGravity)
	h := w.AddBody(actor.NewRigidBody(actor.NewTransform(), actor.BodyTypeDynamic))
	for _, x := range []float64{-0.5, 0.5} {
		if _, err := w.AddCollider(h, actor.NewCollider(box(1, 1, 1), actor.NewTransformAt(mgl64.Vec3{x, 0, 0}, mgl64.QuatIdent()), actor.Material{})); err != nil {
			t.Fatal(err)
		}
	}

	w.RunCollisionDetection()

	if w.OverlappingPairCount() != 0 {
		t.Errorf("colliders of the same body should never pair, got %d pairs", w.OverlappingPairCount())
	}
}

func TestDetection_LostContact(t *testing.T) {
	w := newTestWorld(t, withoutGravity)
	a, _ := addBody(t, w, mgl64.Vec3{}, actor.BodyTypeDynamic, &actor.Sphere{Radius: 1})
	addBody(t, w, mgl64.Vec3{1.9, 0, 0}, actor.BodyTypeStatic, &actor.Sphere{Radius: 1})

	w.RunCollisionDetection()
	if len(w.ContactPairs()) != 1 {
		t.Fatalf("got %d contact pairs, want 1", len(w.ContactPairs()))
	}

	// the shapes separate while the fat AABBs still overlap
	if err := w.SetBodyTransform(a, actor.NewTransformAt(mgl64.Vec3{-0.2, 0, 0}, mgl64.QuatIdent())); err != nil {
		t.Fatal(err)
	}
	w.RunCollisionDetection()

	if len(w.ContactPairs()) != 0 || w.OverlappingPairCount() != 1 {
		t.Errorf("got %d contact pairs and %d overlapping pairs, want 0 and 1", len(w.ContactPairs()), w.OverlappingPairCount())
	}
	lost := w.LostContactPairs()
	if len(lost) != 1 || !lost[0].IsLost || !lost[0].CollidingInPreviousFrame {
		t.Errorf("lost pairs = %s", spew.Sdump(lost))
	}
}

func TestDetection_Persistence(t *testing.T) {
	w := newTestWorld(t, nil)
	addGround(t, w)
	addBody(t, w, mgl64.Vec3{0, 0.49, 0}, actor.BodyTypeDynamic, box(0.5, 0.5, 0.5))

	w.Step(dt)
	if len(w.ContactPoints()) != 4 {
		t.Fatalf("got %d points, want 4: %s", len(w.ContactPoints()), spew.Sdump(w.ContactPoints()))
	}
	w.Step(dt)

	// the second step warm starts from the impulses of the first one
	total := 0.0
	for _, p := range w.ContactPoints() {
		total += p.PenetrationImpulse
		if !p.IsResting {
			t.Errorf("point = %s", spew.Sdump(p))
		}
	}
	if total <= 0 {
		t.Errorf("total penetration impulse = %v, want > 0", total)
	}
	if pairs := w.ContactPairs(); len(pairs) != 1 || !pairs[0].CollidingInPreviousFrame {
		t.Errorf("pairs = %s", spew.Sdump(pairs))
	}
}

func TestDetection_ReplacedColliderStartsCold(t *testing.T) {
	w := newTestWorld(t, func(cfg *config.Config) { cfg.IsSleepingEnabled = false })
	addGround(t, w)
	body, collider := addBody(t, w, mgl64.Vec3{0, 0.49, 0}, actor.BodyTypeDynamic, box(0.5, 0.5, 0.5))

	for i := 0; i < 5; i++ {
		w.Step(dt)
	}

	// the new collider takes over the proxy id, hence the pair id, of the removed one
	if err := w.RemoveCollider(collider); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddCollider(body, actor.NewCollider(box(0.5, 0.5, 0.5), actor.NewTransform(), actor.Material{})); err != nil {
		t.Fatal(err)
	}
	w.RunCollisionDetection()

	if len(w.ContactPoints()) == 0 {
		t.Fatal("the new collider should touch the ground")
	}
	for _, p := range w.ContactPoints() {
		if p.PenetrationImpulse != 0 || p.IsResting {
			t.Errorf("point = %s, a new pair must not inherit the impulses of a destroyed one", spew.Sdump(p))
		}
	}
}

func TestDetection_TriangleMesh(t *testing.T) {
	mesh, err := actor.NewTriangleMesh(
		[]mgl64.Vec3{{-5, 0, -5}, {5, 0, -5}, {5, 0, 5}, {-5, 0, 5}},
		[][3]int{{0, 2, 1}, {0, 3, 2}},
	)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		position  mgl64.Vec3
		wantPairs int
	}{
		{"overlapping", mgl64.Vec3{0, 0.4, 0}, 1},
		{"above", mgl64.Vec3{0, 2, 0}, 0},
		{"beside", mgl64.Vec3{8, 0.4, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorld(t, withoutGravity)
			_, meshCollider := addBody(t, w, mgl64.Vec3{}, actor.BodyTypeStatic, mesh)

			body := w.AddBody(actor.NewRigidBody(actor.NewTransformAt(tt.position, mgl64.QuatIdent()), actor.BodyTypeDynamic))
			collider := actor.NewCollider(box(0.5, 0.5, 0.5), actor.NewTransform(), actor.Material{})
			collider.IsTrigger = true
			boxCollider, err := w.AddCollider(body, collider)
			if err != nil {
				t.Fatal(err)
			}

			w.RunCollisionDetection()

			pairs := w.ContactPairs()
			if len(pairs) != tt.wantPairs {
				t.Fatalf("got %d pairs, want %d", len(pairs), tt.wantPairs)
			}
			if tt.wantPairs > 0 && (!pairs[0].IsTrigger || pairs[0].ManifoldCount != 0) {
				t.Errorf("trigger pair = %s", spew.Sdump(pairs[0]))
			}

			overlap, err := w.TestOverlap(meshCollider, boxCollider)
			if err != nil {
				t.Fatal(err)
			}
			if overlap != (tt.wantPairs > 0) {
				t.Errorf("TestOverlap() = %v", overlap)
			}
		})
	}
}

// =============================================================================
// Queries
// =============================================================================

func TestWorld_TestCollision(t *testing.T) {
	w := newTestWorld(t, nil)
	_, boxCollider := addBody(t, w, mgl64.Vec3{}, actor.BodyTypeStatic, box(2, 2, 2))
	_, sphereCollider := addBody(t, w, mgl64.Vec3{0.5, 2.8, 0}, actor.BodyTypeDynamic, &actor.Sphere{Radius: 1})
	_, farCollider := addBody(t, w, mgl64.Vec3{10, 0, 0}, actor.BodyTypeDynamic, &actor.Sphere{Radius: 1})

	t.Run("swapped order", func(t *testing.T) {
		points, err := w.TestCollision(boxCollider, sphereCollider)
		if err != nil {
			t.Fatal(err)
		}
		if len(points) != 1 {
			t.Fatalf("got %d points, want 1", len(points))
		}
		// from the box to the sphere
		if !points[0].Normal.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-2) {
			t.Errorf("normal = %v, want (0, 1, 0)", points[0].Normal)
		}
		if math.Abs(points[0].Depth-0.2) > 1e-2 {
			t.Errorf("depth = %v, want 0.2", points[0].Depth)
		}
		if math.Abs(points[0].LocalPoint1.Y()-2) > 5e-2 {
			t.Errorf("local point on the box = %v", points[0].LocalPoint1)
		}
	})

	t.Run("direct order", func(t *testing.T) {
		points, err := w.TestCollision(sphereCollider, boxCollider)
		if err != nil {
			t.Fatal(err)
		}
		if len(points) != 1 || !points[0].Normal.ApproxEqualThreshold(mgl64.Vec3{0, -1, 0}, 1e-2) {
			t.Errorf("points = %s", spew.Sdump(points))
		}
	})

	t.Run("separated", func(t *testing.T) {
		points, err := w.TestCollision(boxCollider, farCollider)
		if err != nil || len(points) != 0 {
			t.Errorf("TestCollision() = %v, %v", points, err)
		}
		overlap, err := w.TestOverlap(farCollider, boxCollider)
		if err != nil || overlap {
			t.Errorf("TestOverlap() = %v, %v", overlap, err)
		}
	})

	t.Run("stale handle", func(t *testing.T) {
		if _, err := w.TestCollision(boxCollider, arena.Handle{Index: farCollider.Index, Generation: farCollider.Generation + 1}); !errors.Is(err, ErrInvalidCollider) {
			t.Errorf("TestCollision() error = %v", err)
		}
	})

	if len(w.ContactPairs()) != 0 {
		t.Error("queries should not change the contacts of the world")
	}
}

func TestWorld_Raycast(t *testing.T) {
	w := newTestWorld(t, nil)
	boxBody, _ := addBody(t, w, mgl64.Vec3{0, 0, 5}, actor.BodyTypeStatic, box(1, 1, 1))
	sphereBody, sphereCollider := addBody(t, w, mgl64.Vec3{0, 0, 8}, actor.BodyTypeStatic, &actor.Sphere{Radius: 1})
	if err := w.SetColliderFilter(sphereCollider, 0x0002, 0xFFFF); err != nil {
		t.Fatal(err)
	}

	ray := actor.NewRay(mgl64.Vec3{}, mgl64.Vec3{0, 0, 10})

	tests := []struct {
		name         string
		mask         uint16
		wantFound    bool
		wantBody     arena.Handle
		wantFraction float64
	}{
		{"closest", 0xFFFF, true, boxBody, 0.4},
		{"masked box", 0x0002, true, sphereBody, 0.7},
		{"nothing", 0x0004, false, arena.Nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, found := w.RaycastClosest(ray, tt.mask)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if !found {
				return
			}
			if hit.Body != tt.wantBody || math.Abs(hit.Fraction-tt.wantFraction) > 1e-9 {
				t.Errorf("hit = %s", spew.Sdump(hit))
			}
		})
	}

	count := 0
	w.Raycast(ray, 0xFFFF, func(hit RaycastHit) float64 {
		count++
		return 1
	})
	if count != 2 {
		t.Errorf("Raycast() reported %d hits, want 2", count)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkDetection(b *testing.B) {
	const cubesCount = 1000
	const rowSize = 100

	w := newTestWorld(b, withoutGravity)
	rng := rand.New(rand.NewSource(0))
	for i := 0; i < cubesCount; i++ {
		row := i / rowSize
		col := i % rowSize
		position := mgl64.Vec3{rng.Float64() * 0.1, float64(row) * 1.9, float64(col) * 1.9}
		addBody(b, w, position, actor.BodyTypeDynamic, box(1, 1, 1))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.RunCollisionDetection()
	}
}

func BenchmarkWorldStep(b *testing.B) {
	const cubesCount = 1000
	const rowSize = 100

	w := newTestWorld(b, nil)
	addGround(b, w)
	for i := 0; i < cubesCount; i++ {
		row := i / rowSize
		col := i % rowSize
		addBody(b, w, mgl64.Vec3{float64(col) * 2.5, 0.5 + float64(row)*1.05, 0}, actor.BodyTypeDynamic, box(0.5, 0.5, 0.5))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Step(dt)
	}
}
