package impulse

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/broadphase"
	"github.com/akmonengine/impulse/contact"
	"github.com/akmonengine/impulse/narrowphase"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// RunCollisionDetection computes the contacts of the current transforms: broad phase,
// middle phase, narrow phase and manifold reduction. The contacts of the previous run are
// kept as the previous frame, for persistence. Step runs it first.
func (w *World) RunCollisionDetection() {
	w.contacts.Swap()

	w.updateBroadPhase()
	w.broadPhase.ComputeOverlappingPairs(func(pair broadphase.Pair) {
		w.addOverlappingPair(w.proxies[pair.ProxyA], w.proxies[pair.ProxyB])
	})
	w.testOverlappingPairs()

	w.computeMiddlePhase()
	w.computeNarrowPhase()
}

// updateBroadPhase refits the proxies of the active bodies. A body that just woke up
// is reinserted, so that the pairs it missed while asleep are reported.
func (w *World) updateBroadPhase() {
	w.bodies.Each(func(h arena.Handle, b **actor.RigidBody) {
		body := *b
		active := body.IsActive()
		wasActive := w.activeBodies[h]
		w.activeBodies[h] = active
		if !active {
			return
		}

		displacement := body.Transform.Position.Sub(body.PreviousTransform.Position)
		for _, ch := range body.Colliders {
			collider := w.Collider(ch)
			collider.UpdateTransform(body.Transform)
			w.broadPhase.UpdateProxy(collider.ProxyID, collider.WorldAABB, displacement, !wasActive)
		}
	})
}

// addOverlappingPair filters a candidate pair of the broad phase and creates its
// overlapping pair. An existing pair is kept without retesting its AABBs.
func (w *World) addOverlappingPair(h1, h2 arena.Handle) {
	collider1, collider2 := w.Collider(h1), w.Collider(h2)
	if collider1 == nil || collider2 == nil || collider1.Body == collider2.Body {
		return
	}

	id := contact.NewPairID(collider1.ProxyID, collider2.ProxyID)
	if pair := w.pairs.Get(id); pair != nil {
		pair.NeedToTestOverlap = false
		return
	}

	body1, body2 := w.RigidBody(collider1.Body), w.RigidBody(collider2.Body)
	if !body1.Enabled || !body2.Enabled {
		return
	}
	if !body1.IsActive() && !body2.IsActive() {
		return
	}
	if _, ok := w.noCollision[makeBodyPair(collider1.Body, collider2.Body)]; ok {
		return
	}
	if !collider1.CanCollideWith(collider2) {
		return
	}
	if !collider1.Shape.IsConvex() && !collider2.Shape.IsConvex() {
		return
	}

	// the collider with the lowest shape type comes first
	if collider1.Shape.Type() > collider2.Shape.Type() {
		h1, h2 = h2, h1
		collider1, collider2 = collider2, collider1
	}

	algorithm := narrowphase.SelectAlgorithm(collider1.Shape.Type(), collider2.Shape.Type())
	if algorithm == narrowphase.AlgorithmNone {
		return
	}

	w.pairs.Add(contact.OverlappingPair{
		ID:        id,
		ColliderA: h1,
		ColliderB: h2,
		BodyA:     collider1.Body,
		BodyB:     collider2.Body,
		Algorithm: algorithm,
		IsConvex:  collider2.Shape.Type() != actor.ShapeTypeTriangleMesh,
		IsTrigger: collider1.IsTrigger || collider2.IsTrigger,
	})
	w.logger.Debug("overlapping pair created", "pair", uint64(id), "algorithm", algorithm.String())
}

// testOverlappingPairs destroys the pairs whose fat AABBs stopped overlapping, and the
// pairs of disabled bodies
func (w *World) testOverlappingPairs() {
	w.destroyPairs(func(pair *contact.OverlappingPair) bool {
		if !w.RigidBody(pair.BodyA).Enabled || !w.RigidBody(pair.BodyB).Enabled {
			return true
		}
		if !pair.NeedToTestOverlap {
			return false
		}
		return !w.broadPhase.TestOverlap(w.Collider(pair.ColliderA).ProxyID, w.Collider(pair.ColliderB).ProxyID)
	})
}

// destroyPairs removes every pair matching the predicate. A pair colliding in the last
// detection is reported as lost.
func (w *World) destroyPairs(match func(pair *contact.OverlappingPair) bool) {
	for i := w.pairs.Len() - 1; i >= 0; i-- {
		pair := w.pairs.At(i)
		if !match(pair) {
			continue
		}

		if pair.CollidingInCurrentFrame {
			w.contacts.AddLostPair(pair)
		}
		w.contacts.ForgetPair(pair.ID)
		w.logger.Debug("overlapping pair destroyed", "pair", uint64(pair.ID))
		w.pairs.Remove(pair.ID)
	}
}

// computeMiddlePhase creates the narrow-phase requests of the pairs having an active body.
// The pairs of sleeping or static bodies are dormant: they keep their colliding state.
func (w *World) computeMiddlePhase() {
	w.input.Reset()

	for i := 0; i < w.pairs.Len(); i++ {
		pair := w.pairs.At(i)
		pair.CollidingInPreviousFrame = pair.CollidingInCurrentFrame

		if !w.RigidBody(pair.BodyA).IsActive() && !w.RigidBody(pair.BodyB).IsActive() {
			continue
		}

		pair.NeedToTestOverlap = true
		pair.CollidingInCurrentFrame = false

		collider1, collider2 := w.Collider(pair.ColliderA), w.Collider(pair.ColliderB)
		request := narrowphase.Request{
			Pair:           i,
			Shape1:         collider1.Shape,
			Shape2:         collider2.Shape,
			Transform1:     collider1.WorldTransform,
			Transform2:     collider2.WorldTransform,
			SeparatingAxis: pair.SeparatingAxis,
			ContactsWanted: !pair.IsTrigger,
		}

		if pair.IsConvex {
			w.input.Add(pair.Algorithm, request)
			continue
		}
		w.addMeshRequests(&w.input, pair.Algorithm, request, w.meshes[pair.ColliderB])
	}
}

// addMeshRequests adds one request per triangle of the mesh overlapping the convex shape.
// Every request keeps the transform of the mesh, the local points of its contacts are
// in mesh space.
func (w *World) addMeshRequests(input *narrowphase.Input, algorithm narrowphase.AlgorithmType, request narrowphase.Request, mesh *meshData) {
	if mesh == nil {
		return
	}

	// convex transform relative to the mesh
	meshTransform := request.Transform2
	inverseRotation := meshTransform.Rotation.Inverse()
	relative := actor.NewTransformAt(
		meshTransform.ApplyInverse(request.Transform1.Position),
		inverseRotation.Mul(request.Transform1.Rotation),
	)
	bounds := request.Shape1.ComputeAABB(relative)

	request.SeparatingAxis = mgl64.Vec3{}
	mesh.tree.Query(bounds, func(proxyID int) bool {
		triangleRequest := request
		triangleRequest.Shape2 = &mesh.triangles[mesh.tree.Payload(proxyID)]
		input.Add(algorithm, triangleRequest)
		return true
	})
}

// computeNarrowPhase runs the requests, clusters their contacts into manifolds and builds
// the contacts of the current frame
func (w *World) computeNarrowPhase() {
	w.detector.Reset()
	w.dispatcher.Run(&w.input)

	w.input.Each(func(r *narrowphase.Request) {
		pair := w.pairs.At(r.Pair)
		if pair.IsConvex {
			pair.SeparatingAxis = r.SeparatingAxis
		}
		if !r.IsColliding {
			return
		}

		pair.CollidingInCurrentFrame = true
		index := w.detector.AddPair(pair, r.Transform1)
		if r.ContactsWanted {
			w.detector.AddContacts(index, r.ContactPoints())
		}
	})

	for i := 0; i < w.pairs.Len(); i++ {
		pair := w.pairs.At(i)
		if pair.CollidingInPreviousFrame && !pair.CollidingInCurrentFrame {
			w.contacts.AddLostPair(pair)
		}
	}

	w.detector.ReduceManifolds()
	w.contacts.Build(w.detector)
}

// TestOverlap reports whether the shapes of two colliders overlap, without contacts and
// without touching the state of the world
func (w *World) TestOverlap(a, b arena.Handle) (bool, error) {
	if _, err := w.runQuery(a, b, false); err != nil {
		return false, err
	}

	colliding := false
	w.queryInput.Each(func(r *narrowphase.Request) {
		colliding = colliding || r.IsColliding
	})

	return colliding, nil
}

// TestCollision returns the contacts between two colliders, without reduction and without
// touching the state of the world. The normals point from a to b.
func (w *World) TestCollision(a, b arena.Handle) ([]narrowphase.ContactPointInfo, error) {
	swapped, err := w.runQuery(a, b, true)
	if err != nil {
		return nil, err
	}

	var points []narrowphase.ContactPointInfo
	w.queryInput.Each(func(r *narrowphase.Request) {
		if !r.IsColliding {
			return
		}
		for _, point := range r.ContactPoints() {
			if swapped {
				point.Normal = point.Normal.Mul(-1)
				point.LocalPoint1, point.LocalPoint2 = point.LocalPoint2, point.LocalPoint1
			}
			points = append(points, point)
		}
	})

	return points, nil
}

// runQuery tests two colliders through the query input. It reports whether the
// colliders were swapped to order their shape types.
func (w *World) runQuery(a, b arena.Handle, contactsWanted bool) (bool, error) {
	collider1, collider2 := w.Collider(a), w.Collider(b)
	if collider1 == nil || collider2 == nil {
		return false, errors.Wrapf(ErrInvalidCollider, "test %v against %v", a, b)
	}

	swapped := collider1.Shape.Type() > collider2.Shape.Type()
	if swapped {
		a, b = b, a
		collider1, collider2 = collider2, collider1
	}

	w.queryInput.Reset()
	algorithm := narrowphase.SelectAlgorithm(collider1.Shape.Type(), collider2.Shape.Type())
	if algorithm == narrowphase.AlgorithmNone {
		return swapped, nil
	}

	request := narrowphase.Request{
		Shape1:         collider1.Shape,
		Shape2:         collider2.Shape,
		Transform1:     collider1.WorldTransform,
		Transform2:     collider2.WorldTransform,
		ContactsWanted: contactsWanted,
	}
	if collider2.Shape.Type() == actor.ShapeTypeTriangleMesh {
		w.addMeshRequests(&w.queryInput, algorithm, request, w.meshes[b])
	} else {
		w.queryInput.Add(algorithm, request)
	}
	w.dispatcher.Run(&w.queryInput)

	return swapped, nil
}
