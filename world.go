// Package impulse is a rigid body physics core. A World detects the collisions of its
// colliders, keeps their contact manifolds from one step to the next and solves them
// island by island with sequential impulses.
package impulse

import (
	"io"
	"log/slog"
	"slices"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/broadphase"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/constraint"
	"github.com/akmonengine/impulse/contact"
	"github.com/akmonengine/impulse/narrowphase"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrInvalidBody     = errors.New("invalid body")
	ErrInvalidCollider = errors.New("invalid collider")
)

// bodyPair is an unordered pair of bodies
type bodyPair struct {
	bodyA arena.Handle
	bodyB arena.Handle
}

// makeBodyPair creates a normalized pair key with consistent ordering
func makeBodyPair(bodyA, bodyB arena.Handle) bodyPair {
	if bodyB.Index < bodyA.Index || (bodyB.Index == bodyA.Index && bodyB.Generation < bodyA.Generation) {
		bodyA, bodyB = bodyB, bodyA
	}

	return bodyPair{bodyA: bodyA, bodyB: bodyB}
}

// meshData indexes the triangles of a triangle mesh collider, in mesh space
type meshData struct {
	tree      *broadphase.DynamicTree
	triangles []actor.Triangle
}

func newMeshData(mesh *actor.TriangleMesh) *meshData {
	data := &meshData{
		tree:      broadphase.NewDynamicTree(0, 0),
		triangles: make([]actor.Triangle, mesh.TriangleCount()),
	}
	for i := range data.triangles {
		data.triangles[i] = mesh.Triangle(i)
		data.tree.AddObject(mesh.TriangleAABB(i), i)
	}

	return data
}

type World struct {
	ID     uuid.UUID
	cfg    config.Config
	logger *slog.Logger

	bodies    *arena.Arena[*actor.RigidBody]
	colliders *arena.Arena[*actor.Collider]

	broadPhase *broadphase.BroadPhase
	// collider of every broad-phase proxy
	proxies map[int]arena.Handle
	meshes  map[arena.Handle]*meshData
	// bodies reported active by the last detection, their proxies are reinserted when they wake up
	activeBodies map[arena.Handle]bool

	pairs       *contact.OverlappingPairs
	noCollision map[bodyPair]struct{}

	dispatcher *narrowphase.Dispatcher
	input      narrowphase.Input
	queryInput narrowphase.Input
	detector   *contact.Detector
	contacts   *contact.Buffers
	solver     *constraint.ContactSolver

	islands       []Island
	bodyManifolds map[arena.Handle][]int
	visited       map[arena.Handle]bool
	stack         []arena.Handle

	Events Events
}

// NewWorld validates the configuration and creates an empty world
func NewWorld(cfg config.Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var index broadphase.SpatialIndex
	switch cfg.BroadPhase {
	case config.BroadPhaseGrid:
		index = broadphase.NewSpatialGrid(cfg.GridCellSize, cfg.GridCells, cfg.FatAABBMargin, cfg.DisplacementMultiplier)
	default:
		index = broadphase.NewDynamicTree(cfg.FatAABBMargin, cfg.DisplacementMultiplier)
	}

	id := uuid.New()
	logger := cfg.Logger.With("world", id.String())

	w := &World{
		ID:            id,
		cfg:           cfg,
		logger:        logger,
		bodies:        arena.New[*actor.RigidBody](64),
		colliders:     arena.New[*actor.Collider](64),
		broadPhase:    broadphase.New(index),
		proxies:       make(map[int]arena.Handle, 64),
		meshes:        make(map[arena.Handle]*meshData),
		activeBodies:  make(map[arena.Handle]bool, 64),
		pairs:         contact.NewOverlappingPairs(),
		noCollision:   make(map[bodyPair]struct{}),
		dispatcher:    narrowphase.NewDispatcher(logger),
		detector:      contact.NewDetector(cfg),
		contacts:      contact.NewBuffers(cfg),
		solver:        constraint.NewContactSolver(cfg),
		bodyManifolds: make(map[arena.Handle][]int, 64),
		visited:       make(map[arena.Handle]bool, 64),
		Events:        NewEvents(),
	}
	logger.Debug("world created", "broadphase", cfg.BroadPhase)

	return w, nil
}

// Config returns the settings of the world
func (w *World) Config() config.Config {
	return w.cfg
}

// RigidBody returns the body of a handle, nil if the handle is stale
func (w *World) RigidBody(h arena.Handle) *actor.RigidBody {
	body := w.bodies.Get(h)
	if body == nil {
		return nil
	}
	return *body
}

// Collider returns the collider of a handle, nil if the handle is stale
func (w *World) Collider(h arena.Handle) *actor.Collider {
	collider := w.colliders.Get(h)
	if collider == nil {
		return nil
	}
	return *collider
}

func (w *World) BodyCount() int {
	return w.bodies.Len()
}

func (w *World) ColliderCount() int {
	return w.colliders.Len()
}

// AddBody adds a rigid body without colliders to the world
func (w *World) AddBody(body *actor.RigidBody) arena.Handle {
	body.Colliders = body.Colliders[:0]
	h := w.bodies.Insert(body)
	w.logger.Debug("body added", "body", h, "type", body.BodyType.String())

	return h
}

// RemoveBody removes a rigid body and its colliders from the world
func (w *World) RemoveBody(h arena.Handle) error {
	body := w.RigidBody(h)
	if body == nil {
		return errors.Wrapf(ErrInvalidBody, "remove body %v", h)
	}

	for len(body.Colliders) > 0 {
		if err := w.RemoveCollider(body.Colliders[len(body.Colliders)-1]); err != nil {
			return err
		}
	}

	for pair := range w.noCollision {
		if pair.bodyA == h || pair.bodyB == h {
			delete(w.noCollision, pair)
		}
	}
	delete(w.activeBodies, h)
	delete(w.bodyManifolds, h)
	w.Events.forget(h)

	w.bodies.Remove(h)
	w.logger.Debug("body removed", "body", h)

	return nil
}

// AddCollider attaches a collider to a body and registers it in the broad phase. A zero
// material is replaced by the default material of the world. The mass properties of a
// dynamic body are recomputed from all its colliders.
func (w *World) AddCollider(bodyHandle arena.Handle, collider *actor.Collider) (arena.Handle, error) {
	body := w.RigidBody(bodyHandle)
	if body == nil {
		return arena.Nil, errors.Wrapf(ErrInvalidBody, "add collider to body %v", bodyHandle)
	}
	if collider == nil {
		return arena.Nil, errors.Wrap(ErrInvalidCollider, "nil collider")
	}
	if err := actor.ValidateShape(collider.Shape); err != nil {
		return arena.Nil, errors.Wrap(err, "add collider")
	}

	shapeType := collider.Shape.Type()
	if (shapeType == actor.ShapeTypePlane || shapeType == actor.ShapeTypeTriangleMesh) && body.BodyType != actor.BodyTypeStatic {
		return arena.Nil, errors.Wrapf(ErrInvalidCollider, "%s collider on a %s body", shapeType, body.BodyType)
	}

	if collider.Material == (actor.Material{}) {
		collider.Material = actor.Material{
			Density:    1.0,
			Friction:   w.cfg.DefaultFriction,
			Bounciness: w.cfg.DefaultBounciness,
		}
	}

	collider.Body = bodyHandle
	collider.UpdateTransform(body.Transform)

	h := w.colliders.Insert(collider)
	collider.ProxyID = w.broadPhase.AddProxy(collider.WorldAABB, int(h.Index))
	w.proxies[collider.ProxyID] = h
	if mesh, ok := collider.Shape.(*actor.TriangleMesh); ok {
		w.meshes[h] = newMeshData(mesh)
	}

	body.Colliders = append(body.Colliders, h)
	w.updateMassProperties(body)
	body.Awake()

	w.logger.Debug("collider added", "collider", h, "body", bodyHandle, "shape", shapeType.String(), "proxy", collider.ProxyID)

	return h, nil
}

// RemoveCollider detaches a collider from its body. Its colliding pairs are reported as lost.
func (w *World) RemoveCollider(h arena.Handle) error {
	collider := w.Collider(h)
	if collider == nil {
		return errors.Wrapf(ErrInvalidCollider, "remove collider %v", h)
	}

	w.destroyPairs(func(pair *contact.OverlappingPair) bool {
		return pair.ColliderA == h || pair.ColliderB == h
	})

	w.broadPhase.RemoveProxy(collider.ProxyID)
	delete(w.proxies, collider.ProxyID)
	delete(w.meshes, h)
	collider.ProxyID = actor.NoProxy

	if body := w.RigidBody(collider.Body); body != nil {
		if i := slices.Index(body.Colliders, h); i >= 0 {
			body.Colliders = slices.Delete(body.Colliders, i, i+1)
		}
		w.updateMassProperties(body)
		body.Awake()
	}

	w.colliders.Remove(h)
	w.logger.Debug("collider removed", "collider", h)

	return nil
}

// DisableCollision prevents two bodies from colliding with each other
func (w *World) DisableCollision(bodyA, bodyB arena.Handle) error {
	if w.RigidBody(bodyA) == nil || w.RigidBody(bodyB) == nil {
		return errors.Wrapf(ErrInvalidBody, "disable collision between %v and %v", bodyA, bodyB)
	}

	key := makeBodyPair(bodyA, bodyB)
	w.noCollision[key] = struct{}{}
	w.destroyPairs(func(pair *contact.OverlappingPair) bool {
		return makeBodyPair(pair.BodyA, pair.BodyB) == key
	})

	return nil
}

// EnableCollision restores the collisions between two bodies
func (w *World) EnableCollision(bodyA, bodyB arena.Handle) error {
	a, b := w.RigidBody(bodyA), w.RigidBody(bodyB)
	if a == nil || b == nil {
		return errors.Wrapf(ErrInvalidBody, "enable collision between %v and %v", bodyA, bodyB)
	}

	delete(w.noCollision, makeBodyPair(bodyA, bodyB))
	// the pairs are found again by the next broad phase
	w.touchBody(a)
	w.touchBody(b)

	return nil
}

// SetColliderFilter changes the category and the mask of a collider
func (w *World) SetColliderFilter(h arena.Handle, categoryBits, collideWithMaskBits uint16) error {
	collider := w.Collider(h)
	if collider == nil {
		return errors.Wrapf(ErrInvalidCollider, "set filter of collider %v", h)
	}

	collider.CategoryBits = categoryBits
	collider.CollideWithMaskBits = collideWithMaskBits

	w.destroyPairs(func(pair *contact.OverlappingPair) bool {
		if pair.ColliderA != h && pair.ColliderB != h {
			return false
		}
		return !w.Collider(pair.ColliderA).CanCollideWith(w.Collider(pair.ColliderB))
	})
	w.broadPhase.TouchProxy(collider.ProxyID)

	return nil
}

// SetBodyTransform teleports a body and reinserts its colliders in the broad phase
func (w *World) SetBodyTransform(h arena.Handle, transform actor.Transform) error {
	body := w.RigidBody(h)
	if body == nil {
		return errors.Wrapf(ErrInvalidBody, "set transform of body %v", h)
	}

	body.SetTransform(transform)
	for _, ch := range body.Colliders {
		collider := w.Collider(ch)
		collider.UpdateTransform(body.Transform)
		w.broadPhase.UpdateProxy(collider.ProxyID, collider.WorldAABB, mgl64.Vec3{}, true)
	}

	return nil
}

// WakeBody wakes a sleeping body up
func (w *World) WakeBody(h arena.Handle) error {
	body := w.RigidBody(h)
	if body == nil {
		return errors.Wrapf(ErrInvalidBody, "wake body %v", h)
	}

	body.Awake()
	w.touchBody(body)

	return nil
}

// touchBody reports the colliders of a body in the next broad phase
func (w *World) touchBody(body *actor.RigidBody) {
	for _, ch := range body.Colliders {
		w.broadPhase.TouchProxy(w.Collider(ch).ProxyID)
	}
}

// updateMassProperties sums the mass of the colliders, and moves their inertia tensors to
// the common center of mass with the parallel axis theorem
func (w *World) updateMassProperties(body *actor.RigidBody) {
	if body.BodyType != actor.BodyTypeDynamic {
		body.SetMassProperties(0, mgl64.Vec3{}, mgl64.Mat3{})
		return
	}

	var mass float64
	var center mgl64.Vec3
	for _, ch := range body.Colliders {
		m, localCenter, _ := w.Collider(ch).MassContribution()
		mass += m
		center = center.Add(localCenter.Mul(m))
	}

	if mass <= 0 {
		body.SetMassProperties(1.0, mgl64.Vec3{}, mgl64.Ident3())
		return
	}
	center = center.Mul(1 / mass)

	var inertia mgl64.Mat3
	for _, ch := range body.Colliders {
		m, localCenter, localInertia := w.Collider(ch).MassContribution()
		inertia = inertia.Add(localInertia).Add(parallelAxis(m, localCenter.Sub(center)))
	}

	body.SetMassProperties(mass, center, inertia)
}

// parallelAxis returns the inertia of a point mass at offset d
func parallelAxis(mass float64, d mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Ident3().Mul(d.Dot(d)).Sub(d.OuterProd3(d)).Mul(mass)
}

// ContactPairs returns the colliding pairs of the last detection, valid until the next one
func (w *World) ContactPairs() []contact.ContactPair {
	return w.contacts.Pairs()
}

// ContactManifolds returns the manifolds of the last detection
func (w *World) ContactManifolds() []contact.ContactManifold {
	return w.contacts.Manifolds()
}

// ContactPoints returns the contact points of the last detection
func (w *World) ContactPoints() []contact.ContactPoint {
	return w.contacts.Points()
}

// LostContactPairs returns the pairs that stopped colliding and were not reported yet
func (w *World) LostContactPairs() []contact.ContactPair {
	return w.contacts.LostPairs()
}

// OverlappingPairCount returns the number of pairs kept by the broad phase
func (w *World) OverlappingPairCount() int {
	return w.pairs.Len()
}

// Islands returns the islands of the last step
func (w *World) Islands() []Island {
	return w.islands
}
