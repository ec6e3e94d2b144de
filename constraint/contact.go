package constraint

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/contact"
	"github.com/go-gl/mathgl/mgl64"
)

// tangentEpsilon is the squared tangential speed under which the friction vectors are
// built from the normal only
const tangentEpsilon = 1e-12

type pointSolver struct {
	// index in the persistent contact points
	index int

	normal mgl64.Vec3
	r1     mgl64.Vec3
	r2     mgl64.Vec3

	r1CrossN          mgl64.Vec3
	r2CrossN          mgl64.Vec3
	i1TimesR1CrossN   mgl64.Vec3
	i2TimesR2CrossN   mgl64.Vec3
	inverseNormalMass float64

	depth           float64
	restitutionBias float64
	isResting       bool

	penetrationImpulse      float64
	penetrationSplitImpulse float64
}

type manifoldSolver struct {
	// index in the persistent manifolds
	index int

	body1 *actor.RigidBody
	body2 *actor.RigidBody

	inverseMass1    float64
	inverseMass2    float64
	inverseInertia1 mgl64.Mat3
	inverseInertia2 mgl64.Mat3

	pointStart int
	pointCount int

	normal mgl64.Vec3
	r1     mgl64.Vec3
	r2     mgl64.Vec3

	frictionVector1    mgl64.Vec3
	frictionVector2    mgl64.Vec3
	oldFrictionVector1 mgl64.Vec3
	oldFrictionVector2 mgl64.Vec3

	r1CrossT1 mgl64.Vec3
	r1CrossT2 mgl64.Vec3
	r2CrossT1 mgl64.Vec3
	r2CrossT2 mgl64.Vec3

	inverseFriction1Mass     float64
	inverseFriction2Mass     float64
	inverseTwistFrictionMass float64

	friction1Impulse float64
	friction2Impulse float64
	twistImpulse     float64

	frictionCoefficient float64
}

// ContactSolver runs the velocity iterations of the contacts of one island:
// Init, WarmStart, Solve as many times as wanted, then StoreImpulses.
type ContactSolver struct {
	isSplitImpulseActive         bool
	baumgarte                    float64
	baumgarteSplit               float64
	slop                         float64
	restitutionVelocityThreshold float64

	dt        float64
	manifolds []manifoldSolver
	points    []pointSolver

	contactManifolds []contact.ContactManifold
	contactPoints    []contact.ContactPoint
}

func NewContactSolver(cfg config.Config) *ContactSolver {
	return &ContactSolver{
		isSplitImpulseActive:         cfg.IsSplitImpulseActive,
		baumgarte:                    cfg.Baumgarte,
		baumgarteSplit:               cfg.BaumgarteSplit,
		slop:                         cfg.Slop,
		restitutionVelocityThreshold: cfg.RestitutionVelocityThreshold,
		manifolds:                    make([]manifoldSolver, 0, 64),
		points:                       make([]pointSolver, 0, 256),
	}
}

// Init builds the constraints of the manifolds of an island. islandManifolds are indices
// in manifolds. Every point goes through the solver marked as resting, the flag is
// persisted with the point.
func (s *ContactSolver) Init(bodies Bodies, manifolds []contact.ContactManifold, points []contact.ContactPoint, islandManifolds []int, dt float64) {
	s.dt = dt
	s.contactManifolds = manifolds
	s.contactPoints = points
	s.manifolds = s.manifolds[:0]
	s.points = s.points[:0]

	for _, m := range islandManifolds {
		external := &manifolds[m]
		if external.PointCount == 0 {
			continue
		}

		body1 := bodies.RigidBody(external.BodyA)
		body2 := bodies.RigidBody(external.BodyB)
		collider1 := bodies.Collider(external.ColliderA)
		collider2 := bodies.Collider(external.ColliderB)
		if body1 == nil || body2 == nil || collider1 == nil || collider2 == nil {
			continue
		}

		manifold := manifoldSolver{
			index:               m,
			body1:               body1,
			body2:               body2,
			inverseMass1:        body1.InverseMass(),
			inverseMass2:        body2.InverseMass(),
			inverseInertia1:     body1.GetInverseInertiaWorld(),
			inverseInertia2:     body2.GetInverseInertiaWorld(),
			pointStart:          len(s.points),
			pointCount:          external.PointCount,
			oldFrictionVector1:  external.FrictionVector1,
			oldFrictionVector2:  external.FrictionVector2,
			friction1Impulse:    external.FrictionImpulse1,
			friction2Impulse:    external.FrictionImpulse2,
			twistImpulse:        external.TwistImpulse,
			frictionCoefficient: ComputeFriction(collider1.Material, collider2.Material),
		}
		restitution := ComputeRestitution(collider1.Material, collider2.Material)

		var frictionPoint1, frictionPoint2 mgl64.Vec3
		for i := external.PointStart; i < external.PointStart+external.PointCount; i++ {
			cp := &points[i]

			p1 := collider1.WorldTransform.Apply(cp.LocalPoint1)
			p2 := collider2.WorldTransform.Apply(cp.LocalPoint2)
			frictionPoint1 = frictionPoint1.Add(p1)
			frictionPoint2 = frictionPoint2.Add(p2)

			point := pointSolver{
				index:              i,
				normal:             cp.Normal,
				r1:                 p1.Sub(body1.CenterOfMass),
				r2:                 p2.Sub(body2.CenterOfMass),
				depth:              cp.Depth,
				isResting:          cp.IsResting,
				penetrationImpulse: cp.PenetrationImpulse,
			}
			point.r1CrossN = point.r1.Cross(point.normal)
			point.r2CrossN = point.r2.Cross(point.normal)
			point.i1TimesR1CrossN = manifold.inverseInertia1.Mul3x1(point.r1CrossN)
			point.i2TimesR2CrossN = manifold.inverseInertia2.Mul3x1(point.r2CrossN)

			k := manifold.inverseMass1 + manifold.inverseMass2 +
				point.r1CrossN.Dot(point.i1TimesR1CrossN) +
				point.r2CrossN.Dot(point.i2TimesR2CrossN)
			point.inverseNormalMass = inverse(k)

			// restitution only for points hitting fast enough
			deltaV := relativeVelocity(body1, body2, point.r1, point.r2)
			if vn := deltaV.Dot(point.normal); vn < -s.restitutionVelocityThreshold {
				point.restitutionBias = restitution * vn
			}

			cp.IsResting = true
			manifold.normal = manifold.normal.Add(point.normal)
			s.points = append(s.points, point)
		}

		count := float64(external.PointCount)
		frictionPoint1 = frictionPoint1.Mul(1 / count)
		frictionPoint2 = frictionPoint2.Mul(1 / count)
		manifold.r1 = frictionPoint1.Sub(body1.CenterOfMass)
		manifold.r2 = frictionPoint2.Sub(body2.CenterOfMass)

		if manifold.normal.LenSqr() > 0 {
			manifold.normal = manifold.normal.Normalize()
		} else {
			manifold.normal = external.Normal
		}

		s.computeFrictionVectors(&manifold, relativeVelocity(body1, body2, manifold.r1, manifold.r2))
		s.manifolds = append(s.manifolds, manifold)
	}
}

// computeFrictionVectors aligns the first tangent with the tangential velocity, and
// computes the effective masses of both tangents and of the twist
func (s *ContactSolver) computeFrictionVectors(m *manifoldSolver, deltaV mgl64.Vec3) {
	tangentVelocity := deltaV.Sub(m.normal.Mul(deltaV.Dot(m.normal)))
	if tangentVelocity.LenSqr() > tangentEpsilon {
		m.frictionVector1 = tangentVelocity.Normalize()
		m.frictionVector2 = m.normal.Cross(m.frictionVector1).Normalize()
	} else {
		m.frictionVector1, m.frictionVector2 = actor.GetTangentBasis(m.normal)
	}

	m.r1CrossT1 = m.r1.Cross(m.frictionVector1)
	m.r1CrossT2 = m.r1.Cross(m.frictionVector2)
	m.r2CrossT1 = m.r2.Cross(m.frictionVector1)
	m.r2CrossT2 = m.r2.Cross(m.frictionVector2)

	linear := m.inverseMass1 + m.inverseMass2
	m.inverseFriction1Mass = inverse(linear +
		m.r1CrossT1.Dot(m.inverseInertia1.Mul3x1(m.r1CrossT1)) +
		m.r2CrossT1.Dot(m.inverseInertia2.Mul3x1(m.r2CrossT1)))
	m.inverseFriction2Mass = inverse(linear +
		m.r1CrossT2.Dot(m.inverseInertia1.Mul3x1(m.r1CrossT2)) +
		m.r2CrossT2.Dot(m.inverseInertia2.Mul3x1(m.r2CrossT2)))
	m.inverseTwistFrictionMass = inverse(
		m.normal.Dot(m.inverseInertia1.Mul3x1(m.normal)) +
			m.normal.Dot(m.inverseInertia2.Mul3x1(m.normal)))
}

// WarmStart applies the impulses carried from the previous frame. Only resting points
// keep theirs; the friction impulse of a manifold with a resting point is projected on
// the new friction vectors.
func (s *ContactSolver) WarmStart() {
	for mi := range s.manifolds {
		m := &s.manifolds[mi]
		hasRestingPoint := false

		for pi := m.pointStart; pi < m.pointStart+m.pointCount; pi++ {
			p := &s.points[pi]
			if !p.isResting {
				p.penetrationImpulse = 0
				continue
			}
			hasRestingPoint = true

			impulse := p.normal.Mul(p.penetrationImpulse)
			applyImpulse(m, impulse, p.r1CrossN.Mul(p.penetrationImpulse), p.r2CrossN.Mul(p.penetrationImpulse))
		}

		if !hasRestingPoint {
			m.friction1Impulse = 0
			m.friction2Impulse = 0
			m.twistImpulse = 0
			continue
		}

		old := m.oldFrictionVector1.Mul(m.friction1Impulse).Add(m.oldFrictionVector2.Mul(m.friction2Impulse))
		m.friction1Impulse = old.Dot(m.frictionVector1)
		m.friction2Impulse = old.Dot(m.frictionVector2)

		friction := m.frictionVector1.Mul(m.friction1Impulse).Add(m.frictionVector2.Mul(m.friction2Impulse))
		applyImpulse(m, friction, m.r1.Cross(friction), m.r2.Cross(friction))

		twist := m.normal.Mul(m.twistImpulse)
		applyImpulse(m, mgl64.Vec3{}, twist, twist)
	}
}

// Solve runs one Gauss-Seidel iteration over the constraints
func (s *ContactSolver) Solve() {
	for mi := range s.manifolds {
		m := &s.manifolds[mi]
		sumPenetrationImpulse := 0.0

		for pi := m.pointStart; pi < m.pointStart+m.pointCount; pi++ {
			p := &s.points[pi]

			// ========== NORMAL ==========
			deltaV := relativeVelocity(m.body1, m.body2, p.r1, p.r2)
			jv := deltaV.Dot(p.normal)

			penetrationBias := 0.0
			if p.depth > s.slop {
				penetrationBias = -(s.baumgarte / s.dt) * (p.depth - s.slop)
			}

			bias := p.restitutionBias
			if !s.isSplitImpulseActive && bias == 0 {
				bias = penetrationBias
			}

			deltaLambda := -(jv + bias) * p.inverseNormalMass
			accumulated := p.penetrationImpulse
			p.penetrationImpulse = math.Max(accumulated+deltaLambda, 0)
			deltaLambda = p.penetrationImpulse - accumulated

			applyImpulse(m, p.normal.Mul(deltaLambda), p.r1CrossN.Mul(deltaLambda), p.r2CrossN.Mul(deltaLambda))
			sumPenetrationImpulse += p.penetrationImpulse

			// ========== SPLIT ==========
			if s.isSplitImpulseActive {
				deltaVSplit := relativeSplitVelocity(m.body1, m.body2, p.r1, p.r2)
				jvSplit := deltaVSplit.Dot(p.normal)

				splitBias := 0.0
				if p.depth > s.slop {
					splitBias = -(s.baumgarteSplit / s.dt) * (p.depth - s.slop)
				}

				deltaLambdaSplit := -(jvSplit + splitBias) * p.inverseNormalMass
				accumulatedSplit := p.penetrationSplitImpulse
				p.penetrationSplitImpulse = math.Max(accumulatedSplit+deltaLambdaSplit, 0)
				deltaLambdaSplit = p.penetrationSplitImpulse - accumulatedSplit

				applySplitImpulse(m, p.normal.Mul(deltaLambdaSplit), p.r1CrossN.Mul(deltaLambdaSplit), p.r2CrossN.Mul(deltaLambdaSplit))
			}
		}

		// ========== FRICTION ==========
		limit := m.frictionCoefficient * sumPenetrationImpulse

		deltaV := relativeVelocity(m.body1, m.body2, m.r1, m.r2)
		deltaLambda := -deltaV.Dot(m.frictionVector1) * m.inverseFriction1Mass
		accumulated := m.friction1Impulse
		m.friction1Impulse = clamp(accumulated+deltaLambda, -limit, limit)
		deltaLambda = m.friction1Impulse - accumulated
		applyImpulse(m, m.frictionVector1.Mul(deltaLambda), m.r1CrossT1.Mul(deltaLambda), m.r2CrossT1.Mul(deltaLambda))

		deltaV = relativeVelocity(m.body1, m.body2, m.r1, m.r2)
		deltaLambda = -deltaV.Dot(m.frictionVector2) * m.inverseFriction2Mass
		accumulated = m.friction2Impulse
		m.friction2Impulse = clamp(accumulated+deltaLambda, -limit, limit)
		deltaLambda = m.friction2Impulse - accumulated
		applyImpulse(m, m.frictionVector2.Mul(deltaLambda), m.r1CrossT2.Mul(deltaLambda), m.r2CrossT2.Mul(deltaLambda))

		// ========== TWIST ==========
		jvTwist := m.body2.AngularVelocity.Sub(m.body1.AngularVelocity).Dot(m.normal)
		deltaLambda = -jvTwist * m.inverseTwistFrictionMass
		accumulated = m.twistImpulse
		m.twistImpulse = clamp(accumulated+deltaLambda, -limit, limit)
		deltaLambda = m.twistImpulse - accumulated
		twist := m.normal.Mul(deltaLambda)
		applyImpulse(m, mgl64.Vec3{}, twist, twist)
	}
}

// StoreImpulses writes the accumulated impulses back to the persistent contacts
func (s *ContactSolver) StoreImpulses() {
	for pi := range s.points {
		p := &s.points[pi]
		s.contactPoints[p.index].PenetrationImpulse = p.penetrationImpulse
	}

	for mi := range s.manifolds {
		m := &s.manifolds[mi]
		external := &s.contactManifolds[m.index]
		external.FrictionImpulse1 = m.friction1Impulse
		external.FrictionImpulse2 = m.friction2Impulse
		external.TwistImpulse = m.twistImpulse
		external.FrictionVector1 = m.frictionVector1
		external.FrictionVector2 = m.frictionVector2
	}
}

// relativeVelocity returns the velocity of the contact point on body2 relative to body1
func relativeVelocity(body1, body2 *actor.RigidBody, r1, r2 mgl64.Vec3) mgl64.Vec3 {
	v1 := body1.Velocity.Add(body1.AngularVelocity.Cross(r1))
	v2 := body2.Velocity.Add(body2.AngularVelocity.Cross(r2))
	return v2.Sub(v1)
}

func relativeSplitVelocity(body1, body2 *actor.RigidBody, r1, r2 mgl64.Vec3) mgl64.Vec3 {
	v1 := body1.SplitVelocity.Add(body1.SplitAngularVelocity.Cross(r1))
	v2 := body2.SplitVelocity.Add(body2.SplitAngularVelocity.Cross(r2))
	return v2.Sub(v1)
}

// applyImpulse pushes body2 along linear and body1 against it. angular1 and angular2 are
// the angular impulses before the inverse inertia is applied.
func applyImpulse(m *manifoldSolver, linear, angular1, angular2 mgl64.Vec3) {
	if m.inverseMass1 > 0 {
		m.body1.Velocity = m.body1.Velocity.Sub(mulElem(linear.Mul(m.inverseMass1), m.body1.LinearLockAxisFactor))
		m.body1.AngularVelocity = m.body1.AngularVelocity.Sub(mulElem(m.inverseInertia1.Mul3x1(angular1), m.body1.AngularLockAxisFactor))
	}
	if m.inverseMass2 > 0 {
		m.body2.Velocity = m.body2.Velocity.Add(mulElem(linear.Mul(m.inverseMass2), m.body2.LinearLockAxisFactor))
		m.body2.AngularVelocity = m.body2.AngularVelocity.Add(mulElem(m.inverseInertia2.Mul3x1(angular2), m.body2.AngularLockAxisFactor))
	}
}

func applySplitImpulse(m *manifoldSolver, linear, angular1, angular2 mgl64.Vec3) {
	if m.inverseMass1 > 0 {
		m.body1.SplitVelocity = m.body1.SplitVelocity.Sub(mulElem(linear.Mul(m.inverseMass1), m.body1.LinearLockAxisFactor))
		m.body1.SplitAngularVelocity = m.body1.SplitAngularVelocity.Sub(mulElem(m.inverseInertia1.Mul3x1(angular1), m.body1.AngularLockAxisFactor))
	}
	if m.inverseMass2 > 0 {
		m.body2.SplitVelocity = m.body2.SplitVelocity.Add(mulElem(linear.Mul(m.inverseMass2), m.body2.LinearLockAxisFactor))
		m.body2.SplitAngularVelocity = m.body2.SplitAngularVelocity.Add(mulElem(m.inverseInertia2.Mul3x1(angular2), m.body2.AngularLockAxisFactor))
	}
}

func mulElem(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
