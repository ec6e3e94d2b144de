package actor

import (
	"math"

	"github.com/akmonengine/impulse/arena"
	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic

	// BodyTypeKinematic bodies move with their velocity only
	// They push dynamic bodies but collisions never change their velocity
	BodyTypeKinematic
)

func (t BodyType) String() string {
	switch t {
	case BodyTypeDynamic:
		return "dynamic"
	case BodyTypeStatic:
		return "static"
	case BodyTypeKinematic:
		return "kinematic"
	}
	return "unknown"
}

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	// Spatial properties
	PreviousTransform Transform
	Transform         Transform
	LocalCenterOfMass mgl64.Vec3
	CenterOfMass      mgl64.Vec3 // world space

	// Linear motion
	Velocity mgl64.Vec3 // Linear velocity (m/s)
	// Angular motion
	AngularVelocity mgl64.Vec3 // rad/s

	// Position correction velocities of the split impulse, never part of the momentum
	SplitVelocity        mgl64.Vec3
	SplitAngularVelocity mgl64.Vec3

	InertiaLocal        mgl64.Mat3
	InverseInertiaLocal mgl64.Mat3
	mass                float64
	inverseMass         float64

	LinearDamping  float64 // typical: 0.01
	AngularDamping float64 // typical: 0.05
	// 0 locks the axis, 1 leaves it free
	LinearLockAxisFactor  mgl64.Vec3
	AngularLockAxisFactor mgl64.Vec3
	GravityEnabled        bool

	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	IsSleeping       bool
	IsAllowedToSleep bool
	SleepTimer       float64
	Enabled          bool

	BodyType BodyType // Dynamic, Static or Kinematic

	Colliders []arena.Handle
}

// NewRigidBody creates a new rigid body with a unit mass.
// The mass properties are recomputed from the colliders once they are attached.
func NewRigidBody(transform Transform, bodyType BodyType) *RigidBody {
	transform = transform.normalized()

	rb := &RigidBody{
		PreviousTransform:     transform,
		Transform:             transform,
		CenterOfMass:          transform.Position,
		LinearLockAxisFactor:  mgl64.Vec3{1, 1, 1},
		AngularLockAxisFactor: mgl64.Vec3{1, 1, 1},
		GravityEnabled:        true,
		IsAllowedToSleep:      true,
		Enabled:               true,
		BodyType:              bodyType,
	}
	rb.SetMassProperties(1.0, mgl64.Vec3{}, mgl64.Ident3())

	return rb
}

// SetMassProperties sets the mass, the local center of mass and the local inertia tensor.
// Static and kinematic bodies keep an infinite mass.
func (rb *RigidBody) SetMassProperties(mass float64, localCenterOfMass mgl64.Vec3, inertiaLocal mgl64.Mat3) {
	rb.LocalCenterOfMass = localCenterOfMass
	rb.UpdateCenterOfMass()

	if rb.BodyType != BodyTypeDynamic {
		rb.mass = math.Inf(1)
		rb.inverseMass = 0
		rb.InertiaLocal = mgl64.Mat3{}
		rb.InverseInertiaLocal = mgl64.Mat3{}
		return
	}

	if mass <= 0 {
		mass = 1.0
	}
	rb.mass = mass
	rb.inverseMass = 1.0 / mass
	rb.InertiaLocal = inertiaLocal

	if math.Abs(inertiaLocal.Det()) > 1e-12 {
		rb.InverseInertiaLocal = inertiaLocal.Inv()
	} else {
		rb.InverseInertiaLocal = mgl64.Mat3{}
	}
}

// SetBodyType changes the type and resets the mass properties accordingly
func (rb *RigidBody) SetBodyType(bodyType BodyType, mass float64, inertiaLocal mgl64.Mat3) {
	rb.BodyType = bodyType
	rb.SetMassProperties(mass, rb.LocalCenterOfMass, inertiaLocal)
	if bodyType == BodyTypeStatic {
		rb.Velocity = mgl64.Vec3{}
		rb.AngularVelocity = mgl64.Vec3{}
	}
	rb.Awake()
}

func (rb *RigidBody) Mass() float64 {
	return rb.mass
}

// InverseMass returns 0 for static and kinematic bodies
func (rb *RigidBody) InverseMass() float64 {
	return rb.inverseMass
}

// IsActive reports whether the body moves this step: enabled, awake and not static
func (rb *RigidBody) IsActive() bool {
	return rb.Enabled && !rb.IsSleeping && rb.BodyType != BodyTypeStatic
}

// UpdateCenterOfMass recomputes the world center of mass from the transform
func (rb *RigidBody) UpdateCenterOfMass() {
	rb.CenterOfMass = rb.Transform.Apply(rb.LocalCenterOfMass)
}

// UpdateSleepTimer accumulates the time spent below both velocity thresholds and returns it
func (rb *RigidBody) UpdateSleepTimer(dt float64, linearThreshold float64, angularThreshold float64) float64 {
	if !rb.IsAllowedToSleep ||
		rb.Velocity.LenSqr() > linearThreshold*linearThreshold ||
		rb.AngularVelocity.LenSqr() > angularThreshold*angularThreshold {
		rb.SleepTimer = 0.0
		return 0.0
	}

	rb.SleepTimer += dt
	return rb.SleepTimer
}

func (rb *RigidBody) Sleep() {
	if rb.BodyType == BodyTypeStatic {
		return
	}

	rb.IsSleeping = true
	rb.SleepTimer = 0.0

	rb.ClearForces()
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
	rb.SplitVelocity = mgl64.Vec3{}
	rb.SplitAngularVelocity = mgl64.Vec3{}
}

func (rb *RigidBody) Awake() {
	rb.IsSleeping = false
	rb.SleepTimer = 0.0
}

// IntegrateVelocity applies gravity, forces and damping
func (rb *RigidBody) IntegrateVelocity(dt float64, gravity mgl64.Vec3) {
	if rb.BodyType != BodyTypeDynamic || !rb.IsActive() {
		return
	}

	// ========== LINEAR ==========
	acceleration := rb.accumulatedForce.Mul(rb.inverseMass)
	if rb.GravityEnabled {
		acceleration = acceleration.Add(gravity)
	}
	rb.Velocity = rb.Velocity.Add(mulElem(acceleration.Mul(dt), rb.LinearLockAxisFactor))

	// ========== ANGULAR ==========
	angularAcceleration := rb.GetInverseInertiaWorld().Mul3x1(rb.accumulatedTorque)
	rb.AngularVelocity = rb.AngularVelocity.Add(mulElem(angularAcceleration.Mul(dt), rb.AngularLockAxisFactor))

	// ========== DAMPING ==========
	rb.Velocity = rb.Velocity.Mul(math.Exp(-rb.LinearDamping * dt))
	rb.AngularVelocity = rb.AngularVelocity.Mul(math.Exp(-rb.AngularDamping * dt))
}

// IntegratePosition moves the center of mass with the solved and split velocities,
// then consumes the split velocities and the accumulated forces.
func (rb *RigidBody) IntegratePosition(dt float64) {
	if !rb.IsActive() {
		return
	}

	rb.PreviousTransform = rb.Transform

	linear := rb.Velocity.Add(rb.SplitVelocity)
	angular := rb.AngularVelocity.Add(rb.SplitAngularVelocity)

	rb.CenterOfMass = rb.CenterOfMass.Add(linear.Mul(dt))

	// ========== UPDATE QUATERNION ==========
	omegaQuat := mgl64.Quat{V: angular, W: 0}
	qDot := omegaQuat.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.Rotation = rb.Transform.Rotation.Add(qDot.Scale(dt)).Normalize()
	rb.Transform.InverseRotation = rb.Transform.Rotation.Inverse()

	// the body origin follows the center of mass
	rb.Transform.Position = rb.CenterOfMass.Sub(rb.Transform.Rotation.Rotate(rb.LocalCenterOfMass))

	rb.SplitVelocity = mgl64.Vec3{}
	rb.SplitAngularVelocity = mgl64.Vec3{}
	rb.ClearForces()
}

// SetTransform teleports the body
func (rb *RigidBody) SetTransform(transform Transform) {
	rb.Transform = transform.normalized()
	rb.PreviousTransform = rb.Transform
	rb.UpdateCenterOfMass()
	rb.Awake()
}

// AddForce applies a force in N at the center of mass
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if rb.BodyType != BodyTypeDynamic {
		return
	}
	rb.Awake()
	rb.accumulatedForce = rb.accumulatedForce.Add(force)
}

// AddForceAtPoint applies a force in N at a world point
func (rb *RigidBody) AddForceAtPoint(force mgl64.Vec3, point mgl64.Vec3) {
	if rb.BodyType != BodyTypeDynamic {
		return
	}
	rb.AddForce(force)
	rb.accumulatedTorque = rb.accumulatedTorque.Add(point.Sub(rb.CenterOfMass).Cross(force))
}

// AddTorque applies a torque in N⋅m
func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if rb.BodyType != BodyTypeDynamic {
		return
	}
	rb.Awake()
	rb.accumulatedTorque = rb.accumulatedTorque.Add(torque)
}

func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{0, 0, 0}
	rb.accumulatedTorque = mgl64.Vec3{0, 0, 0}
}

// GetInertiaWorld returns the inertia tensor in world space
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	// I_world = R * I_local * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InertiaLocal).Mul3(R.Transpose())
}

// GetInverseInertiaWorld returns a zero tensor for static and kinematic bodies
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if rb.BodyType != BodyTypeDynamic {
		return mgl64.Mat3{}
	}

	// I_world^(-1) = R * I_local^(-1) * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}

// VelocityAtPoint returns the velocity of a world point attached to the body
func (rb *RigidBody) VelocityAtPoint(point mgl64.Vec3) mgl64.Vec3 {
	return rb.Velocity.Add(rb.AngularVelocity.Cross(point.Sub(rb.CenterOfMass)))
}

func mulElem(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
