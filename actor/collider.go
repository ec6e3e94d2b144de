package actor

import (
	"github.com/akmonengine/impulse/arena"
	"github.com/go-gl/mathgl/mgl64"
)

// NoProxy marks a collider that is not registered in the broad phase
const NoProxy = -1

// Material describes the surface of a collider
type Material struct {
	Density    float64
	Friction   float64 // coefficient, mixed with a geometric mean
	Bounciness float64 // 0= no rebound, 1= perfect restitution
}

// Collider attaches a shape to a body
type Collider struct {
	Body           arena.Handle
	Shape          ShapeInterface
	LocalTransform Transform
	Material       Material

	// The collider is tested against another one only if the category of each matches the mask of the other
	CategoryBits        uint16
	CollideWithMaskBits uint16
	// Triggers report overlaps but never generate contacts
	IsTrigger bool

	ProxyID        int
	WorldTransform Transform
	WorldAABB      AABB
}

// NewCollider creates a collider colliding with everything
func NewCollider(shape ShapeInterface, localTransform Transform, material Material) *Collider {
	return &Collider{
		Shape:               shape,
		LocalTransform:      localTransform.normalized(),
		Material:            material,
		CategoryBits:        0x0001,
		CollideWithMaskBits: 0xFFFF,
		ProxyID:             NoProxy,
	}
}

// UpdateTransform recomputes the world transform and bounds from the body transform
func (c *Collider) UpdateTransform(bodyTransform Transform) {
	c.WorldTransform = bodyTransform.Mul(c.LocalTransform)
	c.WorldAABB = c.Shape.ComputeAABB(c.WorldTransform)
}

// CanCollideWith applies the category and mask filter, in both directions
func (c *Collider) CanCollideWith(other *Collider) bool {
	return c.CategoryBits&other.CollideWithMaskBits != 0 && other.CategoryBits&c.CollideWithMaskBits != 0
}

// Raycast tests a world space ray against the collider
func (c *Collider) Raycast(ray Ray) (RaycastHit, bool) {
	hit, ok := c.Shape.Raycast(ray.ToLocal(c.WorldTransform))
	if !ok {
		return RaycastHit{}, false
	}
	return hit.ToWorld(c.WorldTransform), true
}

// offCenterShape is implemented by the shapes whose centroid is not their local origin
type offCenterShape interface {
	LocalCenterOfMass() mgl64.Vec3
}

// MassContribution returns the mass, local center and local inertia tensor of the collider
// in its body space. The tensor is expressed about the returned center.
func (c *Collider) MassContribution() (float64, mgl64.Vec3, mgl64.Mat3) {
	mass := c.Shape.ComputeMass(c.Material.Density)
	inertia := c.Shape.ComputeInertia(mass)

	// rotate the shape tensor into body space
	r := c.LocalTransform.Rotation.Mat4().Mat3()
	inertia = r.Mul3(inertia).Mul3(r.Transpose())

	center := c.LocalTransform.Position
	if shape, ok := c.Shape.(offCenterShape); ok {
		center = c.LocalTransform.Apply(shape.LocalCenterOfMass())
	}

	return mass, center, inertia
}
