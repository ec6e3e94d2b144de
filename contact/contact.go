package contact

import (
	"github.com/akmonengine/impulse/arena"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxManifoldsPerPair is the number of manifolds a pair keeps after reduction
	MaxManifoldsPerPair = 3
	// MaxPointsPerManifold is the number of points a manifold keeps after reduction
	MaxPointsPerManifold = 4

	maxPotentialManifolds = 12
	maxPotentialPoints    = 256
)

// ContactPair is a colliding pair of the current frame
type ContactPair struct {
	ID        PairID
	ColliderA arena.Handle
	ColliderB arena.Handle
	BodyA     arena.Handle
	BodyB     arena.Handle

	ManifoldStart int
	ManifoldCount int
	PointStart    int
	PointCount    int

	IsTrigger                bool
	CollidingInPreviousFrame bool
	// IsLost marks a pair that stopped colliding because it was destroyed
	IsLost bool
}

// ContactManifold is a set of points sharing one normal
type ContactManifold struct {
	BodyA     arena.Handle
	BodyB     arena.Handle
	ColliderA arena.Handle
	ColliderB arena.Handle

	PointStart int
	PointCount int

	// Normal is the world normal from ColliderA to ColliderB
	Normal mgl64.Vec3

	FrictionVector1  mgl64.Vec3
	FrictionVector2  mgl64.Vec3
	FrictionImpulse1 float64
	FrictionImpulse2 float64
	TwistImpulse     float64

	IslandIndex int
}

// ContactPoint is one point of a manifold, local points are expressed in the frame of
// their collider
type ContactPoint struct {
	Normal      mgl64.Vec3
	LocalPoint1 mgl64.Vec3
	LocalPoint2 mgl64.Vec3
	Depth       float64

	PenetrationImpulse float64
	// IsResting is set once the point went through the solver, a resting point keeps
	// its impulse and gets no restitution
	IsResting bool
}
