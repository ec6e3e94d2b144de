// Package constraint solves the contact constraints of an island with sequential impulses.
package constraint

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"golang.org/x/exp/constraints"
)

// Bodies resolves the handles stored in the contact manifolds
type Bodies interface {
	RigidBody(h arena.Handle) *actor.RigidBody
	Collider(h arena.Handle) *actor.Collider
}

// ComputeRestitution keeps the bounciest material: if one bounces, it bounces
func ComputeRestitution(matA, matB actor.Material) float64 {
	return math.Max(matA.Bounciness, matB.Bounciness)
}

// ComputeFriction mixes the friction coefficients with a geometric mean
func ComputeFriction(matA, matB actor.Material) float64 {
	return math.Sqrt(matA.Friction * matB.Friction)
}

func clamp[T constraints.Float](value, low, high T) T {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// inverse returns 1/k, or 0 when k cannot be inverted
func inverse[T constraints.Float](k T) T {
	if k <= 0 {
		return 0
	}
	return 1 / k
}
