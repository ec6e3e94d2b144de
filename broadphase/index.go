// Package broadphase maintains the fat bounding volumes of colliders and reports the
// candidate pairs whose volumes started to overlap.
package broadphase

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// NullProxy is returned for missing nodes
const NullProxy = -1

// QueryCallback is called for every proxy overlapping a query. Returning false stops the query.
type QueryCallback func(proxyID int) bool

// RaycastCallback is called for every proxy whose fat AABB is hit by the ray.
// It returns the new max fraction of the ray: 0 stops the raycast, a negative value ignores
// the proxy and keeps the current fraction.
type RaycastCallback func(ray actor.Ray, proxyID int) float64

// SpatialIndex stores fattened AABBs identified by proxy ids
type SpatialIndex interface {
	// AddObject inserts a fattened copy of aabb and returns its proxy id
	AddObject(aabb actor.AABB, payload int) int
	RemoveObject(proxyID int)
	// UpdateObject refits the proxy if aabb escaped its fat AABB (or forceReinsert is set).
	// It returns true when the proxy was reinserted.
	UpdateObject(proxyID int, aabb actor.AABB, displacement mgl64.Vec3, forceReinsert bool) bool
	FatAABB(proxyID int) actor.AABB
	Payload(proxyID int) int
	Query(aabb actor.AABB, callback QueryCallback)
	Raycast(ray actor.Ray, callback RaycastCallback)
}

// fatten grows the tight aabb by the margin and extends it along the predicted displacement
func fatten(aabb actor.AABB, margin float64, displacement mgl64.Vec3, multiplier float64) actor.AABB {
	return aabb.Fatten(margin).Extend(displacement.Mul(multiplier))
}
