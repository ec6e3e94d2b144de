package impulse

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
)

// RaycastHit is the hit of a collider by a world ray
type RaycastHit struct {
	actor.RaycastHit
	Body     arena.Handle
	Collider arena.Handle
}

// RaycastCallback receives the hits in no particular order. It returns the new max fraction
// of the ray: 0 stops the raycast, the hit fraction keeps only the closer hits, a negative
// value ignores the hit.
type RaycastCallback func(hit RaycastHit) float64

// Raycast tests the ray against the colliders whose category matches categoryMask
func (w *World) Raycast(ray actor.Ray, categoryMask uint16, callback RaycastCallback) {
	w.broadPhase.Raycast(ray, func(r actor.Ray, proxyID int) float64 {
		h := w.proxies[proxyID]
		collider := w.Collider(h)
		if collider == nil || collider.CategoryBits&categoryMask == 0 {
			return -1
		}

		hit, ok := collider.Raycast(r)
		if !ok {
			return -1
		}
		return callback(RaycastHit{RaycastHit: hit, Body: collider.Body, Collider: h})
	})
}

// RaycastClosest returns the closest hit of the ray
func (w *World) RaycastClosest(ray actor.Ray, categoryMask uint16) (RaycastHit, bool) {
	var closest RaycastHit
	found := false

	w.Raycast(ray, categoryMask, func(hit RaycastHit) float64 {
		closest = hit
		found = true
		return hit.Fraction
	})

	return closest, found
}
