package broadphase

import (
	"slices"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Pair is a candidate pair of proxies, ProxyA < ProxyB
type Pair struct {
	ProxyA int
	ProxyB int
}

// BroadPhase keeps the proxies moved since the last pair computation and
// reports the candidate pairs they are involved in.
type BroadPhase struct {
	index SpatialIndex

	moveBuffer []int
	pairBuffer []Pair
}

// New creates a broad phase over a spatial index
func New(index SpatialIndex) *BroadPhase {
	return &BroadPhase{
		index:      index,
		moveBuffer: make([]int, 0, 64),
		pairBuffer: make([]Pair, 0, 64),
	}
}

// Index returns the underlying spatial index
func (bp *BroadPhase) Index() SpatialIndex {
	return bp.index
}

// AddProxy registers a new AABB, it is reported in the next pair computation
func (bp *BroadPhase) AddProxy(aabb actor.AABB, payload int) int {
	id := bp.index.AddObject(aabb, payload)
	bp.moveBuffer = append(bp.moveBuffer, id)

	return id
}

// RemoveProxy unregisters a proxy
func (bp *BroadPhase) RemoveProxy(proxyID int) {
	bp.unbufferMove(proxyID)
	bp.index.RemoveObject(proxyID)
}

// UpdateProxy refits the proxy and marks it as moved when it was reinserted
func (bp *BroadPhase) UpdateProxy(proxyID int, aabb actor.AABB, displacement mgl64.Vec3, forceReinsert bool) {
	if bp.index.UpdateObject(proxyID, aabb, displacement, forceReinsert) {
		bp.moveBuffer = append(bp.moveBuffer, proxyID)
	}
}

// TouchProxy reports the proxy in the next pair computation without moving it
func (bp *BroadPhase) TouchProxy(proxyID int) {
	bp.moveBuffer = append(bp.moveBuffer, proxyID)
}

func (bp *BroadPhase) unbufferMove(proxyID int) {
	for i := 0; i < len(bp.moveBuffer); {
		if bp.moveBuffer[i] == proxyID {
			bp.moveBuffer[i] = bp.moveBuffer[len(bp.moveBuffer)-1]
			bp.moveBuffer = bp.moveBuffer[:len(bp.moveBuffer)-1]
			continue
		}
		i++
	}
}

// MovedCount returns the number of proxies waiting for the next pair computation
func (bp *BroadPhase) MovedCount() int {
	return len(bp.moveBuffer)
}

// ComputeOverlappingPairs queries the index with every moved proxy and calls callback once per
// distinct candidate pair, in increasing (ProxyA, ProxyB) order. The move buffer is cleared.
func (bp *BroadPhase) ComputeOverlappingPairs(callback func(pair Pair)) {
	bp.pairBuffer = bp.pairBuffer[:0]

	for _, queryID := range bp.moveBuffer {
		fat := bp.index.FatAABB(queryID)
		bp.index.Query(fat, func(proxyID int) bool {
			if proxyID == queryID {
				return true
			}

			pair := Pair{ProxyA: min(proxyID, queryID), ProxyB: max(proxyID, queryID)}
			bp.pairBuffer = append(bp.pairBuffer, pair)
			return true
		})
	}
	bp.moveBuffer = bp.moveBuffer[:0]

	slices.SortFunc(bp.pairBuffer, func(a, b Pair) int {
		if a.ProxyA != b.ProxyA {
			return a.ProxyA - b.ProxyA
		}
		return a.ProxyB - b.ProxyB
	})
	bp.pairBuffer = slices.Compact(bp.pairBuffer)

	for _, pair := range bp.pairBuffer {
		callback(pair)
	}
}

// TestOverlap tests the fat AABBs of two proxies
func (bp *BroadPhase) TestOverlap(proxyA, proxyB int) bool {
	return bp.index.FatAABB(proxyA).Overlaps(bp.index.FatAABB(proxyB))
}

func (bp *BroadPhase) FatAABB(proxyID int) actor.AABB {
	return bp.index.FatAABB(proxyID)
}

func (bp *BroadPhase) Payload(proxyID int) int {
	return bp.index.Payload(proxyID)
}

func (bp *BroadPhase) Query(aabb actor.AABB, callback QueryCallback) {
	bp.index.Query(aabb, callback)
}

func (bp *BroadPhase) Raycast(ray actor.Ray, callback RaycastCallback) {
	bp.index.Raycast(ray, callback)
}
