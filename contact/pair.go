// Package contact turns narrow-phase results into persistent contact manifolds.
//
// The broad phase keeps one OverlappingPair per pair of fat AABBs that overlap. Every
// step the Detector clusters the points of the colliding pairs into potential manifolds
// and reduces them, then Buffers copies them into the current frame, carrying the
// impulses of the previous frame over to the matching points.
package contact

import (
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/narrowphase"
	"github.com/go-gl/mathgl/mgl64"
)

// PairID identifies a pair of broad-phase proxies, whatever their order
type PairID uint64

// NewPairID combines two non-negative proxy ids with Szudzik's pairing function
func NewPairID(a, b int) PairID {
	high, low := uint64(max(a, b)), uint64(min(a, b))
	return PairID(high*high + high + low)
}

// OverlappingPair is a pair of colliders whose fat AABBs overlap.
// ColliderA always holds the shape with the lowest actor.ShapeType.
type OverlappingPair struct {
	ID        PairID
	ColliderA arena.Handle
	ColliderB arena.Handle
	BodyA     arena.Handle
	BodyB     arena.Handle

	Algorithm narrowphase.AlgorithmType
	// IsConvex is false when one of the shapes is a triangle mesh
	IsConvex  bool
	IsTrigger bool

	CollidingInPreviousFrame bool
	CollidingInCurrentFrame  bool
	// NeedToTestOverlap is cleared when the broad phase reports the pair again, a pair
	// still flagged at the end of the broad phase gets an explicit fat AABB test
	NeedToTestOverlap bool

	// SeparatingAxis caches the last GJK direction of convex pairs
	SeparatingAxis mgl64.Vec3
}

// OverlappingPairs stores the pairs densely, with an index by PairID
type OverlappingPairs struct {
	pairs []OverlappingPair
	index map[PairID]int
}

func NewOverlappingPairs() *OverlappingPairs {
	return &OverlappingPairs{
		pairs: make([]OverlappingPair, 0, 64),
		index: make(map[PairID]int, 64),
	}
}

// Add inserts a pair, or returns the index of the existing pair with the same ID
func (op *OverlappingPairs) Add(pair OverlappingPair) (int, bool) {
	if i, ok := op.index[pair.ID]; ok {
		return i, false
	}

	op.pairs = append(op.pairs, pair)
	i := len(op.pairs) - 1
	op.index[pair.ID] = i

	return i, true
}

// Remove deletes a pair, the last pair takes its index
func (op *OverlappingPairs) Remove(id PairID) bool {
	i, ok := op.index[id]
	if !ok {
		return false
	}

	last := len(op.pairs) - 1
	if i != last {
		op.pairs[i] = op.pairs[last]
		op.index[op.pairs[i].ID] = i
	}
	op.pairs[last] = OverlappingPair{}
	op.pairs = op.pairs[:last]
	delete(op.index, id)

	return true
}

// Index returns the position of a pair in the dense array
func (op *OverlappingPairs) Index(id PairID) (int, bool) {
	i, ok := op.index[id]
	return i, ok
}

// Get returns the pair of an id, the pointer is invalidated by Add and Remove
func (op *OverlappingPairs) Get(id PairID) *OverlappingPair {
	i, ok := op.index[id]
	if !ok {
		return nil
	}
	return &op.pairs[i]
}

// At returns the pair at index i
func (op *OverlappingPairs) At(i int) *OverlappingPair {
	return &op.pairs[i]
}

func (op *OverlappingPairs) Len() int {
	return len(op.pairs)
}
