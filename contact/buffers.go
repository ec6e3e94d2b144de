package contact

import (
	"github.com/akmonengine/impulse/config"
	"github.com/go-gl/mathgl/mgl64"
)

type frame struct {
	pairs     []ContactPair
	manifolds []ContactManifold
	points    []ContactPoint
	index     map[PairID]int
}

func newFrame() frame {
	return frame{
		pairs:     make([]ContactPair, 0, 64),
		manifolds: make([]ContactManifold, 0, 64),
		points:    make([]ContactPoint, 0, 256),
		index:     make(map[PairID]int, 64),
	}
}

func (f *frame) reset() {
	f.pairs = f.pairs[:0]
	f.manifolds = f.manifolds[:0]
	f.points = f.points[:0]
	clear(f.index)
}

// Buffers holds the contacts of the current and the previous frame. Swap exchanges
// them, so that both keep their memory from one step to the next.
type Buffers struct {
	frames  [2]frame
	current int
	// lost pairs survive Swap until they are reported
	lost []ContactPair

	similarAngle          float64
	persistentDistanceSqr float64
}

func NewBuffers(cfg config.Config) *Buffers {
	return &Buffers{
		frames:                [2]frame{newFrame(), newFrame()},
		lost:                  make([]ContactPair, 0, 16),
		similarAngle:          cfg.ContactManifoldSimilarAngle,
		persistentDistanceSqr: cfg.PersistentContactDistance * cfg.PersistentContactDistance,
	}
}

// Swap makes the current frame the previous one and clears the new current frame
func (b *Buffers) Swap() {
	b.current ^= 1
	b.frames[b.current].reset()
}

func (b *Buffers) Pairs() []ContactPair {
	return b.frames[b.current].pairs
}

func (b *Buffers) Manifolds() []ContactManifold {
	return b.frames[b.current].manifolds
}

func (b *Buffers) Points() []ContactPoint {
	return b.frames[b.current].points
}

// LostPairs returns the pairs that stopped colliding since the last ClearLostPairs
func (b *Buffers) LostPairs() []ContactPair {
	return b.lost
}

// ClearLostPairs forgets the lost pairs once they were reported
func (b *Buffers) ClearLostPairs() {
	b.lost = b.lost[:0]
}

// PreviousPair returns the contact pair of an id in the previous frame
func (b *Buffers) PreviousPair(id PairID) (ContactPair, bool) {
	previous := &b.frames[b.current^1]
	i, ok := previous.index[id]
	if !ok {
		return ContactPair{}, false
	}
	return previous.pairs[i], true
}

// ForgetPair removes a destroyed pair from the frames, so that a new pair reusing its
// id does not inherit its impulses
func (b *Buffers) ForgetPair(id PairID) {
	delete(b.frames[0].index, id)
	delete(b.frames[1].index, id)
}

// AddLostPair records a pair that stopped colliding, or that was destroyed while colliding
func (b *Buffers) AddLostPair(pair *OverlappingPair) {
	b.lost = append(b.lost, ContactPair{
		ID:                       pair.ID,
		ColliderA:                pair.ColliderA,
		ColliderB:                pair.ColliderB,
		BodyA:                    pair.BodyA,
		BodyB:                    pair.BodyB,
		IsTrigger:                pair.IsTrigger,
		CollidingInPreviousFrame: true,
		IsLost:                   true,
	})
}

// Build copies the reduced manifolds of the detector into the current frame. A manifold
// matching a manifold of the previous frame inherits its friction state, and a point
// close to a previous point inherits its impulse.
func (b *Buffers) Build(d *Detector) {
	current := &b.frames[b.current]
	previous := &b.frames[b.current^1]

	for i := range d.pairs {
		p := &d.pairs[i]

		contactPair := ContactPair{
			ID:                       p.pair.ID,
			ColliderA:                p.pair.ColliderA,
			ColliderB:                p.pair.ColliderB,
			BodyA:                    p.pair.BodyA,
			BodyB:                    p.pair.BodyB,
			ManifoldStart:            len(current.manifolds),
			PointStart:               len(current.points),
			IsTrigger:                p.pair.IsTrigger,
			CollidingInPreviousFrame: p.pair.CollidingInPreviousFrame,
		}

		previousIndex, hasPrevious := previous.index[p.pair.ID]

		for k := 0; k < p.manifoldCount; k++ {
			potential := &d.manifolds[p.manifolds[k]]
			if len(potential.points) == 0 {
				continue
			}

			manifold := ContactManifold{
				BodyA:      p.pair.BodyA,
				BodyB:      p.pair.BodyB,
				ColliderA:  p.pair.ColliderA,
				ColliderB:  p.pair.ColliderB,
				PointStart: len(current.points),
				PointCount: len(potential.points),
				Normal:     d.points[potential.points[0]].Normal,
			}

			var old *ContactManifold
			if hasPrevious {
				old = b.matchManifold(previous, &previous.pairs[previousIndex], manifold.Normal)
			}
			if old != nil {
				manifold.FrictionVector1 = old.FrictionVector1
				manifold.FrictionVector2 = old.FrictionVector2
				manifold.FrictionImpulse1 = old.FrictionImpulse1
				manifold.FrictionImpulse2 = old.FrictionImpulse2
				manifold.TwistImpulse = old.TwistImpulse
			}

			for _, index := range potential.points {
				info := &d.points[index]
				point := ContactPoint{
					Normal:      info.Normal,
					LocalPoint1: info.LocalPoint1,
					LocalPoint2: info.LocalPoint2,
					Depth:       info.Depth,
				}
				if old != nil {
					if oldPoint := b.matchPoint(previous, old, info.LocalPoint1); oldPoint != nil {
						point.PenetrationImpulse = oldPoint.PenetrationImpulse
						point.IsResting = oldPoint.IsResting
					}
				}
				current.points = append(current.points, point)
			}

			current.manifolds = append(current.manifolds, manifold)
			contactPair.ManifoldCount++
			contactPair.PointCount += manifold.PointCount
		}

		current.index[contactPair.ID] = len(current.pairs)
		current.pairs = append(current.pairs, contactPair)
	}
}

// matchManifold returns the first manifold of the previous pair with a similar normal
func (b *Buffers) matchManifold(previous *frame, pair *ContactPair, normal mgl64.Vec3) *ContactManifold {
	for m := pair.ManifoldStart; m < pair.ManifoldStart+pair.ManifoldCount; m++ {
		if previous.manifolds[m].Normal.Dot(normal) >= b.similarAngle {
			return &previous.manifolds[m]
		}
	}
	return nil
}

// matchPoint returns the closest previous point within the persistent contact distance
func (b *Buffers) matchPoint(previous *frame, manifold *ContactManifold, localPoint1 mgl64.Vec3) *ContactPoint {
	var closest *ContactPoint
	minDistance := b.persistentDistanceSqr

	for i := manifold.PointStart; i < manifold.PointStart+manifold.PointCount; i++ {
		distance := previous.points[i].LocalPoint1.Sub(localPoint1).LenSqr()
		if distance <= minDistance {
			minDistance = distance
			closest = &previous.points[i]
		}
	}
	return closest
}
