package contact

import (
	"math"
	"slices"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/narrowphase"
	"github.com/go-gl/mathgl/mgl64"
)

type potentialManifold struct {
	// indices in Detector.points
	points []int
}

type potentialPair struct {
	pair       OverlappingPair
	transform1 actor.Transform

	manifolds     [maxPotentialManifolds]int
	manifoldCount int
}

// Detector clusters the contact points of the colliding pairs into manifolds.
// Its buffers are reused from one step to the next.
type Detector struct {
	similarAngle         float64
	duplicateDistanceSqr float64

	points    []narrowphase.ContactPointInfo
	manifolds []potentialManifold
	pairs     []potentialPair
	index     map[PairID]int
}

func NewDetector(cfg config.Config) *Detector {
	return &Detector{
		similarAngle:         cfg.ContactManifoldSimilarAngle,
		duplicateDistanceSqr: cfg.DuplicatePointDistance * cfg.DuplicatePointDistance,
		points:               make([]narrowphase.ContactPointInfo, 0, 256),
		manifolds:            make([]potentialManifold, 0, 64),
		pairs:                make([]potentialPair, 0, 64),
		index:                make(map[PairID]int, 64),
	}
}

// Reset forgets the pairs of the previous pass
func (d *Detector) Reset() {
	d.points = d.points[:0]
	d.manifolds = d.manifolds[:0]
	d.pairs = d.pairs[:0]
	clear(d.index)
}

// AddPair registers a colliding pair and returns its index. A pair tested against
// several triangles is registered once. transform1 is the world transform of ColliderA.
func (d *Detector) AddPair(pair *OverlappingPair, transform1 actor.Transform) int {
	if i, ok := d.index[pair.ID]; ok {
		return i
	}

	d.pairs = append(d.pairs, potentialPair{pair: *pair, transform1: transform1})
	i := len(d.pairs) - 1
	d.index[pair.ID] = i

	return i
}

// PairCount returns the number of colliding pairs
func (d *Detector) PairCount() int {
	return len(d.pairs)
}

// AddContacts adds the points of a narrow-phase result to a pair. The points of a convex
// pair all belong to one manifold; the points of a concave pair join the first manifold
// with a similar normal.
func (d *Detector) AddContacts(pairIndex int, points []narrowphase.ContactPointInfo) {
	p := &d.pairs[pairIndex]

	for _, point := range points {
		m := -1
		if p.pair.IsConvex {
			if p.manifoldCount > 0 {
				m = p.manifolds[0]
			}
		} else {
			for k := 0; k < p.manifoldCount; k++ {
				first := d.manifolds[p.manifolds[k]].points[0]
				if d.points[first].Normal.Dot(point.Normal) >= d.similarAngle {
					m = p.manifolds[k]
					break
				}
			}
		}

		if m < 0 {
			if p.manifoldCount == maxPotentialManifolds {
				continue
			}
			m = d.newManifold()
			p.manifolds[p.manifoldCount] = m
			p.manifoldCount++
		}

		manifold := &d.manifolds[m]
		if len(manifold.points) == maxPotentialPoints {
			continue
		}
		d.points = append(d.points, point)
		manifold.points = append(manifold.points, len(d.points)-1)
	}
}

// newManifold appends an empty manifold, reusing the point slice of a previous pass
func (d *Detector) newManifold() int {
	n := len(d.manifolds)
	if n < cap(d.manifolds) {
		d.manifolds = d.manifolds[:n+1]
		d.manifolds[n].points = d.manifolds[n].points[:0]
	} else {
		d.manifolds = append(d.manifolds, potentialManifold{points: make([]int, 0, MaxPointsPerManifold)})
	}

	return n
}

// ReduceManifolds keeps at most 3 manifolds per pair and 4 points per manifold, then
// collapses the near-duplicate points left in each manifold
func (d *Detector) ReduceManifolds() {
	for i := range d.pairs {
		p := &d.pairs[i]

		for p.manifoldCount > MaxManifoldsPerPair {
			d.removeShallowestManifold(p)
		}

		for k := 0; k < p.manifoldCount; k++ {
			manifold := &d.manifolds[p.manifolds[k]]
			if len(manifold.points) > MaxPointsPerManifold {
				d.reducePoints(manifold, p.transform1)
			}
			d.removeDuplicatePoints(manifold)
		}
	}
}

// removeShallowestManifold removes the manifold whose deepest point is the shallowest
func (d *Detector) removeShallowestManifold(p *potentialPair) {
	shallowest := 0
	minDepth := math.Inf(1)

	for k := 0; k < p.manifoldCount; k++ {
		deepest := math.Inf(-1)
		for _, point := range d.manifolds[p.manifolds[k]].points {
			deepest = max(deepest, d.points[point].Depth)
		}
		if deepest < minDepth {
			minDepth = deepest
			shallowest = k
		}
	}

	copy(p.manifolds[shallowest:p.manifoldCount], p.manifolds[shallowest+1:p.manifoldCount])
	p.manifoldCount--
}

// removeDuplicatePoints collapses the points closer than the duplicate distance, the
// deepest one of each cluster is kept
func (d *Detector) removeDuplicatePoints(manifold *potentialManifold) {
	points := manifold.points

	for i := 0; i < len(points); i++ {
		for j := len(points) - 1; j > i; j-- {
			a := &d.points[points[i]]
			b := &d.points[points[j]]
			if b.LocalPoint1.Sub(a.LocalPoint1).LenSqr() >= d.duplicateDistanceSqr {
				continue
			}
			if b.Depth > a.Depth {
				points[i] = points[j]
			}
			points = slices.Delete(points, j, j+1)
		}
	}

	manifold.points = points
}

// reducePoints keeps 4 points spanning the largest area, in the local space of the
// first shape:
//   - the farthest point along (1, 1, 1)
//   - the farthest point from the first one
//   - the point making the triangle of largest area, which sets the winding
//   - the point farthest outside of the triangle edges
func (d *Detector) reducePoints(manifold *potentialManifold, transform1 actor.Transform) {
	candidates := manifold.points
	local := func(i int) mgl64.Vec3 {
		return d.points[candidates[i]].LocalPoint1
	}
	normal := transform1.RotateToLocal(d.points[candidates[0]].Normal)

	searchDirection := mgl64.Vec3{1, 1, 1}
	a := 0
	maxDot := math.Inf(-1)
	for i := range candidates {
		if dot := local(i).Dot(searchDirection); dot > maxDot {
			maxDot = dot
			a = i
		}
	}

	b := -1
	maxDistance := -1.0
	for i := range candidates {
		if i == a {
			continue
		}
		if distance := local(i).Sub(local(a)).LenSqr(); distance > maxDistance {
			maxDistance = distance
			b = i
		}
	}

	c := -1
	maxArea := -1.0
	signedArea := 0.0
	for i := range candidates {
		if i == a || i == b {
			continue
		}
		area := triangleArea(local(a), local(b), local(i), normal)
		if math.Abs(area) > maxArea {
			maxArea = math.Abs(area)
			signedArea = area
			c = i
		}
	}
	if signedArea < 0 {
		// counter-clockwise around the normal
		a, b = b, a
	}

	e := -1
	minArea := math.Inf(1)
	for i := range candidates {
		if i == a || i == b || i == c {
			continue
		}
		p := local(i)
		area := min(
			triangleArea(local(a), local(b), p, normal),
			triangleArea(local(b), local(c), p, normal),
			triangleArea(local(c), local(a), p, normal),
		)
		if area < minArea {
			minArea = area
			e = i
		}
	}

	kept := [MaxPointsPerManifold]int{candidates[a], candidates[b], candidates[c], candidates[e]}
	manifold.points = append(manifold.points[:0], kept[:]...)
}

// triangleArea returns twice the signed area of the triangle around normal
func triangleArea(a, b, c, normal mgl64.Vec3) float64 {
	return b.Sub(a).Cross(c.Sub(a)).Dot(normal)
}
