package epa

import (
	"math"
	"sync"

	"github.com/akmonengine/impulse/gjk"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Face is a triangle of the polytope, its normal points away from the interior
type Face struct {
	Points   [3]mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64 // distance from the origin to the face plane
}

// EdgeEntry counts the visible faces sharing an edge, normalized so that A < B.
// An edge seen once lies on the horizon.
type EdgeEntry struct {
	A, B  mgl64.Vec3
	Count int
}

// PolytopeBuilder stores the faces of the expanding polytope. Its buffers are reused
// between queries through polytopeBuilderPool.
type PolytopeBuilder struct {
	faces []Face

	// interior is a fixed point strictly inside the polytope, used to orient new faces
	interior mgl64.Vec3

	edges          []EdgeEntry
	visibleIndices []int
}

var polytopeBuilderPool = sync.Pool{
	New: func() interface{} {
		return &PolytopeBuilder{
			faces:          make([]Face, 0, polytopeInitialCapacity),
			edges:          make([]EdgeEntry, 0, polytopeInitialCapacity),
			visibleIndices: make([]int, 0, polytopeInitialCapacity),
		}
	},
}

// Reset prepares the builder for reuse
func (b *PolytopeBuilder) Reset() {
	b.faces = b.faces[:0]
	b.edges = b.edges[:0]
	b.visibleIndices = b.visibleIndices[:0]
	b.interior = mgl64.Vec3{}
}

// BuildInitialFaces creates the 4 faces of the GJK tetrahedron. The polytope only
// grows from there, so the tetrahedron centroid stays inside it.
func (b *PolytopeBuilder) BuildInitialFaces(simplex *gjk.Simplex) error {
	if simplex.Count != 4 {
		return errors.Errorf("epa: invalid simplex count %d, expected 4", simplex.Count)
	}

	p0, p1, p2, p3 := simplex.Points[0], simplex.Points[1], simplex.Points[2], simplex.Points[3]
	if math.Abs(tripleProduct(p0, p1, p2, p3)) < flatVolumeEpsilon {
		return errors.Wrap(ErrDegenerateSimplex, "zero volume tetrahedron")
	}
	b.interior = p0.Add(p1).Add(p2).Add(p3).Mul(0.25)

	for _, tri := range [4][3]mgl64.Vec3{
		{p0, p1, p2},
		{p0, p2, p3},
		{p0, p3, p1},
		{p1, p3, p2},
	} {
		face, ok := b.createFaceOutward(tri[0], tri[1], tri[2])
		if !ok {
			return errors.Wrap(ErrDegenerateSimplex, "flat tetrahedron")
		}
		b.faces = append(b.faces, face)
	}

	return nil
}

// tripleProduct is six times the signed volume of the tetrahedron (p0, p1, p2, p3)
func tripleProduct(p0, p1, p2, p3 mgl64.Vec3) float64 {
	return p1.Sub(p0).Cross(p2.Sub(p0)).Dot(p3.Sub(p0))
}

// createFaceOutward builds the face (p0, p1, p2) with its normal pointing away from the
// interior point. It returns false for a zero-area triangle.
func (b *PolytopeBuilder) createFaceOutward(p0, p1, p2 mgl64.Vec3) (Face, bool) {
	normal := p1.Sub(p0).Cross(p2.Sub(p0))
	length := normal.Len()
	if length < 1e-12 {
		return Face{}, false
	}
	normal = normal.Mul(1.0 / length)

	if normal.Dot(b.interior.Sub(p0)) > 0 {
		normal = normal.Mul(-1)
		p1, p2 = p2, p1
	}
	normal = snapNormalToAxis(normal)

	// the origin is inside the polytope, a negative distance is rounding noise
	distance := p0.Dot(normal)
	if distance < 0 {
		distance = 0
	}

	return Face{Points: [3]mgl64.Vec3{p0, p1, p2}, Normal: normal, Distance: distance}, true
}

// FindClosestFaceIndex returns the index of the face closest to the origin, -1 if
// the polytope is empty.
func (b *PolytopeBuilder) FindClosestFaceIndex() int {
	closestIndex := -1
	minDistance := 0.0

	for i := range b.faces {
		if closestIndex < 0 || b.faces[i].Distance < minDistance {
			closestIndex = i
			minDistance = b.faces[i].Distance
		}
	}

	return closestIndex
}

// findVisibleFaces collects the faces the support point lies in front of
func (b *PolytopeBuilder) findVisibleFaces(support mgl64.Vec3) {
	b.visibleIndices = b.visibleIndices[:0]

	for i := range b.faces {
		face := &b.faces[i]
		if support.Sub(face.Points[0]).Dot(face.Normal) > 0 {
			b.visibleIndices = append(b.visibleIndices, i)
		}
	}
}

// findBoundaryEdges counts the edges of the visible faces, the horizon edges are
// the ones used by a single visible face.
func (b *PolytopeBuilder) findBoundaryEdges() {
	b.edges = b.edges[:0]

	for _, faceIdx := range b.visibleIndices {
		face := &b.faces[faceIdx]

		for j := 0; j < 3; j++ {
			edgeA, edgeB := face.Points[j], face.Points[(j+1)%3]
			if compareVec3(edgeA, edgeB) > 0 {
				edgeA, edgeB = edgeB, edgeA
			}

			if edgeIdx := b.findEdgeIndex(edgeA, edgeB); edgeIdx >= 0 {
				b.edges[edgeIdx].Count++
			} else {
				b.edges = append(b.edges, EdgeEntry{A: edgeA, B: edgeB, Count: 1})
			}
		}
	}
}

func (b *PolytopeBuilder) findEdgeIndex(edgeA, edgeB mgl64.Vec3) int {
	for i := range b.edges {
		if b.edges[i].A == edgeA && b.edges[i].B == edgeB {
			return i
		}
	}
	return -1
}

// removeVisibleFaces deletes the visible faces, visibleIndices is in increasing order
// so removing from the end keeps the remaining indices valid.
func (b *PolytopeBuilder) removeVisibleFaces() {
	for i := len(b.visibleIndices) - 1; i >= 0; i-- {
		idx := b.visibleIndices[i]
		last := len(b.faces) - 1
		b.faces[idx] = b.faces[last]
		b.faces = b.faces[:last]
	}
}

// AddPointAndRebuildFaces expands the polytope with a support point: the faces it sees
// are replaced by a fan connecting the horizon to the point. It returns false when the
// point does not expand the polytope.
func (b *PolytopeBuilder) AddPointAndRebuildFaces(support mgl64.Vec3, closestIndex int) bool {
	b.findVisibleFaces(support)
	if len(b.visibleIndices) == 0 {
		return false
	}
	if len(b.visibleIndices) == len(b.faces) {
		// the interior point is seen from everywhere: numerical breakdown
		b.visibleIndices = append(b.visibleIndices[:0], closestIndex)
	}

	b.findBoundaryEdges()
	b.removeVisibleFaces()

	added := 0
	for i := range b.edges {
		if b.edges[i].Count != 1 {
			continue
		}
		if face, ok := b.createFaceOutward(b.edges[i].A, b.edges[i].B, support); ok {
			b.faces = append(b.faces, face)
			added++
		}
	}

	return added > 0
}

// compareVec3 orders vectors lexicographically (x, then y, then z)
func compareVec3(a, b mgl64.Vec3) int {
	for i := 0; i < 3; i++ {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	return 0
}
