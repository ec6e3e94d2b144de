// Package narrowphase computes the exact contacts of shape pairs.
//
// Requests are grouped in one Batch per AlgorithmType, so that each algorithm runs over
// a contiguous slice of requests of the same shape combination.
package narrowphase

import (
	"io"
	"log/slog"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxContactPoints is the number of points an algorithm reports for one request
const MaxContactPoints = 4

// AlgorithmType identifies the narrow-phase test of a shape combination
type AlgorithmType uint8

const (
	AlgorithmNone AlgorithmType = iota
	AlgorithmSphereVsSphere
	AlgorithmSphereVsCapsule
	AlgorithmCapsuleVsCapsule
	AlgorithmSphereVsConvexPolyhedron
	AlgorithmCapsuleVsConvexPolyhedron
	AlgorithmConvexPolyhedronVsConvexPolyhedron
	AlgorithmConvexVsPlane

	algorithmCount
)

func (a AlgorithmType) String() string {
	switch a {
	case AlgorithmSphereVsSphere:
		return "SphereVsSphere"
	case AlgorithmSphereVsCapsule:
		return "SphereVsCapsule"
	case AlgorithmCapsuleVsCapsule:
		return "CapsuleVsCapsule"
	case AlgorithmSphereVsConvexPolyhedron:
		return "SphereVsConvexPolyhedron"
	case AlgorithmCapsuleVsConvexPolyhedron:
		return "CapsuleVsConvexPolyhedron"
	case AlgorithmConvexPolyhedronVsConvexPolyhedron:
		return "ConvexPolyhedronVsConvexPolyhedron"
	case AlgorithmConvexVsPlane:
		return "ConvexVsPlane"
	default:
		return "None"
	}
}

// SelectAlgorithm returns the algorithm of a shape combination. The shapes must be
// ordered, type1 <= type2; triangle meshes are tested triangle by triangle and
// report the algorithm of their triangles.
func SelectAlgorithm(type1, type2 actor.ShapeType) AlgorithmType {
	if type2 == actor.ShapeTypeTriangleMesh {
		type2 = actor.ShapeTypeTriangle
		if type1 > type2 {
			return AlgorithmNone
		}
	}

	switch {
	case type1 == actor.ShapeTypePlane || type1 == actor.ShapeTypeTriangleMesh:
		return AlgorithmNone
	case type2 == actor.ShapeTypePlane:
		return AlgorithmConvexVsPlane
	case type1 == actor.ShapeTypeSphere && type2 == actor.ShapeTypeSphere:
		return AlgorithmSphereVsSphere
	case type1 == actor.ShapeTypeSphere && type2 == actor.ShapeTypeCapsule:
		return AlgorithmSphereVsCapsule
	case type1 == actor.ShapeTypeCapsule && type2 == actor.ShapeTypeCapsule:
		return AlgorithmCapsuleVsCapsule
	case type1 == actor.ShapeTypeSphere && type2.IsPolyhedron():
		return AlgorithmSphereVsConvexPolyhedron
	case type1 == actor.ShapeTypeCapsule && type2.IsPolyhedron():
		return AlgorithmCapsuleVsConvexPolyhedron
	case type1.IsPolyhedron() && type2.IsPolyhedron():
		return AlgorithmConvexPolyhedronVsConvexPolyhedron
	}

	return AlgorithmNone
}

// ContactPointInfo is a contact reported by an algorithm. Normal is the world
// normal from shape 1 to shape 2, local points are in the frame of their shape.
type ContactPointInfo struct {
	Normal      mgl64.Vec3
	LocalPoint1 mgl64.Vec3
	LocalPoint2 mgl64.Vec3
	Depth       float64
}

// Request is the test of one shape pair, and its result
type Request struct {
	// Pair is the caller's index of the tested pair
	Pair int

	Shape1     actor.ShapeInterface
	Shape2     actor.ShapeInterface
	Transform1 actor.Transform
	Transform2 actor.Transform

	// SeparatingAxis is the coherence hint of the previous frame, updated by the test
	SeparatingAxis mgl64.Vec3
	// ContactsWanted is false for overlap-only tests (triggers)
	ContactsWanted bool

	IsColliding bool
	Points      [MaxContactPoints]ContactPointInfo
	PointCount  int
}

// addPoint converts a pair of world points into a contact of the request
func (r *Request) addPoint(normal, worldPoint1, worldPoint2 mgl64.Vec3, depth float64) {
	if r.PointCount == MaxContactPoints {
		return
	}

	r.Points[r.PointCount] = ContactPointInfo{
		Normal:      normal,
		LocalPoint1: r.Transform1.ApplyInverse(worldPoint1),
		LocalPoint2: r.Transform2.ApplyInverse(worldPoint2),
		Depth:       depth,
	}
	r.PointCount++
}

// ContactPoints returns the contacts found by the test
func (r *Request) ContactPoints() []ContactPointInfo {
	return r.Points[:r.PointCount]
}

// Batch holds the requests of one algorithm
type Batch struct {
	Requests []Request
}

// Input collects the requests of a detection pass, one batch per algorithm. Its
// buffers are kept between passes.
type Input struct {
	batches [algorithmCount]Batch
}

// Reset clears every batch without releasing memory
func (in *Input) Reset() {
	for i := range in.batches {
		in.batches[i].Requests = in.batches[i].Requests[:0]
	}
}

// Add appends a request to the batch of its algorithm and returns it, so that the caller
// can retrieve the result once the pass ran.
func (in *Input) Add(algorithm AlgorithmType, request Request) int {
	batch := &in.batches[algorithm]
	batch.Requests = append(batch.Requests, request)

	return len(batch.Requests) - 1
}

// Batch returns the requests of an algorithm
func (in *Input) Batch(algorithm AlgorithmType) *Batch {
	return &in.batches[algorithm]
}

// Len returns the number of requests of every batch
func (in *Input) Len() int {
	count := 0
	for i := range in.batches {
		count += len(in.batches[i].Requests)
	}
	return count
}

// Each calls fn for every request, batch after batch
func (in *Input) Each(fn func(r *Request)) {
	for i := range in.batches {
		requests := in.batches[i].Requests
		for j := range requests {
			fn(&requests[j])
		}
	}
}

// Algorithm tests a range of requests of its batch. It returns true if at least one
// of them is colliding.
type Algorithm interface {
	TestCollision(batch *Batch, start, count int) bool
}

// Dispatcher runs every batch of an Input through its algorithm
type Dispatcher struct {
	algorithms [algorithmCount]Algorithm
}

// NewDispatcher registers the algorithms of every shape combination. The logger
// receives the failures of the penetration solver.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	d := &Dispatcher{}
	d.algorithms[AlgorithmSphereVsSphere] = SphereVsSphere{}
	d.algorithms[AlgorithmSphereVsCapsule] = SphereVsCapsule{}
	d.algorithms[AlgorithmCapsuleVsCapsule] = CapsuleVsCapsule{}
	d.algorithms[AlgorithmSphereVsConvexPolyhedron] = &SphereVsConvexPolyhedron{convexAlgorithm{logger: logger}}
	d.algorithms[AlgorithmCapsuleVsConvexPolyhedron] = &CapsuleVsConvexPolyhedron{convexAlgorithm{logger: logger}}
	d.algorithms[AlgorithmConvexPolyhedronVsConvexPolyhedron] = &ConvexPolyhedronVsConvexPolyhedron{convexAlgorithm{logger: logger}}
	d.algorithms[AlgorithmConvexVsPlane] = ConvexVsPlane{}

	return d
}

// Algorithm returns the registered algorithm of a type, nil for AlgorithmNone
func (d *Dispatcher) Algorithm(algorithm AlgorithmType) Algorithm {
	return d.algorithms[algorithm]
}

// Run tests every request of the input. It returns true if at least one pair collides.
func (d *Dispatcher) Run(input *Input) bool {
	colliding := false

	for i := AlgorithmType(1); i < algorithmCount; i++ {
		batch := &input.batches[i]
		if len(batch.Requests) == 0 {
			continue
		}

		if d.algorithms[i].TestCollision(batch, 0, len(batch.Requests)) {
			colliding = true
		}
	}

	return colliding
}
