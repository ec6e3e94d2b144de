package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const rayEpsilon = 1e-9

// Ray is the segment Point1 + t*(Point2-Point1), t in [0, MaxFraction]
type Ray struct {
	Point1      mgl64.Vec3
	Point2      mgl64.Vec3
	MaxFraction float64
}

// NewRay creates a ray covering the full segment
func NewRay(from, to mgl64.Vec3) Ray {
	return Ray{Point1: from, Point2: to, MaxFraction: 1.0}
}

// PointAt returns the point of the ray at fraction t
func (r Ray) PointAt(t float64) mgl64.Vec3 {
	return r.Point1.Add(r.Point2.Sub(r.Point1).Mul(t))
}

// ToLocal expresses the ray in the space of transform
func (r Ray) ToLocal(transform Transform) Ray {
	return Ray{
		Point1:      transform.ApplyInverse(r.Point1),
		Point2:      transform.ApplyInverse(r.Point2),
		MaxFraction: r.MaxFraction,
	}
}

// RaycastHit is the first intersection of a ray with a shape
type RaycastHit struct {
	Fraction float64
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
}

// ToWorld expresses a local hit in world space
func (h RaycastHit) ToWorld(transform Transform) RaycastHit {
	return RaycastHit{
		Fraction: h.Fraction,
		Point:    transform.Apply(h.Point),
		Normal:   transform.RotateToWorld(h.Normal),
	}
}

func (s *Sphere) Raycast(ray Ray) (RaycastHit, bool) {
	return raySphere(ray, mgl64.Vec3{}, s.Radius)
}

func raySphere(ray Ray, center mgl64.Vec3, radius float64) (RaycastHit, bool) {
	m := ray.Point1.Sub(center)
	c := m.Dot(m) - radius*radius

	// starting inside is not a hit
	if c < 0 {
		return RaycastHit{}, false
	}

	d := ray.Point2.Sub(ray.Point1)
	b := m.Dot(d)
	a := d.Dot(d)
	if a < rayEpsilon {
		return RaycastHit{}, false
	}

	discriminant := b*b - a*c
	if discriminant < 0 {
		return RaycastHit{}, false
	}

	t := (-b - math.Sqrt(discriminant)) / a
	if t < 0 || t > ray.MaxFraction {
		return RaycastHit{}, false
	}

	point := ray.PointAt(t)
	return RaycastHit{Fraction: t, Point: point, Normal: point.Sub(center).Normalize()}, true
}

func (b *Box) Raycast(ray Ray) (RaycastHit, bool) {
	d := ray.Point2.Sub(ray.Point1)
	tMin := -math.MaxFloat64
	tMax := math.MaxFloat64
	var normal mgl64.Vec3

	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < rayEpsilon {
			if ray.Point1[i] > b.HalfExtents[i] || ray.Point1[i] < -b.HalfExtents[i] {
				return RaycastHit{}, false
			}
			continue
		}

		inv := 1.0 / d[i]
		t1 := (-b.HalfExtents[i] - ray.Point1[i]) * inv
		t2 := (b.HalfExtents[i] - ray.Point1[i]) * inv
		sign := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1.0
		}

		if t1 > tMin {
			tMin = t1
			normal = mgl64.Vec3{}
			normal[i] = sign
		}
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return RaycastHit{}, false
		}
	}

	if tMin < 0 || tMin > ray.MaxFraction {
		return RaycastHit{}, false
	}

	return RaycastHit{Fraction: tMin, Point: ray.PointAt(tMin), Normal: normal}, true
}

func (c *Capsule) Raycast(ray Ray) (RaycastHit, bool) {
	best := RaycastHit{Fraction: math.MaxFloat64}
	found := false

	// cylinder side around the Y axis
	p := ray.Point1
	d := ray.Point2.Sub(ray.Point1)
	a := d.X()*d.X() + d.Z()*d.Z()
	if a > rayEpsilon {
		b := p.X()*d.X() + p.Z()*d.Z()
		cc := p.X()*p.X() + p.Z()*p.Z() - c.Radius*c.Radius
		discriminant := b*b - a*cc
		if cc >= 0 && discriminant >= 0 {
			t := (-b - math.Sqrt(discriminant)) / a
			if t >= 0 && t <= ray.MaxFraction {
				point := ray.PointAt(t)
				if math.Abs(point.Y()) <= c.HalfHeight {
					best = RaycastHit{Fraction: t, Point: point, Normal: mgl64.Vec3{point.X(), 0, point.Z()}.Normalize()}
					found = true
				}
			}
		}
	}

	// end caps
	bottom, top := c.Segment()
	for _, center := range [2]mgl64.Vec3{bottom, top} {
		if hit, ok := raySphere(ray, center, c.Radius); ok && hit.Fraction < best.Fraction {
			// the sphere part inside the cylinder is not on the surface
			if math.Abs(hit.Point.Y()) >= c.HalfHeight-rayEpsilon {
				best = hit
				found = true
			}
		}
	}

	return best, found
}

// Raycast clips the ray against every face plane (Cyrus-Beck)
func (m *ConvexMesh) Raycast(ray Ray) (RaycastHit, bool) {
	d := ray.Point2.Sub(ray.Point1)
	tEnter := 0.0
	tExit := ray.MaxFraction
	var normal mgl64.Vec3
	outside := false

	for i, face := range m.Faces {
		n := m.Normals[i]
		offset := n.Dot(m.Vertices[face[0]])
		numerator := offset - n.Dot(ray.Point1)
		denominator := n.Dot(d)
		if numerator < 0 {
			outside = true
		}

		if math.Abs(denominator) < rayEpsilon {
			if numerator < 0 {
				return RaycastHit{}, false
			}
			continue
		}

		t := numerator / denominator
		if denominator < 0 {
			if t >= tEnter {
				tEnter = t
				normal = n
			}
		} else if t < tExit {
			tExit = t
		}

		if tEnter > tExit {
			return RaycastHit{}, false
		}
	}

	// the origin is inside the hull
	if !outside || normal.LenSqr() == 0 {
		return RaycastHit{}, false
	}

	return RaycastHit{Fraction: tEnter, Point: ray.PointAt(tEnter), Normal: normal}, true
}

// Raycast uses the Möller-Trumbore test, both sides are solid
func (t *Triangle) Raycast(ray Ray) (RaycastHit, bool) {
	d := ray.Point2.Sub(ray.Point1)
	e1 := t.Vertices[1].Sub(t.Vertices[0])
	e2 := t.Vertices[2].Sub(t.Vertices[0])

	p := d.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < rayEpsilon {
		return RaycastHit{}, false
	}
	invDet := 1.0 / det

	s := ray.Point1.Sub(t.Vertices[0])
	u := s.Dot(p) * invDet
	if u < 0 || u > 1 {
		return RaycastHit{}, false
	}

	q := s.Cross(e1)
	v := d.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return RaycastHit{}, false
	}

	fraction := e2.Dot(q) * invDet
	if fraction < 0 || fraction > ray.MaxFraction {
		return RaycastHit{}, false
	}

	normal := e1.Cross(e2).Normalize()
	if normal.Dot(d) > 0 {
		normal = normal.Mul(-1)
	}

	return RaycastHit{Fraction: fraction, Point: ray.PointAt(fraction), Normal: normal}, true
}

func (p *Plane) Raycast(ray Ray) (RaycastHit, bool) {
	d := ray.Point2.Sub(ray.Point1)
	denominator := p.Normal.Dot(d)
	start := p.SignedDistance(ray.Point1)

	// only hits from the front side
	if start < 0 || denominator >= -rayEpsilon {
		return RaycastHit{}, false
	}

	t := -start / denominator
	if t > ray.MaxFraction {
		return RaycastHit{}, false
	}

	return RaycastHit{Fraction: t, Point: ray.PointAt(t), Normal: p.Normal}, true
}

// Raycast tests every triangle, the world uses the mesh tree to skip most of them
func (m *TriangleMesh) Raycast(ray Ray) (RaycastHit, bool) {
	best := RaycastHit{}
	found := false

	for i := range m.Indices {
		tri := m.Triangle(i)
		if hit, ok := tri.Raycast(ray); ok && (!found || hit.Fraction < best.Fraction) {
			best = hit
			found = true
		}
	}

	return best, found
}
