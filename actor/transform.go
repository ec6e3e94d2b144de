package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform represents a position in 3D space
type Transform struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	InverseRotation mgl64.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position:        mgl64.Vec3{0, 0, 0},
		Rotation:        mgl64.QuatIdent(),
		InverseRotation: mgl64.QuatIdent(),
	}
}

// NewTransformAt creates a transform at position with the given rotation
func NewTransformAt(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	rotation = rotation.Normalize()
	return Transform{
		Position:        position,
		Rotation:        rotation,
		InverseRotation: rotation.Inverse(),
	}
}

// normalized fills the zero quaternion left by struct literals
func (t Transform) normalized() Transform {
	if t.Rotation.W == 0 && t.Rotation.V.LenSqr() == 0 {
		t.Rotation = mgl64.QuatIdent()
		t.InverseRotation = mgl64.QuatIdent()
	} else if t.InverseRotation.W == 0 && t.InverseRotation.V.LenSqr() == 0 {
		t.InverseRotation = t.Rotation.Inverse()
	}
	return t
}

// Apply maps a local point to world space
func (t Transform) Apply(point mgl64.Vec3) mgl64.Vec3 {
	t = t.normalized()
	return t.Position.Add(t.Rotation.Rotate(point))
}

// ApplyInverse maps a world point to local space
func (t Transform) ApplyInverse(point mgl64.Vec3) mgl64.Vec3 {
	t = t.normalized()
	return t.InverseRotation.Rotate(point.Sub(t.Position))
}

// RotateToWorld rotates a local direction to world space
func (t Transform) RotateToWorld(direction mgl64.Vec3) mgl64.Vec3 {
	return t.normalized().Rotation.Rotate(direction)
}

// RotateToLocal rotates a world direction to local space
func (t Transform) RotateToLocal(direction mgl64.Vec3) mgl64.Vec3 {
	return t.normalized().InverseRotation.Rotate(direction)
}

// Mul composes t with a child transform expressed in t's space
func (t Transform) Mul(child Transform) Transform {
	t = t.normalized()
	child = child.normalized()

	return NewTransformAt(t.Apply(child.Position), t.Rotation.Mul(child.Rotation))
}
