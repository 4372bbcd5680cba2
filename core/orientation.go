package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/bridge-simulator/model"
)

// Axis names a local rotation axis of a ship.
type Axis int

const (
	// AxisYaw rotates about the local Y axis.
	AxisYaw Axis = iota
	// AxisPitch rotates about the local X axis.
	AxisPitch
	// AxisRoll rotates about the local Z axis (the initial heading).
	AxisRoll
)

func (a Axis) String() string {
	switch a {
	case AxisYaw:
		return "yaw"
	case AxisPitch:
		return "pitch"
	case AxisRoll:
		return "roll"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ParseAxis maps "yaw", "pitch" or "roll" (any case) onto an Axis.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaw":
		return AxisYaw, nil
	case "pitch":
		return AxisPitch, nil
	case "roll":
		return AxisRoll, nil
	default:
		return 0, fmt.Errorf("unknown axis %q", s)
	}
}

// Unit returns the local unit vector the axis rotates about.
func (a Axis) Unit() mgl64.Vec3 {
	switch a {
	case AxisPitch:
		return mgl64.Vec3{1, 0, 0}
	case AxisRoll:
		return mgl64.Vec3{0, 0, 1}
	default:
		return mgl64.Vec3{0, 1, 0}
	}
}

// RotationMatrix builds the rotation for axis by radians.
func RotationMatrix(axis Axis, radians float64) mgl64.Mat3 {
	switch axis {
	case AxisPitch:
		return mgl64.Rotate3DX(radians)
	case AxisRoll:
		return mgl64.Rotate3DZ(radians)
	default:
		return mgl64.Rotate3DY(radians)
	}
}

// Turn rotates obj by angleDegrees about its local axis and
// re-orthonormalizes the result before storing it.
func Turn(obj *model.SpaceObject, angleDegrees float64, axis Axis) {
	if obj == nil || angleDegrees == 0 {
		return
	}
	rotated := obj.Orientation.Mul3(RotationMatrix(axis, mgl64.DegToRad(angleDegrees)))
	obj.Orientation = Orthonormalize(rotated)
}

// Orthonormalize applies Gram-Schmidt to the columns of m.
func Orthonormalize(m mgl64.Mat3) mgl64.Mat3 {
	c0 := m.Col(0).Normalize()

	c1 := m.Col(1)
	c1 = c1.Sub(c0.Mul(c0.Dot(c1))).Normalize()

	c2 := m.Col(2)
	c2 = c2.Sub(c0.Mul(c0.Dot(c2))).Sub(c1.Mul(c1.Dot(c2))).Normalize()

	return mgl64.Mat3FromCols(c0, c1, c2)
}

// IsOrthonormal reports whether the columns of m are unit length and
// pairwise orthogonal within tol.
func IsOrthonormal(m mgl64.Mat3, tol float64) bool {
	cols := [3]mgl64.Vec3{m.Col(0), m.Col(1), m.Col(2)}
	for i := 0; i < 3; i++ {
		if math.Abs(cols[i].Len()-1) > tol {
			return false
		}
		for j := i + 1; j < 3; j++ {
			if math.Abs(cols[i].Dot(cols[j])) > tol {
				return false
			}
		}
	}
	return true
}
