package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/bridge-simulator/model"
)

// MaxVelocity returns the impulse max velocity for the slow flag.
func MaxVelocity(slow bool) float64 {
	if slow {
		return model.SlowImpulse
	}
	return model.NormalImpulse
}

// WarpSpeedFor converts a warp level percentage into a multiple of C.
// The result never drops below 1.
func WarpSpeedFor(level float64) float64 {
	speed := clampPercent(level) / 100 * model.MaxWarpFactor
	if speed < 1 {
		return 1
	}
	return speed
}

// Accelerate moves the ship's speed toward its target impulse for
// elapsedSeconds and reports whether the target has been reached.
// Once energy is exhausted the speed stops changing.
func Accelerate(obj *model.SpaceObject, elapsedSeconds float64) bool {
	if !obj.IsShip() {
		return true
	}
	s := obj.Ship
	maxV := MaxVelocity(s.SlowImpulse)
	target := clampPercent(s.TargetImpulse) / 100 * maxV

	if obj.Speed == target {
		s.CurrentImpulse = impulsePercent(obj.Speed, maxV)
		return true
	}
	if s.Energy <= 0 {
		s.Energy = 0
		return false
	}
	if elapsedSeconds <= 0 {
		return false
	}

	step := model.ImpulseAcceleration * elapsedSeconds
	finished := false
	if obj.Speed < target {
		obj.Speed += step
		if obj.Speed >= target {
			obj.Speed = target
			finished = true
		}
	} else {
		obj.Speed -= step
		if obj.Speed <= target {
			obj.Speed = target
			finished = true
		}
	}
	if obj.Speed < 0 {
		obj.Speed = 0
	}

	s.CurrentImpulse = impulsePercent(obj.Speed, maxV)
	s.Energy = math.Max(0, s.Energy-model.EnergyBurnRate*elapsedSeconds)
	return finished
}

// Velocity returns the scalar speed the object travels at this instant.
// Engaged warp replaces the impulse speed with a multiple of C.
func Velocity(obj *model.SpaceObject) float64 {
	if obj.IsShip() && obj.Ship.Warp {
		return model.LightSpeed * obj.Ship.WarpSpeed
	}
	return obj.Speed
}

// MoveShip integrates the object's position along its heading and clips it
// into the play field.
func MoveShip(obj *model.SpaceObject, elapsedSeconds float64) {
	MoveShipIn(obj, elapsedSeconds, model.PlayFieldLength)
}

// MoveShipIn is MoveShip against a play field of the given edge length.
func MoveShipIn(obj *model.SpaceObject, elapsedSeconds, fieldLength float64) {
	if obj == nil || elapsedSeconds <= 0 {
		return
	}
	v := Velocity(obj)
	if v != 0 {
		obj.Position = obj.Position.Add(obj.Heading().Mul(v * elapsedSeconds))
	}
	obj.Position = ClipToField(obj.Position, fieldLength)
}

// MoveShipAt moves the ship and stamps its last move time.
func MoveShipAt(obj *model.SpaceObject, elapsed time.Duration, now time.Time, fieldLength float64) {
	MoveShipIn(obj, elapsed.Seconds(), fieldLength)
	if obj.IsShip() {
		obj.Ship.LastMoveTimestamp = now
	}
}

func impulsePercent(speed, maxV float64) float64 {
	if maxV <= 0 {
		return 0
	}
	return clampPercent(speed / maxV * 100)
}

func clampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
