package model

import "time"

// Distances are kilometres, velocities kilometres per second.
const (
	// LightSpeed is C in km/s.
	LightSpeed = 299792.458
	// NormalImpulse is the max velocity at full impulse (0.25C).
	NormalImpulse = 74948.1145
	// SlowImpulse is the max velocity when slow impulse is engaged.
	SlowImpulse = 100.0
	// AstronomicalUnit is the base distance unit of the play field.
	AstronomicalUnit = 149597870.7
	// PlayFieldLength is the edge length of the cubic play field.
	PlayFieldLength = 2 * AstronomicalUnit

	// TickInterval is the default game loop interval.
	TickInterval = 100 * time.Millisecond
)

// Game tuning. These are not physical constants.
const (
	// MaxEnergy is a ship's full fuel pool.
	MaxEnergy = 1000.0
	// EnergyBurnRate is energy consumed per second while the impulse
	// engines change speed.
	EnergyBurnRate = 10.0
	// ImpulseAcceleration is the fixed speed change in km/s per second,
	// whichever impulse table is active. Full normal impulse takes 4s.
	ImpulseAcceleration = NormalImpulse / 4
	// TurnRate is how many degrees a turn action covers per second.
	TurnRate = 45.0
	// MaxWarpFactor is the multiple of C reached at warp level 100.
	MaxWarpFactor = 10.0
	// SensorRange bounds the per-ship WorldUpdate surroundings query.
	SensorRange = 0.1 * AstronomicalUnit
)
