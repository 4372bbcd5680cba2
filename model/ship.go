package model

import (
	"sort"
	"time"
)

// Station is a named role slot on a ship.
type Station string

const (
	StationHelm        Station = "helm"
	StationWeapons     Station = "weapons"
	StationScience     Station = "science"
	StationComm        Station = "comm"
	StationEngineering Station = "engineering"
)

// Stations lists every slot a ship carries, in display order.
var Stations = []Station{StationHelm, StationWeapons, StationScience, StationComm, StationEngineering}

// ParseStation validates a station name.
func ParseStation(s string) (Station, bool) {
	for _, st := range Stations {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// ShipState is the ship-specific payload of a SpaceObject.
// Player references are ids resolved through the ship registry.
type ShipState struct {
	CreatorID string
	Crew      map[string]struct{}
	// Stations maps each slot to the occupying player id, "" when empty.
	Stations map[Station]string

	Energy float64

	TargetImpulse  float64
	CurrentImpulse float64
	SlowImpulse    bool

	Warp      bool
	WarpLevel float64
	WarpSpeed float64

	LastMoveTimestamp time.Time

	// GameStarted latches once the whole crew has readied up.
	GameStarted bool
}

// NewShip builds a ship object with full energy and every station empty.
func NewShip(name, creatorID string) *SpaceObject {
	obj := NewSpaceObject(KindShip, name)
	obj.Ship = &ShipState{
		CreatorID: creatorID,
		Crew:      make(map[string]struct{}),
		Stations:  make(map[Station]string, len(Stations)),
		Energy:    MaxEnergy,
		WarpSpeed: 1,
	}
	for _, st := range Stations {
		obj.Ship.Stations[st] = ""
	}
	return obj
}

// CrewIDs returns the crew as a sorted slice.
func (s *ShipState) CrewIDs() []string {
	ids := make([]string, 0, len(s.Crew))
	for id := range s.Crew {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StationsHeldBy lists the stations occupied by playerID.
func (s *ShipState) StationsHeldBy(playerID string) []Station {
	var held []Station
	for _, st := range Stations {
		if playerID != "" && s.Stations[st] == playerID {
			held = append(held, st)
		}
	}
	return held
}
