package world

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/bridge-simulator/core"
	"github.com/signalsfoundry/bridge-simulator/model"
)

// CrewMember is a player as seen by their shipmates.
type CrewMember struct {
	ID    string `json:"id" msgpack:"id"`
	Name  string `json:"name" msgpack:"name"`
	Ready bool   `json:"ready" msgpack:"ready"`
}

// ShipView is the ShipUpdate payload: one ship's full state for its crew.
type ShipView struct {
	ID          string     `json:"id" msgpack:"id"`
	Name        string     `json:"name" msgpack:"name"`
	Position    mgl64.Vec3 `json:"position" msgpack:"position"`
	Heading     mgl64.Vec3 `json:"heading" msgpack:"heading"`
	Orientation mgl64.Mat3 `json:"orientation" msgpack:"orientation"`
	Speed       float64    `json:"speed" msgpack:"speed"`
	Velocity    float64    `json:"velocity" msgpack:"velocity"`

	Energy         float64 `json:"energy" msgpack:"energy"`
	TargetImpulse  float64 `json:"targetImpulse" msgpack:"targetImpulse"`
	CurrentImpulse float64 `json:"currentImpulse" msgpack:"currentImpulse"`
	SlowImpulse    bool    `json:"slowImpulse" msgpack:"slowImpulse"`
	Warp           bool    `json:"warp" msgpack:"warp"`
	WarpLevel      float64 `json:"warpLevel" msgpack:"warpLevel"`
	WarpSpeed      float64 `json:"warpSpeed" msgpack:"warpSpeed"`

	CreatorID string            `json:"creatorId,omitempty" msgpack:"creatorId,omitempty"`
	Crew      []CrewMember      `json:"crew" msgpack:"crew"`
	Stations  map[string]string `json:"stations" msgpack:"stations"`
	LastMove  time.Time         `json:"lastMove" msgpack:"lastMove"`
}

// MapEntry is the map projection of one object: the X/Z plane is the map,
// Y is reported as altitude.
type MapEntry struct {
	ID       string  `json:"id" msgpack:"id"`
	Kind     string  `json:"kind" msgpack:"kind"`
	Name     string  `json:"name" msgpack:"name"`
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	Altitude float64 `json:"altitude" msgpack:"altitude"`
	// Bearing is the heading angle on the map in degrees, 0 along +Z,
	// increasing toward +X.
	Bearing float64 `json:"bearing" msgpack:"bearing"`
	Radius  float64 `json:"radius,omitempty" msgpack:"radius,omitempty"`
}

// GlobalView is the GlobalUpdate payload.
type GlobalView struct {
	Time    time.Time  `json:"time" msgpack:"time"`
	Objects []MapEntry `json:"objects" msgpack:"objects"`
}

// WorldView is the WorldUpdate payload: what one ship's sensors see.
type WorldView struct {
	ShipID  string     `json:"shipId" msgpack:"shipId"`
	Range   float64    `json:"range" msgpack:"range"`
	Objects []MapEntry `json:"objects" msgpack:"objects"`
}

// ShipSummary identifies a ship in lobby events.
type ShipSummary struct {
	ID        string `json:"id" msgpack:"id"`
	Name      string `json:"name" msgpack:"name"`
	CreatorID string `json:"creatorId,omitempty" msgpack:"creatorId,omitempty"`
}

// PlayerView identifies a player in lobby and ship events.
type PlayerView struct {
	ID     string `json:"id" msgpack:"id"`
	Name   string `json:"name" msgpack:"name"`
	ShipID string `json:"shipId,omitempty" msgpack:"shipId,omitempty"`
	Ready  bool   `json:"ready" msgpack:"ready"`
}

// StationView is the payload of StationTaken and StationReleased.
type StationView struct {
	ShipID     string `json:"shipId" msgpack:"shipId"`
	Station    string `json:"station" msgpack:"station"`
	PlayerID   string `json:"playerId" msgpack:"playerId"`
	PlayerName string `json:"playerName" msgpack:"playerName"`
}

// GameStartedView is the GameStarted payload.
type GameStartedView struct {
	ShipID string `json:"shipId" msgpack:"shipId"`
	Ship   string `json:"ship" msgpack:"ship"`
}

func viewOfPlayer(p model.Player) PlayerView {
	return PlayerView{ID: p.ID, Name: p.Name, ShipID: p.ShipID, Ready: p.ReadyToPlay}
}

// ShipView snapshots ship for its crew.
func (w *World) ShipView(ship *model.SpaceObject) ShipView {
	s := ship.Ship
	v := ShipView{
		ID:             ship.ID,
		Name:           ship.Name,
		Position:       ship.Position,
		Heading:        ship.Heading(),
		Orientation:    ship.Orientation,
		Speed:          ship.Speed,
		Velocity:       core.Velocity(ship),
		Energy:         s.Energy,
		TargetImpulse:  s.TargetImpulse,
		CurrentImpulse: s.CurrentImpulse,
		SlowImpulse:    s.SlowImpulse,
		Warp:           s.Warp,
		WarpLevel:      s.WarpLevel,
		WarpSpeed:      s.WarpSpeed,
		CreatorID:      s.CreatorID,
		Stations:       make(map[string]string, len(s.Stations)),
		LastMove:       s.LastMoveTimestamp,
	}
	for st, pid := range s.Stations {
		v.Stations[string(st)] = pid
	}
	for _, p := range w.Ships.Crew(ship.ID) {
		v.Crew = append(v.Crew, CrewMember{ID: p.ID, Name: p.Name, Ready: p.ReadyToPlay})
	}
	return v
}

// MapEntryOf projects obj onto the map.
func MapEntryOf(obj *model.SpaceObject) MapEntry {
	h := obj.Heading()
	e := MapEntry{
		ID:       obj.ID,
		Kind:     obj.Kind.String(),
		Name:     obj.Name,
		X:        obj.Position.X(),
		Y:        obj.Position.Z(),
		Altitude: obj.Position.Y(),
		Bearing:  bearing(h),
	}
	if obj.Body != nil {
		e.Radius = obj.Body.Radius
	}
	return e
}

func bearing(h mgl64.Vec3) float64 {
	if h.X() == 0 && h.Z() == 0 {
		return 0
	}
	deg := mgl64.RadToDeg(math.Atan2(h.X(), h.Z()))
	if deg < 0 {
		deg += 360
	}
	return deg
}

// MapEntries projects every object in registry order.
func (w *World) MapEntries() []MapEntry {
	all := w.Objects.All()
	entries := make([]MapEntry, len(all))
	for i, obj := range all {
		entries[i] = MapEntryOf(obj)
	}
	return entries
}

// Sensors returns the WorldUpdate payload for ship: every other object
// strictly inside the sensor range.
func (w *World) Sensors(ship *model.SpaceObject) WorldView {
	v := WorldView{ShipID: ship.ID, Range: w.sensorRange, Objects: []MapEntry{}}
	for _, obj := range w.Objects.Surroundings(ship.Position, w.sensorRange) {
		if obj.ID == ship.ID {
			continue
		}
		v.Objects = append(v.Objects, MapEntryOf(obj))
	}
	return v
}

// Lobby lists the ships a player can join, ordered by name.
func (w *World) Lobby() []ShipSummary {
	ships := w.Ships.Ships()
	out := make([]ShipSummary, 0, len(ships))
	for _, s := range ships {
		out = append(out, ShipSummary{ID: s.ID, Name: s.Name, CreatorID: s.Ship.CreatorID})
	}
	return out
}
