package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/bridge-simulator/core"
	"github.com/signalsfoundry/bridge-simulator/model"
)

// ErrInvalidScenario indicates a scenario document failed validation.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario summarizes what LoadScenario added.
type Scenario struct {
	ObjectIDs []string
	ShipIDs   []string
}

// internal JSON shapes, unexported so the document format can evolve.
type scenarioJSON struct {
	Objects []bodyJSON `json:"objects"`
	Ships   []shipJSON `json:"ships"`
}

type bodyJSON struct {
	Kind     string       `json:"kind"` // planet | station
	Name     string       `json:"name"`
	Position positionJSON `json:"position"`
	Radius   float64      `json:"radius"`
}

type shipJSON struct {
	Name     string       `json:"name"`
	Position positionJSON `json:"position"`
	// Yaw rotates the ship from the initial heading, in degrees.
	Yaw float64 `json:"yaw"`
}

// positionJSON is in AU, relative to the field origin.
type positionJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p positionJSON) km() mgl64.Vec3 {
	return mgl64.Vec3{p.X, p.Y, p.Z}.Mul(model.AstronomicalUnit)
}

// LoadScenario reads a JSON scenario from r and adds its planets,
// stations and crewless ships to the world. Positions are given in AU and
// must lie inside the play field. Nothing is added when validation fails.
func (w *World) LoadScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	bodies := make([]*model.SpaceObject, 0, len(payload.Objects))
	for i, js := range payload.Objects {
		kind, ok := model.ParseKind(js.Kind)
		if !ok || kind == model.KindShip {
			return nil, fmt.Errorf("%w: object %d has kind %q, want planet or station", ErrInvalidScenario, i, js.Kind)
		}
		if js.Name == "" {
			return nil, fmt.Errorf("%w: object %d has empty name", ErrInvalidScenario, i)
		}
		if js.Radius < 0 {
			return nil, fmt.Errorf("%w: object %q has negative radius", ErrInvalidScenario, js.Name)
		}
		obj := model.NewSpaceObject(kind, js.Name)
		obj.Position = js.Position.km()
		if !core.InField(obj.Position, w.fieldLength) {
			return nil, fmt.Errorf("%w: object %q lies outside the play field", ErrInvalidScenario, js.Name)
		}
		obj.Body.Radius = js.Radius
		bodies = append(bodies, obj)
	}

	seen := make(map[string]bool, len(payload.Ships))
	ships := make([]*model.SpaceObject, 0, len(payload.Ships))
	for i, js := range payload.Ships {
		if js.Name == "" {
			return nil, fmt.Errorf("%w: ship %d has empty name", ErrInvalidScenario, i)
		}
		if seen[js.Name] || w.Ships.ShipByName(js.Name) != nil {
			return nil, fmt.Errorf("%w: duplicate ship name %q", ErrInvalidScenario, js.Name)
		}
		seen[js.Name] = true
		ship := model.NewShip(js.Name, "")
		ship.Position = js.Position.km()
		if !core.InField(ship.Position, w.fieldLength) {
			return nil, fmt.Errorf("%w: ship %q lies outside the play field", ErrInvalidScenario, js.Name)
		}
		core.Turn(ship, js.Yaw, core.AxisYaw)
		ship.Ship.LastMoveTimestamp = w.clock.Now()
		ships = append(ships, ship)
	}

	result := &Scenario{
		ObjectIDs: make([]string, 0, len(bodies)),
		ShipIDs:   make([]string, 0, len(ships)),
	}
	for _, obj := range bodies {
		id, err := w.Objects.Add(obj)
		if err != nil {
			return result, fmt.Errorf("LoadScenario: %w", err)
		}
		result.ObjectIDs = append(result.ObjectIDs, id)
	}
	for _, ship := range ships {
		if err := w.Ships.AddShip(ship); err != nil {
			return result, fmt.Errorf("LoadScenario: %w", err)
		}
		result.ShipIDs = append(result.ShipIDs, ship.ID)
	}
	return result, nil
}
