package kb

import "github.com/signalsfoundry/bridge-simulator/model"

// EventType names a registry change. Values double as broadcast event names.
type EventType string

const (
	EventShipAdded         EventType = "ShipAdded"
	EventShipRemoved       EventType = "ShipRemoved"
	EventPlayerAdded       EventType = "PlayerAdded"
	EventPlayerLeft        EventType = "PlayerLeft"
	EventPlayerAddedToShip EventType = "PlayerAddedToShip"
	EventPlayerReady       EventType = "PlayerReady"
	EventStationTaken      EventType = "StationTaken"
	EventStationReleased   EventType = "StationReleased"
)

// Event is emitted to subscribers after a registry mutation commits.
// Player is a copy taken at emission time.
type Event struct {
	Type     EventType
	ShipID   string
	ShipName string
	// CreatorID is set on ship events. It survives the ship's removal.
	CreatorID string
	Player    model.Player
	Station   model.Station
}
