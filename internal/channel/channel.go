// Package channel fans events out to named topics. Each topic key maps to
// a set of subscribers; every subscriber sees messages in push order.
package channel

import "strings"

// Key names a broadcast topic.
type Key string

const (
	// Lobby carries ship and player roster changes.
	Lobby Key = "lobby"
	// Global carries the map projection of the whole play field.
	Global Key = "global"

	shipPrefix = "ship:"
)

// ShipKey returns the per-ship topic for shipID.
func ShipKey(shipID string) Key {
	return Key(shipPrefix + shipID)
}

// ShipID extracts the ship id from a per-ship key.
func (k Key) ShipID() (string, bool) {
	s := string(k)
	if !strings.HasPrefix(s, shipPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, shipPrefix), true
}

// Event names pushed by the simulation.
const (
	EventShipUpdate        = "ShipUpdate"
	EventWorldUpdate       = "WorldUpdate"
	EventGlobalUpdate      = "GlobalUpdate"
	EventShipAdded         = "ShipAdded"
	EventShipRemoved       = "ShipRemoved"
	EventPlayerAdded       = "PlayerAdded"
	EventPlayerLeft        = "PlayerLeft"
	EventPlayerAddedToShip = "PlayerAddedToShip"
	EventPlayerReady       = "PlayerReady"
	EventStationTaken      = "StationTaken"
	EventStationReleased   = "StationReleased"
	EventGameStarted       = "GameStarted"
	EventCommandResult     = "CommandResult"
)

// Message is the envelope every subscriber receives.
type Message struct {
	Event   string `json:"event" msgpack:"event"`
	Payload any    `json:"payload" msgpack:"payload"`
}

// Subscriber receives messages for the keys it subscribed to.
// Send must not block; it reports false when the message was dropped.
type Subscriber interface {
	ID() string
	Send(Message) bool
}
