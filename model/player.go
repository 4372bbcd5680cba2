package model

// Player is a connected participant. ShipID is a weak reference.
type Player struct {
	ID          string
	Name        string
	ShipID      string
	ReadyToPlay bool
}
