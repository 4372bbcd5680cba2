package world

import (
	"github.com/signalsfoundry/bridge-simulator/internal/channel"
	"github.com/signalsfoundry/bridge-simulator/kb"
)

// forward relays registry events to the broadcast topics that care.
func (w *World) forward(ev kb.Event) {
	event := string(ev.Type)
	switch ev.Type {
	case kb.EventShipAdded, kb.EventShipRemoved:
		w.Channel.Push(channel.Lobby, event, ShipSummary{ID: ev.ShipID, Name: ev.ShipName, CreatorID: ev.CreatorID})

	case kb.EventPlayerAdded:
		w.Channel.Push(channel.Lobby, event, viewOfPlayer(ev.Player))

	case kb.EventPlayerLeft:
		view := viewOfPlayer(ev.Player)
		view.ShipID = ev.ShipID
		w.Channel.Push(channel.Lobby, event, view)
		if ev.ShipID != "" {
			w.Channel.Push(channel.ShipKey(ev.ShipID), event, view)
		}
		w.Channel.MoveToShip(ev.Player.ID, "")

	case kb.EventPlayerAddedToShip:
		// the joining player is routed to the ship before the push so it
		// sees its own arrival
		w.Channel.MoveToShip(ev.Player.ID, ev.ShipID)
		view := viewOfPlayer(ev.Player)
		w.Channel.Push(channel.Lobby, event, view)
		w.Channel.Push(channel.ShipKey(ev.ShipID), event, view)

	case kb.EventPlayerReady:
		key := channel.Lobby
		if ev.ShipID != "" {
			key = channel.ShipKey(ev.ShipID)
		}
		w.Channel.Push(key, event, viewOfPlayer(ev.Player))

	case kb.EventStationTaken, kb.EventStationReleased:
		w.Channel.Push(channel.ShipKey(ev.ShipID), event, StationView{
			ShipID:     ev.ShipID,
			Station:    string(ev.Station),
			PlayerID:   ev.Player.ID,
			PlayerName: ev.Player.Name,
		})
	}
}
