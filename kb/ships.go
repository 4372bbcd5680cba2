package kb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/signalsfoundry/bridge-simulator/model"
)

// RegistryCountRecorder receives ship and player counts after mutations.
type RegistryCountRecorder interface {
	SetRegistryCounts(ships, players int)
}

type subscription struct {
	id int
	fn func(Event)
}

// ShipRegistry owns ships and players, enforces name uniqueness and
// mediates station assignment. Ships are stored in the backing
// ObjectRegistry as well, which assigns their ids.
//
// Subscribers are notified after the registry lock is released.
type ShipRegistry struct {
	mu sync.RWMutex

	objects *ObjectRegistry

	ships     map[string]*model.SpaceObject
	shipNames map[string]string // name -> id

	players     map[string]*model.Player
	playerNames map[string]string // name -> id

	subs    []subscription
	nextSub int

	metrics RegistryCountRecorder
}

// NewShipRegistry constructs a registry backed by objects.
func NewShipRegistry(objects *ObjectRegistry) *ShipRegistry {
	if objects == nil {
		objects = NewObjectRegistry()
	}
	return &ShipRegistry{
		objects:     objects,
		ships:       make(map[string]*model.SpaceObject),
		shipNames:   make(map[string]string),
		players:     make(map[string]*model.Player),
		playerNames: make(map[string]string),
	}
}

// Objects exposes the backing object registry.
func (r *ShipRegistry) Objects() *ObjectRegistry {
	return r.objects
}

// SetMetricsRecorder attaches an optional count recorder.
func (r *ShipRegistry) SetMetricsRecorder(m RegistryCountRecorder) {
	r.mu.Lock()
	r.metrics = m
	r.mu.Unlock()
	r.recordCounts()
}

// Subscribe registers a callback for registry events. It returns an
// unsubscribe function.
func (r *ShipRegistry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.subs = append(r.subs, subscription{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// AddShip registers ship. A name collision fails with a *DuplicateNameError
// and leaves the registry untouched.
func (r *ShipRegistry) AddShip(ship *model.SpaceObject) error {
	if !ship.IsShip() {
		return ErrNotAShip
	}
	r.mu.Lock()
	if _, exists := r.shipNames[ship.Name]; exists {
		r.mu.Unlock()
		return &DuplicateNameError{Kind: "ship", Name: ship.Name}
	}
	id, err := r.objects.Add(ship)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("add ship %q: %w", ship.Name, err)
	}
	r.ships[id] = ship
	r.shipNames[ship.Name] = id
	ev := Event{Type: EventShipAdded, ShipID: id, ShipName: ship.Name, CreatorID: ship.Ship.CreatorID}
	r.mu.Unlock()

	r.recordCounts()
	r.emit(ev)
	return nil
}

// RemoveShip deletes a ship, detaching its crew. It reports whether the
// ship existed.
func (r *ShipRegistry) RemoveShip(id string) bool {
	r.mu.Lock()
	ship, ok := r.ships[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	for pid := range ship.Ship.Crew {
		if p := r.players[pid]; p != nil && p.ShipID == id {
			p.ShipID = ""
			p.ReadyToPlay = false
		}
	}
	delete(r.ships, id)
	delete(r.shipNames, ship.Name)
	r.objects.Remove(id)
	ev := Event{Type: EventShipRemoved, ShipID: id, ShipName: ship.Name, CreatorID: ship.Ship.CreatorID}
	r.mu.Unlock()

	r.recordCounts()
	r.emit(ev)
	return true
}

// AddPlayer registers player, assigning a ULID when it has no id.
func (r *ShipRegistry) AddPlayer(player *model.Player) error {
	if player == nil {
		return ErrPlayerNotFound
	}
	r.mu.Lock()
	if _, exists := r.playerNames[player.Name]; exists {
		r.mu.Unlock()
		return &DuplicateNameError{Kind: "player", Name: player.Name}
	}
	if player.ID == "" {
		player.ID = ulid.Make().String()
	} else if _, exists := r.players[player.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrPlayerExists, player.ID)
	}
	r.players[player.ID] = player
	r.playerNames[player.Name] = player.ID
	ev := Event{Type: EventPlayerAdded, Player: *player}
	r.mu.Unlock()

	r.recordCounts()
	r.emit(ev)
	return nil
}

// RemovePlayer releases the player's stations, detaches them from their
// ship and deletes the entry. It returns the id of the ship the player
// left, or "" when they had none. Unknown players are a no-op.
func (r *ShipRegistry) RemovePlayer(id string) string {
	r.mu.Lock()
	p, ok := r.players[id]
	if !ok {
		r.mu.Unlock()
		return ""
	}

	var events []Event
	shipID := p.ShipID
	if ship := r.ships[shipID]; ship != nil {
		events = append(events, r.detachLocked(ship, p)...)
	}
	delete(r.players, id)
	delete(r.playerNames, p.Name)
	events = append(events, Event{Type: EventPlayerLeft, ShipID: shipID, Player: *p})
	r.mu.Unlock()

	r.recordCounts()
	r.emit(events...)
	return shipID
}

// detachLocked releases every station p holds on ship and removes p from
// the crew. Caller must hold r.mu.
func (r *ShipRegistry) detachLocked(ship *model.SpaceObject, p *model.Player) []Event {
	var events []Event
	for _, st := range ship.Ship.StationsHeldBy(p.ID) {
		ship.Ship.Stations[st] = ""
		events = append(events, Event{
			Type:     EventStationReleased,
			ShipID:   ship.ID,
			ShipName: ship.Name,
			Player:   *p,
			Station:  st,
		})
	}
	delete(ship.Ship.Crew, p.ID)
	p.ShipID = ""
	p.ReadyToPlay = false
	return events
}

// AddPlayerToShip adds the player to the ship's crew. A player already
// serving on another ship leaves it first.
func (r *ShipRegistry) AddPlayerToShip(shipID, playerID string) error {
	r.mu.Lock()
	ship, ok := r.ships[shipID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrShipNotFound, shipID)
	}
	p, ok := r.players[playerID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrPlayerNotFound, playerID)
	}

	var events []Event
	if p.ShipID != "" && p.ShipID != shipID {
		if prev := r.ships[p.ShipID]; prev != nil {
			events = append(events, r.detachLocked(prev, p)...)
		}
	}
	ship.Ship.Crew[p.ID] = struct{}{}
	p.ShipID = shipID
	events = append(events, Event{Type: EventPlayerAddedToShip, ShipID: shipID, ShipName: ship.Name, Player: *p})
	r.mu.Unlock()

	r.emit(events...)
	return nil
}

// TakeStation assigns station to the player only if it is currently
// empty and the player serves on the ship. It reports success.
func (r *ShipRegistry) TakeStation(shipID, playerID string, station model.Station) bool {
	r.mu.Lock()
	ship, p, ok := r.crewMemberLocked(shipID, playerID)
	if !ok {
		r.mu.Unlock()
		return false
	}
	holder, known := ship.Ship.Stations[station]
	if !known || holder != "" {
		r.mu.Unlock()
		return false
	}
	ship.Ship.Stations[station] = p.ID
	ev := Event{Type: EventStationTaken, ShipID: shipID, ShipName: ship.Name, Player: *p, Station: station}
	r.mu.Unlock()

	r.emit(ev)
	return true
}

// ReleaseStation clears station only if it is held by exactly this
// player. It reports success.
func (r *ShipRegistry) ReleaseStation(shipID, playerID string, station model.Station) bool {
	r.mu.Lock()
	ship, ok := r.ships[shipID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	p, ok := r.players[playerID]
	if !ok || ship.Ship.Stations[station] != p.ID {
		r.mu.Unlock()
		return false
	}
	ship.Ship.Stations[station] = ""
	ev := Event{Type: EventStationReleased, ShipID: shipID, ShipName: ship.Name, Player: *p, Station: station}
	r.mu.Unlock()

	r.emit(ev)
	return true
}

func (r *ShipRegistry) crewMemberLocked(shipID, playerID string) (*model.SpaceObject, *model.Player, bool) {
	ship, ok := r.ships[shipID]
	if !ok {
		return nil, nil, false
	}
	p, ok := r.players[playerID]
	if !ok || p.ShipID != shipID {
		return nil, nil, false
	}
	return ship, p, true
}

// SetReady flags whether the player is ready to play.
func (r *ShipRegistry) SetReady(playerID string, ready bool) error {
	r.mu.Lock()
	p, ok := r.players[playerID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrPlayerNotFound, playerID)
	}
	p.ReadyToPlay = ready
	ev := Event{Type: EventPlayerReady, ShipID: p.ShipID, Player: *p}
	r.mu.Unlock()

	r.emit(ev)
	return nil
}

// StartGame latches the ship's started flag when it has crew and every
// member is ready. It reports true only for the call that set the latch.
func (r *ShipRegistry) StartGame(shipID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ship, ok := r.ships[shipID]
	if !ok || ship.Ship.GameStarted || len(ship.Ship.Crew) == 0 {
		return false
	}
	for pid := range ship.Ship.Crew {
		if p := r.players[pid]; p == nil || !p.ReadyToPlay {
			return false
		}
	}
	ship.Ship.GameStarted = true
	return true
}

// Ship returns the ship with the given id, or nil if not found.
func (r *ShipRegistry) Ship(id string) *model.SpaceObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ships[id]
}

// ShipByName returns the ship registered under name, or nil.
func (r *ShipRegistry) ShipByName(name string) *model.SpaceObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ships[r.shipNames[name]]
}

// Ships returns a snapshot slice of all ships ordered by name.
func (r *ShipRegistry) Ships() []*model.SpaceObject {
	r.mu.RLock()
	res := make([]*model.SpaceObject, 0, len(r.ships))
	for _, s := range r.ships {
		res = append(res, s)
	}
	r.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Player returns the player with the given id, or nil if not found.
func (r *ShipRegistry) Player(id string) *model.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players[id]
}

// PlayerByName returns the player registered under name, or nil.
func (r *ShipRegistry) PlayerByName(name string) *model.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players[r.playerNames[name]]
}

// Players returns a snapshot slice of all players ordered by name.
func (r *ShipRegistry) Players() []*model.Player {
	r.mu.RLock()
	res := make([]*model.Player, 0, len(r.players))
	for _, p := range r.players {
		res = append(res, p)
	}
	r.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Crew resolves the crew ids of a ship into players.
func (r *ShipRegistry) Crew(shipID string) []*model.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ship, ok := r.ships[shipID]
	if !ok {
		return nil
	}
	res := make([]*model.Player, 0, len(ship.Ship.Crew))
	for _, id := range ship.Ship.CrewIDs() {
		if p := r.players[id]; p != nil {
			res = append(res, p)
		}
	}
	return res
}

// Counts returns the number of ships and players.
func (r *ShipRegistry) Counts() (ships, players int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ships), len(r.players)
}

func (r *ShipRegistry) recordCounts() {
	r.mu.RLock()
	m := r.metrics
	ships, players := len(r.ships), len(r.players)
	r.mu.RUnlock()
	if m != nil {
		m.SetRegistryCounts(ships, players)
	}
}

func (r *ShipRegistry) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	r.mu.RLock()
	subs := append([]subscription(nil), r.subs...)
	r.mu.RUnlock()

	for _, ev := range events {
		for _, s := range subs {
			s.fn(ev)
		}
	}
}
