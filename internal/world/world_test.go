package world

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/bridge-simulator/internal/action"
	"github.com/signalsfoundry/bridge-simulator/internal/channel"
	"github.com/signalsfoundry/bridge-simulator/internal/observability"
	"github.com/signalsfoundry/bridge-simulator/kb"
	"github.com/signalsfoundry/bridge-simulator/model"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var epoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func newTestWorld(t *testing.T, opts ...Option) *World {
	t.Helper()
	w := New(nil, append([]Option{WithClock(fixedClock{epoch})}, opts...)...)
	t.Cleanup(w.Close)
	return w
}

func crewedShip(t *testing.T, w *World, shipName, playerName string) (*model.SpaceObject, *model.Player) {
	t.Helper()
	p := &model.Player{Name: playerName}
	if err := w.Ships.AddPlayer(p); err != nil {
		t.Fatalf("AddPlayer error: %v", err)
	}
	ship, err := w.AddShip(shipName, p.ID)
	if err != nil {
		t.Fatalf("AddShip error: %v", err)
	}
	if err := w.JoinShip(context.Background(), ship.ID, p.ID); err != nil {
		t.Fatalf("JoinShip error: %v", err)
	}
	return ship, p
}

func drain(m *channel.Mailbox) []channel.Message {
	var out []channel.Message
	for {
		select {
		case msg := <-m.Receive():
			out = append(out, msg)
		default:
			return out
		}
	}
}

func eventNames(msgs []channel.Message) []string {
	names := make([]string, len(msgs))
	for i, m := range msgs {
		names[i] = m.Event
	}
	return names
}

func TestTickRunsActionsBeforeMovement(t *testing.T) {
	w := newTestWorld(t)
	ship, _ := crewedShip(t, w, "Enterprise", "kirk")
	start := ship.Position

	ship.Ship.TargetImpulse = 100
	if !w.Actions.Add(action.NewAccelerate(ship.ID)) {
		t.Fatalf("Add accelerate failed")
	}

	w.Tick(context.Background(), time.Second)

	wantSpeed := model.ImpulseAcceleration * 1.0
	if math.Abs(ship.Speed-wantSpeed) > 1e-6 {
		t.Fatalf("speed = %v, want %v", ship.Speed, wantSpeed)
	}
	// movement used the speed produced by this tick's action pass
	moved := ship.Position.Sub(start)
	if math.Abs(moved.Z()-wantSpeed) > 1e-6 || moved.X() != 0 || moved.Y() != 0 {
		t.Fatalf("moved %v, want (0,0,%v)", moved, wantSpeed)
	}
	if !ship.Ship.LastMoveTimestamp.Equal(epoch) {
		t.Fatalf("LastMoveTimestamp = %v, want %v", ship.Ship.LastMoveTimestamp, epoch)
	}
}

func TestTickPushesUpdatesInOrder(t *testing.T) {
	w := newTestWorld(t)
	ship, _ := crewedShip(t, w, "Enterprise", "kirk")

	crew := channel.NewMailbox("crew", 16)
	observer := channel.NewMailbox("observer", 16)
	w.Channel.Subscribe(channel.ShipKey(ship.ID), crew)
	w.Channel.Subscribe(channel.Global, observer)

	w.Tick(context.Background(), 100*time.Millisecond)

	got := eventNames(drain(crew))
	if strings.Join(got, ",") != "ShipUpdate,WorldUpdate" {
		t.Fatalf("ship channel events = %v", got)
	}
	global := drain(observer)
	if len(global) != 1 || global[0].Event != channel.EventGlobalUpdate {
		t.Fatalf("global channel events = %v", eventNames(global))
	}
	view := global[0].Payload.(GlobalView)
	if len(view.Objects) != 1 || view.Objects[0].ID != ship.ID || !view.Time.Equal(epoch) {
		t.Fatalf("global view = %#v", view)
	}
}

func TestShipViewSnapshot(t *testing.T) {
	w := newTestWorld(t)
	ship, kirk := crewedShip(t, w, "Enterprise", "kirk")
	w.Ships.TakeStation(ship.ID, kirk.ID, model.StationHelm)

	v := w.ShipView(ship)
	if v.Name != "Enterprise" || v.Energy != model.MaxEnergy || v.WarpSpeed != 1 {
		t.Fatalf("view = %#v", v)
	}
	if v.Stations["helm"] != kirk.ID || v.Stations["weapons"] != "" {
		t.Fatalf("stations = %v", v.Stations)
	}
	if len(v.Crew) != 1 || v.Crew[0].Name != "kirk" {
		t.Fatalf("crew = %#v", v.Crew)
	}
	if v.Heading.Sub(model.InitialHeading).Len() > 1e-12 {
		t.Fatalf("heading = %v", v.Heading)
	}

	// the view is a copy
	v.Stations["helm"] = ""
	if ship.Ship.Stations[model.StationHelm] != kirk.ID {
		t.Fatalf("mutating the view changed the ship")
	}
}

func TestSensorsExcludeSelfAndFarObjects(t *testing.T) {
	w := newTestWorld(t, WithSensorRange(1000))
	ship, _ := crewedShip(t, w, "Enterprise", "kirk")

	near := model.NewSpaceObject(model.KindPlanet, "near")
	near.Position = ship.Position.Add(mgl64.Vec3{500, 0, 0})
	edge := model.NewSpaceObject(model.KindPlanet, "edge")
	edge.Position = ship.Position.Add(mgl64.Vec3{0, 1000, 0})
	if _, err := w.Objects.Add(near); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if _, err := w.Objects.Add(edge); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	v := w.Sensors(ship)
	if len(v.Objects) != 1 || v.Objects[0].Name != "near" {
		t.Fatalf("sensors = %#v", v.Objects)
	}
	if v.Range != 1000 || v.ShipID != ship.ID {
		t.Fatalf("view header = %q, %v", v.ShipID, v.Range)
	}
}

func TestRemoveLastCrewRemovesShipAndAbortsActions(t *testing.T) {
	w := newTestWorld(t)
	ship, kirk := crewedShip(t, w, "Enterprise", "kirk")

	lobby := channel.NewMailbox("lobby", 16)
	w.Channel.Subscribe(channel.Lobby, lobby)

	turn := action.NewTurn(ship.ID, 0, 90)
	w.Actions.Add(turn)
	w.Actions.Add(action.NewAccelerate(ship.ID))

	w.RemovePlayer(context.Background(), kirk.ID)

	if w.Ships.Ship(ship.ID) != nil || w.Objects.Get(ship.ID) != nil {
		t.Fatalf("empty ship was not removed")
	}
	if !turn.Aborted() {
		t.Fatalf("pending turn should be aborted")
	}
	if w.Actions.Active(action.TypeAccelerate, ship.ID) != nil {
		t.Fatalf("accelerate still indexed")
	}

	got := strings.Join(eventNames(drain(lobby)), ",")
	if got != "PlayerLeft,ShipRemoved" {
		t.Fatalf("lobby events = %s", got)
	}
}

func TestShipRemovedCarriesCreator(t *testing.T) {
	w := newTestWorld(t)
	ship, kirk := crewedShip(t, w, "Enterprise", "kirk")

	lobby := channel.NewMailbox("lobby", 16)
	w.Channel.Subscribe(channel.Lobby, lobby)

	w.RemovePlayer(context.Background(), kirk.ID)

	var removed *ShipSummary
	for _, msg := range drain(lobby) {
		if msg.Event == string(kb.EventShipRemoved) {
			s := msg.Payload.(ShipSummary)
			removed = &s
		}
	}
	if removed == nil {
		t.Fatalf("no ShipRemoved event")
	}
	if removed.ID != ship.ID || removed.Name != "Enterprise" || removed.CreatorID != kirk.ID {
		t.Fatalf("ShipRemoved payload = %+v, want creator %s", *removed, kirk.ID)
	}
}

func TestRemovePlayerKeepsCrewedShip(t *testing.T) {
	w := newTestWorld(t)
	ship, kirk := crewedShip(t, w, "Enterprise", "kirk")
	spock := &model.Player{Name: "spock"}
	if err := w.Ships.AddPlayer(spock); err != nil {
		t.Fatalf("AddPlayer error: %v", err)
	}
	if err := w.JoinShip(context.Background(), ship.ID, spock.ID); err != nil {
		t.Fatalf("JoinShip error: %v", err)
	}

	w.RemovePlayer(context.Background(), kirk.ID)
	if w.Ships.Ship(ship.ID) == nil {
		t.Fatalf("ship with remaining crew was removed")
	}
}

func TestJoinShipRoutesPlayerToShipChannel(t *testing.T) {
	w := newTestWorld(t)
	ship, _ := crewedShip(t, w, "Enterprise", "kirk")
	spock := &model.Player{Name: "spock"}
	if err := w.Ships.AddPlayer(spock); err != nil {
		t.Fatalf("AddPlayer error: %v", err)
	}
	// a session subscribes under the player id
	box := channel.NewMailbox(spock.ID, 16)
	w.Channel.Subscribe(channel.Lobby, box)

	if err := w.JoinShip(context.Background(), ship.ID, spock.ID); err != nil {
		t.Fatalf("JoinShip error: %v", err)
	}

	// one copy via the lobby, one via the ship channel
	var joined int
	for _, name := range eventNames(drain(box)) {
		if name == channel.EventPlayerAddedToShip {
			joined++
		}
	}
	if joined != 2 {
		t.Fatalf("PlayerAddedToShip received %d times, want 2", joined)
	}

	w.RemovePlayer(context.Background(), spock.ID)
	for _, id := range w.Channel.Subscribers(channel.ShipKey(ship.ID)) {
		if id == spock.ID {
			t.Fatalf("departed player still on the ship channel")
		}
	}
}

func TestJoinShipRemovesAbandonedShip(t *testing.T) {
	w := newTestWorld(t)
	first, kirk := crewedShip(t, w, "Enterprise", "kirk")
	second, err := w.AddShip("Defiant", kirk.ID)
	if err != nil {
		t.Fatalf("AddShip error: %v", err)
	}
	if err := w.JoinShip(context.Background(), second.ID, kirk.ID); err != nil {
		t.Fatalf("JoinShip error: %v", err)
	}
	if w.Ships.Ship(first.ID) != nil {
		t.Fatalf("abandoned ship should be removed")
	}
}

func TestStartGameIfReady(t *testing.T) {
	w := newTestWorld(t)
	ship, kirk := crewedShip(t, w, "Enterprise", "kirk")
	box := channel.NewMailbox("crew", 16)
	w.Channel.Subscribe(channel.ShipKey(ship.ID), box)

	if w.StartGameIfReady(context.Background(), ship.ID) {
		t.Fatalf("game should not start before crew is ready")
	}
	if err := w.Ships.SetReady(kirk.ID, true); err != nil {
		t.Fatalf("SetReady error: %v", err)
	}
	if !w.StartGameIfReady(context.Background(), ship.ID) {
		t.Fatalf("game should start once every crew member is ready")
	}
	got := eventNames(drain(box))
	if len(got) != 2 || got[0] != channel.EventPlayerReady || got[1] != channel.EventGameStarted {
		t.Fatalf("ship events = %v", got)
	}
	if w.StartGameIfReady(context.Background(), "missing") {
		t.Fatalf("missing ship cannot start")
	}
}

func TestStartGameIfReadyLatches(t *testing.T) {
	w := newTestWorld(t)
	ship, kirk := crewedShip(t, w, "Enterprise", "kirk")
	box := channel.NewMailbox("crew", 16)
	w.Channel.Subscribe(channel.ShipKey(ship.ID), box)

	for i := 0; i < 3; i++ {
		if err := w.Ships.SetReady(kirk.ID, true); err != nil {
			t.Fatalf("SetReady error: %v", err)
		}
		started := w.StartGameIfReady(context.Background(), ship.ID)
		if started != (i == 0) {
			t.Fatalf("call %d: started = %v", i, started)
		}
	}

	var starts int
	for _, name := range eventNames(drain(box)) {
		if name == channel.EventGameStarted {
			starts++
		}
	}
	if starts != 1 {
		t.Fatalf("GameStarted pushed %d times, want 1", starts)
	}
	if !w.Ships.Ship(ship.ID).Ship.GameStarted {
		t.Fatalf("ship should be marked started")
	}
}

func TestStationEventsReachShipChannel(t *testing.T) {
	w := newTestWorld(t)
	ship, kirk := crewedShip(t, w, "Enterprise", "kirk")
	box := channel.NewMailbox("crew", 16)
	w.Channel.Subscribe(channel.ShipKey(ship.ID), box)

	w.Ships.TakeStation(ship.ID, kirk.ID, model.StationScience)
	msgs := drain(box)
	if len(msgs) != 1 || msgs[0].Event != channel.EventStationTaken {
		t.Fatalf("events = %v", eventNames(msgs))
	}
	sv := msgs[0].Payload.(StationView)
	if sv.Station != "science" || sv.PlayerName != "kirk" {
		t.Fatalf("payload = %#v", sv)
	}
}

func TestWorldFeedsEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	w := newTestWorld(t, WithMetrics(metrics), WithQueueCapacity(1))
	ship, _ := crewedShip(t, w, "Enterprise", "kirk")

	w.Actions.Add(action.NewAccelerate(ship.ID))
	if w.Actions.Add(action.NewTurn(ship.ID, 0, 10)) {
		t.Fatalf("second action should be dropped at capacity 1")
	}
	w.Tick(context.Background(), time.Second)

	if got := testutil.ToFloat64(metrics.Ships); got != 1 {
		t.Fatalf("bridge_ships = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Players); got != 1 {
		t.Fatalf("bridge_players = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ActionsDropped); got != 1 {
		t.Fatalf("bridge_actions_dropped_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.MessagesPushed.WithLabelValues(channel.EventGlobalUpdate)); got != 1 {
		t.Fatalf("GlobalUpdate pushes = %v, want 1", got)
	}
}

func TestAddShipDuplicateName(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.AddShip("Enterprise", ""); err != nil {
		t.Fatalf("AddShip error: %v", err)
	}
	_, err := w.AddShip("Enterprise", "")
	if err == nil || !strings.Contains(err.Error(), "Enterprise") {
		t.Fatalf("duplicate AddShip err = %v", err)
	}
	if !errors.Is(err, kb.ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
}
