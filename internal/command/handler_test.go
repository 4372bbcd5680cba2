package command

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/bridge-simulator/core"
	"github.com/signalsfoundry/bridge-simulator/internal/action"
	"github.com/signalsfoundry/bridge-simulator/internal/world"
	"github.com/signalsfoundry/bridge-simulator/kb"
	"github.com/signalsfoundry/bridge-simulator/model"
	"github.com/signalsfoundry/bridge-simulator/timectrl"
)

func newTestHandler(t *testing.T, wopts []world.Option, opts ...Option) (*Handler, *world.World) {
	t.Helper()
	w := world.New(nil, wopts...)
	t.Cleanup(w.Close)
	return NewHandler(w, nil, nil, opts...), w
}

func login(t *testing.T, h *Handler, name string) string {
	t.Helper()
	p, err := h.Login(context.Background(), name)
	if err != nil {
		t.Fatalf("Login(%q) error: %v", name, err)
	}
	return p.ID
}

func aboard(t *testing.T, h *Handler, name, ship string) (playerID, shipID string) {
	t.Helper()
	playerID = login(t, h, name)
	shipID, err := h.AddNewShip(context.Background(), playerID, ship)
	if err != nil {
		t.Fatalf("AddNewShip error: %v", err)
	}
	return playerID, shipID
}

func TestLoginValidation(t *testing.T) {
	h, w := newTestHandler(t, nil)
	ctx := context.Background()

	p, err := h.Login(ctx, "  kirk ")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if p.Name != "kirk" || len(p.ID) != 26 {
		t.Fatalf("player = %+v, want trimmed name and ULID id", p)
	}
	if w.Ships.Player(p.ID) == nil {
		t.Fatalf("player should be registered")
	}

	if _, err := h.Login(ctx, "kirk"); !errors.Is(err, kb.ErrDuplicateName) {
		t.Fatalf("duplicate login err = %v, want ErrDuplicateName", err)
	}
	if _, err := h.Login(ctx, "   "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("blank login err = %v, want ErrInvalidArgument", err)
	}
	long := make([]byte, MaxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := h.Login(ctx, string(long)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("long login err = %v, want ErrInvalidArgument", err)
	}
}

func TestCommandsRequirePlayerAndShip(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	ctx := context.Background()

	if err := h.SetWarp(ctx, "ghost", true); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("unknown player err = %v, want ErrNotLoggedIn", err)
	}
	id := login(t, h, "spock")
	if err := h.Turn(ctx, id, "yaw", 10); !errors.Is(err, ErrNoShip) {
		t.Fatalf("shipless turn err = %v, want ErrNoShip", err)
	}
	if err := h.TakeStation(ctx, id, "helm"); !errors.Is(err, ErrNoShip) {
		t.Fatalf("shipless take err = %v, want ErrNoShip", err)
	}
}

func TestAddNewShipJoinsCreator(t *testing.T) {
	h, w := newTestHandler(t, nil)
	pid, sid := aboard(t, h, "kirk", "Enterprise")

	ship := w.Ships.Ship(sid)
	if ship == nil || ship.Name != "Enterprise" {
		t.Fatalf("ship not registered: %+v", ship)
	}
	if ship.Ship.CreatorID != pid {
		t.Fatalf("creator = %q, want %q", ship.Ship.CreatorID, pid)
	}
	if got := w.Ships.Player(pid).ShipID; got != sid {
		t.Fatalf("player ship = %q, want %q", got, sid)
	}

	other := login(t, h, "picard")
	if _, err := h.AddNewShip(context.Background(), other, "Enterprise"); !errors.Is(err, kb.ErrDuplicateName) {
		t.Fatalf("duplicate ship err = %v, want ErrDuplicateName", err)
	}
	if w.Ships.Player(other).ShipID != "" {
		t.Fatalf("failed create must not move the player")
	}
}

func TestJoinShipRemovesAbandonedShip(t *testing.T) {
	h, w := newTestHandler(t, nil)
	ctx := context.Background()
	_, first := aboard(t, h, "kirk", "Enterprise")
	spock, second := aboard(t, h, "spock", "Reliant")

	if err := h.JoinShip(ctx, spock, first); err != nil {
		t.Fatalf("JoinShip error: %v", err)
	}
	if w.Ships.Ship(second) != nil {
		t.Fatalf("empty ship %q should be removed", second)
	}
	if len(w.Ships.Crew(first)) != 2 {
		t.Fatalf("crew = %d, want 2", len(w.Ships.Crew(first)))
	}
	if err := h.JoinShip(ctx, spock, "missing"); !errors.Is(err, kb.ErrShipNotFound) {
		t.Fatalf("join missing err = %v, want ErrShipNotFound", err)
	}
}

func TestTurnSchedulesSingletonPerAxis(t *testing.T) {
	h, w := newTestHandler(t, nil)
	ctx := context.Background()
	pid, sid := aboard(t, h, "kirk", "Enterprise")

	if err := h.Turn(ctx, pid, "yaw", 30); err != nil {
		t.Fatalf("Turn error: %v", err)
	}
	first := w.Actions.Active(action.TurnType(core.AxisYaw), sid)
	if first == nil {
		t.Fatalf("yaw action should be indexed")
	}
	if err := h.Turn(ctx, pid, "YAW", -15); err != nil {
		t.Fatalf("Turn error: %v", err)
	}
	second := w.Actions.Active(action.TurnType(core.AxisYaw), sid)
	if second == first || !first.Aborted() {
		t.Fatalf("newer turn should replace and abort the pending one")
	}
	if err := h.Turn(ctx, pid, "pitch", 5); err != nil {
		t.Fatalf("Turn error: %v", err)
	}
	if w.Actions.Active(action.TurnType(core.AxisPitch), sid) == nil {
		t.Fatalf("pitch action should be indexed independently")
	}

	if err := h.Turn(ctx, pid, "sideways", 5); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("bad axis err = %v, want ErrInvalidArgument", err)
	}
	if err := h.Turn(ctx, pid, "roll", math.NaN()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("NaN arc err = %v, want ErrInvalidArgument", err)
	}
}

func TestTurnDroppedWhenQueueFull(t *testing.T) {
	h, _ := newTestHandler(t, []world.Option{world.WithQueueCapacity(1)})
	ctx := context.Background()
	pid, _ := aboard(t, h, "kirk", "Enterprise")

	if err := h.Turn(ctx, pid, "yaw", 10); err != nil {
		t.Fatalf("Turn error: %v", err)
	}
	if err := h.Turn(ctx, pid, "pitch", 10); !errors.Is(err, ErrActionDropped) {
		t.Fatalf("overflow err = %v, want ErrActionDropped", err)
	}
}

func TestImpulseAndWarpSettings(t *testing.T) {
	h, w := newTestHandler(t, nil)
	ctx := context.Background()
	pid, sid := aboard(t, h, "kirk", "Enterprise")
	ship := w.Ships.Ship(sid)

	if err := h.SetImpulseSpeed(ctx, pid, 40); err != nil {
		t.Fatalf("SetImpulseSpeed error: %v", err)
	}
	if ship.Ship.TargetImpulse != 40 {
		t.Fatalf("target impulse = %v, want 40", ship.Ship.TargetImpulse)
	}
	if w.Actions.Active(action.TypeAccelerate, sid) == nil {
		t.Fatalf("accelerate action should be scheduled")
	}
	for _, bad := range []float64{-1, 100.5, math.Inf(1)} {
		if err := h.SetImpulseSpeed(ctx, pid, bad); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("SetImpulseSpeed(%v) err = %v, want ErrInvalidArgument", bad, err)
		}
	}

	if err := h.SetSlowImpulse(ctx, pid, true); err != nil {
		t.Fatalf("SetSlowImpulse error: %v", err)
	}
	if !ship.Ship.SlowImpulse {
		t.Fatalf("slow impulse should be set")
	}

	if err := h.SetWarpLevel(ctx, pid, 50); err != nil {
		t.Fatalf("SetWarpLevel error: %v", err)
	}
	if ship.Ship.WarpLevel != 50 || ship.Ship.WarpSpeed != core.WarpSpeedFor(50) {
		t.Fatalf("warp level/speed = %v/%v", ship.Ship.WarpLevel, ship.Ship.WarpSpeed)
	}
	if err := h.SetWarp(ctx, pid, true); err != nil {
		t.Fatalf("SetWarp error: %v", err)
	}
	if !ship.Ship.Warp {
		t.Fatalf("warp should be engaged")
	}
}

func TestStations(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	ctx := context.Background()
	kirk, sid := aboard(t, h, "kirk", "Enterprise")
	sulu := login(t, h, "sulu")
	if err := h.JoinShip(ctx, sulu, sid); err != nil {
		t.Fatalf("JoinShip error: %v", err)
	}

	if err := h.TakeStation(ctx, kirk, "helm"); err != nil {
		t.Fatalf("TakeStation error: %v", err)
	}
	if err := h.TakeStation(ctx, sulu, "helm"); !errors.Is(err, ErrStationTaken) {
		t.Fatalf("second take err = %v, want ErrStationTaken", err)
	}
	if err := h.ReleaseStation(ctx, sulu, "helm"); !errors.Is(err, ErrStationNotHeld) {
		t.Fatalf("foreign release err = %v, want ErrStationNotHeld", err)
	}
	if err := h.ReleaseStation(ctx, kirk, "helm"); err != nil {
		t.Fatalf("ReleaseStation error: %v", err)
	}
	if err := h.TakeStation(ctx, sulu, "helm"); err != nil {
		t.Fatalf("take after release error: %v", err)
	}
	if err := h.TakeStation(ctx, kirk, "bridge"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("unknown station err = %v, want ErrInvalidArgument", err)
	}
}

func TestReadyToPlayStartsWhenCrewReady(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	ctx := context.Background()
	kirk, sid := aboard(t, h, "kirk", "Enterprise")
	spock := login(t, h, "spock")
	if err := h.JoinShip(ctx, spock, sid); err != nil {
		t.Fatalf("JoinShip error: %v", err)
	}

	started, err := h.ReadyToPlay(ctx, kirk, true)
	if err != nil || started {
		t.Fatalf("first ready = %v, %v; want not started", started, err)
	}
	started, err = h.ReadyToPlay(ctx, spock, true)
	if err != nil || !started {
		t.Fatalf("second ready = %v, %v; want started", started, err)
	}
	started, err = h.ReadyToPlay(ctx, spock, true)
	if err != nil || started {
		t.Fatalf("repeat ready = %v, %v; game already started", started, err)
	}
}

func TestLogoutRemovesEmptyShip(t *testing.T) {
	h, w := newTestHandler(t, nil)
	ctx := context.Background()
	pid, sid := aboard(t, h, "kirk", "Enterprise")
	if err := h.Turn(ctx, pid, "yaw", 90); err != nil {
		t.Fatalf("Turn error: %v", err)
	}
	pending := w.Actions.Active(action.TurnType(core.AxisYaw), sid)

	if err := h.Logout(ctx, pid); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if w.Ships.Player(pid) != nil || w.Ships.Ship(sid) != nil {
		t.Fatalf("player and empty ship should be gone")
	}
	if !pending.Aborted() {
		t.Fatalf("actions on a removed ship should be aborted")
	}
	if err := h.Logout(ctx, pid); err != nil {
		t.Fatalf("repeat Logout error: %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	h, _ := newTestHandler(t, nil, WithRateLimit(1, 2))
	ctx := context.Background()
	pid, _ := aboard(t, h, "kirk", "Enterprise") // consumes one token

	if err := h.SetWarp(ctx, pid, true); err != nil {
		t.Fatalf("SetWarp within burst error: %v", err)
	}
	if err := h.SetWarp(ctx, pid, false); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("over burst err = %v, want ErrRateLimited", err)
	}

	other := login(t, h, "spock")
	if err := h.JoinShip(ctx, other, "missing"); errors.Is(err, ErrRateLimited) {
		t.Fatalf("limits must be per player")
	}
}

type commandRecord struct {
	command, code string
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []commandRecord
}

func (f *fakeRecorder) ObserveCommand(command, code string, _ time.Duration) {
	f.mu.Lock()
	f.records = append(f.records, commandRecord{command, code})
	f.mu.Unlock()
}

func TestRecorderObservesCodes(t *testing.T) {
	rec := &fakeRecorder{}
	h, _ := newTestHandler(t, nil, WithRecorder(rec))
	ctx := context.Background()

	pid := login(t, h, "kirk")
	_ = h.SetWarp(ctx, pid, true)

	want := []commandRecord{
		{"login", "OK"},
		{"setWarp", "FailedPrecondition"},
	}
	if len(rec.records) != len(want) {
		t.Fatalf("records = %+v, want %+v", rec.records, want)
	}
	for i := range want {
		if rec.records[i] != want[i] {
			t.Fatalf("record[%d] = %+v, want %+v", i, rec.records[i], want[i])
		}
	}
}

func TestCommandsThroughStoppedLoop(t *testing.T) {
	w := world.New(nil)
	t.Cleanup(w.Close)
	loop := timectrl.NewLoop(time.Second, timectrl.Accelerated)
	h := NewHandler(w, loop, nil)

	pid := login(t, h, "kirk")
	if _, err := h.AddNewShip(context.Background(), pid, "Enterprise"); err != nil {
		t.Fatalf("AddNewShip through stopped loop error: %v", err)
	}
	if w.Ships.ShipByName("Enterprise") == nil {
		t.Fatalf("ship should exist")
	}
}

func TestDispatch(t *testing.T) {
	h, w := newTestHandler(t, nil)
	ctx := context.Background()
	pid := login(t, h, "kirk")

	res := h.Dispatch(ctx, pid, Request{ID: "1", Command: CmdAddNewShip, Args: Args{Name: "Enterprise"}})
	if !res.OK || res.ID != "1" {
		t.Fatalf("addNewShip result = %+v", res)
	}
	data, ok := res.Data.(map[string]string)
	if !ok || w.Ships.Ship(data["shipId"]) == nil {
		t.Fatalf("addNewShip data = %#v", res.Data)
	}

	arc := 45.0
	if res := h.Dispatch(ctx, pid, Request{Command: CmdTurn, Args: Args{Axis: "roll", Arc: &arc}}); !res.OK {
		t.Fatalf("turn result = %+v", res)
	}
	if res := h.Dispatch(ctx, pid, Request{Command: CmdTurn, Args: Args{Axis: "roll"}}); res.OK || res.Code != "InvalidArgument" {
		t.Fatalf("turn without arc = %+v, want InvalidArgument", res)
	}
	if res := h.Dispatch(ctx, pid, Request{Command: CmdTakeStation, Args: Args{Station: string(model.StationHelm)}}); !res.OK {
		t.Fatalf("takeStation result = %+v", res)
	}

	res = h.Dispatch(ctx, pid, Request{Command: CmdReadyToPlay})
	if !res.OK {
		t.Fatalf("readyToPlay result = %+v", res)
	}
	if started, _ := res.Data.(map[string]bool); !started["started"] {
		t.Fatalf("sole crew member ready should start the game, data = %#v", res.Data)
	}

	if res := h.Dispatch(ctx, pid, Request{Command: "selfDestruct"}); res.OK || res.Code != "Unimplemented" {
		t.Fatalf("unknown command = %+v, want Unimplemented", res)
	}
}
