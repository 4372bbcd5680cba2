package action

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/bridge-simulator/core"
	"github.com/signalsfoundry/bridge-simulator/model"
)

// TypeAccelerate is the type tag of impulse acceleration actions.
const TypeAccelerate = "accelerate"

// TurnType returns the type tag of a turn about axis. Each axis has its
// own tag so a yaw and a pitch can be in flight at the same time.
func TurnType(axis core.Axis) string {
	return "turn." + axis.String()
}

// ShipResolver looks up the ship an action targets at update time.
// kb.ShipRegistry satisfies it.
type ShipResolver interface {
	Ship(id string) *model.SpaceObject
}

// Kind is the closed set of deferred commands. Only Turn and Accelerate
// implement it.
type Kind interface {
	typeTag() string
	// step advances the command on ship by dt seconds and reports
	// whether it is done.
	step(ship *model.SpaceObject, dt float64) bool
}

// Turn rotates a ship about Axis until Arc degrees have been covered,
// at most model.TurnRate degrees per second. Arc is the remaining signed
// arc and shrinks as the action progresses.
type Turn struct {
	Axis core.Axis
	Arc  float64
}

func (t *Turn) typeTag() string { return TurnType(t.Axis) }

func (t *Turn) step(ship *model.SpaceObject, dt float64) bool {
	if t.Arc == 0 {
		return true
	}
	if dt <= 0 {
		return false
	}
	slice := model.TurnRate * dt
	if math.Abs(t.Arc) <= slice {
		core.Turn(ship, t.Arc, t.Axis)
		t.Arc = 0
		return true
	}
	delta := math.Copysign(slice, t.Arc)
	core.Turn(ship, delta, t.Axis)
	t.Arc -= delta
	return false
}

// Accelerate drives a ship's speed toward its TargetImpulse.
type Accelerate struct{}

func (*Accelerate) typeTag() string { return TypeAccelerate }

func (*Accelerate) step(ship *model.SpaceObject, dt float64) bool {
	return core.Accelerate(ship, dt)
}

// Action is a deferred, possibly multi-tick command against one ship.
//
// An action is pending until it is either aborted (set externally, skipped
// on next dequeue) or finished (set by its own Update). Both are terminal.
type Action struct {
	ID        string
	Type      string
	Target    string
	Singleton bool
	Kind      Kind

	finished bool
	aborted  bool
}

var actionSeq atomic.Uint64

// New builds a non-singleton action with a process-unique id.
func New(kind Kind, target string) *Action {
	return &Action{
		ID:     fmt.Sprintf("act-%d", actionSeq.Add(1)),
		Type:   kind.typeTag(),
		Target: target,
		Kind:   kind,
	}
}

// NewTurn builds the singleton turn action for shipID. Its id is the ship
// id so a newer turn about the same axis replaces the older one.
func NewTurn(shipID string, axis core.Axis, arc float64) *Action {
	return newSingleton(&Turn{Axis: axis, Arc: arc}, shipID)
}

// NewAccelerate builds the singleton acceleration action for shipID.
func NewAccelerate(shipID string) *Action {
	return newSingleton(&Accelerate{}, shipID)
}

func newSingleton(kind Kind, shipID string) *Action {
	return &Action{
		ID:        shipID,
		Type:      kind.typeTag(),
		Target:    shipID,
		Singleton: true,
		Kind:      kind,
	}
}

// Finished reports whether the action completed.
func (a *Action) Finished() bool { return a.finished }

// Aborted reports whether the action was cancelled.
func (a *Action) Aborted() bool { return a.aborted }

// Update advances the action by elapsed. A target that no longer resolves
// finishes the action.
func (a *Action) Update(ships ShipResolver, elapsed time.Duration) {
	if a.finished || a.aborted {
		return
	}
	var ship *model.SpaceObject
	if ships != nil {
		ship = ships.Ship(a.Target)
	}
	if ship == nil || a.Kind == nil {
		a.finished = true
		return
	}
	a.finished = a.Kind.step(ship, elapsed.Seconds())
}

func (a *Action) key() actionKey {
	return actionKey{typ: a.Type, id: a.ID}
}

type actionKey struct {
	typ string
	id  string
}
