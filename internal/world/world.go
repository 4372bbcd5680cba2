// Package world owns one game instance: the registries, the action
// scheduler and the broadcast hub, plus the tick that advances them.
package world

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/bridge-simulator/core"
	"github.com/signalsfoundry/bridge-simulator/internal/action"
	"github.com/signalsfoundry/bridge-simulator/internal/channel"
	"github.com/signalsfoundry/bridge-simulator/internal/logging"
	"github.com/signalsfoundry/bridge-simulator/internal/observability"
	"github.com/signalsfoundry/bridge-simulator/kb"
	"github.com/signalsfoundry/bridge-simulator/model"
	"github.com/signalsfoundry/bridge-simulator/timectrl"
)

// Metrics is the union of recorder interfaces a World feeds.
// observability.EngineCollector implements it.
type Metrics interface {
	kb.ObjectCountRecorder
	kb.RegistryCountRecorder
	action.Recorder
	channel.Recorder
}

type options struct {
	queueCapacity int
	metrics       Metrics
	tracer        trace.Tracer
	sensorRange   float64
	fieldLength   float64
	clock         timectrl.SimClock
}

// Option configures a World.
type Option func(*options)

// WithQueueCapacity bounds the action queue.
func WithQueueCapacity(n int) Option {
	return func(o *options) { o.queueCapacity = n }
}

// WithMetrics attaches metrics recorders to every component.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer sets the tracer used for tick spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithSensorRange sets the WorldUpdate radius in km.
func WithSensorRange(r float64) Option {
	return func(o *options) { o.sensorRange = r }
}

// WithFieldLength overrides the play-field edge length in km.
func WithFieldLength(l float64) Option {
	return func(o *options) { o.fieldLength = l }
}

// WithClock sets the clock used to stamp ship moves, usually the game loop.
func WithClock(c timectrl.SimClock) Option {
	return func(o *options) { o.clock = c }
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// World is one game instance. Its mutating methods and Tick must be called
// from a single goroutine, normally the timectrl.Loop worker.
type World struct {
	log logging.Logger

	Objects *kb.ObjectRegistry
	Ships   *kb.ShipRegistry
	Actions *action.Manager
	Channel *channel.Hub

	tracer      trace.Tracer
	sensorRange float64
	fieldLength float64
	clock       timectrl.SimClock

	unsubscribe func()
}

// New builds an empty world.
func New(log logging.Logger, opts ...Option) *World {
	if log == nil {
		log = logging.Noop()
	}
	o := options{
		queueCapacity: action.DefaultQueueCapacity,
		sensorRange:   model.SensorRange,
		fieldLength:   model.PlayFieldLength,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = observability.Tracer()
	}
	if o.clock == nil {
		o.clock = wallClock{}
	}

	objects := kb.NewObjectRegistry()
	ships := kb.NewShipRegistry(objects)
	hub := channel.NewHub()

	actionOpts := []action.ManagerOption{action.WithCapacity(o.queueCapacity)}
	if o.metrics != nil {
		objects.SetMetricsRecorder(o.metrics)
		ships.SetMetricsRecorder(o.metrics)
		hub.SetMetricsRecorder(o.metrics)
		actionOpts = append(actionOpts, action.WithRecorder(o.metrics))
	}

	w := &World{
		log:         log.With(logging.String("component", "world")),
		Objects:     objects,
		Ships:       ships,
		Actions:     action.NewManager(ships, actionOpts...),
		Channel:     hub,
		tracer:      o.tracer,
		sensorRange: o.sensorRange,
		fieldLength: o.fieldLength,
		clock:       o.clock,
	}
	w.unsubscribe = ships.Subscribe(w.forward)
	return w
}

// Close detaches the world from its registry events.
func (w *World) Close() {
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
}

// SensorRange returns the WorldUpdate radius in km.
func (w *World) SensorRange() float64 { return w.sensorRange }

// FieldLength returns the play-field edge length in km.
func (w *World) FieldLength() float64 { return w.fieldLength }

// Tick advances the world by elapsed: scheduled actions first, then ship
// movement with a ShipUpdate per ship, then the GlobalUpdate and each
// ship's WorldUpdate. It matches timectrl.Listener.
func (w *World) Tick(ctx context.Context, elapsed time.Duration) {
	ctx, span := w.tracer.Start(ctx, "world.tick",
		trace.WithAttributes(attribute.Int64("elapsed_us", elapsed.Microseconds())),
	)
	defer span.End()

	queued := w.Actions.Len()
	w.Actions.Update(elapsed)

	now := w.clock.Now()
	ships := w.Ships.Ships()
	for _, ship := range ships {
		core.MoveShipAt(ship, elapsed, now, w.fieldLength)
		w.Channel.Push(channel.ShipKey(ship.ID), channel.EventShipUpdate, w.ShipView(ship))
	}

	w.Channel.Push(channel.Global, channel.EventGlobalUpdate, GlobalView{Time: now, Objects: w.MapEntries()})
	for _, ship := range ships {
		w.Channel.Push(channel.ShipKey(ship.ID), channel.EventWorldUpdate, w.Sensors(ship))
	}

	span.SetAttributes(
		attribute.Int("ships", len(ships)),
		attribute.Int("actions.before", queued),
		attribute.Int("actions.after", w.Actions.Len()),
	)
	w.log.Debug(ctx, "tick",
		logging.Duration("elapsed", elapsed),
		logging.Int("ships", len(ships)),
		logging.Int("actions", queued),
	)
}

// SpawnPoint is where new ships appear: the centre of the play field.
func (w *World) SpawnPoint() mgl64.Vec3 {
	c := w.fieldLength / 2
	return mgl64.Vec3{c, c, c}
}

// AddShip creates a ship named name at the spawn point.
func (w *World) AddShip(name, creatorID string) (*model.SpaceObject, error) {
	ship := model.NewShip(name, creatorID)
	ship.Position = w.SpawnPoint()
	ship.Ship.LastMoveTimestamp = w.clock.Now()
	if err := w.Ships.AddShip(ship); err != nil {
		return nil, err
	}
	return ship, nil
}

// RemovePlayer logs a player out. When they were the last crew member of
// their ship, the ship is removed and its pending actions aborted.
func (w *World) RemovePlayer(ctx context.Context, playerID string) {
	shipID := w.Ships.RemovePlayer(playerID)
	if shipID == "" {
		return
	}
	w.removeShipIfEmpty(ctx, shipID)
}

// JoinShip moves a player onto shipID, removing the ship they leave if it
// is left without crew.
func (w *World) JoinShip(ctx context.Context, shipID, playerID string) error {
	p := w.Ships.Player(playerID)
	if p == nil {
		return fmt.Errorf("%w: %q", kb.ErrPlayerNotFound, playerID)
	}
	previous := p.ShipID
	if err := w.Ships.AddPlayerToShip(shipID, playerID); err != nil {
		return err
	}
	if previous != "" && previous != shipID {
		w.removeShipIfEmpty(ctx, previous)
	}
	return nil
}

func (w *World) removeShipIfEmpty(ctx context.Context, shipID string) {
	if len(w.Ships.Crew(shipID)) != 0 {
		return
	}
	ship := w.Ships.Ship(shipID)
	if ship == nil {
		return
	}
	w.Actions.AbortAll(shipID)
	w.Ships.RemoveShip(shipID)
	w.log.Info(ctx, "removed empty ship",
		logging.String("ship_id", shipID),
		logging.String("ship", ship.Name),
	)
}

// StartGameIfReady pushes GameStarted to the ship channel the first time
// the ship has crew and every member is ready. It reports whether this call
// started the game.
func (w *World) StartGameIfReady(ctx context.Context, shipID string) bool {
	if !w.Ships.StartGame(shipID) {
		return false
	}
	ship := w.Ships.Ship(shipID)
	if ship == nil {
		return false
	}
	w.Channel.Push(channel.ShipKey(shipID), channel.EventGameStarted, GameStartedView{ShipID: shipID, Ship: ship.Name})
	w.log.Info(ctx, "game started", logging.String("ship_id", shipID), logging.Int("crew", len(w.Ships.Crew(shipID))))
	return true
}
