// Package command validates player inputs and applies them to a World on
// the game loop, reporting structured results.
package command

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/bridge-simulator/core"
	"github.com/signalsfoundry/bridge-simulator/internal/action"
	"github.com/signalsfoundry/bridge-simulator/internal/logging"
	"github.com/signalsfoundry/bridge-simulator/internal/world"
	"github.com/signalsfoundry/bridge-simulator/model"
)

// MaxNameLength bounds player and ship names.
const MaxNameLength = 64

// Executor runs fn where world mutation is allowed. timectrl.Loop
// implements it.
type Executor interface {
	Do(ctx context.Context, fn func() error) error
}

type inline struct{}

func (inline) Do(_ context.Context, fn func() error) error { return fn() }

// Recorder receives per-command metrics. observability.ServerCollector
// implements it.
type Recorder interface {
	ObserveCommand(command, code string, d time.Duration)
}

// Option configures a Handler.
type Option func(*Handler)

// WithRateLimit allows each player r commands per second with the given
// burst. A zero rate disables limiting.
func WithRateLimit(r float64, burst int) Option {
	return func(h *Handler) {
		limit := rate.Limit(r)
		if r <= 0 {
			limit = rate.Inf
		}
		h.limits = newLimiterSet(limit, burst)
	}
}

// WithRecorder attaches a command metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(h *Handler) { h.metrics = r }
}

// Handler is the command surface of a World. Every method is attributed to
// an already authenticated player id.
type Handler struct {
	world   *world.World
	exec    Executor
	log     logging.Logger
	limits  *limiterSet
	metrics Recorder
}

// NewHandler builds a handler. A nil exec runs commands on the caller's
// goroutine.
func NewHandler(w *world.World, exec Executor, log logging.Logger, opts ...Option) *Handler {
	if exec == nil {
		exec = inline{}
	}
	if log == nil {
		log = logging.Noop()
	}
	h := &Handler{
		world: w,
		exec:  exec,
		log:   log.With(logging.String("component", "command")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// run rate limits, executes fn on the executor and records the outcome.
func (h *Handler) run(ctx context.Context, name, playerID string, limited bool, fn func() error) error {
	start := time.Now()
	ctx, log := logging.WithCommandLogger(ctx, h.log.With(
		logging.String("command", name),
		logging.String("player_id", playerID),
	))

	var err error
	if limited && !h.limits.allow(playerID) {
		err = ErrRateLimited
	} else {
		err = h.exec.Do(ctx, fn)
	}

	code := "OK"
	if err != nil {
		st, _ := status.FromError(ToStatusError(err))
		code = st.Code().String()
		log.Debug(ctx, "command rejected", logging.String("code", code), logging.Err(err))
	} else {
		log.Debug(ctx, "command applied")
	}
	if h.metrics != nil {
		h.metrics.ObserveCommand(name, code, time.Since(start))
	}
	return err
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name must not be empty", ErrInvalidArgument)
	}
	if len(name) > MaxNameLength {
		return "", fmt.Errorf("%w: name longer than %d bytes", ErrInvalidArgument, MaxNameLength)
	}
	return name, nil
}

func finite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrInvalidArgument, name)
	}
	return nil
}

func percent(name string, v float64) error {
	if err := finite(name, v); err != nil {
		return err
	}
	if v < 0 || v > 100 {
		return fmt.Errorf("%w: %s must be within [0,100], got %v", ErrInvalidArgument, name, v)
	}
	return nil
}

// player resolves the acting player. Caller runs on the executor.
func (h *Handler) player(playerID string) (*model.Player, error) {
	p := h.world.Ships.Player(playerID)
	if p == nil {
		return nil, ErrNotLoggedIn
	}
	return p, nil
}

// ship resolves the acting player's ship. Caller runs on the executor.
func (h *Handler) ship(playerID string) (*model.Player, *model.SpaceObject, error) {
	p, err := h.player(playerID)
	if err != nil {
		return nil, nil, err
	}
	if p.ShipID == "" {
		return p, nil, ErrNoShip
	}
	s := h.world.Ships.Ship(p.ShipID)
	if s == nil {
		return p, nil, ErrNoShip
	}
	return p, s, nil
}

func (h *Handler) schedule(a *action.Action) error {
	if !h.world.Actions.Add(a) {
		return ErrActionDropped
	}
	return nil
}

// Login registers a new player and returns a copy of it.
func (h *Handler) Login(ctx context.Context, name string) (model.Player, error) {
	var out model.Player
	err := h.run(ctx, "login", "", false, func() error {
		n, err := validName(name)
		if err != nil {
			return err
		}
		p := &model.Player{Name: n}
		if err := h.world.Ships.AddPlayer(p); err != nil {
			return err
		}
		out = *p
		return nil
	})
	return out, err
}

// Logout removes the player. Unknown players are ignored.
func (h *Handler) Logout(ctx context.Context, playerID string) error {
	defer h.limits.forget(playerID)
	return h.run(ctx, "logout", playerID, false, func() error {
		h.world.RemovePlayer(ctx, playerID)
		return nil
	})
}

// Turn schedules a rotation of arc degrees about axis. A newer turn about
// the same axis replaces the pending one.
func (h *Handler) Turn(ctx context.Context, playerID, axis string, arc float64) error {
	return h.run(ctx, "turn", playerID, true, func() error {
		ax, err := core.ParseAxis(axis)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if err := finite("arc", arc); err != nil {
			return err
		}
		_, s, err := h.ship(playerID)
		if err != nil {
			return err
		}
		return h.schedule(action.NewTurn(s.ID, ax, arc))
	})
}

// SetImpulseSpeed sets the target impulse percentage and schedules the
// acceleration toward it.
func (h *Handler) SetImpulseSpeed(ctx context.Context, playerID string, target float64) error {
	return h.run(ctx, "setImpulseSpeed", playerID, true, func() error {
		if err := percent("target", target); err != nil {
			return err
		}
		_, s, err := h.ship(playerID)
		if err != nil {
			return err
		}
		s.Ship.TargetImpulse = target
		return h.schedule(action.NewAccelerate(s.ID))
	})
}

// SetSlowImpulse switches between the normal and slow impulse ranges. The
// ship then re-converges on its target percentage.
func (h *Handler) SetSlowImpulse(ctx context.Context, playerID string, slow bool) error {
	return h.run(ctx, "setSlowImpulse", playerID, true, func() error {
		_, s, err := h.ship(playerID)
		if err != nil {
			return err
		}
		if s.Ship.SlowImpulse == slow {
			return nil
		}
		s.Ship.SlowImpulse = slow
		return h.schedule(action.NewAccelerate(s.ID))
	})
}

// SetWarp engages or disengages the warp drive.
func (h *Handler) SetWarp(ctx context.Context, playerID string, on bool) error {
	return h.run(ctx, "setWarp", playerID, true, func() error {
		_, s, err := h.ship(playerID)
		if err != nil {
			return err
		}
		s.Ship.Warp = on
		return nil
	})
}

// SetWarpLevel sets the warp level percentage and the derived warp speed.
func (h *Handler) SetWarpLevel(ctx context.Context, playerID string, level float64) error {
	return h.run(ctx, "setWarpLevel", playerID, true, func() error {
		if err := percent("level", level); err != nil {
			return err
		}
		_, s, err := h.ship(playerID)
		if err != nil {
			return err
		}
		s.Ship.WarpLevel = level
		s.Ship.WarpSpeed = core.WarpSpeedFor(level)
		return nil
	})
}

// AddNewShip creates a ship and puts its creator aboard. It returns the
// new ship id.
func (h *Handler) AddNewShip(ctx context.Context, playerID, name string) (string, error) {
	var shipID string
	err := h.run(ctx, "addNewShip", playerID, true, func() error {
		n, err := validName(name)
		if err != nil {
			return err
		}
		if _, err := h.player(playerID); err != nil {
			return err
		}
		s, err := h.world.AddShip(n, playerID)
		if err != nil {
			return err
		}
		shipID = s.ID
		return h.world.JoinShip(ctx, s.ID, playerID)
	})
	return shipID, err
}

// JoinShip moves the player onto shipID.
func (h *Handler) JoinShip(ctx context.Context, playerID, shipID string) error {
	return h.run(ctx, "joinShip", playerID, true, func() error {
		if _, err := h.player(playerID); err != nil {
			return err
		}
		return h.world.JoinShip(ctx, shipID, playerID)
	})
}

// TakeStation occupies the named station on the player's ship.
func (h *Handler) TakeStation(ctx context.Context, playerID, position string) error {
	return h.run(ctx, "takeStation", playerID, true, func() error {
		st, ok := model.ParseStation(position)
		if !ok {
			return fmt.Errorf("%w: unknown station %q", ErrInvalidArgument, position)
		}
		p, s, err := h.ship(playerID)
		if err != nil {
			return err
		}
		if !h.world.Ships.TakeStation(s.ID, p.ID, st) {
			return fmt.Errorf("%w: %s", ErrStationTaken, st)
		}
		return nil
	})
}

// ReleaseStation frees the named station if the player holds it.
func (h *Handler) ReleaseStation(ctx context.Context, playerID, position string) error {
	return h.run(ctx, "releaseStation", playerID, true, func() error {
		st, ok := model.ParseStation(position)
		if !ok {
			return fmt.Errorf("%w: unknown station %q", ErrInvalidArgument, position)
		}
		p, s, err := h.ship(playerID)
		if err != nil {
			return err
		}
		if !h.world.Ships.ReleaseStation(s.ID, p.ID, st) {
			return fmt.Errorf("%w: %s", ErrStationNotHeld, st)
		}
		return nil
	})
}

// ReadyToPlay flags the player ready and starts the ship's game once its
// whole crew is ready. It reports whether the game started.
func (h *Handler) ReadyToPlay(ctx context.Context, playerID string, ready bool) (bool, error) {
	var started bool
	err := h.run(ctx, "readyToPlay", playerID, true, func() error {
		p, err := h.player(playerID)
		if err != nil {
			return err
		}
		if err := h.world.Ships.SetReady(p.ID, ready); err != nil {
			return err
		}
		if ready && p.ShipID != "" {
			started = h.world.StartGameIfReady(ctx, p.ShipID)
		}
		return nil
	})
	return started, err
}
