package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/bridge-simulator/internal/command"
	"github.com/signalsfoundry/bridge-simulator/internal/logging"
	"github.com/signalsfoundry/bridge-simulator/internal/world"
	"github.com/signalsfoundry/bridge-simulator/model"
	"github.com/signalsfoundry/bridge-simulator/timectrl"
)

// options drives one headless run: a single ship flown by a scripted
// captain, stepped in accelerated time.
type options struct {
	Duration time.Duration
	Tick     time.Duration
	Scenario string
	Ship     string
	Impulse  float64
	Yaw      float64
	Pitch    float64
	Warp     float64
}

// summary is what a run reports once it completes.
type summary struct {
	Ticks    int
	Start    mgl64.Vec3
	End      mgl64.Vec3
	Heading  mgl64.Vec3
	Impulse  float64
	Energy   float64
	Contacts int
}

func main() {
	var opts options
	flag.DurationVar(&opts.Duration, "duration", 60*time.Second, "total simulated duration")
	flag.DurationVar(&opts.Tick, "tick", model.TickInterval, "tick interval")
	flag.StringVar(&opts.Scenario, "scenario", "", "scenario JSON to load before flying")
	flag.StringVar(&opts.Ship, "ship", "Enterprise", "name of the ship to fly")
	flag.Float64Var(&opts.Impulse, "impulse", 50, "target impulse percentage")
	flag.Float64Var(&opts.Yaw, "yaw", 0, "yaw arc in degrees ordered at start")
	flag.Float64Var(&opts.Pitch, "pitch", 0, "pitch arc in degrees ordered at start")
	flag.Float64Var(&opts.Warp, "warp", 0, "warp level percentage; 0 leaves warp disengaged")
	flag.Parse()

	log := logging.NewFromEnv()
	if _, err := simulate(context.Background(), opts, os.Stdout, log); err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}
}

func simulate(ctx context.Context, opts options, out io.Writer, log logging.Logger) (summary, error) {
	if opts.Tick <= 0 {
		return summary{}, fmt.Errorf("tick must be positive, got %s", opts.Tick)
	}

	loop := timectrl.NewLoop(opts.Tick, timectrl.Accelerated, timectrl.WithLogger(log))
	w := world.New(log, world.WithClock(loop))
	defer w.Close()
	loop.AddListener(w.Tick)

	if opts.Scenario != "" {
		f, err := os.Open(opts.Scenario)
		if err != nil {
			return summary{}, fmt.Errorf("open scenario: %w", err)
		}
		sc, err := w.LoadScenario(f)
		f.Close()
		if err != nil {
			return summary{}, err
		}
		fmt.Fprintf(out, "Loaded scenario: %d objects, %d ships\n", len(sc.ObjectIDs), len(sc.ShipIDs))
	}

	// the loop is never started, so commands run inline between steps
	h := command.NewHandler(w, loop, log)
	captain, err := h.Login(ctx, "captain")
	if err != nil {
		return summary{}, err
	}
	shipID, err := h.AddNewShip(ctx, captain.ID, opts.Ship)
	if err != nil {
		return summary{}, err
	}
	if err := h.SetImpulseSpeed(ctx, captain.ID, opts.Impulse); err != nil {
		return summary{}, err
	}
	for _, turn := range []struct {
		axis string
		arc  float64
	}{{"yaw", opts.Yaw}, {"pitch", opts.Pitch}} {
		if turn.arc == 0 {
			continue
		}
		if err := h.Turn(ctx, captain.ID, turn.axis, turn.arc); err != nil {
			return summary{}, err
		}
	}
	if opts.Warp > 0 {
		if err := h.SetWarpLevel(ctx, captain.ID, opts.Warp); err != nil {
			return summary{}, err
		}
		if err := h.SetWarp(ctx, captain.ID, true); err != nil {
			return summary{}, err
		}
	}

	ship := w.Ships.Ship(shipID)
	res := summary{Start: ship.Position}

	fmt.Fprintf(out, "Starting simulation: duration=%s, tick=%s, ship=%s\n", opts.Duration, opts.Tick, opts.Ship)
	for elapsed := time.Duration(0); elapsed < opts.Duration; elapsed += opts.Tick {
		loop.Step(ctx, opts.Tick)
		res.Ticks++

		if res.Ticks%10 == 0 {
			p := ship.Position
			fmt.Fprintf(out, "[%s] %s @ (%.0f, %.0f, %.0f) impulse=%5.1f%% energy=%6.1f\n",
				loop.Now().Format(time.RFC3339),
				ship.Name, p.X(), p.Y(), p.Z(),
				ship.Ship.CurrentImpulse, ship.Ship.Energy,
			)
		}
	}

	res.End = ship.Position
	res.Heading = ship.Heading()
	res.Impulse = ship.Ship.CurrentImpulse
	res.Energy = ship.Ship.Energy
	res.Contacts = len(w.Sensors(ship).Objects)

	fmt.Fprintf(out, "Simulation complete: %d ticks, travelled %.0f km, %d contacts in sensor range.\n",
		res.Ticks, res.End.Sub(res.Start).Len(), res.Contacts)
	return res, nil
}
