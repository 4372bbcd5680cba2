package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/bridge-simulator/internal/logging"
)

// TestIntegration_ScriptedFlight runs a short accelerated flight end to end.
func TestIntegration_ScriptedFlight(t *testing.T) {
	var out bytes.Buffer
	res, err := simulate(context.Background(), options{
		Duration: 5 * time.Second,
		Tick:     100 * time.Millisecond,
		Ship:     "Enterprise",
		Impulse:  50,
		Yaw:      90,
	}, &out, logging.Noop())
	if err != nil {
		t.Fatalf("simulate error: %v", err)
	}

	if res.Ticks != 50 {
		t.Fatalf("ticks = %d, want 50", res.Ticks)
	}
	if res.Start == res.End {
		t.Fatalf("expected the ship to move, start == end == %v", res.End)
	}
	// 90 degrees of yaw at 45 degrees per second completes within 5s
	if res.Heading.X() < 0.999 {
		t.Fatalf("heading = %v, want +X after a 90 degree yaw", res.Heading)
	}
	if res.Impulse != 50 {
		t.Fatalf("impulse = %v, want 50 after converging", res.Impulse)
	}
	if !strings.Contains(out.String(), "Simulation complete: 50 ticks") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestSimulateWithScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.json")
	doc := `{"objects": [{"kind": "station", "name": "Spacedock", "position": {"x": 1, "y": 1, "z": 1.0001}, "radius": 5}]}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var out bytes.Buffer
	res, err := simulate(context.Background(), options{
		Duration: time.Second,
		Tick:     100 * time.Millisecond,
		Scenario: path,
		Ship:     "Defiant",
	}, &out, logging.Noop())
	if err != nil {
		t.Fatalf("simulate error: %v", err)
	}
	if res.Contacts != 1 {
		t.Fatalf("contacts = %d, want the nearby station", res.Contacts)
	}
	if !strings.Contains(out.String(), "Loaded scenario: 1 objects, 0 ships") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestSimulateRejectsBadTick(t *testing.T) {
	if _, err := simulate(context.Background(), options{Tick: 0}, &bytes.Buffer{}, logging.Noop()); err == nil {
		t.Fatalf("zero tick should fail")
	}
}
