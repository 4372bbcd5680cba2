package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestWithinRange_BoundaryExcluded(t *testing.T) {
	origin := mgl64.Vec3{0, 0, 0}

	if WithinRange(origin, mgl64.Vec3{0, 1, 0}, 1) {
		t.Errorf("point at exactly the radius must be excluded")
	}
	if !WithinRange(origin, mgl64.Vec3{0, 0.999, 0}, 1) {
		t.Errorf("point just inside the radius must be included")
	}
}

func TestClipToField(t *testing.T) {
	got := ClipToField(mgl64.Vec3{-5, 50, 150}, 100)
	want := mgl64.Vec3{0, 50, 100}
	if got != want {
		t.Fatalf("ClipToField = %v, want %v", got, want)
	}
	if !InField(got, 100) {
		t.Fatalf("clipped point %v should be inside the field", got)
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{3, 4, 0}); d != 5 {
		t.Fatalf("Distance = %v, want 5", d)
	}
}
