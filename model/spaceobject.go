package model

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Kind tags what a SpaceObject represents.
type Kind int

const (
	KindShip Kind = iota
	KindPlanet
	KindStation
)

func (k Kind) String() string {
	switch k {
	case KindShip:
		return "ship"
	case KindPlanet:
		return "planet"
	case KindStation:
		return "station"
	default:
		return "unknown"
	}
}

// ParseKind maps a scenario string onto a Kind. Unknown values report false.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "ship":
		return KindShip, true
	case "planet":
		return KindPlanet, true
	case "station":
		return KindStation, true
	default:
		return 0, false
	}
}

// InitialHeading is the direction an object with identity orientation faces.
var InitialHeading = mgl64.Vec3{0, 0, 1}

// SpaceObject is a positioned, oriented entity in the play field.
// Exactly one of Ship or Body is set, selected by Kind.
type SpaceObject struct {
	ID   string
	Kind Kind
	Name string

	// Position is in kilometres inside [0, PlayFieldLength]^3.
	Position mgl64.Vec3
	// Orientation is a rotation matrix and must stay orthonormal.
	Orientation mgl64.Mat3
	// Speed is the scalar velocity along Heading in km/s.
	Speed float64

	Ship *ShipState
	Body *BodyState
}

// BodyState carries planet and station data.
type BodyState struct {
	Radius float64
}

// NewSpaceObject returns an object at the origin with identity orientation.
func NewSpaceObject(kind Kind, name string) *SpaceObject {
	obj := &SpaceObject{
		Kind:        kind,
		Name:        name,
		Orientation: mgl64.Ident3(),
	}
	if kind != KindShip {
		obj.Body = &BodyState{}
	}
	return obj
}

// Heading returns Orientation applied to InitialHeading.
func (o *SpaceObject) Heading() mgl64.Vec3 {
	return o.Orientation.Mul3x1(InitialHeading)
}

// IsShip reports whether the object carries ship state.
func (o *SpaceObject) IsShip() bool {
	return o != nil && o.Kind == KindShip && o.Ship != nil
}
