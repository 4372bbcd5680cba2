package kb

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName indicates a ship or player name is already registered.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrShipNotFound indicates a requested ship was not found.
	ErrShipNotFound = errors.New("ship not found")
	// ErrPlayerNotFound indicates a requested player was not found.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrPlayerExists indicates a player id is already registered.
	ErrPlayerExists = errors.New("player already exists")
	// ErrNotAShip indicates AddShip received an object without ship state.
	ErrNotAShip = errors.New("object is not a ship")
)

// DuplicateNameError reports which kind of entity collided on name.
type DuplicateNameError struct {
	Kind string // "ship" or "player"
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s named %q already exists", e.Kind, e.Name)
}

// Is lets errors.Is(err, ErrDuplicateName) match.
func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateName
}
