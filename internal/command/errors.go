package command

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/bridge-simulator/internal/world"
	"github.com/signalsfoundry/bridge-simulator/kb"
	"github.com/signalsfoundry/bridge-simulator/timectrl"
)

var (
	// ErrNotLoggedIn indicates the acting player is unknown.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrNoShip indicates the acting player has not joined a ship.
	ErrNoShip = errors.New("player has no ship")
	// ErrStationTaken indicates the requested station is occupied.
	ErrStationTaken = errors.New("station already taken")
	// ErrStationNotHeld indicates the player does not hold the station.
	ErrStationNotHeld = errors.New("station not held by player")
	// ErrInvalidArgument indicates a malformed or out-of-range argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRateLimited indicates the player exceeded the command rate.
	ErrRateLimited = errors.New("rate limited")
	// ErrActionDropped indicates the action queue was full.
	ErrActionDropped = errors.New("action queue full; action dropped")
	// ErrUnknownCommand indicates an unrecognised command name.
	ErrUnknownCommand = errors.New("unknown command")
)

// ToStatusError maps command and simulation errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, kb.ErrShipNotFound),
		errors.Is(err, kb.ErrPlayerNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, world.ErrInvalidScenario):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ErrNoShip),
		errors.Is(err, ErrStationTaken),
		errors.Is(err, ErrStationNotHeld),
		errors.Is(err, kb.ErrNotAShip):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, kb.ErrDuplicateName),
		errors.Is(err, kb.ErrPlayerExists):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrActionDropped),
		errors.Is(err, timectrl.ErrBusy):
		return status.Error(codes.ResourceExhausted, err.Error())

	case errors.Is(err, ErrNotLoggedIn):
		return status.Error(codes.Unauthenticated, err.Error())

	case errors.Is(err, ErrUnknownCommand):
		return status.Error(codes.Unimplemented, err.Error())

	case errors.Is(err, timectrl.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Result is the structured outcome reported to the client for a command.
type Result struct {
	ID    string `json:"id,omitempty" msgpack:"id,omitempty"`
	OK    bool   `json:"ok" msgpack:"ok"`
	Code  string `json:"code" msgpack:"code"`
	Error string `json:"error,omitempty" msgpack:"error,omitempty"`
	Data  any    `json:"data,omitempty" msgpack:"data,omitempty"`
}

// ResultFromError converts err into a Result. A nil error is success.
func ResultFromError(err error) Result {
	if err == nil {
		return Result{OK: true, Code: codes.OK.String()}
	}
	st, _ := status.FromError(ToStatusError(err))
	return Result{Code: st.Code().String(), Error: err.Error()}
}
