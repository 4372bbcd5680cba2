package command

import (
	"context"
	"fmt"
)

// Command names accepted by Dispatch.
const (
	CmdTurn            = "turn"
	CmdSetImpulseSpeed = "setImpulseSpeed"
	CmdSetSlowImpulse  = "setSlowImpulse"
	CmdSetWarp         = "setWarp"
	CmdSetWarpLevel    = "setWarpLevel"
	CmdAddNewShip      = "addNewShip"
	CmdJoinShip        = "joinShip"
	CmdTakeStation     = "takeStation"
	CmdReleaseStation  = "releaseStation"
	CmdReadyToPlay     = "readyToPlay"
)

// Request is a decoded client command.
type Request struct {
	ID      string `json:"id,omitempty" msgpack:"id,omitempty"`
	Command string `json:"command" msgpack:"command"`
	Args    Args   `json:"args" msgpack:"args"`
}

// Args carries the union of command arguments. Pointer fields distinguish
// an omitted argument from its zero value.
type Args struct {
	Name    string   `json:"name,omitempty" msgpack:"name,omitempty"`
	Axis    string   `json:"axis,omitempty" msgpack:"axis,omitempty"`
	Arc     *float64 `json:"arc,omitempty" msgpack:"arc,omitempty"`
	Speed   *float64 `json:"speed,omitempty" msgpack:"speed,omitempty"`
	Enabled *bool    `json:"enabled,omitempty" msgpack:"enabled,omitempty"`
	Level   *float64 `json:"level,omitempty" msgpack:"level,omitempty"`
	ShipID  string   `json:"shipId,omitempty" msgpack:"shipId,omitempty"`
	Station string   `json:"station,omitempty" msgpack:"station,omitempty"`
}

func missing(arg string) error {
	return fmt.Errorf("%w: missing %q", ErrInvalidArgument, arg)
}

// Dispatch routes req to the matching Handler method on behalf of
// playerID and reports the outcome.
func (h *Handler) Dispatch(ctx context.Context, playerID string, req Request) Result {
	var (
		data any
		err  error
	)
	a := req.Args

	switch req.Command {
	case CmdTurn:
		if a.Arc == nil {
			err = missing("arc")
			break
		}
		err = h.Turn(ctx, playerID, a.Axis, *a.Arc)
	case CmdSetImpulseSpeed:
		if a.Speed == nil {
			err = missing("speed")
			break
		}
		err = h.SetImpulseSpeed(ctx, playerID, *a.Speed)
	case CmdSetSlowImpulse:
		if a.Enabled == nil {
			err = missing("enabled")
			break
		}
		err = h.SetSlowImpulse(ctx, playerID, *a.Enabled)
	case CmdSetWarp:
		if a.Enabled == nil {
			err = missing("enabled")
			break
		}
		err = h.SetWarp(ctx, playerID, *a.Enabled)
	case CmdSetWarpLevel:
		if a.Level == nil {
			err = missing("level")
			break
		}
		err = h.SetWarpLevel(ctx, playerID, *a.Level)
	case CmdAddNewShip:
		var id string
		if id, err = h.AddNewShip(ctx, playerID, a.Name); err == nil {
			data = map[string]string{"shipId": id}
		}
	case CmdJoinShip:
		err = h.JoinShip(ctx, playerID, a.ShipID)
	case CmdTakeStation:
		err = h.TakeStation(ctx, playerID, a.Station)
	case CmdReleaseStation:
		err = h.ReleaseStation(ctx, playerID, a.Station)
	case CmdReadyToPlay:
		ready := true
		if a.Enabled != nil {
			ready = *a.Enabled
		}
		var started bool
		if started, err = h.ReadyToPlay(ctx, playerID, ready); err == nil {
			data = map[string]bool{"started": started}
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)
	}

	res := ResultFromError(err)
	res.ID = req.ID
	res.Data = data
	return res
}
