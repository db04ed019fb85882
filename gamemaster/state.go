package gamemaster

import (
	"errors"
	"fmt"

	"damatronics/game"
)

var (
	ErrInvalidSelection = errors.New("invalid selection")
	ErrIllegalMove      = errors.New("illegal move")
	ErrOutOfBounds      = errors.New("cell out of bounds")
	ErrAwaitingArrival  = errors.New("waiting for the moving piece to arrive")
	ErrGameOver         = errors.New("game is over")
)

type Phase int

const (
	AwaitingSelection Phase = iota
	PieceSelected
	AwaitingArrival
)

func (p Phase) String() string {
	switch p {
	case AwaitingSelection:
		return "awaiting_selection"
	case PieceSelected:
		return "piece_selected"
	case AwaitingArrival:
		return "awaiting_arrival"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for _, phase := range []Phase{AwaitingSelection, PieceSelected, AwaitingArrival} {
		if phase.String() == string(b) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(b))
}

// State is the controller's game state. Pending is set between a committed
// move and its arrival; Forced is set while one piece is mid capture sequence.
type State struct {
	Turn       game.Team    `json:"turn"`
	Phase      Phase        `json:"phase"`
	Selected   game.PieceID `json:"selected,omitempty"`
	Forced     game.PieceID `json:"forced,omitempty"`
	Pending    *game.Move   `json:"pending,omitempty"`
	TurnNumber int          `json:"turn_number"`
	Captures   [2]int       `json:"captures"`
	Over       bool         `json:"over"`
	Winner     *game.Team   `json:"winner,omitempty"`
}

func (s State) copy() State {
	if s.Pending != nil {
		m := *s.Pending
		s.Pending = &m
	}
	if s.Winner != nil {
		w := *s.Winner
		s.Winner = &w
	}
	return s
}

// Snapshot is a read-only view of a match for observers.
type Snapshot struct {
	Match  string       `json:"match"`
	Tick   int          `json:"tick"`
	State  State        `json:"state"`
	Pieces []game.Piece `json:"pieces"`
	// Robot positions in world coordinates, keyed by entity name.
	Poses map[string]game.Vec2 `json:"poses,omitempty"`
}

// View is what an input source sees when deciding what to submit.
type View struct {
	State State
	Board *game.Board
	Rules game.Rules
}
