package gamemaster

import (
	"fmt"

	"damatronics/game"
)

type EventKind int

const (
	Selected EventKind = iota
	Moved
	Captured
	Promoted
	Arrived
	ComboContinued
	TurnSwitched
	Rejected
	ArrivalTimeout
	GameOver
)

var eventNames = [...]string{
	Selected:       "selected",
	Moved:          "moved",
	Captured:       "captured",
	Promoted:       "promoted",
	Arrived:        "arrived",
	ComboContinued: "combo_continued",
	TurnSwitched:   "turn_switched",
	Rejected:       "rejected",
	ArrivalTimeout: "arrival_timeout",
	GameOver:       "game_over",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("event(%d)", int(k))
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	for i, name := range eventNames {
		if name == string(b) {
			*k = EventKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event %q", string(b))
}

type Event struct {
	Kind  EventKind    `json:"kind"`
	Tick  int          `json:"tick"`
	Team  game.Team    `json:"team"`
	Piece game.PieceID `json:"piece,omitempty"`
	Move  *game.Move   `json:"move,omitempty"`
	// Ticks from commit to arrival, and MOVE resends, for Arrived and ArrivalTimeout.
	Ticks     int    `json:"ticks,omitempty"`
	Resends   int    `json:"resends,omitempty"`
	Escalated bool   `json:"escalated,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type InputKind int

const (
	SelectInput InputKind = iota
	TargetInput
)

// Input is a PieceSelected or CellTargeted event from the input collaborator.
type Input struct {
	Kind  InputKind
	Piece game.PieceID
	Cell  game.Cell
}

func Select(id game.PieceID) Input {
	return Input{Kind: SelectInput, Piece: id}
}

func Target(c game.Cell) Input {
	return Input{Kind: TargetInput, Cell: c}
}
