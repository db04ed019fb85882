package server

import (
	"fmt"

	"damatronics/game"
	"damatronics/gamemaster"
)

// Game is the match the server exposes.
type Game interface {
	Push(gamemaster.Input)
	Snapshot() gamemaster.Snapshot
	Subscribe(func(gamemaster.Event))
}

type SelectRequest struct {
	Piece game.PieceID `json:"piece"`
}

type TargetRequest struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// InputMessage is what clients send over the event socket.
type InputMessage struct {
	Kind  string       `json:"kind"` // "select" or "target"
	Piece game.PieceID `json:"piece,omitempty"`
	Row   int          `json:"row,omitempty"`
	Col   int          `json:"col,omitempty"`
}

func (m InputMessage) Input() (gamemaster.Input, error) {
	switch m.Kind {
	case "select":
		if m.Piece == game.NoPiece {
			return gamemaster.Input{}, fmt.Errorf("select without a piece")
		}
		return gamemaster.Select(m.Piece), nil
	case "target":
		return gamemaster.Target(game.Cell{Row: m.Row, Col: m.Col}), nil
	}
	return gamemaster.Input{}, fmt.Errorf("unknown input kind %q", m.Kind)
}

type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
