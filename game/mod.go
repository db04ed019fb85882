package game

import "fmt"

const BOARD_SIZE = 8

// Team is one of the two sides. First moves first and starts on rows 0-2.
type Team int

const (
	First Team = iota
	Second
)

var Teams = [2]Team{First, Second}

func (t Team) Opponent() Team {
	if t == First {
		return Second
	}
	return First
}

// Forward is the row direction a man of this team moves in.
func (t Team) Forward() int {
	if t == First {
		return 1
	}
	return -1
}

// PromotionRow is the far row for the team.
func (t Team) PromotionRow() int {
	if t == First {
		return BOARD_SIZE - 1
	}
	return 0
}

// Prefix is the id prefix of the team's pieces (W_01, B_01).
func (t Team) Prefix() string {
	if t == First {
		return "W"
	}
	return "B"
}

func (t Team) String() string {
	switch t {
	case First:
		return "white"
	case Second:
		return "black"
	}
	return fmt.Sprintf("team(%d)", int(t))
}

func (t Team) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Team) UnmarshalText(b []byte) error {
	switch string(b) {
	case "white":
		*t = First
	case "black":
		*t = Second
	default:
		return fmt.Errorf("unknown team %q", string(b))
	}
	return nil
}

type Rank int

const (
	Man Rank = iota
	King
)

func (r Rank) String() string {
	if r == King {
		return "king"
	}
	return "man"
}

func (r Rank) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rank) UnmarshalText(b []byte) error {
	switch string(b) {
	case "man":
		*r = Man
	case "king":
		*r = King
	default:
		return fmt.Errorf("unknown rank %q", string(b))
	}
	return nil
}

// PieceID names a piece and its physical agent. The empty id means no piece.
type PieceID string

const NoPiece PieceID = ""

// NewPieceID builds the conventional id for the n-th piece of a team, n starting at 1.
func NewPieceID(team Team, n int) PieceID {
	return PieceID(fmt.Sprintf("%s_%02d", team.Prefix(), n))
}
