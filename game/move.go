package game

import "fmt"

// Move is a single hop of a piece. A capture removes exactly one opponent piece.
type Move struct {
	Piece       PieceID `json:"piece"`
	Origin      Cell    `json:"origin"`
	Destination Cell    `json:"destination"`
	Captured    PieceID `json:"captured,omitempty"`
	// ContinuesCapture is set when the piece could capture again after landing.
	ContinuesCapture bool `json:"continues_capture"`
}

func (m Move) IsCapture() bool {
	return m.Captured != NoPiece
}

func (m Move) String() string {
	if m.IsCapture() {
		return fmt.Sprintf("%s %s x%s %s", m.Piece, m.Origin, m.Captured, m.Destination)
	}
	return fmt.Sprintf("%s %s-%s", m.Piece, m.Origin, m.Destination)
}
