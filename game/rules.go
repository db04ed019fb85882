package game

type Rules interface {
	// LegalMoves lists the moves available to the piece when turn is on move.
	// Dead pieces and pieces of the other team have none.
	LegalMoves(b *Board, id PieceID, turn Team) []Move
	// CaptureMoves lists only the captures of the piece, ignoring whose turn it is
	// and without consulting the mandatory-capture rule.
	CaptureMoves(b *Board, id PieceID) []Move
	HasCapture(b *Board, team Team) bool
	HasAnyMove(b *Board, team Team) bool
	Promotes(p Piece, dest Cell) bool
	// EndsCombo reports whether a promotion stops a capture sequence.
	EndsCombo() bool
}

type CapturePolicy int

const (
	// GlobalCapture: if any piece of the side to move can capture, only captures are legal.
	GlobalCapture CapturePolicy = iota
	// ComboCapture: captures are only forced while a piece is mid-sequence.
	ComboCapture
)

func (p CapturePolicy) String() string {
	if p == ComboCapture {
		return "combo"
	}
	return "global"
}

func ParseCapturePolicy(s string) (CapturePolicy, bool) {
	switch s {
	case "", "global":
		return GlobalCapture, true
	case "combo":
		return ComboCapture, true
	}
	return GlobalCapture, false
}

// FindMove returns the legal move of id that lands on dest.
func FindMove(r Rules, b *Board, id PieceID, turn Team, dest Cell) (Move, bool) {
	for _, m := range r.LegalMoves(b, id, turn) {
		if m.Destination == dest {
			return m, true
		}
	}
	return Move{}, false
}

// AllMoves lists the legal moves of every live piece of team.
func AllMoves(r Rules, b *Board, team Team) []Move {
	moves := []Move{}
	for _, p := range b.Pieces(team) {
		if p.Alive {
			moves = append(moves, r.LegalMoves(b, p.ID, team)...)
		}
	}
	return moves
}
