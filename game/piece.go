package game

type Piece struct {
	ID    PieceID `json:"id"`
	Team  Team    `json:"team"`
	Rank  Rank    `json:"rank"`
	Cell  Cell    `json:"cell"`
	Alive bool    `json:"alive"`
}

func (p Piece) IsKing() bool {
	return p.Rank == King
}

// Directions a piece may travel along. Men only use the two forward diagonals.
func (p Piece) Directions() [][2]int {
	if p.Rank == King {
		return [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	}
	f := p.Team.Forward()
	return [][2]int{{f, 1}, {f, -1}}
}
