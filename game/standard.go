package game

// StandardRules are Spanish-style draughts: men move and capture forward only,
// kings fly along any diagonal and capture at distance.
type StandardRules struct {
	Capture            CapturePolicy
	PromotionEndsCombo bool
}

func NewStandardRules() *StandardRules {
	return &StandardRules{
		Capture:            GlobalCapture,
		PromotionEndsCombo: true,
	}
}

func (sr *StandardRules) EndsCombo() bool {
	return sr.PromotionEndsCombo
}

func (sr *StandardRules) Promotes(p Piece, dest Cell) bool {
	return p.Rank == Man && dest.Row == p.Team.PromotionRow()
}

func (sr *StandardRules) LegalMoves(b *Board, id PieceID, turn Team) []Move {
	p, ok := b.Piece(id)
	if !ok || !p.Alive || p.Team != turn {
		return nil
	}
	captures := sr.CaptureMoves(b, id)
	if sr.Capture == GlobalCapture && (len(captures) > 0 || sr.HasCapture(b, turn)) {
		return captures
	}
	return append(captures, sr.simpleMoves(b, p)...)
}

func (sr *StandardRules) CaptureMoves(b *Board, id PieceID) []Move {
	p, ok := b.Piece(id)
	if !ok || !p.Alive {
		return nil
	}
	moves := captureGeometry(b, p)
	for i := range moves {
		moves[i].ContinuesCapture = sr.continues(b, p, moves[i])
	}
	return moves
}

func (sr *StandardRules) simpleMoves(b *Board, p Piece) []Move {
	moves := []Move{}
	for _, d := range p.Directions() {
		c := p.Cell.Add(d[0], d[1])
		for c.InBounds() && b.Empty(c) {
			moves = append(moves, Move{Piece: p.ID, Origin: p.Cell, Destination: c})
			if p.Rank == Man {
				break
			}
			c = c.Add(d[0], d[1])
		}
	}
	return moves
}

// continues plays the capture on a scratch board and reports whether the piece
// could capture again from its landing cell.
func (sr *StandardRules) continues(b *Board, p Piece, m Move) bool {
	if sr.Promotes(p, m.Destination) && sr.PromotionEndsCombo {
		return false
	}
	scratch := b.Copy()
	if err := scratch.Kill(m.Captured); err != nil {
		return false
	}
	if err := scratch.Relocate(p.ID, m.Destination); err != nil {
		return false
	}
	if sr.Promotes(p, m.Destination) {
		scratch.Promote(p.ID)
	}
	moved, _ := scratch.Piece(p.ID)
	return len(captureGeometry(scratch, moved)) > 0
}

// captureGeometry lists the captures of p without the continuation lookahead.
func captureGeometry(b *Board, p Piece) []Move {
	moves := []Move{}
	for _, d := range p.Directions() {
		if p.Rank == Man {
			mid := p.Cell.Add(d[0], d[1])
			land := mid.Add(d[0], d[1])
			victim, ok := b.PieceAt(mid)
			if ok && victim.Team != p.Team && land.Playable() && b.Empty(land) {
				moves = append(moves, Move{Piece: p.ID, Origin: p.Cell, Destination: land, Captured: victim.ID})
			}
			continue
		}

		// King: slide to the first occupied cell, which must be an opponent; every
		// empty cell beyond it up to the next piece or the edge is a landing.
		c := p.Cell.Add(d[0], d[1])
		for c.InBounds() && b.Empty(c) {
			c = c.Add(d[0], d[1])
		}
		victim, ok := b.PieceAt(c)
		if !ok || victim.Team == p.Team {
			continue
		}
		for land := c.Add(d[0], d[1]); land.InBounds() && b.Empty(land); land = land.Add(d[0], d[1]) {
			moves = append(moves, Move{Piece: p.ID, Origin: p.Cell, Destination: land, Captured: victim.ID})
		}
	}
	return moves
}

func (sr *StandardRules) HasCapture(b *Board, team Team) bool {
	for _, p := range b.Pieces(team) {
		if p.Alive && len(captureGeometry(b, p)) > 0 {
			return true
		}
	}
	return false
}

func (sr *StandardRules) HasAnyMove(b *Board, team Team) bool {
	for _, p := range b.Pieces(team) {
		if !p.Alive {
			continue
		}
		if len(captureGeometry(b, p)) > 0 || len(sr.simpleMoves(b, p)) > 0 {
			return true
		}
	}
	return false
}
