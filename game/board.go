package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotPlayable  = errors.New("cell is not playable")
	ErrOccupied     = errors.New("cell is occupied")
	ErrUnknownPiece = errors.New("unknown piece")
	ErrDeadPiece    = errors.New("piece is not alive")
)

// Board is the logical board: an 8x8 grid of piece ids plus the piece records.
// A cell holds an id iff that piece is alive and positioned there.
type Board struct {
	cells  [BOARD_SIZE][BOARD_SIZE]PieceID
	pieces map[PieceID]*Piece
}

func NewBoard() *Board {
	return &Board{pieces: make(map[PieceID]*Piece)}
}

// NewStandardBoard returns the 12 vs 12 opening position. Ids are numbered in
// row-major order from the team's back row.
func NewStandardBoard() *Board {
	b := NewBoard()
	n := [2]int{}
	for row := 0; row < BOARD_SIZE; row++ {
		var team Team
		switch {
		case row <= 2:
			team = First
		case row >= BOARD_SIZE-3:
			team = Second
		default:
			continue
		}
		for col := 0; col < BOARD_SIZE; col++ {
			c := Cell{Row: row, Col: col}
			if !c.Playable() {
				continue
			}
			n[team]++
			if err := b.Place(NewPieceID(team, n[team]), team, Man, c); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Place adds a new live piece.
func (b *Board) Place(id PieceID, team Team, rank Rank, c Cell) error {
	if id == NoPiece {
		return fmt.Errorf("place: empty piece id")
	}
	if _, ok := b.pieces[id]; ok {
		return fmt.Errorf("place %s: duplicate id", id)
	}
	if !c.Playable() {
		return fmt.Errorf("place %s at %s: %w", id, c, ErrNotPlayable)
	}
	if b.cells[c.Row][c.Col] != NoPiece {
		return fmt.Errorf("place %s at %s: %w", id, c, ErrOccupied)
	}
	b.pieces[id] = &Piece{ID: id, Team: team, Rank: rank, Cell: c, Alive: true}
	b.cells[c.Row][c.Col] = id
	return nil
}

// Relocate moves a live piece to an empty playable cell.
func (b *Board) Relocate(id PieceID, to Cell) error {
	p, ok := b.pieces[id]
	if !ok {
		return fmt.Errorf("relocate %s: %w", id, ErrUnknownPiece)
	}
	if !p.Alive {
		return fmt.Errorf("relocate %s: %w", id, ErrDeadPiece)
	}
	if !to.Playable() {
		return fmt.Errorf("relocate %s to %s: %w", id, to, ErrNotPlayable)
	}
	if to == p.Cell {
		return nil
	}
	if b.cells[to.Row][to.Col] != NoPiece {
		return fmt.Errorf("relocate %s to %s: %w", id, to, ErrOccupied)
	}
	b.cells[p.Cell.Row][p.Cell.Col] = NoPiece
	b.cells[to.Row][to.Col] = id
	p.Cell = to
	return nil
}

// Kill clears the piece's cell and marks it dead. The record is kept.
func (b *Board) Kill(id PieceID) error {
	p, ok := b.pieces[id]
	if !ok {
		return fmt.Errorf("kill %s: %w", id, ErrUnknownPiece)
	}
	if !p.Alive {
		return fmt.Errorf("kill %s: %w", id, ErrDeadPiece)
	}
	b.cells[p.Cell.Row][p.Cell.Col] = NoPiece
	p.Alive = false
	return nil
}

// Promote turns a live man into a king. Kings stay kings.
func (b *Board) Promote(id PieceID) bool {
	p, ok := b.pieces[id]
	if !ok || !p.Alive || p.Rank == King {
		return false
	}
	p.Rank = King
	return true
}

func (b *Board) PieceAt(c Cell) (Piece, bool) {
	if !c.InBounds() {
		return Piece{}, false
	}
	id := b.cells[c.Row][c.Col]
	if id == NoPiece {
		return Piece{}, false
	}
	return *b.pieces[id], true
}

func (b *Board) Empty(c Cell) bool {
	return c.InBounds() && b.cells[c.Row][c.Col] == NoPiece
}

func (b *Board) Piece(id PieceID) (Piece, bool) {
	p, ok := b.pieces[id]
	if !ok {
		return Piece{}, false
	}
	return *p, true
}

// Pieces returns every piece record of the team, dead ones included, sorted by id.
func (b *Board) Pieces(team Team) []Piece {
	pieces := []Piece{}
	for _, p := range b.pieces {
		if p.Team == team {
			pieces = append(pieces, *p)
		}
	}
	sort.Slice(pieces, func(i, j int) bool { return pieces[i].ID < pieces[j].ID })
	return pieces
}

func (b *Board) Alive(team Team) int {
	n := 0
	for _, p := range b.pieces {
		if p.Team == team && p.Alive {
			n++
		}
	}
	return n
}

// Check verifies that the grid and the live piece records are a bijection.
func (b *Board) Check() error {
	seen := 0
	for row := 0; row < BOARD_SIZE; row++ {
		for col := 0; col < BOARD_SIZE; col++ {
			id := b.cells[row][col]
			if id == NoPiece {
				continue
			}
			c := Cell{Row: row, Col: col}
			p, ok := b.pieces[id]
			switch {
			case !ok:
				return fmt.Errorf("cell %s holds unknown piece %s", c, id)
			case !p.Alive:
				return fmt.Errorf("cell %s holds dead piece %s", c, id)
			case p.Cell != c:
				return fmt.Errorf("cell %s holds %s which is recorded at %s", c, id, p.Cell)
			case !c.Playable():
				return fmt.Errorf("piece %s on unplayable cell %s", id, c)
			}
			seen++
		}
	}
	alive := b.Alive(First) + b.Alive(Second)
	if seen != alive {
		return fmt.Errorf("%d occupied cells but %d live pieces", seen, alive)
	}
	return nil
}

func (b *Board) Copy() *Board {
	c := &Board{
		cells:  b.cells,
		pieces: make(map[PieceID]*Piece, len(b.pieces)),
	}
	for id, p := range b.pieces {
		cp := *p
		c.pieces[id] = &cp
	}
	return c
}

// String draws the board with row 7 on top. w/b are men, W/B kings.
func (b *Board) String() string {
	var sb strings.Builder
	for row := BOARD_SIZE - 1; row >= 0; row-- {
		fmt.Fprintf(&sb, "%d ", row)
		for col := 0; col < BOARD_SIZE; col++ {
			c := Cell{Row: row, Col: col}
			p, ok := b.PieceAt(c)
			switch {
			case ok:
				sym := strings.ToLower(p.Team.Prefix())
				if p.Rank == King {
					sym = strings.ToUpper(sym)
				}
				sb.WriteString(sym)
			case c.Playable():
				sb.WriteByte('.')
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  01234567\n")
	return sb.String()
}
