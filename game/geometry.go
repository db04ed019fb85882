package game

import (
	"fmt"
	"math"
)

type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Cell) InBounds() bool {
	return c.Row >= 0 && c.Row < BOARD_SIZE && c.Col >= 0 && c.Col < BOARD_SIZE
}

// Playable reports whether c is one of the 32 dark squares.
func (c Cell) Playable() bool {
	return c.InBounds() && (c.Row+c.Col)%2 == 0
}

func (c Cell) Add(dr, dc int) Cell {
	return Cell{Row: c.Row + dr, Col: c.Col + dc}
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Vec2 is a point on the world plane, in metres.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

func (v Vec2) Dist(o Vec2) float64 {
	return v.Sub(o).Len()
}

// Geometry maps cells to world coordinates. Cell centres are at Origin + index*Pitch
// on both axes (x follows the column, y the row).
type Geometry struct {
	Origin float64
	Pitch  float64
	// Off-board x coordinate of each team's graveyard column.
	GraveyardX [2]float64
}

var StandardGeometry = Geometry{
	Origin:     -0.7,
	Pitch:      0.2,
	GraveyardX: [2]float64{1.0, -1.0},
}

func (g Geometry) CellToWorld(c Cell) Vec2 {
	return Vec2{
		X: g.Origin + float64(c.Col)*g.Pitch,
		Y: g.Origin + float64(c.Row)*g.Pitch,
	}
}

// WorldToCell rounds to the nearest cell. The result may be out of bounds.
func (g Geometry) WorldToCell(v Vec2) Cell {
	return Cell{
		Row: int(math.Round((v.Y - g.Origin) / g.Pitch)),
		Col: int(math.Round((v.X - g.Origin) / g.Pitch)),
	}
}

// Graveyard returns the parking slot for the n-th captured piece of team, n starting at 0.
func (g Geometry) Graveyard(team Team, n int) Vec2 {
	row := n % BOARD_SIZE
	lane := float64(n / BOARD_SIZE)
	x := g.GraveyardX[team]
	if x >= 0 {
		x += lane * g.Pitch / 2
	} else {
		x -= lane * g.Pitch / 2
	}
	return Vec2{X: x, Y: g.Origin + float64(row)*g.Pitch}
}

func CellToWorld(c Cell) Vec2 {
	return StandardGeometry.CellToWorld(c)
}

func WorldToCell(v Vec2) Cell {
	return StandardGeometry.WorldToCell(v)
}
