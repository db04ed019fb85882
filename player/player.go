package player

import (
	"damatronics/game"
	"damatronics/gamemaster"
	"damatronics/utils"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

// Player picks a uniformly random legal move for its team and submits it as
// a selection followed by a target.
type Player struct {
	Team game.Team
	rng  *rand.Rand
}

func NewPlayer(team game.Team, seed uint64) *Player {
	return &Player{
		Team: team,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Choose returns a random legal move, or false when there is none.
func (p *Player) Choose(view gamemaster.View) (game.Move, bool) {
	var moves []game.Move
	if forced := view.State.Forced; forced != game.NoPiece {
		moves = utils.Filter(view.Rules.LegalMoves(view.Board, forced, p.Team), game.Move.IsCapture)
	} else {
		moves = game.AllMoves(view.Rules, view.Board, p.Team)
	}
	if len(moves) == 0 {
		return game.Move{}, false
	}
	return moves[p.rng.Intn(len(moves))], true
}

func (p *Player) Act(view gamemaster.View) []gamemaster.Input {
	if view.State.Over || view.State.Turn != p.Team || view.State.Phase == gamemaster.AwaitingArrival {
		return nil
	}
	m, ok := p.Choose(view)
	if !ok {
		log.Debug().Str("team", p.Team.String()).Msg("no legal move")
		return nil
	}
	return []gamemaster.Input{gamemaster.Select(m.Piece), gamemaster.Target(m.Destination)}
}
