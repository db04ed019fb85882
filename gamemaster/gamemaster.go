package gamemaster

import (
	"fmt"

	"damatronics/communication"
	"damatronics/game"
	"damatronics/meta"
	"damatronics/utils"

	"github.com/rs/zerolog/log"
)

// Scene is the part of the simulated world the controller may touch directly.
type Scene interface {
	Snap(name string, pos game.Vec2, heading float64) error
	Spawn(name string, pos game.Vec2) error
	Remove(name string) error
}

type nopScene struct{}

func (nopScene) Snap(string, game.Vec2, float64) error { return nil }
func (nopScene) Spawn(string, game.Vec2) error         { return nil }
func (nopScene) Remove(string) error                   { return nil }

// Disposal is what happens to a captured piece's robot.
type Disposal int

const (
	// Graveyard drives the captured robot to an off-board slot.
	Graveyard Disposal = iota
	// RemoveFromScene deletes the captured robot from the world.
	RemoveFromScene
)

type Config struct {
	Rules        game.Rules
	Geometry     game.Geometry
	StartingTeam game.Team
	// ArrivalTimeoutTicks of 0 waits forever for ARRIVED.
	ArrivalTimeoutTicks int
	MaxResends          int
	Disposal            Disposal
}

func DefaultConfig() Config {
	return Config{
		Rules:               game.NewStandardRules(),
		Geometry:            game.StandardGeometry,
		StartingTeam:        game.First,
		ArrivalTimeoutTicks: meta.ARRIVAL_TIMEOUT_TICKS,
		MaxResends:          meta.MAX_RESENDS,
		Disposal:            Graveyard,
	}
}

func CrownName(id game.PieceID) string {
	return meta.CROWN_PREFIX + string(id)
}

// GameMaster is the turn controller. It owns the board and the game state;
// pieces are only reached through the Communicator and the Scene.
type GameMaster struct {
	Communicator communication.Communicator

	config Config
	board  *game.Board
	scene  Scene
	state  State

	tick int
	// pending move bookkeeping
	movedAt     int
	sentAt      int
	resends     int
	pendingSeqs []uint64

	graves    [2]int
	observers []func(Event)
}

func NewGameMaster(board *game.Board, comm communication.Communicator, scene Scene, config Config) *GameMaster {
	if board == nil || comm == nil {
		panic("game master needs a board and a communicator")
	}
	if config.Rules == nil {
		config.Rules = game.NewStandardRules()
	}
	if config.Geometry.Pitch == 0 {
		config.Geometry = game.StandardGeometry
	}
	if scene == nil {
		scene = nopScene{}
	}
	return &GameMaster{
		Communicator: comm,
		config:       config,
		board:        board,
		scene:        scene,
		state:        State{Turn: config.StartingTeam, Phase: AwaitingSelection},
	}
}

// Subscribe registers fn for every event. Observers run synchronously on the tick.
func (gm *GameMaster) Subscribe(fn func(Event)) {
	gm.observers = append(gm.observers, fn)
}

func (gm *GameMaster) emit(e Event) {
	e.Tick = gm.tick
	for _, fn := range gm.observers {
		fn(e)
	}
}

func (gm *GameMaster) State() State {
	return gm.state.copy()
}

// Board returns a copy of the board.
func (gm *GameMaster) Board() *game.Board {
	return gm.board.Copy()
}

func (gm *GameMaster) Rules() game.Rules {
	return gm.config.Rules
}

func (gm *GameMaster) CurrentTick() int {
	return gm.tick
}

func (gm *GameMaster) Winner() (game.Team, bool) {
	if gm.state.Winner == nil {
		return game.First, false
	}
	return *gm.state.Winner, gm.state.Over
}

func (gm *GameMaster) View() View {
	return View{State: gm.State(), Board: gm.board.Copy(), Rules: gm.config.Rules}
}

func (gm *GameMaster) Snapshot() Snapshot {
	pieces := gm.board.Pieces(game.First)
	pieces = append(pieces, gm.board.Pieces(game.Second)...)
	return Snapshot{
		Tick:   gm.tick,
		State:  gm.State(),
		Pieces: pieces,
	}
}

func (gm *GameMaster) Apply(in Input) error {
	switch in.Kind {
	case SelectInput:
		return gm.SelectPiece(in.Piece)
	case TargetInput:
		return gm.TargetCell(in.Cell)
	}
	return fmt.Errorf("unknown input kind %d", in.Kind)
}

func (gm *GameMaster) ready() error {
	if gm.state.Over {
		return ErrGameOver
	}
	if gm.state.Phase == AwaitingArrival {
		return ErrAwaitingArrival
	}
	return nil
}

// reject reports a refused input. It never changes the state.
func (gm *GameMaster) reject(id game.PieceID, err error) error {
	log.Debug().Err(err).Str("team", gm.state.Turn.String()).Int("tick", gm.tick).Msg("input rejected")
	gm.emit(Event{Kind: Rejected, Team: gm.state.Turn, Piece: id, Reason: err.Error()})
	return err
}

func (gm *GameMaster) SelectPiece(id game.PieceID) error {
	if err := gm.ready(); err != nil {
		return gm.reject(id, err)
	}
	p, ok := gm.board.Piece(id)
	switch {
	case !ok:
		return gm.reject(id, fmt.Errorf("%w: unknown piece %s", ErrInvalidSelection, id))
	case !p.Alive:
		return gm.reject(id, fmt.Errorf("%w: %s was captured", ErrInvalidSelection, id))
	case p.Team != gm.state.Turn:
		return gm.reject(id, fmt.Errorf("%w: %s is not on move", ErrInvalidSelection, id))
	case gm.state.Forced != game.NoPiece && id != gm.state.Forced:
		return gm.reject(id, fmt.Errorf("%w: %s must keep capturing", ErrInvalidSelection, gm.state.Forced))
	}

	gm.state.Selected = id
	gm.state.Phase = PieceSelected
	gm.emit(Event{Kind: Selected, Team: p.Team, Piece: id})
	return nil
}

func (gm *GameMaster) TargetCell(c game.Cell) error {
	if err := gm.ready(); err != nil {
		return gm.reject(game.NoPiece, err)
	}
	if gm.state.Phase != PieceSelected {
		return gm.reject(game.NoPiece, fmt.Errorf("%w: no piece selected", ErrInvalidSelection))
	}
	id := gm.state.Selected
	if !c.Playable() {
		return gm.refuse(id, fmt.Errorf("%w: %s", ErrOutOfBounds, c))
	}

	moves := gm.config.Rules.LegalMoves(gm.board, id, gm.state.Turn)
	if gm.state.Forced != game.NoPiece {
		moves = utils.Filter(moves, game.Move.IsCapture)
	}
	for _, m := range moves {
		if m.Destination == c {
			return gm.commit(m)
		}
	}
	return gm.refuse(id, fmt.Errorf("%w: %s to %s", ErrIllegalMove, id, c))
}

// refuse rejects a target. Outside a capture sequence the selection is dropped.
func (gm *GameMaster) refuse(id game.PieceID, err error) error {
	if gm.state.Forced == game.NoPiece {
		gm.state.Selected = game.NoPiece
		gm.state.Phase = AwaitingSelection
	}
	return gm.reject(id, err)
}

func (gm *GameMaster) commit(m game.Move) error {
	p, _ := gm.board.Piece(m.Piece)
	var victim game.Piece
	if m.IsCapture() {
		victim, _ = gm.board.Piece(m.Captured)
		if err := gm.board.Kill(m.Captured); err != nil {
			return fmt.Errorf("commit %s: %w", m, err)
		}
		gm.state.Captures[p.Team]++
	}
	if err := gm.board.Relocate(m.Piece, m.Destination); err != nil {
		return fmt.Errorf("commit %s: %w", m, err)
	}

	gm.state.Pending = &m
	gm.state.Selected = m.Piece
	gm.state.Phase = AwaitingArrival
	gm.movedAt, gm.sentAt, gm.resends = gm.tick, gm.tick, 0
	seq := gm.Communicator.Send(communication.MoveCommand{Piece: m.Piece, Target: gm.config.Geometry.CellToWorld(m.Destination)})
	gm.pendingSeqs = []uint64{seq}

	log.Info().Str("team", p.Team.String()).Int("tick", gm.tick).Msgf("move %s", m)
	mv := m
	gm.emit(Event{Kind: Moved, Team: p.Team, Piece: m.Piece, Move: &mv})

	if m.IsCapture() {
		gm.dispose(victim)
		gm.emit(Event{Kind: Captured, Team: victim.Team, Piece: victim.ID, Move: &mv})
	}
	log.Debug().Msg("\n" + gm.board.String())
	return nil
}

func (gm *GameMaster) dispose(victim game.Piece) {
	switch gm.config.Disposal {
	case RemoveFromScene:
		if err := gm.scene.Remove(string(victim.ID)); err != nil {
			log.Warn().Err(err).Str("piece", string(victim.ID)).Msg("could not remove captured piece")
		}
		if victim.Rank == game.King {
			if err := gm.scene.Remove(CrownName(victim.ID)); err != nil {
				log.Warn().Err(err).Str("piece", string(victim.ID)).Msg("could not remove crown of captured piece")
			}
		}
	default:
		slot := gm.config.Geometry.Graveyard(victim.Team, gm.graves[victim.Team])
		gm.graves[victim.Team]++
		gm.Communicator.Send(communication.MoveCommand{Piece: victim.ID, Target: slot})
	}
}

// Tick polls the uplink for arrivals and runs the arrival timeout policy.
func (gm *GameMaster) Tick() {
	gm.tick++
	for _, env := range gm.Communicator.Receive() {
		if ev, ok := env.Message.(communication.ArrivalEvent); ok {
			gm.handleArrival(ev)
		}
	}
	gm.checkTimeout()
}

// HandleArrival finalizes the pending move if id is the piece it belongs to.
func (gm *GameMaster) HandleArrival(id game.PieceID) bool {
	return gm.handleArrival(communication.ArrivalEvent{Piece: id})
}

func (gm *GameMaster) handleArrival(ev communication.ArrivalEvent) bool {
	pending := gm.state.Pending
	if gm.state.Phase != AwaitingArrival || pending == nil || ev.Piece != pending.Piece {
		return false
	}
	if ev.Ref != 0 && !utils.Contains(gm.pendingSeqs, ev.Ref) {
		log.Debug().Str("piece", string(ev.Piece)).Uint64("ref", ev.Ref).Msg("stale arrival")
		return false
	}
	gm.finalize(false)
	return true
}

func (gm *GameMaster) checkTimeout() {
	if gm.state.Phase != AwaitingArrival || gm.config.ArrivalTimeoutTicks <= 0 {
		return
	}
	if gm.tick-gm.sentAt < gm.config.ArrivalTimeoutTicks {
		return
	}
	m := gm.state.Pending
	p, _ := gm.board.Piece(m.Piece)
	if gm.resends < gm.config.MaxResends {
		gm.resends++
		gm.sentAt = gm.tick
		seq := gm.Communicator.Send(communication.MoveCommand{Piece: m.Piece, Target: gm.config.Geometry.CellToWorld(m.Destination)})
		gm.pendingSeqs = append(gm.pendingSeqs, seq)
		log.Warn().Str("piece", string(m.Piece)).Int("resends", gm.resends).Msg("arrival timed out, resending")
		gm.emit(Event{Kind: ArrivalTimeout, Team: p.Team, Piece: m.Piece, Ticks: gm.tick - gm.movedAt, Resends: gm.resends})
		return
	}
	log.Warn().Str("piece", string(m.Piece)).Msg("arrival timed out, snapping into place")
	gm.emit(Event{Kind: ArrivalTimeout, Team: p.Team, Piece: m.Piece, Ticks: gm.tick - gm.movedAt, Resends: gm.resends, Escalated: true})
	gm.finalize(true)
}

func (gm *GameMaster) finalize(escalated bool) {
	m := *gm.state.Pending
	p, _ := gm.board.Piece(m.Piece)
	target := gm.config.Geometry.CellToWorld(m.Destination)
	if err := gm.scene.Snap(string(m.Piece), target, 0); err != nil {
		log.Warn().Err(err).Str("piece", string(m.Piece)).Msg("snap failed")
	}
	gm.emit(Event{Kind: Arrived, Team: p.Team, Piece: m.Piece, Move: &m, Ticks: gm.tick - gm.movedAt, Resends: gm.resends, Escalated: escalated})

	rules := gm.config.Rules
	promoted := false
	if rules.Promotes(p, m.Destination) && gm.board.Promote(m.Piece) {
		promoted = true
		if err := gm.scene.Spawn(CrownName(m.Piece), target); err != nil {
			log.Warn().Err(err).Str("piece", string(m.Piece)).Msg("could not spawn crown")
		}
		gm.Communicator.Send(communication.LockCommand{Piece: m.Piece})
		log.Info().Str("piece", string(m.Piece)).Int("tick", gm.tick).Msg("promoted")
		gm.emit(Event{Kind: Promoted, Team: p.Team, Piece: m.Piece})
	}

	gm.state.Pending = nil
	gm.pendingSeqs = nil
	if m.IsCapture() && !(promoted && rules.EndsCombo()) && len(rules.CaptureMoves(gm.board, m.Piece)) > 0 {
		gm.state.Forced = m.Piece
		gm.state.Selected = m.Piece
		gm.state.Phase = PieceSelected
		gm.emit(Event{Kind: ComboContinued, Team: p.Team, Piece: m.Piece})
		return
	}
	gm.endTurn()
}

func (gm *GameMaster) endTurn() {
	gm.state.Forced = game.NoPiece
	gm.state.Selected = game.NoPiece
	gm.state.Phase = AwaitingSelection
	gm.state.Turn = gm.state.Turn.Opponent()
	gm.state.TurnNumber++
	gm.emit(Event{Kind: TurnSwitched, Team: gm.state.Turn})
	gm.checkWinner()
}

// checkWinner ends the game if the side to move has no pieces or no moves.
func (gm *GameMaster) checkWinner() {
	turn := gm.state.Turn
	if gm.board.Alive(turn) > 0 && gm.config.Rules.HasAnyMove(gm.board, turn) {
		return
	}
	winner := turn.Opponent()
	gm.state.Over = true
	gm.state.Winner = &winner
	log.Info().Str("winner", winner.String()).Int("tick", gm.tick).Int("turns", gm.state.TurnNumber).Msg("game over")
	gm.emit(Event{Kind: GameOver, Team: winner})
}
