package gamemaster

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"damatronics/communication"
	"damatronics/game"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

type recordingScene struct {
	snaps   map[string]game.Vec2
	spawned []string
	removed []string
	fail    map[string]error
}

func newRecordingScene() *recordingScene {
	return &recordingScene{snaps: map[string]game.Vec2{}}
}

func (s *recordingScene) Snap(name string, pos game.Vec2, heading float64) error {
	s.snaps[name] = pos
	return nil
}

func (s *recordingScene) Spawn(name string, pos game.Vec2) error {
	s.spawned = append(s.spawned, name)
	return nil
}

func (s *recordingScene) Remove(name string) error {
	s.removed = append(s.removed, name)
	return s.fail[name]
}

type fixture struct {
	t      *testing.T
	bus    *communication.Bus
	scene  *recordingScene
	gm     *GameMaster
	events []Event
}

func newFixture(t *testing.T, board *game.Board, config Config) *fixture {
	f := &fixture{t: t, bus: communication.NewBus(), scene: newRecordingScene()}
	f.gm = NewGameMaster(board, f.bus.Controller(), f.scene, config)
	f.gm.Subscribe(func(e Event) { f.events = append(f.events, e) })
	return f
}

// step ends the current tick and runs the controller on the next one. It
// returns the downlink frames sent during the ended tick.
func (f *fixture) step() []communication.Envelope {
	f.bus.Advance()
	sent := f.bus.Agent().Receive()
	f.gm.Tick()
	return sent
}

// arrive reports arrival of id on the uplink and lets the controller see it.
func (f *fixture) arrive(id game.PieceID) {
	f.bus.Agent().Send(communication.ArrivalEvent{Piece: id})
	f.step()
}

func (f *fixture) play(id game.PieceID, row, col int) {
	f.t.Helper()
	require.NoError(f.t, f.gm.SelectPiece(id))
	require.NoError(f.t, f.gm.TargetCell(game.Cell{Row: row, Col: col}))
}

func (f *fixture) kinds() []EventKind {
	kinds := []EventKind{}
	for _, e := range f.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// requireMove checks a MOVE frame. Coordinates travel with four decimals.
func requireMove(t *testing.T, env communication.Envelope, id game.PieceID, target game.Vec2) {
	t.Helper()
	m, ok := env.Message.(communication.MoveCommand)
	require.True(t, ok, "want a MOVE, got %T", env.Message)
	require.Equal(t, id, m.Piece)
	require.InDelta(t, target.X, m.Target.X, 1e-4)
	require.InDelta(t, target.Y, m.Target.Y, 1e-4)
}

func board(t *testing.T, pieces ...game.Piece) *game.Board {
	b := game.NewBoard()
	for _, p := range pieces {
		require.NoError(t, b.Place(p.ID, p.Team, p.Rank, p.Cell))
	}
	return b
}

func man(id string, team game.Team, row, col int) game.Piece {
	return game.Piece{ID: game.PieceID(id), Team: team, Rank: game.Man, Cell: game.Cell{Row: row, Col: col}}
}

func TestSelection(t *testing.T) {
	setup := func(t *testing.T) *fixture {
		b := board(t, man("W_01", game.First, 2, 2), man("W_02", game.First, 2, 4), man("B_01", game.Second, 5, 5), man("B_02", game.Second, 7, 1))
		require.NoError(t, b.Kill("B_02"))
		return newFixture(t, b, DefaultConfig())
	}

	t.Run("rejections leave the state alone", func(t *testing.T) {
		f := setup(t)
		before := f.gm.State()
		require.ErrorIs(t, f.gm.SelectPiece("X_99"), ErrInvalidSelection)
		require.ErrorIs(t, f.gm.SelectPiece("B_01"), ErrInvalidSelection, "wrong team")
		require.ErrorIs(t, f.gm.SelectPiece("B_02"), ErrInvalidSelection, "dead piece")
		require.ErrorIs(t, f.gm.TargetCell(game.Cell{Row: 3, Col: 3}), ErrInvalidSelection, "nothing selected")
		require.Equal(t, before, f.gm.State())
		require.Equal(t, []EventKind{Rejected, Rejected, Rejected, Rejected}, f.kinds())
	})

	t.Run("reselect", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.gm.SelectPiece("W_01"))
		require.NoError(t, f.gm.SelectPiece("W_02"))
		s := f.gm.State()
		require.Equal(t, PieceSelected, s.Phase)
		require.Equal(t, game.PieceID("W_02"), s.Selected)
	})

	t.Run("illegal target clears the selection", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.gm.SelectPiece("W_01"))
		require.ErrorIs(t, f.gm.TargetCell(game.Cell{Row: 4, Col: 4}), ErrIllegalMove)
		s := f.gm.State()
		require.Equal(t, AwaitingSelection, s.Phase)
		require.Equal(t, game.NoPiece, s.Selected)

		require.NoError(t, f.gm.SelectPiece("W_01"))
		require.ErrorIs(t, f.gm.TargetCell(game.Cell{Row: 3, Col: 2}), ErrOutOfBounds, "light cell")
		require.Equal(t, AwaitingSelection, f.gm.State().Phase)
		require.NoError(t, f.gm.SelectPiece("W_01"))
		require.ErrorIs(t, f.gm.TargetCell(game.Cell{Row: 9, Col: 1}), ErrOutOfBounds)
	})
}

func TestMoveLifecycle(t *testing.T) {
	b := board(t, man("W_01", game.First, 2, 2), man("B_01", game.Second, 5, 5))
	f := newFixture(t, b, DefaultConfig())

	f.play("W_01", 3, 3)
	s := f.gm.State()
	require.Equal(t, AwaitingArrival, s.Phase)
	require.NotNil(t, s.Pending)
	require.Equal(t, game.Cell{Row: 3, Col: 3}, s.Pending.Destination)

	p, ok := f.gm.Board().PieceAt(game.Cell{Row: 3, Col: 3})
	require.True(t, ok, "board is updated at commit")
	require.Equal(t, game.PieceID("W_01"), p.ID)

	require.ErrorIs(t, f.gm.SelectPiece("W_01"), ErrAwaitingArrival)
	require.ErrorIs(t, f.gm.TargetCell(game.Cell{Row: 4, Col: 4}), ErrAwaitingArrival)

	sent := f.step()
	require.Len(t, sent, 1)
	requireMove(t, sent[0], "W_01", game.CellToWorld(game.Cell{Row: 3, Col: 3}))

	require.False(t, f.gm.HandleArrival("B_01"), "not the moving piece")
	require.Equal(t, AwaitingArrival, f.gm.State().Phase)

	f.arrive("W_01")
	s = f.gm.State()
	require.Equal(t, AwaitingSelection, s.Phase)
	require.Equal(t, game.Second, s.Turn)
	require.Nil(t, s.Pending)
	require.Equal(t, 1, s.TurnNumber)
	require.Equal(t, game.CellToWorld(game.Cell{Row: 3, Col: 3}), f.scene.snaps["W_01"], "snapped to the cell centre")
	require.Equal(t, []EventKind{Selected, Moved, Rejected, Rejected, Arrived, TurnSwitched}, f.kinds())

	require.False(t, f.gm.HandleArrival("W_01"), "duplicate arrival")
}

func TestPromotion(t *testing.T) {
	t.Run("simple move", func(t *testing.T) {
		for _, col := range []int{1, 3} {
			b := board(t, man("W_01", game.First, 6, 2), man("B_01", game.Second, 5, 7))
			f := newFixture(t, b, DefaultConfig())
			f.play("W_01", 7, col)
			require.True(t, f.gm.HandleArrival("W_01"))

			p, _ := f.gm.Board().Piece("W_01")
			require.Equal(t, game.King, p.Rank)
			s := f.gm.State()
			require.Equal(t, game.NoPiece, s.Forced)
			require.Equal(t, game.Second, s.Turn)
			require.Equal(t, []string{"CROWN_W_01"}, f.scene.spawned)

			sent := f.step()
			require.Equal(t, communication.LockCommand{Piece: "W_01"}, sent[len(sent)-1].Message)
		}
	})

	t.Run("capture onto the back row ends the sequence", func(t *testing.T) {
		pieces := []game.Piece{man("W_01", game.First, 5, 3), man("B_01", game.Second, 6, 4), man("B_02", game.Second, 6, 6), man("B_03", game.Second, 7, 1)}
		f := newFixture(t, board(t, pieces...), DefaultConfig())
		f.play("W_01", 7, 5)
		f.gm.HandleArrival("W_01")
		s := f.gm.State()
		require.Equal(t, game.Second, s.Turn)
		require.Equal(t, game.NoPiece, s.Forced)

		config := DefaultConfig()
		config.Rules = &game.StandardRules{Capture: game.GlobalCapture, PromotionEndsCombo: false}
		f = newFixture(t, board(t, pieces...), config)
		f.play("W_01", 7, 5)
		f.gm.HandleArrival("W_01")
		s = f.gm.State()
		require.Equal(t, game.First, s.Turn)
		require.Equal(t, game.PieceID("W_01"), s.Forced)
		require.Contains(t, f.kinds(), ComboContinued)
	})
}

func TestCaptureSequence(t *testing.T) {
	b := board(t,
		man("W_01", game.First, 2, 2),
		man("W_02", game.First, 0, 6),
		man("B_01", game.Second, 3, 3),
		man("B_02", game.Second, 5, 5),
		man("B_03", game.Second, 7, 7),
	)
	f := newFixture(t, b, DefaultConfig())

	require.NoError(t, f.gm.SelectPiece("W_02"))
	require.ErrorIs(t, f.gm.TargetCell(game.Cell{Row: 1, Col: 5}), ErrIllegalMove, "capture is mandatory")

	f.play("W_01", 4, 4)
	s := f.gm.State()
	require.Equal(t, 1, s.Captures[game.First])
	dead, _ := f.gm.Board().Piece("B_01")
	require.False(t, dead.Alive)

	sent := f.step()
	require.Len(t, sent, 2, "mover and captured piece")
	requireMove(t, sent[1], "B_01", game.StandardGeometry.Graveyard(game.Second, 0))
	require.False(t, f.gm.HandleArrival("B_01"), "graveyard arrivals are ignored")

	f.arrive("W_01")
	s = f.gm.State()
	require.Equal(t, game.First, s.Turn, "turn does not switch mid sequence")
	require.Equal(t, PieceSelected, s.Phase)
	require.Equal(t, game.PieceID("W_01"), s.Forced)
	require.Equal(t, game.PieceID("W_01"), s.Selected)

	require.ErrorIs(t, f.gm.SelectPiece("W_02"), ErrInvalidSelection)
	require.ErrorIs(t, f.gm.TargetCell(game.Cell{Row: 5, Col: 3}), ErrIllegalMove, "only captures mid sequence")
	s = f.gm.State()
	require.Equal(t, PieceSelected, s.Phase, "selection kept while forced")
	require.Equal(t, game.PieceID("W_01"), s.Selected)

	require.NoError(t, f.gm.TargetCell(game.Cell{Row: 6, Col: 6}))
	f.arrive("W_01")
	s = f.gm.State()
	require.Equal(t, game.Second, s.Turn)
	require.Equal(t, game.NoPiece, s.Forced)
	require.Equal(t, 2, s.Captures[game.First])
	require.False(t, s.Over)
}

func TestComboCaptureSequence(t *testing.T) {
	setup := func(t *testing.T) *fixture {
		b := board(t,
			man("W_01", game.First, 2, 2),
			man("W_02", game.First, 0, 6),
			man("B_01", game.Second, 3, 3),
			man("B_02", game.Second, 5, 5),
			man("B_03", game.Second, 7, 7),
		)
		config := DefaultConfig()
		rules := game.NewStandardRules()
		rules.Capture = game.ComboCapture
		config.Rules = rules
		return newFixture(t, b, config)
	}

	t.Run("simple move allowed while a capture exists", func(t *testing.T) {
		f := setup(t)
		f.play("W_02", 1, 5)
		require.Equal(t, AwaitingArrival, f.gm.State().Phase)
		f.step()
		f.arrive("W_02")
		s := f.gm.State()
		require.Equal(t, game.Second, s.Turn)
		require.Equal(t, [2]int{0, 0}, s.Captures)
	})

	t.Run("forced piece may only capture", func(t *testing.T) {
		f := setup(t)
		f.play("W_01", 4, 4)
		f.step()
		f.arrive("W_01")
		s := f.gm.State()
		require.Equal(t, game.PieceID("W_01"), s.Forced)

		require.ErrorIs(t, f.gm.TargetCell(game.Cell{Row: 5, Col: 3}), ErrIllegalMove)
		s = f.gm.State()
		require.Equal(t, PieceSelected, s.Phase)
		require.Equal(t, game.PieceID("W_01"), s.Selected)
		require.Equal(t, game.PieceID("W_01"), s.Forced)

		require.NoError(t, f.gm.TargetCell(game.Cell{Row: 6, Col: 6}))
		f.arrive("W_01")
		s = f.gm.State()
		require.Equal(t, game.Second, s.Turn)
		require.Equal(t, 2, s.Captures[game.First])
	})
}

func TestGameOver(t *testing.T) {
	t.Run("no winner while in progress", func(t *testing.T) {
		f := newFixture(t, board(t, man("W_01", game.First, 2, 2), man("B_01", game.Second, 5, 5)), DefaultConfig())
		_, over := f.gm.Winner()
		require.False(t, over)
		raw, err := json.Marshal(f.gm.State())
		require.NoError(t, err)
		require.NotContains(t, string(raw), "winner")
	})

	t.Run("last piece captured", func(t *testing.T) {
		f := newFixture(t, board(t, man("W_01", game.First, 2, 2), man("B_01", game.Second, 3, 3)), DefaultConfig())
		f.play("W_01", 4, 4)
		f.gm.HandleArrival("W_01")
		winner, over := f.gm.Winner()
		require.True(t, over)
		require.Equal(t, game.First, winner)
		require.Equal(t, GameOver, f.events[len(f.events)-1].Kind)
		require.ErrorIs(t, f.gm.SelectPiece("B_01"), ErrGameOver)

		var s State
		raw, err := json.Marshal(f.gm.State())
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &s))
		require.NotNil(t, s.Winner)
		require.Equal(t, game.First, *s.Winner)
	})

	t.Run("side to move is blocked", func(t *testing.T) {
		f := newFixture(t, board(t, man("W_01", game.First, 4, 0), man("B_01", game.Second, 0, 2)), DefaultConfig())
		f.play("W_01", 5, 1)
		f.gm.HandleArrival("W_01")
		winner, over := f.gm.Winner()
		require.True(t, over, "black man on its promotion row cannot move")
		require.Equal(t, game.First, winner)
	})
}

func TestArrivalTimeout(t *testing.T) {
	t.Run("resend then snap", func(t *testing.T) {
		config := DefaultConfig()
		config.ArrivalTimeoutTicks = 3
		config.MaxResends = 1
		f := newFixture(t, board(t, man("W_01", game.First, 2, 2), man("B_01", game.Second, 5, 5)), config)
		f.play("W_01", 3, 3)

		require.Len(t, f.step(), 1)
		f.step()
		f.step()
		resent := f.step()
		require.Len(t, resent, 1, "MOVE resent after the timeout")
		require.Equal(t, game.PieceID("W_01"), resent[0].Message.Addressee())
		require.Equal(t, AwaitingArrival, f.gm.State().Phase)

		f.step()
		f.step()
		require.Equal(t, game.Second, f.gm.State().Turn, "escalated")
		require.Contains(t, f.scene.snaps, "W_01")

		timeouts := []Event{}
		for _, e := range f.events {
			if e.Kind == ArrivalTimeout {
				timeouts = append(timeouts, e)
			}
		}
		require.Len(t, timeouts, 2)
		require.False(t, timeouts[0].Escalated)
		require.True(t, timeouts[1].Escalated)
	})

	t.Run("disabled", func(t *testing.T) {
		config := DefaultConfig()
		config.ArrivalTimeoutTicks = 0
		f := newFixture(t, board(t, man("W_01", game.First, 2, 2), man("B_01", game.Second, 5, 5)), config)
		f.play("W_01", 3, 3)
		for i := 0; i < 100; i++ {
			f.step()
		}
		require.Equal(t, AwaitingArrival, f.gm.State().Phase)
	})

	t.Run("stale arrival", func(t *testing.T) {
		f := newFixture(t, board(t, man("W_01", game.First, 2, 2), man("B_01", game.Second, 5, 5)), DefaultConfig())
		f.play("W_01", 3, 3)
		sent := f.step()

		f.bus.Agent().Send(communication.ArrivalEvent{Piece: "W_01", Ref: sent[0].Seq + 100})
		f.step()
		require.Equal(t, AwaitingArrival, f.gm.State().Phase)

		f.bus.Agent().Send(communication.ArrivalEvent{Piece: "W_01", Ref: sent[0].Seq})
		f.step()
		require.Equal(t, AwaitingSelection, f.gm.State().Phase)
	})
}

func TestRemoveDisposal(t *testing.T) {
	config := DefaultConfig()
	config.Disposal = RemoveFromScene
	f := newFixture(t, board(t, man("W_01", game.First, 2, 2), man("B_01", game.Second, 3, 3), man("B_02", game.Second, 7, 7)), config)
	f.play("W_01", 4, 4)
	require.Equal(t, []string{"B_01"}, f.scene.removed)
	require.Len(t, f.step(), 1, "no graveyard MOVE")

	t.Run("captured king takes its crown", func(t *testing.T) {
		var buf bytes.Buffer
		prev := log.Logger
		log.Logger = zerolog.New(&buf)
		defer func() { log.Logger = prev }()

		king := game.Piece{ID: "B_01", Team: game.Second, Rank: game.King, Cell: game.Cell{Row: 3, Col: 3}}
		f := newFixture(t, board(t, man("W_01", game.First, 2, 2), king, man("B_02", game.Second, 7, 7)), config)
		f.scene.fail = map[string]error{CrownName("B_01"): errors.New("no such node")}
		f.play("W_01", 4, 4)
		require.Equal(t, []string{"B_01", CrownName("B_01")}, f.scene.removed)
		require.Contains(t, buf.String(), "could not remove crown")
		require.Contains(t, buf.String(), "no such node")
	})
}

func TestApply(t *testing.T) {
	f := newFixture(t, game.NewStandardBoard(), DefaultConfig())
	require.NoError(t, f.gm.Apply(Select("W_09")))
	require.NoError(t, f.gm.Apply(Target(game.Cell{Row: 3, Col: 1})))
	require.Equal(t, AwaitingArrival, f.gm.State().Phase)

	snap := f.gm.Snapshot()
	require.Len(t, snap.Pieces, 24)
	require.NotNil(t, snap.State.Pending)
}
