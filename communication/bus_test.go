package communication

import (
	"sync"
	"testing"

	"damatronics/game"

	"github.com/stretchr/testify/require"
)

func TestCodec(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		msgs := []Message{
			MoveCommand{Piece: "W_01", Target: game.Vec2{X: -0.3, Y: 0.1}},
			LockCommand{Piece: "B_12"},
			ArrivalEvent{Piece: "W_07"},
			ArrivalEvent{Piece: "W_07", Ref: 42},
		}
		for _, m := range msgs {
			got, err := Decode(Encode(m))
			require.NoError(t, err)
			require.Equal(t, m, got)
		}
	})

	t.Run("wire format", func(t *testing.T) {
		require.Equal(t, "W_01 MOVE -0.3000 0.1000", Encode(MoveCommand{Piece: "W_01", Target: game.Vec2{X: -0.3, Y: 0.1}}))
		require.Equal(t, "W_01 LOCK", Encode(LockCommand{Piece: "W_01"}))
		require.Equal(t, "W_01 ARRIVED", Encode(ArrivalEvent{Piece: "W_01"}))
		require.Equal(t, "W_01 ARRIVED 17", Encode(ArrivalEvent{Piece: "W_01", Ref: 17}))
	})

	t.Run("die is a move", func(t *testing.T) {
		m, err := Decode("B_03 DIE 1.0 -0.5")
		require.NoError(t, err)
		require.Equal(t, MoveCommand{Piece: "B_03", Target: game.Vec2{X: 1, Y: -0.5}}, m)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, f := range []string{"", "W_01", "W_01 JUMP", "W_01 MOVE 1", "W_01 MOVE a b", "W_01 LOCK now", "W_01 ARRIVED 1 2", "W_01 ARRIVED x"} {
			_, err := Decode(f)
			require.ErrorIs(t, err, ErrMalformed, "frame %q", f)
		}
	})
}

func TestBus(t *testing.T) {
	t.Run("one step latency", func(t *testing.T) {
		bus := NewBus()
		ctrl, agent := bus.Controller(), bus.Agent()

		ctrl.Send(MoveCommand{Piece: "W_01"})
		require.Empty(t, agent.Receive(), "not visible in the step it was sent")
		require.Equal(t, 1, bus.Pending(Downlink))

		bus.Advance()
		got := agent.Receive()
		require.Len(t, got, 1)
		require.Equal(t, game.PieceID("W_01"), got[0].Message.Addressee())
		require.Empty(t, ctrl.Receive(), "controller listens on the uplink")

		bus.Advance()
		require.Empty(t, agent.Receive(), "delivered for one step only")
	})

	t.Run("broadcast and order", func(t *testing.T) {
		bus := NewBus()
		ctrl := bus.Controller()
		a, b := bus.Agent(), bus.Agent()

		ctrl.Send(MoveCommand{Piece: "W_01"})
		ctrl.Send(LockCommand{Piece: "W_01"})
		ctrl.Send(MoveCommand{Piece: "B_01"})
		bus.Advance()

		ga, gb := a.Receive(), b.Receive()
		require.Equal(t, ga, gb, "every receiver sees the same frames")
		require.Len(t, ga, 3)
		require.Equal(t, MoveKind, ga[0].Message.Kind())
		require.Equal(t, LockKind, ga[1].Message.Kind())
		require.Less(t, ga[0].Seq, ga[1].Seq)
		require.Less(t, ga[1].Seq, ga[2].Seq)
	})

	t.Run("malformed frames are dropped", func(t *testing.T) {
		bus := NewBus()
		agent := bus.Agent()
		agent.SendRaw("garbage")
		agent.Send(ArrivalEvent{Piece: "W_02"})
		bus.Advance()

		got := bus.Controller().Receive()
		require.Len(t, got, 1)
		require.Equal(t, ArrivalEvent{Piece: "W_02"}, got[0].Message)
	})

	t.Run("concurrent senders", func(t *testing.T) {
		bus := NewBus()
		var wg sync.WaitGroup
		for i := 0; i < 24; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				bus.Agent().Send(ArrivalEvent{Piece: game.NewPieceID(game.First, n)})
			}(i + 1)
		}
		wg.Wait()
		bus.Advance()
		got := bus.Controller().Receive()
		require.Len(t, got, 24)
		for i := 1; i < len(got); i++ {
			require.Less(t, got[i-1].Seq, got[i].Seq)
		}
	})
}
