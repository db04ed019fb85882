package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"damatronics/communication/server"
	"damatronics/engine"
	"damatronics/game"
	"damatronics/gamemaster"

	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	b := game.NewBoard()
	require.NoError(t, b.Place("W_01", game.First, game.Man, game.Cell{Row: 2, Col: 2}))
	require.NoError(t, b.Place("B_01", game.Second, game.Man, game.Cell{Row: 5, Col: 5}))
	e, err := engine.LocalEngine(b)
	require.NoError(t, err)
	ts := httptest.NewServer(server.NewServer(e).Handler())
	defer ts.Close()

	c := NewClient(ts.URL + "/")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("state", func(t *testing.T) {
		snap, err := c.State(ctx)
		require.NoError(t, err)
		require.Equal(t, e.ID, snap.Match)
		require.Equal(t, game.First, snap.State.Turn)
		require.Equal(t, gamemaster.AwaitingSelection, snap.State.Phase)
		require.Len(t, snap.Pieces, 2)
	})

	t.Run("events follow inputs", func(t *testing.T) {
		events, err := c.Events(ctx)
		require.NoError(t, err)

		// the socket registers asynchronously, so repeat until an event comes through
		var ev gamemaster.Event
		require.Eventually(t, func() bool {
			if c.Select(ctx, "W_01") != nil {
				return false
			}
			e.Step()
			select {
			case ev = <-events:
				return true
			case <-time.After(20 * time.Millisecond):
				return false
			}
		}, 3*time.Second, time.Millisecond)
		require.Equal(t, gamemaster.Selected, ev.Kind)
		require.Equal(t, game.PieceID("W_01"), ev.Piece)
	})

	t.Run("target commits the move", func(t *testing.T) {
		require.NoError(t, c.Target(ctx, game.Cell{Row: 3, Col: 3}))
		e.Step()
		snap, err := c.State(ctx)
		require.NoError(t, err)
		require.Equal(t, gamemaster.AwaitingArrival, snap.State.Phase)
		require.NotNil(t, snap.State.Pending)
		require.Equal(t, game.Cell{Row: 3, Col: 3}, snap.State.Pending.Destination)
	})

	t.Run("rejected request", func(t *testing.T) {
		require.Error(t, c.Select(ctx, game.NoPiece))
	})
}
