package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"damatronics/communication/server"
	"damatronics/game"
	"damatronics/gamemaster"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Client drives a match served by communication/server.
type Client struct {
	serverURL string
	http      *http.Client
}

func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		http:      http.DefaultClient,
	}
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		var r server.Response
		json.NewDecoder(resp.Body).Decode(&r)
		return fmt.Errorf("post %s: %s %s", path, resp.Status, r.Error)
	}
	return nil
}

func (c *Client) Select(ctx context.Context, id game.PieceID) error {
	return c.post(ctx, "/select", server.SelectRequest{Piece: id})
}

func (c *Client) Target(ctx context.Context, cell game.Cell) error {
	return c.post(ctx, "/target", server.TargetRequest{Row: cell.Row, Col: cell.Col})
}

func (c *Client) State(ctx context.Context) (gamemaster.Snapshot, error) {
	var snap gamemaster.Snapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/state", nil)
	if err != nil {
		return snap, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return snap, fmt.Errorf("get state: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("get state: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode state: %w", err)
	}
	return snap, nil
}

// Events subscribes to the event socket. The channel closes when ctx is done
// or the connection drops.
func (c *Client) Events(ctx context.Context) (<-chan gamemaster.Event, error) {
	url := "ws" + strings.TrimPrefix(c.serverURL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial events: %w", err)
	}

	events := make(chan gamemaster.Event)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(events)
		for {
			var ev gamemaster.Event
			if err := conn.ReadJSON(&ev); err != nil {
				log.Debug().Err(err).Msg("event stream ended")
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
