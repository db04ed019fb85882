package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"damatronics/game"
	"damatronics/gamemaster"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the HTTP input adapter: selections and targets come in as
// requests and are queued on the game; events go out over a websocket.
type Server struct {
	game   Game
	router *chi.Mux
	hub    *hub
}

func NewServer(g Game) *Server {
	s := &Server{game: g, router: chi.NewRouter(), hub: newHub()}
	g.Subscribe(s.hub.publish)

	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Response{Status: "ok"})
	})
	s.router.Get("/state", s.handleState)
	s.router.Post("/select", s.handleSelect)
	s.router.Post("/target", s.handleTarget)
	s.router.Get("/events", s.handleEvents)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	errs := make(chan error, 1)
	go func() {
		log.Info().Msgf("listening on %s", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.game.Snapshot())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Status: "invalid", Error: err.Error()})
		return
	}
	if req.Piece == game.NoPiece {
		writeJSON(w, http.StatusBadRequest, Response{Status: "invalid", Error: "missing piece"})
		return
	}
	s.game.Push(gamemaster.Select(req.Piece))
	writeJSON(w, http.StatusAccepted, Response{Status: "queued"})
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Status: "invalid", Error: err.Error()})
		return
	}
	s.game.Push(gamemaster.Target(game.Cell{Row: req.Row, Col: req.Col}))
	writeJSON(w, http.StatusAccepted, Response{Status: "queued"})
}

// handleEvents streams events to the client and accepts inputs from it.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("upgrade error")
		return
	}
	sub := s.hub.add(conn)
	defer s.hub.remove(sub)
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("event socket opened")

	for {
		var msg InputMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Debug().Err(err).Msg("event socket closed")
			return
		}
		in, err := msg.Input()
		if err != nil {
			log.Warn().Err(err).Msg("bad socket input")
			continue
		}
		s.game.Push(in)
	}
}
