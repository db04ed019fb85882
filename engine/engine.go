package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"damatronics/agent"
	"damatronics/communication"
	"damatronics/game"
	"damatronics/gamemaster"
	"damatronics/meta"
	"damatronics/world"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Controller is an input source polled once per tick while the game master
// accepts input, e.g. a scripted or random player.
type Controller interface {
	Act(view gamemaster.View) []gamemaster.Input
}

type Result struct {
	Match    string        `json:"match"`
	Winner   game.Team     `json:"winner"`
	Over     bool          `json:"over"`
	Ticks    int           `json:"ticks"`
	Turns    int           `json:"turns"`
	Captures [2]int        `json:"captures"`
	Elapsed  time.Duration `json:"elapsed"`
}

type slot struct {
	driver *agent.Driver
	link   *communication.Endpoint
}

// Engine owns one match: the bus, the world, the game master and one driver
// per piece, and advances all of them in lockstep.
type Engine struct {
	ID     string
	Master *gamemaster.GameMaster
	World  *world.Sim

	bus      *communication.Bus
	downlink *communication.Endpoint
	agents   []*slot

	config      gamemaster.Config
	tuning      agent.Tuning
	step        time.Duration
	maxTicks    int
	parallel    bool
	realtime    bool
	controllers []Controller

	tick int

	inputMutex sync.Mutex
	inputs     []gamemaster.Input

	snapMutex sync.RWMutex
	snapshot  gamemaster.Snapshot

	observerMutex sync.Mutex
	observers     []func(gamemaster.Event)
}

type Option func(*Engine)

func WithConfig(config gamemaster.Config) Option {
	return func(e *Engine) { e.config = config }
}

func WithTuning(t agent.Tuning) Option {
	return func(e *Engine) { e.tuning = t }
}

func WithStep(step time.Duration) Option {
	return func(e *Engine) { e.step = step }
}

// WithMaxTicks of 0 or less means no limit.
func WithMaxTicks(n int) Option {
	return func(e *Engine) { e.maxTicks = n }
}

// WithParallelAgents steps every driver in its own goroutine.
func WithParallelAgents(parallel bool) Option {
	return func(e *Engine) { e.parallel = parallel }
}

// WithRealtime paces Run to one tick per step of wall clock time.
func WithRealtime(realtime bool) Option {
	return func(e *Engine) { e.realtime = realtime }
}

func WithWorld(sim *world.Sim) Option {
	return func(e *Engine) { e.World = sim }
}

func WithController(c Controller) Option {
	return func(e *Engine) { e.controllers = append(e.controllers, c) }
}

// LocalEngine builds a match around board. Every live piece gets a robot in
// the world placed on its cell centre and a driver listening on the downlink.
func LocalEngine(board *game.Board, opts ...Option) (*Engine, error) {
	if board == nil {
		panic("engine needs a board")
	}
	e := &Engine{
		ID:       uuid.NewString(),
		config:   gamemaster.DefaultConfig(),
		tuning:   agent.DefaultTuning(),
		step:     meta.TICK,
		maxTicks: meta.MAX_TICKS,
		bus:      communication.NewBus(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.World == nil {
		e.World = world.New(world.WithKinematics(e.tuning.WheelRadius, 0.1))
	}
	if err := e.tuning.Validate(e.step); err != nil {
		return nil, fmt.Errorf("engine tuning: %w", err)
	}
	if err := board.Check(); err != nil {
		return nil, fmt.Errorf("engine board: %w", err)
	}

	geo := e.config.Geometry
	if geo.Pitch == 0 {
		geo = game.StandardGeometry
	}
	e.downlink = e.bus.Agent()
	for _, team := range []game.Team{game.First, game.Second} {
		for _, p := range board.Pieces(team) {
			if !p.Alive {
				continue
			}
			if err := e.addPiece(p, geo); err != nil {
				return nil, err
			}
		}
	}

	e.Master = gamemaster.NewGameMaster(board, e.bus.Controller(), e.World, e.config)
	e.Master.Subscribe(e.dispatch)
	e.publish()

	log.Info().Str("match", e.ID).Int("agents", len(e.agents)).Msgf("engine ready, step %s", e.step)
	return e, nil
}

func (e *Engine) addPiece(p game.Piece, geo game.Geometry) error {
	name := string(p.ID)
	pos := geo.CellToWorld(p.Cell)
	heading := math.Pi / 2
	if p.Team == game.Second {
		heading = -math.Pi / 2
	}
	if err := e.World.AddRobot(name, pos, heading); err != nil {
		return fmt.Errorf("engine add %s: %w", p.ID, err)
	}
	body := e.World.Body(name)
	if p.Rank == game.King {
		if err := e.World.Spawn(gamemaster.CrownName(p.ID), pos); err != nil {
			return fmt.Errorf("engine crown %s: %w", p.ID, err)
		}
		body.Lock()
	}
	e.agents = append(e.agents, &slot{
		driver: agent.NewDriver(p.ID, body, e.tuning),
		link:   e.bus.Agent(),
	})
	return nil
}

// Push queues an input for the next tick. Safe for concurrent use.
func (e *Engine) Push(in gamemaster.Input) {
	e.inputMutex.Lock()
	defer e.inputMutex.Unlock()
	e.inputs = append(e.inputs, in)
}

func (e *Engine) drain() []gamemaster.Input {
	e.inputMutex.Lock()
	defer e.inputMutex.Unlock()
	in := e.inputs
	e.inputs = nil
	return in
}

// Subscribe registers fn for every game master event. fn runs on the tick
// goroutine and must not block.
func (e *Engine) Subscribe(fn func(gamemaster.Event)) {
	e.observerMutex.Lock()
	defer e.observerMutex.Unlock()
	e.observers = append(e.observers, fn)
}

func (e *Engine) dispatch(ev gamemaster.Event) {
	if ev.Kind == gamemaster.Captured && e.config.Disposal == gamemaster.RemoveFromScene {
		e.retire(ev.Piece)
	}
	e.observerMutex.Lock()
	observers := append([]func(gamemaster.Event){}, e.observers...)
	e.observerMutex.Unlock()
	for _, fn := range observers {
		fn(ev)
	}
}

// retire stops stepping the driver of a piece whose robot left the scene.
func (e *Engine) retire(id game.PieceID) {
	for i, s := range e.agents {
		if s.driver.ID == id {
			e.agents = append(e.agents[:i], e.agents[i+1:]...)
			return
		}
	}
}

func (e *Engine) Snapshot() gamemaster.Snapshot {
	e.snapMutex.RLock()
	defer e.snapMutex.RUnlock()
	return e.snapshot
}

func (e *Engine) publish() {
	snap := e.Master.Snapshot()
	snap.Match = e.ID
	poses := e.World.Poses()
	snap.Poses = make(map[string]game.Vec2, len(poses))
	for name, p := range poses {
		snap.Poses[name] = p.Position
	}
	e.snapMutex.Lock()
	e.snapshot = snap
	e.snapMutex.Unlock()
}

func (e *Engine) Ticks() int {
	return e.tick
}

// Agents returns the drivers still being stepped.
func (e *Engine) Agents() []*agent.Driver {
	drivers := make([]*agent.Driver, len(e.agents))
	for i, s := range e.agents {
		drivers[i] = s.driver
	}
	return drivers
}

// Step runs one global tick.
func (e *Engine) Step() {
	e.tick++

	for _, in := range e.drain() {
		// rejections are reported to observers by the game master
		_ = e.Master.Apply(in)
	}
	e.poll()

	e.Master.Tick()
	e.stepAgents()
	e.bus.Advance()
	e.World.Advance(e.step)
	e.publish()
}

func (e *Engine) poll() {
	for _, c := range e.controllers {
		state := e.Master.State()
		if state.Over || state.Phase == gamemaster.AwaitingArrival {
			return
		}
		for _, in := range c.Act(e.Master.View()) {
			_ = e.Master.Apply(in)
		}
	}
}

func (e *Engine) stepAgents() {
	// frames are decoded once and shared read-only between drivers
	inbox := e.downlink.Receive()
	if !e.parallel {
		for _, s := range e.agents {
			s.run(inbox)
		}
		return
	}
	var wg sync.WaitGroup
	for _, s := range e.agents {
		wg.Add(1)
		go func(s *slot) {
			defer wg.Done()
			s.run(inbox)
		}(s)
	}
	wg.Wait()
}

func (s *slot) run(inbox []communication.Envelope) {
	for _, m := range s.driver.Step(inbox) {
		s.link.Send(m)
	}
}

func (e *Engine) result(start time.Time) Result {
	state := e.Master.State()
	winner, _ := e.Master.Winner()
	return Result{
		Match:    e.ID,
		Winner:   winner,
		Over:     state.Over,
		Ticks:    e.tick,
		Turns:    state.TurnNumber,
		Captures: state.Captures,
		Elapsed:  time.Since(start),
	}
}

// Run ticks until the game is over, ctx is done or the tick limit is hit.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var pace <-chan time.Time
	if e.realtime {
		ticker := time.NewTicker(e.step)
		defer ticker.Stop()
		pace = ticker.C
	}

	for {
		if _, over := e.Master.Winner(); over {
			res := e.result(start)
			log.Info().Str("match", e.ID).Int("ticks", res.Ticks).Msgf("%s wins after %d turns", res.Winner, res.Turns)
			return res, nil
		}
		if e.maxTicks > 0 && e.tick >= e.maxTicks {
			log.Warn().Str("match", e.ID).Msgf("no winner after %d ticks", e.tick)
			return e.result(start), nil
		}
		if pace != nil {
			select {
			case <-ctx.Done():
				return e.result(start), ctx.Err()
			case <-pace:
			}
		} else if err := ctx.Err(); err != nil {
			return e.result(start), err
		}
		e.Step()
	}
}
