package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"damatronics/game"
	"damatronics/gamemaster"
)

// MatchConfig describes one experimental setup. Both teams play randomly.
type MatchConfig struct {
	ID       int
	Parallel bool
	Capture  game.CapturePolicy
	Noise    float64
	MaxTicks int
}

type MoveMetric struct {
	Step      int // turn number
	Team      game.Team
	Piece     game.PieceID
	Capture   bool
	Promoted  bool
	Ticks     int // from commit to arrival
	Resends   int
	Escalated bool
}

type GameMetric struct {
	StartingTeam game.Team
	Winner       string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Ticks        int
	TotalMoves   int
	Captures     [2]int
	Rejections   int
	Timeouts     int
}

// Collector turns game master events into per-move and per-game metrics.
type Collector interface {
	Start(starting game.Team)
	Observe(ev gamemaster.Event)
	Complete(winner string, ticks int) (GameMetric, []MoveMetric)
}

type collector struct {
	starting  game.Team
	startTime time.Time

	mutex    sync.Mutex
	moves    []MoveMetric
	pending  map[game.PieceID]MoveMetric
	turn     int
	captures [2]int

	rejections atomic.Int32
	timeouts   atomic.Int32
}

func NewCollector() Collector {
	return &collector{pending: map[game.PieceID]MoveMetric{}}
}

func (m *collector) Start(starting game.Team) {
	m.starting = starting
	m.startTime = time.Now()
}

func (m *collector) Observe(ev gamemaster.Event) {
	switch ev.Kind {
	case gamemaster.Rejected:
		m.rejections.Add(1)
		return
	case gamemaster.ArrivalTimeout:
		m.timeouts.Add(1)
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	switch ev.Kind {
	case gamemaster.Moved:
		m.pending[ev.Piece] = MoveMetric{
			Step:    m.turn + 1,
			Team:    ev.Team,
			Piece:   ev.Piece,
			Capture: ev.Move != nil && ev.Move.IsCapture(),
		}
	case gamemaster.Captured:
		m.captures[ev.Team.Opponent()]++
	case gamemaster.Arrived:
		mm, ok := m.pending[ev.Piece]
		if !ok {
			return
		}
		delete(m.pending, ev.Piece)
		mm.Ticks, mm.Resends, mm.Escalated = ev.Ticks, ev.Resends, ev.Escalated
		m.moves = append(m.moves, mm)
	case gamemaster.Promoted:
		// promotion is reported right after the arrival of the same move
		if n := len(m.moves); n > 0 && m.moves[n-1].Piece == ev.Piece {
			m.moves[n-1].Promoted = true
		}
	case gamemaster.TurnSwitched:
		m.turn++
	}
}

func (m *collector) Complete(winner string, ticks int) (GameMetric, []MoveMetric) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	end := time.Now()
	return GameMetric{
		StartingTeam: m.starting,
		Winner:       winner,
		StartTime:    m.startTime,
		EndTime:      end,
		Duration:     end.Sub(m.startTime),
		Ticks:        ticks,
		TotalMoves:   len(m.moves),
		Captures:     m.captures,
		Rejections:   int(m.rejections.Load()),
		Timeouts:     int(m.timeouts.Load()),
	}, append([]MoveMetric{}, m.moves...)
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(game.Team)          {}
func (m *dummyCollector) Observe(gamemaster.Event) {}
func (m *dummyCollector) Complete(string, int) (GameMetric, []MoveMetric) {
	return GameMetric{}, nil
}
