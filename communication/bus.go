package communication

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type Direction int

const (
	// Downlink carries commands from the turn controller to the pieces.
	Downlink Direction = iota
	// Uplink carries events from the pieces to the turn controller.
	Uplink
)

type frame struct {
	seq  uint64
	data string
}

type lane struct {
	pending []frame
	ready   []frame
}

// Bus is a pair of broadcast channels with one step of latency: a frame sent
// during step t becomes visible to every receiver during step t+1 only.
type Bus struct {
	mutex sync.Mutex
	seq   uint64
	lanes [2]lane
}

func NewBus() *Bus {
	return &Bus{}
}

// Publish queues a raw frame for the next step and returns its sequence number.
func (b *Bus) Publish(d Direction, data string) uint64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.seq++
	b.lanes[d].pending = append(b.lanes[d].pending, frame{seq: b.seq, data: data})
	return b.seq
}

func (b *Bus) frames(d Direction) []frame {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	out := make([]frame, len(b.lanes[d].ready))
	copy(out, b.lanes[d].ready)
	return out
}

// Advance ends the current step: frames sent during it become deliverable and
// the previously delivered ones are dropped.
func (b *Bus) Advance() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for i := range b.lanes {
		b.lanes[i].ready = b.lanes[i].pending
		b.lanes[i].pending = nil
	}
}

// Pending reports how many frames are queued for the next step.
func (b *Bus) Pending(d Direction) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.lanes[d].pending)
}

// Controller is the turn controller's endpoint: it sends on the downlink and
// listens on the uplink.
func (b *Bus) Controller() *Endpoint {
	return &Endpoint{bus: b, send: Downlink, recv: Uplink}
}

// Agent is a piece's endpoint. All agents share the same broadcast.
func (b *Bus) Agent() *Endpoint {
	return &Endpoint{bus: b, send: Uplink, recv: Downlink}
}

type Endpoint struct {
	bus  *Bus
	send Direction
	recv Direction
}

func (e *Endpoint) Send(m Message) uint64 {
	return e.bus.Publish(e.send, Encode(m))
}

// SendRaw publishes an unchecked frame.
func (e *Endpoint) SendRaw(data string) uint64 {
	return e.bus.Publish(e.send, data)
}

// Receive decodes the frames delivered this step. Malformed frames are dropped.
func (e *Endpoint) Receive() []Envelope {
	frames := e.bus.frames(e.recv)
	envelopes := make([]Envelope, 0, len(frames))
	for _, f := range frames {
		m, err := Decode(f.data)
		if err != nil {
			log.Debug().Err(err).Uint64("seq", f.seq).Msg("dropping frame")
			continue
		}
		envelopes = append(envelopes, Envelope{Seq: f.seq, Message: m})
	}
	return envelopes
}
