package agent

import (
	"fmt"
	"math"

	"damatronics/communication"
	"damatronics/game"
	"damatronics/utils"

	"github.com/rs/zerolog/log"
)

// Body is what a driver can sense and actuate on its piece.
type Body interface {
	Position() game.Vec2
	// Heading in radians, counter-clockwise from the +x axis.
	Heading() float64
	SetWheelSpeeds(left, right float64)
	// Lock engages the coupling that holds a crown on top of the piece.
	Lock()
}

type Phase int

const (
	Idle Phase = iota
	Rotating
	Moving
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Rotating:
		return "rotating"
	case Moving:
		return "moving"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Driver is the per-piece motion controller: it turns in place towards its
// target, drives there and reports ARRIVED once inside the arrival band.
type Driver struct {
	ID     game.PieceID
	body   Body
	tuning Tuning

	phase   Phase
	target  game.Vec2
	lastSeq uint64
	// seq of the MOVE currently being executed
	moveSeq uint64
	locked  bool

	// OnTransition, if set, is called on every phase change.
	OnTransition func(from, to Phase)
}

func NewDriver(id game.PieceID, body Body, tuning Tuning) *Driver {
	if body == nil {
		panic("driver needs a body")
	}
	return &Driver{
		ID:     id,
		body:   body,
		tuning: tuning,
		phase:  Idle,
	}
}

func (d *Driver) Phase() Phase {
	return d.phase
}

func (d *Driver) Target() game.Vec2 {
	return d.target
}

func (d *Driver) Locked() bool {
	return d.locked
}

// Step consumes this step's deliveries and runs one control iteration. It
// returns the messages to send on the uplink.
func (d *Driver) Step(inbox []communication.Envelope) []communication.Message {
	for _, env := range inbox {
		d.handle(env)
	}

	switch d.phase {
	case Idle:
		d.body.SetWheelSpeeds(0, 0)
	case Rotating:
		d.rotate()
	case Moving:
		if d.move() {
			return []communication.Message{communication.ArrivalEvent{Piece: d.ID, Ref: d.moveSeq}}
		}
	}
	return nil
}

func (d *Driver) handle(env communication.Envelope) {
	if env.Message.Addressee() != d.ID || env.Seq <= d.lastSeq {
		return
	}
	d.lastSeq = env.Seq

	switch msg := env.Message.(type) {
	case communication.MoveCommand:
		d.target = msg.Target
		d.moveSeq = env.Seq
		log.Debug().Str("piece", string(d.ID)).Msgf("heading to (%.2f, %.2f)", msg.Target.X, msg.Target.Y)
		d.transition(Rotating)
	case communication.LockCommand:
		d.body.Lock()
		d.locked = true
	}
}

func (d *Driver) transition(to Phase) {
	from := d.phase
	d.phase = to
	if d.OnTransition != nil {
		d.OnTransition(from, to)
	}
}

func (d *Driver) headingError() float64 {
	pos := d.body.Position()
	bearing := math.Atan2(d.target.Y-pos.Y, d.target.X-pos.X)
	return normalizeAngle(bearing - d.body.Heading())
}

func (d *Driver) rotate() {
	errAngle := d.headingError()
	if math.Abs(errAngle) < d.tuning.AngleTolerance {
		d.body.SetWheelSpeeds(0, 0)
		d.transition(Moving)
		return
	}
	rot := clampMagnitude(errAngle*d.tuning.KpRot, d.tuning.MinRotSpeed, d.tuning.MaxRotSpeed, d.tuning.DeadBand)
	d.body.SetWheelSpeeds(-rot, rot)
}

// move reports true on arrival.
func (d *Driver) move() bool {
	dist := d.body.Position().Dist(d.target)
	if dist < d.tuning.ArrivalTolerance {
		d.body.SetWheelSpeeds(0, 0)
		d.transition(Idle)
		log.Debug().Str("piece", string(d.ID)).Msg("arrived")
		return true
	}

	errAngle := 0.0
	if dist >= d.tuning.InnerRadius {
		errAngle = d.headingError()
	}
	correction := errAngle * d.tuning.KpMove

	base := d.tuning.CruiseSpeed
	if dist <= d.tuning.OuterRadius {
		base = utils.Clamp(dist*d.tuning.RampGain, d.tuning.ApproachSpeed, d.tuning.RampCap)
	}
	d.body.SetWheelSpeeds(base-correction, base+correction)
	return false
}

func normalizeAngle(a float64) float64 {
	return math.Remainder(a, 2*math.Pi)
}

// clampMagnitude limits |v| to [lo, hi] keeping its sign; values under deadBand become 0.
func clampMagnitude(v, lo, hi, deadBand float64) float64 {
	if math.Abs(v) < deadBand {
		return 0
	}
	return math.Copysign(utils.Clamp(math.Abs(v), lo, hi), v)
}
