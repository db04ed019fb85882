package communication

import "damatronics/game"

type Kind int

const (
	MoveKind Kind = iota
	LockKind
	ArrivedKind
)

func (k Kind) String() string {
	switch k {
	case MoveKind:
		return "MOVE"
	case LockKind:
		return "LOCK"
	case ArrivedKind:
		return "ARRIVED"
	}
	return "UNKNOWN"
}

// Message is one of MoveCommand, LockCommand or ArrivalEvent. Every message is
// addressed to a single piece; receivers ignore messages for other pieces.
type Message interface {
	Addressee() game.PieceID
	Kind() Kind
}

// MoveCommand tells a piece to drive to Target (world coordinates).
type MoveCommand struct {
	Piece  game.PieceID
	Target game.Vec2
}

// LockCommand tells a piece to engage its crown coupling.
type LockCommand struct {
	Piece game.PieceID
}

// ArrivalEvent is sent by a piece once it is within tolerance of its target.
// Ref is the sequence number of the MOVE being acknowledged, 0 if unknown.
type ArrivalEvent struct {
	Piece game.PieceID
	Ref   uint64
}

func (m MoveCommand) Addressee() game.PieceID  { return m.Piece }
func (m MoveCommand) Kind() Kind               { return MoveKind }
func (m LockCommand) Addressee() game.PieceID  { return m.Piece }
func (m LockCommand) Kind() Kind               { return LockKind }
func (m ArrivalEvent) Addressee() game.PieceID { return m.Piece }
func (m ArrivalEvent) Kind() Kind              { return ArrivedKind }

// Envelope carries a decoded message with the sequence number it was sent under.
// Sequence numbers increase strictly in send order.
type Envelope struct {
	Seq     uint64
	Message Message
}

// Communicator is one side of the broadcast channel.
type Communicator interface {
	Send(m Message) uint64
	// Receive returns everything delivered in the current step, in send order.
	Receive() []Envelope
}
