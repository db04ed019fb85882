package communication

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"damatronics/game"
)

var ErrMalformed = errors.New("malformed frame")

// Encode renders m in the text wire format: "<id> MOVE <x> <y>", "<id> LOCK" or
// "<id> ARRIVED [ref]".
func Encode(m Message) string {
	switch msg := m.(type) {
	case MoveCommand:
		return fmt.Sprintf("%s MOVE %.4f %.4f", msg.Piece, msg.Target.X, msg.Target.Y)
	case LockCommand:
		return fmt.Sprintf("%s LOCK", msg.Piece)
	case ArrivalEvent:
		if msg.Ref != 0 {
			return fmt.Sprintf("%s ARRIVED %d", msg.Piece, msg.Ref)
		}
		return fmt.Sprintf("%s ARRIVED", msg.Piece)
	}
	panic(fmt.Sprintf("encode: unknown message type %T", m))
}

// Decode parses a wire frame. DIE is accepted as a MOVE to the graveyard.
func Decode(frame string) (Message, error) {
	fields := strings.Fields(frame)
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, frame)
	}
	id := game.PieceID(fields[0])

	switch fields[1] {
	case "MOVE", "DIE":
		if len(fields) != 4 {
			return nil, fmt.Errorf("%w: %q: move wants two coordinates", ErrMalformed, frame)
		}
		x, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformed, frame, err)
		}
		y, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformed, frame, err)
		}
		return MoveCommand{Piece: id, Target: game.Vec2{X: x, Y: y}}, nil
	case "LOCK":
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, frame)
		}
		return LockCommand{Piece: id}, nil
	case "ARRIVED":
		switch len(fields) {
		case 2:
			return ArrivalEvent{Piece: id}, nil
		case 3:
			ref, err := strconv.ParseUint(fields[2], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrMalformed, frame, err)
			}
			return ArrivalEvent{Piece: id, Ref: ref}, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrMalformed, frame)
	}
	return nil, fmt.Errorf("%w: %q: unknown kind %q", ErrMalformed, frame, fields[1])
}
