package world

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"damatronics/game"

	"golang.org/x/exp/rand"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrEntityExists  = errors.New("entity already exists")
)

type Pose struct {
	Position game.Vec2 `json:"position"`
	Heading  float64   `json:"heading"`
}

type entity struct {
	Pose
	robot       bool
	left, right float64
	locked      bool
	// carrier is the robot a locked prop rides on.
	carrier string
}

// Sim is a kinematic differential-drive world. Robots integrate their wheel
// speeds every Advance; props stay put unless carried by a locked robot.
type Sim struct {
	mutex sync.RWMutex

	wheelRadius float64
	axle        float64
	noise       float64
	coupling    float64
	rng         *rand.Rand

	entities map[string]*entity
	order    []string
	elapsed  time.Duration
}

type Option func(*Sim)

// WithKinematics sets the wheel radius and the distance between the wheels.
func WithKinematics(wheelRadius, axle float64) Option {
	return func(s *Sim) {
		s.wheelRadius = wheelRadius
		s.axle = axle
	}
}

// WithNoise scales every wheel speed by 1+N(0, std) per step.
func WithNoise(std float64, seed uint64) Option {
	return func(s *Sim) {
		s.noise = std
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithCoupling sets how close a prop must be to be picked up by Lock.
func WithCoupling(radius float64) Option {
	return func(s *Sim) {
		s.coupling = radius
	}
}

func New(opts ...Option) *Sim {
	s := &Sim{
		wheelRadius: 0.02,
		axle:        0.1,
		coupling:    0.05,
		rng:         rand.New(rand.NewSource(1)),
		entities:    make(map[string]*entity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sim) AddRobot(name string, pos game.Vec2, heading float64) error {
	return s.add(name, &entity{Pose: Pose{Position: pos, Heading: heading}, robot: true})
}

// Spawn places a prop, e.g. a crown, at pos.
func (s *Sim) Spawn(name string, pos game.Vec2) error {
	return s.add(name, &entity{Pose: Pose{Position: pos}})
}

func (s *Sim) add(name string, e *entity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.entities[name]; ok {
		return fmt.Errorf("add %s: %w", name, ErrEntityExists)
	}
	s.entities[name] = e
	s.order = append(s.order, name)
	return nil
}

// Remove deletes an entity. Props it was carrying are dropped where they are.
func (s *Sim) Remove(name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.entities[name]; !ok {
		return fmt.Errorf("remove %s: %w", name, ErrUnknownEntity)
	}
	delete(s.entities, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	for _, e := range s.entities {
		if e.carrier == name {
			e.carrier = ""
		}
	}
	return nil
}

// Snap teleports an entity, stops its wheels, and brings carried props along.
func (s *Sim) Snap(name string, pos game.Vec2, heading float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e, ok := s.entities[name]
	if !ok {
		return fmt.Errorf("snap %s: %w", name, ErrUnknownEntity)
	}
	e.Position = pos
	e.Heading = heading
	e.left, e.right = 0, 0
	s.carry(name)
	return nil
}

func (s *Sim) Pose(name string) (Pose, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	e, ok := s.entities[name]
	if !ok {
		return Pose{}, false
	}
	return e.Pose, true
}

// Poses returns a copy of every entity pose.
func (s *Sim) Poses() map[string]Pose {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	poses := make(map[string]Pose, len(s.entities))
	for name, e := range s.entities {
		poses[name] = e.Pose
	}
	return poses
}

// Carrier returns the robot a prop is attached to.
func (s *Sim) Carrier(name string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	e, ok := s.entities[name]
	if !ok || e.carrier == "" {
		return "", false
	}
	return e.carrier, true
}

func (s *Sim) Elapsed() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.elapsed
}

// Advance integrates every robot over dt.
func (s *Sim) Advance(dt time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	secs := dt.Seconds()
	for _, name := range s.order {
		e := s.entities[name]
		if !e.robot || (e.left == 0 && e.right == 0) {
			continue
		}
		left, right := e.left, e.right
		if s.noise > 0 {
			left *= 1 + s.noise*s.rng.NormFloat64()
			right *= 1 + s.noise*s.rng.NormFloat64()
		}
		v := s.wheelRadius * (left + right) / 2
		w := s.wheelRadius * (right - left) / s.axle

		mid := e.Heading + w*secs/2
		e.Position.X += v * secs * math.Cos(mid)
		e.Position.Y += v * secs * math.Sin(mid)
		e.Heading = math.Remainder(e.Heading+w*secs, 2*math.Pi)
		s.carry(name)
	}
	s.elapsed += dt
}

func (s *Sim) carry(carrier string) {
	c := s.entities[carrier]
	for _, e := range s.entities {
		if e.carrier == carrier {
			e.Position = c.Position
		}
	}
}

// Body is the handle a driver uses to sense and actuate one robot. Calls on a
// removed robot are no-ops.
type Body struct {
	sim  *Sim
	name string
}

func (s *Sim) Body(name string) *Body {
	return &Body{sim: s, name: name}
}

func (b *Body) Position() game.Vec2 {
	p, _ := b.sim.Pose(b.name)
	return p.Position
}

func (b *Body) Heading() float64 {
	p, _ := b.sim.Pose(b.name)
	return p.Heading
}

func (b *Body) SetWheelSpeeds(left, right float64) {
	b.sim.mutex.Lock()
	defer b.sim.mutex.Unlock()
	if e, ok := b.sim.entities[b.name]; ok {
		e.left, e.right = left, right
	}
}

// Lock attaches every free prop within the coupling radius.
func (b *Body) Lock() {
	s := b.sim
	s.mutex.Lock()
	defer s.mutex.Unlock()
	r, ok := s.entities[b.name]
	if !ok {
		return
	}
	r.locked = true
	for name, e := range s.entities {
		if name == b.name || e.robot || e.carrier != "" {
			continue
		}
		if e.Position.Dist(r.Position) <= s.coupling {
			e.carrier = b.name
		}
	}
}

func (b *Body) Locked() bool {
	b.sim.mutex.RLock()
	defer b.sim.mutex.RUnlock()
	e, ok := b.sim.entities[b.name]
	return ok && e.locked
}
