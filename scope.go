package pps

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Frame describes the frame a Driver is currently running.
type Frame struct {
	// Number counts frames from 1. It is 0 before the first frame.
	Number uint64

	// Delta is the elapsed time the frame covers.
	Delta time.Duration

	// FixedDelta is the length of one Fixed phase.
	FixedDelta time.Duration

	// FixedSteps is the number of Fixed phases the frame runs.
	FixedSteps int

	// Elapsed is the total time covered by all frames so far.
	Elapsed time.Duration
}

// Scope owns a set of root Systems and ticks them together. It keeps an
// index of every instance deployed anywhere in its trees.
// Multiple Scope instances can coexist in the same process.
//
// Scope is not safe for concurrent use. Hosts with other goroutines hand
// work to the ticking goroutine through Driver.Exec.
type Scope struct {
	log      *zap.Logger
	registry *Registry

	systems []*System
	byID    map[uuid.UUID]*Processor
	cancels []func()

	frame  Frame
	closed bool
}

// NewScope creates an empty scope. A nil logger discards output and a nil
// registry is replaced by an empty one.
func NewScope(log *zap.Logger, registry *Registry) *Scope {
	if log == nil {
		log = nopLogger
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Scope{
		log:      log,
		registry: registry,
		byID:     make(map[uuid.UUID]*Processor),
	}
}

// Logger returns the scope logger.
func (s *Scope) Logger() *zap.Logger {
	return s.log
}

// Registry returns the kinds registry used for persisted state.
func (s *Scope) Registry() *Registry {
	return s.registry
}

// Add initializes sys and starts ticking it after the systems already
// added. Adding the same system twice does nothing.
func (s *Scope) Add(sys *System) error {
	if s.closed {
		return fmt.Errorf("pps: add %s to closed scope", sys.Name())
	}
	if slices.Contains(s.systems, sys) {
		return nil
	}
	if err := sys.Init(); err != nil {
		return fmt.Errorf("init %s: %w", sys.Name(), err)
	}

	s.systems = append(s.systems, sys)
	Walk(sys, s.track)
	s.log.Info("system added",
		zap.String("system", sys.Name()),
		zap.Stringer("id", sys.ID()),
		zap.Int("instances", s.count(sys)))
	return nil
}

// track indexes the instances of c and follows its deploy and remove
// signals.
func (s *Scope) track(c Container) {
	for _, p := range c.base().instances {
		s.byID[p.id] = p
	}
	s.cancels = append(s.cancels,
		c.OnDeployed().Subscribe(func(e InstanceEvent) {
			s.byID[e.Processor.id] = e.Processor
		}),
		c.OnRemoved().Subscribe(func(e InstanceEvent) {
			delete(s.byID, e.Processor.id)
		}),
	)
}

func (s *Scope) count(c Container) int {
	n := 0
	Walk(c, func(c Container) { n += c.base().Len() })
	return n
}

// Update runs phase over every system in the order they were added.
// Invalid phases are ignored.
func (s *Scope) Update(phase Phase) {
	if s.closed || !phase.Valid() {
		return
	}
	for _, sys := range s.systems {
		sys.Update(phase)
	}
}

// Lookup finds a live container instance by id. Sub-processors are not
// container instances and are not indexed.
func (s *Scope) Lookup(id uuid.UUID) (*Processor, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Len returns the number of indexed instances.
func (s *Scope) Len() int {
	return len(s.byID)
}

// Systems returns the systems in tick order.
func (s *Scope) Systems() []*System {
	return slices.Clone(s.systems)
}

// System returns the system named name.
func (s *Scope) System(name string) (*System, bool) {
	for _, sys := range s.systems {
		if sys.Name() == name {
			return sys, true
		}
	}
	return nil, false
}

// Frame returns the frame most recently started by a Driver.
func (s *Scope) Frame() Frame {
	return s.frame
}

// Snapshot captures the live configuration of every system.
func (s *Scope) Snapshot() *Snapshot {
	roots := make([]Container, len(s.systems))
	for i, sys := range s.systems {
		roots[i] = sys
	}
	return CaptureSnapshot(roots...)
}

// Close tears every system down in reverse order. Errors from all systems
// are combined. Only the first call has any effect.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil

	var err error
	for i := len(s.systems) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.systems[i].Teardown())
	}
	clear(s.byID)

	if err != nil {
		s.log.Warn("scope closed with errors", zap.Error(err))
	} else {
		s.log.Info("scope closed", zap.Int("systems", len(s.systems)))
	}
	return err
}
