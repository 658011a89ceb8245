package pps

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Processor is a behavior unit ticked by its container. It owns its
// profile and its sub-processors and holds a non-owning reference to the
// container it was deployed into.
//
// Processors are not safe for concurrent use; every method runs on the
// goroutine that drives the tick.
type Processor struct {
	id   uuid.UUID
	name string

	behavior  Behavior
	container Container
	profile   Profile

	// kind and profileKind record the kind names for persisted state.
	kind        string
	profileKind string

	parent *Processor
	subs   []*Processor

	fixed      bool
	processing bool
	ready      bool
	disposed   bool

	start Signal[ProcessingEvent]
	stop  Signal[ProcessingEvent]
}

// NewProcessor builds a processor directly from its parts. Most callers go
// through Container.Deploy, which also registers the result. A nil behavior
// never processes.
func NewProcessor(c Container, profile Profile, b Behavior, name string) *Processor {
	if b == nil {
		b = idle{}
	}
	p := &Processor{
		id:        uuid.New(),
		name:      name,
		behavior:  b,
		container: c,
		profile:   profile,
	}
	if f, ok := b.(FixedProcessor); ok {
		p.fixed = f.ProcessOnFixedUpdate()
	}
	return p
}

// ID returns the processor's unique id.
func (p *Processor) ID() uuid.UUID { return p.id }

// Name returns the instance name.
func (p *Processor) Name() string { return p.name }

// Kind returns the processor kind name, or "" for direct construction.
func (p *Processor) Kind() string { return p.kind }

// ProfileKind returns the profile kind name, or "" for direct construction.
func (p *Processor) ProfileKind() string { return p.profileKind }

// Behavior returns the behavior object.
func (p *Processor) Behavior() Behavior { return p.behavior }

// Container returns the owning container.
func (p *Processor) Container() Container { return p.container }

// Profile returns the owned profile, which may be nil.
func (p *Processor) Profile() Profile { return p.profile }

// Parent returns the processor this one is a sub-processor of, or nil.
func (p *Processor) Parent() *Processor { return p.parent }

// Processing reports whether the processor is in the processing state.
func (p *Processor) Processing() bool { return p.processing }

// ProcessesOnFixed reports whether processing happens in the Fixed phase.
func (p *Processor) ProcessesOnFixed() bool { return p.fixed }

// Ready reports whether SetReady has run.
func (p *Processor) Ready() bool { return p.ready }

// Disposed reports whether Dispose has run.
func (p *Processor) Disposed() bool { return p.disposed }

// OnStart returns the signal emitted when processing starts.
func (p *Processor) OnStart() *Signal[ProcessingEvent] { return &p.start }

// OnStop returns the signal emitted when processing ends.
func (p *Processor) OnStop() *Signal[ProcessingEvent] { return &p.stop }

// ProfileAs returns the profile as T.
func ProfileAs[T Profile](p *Processor) (T, bool) {
	t, ok := p.profile.(T)
	return t, ok
}

// SubProcessors returns a copy of the sub-processors in tick order.
func (p *Processor) SubProcessors() []*Processor {
	return slices.Clone(p.subs)
}

// AddSubProcessor makes child a sub-processor of p. The child leaves any
// previous parent and its container's instance collection, and is readied
// at once if p is ready. A child that is p or one of p's ancestors is
// ignored.
func (p *Processor) AddSubProcessor(child *Processor) {
	if child == nil || child.disposed || p.disposed {
		return
	}
	for a := p; a != nil; a = a.parent {
		if a == child {
			p.logger().Warn("sub-processor would form a cycle",
				zap.String("processor", p.name), zap.String("child", child.name))
			return
		}
	}
	if child.parent != nil {
		child.parent.removeSub(child)
	}
	if child.container != nil {
		child.container.RemoveInstance(child)
	}
	child.parent = p
	p.subs = append(p.subs, child)
	if p.ready {
		child.SetReady()
	}
}

// DeploySub builds a sub-processor through the factory using the
// container's declared kinds, overridden by opts. The new instance is
// anchored under p's handle when that handle is an Anchor.
func (p *Processor) DeploySub(opts ...DeployOption) (*Processor, error) {
	if p.disposed {
		return nil, fmt.Errorf("%w: deploy under disposed processor %s", ErrConstruction, p.name)
	}
	if p.container == nil {
		return nil, fmt.Errorf("%w: processor %s has no container", ErrConstruction, p.name)
	}

	c := p.container.base()
	o := deployOptions{
		processor: c.def.Processor,
		profile:   c.def.Profile,
		template:  c.def.Template,
		name:      fmt.Sprintf("%s sub #%d", p.name, len(p.subs)+1),
	}
	for _, opt := range opts {
		opt(&o)
	}

	anchor := c.anchor
	if p.profile != nil {
		if a, ok := p.profile.Handle().(Anchor); ok {
			anchor = a
		}
	}
	if anchor == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAttached, c.def.Name)
	}

	child, err := Deploy(o.processor, o.profile, p.container, o.template, anchor, o.name)
	if err != nil {
		return nil, err
	}
	p.AddSubProcessor(child)
	return child, nil
}

func (p *Processor) removeSub(child *Processor) {
	if i := slices.Index(p.subs, child); i >= 0 {
		p.subs = slices.Delete(p.subs, i, i+1)
	}
}

// Update runs one tick phase: sub-processors first, in reverse order so a
// sub-processor may dispose itself, then the processor's own logic.
func (p *Processor) Update(phase Phase) {
	if p.disposed {
		return
	}
	for i := len(p.subs) - 1; i >= 0; i-- {
		if i < len(p.subs) {
			p.subs[i].Update(phase)
		}
	}
	if p.disposed {
		return
	}

	switch phase {
	case Regular:
		if !p.fixed {
			p.tryProcess()
		}
	case Fixed:
		if p.fixed {
			p.tryProcess()
		}
	case Late:
		if l, ok := p.behavior.(LateProcessor); ok {
			l.LateProcess(p)
		}
	}
}

func (p *Processor) tryProcess() {
	if !p.behavior.ShouldProcess(p) {
		if !p.processing {
			return
		}
		p.processing = false
		if s, ok := p.behavior.(Stopper); ok {
			s.OnProcessingEnd(p)
		}
		p.stop.emit(ProcessingEvent{Processor: p, Processing: false})
		return
	}

	if !p.processing {
		p.processing = true
		if s, ok := p.behavior.(Starter); ok {
			s.OnProcessingStart(p)
		}
		p.start.emit(ProcessingEvent{Processor: p, Processing: true})
		if p.disposed {
			return
		}
	}

	p.behavior.Process(p)
}

// SetReady runs the readiness hook once. Later calls, and calls after
// disposal, do nothing. Sub-processors are readied after p.
func (p *Processor) SetReady() {
	if p.ready || p.disposed {
		return
	}
	p.ready = true
	if r, ok := p.behavior.(Readier); ok {
		r.OnReady(p)
	}
	for _, child := range slices.Clone(p.subs) {
		child.SetReady()
	}
}

// Dispose tears the processor down: the behavior's OnDispose hook, the
// profile handle, every sub-processor, then the registrations with its
// parent and container. Only the first call has any effect.
func (p *Processor) Dispose() error {
	if p.disposed {
		return nil
	}
	p.disposed = true

	if d, ok := p.behavior.(Disposer); ok {
		d.OnDispose(p)
	}

	var err error
	if p.profile != nil {
		if h := p.profile.Handle(); h != nil {
			err = multierr.Append(err, h.Release())
		}
	}

	for i := len(p.subs) - 1; i >= 0; i-- {
		if i < len(p.subs) {
			err = multierr.Append(err, p.subs[i].Dispose())
		}
	}
	p.subs = nil

	if p.parent != nil {
		p.parent.removeSub(p)
		p.parent = nil
	}
	if p.container != nil {
		p.container.RemoveInstance(p)
	}

	p.start.clear()
	p.stop.clear()

	if err != nil {
		p.logger().Warn("dispose processor", zap.String("processor", p.name), zap.Error(err))
	}
	return err
}

func (p *Processor) logger() *zap.Logger {
	if p.container == nil {
		return nopLogger
	}
	return p.container.Logger()
}

// String returns a string representation of the processor for debugging.
func (p *Processor) String() string {
	return "Processor{Name: " + p.name + ", Kind: " + p.kind + ", ID: " + p.id.String() + "}"
}
