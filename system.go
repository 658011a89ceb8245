package pps

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var nopLogger = zap.NewNop()

// Definition declares what a System or Subsystem deploys and how it
// initializes.
type Definition struct {
	// Name names the container. Instance names are derived from it.
	Name string

	// Processor is the declared processor kind.
	Processor ProcessorKind

	// Profile is the declared profile kind. The zero value builds EmptyProfile.
	Profile ProfileKind

	// Template is the instantiation template, or nil for instances
	// without an external handle.
	Template Template

	// DeployOnInit deploys one instance during initialization when the
	// container has none.
	DeployOnInit bool

	// ManualReady turns off automatic readiness during initialization;
	// the host then calls SetReady itself.
	ManualReady bool

	// Setup attaches subsystems during initialization. The subsystem
	// collection is fixed once it returns.
	Setup func(c Container) error
}

// Definer is implemented by subsystem types that declare their own
// Definition. Attach uses it for subsystems that have none yet.
type Definer interface {
	Define() Definition
}

// Container is the contract shared by System and Subsystem.
type Container interface {
	// Name returns the container name.
	Name() string

	// ID returns the container's unique id.
	ID() uuid.UUID

	// Definition returns the container's definition.
	Definition() Definition

	// IsReady reports whether the container has become ready.
	IsReady() bool

	// Anchor returns the traversal anchor, or nil before attachment.
	Anchor() Anchor

	// Parent returns the parent container, or nil for a root System.
	Parent() Container

	// NewInstanceName returns the name the next deployed instance gets.
	NewInstanceName() string

	// Instances returns a copy of the live instances in deploy order.
	Instances() []*Processor

	// Subsystems returns a copy of the attached subsystems.
	Subsystems() []Container

	// Deploy builds and registers a new instance.
	Deploy(opts ...DeployOption) (*Processor, error)

	// AddInstance registers an externally built processor.
	AddInstance(p *Processor)

	// RemoveInstance deregisters p without disposing it.
	RemoveInstance(p *Processor)

	// Update runs a tick phase over subsystems and instances.
	Update(phase Phase)

	// Teardown disposes every instance and subsystem.
	Teardown() error

	// OnDeployed returns the signal emitted after an instance is registered.
	OnDeployed() *Signal[InstanceEvent]

	// OnRemoved returns the signal emitted after an instance is deregistered.
	OnRemoved() *Signal[InstanceEvent]

	// OnReady returns the signal emitted when the container becomes ready.
	OnReady() *Signal[ReadyEvent]

	// Logger returns the container's logger.
	Logger() *zap.Logger

	base() *container
}

// DeployOption overrides a declared default for a single deploy.
type DeployOption func(*deployOptions)

type deployOptions struct {
	processor ProcessorKind
	profile   ProfileKind
	template  Template
	name      string
}

// WithProcessorKind overrides the declared processor kind.
func WithProcessorKind(k ProcessorKind) DeployOption {
	return func(o *deployOptions) { o.processor = k }
}

// WithProfileKind overrides the declared profile kind.
func WithProfileKind(k ProfileKind) DeployOption {
	return func(o *deployOptions) { o.profile = k }
}

// WithTemplate overrides the declared template.
func WithTemplate(t Template) DeployOption {
	return func(o *deployOptions) { o.template = t }
}

// WithName overrides the generated instance name.
func WithName(name string) DeployOption {
	return func(o *deployOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// container holds the state and behavior System and Subsystem share.
// Its zero value is usable, which lets Attach build subsystems with new.
type container struct {
	self Container

	def     Definition
	defined bool
	id      uuid.UUID
	anchor  Anchor
	parent  Container
	log     *zap.Logger

	// instances is dense and in deploy order. Reverse index iteration
	// stays valid when an instance removes itself mid-pass.
	instances  []*Processor
	subsystems []Container

	initialized  bool
	sealed       bool
	ready        bool
	readyPending bool
	tornDown     bool

	// restore is persisted state for this container, applied when it
	// initializes. pending holds the same for subsystems not attached yet.
	restore *pendingState
	pending map[string]*pendingState

	deployed Signal[InstanceEvent]
	removed  Signal[InstanceEvent]
	readySig Signal[ReadyEvent]
}

func (c *container) base() *container { return c }

// Name implements Container.
func (c *container) Name() string { return c.def.Name }

// ID implements Container.
func (c *container) ID() uuid.UUID { return c.id }

// Definition implements Container.
func (c *container) Definition() Definition { return c.def }

// IsReady implements Container.
func (c *container) IsReady() bool { return c.ready }

// Anchor implements Container.
func (c *container) Anchor() Anchor { return c.anchor }

// Parent implements Container.
func (c *container) Parent() Container { return c.parent }

// Logger implements Container.
func (c *container) Logger() *zap.Logger {
	if c.log == nil {
		return nopLogger
	}
	return c.log
}

// OnDeployed implements Container.
func (c *container) OnDeployed() *Signal[InstanceEvent] { return &c.deployed }

// OnRemoved implements Container.
func (c *container) OnRemoved() *Signal[InstanceEvent] { return &c.removed }

// OnReady implements Container.
func (c *container) OnReady() *Signal[ReadyEvent] { return &c.readySig }

// NewInstanceName implements Container.
func (c *container) NewInstanceName() string {
	return fmt.Sprintf("%s instance #%d", c.def.Name, len(c.instances)+1)
}

// Instances implements Container.
func (c *container) Instances() []*Processor { return slices.Clone(c.instances) }

// Subsystems implements Container.
func (c *container) Subsystems() []Container { return slices.Clone(c.subsystems) }

// Len returns the number of live instances.
func (c *container) Len() int { return len(c.instances) }

// Deploy implements Container. It builds an instance with the declared
// kinds and template, registers it, readies it when the container is
// ready and emits OnDeployed.
func (c *container) Deploy(opts ...DeployOption) (*Processor, error) {
	if c.anchor == nil {
		return nil, fmt.Errorf("%w: deploy into %s before attach", ErrNotAttached, c.describe())
	}
	if c.tornDown {
		return nil, fmt.Errorf("%w: deploy into torn down %s", ErrConstruction, c.describe())
	}

	o := deployOptions{
		processor: c.def.Processor,
		profile:   c.def.Profile,
		template:  c.def.Template,
		name:      c.NewInstanceName(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	p, err := Deploy(o.processor, o.profile, c.self, o.template, c.anchor, o.name)
	if err != nil {
		c.Logger().Error("deploy instance", zap.String("instance", o.name), zap.Error(err))
		return nil, err
	}
	c.register(p)
	return p, nil
}

// AddInstance implements Container. Processors already registered or
// disposed are ignored.
func (c *container) AddInstance(p *Processor) {
	if p == nil || p.disposed || slices.Contains(c.instances, p) {
		return
	}
	if p.container == nil {
		p.container = c.self
	}
	c.register(p)
}

func (c *container) register(p *Processor) {
	c.instances = append(c.instances, p)
	if c.ready {
		p.SetReady()
	}
	c.Logger().Debug("instance deployed", zap.String("instance", p.name), zap.String("kind", p.kind))
	c.deployed.emit(InstanceEvent{Container: c.self, Processor: p})
}

// RemoveInstance implements Container. Removing a processor that is not
// registered does nothing.
func (c *container) RemoveInstance(p *Processor) {
	i := slices.Index(c.instances, p)
	if i < 0 {
		return
	}
	c.instances = slices.Delete(c.instances, i, i+1)
	c.Logger().Debug("instance removed", zap.String("instance", p.name))
	c.removed.emit(InstanceEvent{Container: c.self, Processor: p})
}

// Update implements Container. Subsystems are ticked depth-first before
// the container's own instances, which are ticked from the last index down.
func (c *container) Update(phase Phase) {
	if c.tornDown || !phase.Valid() {
		return
	}
	for _, sub := range c.subsystems {
		sub.Update(phase)
	}
	for i := len(c.instances) - 1; i >= 0; i-- {
		if i < len(c.instances) {
			c.instances[i].Update(phase)
		}
	}
}

// markReady flips the ready flag, notifies listeners and then readies
// the container's instances.
func (c *container) markReady() {
	if c.ready || c.tornDown {
		return
	}
	c.ready = true
	c.readyPending = false
	c.Logger().Debug("ready", zap.Int("instances", len(c.instances)))
	c.readySig.emit(ReadyEvent{Container: c.self})
	for _, p := range slices.Clone(c.instances) {
		p.SetReady()
	}
}

// initialize runs the shared part of System.Init and subsystem attach:
// persisted state, Setup, the default instance and readiness.
func (c *container) initialize(ready func() error) error {
	if err := c.applyPending(); err != nil {
		return err
	}
	if c.def.Setup != nil {
		if err := c.def.Setup(c.self); err != nil {
			return fmt.Errorf("setup %s: %w", c.describe(), err)
		}
	}
	c.sealed = true
	c.initialized = true

	if c.def.DeployOnInit && len(c.instances) == 0 {
		if _, err := c.Deploy(); err != nil {
			return err
		}
	}
	if !c.def.ManualReady {
		return ready()
	}
	return nil
}

// Teardown implements Container. Instances are disposed from the last
// index down, then subsystems in reverse attach order, then the anchor is
// detached when it supports it. Only the first call has any effect.
func (c *container) Teardown() error {
	if c.tornDown {
		return nil
	}

	var err error
	for i := len(c.instances) - 1; i >= 0; i-- {
		if i < len(c.instances) {
			err = multierr.Append(err, c.instances[i].Dispose())
		}
	}
	for i := len(c.subsystems) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.subsystems[i].Teardown())
	}
	c.tornDown = true

	if d, ok := c.anchor.(interface{ Detach() }); ok {
		d.Detach()
	}
	c.deployed.clear()
	c.removed.clear()
	c.readySig.clear()

	if err != nil {
		c.Logger().Warn("teardown", zap.Error(err))
	} else {
		c.Logger().Debug("torn down")
	}
	return err
}

func (c *container) describe() string {
	if c.def.Name == "" {
		return "unnamed container"
	}
	return c.def.Name
}

// System is a root container. Its readiness is triggered by itself,
// during Init or through SetReady.
type System struct {
	container
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger. Containers log lifecycle events at debug
// level and failures at warn and error.
func WithLogger(log *zap.Logger) Option {
	return func(s *System) {
		if log != nil {
			s.log = log
		}
	}
}

// WithAnchor sets the root anchor. By default the system anchors under a
// new root Node named after the definition.
func WithAnchor(a Anchor) Option {
	return func(s *System) {
		if a != nil {
			s.anchor = a
		}
	}
}

// NewSystem creates a root System. Call Init, directly or through
// Scope.Add, to attach subsystems, deploy the default instance and become
// ready.
func NewSystem(def Definition, opts ...Option) *System {
	if def.Name == "" {
		def.Name = "System"
	}
	s := &System{}
	s.self = s
	s.def = def
	s.defined = true
	s.id = uuid.New()
	for _, opt := range opts {
		opt(s)
	}
	if s.anchor == nil {
		s.anchor = NewNode(def.Name)
	}
	s.log = s.Logger().With(zap.String("system", def.Name))
	return s
}

// Init initializes the system once. Later calls do nothing.
func (s *System) Init() error {
	if s.initialized {
		return nil
	}
	if err := s.initialize(func() error {
		s.SetReady()
		return nil
	}); err != nil {
		return err
	}
	s.Logger().Debug("initialized",
		zap.Int("instances", len(s.instances)),
		zap.Int("subsystems", len(s.subsystems)))
	return nil
}

// SetReady marks the system ready, which readies its subsystems and then
// its instances. Readiness never resets.
func (s *System) SetReady() {
	s.markReady()
}

// Subsystem is a container attached under a parent container. Its
// readiness follows the parent's. Embed it by value in a named type and
// attach it with Attach:
//
//	type Weather struct {
//	    pps.Subsystem
//	}
//
//	func (*Weather) Define() pps.Definition {
//	    return pps.Definition{Processor: cloudKind, DeployOnInit: true}
//	}
//
//	var weather *Weather
//	pps.Attach(parent, &weather)
type Subsystem struct {
	container
}

// NewSubsystem creates a detached subsystem with a definition.
func NewSubsystem(def Definition) *Subsystem {
	s := &Subsystem{}
	s.Configure(def)
	return s
}

// Configure sets the definition. It has no effect once attached.
func (s *Subsystem) Configure(def Definition) {
	if s.anchor != nil {
		return
	}
	s.def = def
	s.defined = true
}

// Attached reports whether the subsystem has been attached to a parent.
func (s *Subsystem) Attached() bool {
	return s.parent != nil
}

// SetReady starts the readiness check: the subsystem becomes ready now if
// its parent is ready, or when the parent becomes ready otherwise.
func (s *Subsystem) SetReady() error {
	if s.parent == nil {
		return fmt.Errorf("%w: %s", ErrNotAttached, s.describe())
	}
	if s.ready || s.readyPending {
		return nil
	}
	if s.parent.IsReady() {
		s.markReady()
		return nil
	}
	s.readyPending = true
	s.parent.OnReady().Once(func(ReadyEvent) {
		s.markReady()
	})
	return nil
}

// Attach attaches the subsystem in *slot to parent. A bound *slot, for
// example one restored from persisted state, is reused; a nil *slot is
// filled with new(T). Subsystems without a definition take it from
// Definer, and unnamed ones are named after T.
//
// The subsystem gets a child of the parent's anchor, runs its own Setup,
// deploys its default instance and starts its readiness check. Attaching
// the same subsystem to the same parent again returns it unchanged.
func Attach[T any, S interface {
	*T
	Container
}](parent Container, slot *S) (S, error) {
	var zero S
	if parent == nil || slot == nil {
		return zero, fmt.Errorf("%w: attach needs a parent and a slot", ErrConstruction)
	}
	pc := parent.base()
	if *slot == nil {
		*slot = S(new(T))
	}
	node := *slot
	c := node.base()

	if c.self == Container(node) && c.parent == parent {
		return node, nil
	}
	if c.parent != nil {
		return zero, fmt.Errorf("%w: %s is already attached to %s", ErrConstruction, c.describe(), c.parent.Name())
	}
	if _, isRoot := any(node).(*System); isRoot {
		return zero, fmt.Errorf("%w: a System cannot be attached as a subsystem", ErrConstruction)
	}
	sub, ok := any(node).(interface{ SetReady() error })
	if !ok {
		return zero, fmt.Errorf("%w: %T does not embed Subsystem", ErrConstruction, node)
	}
	if pc.sealed {
		return zero, fmt.Errorf("%w: %s", ErrSubsystemsSealed, pc.describe())
	}
	if pc.anchor == nil {
		return zero, fmt.Errorf("%w: parent %s", ErrNotAttached, pc.describe())
	}

	if !c.defined {
		if d, ok := any(node).(Definer); ok {
			c.def = d.Define()
		}
		c.defined = true
	}
	if c.def.Name == "" {
		c.def.Name = reflect.TypeFor[T]().Name()
	}
	if c.id == uuid.Nil {
		c.id = uuid.New()
	}

	c.self = node
	c.parent = parent
	c.anchor = pc.anchor.NewChild(c.def.Name)
	if c.log == nil {
		c.log = pc.Logger().With(zap.String("subsystem", c.def.Name))
	}
	if st, ok := pc.pending[c.def.Name]; ok {
		c.setPending(st)
		delete(pc.pending, c.def.Name)
	}
	pc.subsystems = append(pc.subsystems, node)

	if err := c.initialize(sub.SetReady); err != nil {
		pc.subsystems = slices.DeleteFunc(pc.subsystems, func(x Container) bool { return x == Container(node) })
		err = multierr.Append(err, c.Teardown())
		return zero, err
	}
	c.Logger().Debug("attached", zap.String("parent", pc.def.Name))
	return node, nil
}

// SubsystemsOf returns the attached subsystems of c that are a T, in
// attach order. Subsystems that are not a T are skipped.
func SubsystemsOf[T any](c Container) []T {
	var out []T
	for _, sub := range c.base().subsystems {
		if t, ok := sub.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// Walk calls fn for c and every container below it, depth-first in attach
// order.
func Walk(c Container, fn func(Container)) {
	fn(c)
	for _, sub := range c.base().subsystems {
		Walk(sub, fn)
	}
}
