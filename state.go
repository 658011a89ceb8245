package pps

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SnapshotVersion is the current persisted state format.
const SnapshotVersion = 1

// Snapshot is the persisted configuration of one or more System trees.
type Snapshot struct {
	Version int              `yaml:"version"`
	Systems []ContainerState `yaml:"systems"`
}

// ContainerState is the persisted configuration of one container.
// Unset flags keep the values of the container's Definition.
type ContainerState struct {
	Name         string           `yaml:"name"`
	DeployOnInit *bool            `yaml:"deploy_on_init,omitempty"`
	ReadyOnInit  *bool            `yaml:"ready_on_init,omitempty"`
	Instances    []InstanceState  `yaml:"instances,omitempty"`
	Subsystems   []ContainerState `yaml:"subsystems,omitempty"`
}

// InstanceState is the persisted form of a processor. Empty kind names
// fall back to the container's declared kinds.
type InstanceState struct {
	Name      string          `yaml:"name"`
	Processor string          `yaml:"processor,omitempty"`
	Profile   string          `yaml:"profile,omitempty"`
	Subs      []InstanceState `yaml:"subs,omitempty"`
}

// pendingState is restored state waiting for its container to initialize.
type pendingState struct {
	state    ContainerState
	registry *Registry
}

// LoadSnapshot decodes a snapshot from r.
func LoadSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return &Snapshot{Version: SnapshotVersion}, nil
		}
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version == 0 {
		s.Version = SnapshotVersion
	}
	if s.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than %d", s.Version, SnapshotVersion)
	}
	return &s, nil
}

// LoadSnapshotFile reads a snapshot from path. A missing file yields an
// empty snapshot.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Snapshot{Version: SnapshotVersion}, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return LoadSnapshot(bytes.NewReader(data))
}

// Save encodes the snapshot to w.
func (s *Snapshot) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// SaveFile writes the snapshot to path.
func (s *Snapshot) SaveFile(path string) error {
	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// System returns the state stored for the system named name.
func (s *Snapshot) System(name string) (ContainerState, bool) {
	for _, st := range s.Systems {
		if st.Name == name {
			return st, true
		}
	}
	return ContainerState{}, false
}

// Put stores st, replacing any state with the same name.
func (s *Snapshot) Put(st ContainerState) {
	for i := range s.Systems {
		if s.Systems[i].Name == st.Name {
			s.Systems[i] = st
			return
		}
	}
	s.Systems = append(s.Systems, st)
}

// Restore applies the state stored for c to c. Call it before the
// container initializes: persisted flags then replace the definition's,
// restored instances suppress the default deploy, and the state of
// subsystems is applied when they attach. Having no state for c is not
// an error.
func (s *Snapshot) Restore(c Container, registry *Registry) error {
	st, ok := s.System(c.Name())
	if !ok {
		return nil
	}
	return RestoreState(c, st, registry)
}

// RestoreState applies st to c, resolving kind names through registry.
func RestoreState(c Container, st ContainerState, registry *Registry) error {
	if registry == nil {
		registry = NewRegistry()
	}
	b := c.base()
	if !b.initialized {
		if st.DeployOnInit != nil {
			b.def.DeployOnInit = *st.DeployOnInit
		}
		if st.ReadyOnInit != nil {
			b.def.ManualReady = !*st.ReadyOnInit
		}
	}

	for _, inst := range st.Instances {
		opts, err := instanceOptions(inst, registry)
		if err != nil {
			return fmt.Errorf("restore %s: %w", b.describe(), err)
		}
		p, err := c.Deploy(opts...)
		if err != nil {
			return fmt.Errorf("restore %s: %w", b.describe(), err)
		}
		if err := restoreSubs(p, inst.Subs, registry); err != nil {
			return fmt.Errorf("restore %s: %w", b.describe(), err)
		}
	}

	for _, sub := range st.Subsystems {
		if attached := findSubsystem(c, sub.Name); attached != nil {
			if err := RestoreState(attached, sub, registry); err != nil {
				return err
			}
			continue
		}
		if b.pending == nil {
			b.pending = make(map[string]*pendingState)
		}
		b.pending[sub.Name] = &pendingState{state: sub, registry: registry}
	}
	b.Logger().Debug("state restored",
		zap.Int("instances", len(st.Instances)),
		zap.Int("subsystems", len(st.Subsystems)))
	return nil
}

func restoreSubs(p *Processor, subs []InstanceState, registry *Registry) error {
	for _, inst := range subs {
		opts, err := instanceOptions(inst, registry)
		if err != nil {
			return err
		}
		child, err := p.DeploySub(opts...)
		if err != nil {
			return err
		}
		if err := restoreSubs(child, inst.Subs, registry); err != nil {
			return err
		}
	}
	return nil
}

func instanceOptions(inst InstanceState, registry *Registry) ([]DeployOption, error) {
	opts := []DeployOption{WithName(inst.Name)}
	if inst.Processor != "" {
		k, err := registry.Processor(inst.Processor)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithProcessorKind(k))
	}
	if inst.Profile != "" {
		k, err := registry.Profile(inst.Profile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithProfileKind(k))
	}
	return opts, nil
}

func findSubsystem(c Container, name string) Container {
	for _, sub := range c.base().subsystems {
		if sub.Name() == name {
			return sub
		}
	}
	return nil
}

// setPending stores st for applyPending.
func (c *container) setPending(st *pendingState) {
	c.restore = st
}

// applyPending restores the state stored for the container itself.
func (c *container) applyPending() error {
	st := c.restore
	if st == nil {
		return nil
	}
	c.restore = nil
	return RestoreState(c.self, st.state, st.registry)
}

// Capture records the live configuration of c and everything below it.
func Capture(c Container) ContainerState {
	b := c.base()
	deploy, ready := b.def.DeployOnInit, !b.def.ManualReady
	st := ContainerState{
		Name:         b.def.Name,
		DeployOnInit: &deploy,
		ReadyOnInit:  &ready,
	}
	for _, p := range b.instances {
		st.Instances = append(st.Instances, captureInstance(p))
	}
	for _, sub := range b.subsystems {
		st.Subsystems = append(st.Subsystems, Capture(sub))
	}
	return st
}

func captureInstance(p *Processor) InstanceState {
	st := InstanceState{Name: p.name, Processor: p.kind, Profile: p.profileKind}
	for _, child := range p.subs {
		st.Subs = append(st.Subs, captureInstance(child))
	}
	return st
}

// CaptureSnapshot records the live configuration of the given systems.
func CaptureSnapshot(systems ...Container) *Snapshot {
	s := &Snapshot{Version: SnapshotVersion}
	for _, sys := range systems {
		s.Systems = append(s.Systems, Capture(sys))
	}
	return s
}

// Tracker keeps a captured state in step with a container tree. It
// recaptures whenever an instance is deployed into or removed from any
// container of the tree. Create it once the tree is initialized, since
// the subsystem collection does not change after that.
type Tracker struct {
	root    Container
	state   ContainerState
	cancels []func()
	changes int
}

// NewTracker starts tracking root.
func NewTracker(root Container) *Tracker {
	t := &Tracker{root: root}
	Walk(root, func(c Container) {
		t.cancels = append(t.cancels,
			c.OnDeployed().Subscribe(t.onChange),
			c.OnRemoved().Subscribe(t.onChange),
		)
	})
	t.state = Capture(root)
	return t
}

func (t *Tracker) onChange(InstanceEvent) {
	t.changes++
	t.state = Capture(t.root)
}

// State returns the tracked state.
func (t *Tracker) State() ContainerState {
	return t.state
}

// Changes returns the number of deploys and removals seen.
func (t *Tracker) Changes() int {
	return t.changes
}

// Store puts the tracked state into s.
func (t *Tracker) Store(s *Snapshot) {
	s.Put(t.state)
}

// Close stops tracking.
func (t *Tracker) Close() {
	for _, cancel := range t.cancels {
		cancel()
	}
	t.cancels = nil
}
