package pps

import (
	"fmt"
	"slices"
	"sort"
)

// Registry maps kind names to kinds. Persisted state refers to kinds by
// name and is resolved through a Registry when restored. EmptyProfileKind
// is always registered.
type Registry struct {
	processors map[string]ProcessorKind
	profiles   map[string]ProfileKind
}

// NewRegistry creates a registry holding only EmptyProfileKind.
func NewRegistry() *Registry {
	return &Registry{
		processors: make(map[string]ProcessorKind),
		profiles:   map[string]ProfileKind{EmptyProfileKind.Name: EmptyProfileKind},
	}
}

// RegisterProcessor adds k under its name.
func (r *Registry) RegisterProcessor(k ProcessorKind) error {
	if k.Name == "" || k.New == nil {
		return fmt.Errorf("%w: processor kind needs a name and a constructor", ErrConstruction)
	}
	if _, ok := r.processors[k.Name]; ok {
		return fmt.Errorf("%w: processor %q", ErrDuplicateKind, k.Name)
	}
	r.processors[k.Name] = k
	return nil
}

// RegisterProfile adds k under its name.
func (r *Registry) RegisterProfile(k ProfileKind) error {
	if k.Name == "" || (k.New == nil && k.NewWithContainer == nil) {
		return fmt.Errorf("%w: profile kind needs a name and a constructor", ErrConstruction)
	}
	if _, ok := r.profiles[k.Name]; ok {
		return fmt.Errorf("%w: profile %q", ErrDuplicateKind, k.Name)
	}
	r.profiles[k.Name] = k
	return nil
}

// Processor returns the processor kind registered as name.
func (r *Registry) Processor(name string) (ProcessorKind, error) {
	k, ok := r.processors[name]
	if !ok {
		return ProcessorKind{}, fmt.Errorf("%w: processor %q", ErrUnknownKind, name)
	}
	return k, nil
}

// Profile returns the profile kind registered as name.
func (r *Registry) Profile(name string) (ProfileKind, error) {
	k, ok := r.profiles[name]
	if !ok {
		return ProfileKind{}, fmt.Errorf("%w: profile %q", ErrUnknownKind, name)
	}
	return k, nil
}

// ProcessorNames returns the registered processor kind names, sorted.
func (r *Registry) ProcessorNames() []string {
	return sortedKeys(r.processors)
}

// ProfileNames returns the registered profile kind names, sorted.
func (r *Registry) ProfileNames() []string {
	return sortedKeys(r.profiles)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bundle groups related kinds and system definitions so a feature can be
// registered with a Builder in one call.
//
//	lamps := pps.NewBundle("lamps").
//	    Processor(lampKind).
//	    Profile(lampProfileKind).
//	    System(pps.Definition{Name: "Lamps", Processor: lampKind, DeployOnInit: true})
type Bundle struct {
	name string

	processors []ProcessorKind
	profiles   []ProfileKind
	systems    []Definition
}

// NewBundle creates a new bundle with the given name.
func NewBundle(name string) *Bundle {
	return &Bundle{name: name}
}

// Name returns the bundle name.
func (b *Bundle) Name() string {
	return b.name
}

// Processor adds processor kinds.
func (b *Bundle) Processor(kinds ...ProcessorKind) *Bundle {
	b.processors = append(b.processors, kinds...)
	return b
}

// Profile adds profile kinds.
func (b *Bundle) Profile(kinds ...ProfileKind) *Bundle {
	b.profiles = append(b.profiles, kinds...)
	return b
}

// System adds a root system definition. Its declared kinds are
// registered along with it unless a kind of the same name is registered
// already.
func (b *Bundle) System(def Definition) *Bundle {
	b.systems = append(b.systems, def)
	return b
}

// Systems returns the bundle's system definitions.
func (b *Bundle) Systems() []Definition {
	return slices.Clone(b.systems)
}

// build registers the bundle's kinds with r. Kinds the bundle lists must
// be new to r. Kinds a system only declares are skipped when a kind of the
// same name is registered already, so systems of several bundles can share
// a kind.
func (b *Bundle) build(r *Registry) error {
	for _, k := range b.processors {
		if err := r.RegisterProcessor(k); err != nil {
			return fmt.Errorf("bundle %s: %w", b.name, err)
		}
	}
	for _, k := range b.profiles {
		if err := r.RegisterProfile(k); err != nil {
			return fmt.Errorf("bundle %s: %w", b.name, err)
		}
	}

	for _, def := range b.systems {
		if def.Processor.Name != "" && !r.hasProcessor(def.Processor.Name) {
			if err := r.RegisterProcessor(def.Processor); err != nil {
				return fmt.Errorf("bundle %s: system %s: %w", b.name, def.Name, err)
			}
		}
		if def.Profile.Name != "" && !r.hasProfile(def.Profile.Name) {
			if err := r.RegisterProfile(def.Profile); err != nil {
				return fmt.Errorf("bundle %s: system %s: %w", b.name, def.Name, err)
			}
		}
	}
	return nil
}

func (r *Registry) hasProcessor(name string) bool {
	_, ok := r.processors[name]
	return ok
}

func (r *Registry) hasProfile(name string) bool {
	_, ok := r.profiles[name]
	return ok
}
