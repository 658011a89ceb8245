package pps

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Builder configures a Scope before initialization.
// Use NewBuilder() to create a builder and chain configuration methods.
type Builder struct {
	bundles  []*Bundle
	systems  []Definition
	log      *zap.Logger
	snapshot *Snapshot
}

// NewBuilder creates a new builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Bundle adds a bundle. Its kinds are registered and its systems are
// created in the order bundles are added.
func (b *Builder) Bundle(bundle *Bundle) *Builder {
	b.bundles = append(b.bundles, bundle)
	return b
}

// System adds a root system definition outside any bundle. Its kinds are
// expected to be registered by a bundle when persisted state refers to them.
func (b *Builder) System(def Definition) *Builder {
	b.systems = append(b.systems, def)
	return b
}

// Logger sets the logger shared by the scope and its systems.
func (b *Builder) Logger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// Snapshot restores persisted state into each system before it initializes.
func (b *Builder) Snapshot(s *Snapshot) *Builder {
	b.snapshot = s
	return b
}

// Init registers every bundle, creates the systems, restores persisted
// state and adds the systems to a new Scope. On failure the systems added
// so far are torn down again.
func (b *Builder) Init() (*Scope, error) {
	log := b.log
	if log == nil {
		log = nopLogger
	}

	registry := NewRegistry()
	var defs []Definition
	for _, bundle := range b.bundles {
		if err := bundle.build(registry); err != nil {
			return nil, err
		}
		defs = append(defs, bundle.systems...)
	}
	defs = append(defs, b.systems...)

	scope := NewScope(log, registry)
	for _, def := range defs {
		sys := NewSystem(def, WithLogger(log))
		if b.snapshot != nil {
			if err := b.snapshot.Restore(sys, registry); err != nil {
				err = fmt.Errorf("restore %s: %w", sys.Name(), err)
				return nil, multierr.Combine(err, sys.Teardown(), scope.Close())
			}
		}
		if err := scope.Add(sys); err != nil {
			return nil, multierr.Combine(err, sys.Teardown(), scope.Close())
		}
	}
	return scope, nil
}
