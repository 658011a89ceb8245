package pps

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/multierr"
)

var (
	// ErrConstruction reports that a processor or profile could not be
	// built from the kinds it was deployed with. It is a wiring mistake and
	// is never retried.
	ErrConstruction = errors.New("pps: construction failed")

	// ErrNotAttached reports a deploy into a subsystem that has not been
	// attached to a parent yet.
	ErrNotAttached = errors.New("pps: subsystem not attached")

	// ErrSubsystemsSealed reports an attach after the parent finished
	// initializing.
	ErrSubsystemsSealed = errors.New("pps: subsystems are fixed after initialization")

	// ErrUnknownKind reports a lookup of a kind name that was never registered.
	ErrUnknownKind = errors.New("pps: unknown kind")

	// ErrDuplicateKind reports a second registration under the same name.
	ErrDuplicateKind = errors.New("pps: duplicate kind")
)

// Deploy materializes template under parent as name, builds a profile of
// profileKind around the resulting handle and a processor of processorKind
// around c and the profile.
//
// A zero profileKind builds an EmptyProfile. When any step fails the
// materialized handle is released again and the error wraps
// ErrConstruction. Deploy does not register the processor with c; see
// Container.Deploy for that.
func Deploy(processorKind ProcessorKind, profileKind ProfileKind, c Container, template Template, parent Anchor, name string) (*Processor, error) {
	if processorKind.New == nil {
		return nil, fmt.Errorf("%w: processor kind %q has no constructor", ErrConstruction, processorKind.Name)
	}
	if profileKind.IsZero() {
		profileKind = EmptyProfileKind
	}

	handle, err := materialize(template, parent, name)
	if err != nil {
		return nil, fmt.Errorf("materialize %s: %w", name, err)
	}

	profile, err := newProfile(profileKind, c, handle)
	if err != nil {
		return nil, releaseOnError(handle, err)
	}

	behavior, err := processorKind.New(c, profile)
	if err == nil && (behavior == nil || isNilValue(reflect.ValueOf(behavior))) {
		err = fmt.Errorf("%w: processor kind %q returned nil", ErrConstruction, processorKind.Name)
	}
	if err != nil {
		if !errors.Is(err, ErrConstruction) {
			err = fmt.Errorf("%w: processor kind %q: %w", ErrConstruction, processorKind.Name, err)
		}
		return nil, releaseOnError(handle, err)
	}

	p := NewProcessor(c, profile, behavior, name)
	p.kind = processorKind.Name
	p.profileKind = profileKind.Name
	return p, nil
}

// newProfile tries the single-argument constructor first and falls back
// to the one taking the container.
func newProfile(kind ProfileKind, c Container, h Handle) (Profile, error) {
	var (
		profile Profile
		err     error
	)
	switch {
	case kind.New != nil:
		profile, err = kind.New(h)
	case kind.NewWithContainer != nil:
		profile, err = kind.NewWithContainer(c, h)
	default:
		return nil, fmt.Errorf("%w: profile kind %q has no constructor", ErrConstruction, kind.Name)
	}
	if err == nil && (profile == nil || isNilValue(reflect.ValueOf(profile))) {
		err = fmt.Errorf("%w: profile kind %q returned nil", ErrConstruction, kind.Name)
	}
	if err != nil && !errors.Is(err, ErrConstruction) {
		err = fmt.Errorf("%w: profile kind %q: %w", ErrConstruction, kind.Name, err)
	}
	return profile, err
}

func releaseOnError(h Handle, err error) error {
	if h == nil {
		return err
	}
	return multierr.Append(err, h.Release())
}
