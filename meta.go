package pps

import (
	"fmt"
	"reflect"
)

// ProcessorKind describes how to build the behavior of a processor.
// Kinds are plain values; the factory resolves them at deploy time.
type ProcessorKind struct {
	// Name identifies the kind in logs and persisted state.
	Name string

	// New builds the behavior from the owning container and the profile.
	New func(c Container, profile Profile) (Behavior, error)
}

// IsZero reports whether the kind is unset.
func (k ProcessorKind) IsZero() bool {
	return k.Name == "" && k.New == nil
}

// ProfileKind describes how to build a profile around an instance handle.
// The factory tries New first and falls back to NewWithContainer.
type ProfileKind struct {
	// Name identifies the kind in logs and persisted state.
	Name string

	// New is the single-argument constructor.
	New func(h Handle) (Profile, error)

	// NewWithContainer is the two-argument constructor, for profiles that
	// need the owning container.
	NewWithContainer func(c Container, h Handle) (Profile, error)
}

// IsZero reports whether the kind is unset.
func (k ProfileKind) IsZero() bool {
	return k.Name == "" && k.New == nil && k.NewWithContainer == nil
}

// EmptyProfileKind builds an EmptyProfile. It is used when a deploy does
// not name a profile kind.
var EmptyProfileKind = ProfileKind{
	Name: "Empty",
	New: func(h Handle) (Profile, error) {
		return NewEmptyProfile(h), nil
	},
}

var (
	behaviorType  = reflect.TypeOf((*Behavior)(nil)).Elem()
	profileType   = reflect.TypeOf((*Profile)(nil)).Elem()
	handleType    = reflect.TypeOf((*Handle)(nil)).Elem()
	containerType = reflect.TypeOf((*Container)(nil)).Elem()
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
)

// BindProcessor builds a ProcessorKind from a constructor function of the
// shape
//
//	func(C, P) B
//	func(C, P) (B, error)
//
// where C is Container or a concrete container type, P is Profile or a
// concrete profile type, and B implements Behavior. The shape is checked
// here, but a mismatch is reported by the factory as ErrConstruction when
// the kind is deployed, together with arguments whose dynamic types do not
// fit C or P.
func BindProcessor(name string, ctor any) ProcessorKind {
	fn, err := analyzeCtor(ctor, 2, behaviorType)
	if err == nil {
		if in := fn.Type().In(0); !in.Implements(containerType) && !containerType.AssignableTo(in) {
			err = fmt.Errorf("first parameter %v is not a container", in)
		} else if in := fn.Type().In(1); !in.Implements(profileType) && !profileType.AssignableTo(in) {
			err = fmt.Errorf("second parameter %v is not a profile", in)
		}
	}
	if err != nil {
		err = fmt.Errorf("processor kind %s: %w: %v", name, ErrConstruction, err)
		return ProcessorKind{Name: name, New: func(Container, Profile) (Behavior, error) {
			return nil, err
		}}
	}

	return ProcessorKind{Name: name, New: func(c Container, profile Profile) (Behavior, error) {
		out, err := callCtor(fn, c, profile)
		if err != nil {
			return nil, fmt.Errorf("processor kind %s: %w", name, err)
		}
		return out.(Behavior), nil
	}}
}

// BindProfile builds a ProfileKind from a constructor function of one of
// the shapes
//
//	func(Handle) P
//	func(C, Handle) P
//
// optionally returning an error as second result, where P implements
// Profile. One-argument constructors bind New, two-argument constructors
// bind NewWithContainer.
func BindProfile(name string, ctor any) ProfileKind {
	fn := reflect.ValueOf(ctor)
	arity := -1
	if fn.Kind() == reflect.Func {
		arity = fn.Type().NumIn()
	}

	var err error
	if arity == 1 || arity == 2 {
		fn, err = analyzeCtor(ctor, arity, profileType)
	} else {
		err = fmt.Errorf("want a func with 1 or 2 parameters, got %T", ctor)
	}
	if err == nil {
		if in := fn.Type().In(arity - 1); !handleType.AssignableTo(in) && !in.Implements(handleType) {
			err = fmt.Errorf("last parameter %v is not a handle", in)
		}
	}
	if err != nil {
		err = fmt.Errorf("profile kind %s: %w: %v", name, ErrConstruction, err)
		return ProfileKind{Name: name, New: func(Handle) (Profile, error) {
			return nil, err
		}}
	}

	kind := ProfileKind{Name: name}
	if arity == 1 {
		kind.New = func(h Handle) (Profile, error) {
			out, err := callCtor(fn, h)
			if err != nil {
				return nil, fmt.Errorf("profile kind %s: %w", name, err)
			}
			return out.(Profile), nil
		}
		return kind
	}
	kind.NewWithContainer = func(c Container, h Handle) (Profile, error) {
		out, err := callCtor(fn, c, h)
		if err != nil {
			return nil, fmt.Errorf("profile kind %s: %w", name, err)
		}
		return out.(Profile), nil
	}
	return kind
}

// analyzeCtor checks that ctor is a function with numIn parameters that
// returns a value implementing result, optionally followed by an error.
func analyzeCtor(ctor any, numIn int, result reflect.Type) (reflect.Value, error) {
	fn := reflect.ValueOf(ctor)
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return fn, fmt.Errorf("constructor must be a func, got %T", ctor)
	}
	t := fn.Type()
	if t.IsVariadic() || t.NumIn() != numIn {
		return fn, fmt.Errorf("constructor %v must take %d parameters", t, numIn)
	}
	switch t.NumOut() {
	case 2:
		if t.Out(1) != errorType {
			return fn, fmt.Errorf("constructor %v: second result must be error", t)
		}
		fallthrough
	case 1:
		if !t.Out(0).Implements(result) {
			return fn, fmt.Errorf("constructor %v: result does not implement %v", t, result)
		}
	default:
		return fn, fmt.Errorf("constructor %v must return one value and an optional error", t)
	}
	return fn, nil
}

// callCtor invokes fn with args, checking each argument's dynamic type
// against the declared parameter types.
func callCtor(fn reflect.Value, args ...any) (any, error) {
	t := fn.Type()
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		want := t.In(i)
		if arg == nil {
			switch want.Kind() {
			case reflect.Interface, reflect.Pointer:
				in[i] = reflect.Zero(want)
				continue
			}
			return nil, fmt.Errorf("%w: nil argument %d for %v", ErrConstruction, i, want)
		}
		v := reflect.ValueOf(arg)
		if !v.Type().AssignableTo(want) {
			return nil, fmt.Errorf("%w: argument %d is %v, constructor wants %v", ErrConstruction, i, v.Type(), want)
		}
		in[i] = v
	}

	out := fn.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, out[1].Interface().(error))
	}
	if isNilValue(out[0]) {
		return nil, fmt.Errorf("%w: constructor %v returned nil", ErrConstruction, t)
	}
	return out[0].Interface(), nil
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
