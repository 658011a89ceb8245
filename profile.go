package pps

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Profile carries the data and instance handle a processor works on.
// It has no behavior of its own.
type Profile interface {
	// Handle returns the instance handle bound at construction, or nil.
	Handle() Handle
}

// BaseProfile is an embeddable Profile holding an immutable handle.
//
//	type LampProfile struct {
//	    pps.BaseProfile
//	    Brightness float64
//	}
//
//	func NewLampProfile(h pps.Handle) *LampProfile {
//	    return &LampProfile{BaseProfile: pps.NewBaseProfile(h)}
//	}
type BaseProfile struct {
	handle Handle
}

// NewBaseProfile binds h. The handle cannot be changed afterwards.
func NewBaseProfile(h Handle) BaseProfile {
	return BaseProfile{handle: h}
}

// Handle implements Profile.
func (p *BaseProfile) Handle() Handle {
	return p.handle
}

// Name returns the handle name, or "" without a handle.
func (p *BaseProfile) Name() string {
	if p.handle == nil {
		return ""
	}
	return p.handle.Name()
}

// Anchor returns the anchor of the handle, or nil without a handle.
func (p *BaseProfile) Anchor() Anchor {
	if p.handle == nil {
		return nil
	}
	return p.handle.Anchor()
}

// Position returns the handle position when the handle or its anchor is
// Spatial, and the zero vector otherwise.
func (p *BaseProfile) Position() mgl64.Vec3 {
	if p.handle == nil {
		return mgl64.Vec3{}
	}
	if s, ok := p.handle.(Spatial); ok {
		return s.Position()
	}
	if s, ok := p.handle.Anchor().(Spatial); ok {
		return s.Position()
	}
	return mgl64.Vec3{}
}

// EmptyProfile is a Profile without data, for processors that only need
// the handle.
type EmptyProfile struct {
	BaseProfile
}

// NewEmptyProfile is the single-argument constructor of EmptyProfile.
func NewEmptyProfile(h Handle) *EmptyProfile {
	return &EmptyProfile{BaseProfile: NewBaseProfile(h)}
}
