package pps

// Behavior is the logic a processor runs. ShouldProcess is evaluated once
// per regular or fixed tick and Process runs while it reports true.
type Behavior interface {
	ShouldProcess(p *Processor) bool
	Process(p *Processor)
}

// FixedProcessor is implemented by behaviors that process in the Fixed
// phase instead of Regular. The answer is read once, when the processor is
// built.
type FixedProcessor interface {
	ProcessOnFixedUpdate() bool
}

// LateProcessor is implemented by behaviors with work in the Late phase.
type LateProcessor interface {
	LateProcess(p *Processor)
}

// Starter is implemented by behaviors that need to know when processing starts.
type Starter interface {
	OnProcessingStart(p *Processor)
}

// Stopper is implemented by behaviors that need to know when processing ends.
type Stopper interface {
	OnProcessingEnd(p *Processor)
}

// Readier is implemented by behaviors that need the one-shot readiness hook.
type Readier interface {
	OnReady(p *Processor)
}

// Disposer is implemented by behaviors with cleanup of their own. It runs
// before the profile handle is released.
type Disposer interface {
	OnDispose(p *Processor)
}

// Always is a Behavior that processes every tick with fn.
type Always func(p *Processor)

// ShouldProcess implements Behavior.
func (Always) ShouldProcess(*Processor) bool { return true }

// Process implements Behavior.
func (f Always) Process(p *Processor) {
	if f != nil {
		f(p)
	}
}

// idle never processes. NewProcessor falls back to it for a nil behavior.
type idle struct{}

func (idle) ShouldProcess(*Processor) bool { return false }
func (idle) Process(*Processor)            {}
