package pps

// Phase identifies one of the three scheduling passes of a frame.
// Hosts call them in the order Fixed (zero or more times) → Regular → Late.
type Phase int

const (
	// Regular is the variable-step per-frame pass.
	Regular Phase = iota

	// Fixed is the fixed-step pass. Processors that report
	// ProcessOnFixedUpdate process here instead of in Regular.
	Fixed

	// Late runs after Regular. Nothing transitions processing state in
	// this pass; it only reaches LateProcessor implementations.
	Late

	// phaseCount is the total number of phases.
	phaseCount
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case Regular:
		return "Regular"
	case Fixed:
		return "Fixed"
	case Late:
		return "Late"
	default:
		return "Unknown"
	}
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	return p >= Regular && p < phaseCount
}
