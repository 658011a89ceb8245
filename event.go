package pps

// Event types carried by container and processor signals.

// InstanceEvent is emitted when a processor enters or leaves a container's
// instance collection.
type InstanceEvent struct {
	Container Container
	Processor *Processor
}

// ReadyEvent is emitted once when a container becomes ready.
type ReadyEvent struct {
	Container Container
}

// ProcessingEvent is emitted on the edges of a processor's processing state.
type ProcessingEvent struct {
	Processor *Processor
	// Processing is the state after the transition.
	Processing bool
}

// listener is a single registration on a Signal.
type listener[E any] struct {
	id   uint64
	fn   func(E)
	once bool
}

// Signal is an ordered, synchronous observer list.
// Listeners run in registration order on the goroutine that emits.
// The zero value is ready to use.
type Signal[E any] struct {
	listeners []listener[E]
	nextID    uint64
}

// Subscribe registers fn and returns a function that removes it again.
func (s *Signal[E]) Subscribe(fn func(E)) (cancel func()) {
	return s.add(fn, false)
}

// Once registers fn for the next emission only.
func (s *Signal[E]) Once(fn func(E)) (cancel func()) {
	return s.add(fn, true)
}

// Len returns the number of registered listeners.
func (s *Signal[E]) Len() int {
	return len(s.listeners)
}

func (s *Signal[E]) add(fn func(E), once bool) func() {
	if fn == nil {
		return func() {}
	}
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener[E]{id: id, fn: fn, once: once})
	return func() { s.remove(id) }
}

func (s *Signal[E]) remove(id uint64) {
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// emit dispatches e to a snapshot of the current listeners, so listeners
// registered during dispatch wait for the next emission.
func (s *Signal[E]) emit(e E) {
	if len(s.listeners) == 0 {
		return
	}
	snapshot := make([]listener[E], len(s.listeners))
	copy(snapshot, s.listeners)

	for _, l := range snapshot {
		if l.once {
			s.remove(l.id)
		}
	}
	for _, l := range snapshot {
		l.fn(e)
	}
}

// clear drops every listener.
func (s *Signal[E]) clear() {
	s.listeners = nil
}
