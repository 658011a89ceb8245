package pps_test

import (
	"github.com/oriumgames/pps"
)

// recorder is a Behavior implementing every optional hook. Hooks append
// "<processor name>:<event>" to log when it is set.
type recorder struct {
	should bool
	fixed  bool
	log    *[]string

	processed, started, stopped, readied, disposed, late int

	onProcess func(p *pps.Processor)
	onStart   func(p *pps.Processor)
	onReady   func(p *pps.Processor)
}

func (b *recorder) record(p *pps.Processor, event string) {
	if b.log != nil {
		*b.log = append(*b.log, p.Name()+":"+event)
	}
}

func (b *recorder) ShouldProcess(*pps.Processor) bool { return b.should }

func (b *recorder) Process(p *pps.Processor) {
	b.processed++
	b.record(p, "process")
	if b.onProcess != nil {
		b.onProcess(p)
	}
}

func (b *recorder) ProcessOnFixedUpdate() bool { return b.fixed }

func (b *recorder) LateProcess(p *pps.Processor) {
	b.late++
	b.record(p, "late")
}

func (b *recorder) OnProcessingStart(p *pps.Processor) {
	b.started++
	b.record(p, "start")
	if b.onStart != nil {
		b.onStart(p)
	}
}

func (b *recorder) OnProcessingEnd(p *pps.Processor) {
	b.stopped++
	b.record(p, "stop")
}

func (b *recorder) OnReady(p *pps.Processor) {
	b.readied++
	b.record(p, "ready")
	if b.onReady != nil {
		b.onReady(p)
	}
}

func (b *recorder) OnDispose(p *pps.Processor) {
	b.disposed++
	b.record(p, "dispose")
}

// recorderKind builds a kind producing recorders that share log. Each
// configure func is applied to every new recorder.
func recorderKind(name string, log *[]string, configure ...func(*recorder)) pps.ProcessorKind {
	return pps.ProcessorKind{
		Name: name,
		New: func(pps.Container, pps.Profile) (pps.Behavior, error) {
			b := &recorder{should: true, log: log}
			for _, cfg := range configure {
				cfg(b)
			}
			return b, nil
		},
	}
}

func recorderOf(p *pps.Processor) *recorder {
	return p.Behavior().(*recorder)
}

// fakeHandle is a Handle recording releases.
type fakeHandle struct {
	name     string
	anchor   pps.Anchor
	log      *[]string
	releases int
	err      error
}

func (h *fakeHandle) Name() string       { return h.name }
func (h *fakeHandle) Anchor() pps.Anchor { return h.anchor }

func (h *fakeHandle) Release() error {
	h.releases++
	if h.log != nil {
		*h.log = append(*h.log, "release:"+h.name)
	}
	return h.err
}

// fakeTemplate materializes fakeHandles and remembers them.
type fakeTemplate struct {
	log     *[]string
	err     error
	handles []*fakeHandle
}

func (t *fakeTemplate) Instantiate(anchor pps.Anchor, name string) (pps.Handle, error) {
	if t.err != nil {
		return nil, t.err
	}
	h := &fakeHandle{name: name, anchor: anchor, log: t.log}
	t.handles = append(t.handles, h)
	return h, nil
}

func names(ps []*pps.Processor) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name()
	}
	return out
}
