// Package dfhost hosts pps Systems in a Dragonfly world. Anchors map to
// positions in a *world.World and EntityTemplate materializes instances as
// entities.
//
// Templates open their own world transaction, so containers anchored here
// must deploy and tear down outside of any transaction of the same world.
package dfhost

import (
	"errors"
	"fmt"
	"sync"

	"github.com/df-mc/dragonfly/server/world"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/oriumgames/pps"
)

// ErrNoWorld is returned when an anchor chain does not lead to a world.
var ErrNoWorld = errors.New("dfhost: anchor is not in a world")

// WorldAnchor is a pps.Anchor positioned in a Dragonfly world.
type WorldAnchor struct {
	name   string
	parent *WorldAnchor
	world  *world.World

	// Offset is the position relative to the parent anchor, or the world
	// position for a root anchor.
	Offset mgl64.Vec3
}

// NewAnchor creates a root anchor in w at origin.
func NewAnchor(w *world.World, name string, origin mgl64.Vec3) *WorldAnchor {
	return &WorldAnchor{name: name, world: w, Offset: origin}
}

// NewSystem creates a pps System anchored at origin in w.
func NewSystem(w *world.World, origin mgl64.Vec3, def pps.Definition, opts ...pps.Option) *pps.System {
	opts = append(opts, pps.WithAnchor(NewAnchor(w, def.Name, origin)))
	return pps.NewSystem(def, opts...)
}

// Name implements pps.Anchor.
func (a *WorldAnchor) Name() string { return a.name }

// Parent implements pps.Anchor.
func (a *WorldAnchor) Parent() pps.Anchor {
	if a.parent == nil {
		return nil
	}
	return a.parent
}

// NewChild implements pps.Anchor. The child shares the world and starts
// at the parent's position.
func (a *WorldAnchor) NewChild(name string) pps.Anchor {
	return &WorldAnchor{name: name, parent: a, world: a.world}
}

// World returns the world the anchor is in.
func (a *WorldAnchor) World() *world.World { return a.world }

// Position implements pps.Spatial.
func (a *WorldAnchor) Position() mgl64.Vec3 {
	pos := a.Offset
	for p := a.parent; p != nil; p = p.parent {
		pos = pos.Add(p.Offset)
	}
	return pos
}

// EntityTemplate materializes instances as entities of Type.
type EntityTemplate struct {
	Type   world.EntityType
	Config world.EntityConfig

	// Offset is added to the anchor position.
	Offset mgl64.Vec3

	// NameTag shows the instance name above the entity.
	NameTag bool
}

// Instantiate implements pps.Template. It blocks until the entity has
// been added to the anchor's world.
func (t EntityTemplate) Instantiate(anchor pps.Anchor, name string) (pps.Handle, error) {
	if t.Type == nil {
		return nil, fmt.Errorf("dfhost: entity template for %s has no type", name)
	}
	wa, ok := anchor.(*WorldAnchor)
	if !ok || wa.world == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoWorld, name)
	}

	pos := wa.Position().Add(t.Offset)
	opts := world.EntitySpawnOpts{Position: pos}
	if t.NameTag {
		opts.NameTag = name
	}
	handle := opts.New(t.Type, t.Config)

	done := make(chan struct{})
	wa.world.Exec(func(tx *world.Tx) {
		defer close(done)
		tx.AddEntity(handle)
	})
	<-done

	return &EntityHandle{name: name, anchor: wa, handle: handle, last: pos}, nil
}

// EntityHandle is the pps.Handle of a spawned entity.
type EntityHandle struct {
	name   string
	anchor *WorldAnchor
	handle *world.EntityHandle

	mu       sync.Mutex
	last     mgl64.Vec3
	released bool
}

// Name implements pps.Handle.
func (h *EntityHandle) Name() string { return h.name }

// Anchor implements pps.Handle.
func (h *EntityHandle) Anchor() pps.Anchor { return h.anchor }

// Entity returns the underlying Dragonfly handle.
func (h *EntityHandle) Entity() *world.EntityHandle { return h.handle }

// Parent implements pps.Anchor, so sub-processors spawn next to the entity.
func (h *EntityHandle) Parent() pps.Anchor { return h.anchor }

// NewChild implements pps.Anchor. The child is positioned at the entity.
func (h *EntityHandle) NewChild(name string) pps.Anchor {
	child := h.anchor.NewChild(name).(*WorldAnchor)
	child.Offset = h.Position().Sub(h.anchor.Position())
	return child
}

// Position implements pps.Spatial. It reports the entity position, or the
// last known one once the entity is gone.
func (h *EntityHandle) Position() mgl64.Vec3 {
	h.mu.Lock()
	released := h.released
	h.mu.Unlock()
	if !released {
		h.handle.ExecWorld(func(_ *world.Tx, e world.Entity) {
			pos := e.Position()
			h.mu.Lock()
			h.last = pos
			h.mu.Unlock()
		})
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Release implements pps.Handle by removing the entity from its world and
// closing the handle.
func (h *EntityHandle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.mu.Unlock()

	h.handle.ExecWorld(func(tx *world.Tx, e world.Entity) {
		tx.RemoveEntity(e)
	})
	if err := h.handle.Close(); err != nil {
		return fmt.Errorf("close entity %s: %w", h.name, err)
	}
	return nil
}
