package pps

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Anchor is a node in the host's scene hierarchy. Containers anchor their
// instances under an Anchor, and subsystems get a child anchor of their
// parent's when attached.
type Anchor interface {
	// Name returns the node name.
	Name() string

	// Parent returns the parent anchor, or nil for a root.
	Parent() Anchor

	// NewChild creates a named child anchor.
	NewChild(name string) Anchor
}

// Handle is an externally materialized instance owned by a Profile.
type Handle interface {
	// Name returns the name the instance was materialized with.
	Name() string

	// Anchor returns the anchor the instance lives under.
	Anchor() Anchor

	// Release destroys the external instance. It is called exactly once,
	// by the owning processor's disposal.
	Release() error
}

// Spatial is implemented by anchors and handles that have a position.
type Spatial interface {
	Position() mgl64.Vec3
}

// Template materializes new instances. A nil Template materializes nothing.
type Template interface {
	Instantiate(anchor Anchor, name string) (Handle, error)
}

// materialize clones t under anchor. It returns a nil handle for a nil template.
func materialize(t Template, anchor Anchor, name string) (Handle, error) {
	if t == nil {
		return nil, nil
	}
	return t.Instantiate(anchor, name)
}

// Node is the in-process Anchor implementation. It keeps a local transform
// relative to its parent.
type Node struct {
	name     string
	parent   *Node
	children []*Node

	// Local is the position relative to the parent.
	Local mgl64.Vec3

	// Rotation is the rotation relative to the parent.
	Rotation mgl64.Quat
}

// NewNode creates a root node.
func NewNode(name string) *Node {
	return &Node{name: name, Rotation: mgl64.QuatIdent()}
}

// Name returns the node name.
func (n *Node) Name() string {
	return n.name
}

// Parent returns the parent anchor, or nil for a root or detached node.
func (n *Node) Parent() Anchor {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// NewChild creates a named child node.
func (n *Node) NewChild(name string) Anchor {
	return n.AddChild(name)
}

// AddChild is NewChild with the concrete return type.
func (n *Node) AddChild(name string) *Node {
	child := NewNode(name)
	child.parent = n
	n.children = append(n.children, child)
	return child
}

// Children returns a copy of the node's children.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Detach removes the node from its parent.
func (n *Node) Detach() {
	if n.parent == nil {
		return
	}
	siblings := n.parent.children
	for i, c := range siblings {
		if c == n {
			n.parent.children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// Position returns the node's position in root space.
func (n *Node) Position() mgl64.Vec3 {
	pos := n.Local
	for p := n.parent; p != nil; p = p.parent {
		pos = p.Rotation.Rotate(pos).Add(p.Local)
	}
	return pos
}

// NodeTemplate materializes a child Node offset from the anchor. The node
// is parented under a *Node or *NodeHandle anchor and is a root otherwise.
type NodeTemplate struct {
	Offset   mgl64.Vec3
	Rotation mgl64.Quat
}

// Instantiate implements Template.
func (t NodeTemplate) Instantiate(anchor Anchor, name string) (Handle, error) {
	var n *Node
	switch a := anchor.(type) {
	case *Node:
		n = a.AddChild(name)
	case *NodeHandle:
		n = a.node.AddChild(name)
	default:
		n = NewNode(name)
	}
	n.Local = t.Offset
	if t.Rotation != (mgl64.Quat{}) {
		n.Rotation = t.Rotation
	}
	return &NodeHandle{node: n, anchor: anchor}, nil
}

// NodeHandle is the Handle produced by NodeTemplate.
type NodeHandle struct {
	node     *Node
	anchor   Anchor
	released bool
}

// Name implements Handle.
func (h *NodeHandle) Name() string { return h.node.name }

// Anchor implements Handle.
func (h *NodeHandle) Anchor() Anchor { return h.anchor }

// Parent implements Anchor, so sub-processors can anchor under the handle.
func (h *NodeHandle) Parent() Anchor { return h.node.Parent() }

// NewChild implements Anchor.
func (h *NodeHandle) NewChild(name string) Anchor { return h.node.NewChild(name) }

// Node returns the materialized node.
func (h *NodeHandle) Node() *Node { return h.node }

// Position implements Spatial.
func (h *NodeHandle) Position() mgl64.Vec3 { return h.node.Position() }

// Released reports whether Release has run.
func (h *NodeHandle) Released() bool { return h.released }

// Release implements Handle by detaching the node.
func (h *NodeHandle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	h.node.Detach()
	return nil
}
