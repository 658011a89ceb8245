package pps_test

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oriumgames/pps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_PositionComposesParents(t *testing.T) {
	root := pps.NewNode("root")
	root.Local = mgl64.Vec3{10, 0, 0}
	root.Rotation = mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})

	child := root.AddChild("child")
	child.Local = mgl64.Vec3{1, 0, 0}

	got := child.Position()
	assert.True(t, got.ApproxEqualThreshold(mgl64.Vec3{10, 0, -1}, 1e-9), "got %v", got)
	assert.Equal(t, pps.Anchor(root), child.Parent())
	assert.Nil(t, root.Parent())
}

func TestNode_Detach(t *testing.T) {
	root := pps.NewNode("root")
	a := root.AddChild("a")
	b := root.AddChild("b")

	a.Detach()
	a.Detach()

	require.Len(t, root.Children(), 1)
	assert.Same(t, b, root.Children()[0])
	assert.Nil(t, a.Parent())
}

func TestNodeTemplate_InstantiateAndRelease(t *testing.T) {
	root := pps.NewNode("root")
	root.Local = mgl64.Vec3{0, 5, 0}

	h, err := pps.NodeTemplate{Offset: mgl64.Vec3{1, 0, 0}}.Instantiate(root, "lamp")
	require.NoError(t, err)

	nh := h.(*pps.NodeHandle)
	assert.Equal(t, "lamp", nh.Name())
	assert.Equal(t, pps.Anchor(root), nh.Anchor())
	assert.Equal(t, mgl64.Vec3{1, 5, 0}, nh.Position())
	assert.Len(t, root.Children(), 1)

	profile := pps.NewEmptyProfile(h)
	assert.Equal(t, mgl64.Vec3{1, 5, 0}, profile.Position())
	assert.Equal(t, "lamp", profile.Name())

	require.NoError(t, h.Release())
	require.NoError(t, h.Release())
	assert.True(t, nh.Released())
	assert.Empty(t, root.Children())
}

func TestNodeTemplate_UnderHandle(t *testing.T) {
	root := pps.NewNode("root")
	parent, err := pps.NodeTemplate{Offset: mgl64.Vec3{0, 1, 0}}.Instantiate(root, "parent")
	require.NoError(t, err)

	child, err := pps.NodeTemplate{Offset: mgl64.Vec3{0, 1, 0}}.Instantiate(parent.(pps.Anchor), "child")
	require.NoError(t, err)

	assert.Equal(t, mgl64.Vec3{0, 2, 0}, child.(pps.Spatial).Position())
}

func TestBaseProfile_WithoutHandle(t *testing.T) {
	profile := pps.NewEmptyProfile(nil)
	assert.Nil(t, profile.Handle())
	assert.Empty(t, profile.Name())
	assert.Nil(t, profile.Anchor())
	assert.Equal(t, mgl64.Vec3{}, profile.Position())
}
