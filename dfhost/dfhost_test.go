package dfhost_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oriumgames/pps"
	"github.com/oriumgames/pps/dfhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldAnchor_Position(t *testing.T) {
	root := dfhost.NewAnchor(nil, "spawn", mgl64.Vec3{100, 64, -20})
	child, ok := root.NewChild("arena").(*dfhost.WorldAnchor)
	require.True(t, ok)
	child.Offset = mgl64.Vec3{5, 0, 5}
	grandchild := child.NewChild("pit").(*dfhost.WorldAnchor)

	assert.Equal(t, mgl64.Vec3{105, 64, -15}, child.Position())
	assert.Equal(t, mgl64.Vec3{105, 64, -15}, grandchild.Position())
	assert.Equal(t, pps.Anchor(root), child.Parent())
	assert.Nil(t, root.Parent())
	assert.Equal(t, "pit", grandchild.Name())
}

func TestNewSystem_AnchorsInWorld(t *testing.T) {
	sys := dfhost.NewSystem(nil, mgl64.Vec3{1, 2, 3}, pps.Definition{Name: "Mobs"})

	anchor, ok := sys.Anchor().(*dfhost.WorldAnchor)
	require.True(t, ok)
	assert.Equal(t, "Mobs", anchor.Name())
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, anchor.Position())
}

func TestEntityTemplate_RequiresType(t *testing.T) {
	_, err := dfhost.EntityTemplate{}.Instantiate(dfhost.NewAnchor(nil, "a", mgl64.Vec3{}), "mob")
	assert.Error(t, err)
}

func TestSubsystemAnchorsUnderWorldAnchor(t *testing.T) {
	sub := pps.NewSubsystem(pps.Definition{Name: "Wave"})
	sys := dfhost.NewSystem(nil, mgl64.Vec3{0, 70, 0}, pps.Definition{
		Name: "Arena",
		Setup: func(c pps.Container) error {
			_, err := pps.Attach(c, &sub)
			return err
		},
	})
	require.NoError(t, sys.Init())

	anchor, ok := sub.Anchor().(*dfhost.WorldAnchor)
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{0, 70, 0}, anchor.Position())
	assert.Nil(t, anchor.World())
}
