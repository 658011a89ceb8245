package pps_test

import (
	"errors"
	"testing"

	"github.com/oriumgames/pps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lampProfile struct {
	pps.BaseProfile
	Watts int
}

func newLampProfile(h pps.Handle) *lampProfile {
	return &lampProfile{BaseProfile: pps.NewBaseProfile(h), Watts: 60}
}

type lamp struct {
	container pps.Container
	profile   *lampProfile
}

func newLamp(c pps.Container, p *lampProfile) *lamp {
	return &lamp{container: c, profile: p}
}

func (*lamp) ShouldProcess(*pps.Processor) bool { return true }
func (*lamp) Process(*pps.Processor)            {}

type roomProfile struct {
	pps.BaseProfile
	container pps.Container
}

func newRoomProfile(c pps.Container, h pps.Handle) (*roomProfile, error) {
	return &roomProfile{BaseProfile: pps.NewBaseProfile(h), container: c}, nil
}

var (
	lampKind        = pps.BindProcessor("Lamp", newLamp)
	lampProfileKind = pps.BindProfile("Lamp", newLampProfile)
)

func TestDeploy_BindsKinds(t *testing.T) {
	sys := pps.NewSystem(pps.Definition{Name: "Lights"})
	tmpl := &fakeTemplate{}

	p, err := pps.Deploy(lampKind, lampProfileKind, sys, tmpl, sys.Anchor(), "lamp 1")
	require.NoError(t, err)

	assert.Equal(t, "lamp 1", p.Name())
	assert.Equal(t, "Lamp", p.Kind())
	assert.Equal(t, "Lamp", p.ProfileKind())
	assert.Same(t, sys, p.Container())

	l, ok := p.Behavior().(*lamp)
	require.True(t, ok)
	assert.Same(t, p.Profile(), l.profile)
	assert.Equal(t, 60, l.profile.Watts)

	require.Len(t, tmpl.handles, 1)
	assert.Same(t, tmpl.handles[0], p.Profile().Handle())
	assert.Equal(t, sys.Anchor(), tmpl.handles[0].Anchor())
}

func TestDeploy_ZeroProfileKindBuildsEmpty(t *testing.T) {
	sys := pps.NewSystem(pps.Definition{Name: "S"})
	p, err := pps.Deploy(recorderKind("Recorder", nil), pps.ProfileKind{}, sys, nil, sys.Anchor(), "p")
	require.NoError(t, err)

	assert.Equal(t, "Empty", p.ProfileKind())
	_, ok := p.Profile().(*pps.EmptyProfile)
	assert.True(t, ok)
	assert.Nil(t, p.Profile().Handle())
}

func TestDeploy_ProfileWithContainer(t *testing.T) {
	sys := pps.NewSystem(pps.Definition{Name: "Rooms"})
	kind := pps.BindProfile("Room", newRoomProfile)
	require.Nil(t, kind.New)
	require.NotNil(t, kind.NewWithContainer)

	p, err := pps.Deploy(recorderKind("Recorder", nil), kind, sys, nil, sys.Anchor(), "room")
	require.NoError(t, err)

	room, ok := pps.ProfileAs[*roomProfile](p)
	require.True(t, ok)
	assert.Same(t, sys, room.container)
}

func TestDeploy_SingleArgumentConstructorWins(t *testing.T) {
	var used string
	kind := pps.ProfileKind{
		Name: "Both",
		New: func(h pps.Handle) (pps.Profile, error) {
			used = "single"
			return pps.NewEmptyProfile(h), nil
		},
		NewWithContainer: func(_ pps.Container, h pps.Handle) (pps.Profile, error) {
			used = "container"
			return pps.NewEmptyProfile(h), nil
		},
	}
	sys := pps.NewSystem(pps.Definition{Name: "S"})

	_, err := pps.Deploy(recorderKind("Recorder", nil), kind, sys, nil, sys.Anchor(), "p")
	require.NoError(t, err)
	assert.Equal(t, "single", used)
}

func TestDeploy_ProfileMismatchReleasesHandle(t *testing.T) {
	sys := pps.NewSystem(pps.Definition{Name: "Lights"})
	tmpl := &fakeTemplate{}

	_, err := pps.Deploy(lampKind, pps.EmptyProfileKind, sys, tmpl, sys.Anchor(), "lamp")

	assert.ErrorIs(t, err, pps.ErrConstruction)
	require.Len(t, tmpl.handles, 1)
	assert.Equal(t, 1, tmpl.handles[0].releases)
}

func TestDeploy_InvalidConstructorShape(t *testing.T) {
	sys := pps.NewSystem(pps.Definition{Name: "S"})
	for name, ctor := range map[string]any{
		"not a func":     42,
		"wrong arity":    func(pps.Container) *lamp { return nil },
		"wrong result":   func(pps.Container, pps.Profile) int { return 0 },
		"bad second out": func(pps.Container, pps.Profile) (*lamp, int) { return nil, 0 },
		"bad parameter":  func(int, pps.Profile) *lamp { return nil },
	} {
		t.Run(name, func(t *testing.T) {
			kind := pps.BindProcessor("Bad", ctor)
			_, err := pps.Deploy(kind, pps.ProfileKind{}, sys, nil, sys.Anchor(), "bad")
			assert.ErrorIs(t, err, pps.ErrConstruction)
		})
	}
}

func TestDeploy_NilAndFailingConstructors(t *testing.T) {
	sys := pps.NewSystem(pps.Definition{Name: "S"})
	boom := errors.New("boom")

	t.Run("nil behavior", func(t *testing.T) {
		kind := pps.ProcessorKind{Name: "Nil", New: func(pps.Container, pps.Profile) (pps.Behavior, error) {
			return nil, nil
		}}
		_, err := pps.Deploy(kind, pps.ProfileKind{}, sys, nil, sys.Anchor(), "p")
		assert.ErrorIs(t, err, pps.ErrConstruction)
	})

	t.Run("typed nil from bound constructor", func(t *testing.T) {
		kind := pps.BindProcessor("NilLamp", func(pps.Container, pps.Profile) *lamp { return nil })
		_, err := pps.Deploy(kind, pps.ProfileKind{}, sys, nil, sys.Anchor(), "p")
		assert.ErrorIs(t, err, pps.ErrConstruction)
	})

	t.Run("profile error", func(t *testing.T) {
		tmpl := &fakeTemplate{}
		kind := pps.BindProfile("Failing", func(pps.Handle) (*lampProfile, error) { return nil, boom })
		_, err := pps.Deploy(lampKind, kind, sys, tmpl, sys.Anchor(), "p")
		assert.ErrorIs(t, err, pps.ErrConstruction)
		assert.ErrorIs(t, err, boom)
		require.Len(t, tmpl.handles, 1)
		assert.Equal(t, 1, tmpl.handles[0].releases)
	})

	t.Run("missing constructor", func(t *testing.T) {
		_, err := pps.Deploy(pps.ProcessorKind{Name: "Empty"}, pps.ProfileKind{}, sys, nil, sys.Anchor(), "p")
		assert.ErrorIs(t, err, pps.ErrConstruction)
	})
}

func TestDeploy_TemplateError(t *testing.T) {
	sys := pps.NewSystem(pps.Definition{Name: "S"})
	errSpawn := errors.New("spawn failed")

	_, err := pps.Deploy(lampKind, lampProfileKind, sys, &fakeTemplate{err: errSpawn}, sys.Anchor(), "p")

	assert.ErrorIs(t, err, errSpawn)
}

func TestRegistry(t *testing.T) {
	reg := pps.NewRegistry()
	require.NoError(t, reg.RegisterProcessor(lampKind))
	require.NoError(t, reg.RegisterProfile(lampProfileKind))

	assert.ErrorIs(t, reg.RegisterProcessor(lampKind), pps.ErrDuplicateKind)
	assert.ErrorIs(t, reg.RegisterProfile(pps.EmptyProfileKind), pps.ErrDuplicateKind)
	assert.ErrorIs(t, reg.RegisterProcessor(pps.ProcessorKind{Name: "NoCtor"}), pps.ErrConstruction)

	k, err := reg.Processor("Lamp")
	require.NoError(t, err)
	assert.Equal(t, "Lamp", k.Name)

	_, err = reg.Processor("Missing")
	assert.ErrorIs(t, err, pps.ErrUnknownKind)
	_, err = reg.Profile("Missing")
	assert.ErrorIs(t, err, pps.ErrUnknownKind)

	assert.Equal(t, []string{"Lamp"}, reg.ProcessorNames())
	assert.Equal(t, []string{"Empty", "Lamp"}, reg.ProfileNames())
}

func TestDeploy_TypedNilFromRawKinds(t *testing.T) {
	sys := pps.NewSystem(pps.Definition{Name: "S"})

	t.Run("behavior", func(t *testing.T) {
		tmpl := &fakeTemplate{}
		kind := pps.ProcessorKind{Name: "NilRecorder", New: func(pps.Container, pps.Profile) (pps.Behavior, error) {
			var b *recorder
			return b, nil
		}}

		_, err := sys.Deploy(pps.WithProcessorKind(kind), pps.WithTemplate(tmpl))

		assert.ErrorIs(t, err, pps.ErrConstruction)
		require.Len(t, tmpl.handles, 1)
		assert.Equal(t, 1, tmpl.handles[0].releases)
		assert.Empty(t, sys.Instances())
	})

	t.Run("profile", func(t *testing.T) {
		tmpl := &fakeTemplate{}
		kind := pps.ProfileKind{Name: "NilLamp", New: func(pps.Handle) (pps.Profile, error) {
			var p *lampProfile
			return p, nil
		}}

		_, err := pps.Deploy(recorderKind("Recorder", nil), kind, sys, tmpl, sys.Anchor(), "p")

		assert.ErrorIs(t, err, pps.ErrConstruction)
		require.Len(t, tmpl.handles, 1)
		assert.Equal(t, 1, tmpl.handles[0].releases)
	})
}
