package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oriumgames/pps"
	"go.uber.org/zap"
)

// BeaconProfile is the charge state of a beacon.
type BeaconProfile struct {
	pps.BaseProfile
	Charge   float64
	Capacity float64
}

// NewBeaconProfile binds a beacon profile to h.
func NewBeaconProfile(h pps.Handle) *BeaconProfile {
	return &BeaconProfile{BaseProfile: pps.NewBaseProfile(h), Capacity: 10}
}

// Beacon charges on the fixed step until full and then idles.
type Beacon struct {
	profile *BeaconProfile
	log     *zap.Logger
}

// NewBeacon is bound as the Beacon processor kind.
func NewBeacon(c pps.Container, p *BeaconProfile) *Beacon {
	return &Beacon{profile: p, log: c.Logger()}
}

func (*Beacon) ProcessOnFixedUpdate() bool { return true }

func (b *Beacon) ShouldProcess(*pps.Processor) bool {
	return b.profile.Charge < b.profile.Capacity
}

func (b *Beacon) Process(*pps.Processor) {
	b.profile.Charge = math.Min(b.profile.Capacity, b.profile.Charge+0.5)
}

func (b *Beacon) OnProcessingEnd(p *pps.Processor) {
	b.log.Info("beacon charged", zap.String("beacon", p.Name()), zap.Float64("charge", b.profile.Charge))
}

// OnReady lights a spark next to beacons that have none yet, for example
// after a restore.
func (b *Beacon) OnReady(p *pps.Processor) {
	if len(p.SubProcessors()) > 0 {
		return
	}
	if _, err := p.DeploySub(pps.WithProcessorKind(sparkKind), pps.WithProfileKind(pps.EmptyProfileKind)); err != nil {
		b.log.Warn("light spark", zap.String("beacon", p.Name()), zap.Error(err))
	}
}

// Spark flickers on every other regular tick.
type Spark struct {
	ticks int
}

func (s *Spark) ShouldProcess(*pps.Processor) bool {
	s.ticks++
	return s.ticks%2 == 0
}

func (*Spark) Process(*pps.Processor) {}

// Orbiter circles its anchor in the horizontal plane.
type Orbiter struct {
	profile *pps.EmptyProfile
	log     *zap.Logger
	angle   float64
}

// NewOrbiter is bound as the Orbiter processor kind.
func NewOrbiter(c pps.Container, p *pps.EmptyProfile) (*Orbiter, error) {
	return &Orbiter{profile: p, log: c.Logger()}, nil
}

func (*Orbiter) ShouldProcess(*pps.Processor) bool { return true }

func (o *Orbiter) Process(*pps.Processor) {
	h, ok := o.profile.Handle().(*pps.NodeHandle)
	if !ok {
		return
	}
	o.angle += math.Pi / 60
	radius := h.Node().Local.Len()
	if radius == 0 {
		radius = 1
	}
	rot := mgl64.QuatRotate(o.angle, mgl64.Vec3{0, 1, 0})
	h.Node().Local = rot.Rotate(mgl64.Vec3{radius, 0, 0})
}

func (o *Orbiter) LateProcess(p *pps.Processor) {
	if ce := o.log.Check(zap.DebugLevel, "orbiter moved"); ce != nil {
		pos := o.profile.Position()
		ce.Write(zap.String("orbiter", p.Name()), zap.Float64s("position", pos[:]))
	}
}

// Orbiters is a subsystem of the beacon system.
type Orbiters struct {
	pps.Subsystem
}

func (*Orbiters) Define() pps.Definition {
	return pps.Definition{
		Name:         "Orbiters",
		Processor:    orbiterKind,
		Template:     pps.NodeTemplate{Offset: mgl64.Vec3{3, 0, 0}},
		DeployOnInit: true,
	}
}

var (
	beaconKind        = pps.BindProcessor("Beacon", NewBeacon)
	beaconProfileKind = pps.BindProfile("Beacon", NewBeaconProfile)
	orbiterKind       = pps.BindProcessor("Orbiter", NewOrbiter)
	sparkKind         = pps.ProcessorKind{
		Name: "Spark",
		New: func(pps.Container, pps.Profile) (pps.Behavior, error) {
			return &Spark{}, nil
		},
	}
)

func demoBundle() *pps.Bundle {
	return pps.NewBundle("demo").
		Processor(sparkKind, orbiterKind).
		System(pps.Definition{
			Name:         "Beacons",
			Processor:    beaconKind,
			Profile:      beaconProfileKind,
			Template:     pps.NodeTemplate{Offset: mgl64.Vec3{0, 2, 0}},
			DeployOnInit: true,
			Setup: func(c pps.Container) error {
				var orbiters *Orbiters
				_, err := pps.Attach(c, &orbiters)
				return err
			},
		})
}
