// Package pps provides a Processor / Profile / System runtime for
// tree-structured simulations.
//
// PPS is a lifecycle layer a host drives once per frame. It provides:
//   - Systems and Subsystems that deploy and track Processors
//   - Profiles binding each Processor to an externally materialized instance
//   - Cascading readiness from a System down to every Processor
//   - A three-phase tick: Fixed, Regular and Late
//   - Teardown that releases every materialized instance
//
// # Quick Start
//
// Define a kind and a system, then drive it:
//
//	lamp := pps.BindProcessor("Lamp", func(c pps.Container, p *LampProfile) *Lamp {
//	    return &Lamp{profile: p}
//	})
//
//	scope, err := pps.NewBuilder().
//	    Bundle(pps.NewBundle("lights").System(pps.Definition{
//	        Name:         "Lights",
//	        Processor:    lamp,
//	        Profile:      pps.BindProfile("Lamp", NewLampProfile),
//	        Template:     pps.NodeTemplate{},
//	        DeployOnInit: true,
//	    })).
//	    Logger(log).
//	    Init()
//	if err != nil {
//	    return err
//	}
//	defer scope.Close()
//
//	driver := pps.NewDriver(scope, cfg.Driver)
//	return driver.Run(ctx)
//
// # Behaviors
//
// A Behavior decides each regular or fixed tick whether to process:
//
//	type Lamp struct {
//	    profile *LampProfile
//	}
//
//	func (l *Lamp) ShouldProcess(*pps.Processor) bool { return l.profile.On }
//	func (l *Lamp) Process(*pps.Processor)            { l.profile.Heat++ }
//
// Optional interfaces add hooks:
//
//	FixedProcessor  process in the Fixed phase instead of Regular
//	LateProcessor   work in the Late phase
//	Starter         processing started
//	Stopper         processing ended
//	Readier         one-shot readiness
//	Disposer        cleanup before the instance is released
//
// # Subsystems
//
// Subsystems are attached during their parent's Setup and follow the
// parent's readiness:
//
//	type Weather struct {
//	    pps.Subsystem
//	}
//
//	var weather *Weather
//	def.Setup = func(c pps.Container) error {
//	    _, err := pps.Attach(c, &weather)
//	    return err
//	}
package pps

// Version is the PPS version.
const Version = "0.3.0"
