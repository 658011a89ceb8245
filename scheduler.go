package pps

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrDriverRunning is returned by Run when the driver is already running.
var ErrDriverRunning = errors.New("pps: driver already running")

// Driver ticks a Scope at a fixed-step cadence. Each frame runs the due
// tasks, then as many Fixed phases as the accumulated time allows (capped
// by MaxFixedSteps), then Regular, then Late.
//
// Step drives frames deterministically from the caller's goroutine; Run
// drives them from a ticker. All phases and tasks run on that one
// goroutine.
type Driver struct {
	scope *Scope
	cfg   DriverConfig
	log   *zap.Logger
	tasks *taskQueue

	// clock is the total time covered by frames, readable from any
	// goroutine for Schedule.
	clock       atomic.Int64
	accumulator time.Duration
	frame       Frame

	running  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewDriver creates a driver for scope. Zero fields of cfg take the
// values of DefaultConfig.
func NewDriver(scope *Scope, cfg DriverConfig) *Driver {
	def := DefaultConfig().Driver
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = def.FrameRate
	}
	if cfg.FixedStep <= 0 {
		cfg.FixedStep = def.FixedStep
	}
	if cfg.MaxFixedSteps <= 0 {
		cfg.MaxFixedSteps = def.MaxFixedSteps
	}
	return &Driver{
		scope:  scope,
		cfg:    cfg,
		log:    scope.Logger().Named("driver"),
		tasks:  newTaskQueue(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Config returns the effective configuration.
func (d *Driver) Config() DriverConfig {
	return d.cfg
}

// Frame returns the most recent frame.
func (d *Driver) Frame() Frame {
	return d.frame
}

// Pending returns the number of queued tasks.
func (d *Driver) Pending() int {
	return d.tasks.Len()
}

// Step runs one frame covering elapsed time and returns it. Negative
// durations count as zero.
func (d *Driver) Step(elapsed time.Duration) Frame {
	if elapsed < 0 {
		elapsed = 0
	}
	clock := time.Duration(d.clock.Load()) + elapsed
	d.clock.Store(int64(clock))

	d.runTasks(clock)

	fixed := d.cfg.FixedStep
	d.accumulator += elapsed
	steps := int(d.accumulator / fixed)
	if steps > d.cfg.MaxFixedSteps {
		dropped := steps - d.cfg.MaxFixedSteps
		d.accumulator -= time.Duration(dropped) * fixed
		steps = d.cfg.MaxFixedSteps
		d.log.Debug("fixed steps dropped", zap.Int("dropped", dropped), zap.Duration("elapsed", elapsed))
	}
	d.accumulator -= time.Duration(steps) * fixed

	d.frame = Frame{
		Number:     d.frame.Number + 1,
		Delta:      elapsed,
		FixedDelta: fixed,
		FixedSteps: steps,
		Elapsed:    clock,
	}
	d.scope.frame = d.frame

	for range steps {
		d.scope.Update(Fixed)
	}
	d.scope.Update(Regular)
	d.scope.Update(Late)
	return d.frame
}

// runTasks runs every task due at clock.
func (d *Driver) runTasks(clock time.Duration) {
	for _, task := range d.tasks.PopDue(clock) {
		if task.cancelled.Load() {
			continue
		}
		d.runTask(task)
	}
}

func (d *Driver) runTask(task *scheduledTask) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	task.fn()
}

// Run drives frames at the configured frame rate until ctx is done or
// Stop is called. Tasks queued with Exec between frames run as soon as
// they arrive. Run returns ctx.Err() when ctx ends it and nil after Stop.
func (d *Driver) Run(ctx context.Context) error {
	if d.running.Swap(true) {
		return ErrDriverRunning
	}
	defer close(d.doneCh)

	interval := d.cfg.FrameInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.log.Info("driver started",
		zap.Duration("frame", interval),
		zap.Duration("fixed_step", d.cfg.FixedStep))

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.log.Info("driver stopped", zap.Uint64("frames", d.frame.Number), zap.Error(ctx.Err()))
			return ctx.Err()

		case <-d.stopCh:
			d.log.Info("driver stopped", zap.Uint64("frames", d.frame.Number))
			return nil

		case now := <-ticker.C:
			d.Step(now.Sub(last))
			last = now

		case <-d.tasks.Notify():
			clock := time.Duration(d.clock.Load())
			if at, ok := d.tasks.Peek(); ok && at <= clock {
				d.runTasks(clock)
			}
		}
	}
}

// Stop ends Run, waits for it to return and drops the tasks still queued.
// It is safe to call from any goroutine other than the ticking one, and
// more than once.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	if d.running.Load() {
		<-d.doneCh
	}
	d.tasks.Clear()
}
