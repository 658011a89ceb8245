package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/oriumgames/pps"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the demo systems",
	Long: `Run the demo systems until interrupted, or for a fixed number of frames.

With --frames the driver is stepped without waiting, one frame interval
per step, which makes the run deterministic.`,
	RunE: runDemo,
}

var (
	runFrames    int    // Frames to step; 0 runs in real time
	runStatePath string // Overrides state.path
	runNoState   bool   // Skip restore and save
)

func init() {
	runCmd.Flags().IntVar(&runFrames, "frames", 0, "step this many frames and exit")
	runCmd.Flags().StringVar(&runStatePath, "state", "", "state file (overrides the config)")
	runCmd.Flags().BoolVar(&runNoState, "no-state", false, "neither restore nor save state")
	rootCmd.AddCommand(runCmd)
}

func loadConfig() (*pps.Config, error) {
	if configPath == "" {
		return pps.DefaultConfig(), nil
	}
	return pps.LoadConfig(configPath)
}

func runDemo(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runStatePath != "" {
		cfg.State.Path = runStatePath
	}

	log, err := pps.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	builder := pps.NewBuilder().
		Bundle(demoBundle()).
		Logger(log)

	if !runNoState && cfg.State.RestoreOnRun {
		snap, err := pps.LoadSnapshotFile(cfg.State.Path)
		if err != nil {
			return err
		}
		builder.Snapshot(snap)
	}

	scope, err := builder.Init()
	if err != nil {
		return err
	}
	defer func() {
		if !runNoState && cfg.State.SaveOnExit {
			err = multierr.Append(err, scope.Snapshot().SaveFile(cfg.State.Path))
		}
		err = multierr.Append(err, scope.Close())
	}()

	driver := pps.NewDriver(scope, cfg.Driver)

	if runFrames > 0 {
		interval := cfg.Driver.FrameInterval()
		for range runFrames {
			driver.Step(interval)
		}
		frame := driver.Frame()
		log.Info("frames stepped",
			zap.Uint64("frames", frame.Number),
			zap.Duration("elapsed", frame.Elapsed),
			zap.Int("instances", scope.Len()))
		fmt.Fprintf(cmd.OutOrStdout(), "%d frames, %s simulated, %d instances\n",
			frame.Number, frame.Elapsed, scope.Len())
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := driver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
