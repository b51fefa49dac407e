package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/render"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/runner"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/traffic"
)

type runOptions struct {
	episodes   int
	csvPath    string
	render     bool
	interval   time.Duration
	postgres   bool
	logEvents  bool
	stepEvents bool
}

func runCmd(configPath *string) *cobra.Command {
	var o runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play episodes with the configured policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEpisodes(ctx, *configPath, o)
		},
	}

	cmd.Flags().IntVarP(&o.episodes, "episodes", "n", 1, "number of episodes (0 runs until interrupted)")
	cmd.Flags().StringVar(&o.csvPath, "csv", "", "write per-episode metrics to this CSV file")
	cmd.Flags().BoolVar(&o.render, "render", false, "print the board after every step")
	cmd.Flags().DurationVar(&o.interval, "interval", 0, "delay between steps")
	cmd.Flags().BoolVar(&o.postgres, "postgres", false, "persist events and episodes to Postgres")
	cmd.Flags().BoolVar(&o.logEvents, "log", true, "write events to stdout as JSON lines")
	cmd.Flags().BoolVar(&o.stepEvents, "step-events", false, "emit an event for every step")
	return cmd
}

func runEpisodes(ctx context.Context, configPath string, o runOptions) error {
	a, err := newApp(ctx, configPath, o.postgres)
	if err != nil {
		return err
	}
	defer a.close()

	if o.logEvents {
		a.bus.SetOutput(os.Stdout)
	}
	if err := a.connectMQTT(); err != nil {
		return err
	}

	r, err := a.newRunner()
	if err != nil {
		return err
	}
	r.Interval = o.interval
	r.StepEvents = o.stepEvents
	if o.render {
		r.OnStep = func(v traffic.EnvironmentView, _ traffic.StepResult) {
			if err := render.Render(os.Stdout, v); err != nil {
				log.Printf("render failed: %v", err)
			}
		}
	}

	hostname, _ := os.Hostname()
	a.bus.Emit("info", "system.startup", "trafficsim run", map[string]interface{}{
		"hostname": hostname,
		"pid":      os.Getpid(),
		"run_id":   a.runID,
		"episodes": o.episodes,
	})

	results, runErr := r.Run(ctx, o.episodes)

	a.bus.Emit("info", "system.shutdown", "", map[string]interface{}{
		"episodes": len(results),
	})

	csvPath := o.csvPath
	if csvPath == "" {
		csvPath = a.cfg.Storage.MetricsCSV
	}
	if csvPath != "" {
		if err := writeCSV(csvPath, results); err != nil {
			return err
		}
	}

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}

func writeCSV(path string, results []runner.EpisodeResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	if err := runner.WriteMetricsCSV(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
