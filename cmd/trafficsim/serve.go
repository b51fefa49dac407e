package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/api"
	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/runner"
)

func serveCmd(configPath *string) *cobra.Command {
	var (
		port     int
		postgres bool
		manual   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run episodes in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configPath, port, postgres, manual)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides network.api_port)")
	cmd.Flags().BoolVar(&postgres, "postgres", false, "persist events and episodes to Postgres")
	cmd.Flags().BoolVar(&manual, "manual", false, "do not run policies; step only through /control")
	return cmd
}

func serve(ctx context.Context, configPath string, port int, withPostgres, manual bool) error {
	a, err := newApp(ctx, configPath, withPostgres)
	if err != nil {
		return err
	}
	defer a.close()
	a.bus.SetOutput(os.Stdout)

	auth, err := api.LoadAuth(a.secrets)
	if err != nil {
		return err
	}
	opts := api.Options{Auth: auth, TLS: api.TLSFromEnv()}
	if a.store != nil {
		opts.History = a.store
	}
	srv := api.NewServer(a.session, a.bus, opts)

	ready := srv.Readiness()
	ready.SetPostgresState(a.store != nil, a.store == nil)
	if err := a.connectMQTT(); err != nil {
		log.Printf("mqtt unavailable: %v", err)
		ready.SetMQTTState(false, false)
	} else {
		ready.SetMQTTState(a.broker != nil && a.broker.IsConnected(), a.broker == nil)
	}

	var r *runner.Runner
	if !manual {
		if r, err = a.newRunner(); err != nil {
			return err
		}
	}

	if port == 0 {
		port = a.cfg.APIPort()
	}

	hostname, _ := os.Hostname()
	a.bus.Emit("info", "system.startup", "trafficsim serve", map[string]interface{}{
		"hostname": hostname,
		"pid":      os.Getpid(),
		"run_id":   a.runID,
		"port":     port,
		"auth":     auth.Enabled(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, port)
	})

	if manual {
		a.session.Reset()
	} else {
		r.Interval = time.Duration(a.cfg.Network.StepIntervalMS) * time.Millisecond
		r.StepEvents = true
		g.Go(func() error {
			_, err := r.Run(ctx, 0)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	ready.SetSimulationReady(true)

	err = g.Wait()
	a.bus.Emit("info", "system.shutdown", "", nil)
	return err
}
