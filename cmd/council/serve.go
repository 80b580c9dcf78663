package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/datacendia/council/internal/api"
	"github.com/datacendia/council/internal/monitor"
	"github.com/datacendia/council/internal/usecase"
)

var serveFlags struct {
	address string
	prewarm bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the council HTTP API until interrupted.

The availability monitor probes the model backend in the background and
keeps agent statuses current. Deliberations are stored and can be
streamed as newline-delimited JSON events.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.address, "address", "", "Listen address (overrides server.address)")
	serveCmd.Flags().BoolVar(&serveFlags.prewarm, "prewarm", false, "Load every agent model after the first probe")
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{storage: true}, func(a *app) error {
		ctx := cmd.Context()
		settings := a.cfg.Server
		if serveFlags.address != "" {
			settings.Address = serveFlags.address
		}

		if err := a.monitor.Start(ctx); err != nil {
			return err
		}
		defer a.monitor.Stop()

		if serveFlags.prewarm || a.cfg.Monitor.PreWarm {
			go a.prewarm(ctx)
		}
		go a.health.StartPeriodicCheck(ctx, a.cfg.Monitor.Interval)

		deps := api.Deps{
			Registry:   a.registry,
			ChiefID:    a.chiefID(),
			Council:    a.councilSession(),
			Sessions:   a.sessions,
			Records:    a.records,
			PreMortem:  usecase.NewPreMortem(a.gateway, a.registry, a.logger),
			GhostBoard: usecase.NewGhostBoard(a.gateway, a.registry, a.logger),
			Warmer:     a.monitor,
			Bus:        a.bus,
			Health:     a.health,
		}
		if a.cfg.Metrics.Enabled {
			deps.Metrics = a.metrics.Handler()
			deps.MetricsPath = a.cfg.Metrics.Path
		}

		server := api.NewServer(api.Settings{
			Address:          settings.Address,
			ReadTimeout:      settings.ReadTimeout,
			EventBufferSize:  settings.EventBufferSize,
			DefaultListLimit: settings.DefaultListLimit,
		}, deps, api.WithLogger(a.logger))

		if err := server.Start(ctx); err != nil {
			return err
		}
		if !a.flags.Quiet && !a.flags.JSON() {
			fmt.Fprintf(cmd.OutOrStdout(), "council API listening on http://%s\n", server.Addr())
		}

		<-ctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settings.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// prewarm waits for the first probe, then loads every online model.
func (a *app) prewarm(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, probed := a.monitor.LastProbe(); probed {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	results := a.monitor.PreWarm(ctx, func(p monitor.WarmProgress) {
		if p.Done && p.Err == nil {
			a.logger.Debug("model warmed", "model", p.Model, "index", p.Index+1, "total", p.Total)
		}
	})
	loaded := 0
	for _, r := range results {
		if r.OK() {
			loaded++
		}
	}
	a.logger.Info("prewarm finished", "loaded", loaded, "models", len(results))
}
