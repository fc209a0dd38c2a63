package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phistack/phistack/pkg/tracker"
	"github.com/phistack/phistack/server/internal/alerts"
	"github.com/phistack/phistack/server/internal/api"
	"github.com/phistack/phistack/server/internal/auth"
	"github.com/phistack/phistack/server/internal/config"
	"github.com/phistack/phistack/server/internal/store"
	"github.com/phistack/phistack/server/internal/trace"
	"github.com/phistack/phistack/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory; leave empty to disable")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("phistack-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"run_ttl", cfg.Server.Runs.TTL,
		"simulate_interval", cfg.Server.SimulateInterval,
		"traces", len(cfg.Server.Traces),
		"alert_rules", len(cfg.Server.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New(cfg.Server.Runs.TTL)
	go st.Run(ctx)

	eng := tracker.NewEngine(cfg.Server.Tracker.Params, cfg.Server.Tracker.Limits)
	alertEngine := alerts.New(cfg.Server.Alerts)
	traces := trace.NewRegistry(cfg.Server.Traces)

	hub := ws.New(st, cfg.Server.BroadcastInterval)
	go hub.Run(ctx)

	// Every run, whether from the live loop or the API, lands in the store,
	// the alert engine and the hub.
	publish := func(run *tracker.Run) {
		st.Put(run)
		alertEngine.Evaluate(run)
		hub.Publish(run)
	}

	if cfg.Server.SimulateInterval > 0 {
		go simulate(ctx, eng, cfg.Server.SimulateInterval, publish)
	}

	// Tracker defaults and limits hot-reload. Other settings need a restart.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			eng.Reconfigure(next.Server.Tracker.Params, next.Server.Tracker.Limits)
			slog.Info("tracker defaults reloaded",
				"baseline", next.Server.Tracker.Baseline,
				"qubits", next.Server.Tracker.Qubits,
				"timesteps", next.Server.Tracker.Timesteps,
				"decoherence_chance", next.Server.Tracker.DecoherenceChance,
			)
		})
		if err != nil {
			slog.Warn("config watcher stopped", "err", err)
		}
	}()

	requireKey := auth.APIKey(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", requireKey(api.New(st, eng, alertEngine, traces, api.WithPublisher(hub.Publish))))
	httpMux.Handle("/ws/stream", requireKey(hub))

	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := *uiDir + r.URL.Path
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, *uiDir+"/index.html")
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("phistack-server shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// simulate runs the engine's default parameters once immediately and then on
// every tick until ctx is cancelled.
func simulate(ctx context.Context, eng *tracker.Engine, interval time.Duration, publish func(*tracker.Run)) {
	tick := func() {
		run, err := eng.Run(eng.Defaults())
		if err != nil {
			slog.Error("live simulation failed", "err", err)
			return
		}
		publish(run)
		slog.Info("live simulation",
			"run", run.ID,
			"seed", run.Params.Seed,
			"mean_health_pct", run.Aggregate.MeanHealthPct,
			"state", run.Aggregate.State,
		)
	}

	tick()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tick()
		}
	}
}
