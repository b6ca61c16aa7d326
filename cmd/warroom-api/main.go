package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	temporalclient "go.temporal.io/sdk/client"
	"gopkg.in/yaml.v3"

	"github.com/edvin/warroom/internal/api"
	"github.com/edvin/warroom/internal/api/handler"
	"github.com/edvin/warroom/internal/config"
	"github.com/edvin/warroom/internal/core"
	"github.com/edvin/warroom/internal/db"
	"github.com/edvin/warroom/internal/logging"
	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/scheduler"
	"github.com/edvin/warroom/internal/stack"
	"github.com/edvin/warroom/internal/workflow"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "record-resources" {
		recordResources(os.Args[2:])
		return
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "", "Migration files directory (default: embedded migrations)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(config.RoleAPI); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := stack.Build(ctx, cfg, logger, stack.Options{Deliver: true})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	defer st.Close()

	checks := map[string]api.Pinger{}
	if st.Pool != nil {
		checks["database"] = st.Pool
	}
	if st.Redis != nil {
		checks["cache"] = st.Redis
	}

	var gate handler.Gate = st.Gate
	if cfg.ReleaseViaTemporal {
		tlsConfig, err := cfg.TemporalTLS()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
		}
		dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress}
		if tlsConfig != nil {
			dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
			logger.Info().Msg("temporal mTLS enabled")
		}
		tc, err := temporalclient.Dial(dialOpts)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to temporal")
		}
		defer tc.Close()

		gate = workflow.NewReleaseGate(st.Gate, tc, cfg.TaskQueue)
		checks["temporal"] = api.TemporalPinger{Client: tc}
		logger.Info().Str("taskQueue", cfg.TaskQueue).Msg("approvals released through temporal")
	}

	loop := scheduler.New(st.Engine, cfg.ScanInterval, logger)
	if cfg.EnableAutoScan {
		if err := loop.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start scan loop")
		}
	}

	srv := api.NewServer(logger, api.Services{
		Runner:       st.Engine,
		Orchestrator: st.Orchestrator,
		Resources:    st.Stores.Resources,
		Gate:         gate,
		Scanner:      st.Scanner,
		Loop:         loop,
	}, checks)

	// A workflow run can wait on search and the provider for every incident.
	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting warroom API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	if err := loop.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("scan loop did not stop cleanly")
	}
}

type resourceLevel struct {
	Type           string   `yaml:"type"`
	Current        float64  `yaml:"current"`
	Capacity       float64  `yaml:"capacity"`
	HoursRemaining *float64 `yaml:"hours_remaining"`
}

// recordResources stores a resource snapshot read from a YAML file.
func recordResources(args []string) {
	fs := flag.NewFlagSet("record-resources", flag.ExitOnError)
	file := fs.String("file", "", "YAML file with the resource levels (required)")
	fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "error: --file is required")
		fmt.Fprintln(os.Stderr, "usage: warroom-api record-resources --file <levels.yaml>")
		os.Exit(1)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var levels []resourceLevel
	if err := yaml.Unmarshal(data, &levels); err != nil {
		fmt.Fprintf(os.Stderr, "error: parse %s: %v\n", *file, err)
		os.Exit(1)
	}
	snap := make([]model.ResourceStatus, len(levels))
	for i, l := range levels {
		snap[i] = model.ResourceStatus{
			ResourceType:   l.Type,
			CurrentLevel:   l.Current,
			Capacity:       l.Capacity,
			HoursRemaining: l.HoursRemaining,
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	if pool == nil {
		fmt.Fprintln(os.Stderr, "error: DATABASE_URL is not set")
		os.Exit(1)
	}
	defer pool.Close()

	svc := core.NewResourceService(pool, logging.NewLogger(cfg))
	if err := svc.Record(ctx, snap); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to record resources: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Recorded %d resource levels.\n", len(snap))
}
