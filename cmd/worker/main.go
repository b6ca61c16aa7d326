package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/edvin/warroom/internal/activity"
	"github.com/edvin/warroom/internal/config"
	"github.com/edvin/warroom/internal/logging"
	"github.com/edvin/warroom/internal/metrics"
	"github.com/edvin/warroom/internal/stack"
	"github.com/edvin/warroom/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(config.RoleWorker); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Delivery runs as its own retried activity, so the services built here
	// never dispatch.
	st, err := stack.Build(ctx, cfg, logger, stack.Options{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	defer st.Close()

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

	w := worker.New(tc, cfg.TaskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{&workflow.ErrorTypingInterceptor{}},
	})

	// Register activities
	responseActivities := activity.NewResponse(st.Scanner, st.Stores.Resources, st.Orchestrator, st.Gate, st.Dispatcher)
	w.RegisterActivity(responseActivities)

	// Register workflows
	w.RegisterWorkflow(workflow.IncidentResponseWorkflow)
	w.RegisterWorkflow(workflow.ReleaseApprovedActionsWorkflow)

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr, func(ctx context.Context) error {
			_, err := tc.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
			return err
		})
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", cfg.TaskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	// Errors for an already-existing schedule are ignored so that re-deploys
	// do not fail.
	if cfg.EnableAutoScan {
		registerScanSchedule(ctx, tc, cfg, logger)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

const scanScheduleID = "incident-scan-cron"

func registerScanSchedule(ctx context.Context, tc temporalclient.Client, cfg *config.Config, logger zerolog.Logger) {
	_, err := tc.ScheduleClient().Create(ctx, temporalclient.ScheduleOptions{
		ID: scanScheduleID,
		Spec: temporalclient.ScheduleSpec{
			Intervals: []temporalclient.ScheduleIntervalSpec{{Every: cfg.ScanInterval}},
		},
		Action: &temporalclient.ScheduleWorkflowAction{
			ID:        scanScheduleID,
			Workflow:  workflow.IncidentResponseWorkflow,
			Args:      []interface{}{workflow.RunParams{Scan: true}},
			TaskQueue: cfg.TaskQueue,
		},
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") || strings.Contains(err.Error(), "already registered") {
			logger.Info().Str("id", scanScheduleID).Msg("scan schedule already exists, skipping")
		} else {
			logger.Fatal().Err(err).Str("id", scanScheduleID).Msg("failed to create scan schedule")
		}
		return
	}
	logger.Info().Str("id", scanScheduleID).Dur("every", cfg.ScanInterval).Msg("created scan schedule")
}
