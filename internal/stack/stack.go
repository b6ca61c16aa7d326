// Package stack builds the services shared by the API and the worker from
// configuration.
package stack

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/edvin/warroom/internal/approval"
	"github.com/edvin/warroom/internal/archive"
	"github.com/edvin/warroom/internal/cache"
	"github.com/edvin/warroom/internal/config"
	"github.com/edvin/warroom/internal/core"
	"github.com/edvin/warroom/internal/db"
	"github.com/edvin/warroom/internal/dispatch"
	"github.com/edvin/warroom/internal/llm"
	"github.com/edvin/warroom/internal/metrics"
	"github.com/edvin/warroom/internal/orchestrator"
	"github.com/edvin/warroom/internal/pipeline"
	"github.com/edvin/warroom/internal/registry"
	"github.com/edvin/warroom/internal/scanner"
	"github.com/edvin/warroom/internal/scoring"
	"github.com/edvin/warroom/internal/source"
)

type Options struct {
	// Deliver lets the orchestrator and the gate dispatch released actions
	// themselves. The worker leaves it off and dispatches from an activity.
	Deliver bool
}

type Stack struct {
	Pool  *pgxpool.Pool
	Redis *cache.Redis

	Stores       *core.Services
	Registry     *registry.Registry
	Scanner      *scanner.Scanner
	Dispatcher   dispatch.Dispatcher
	Gate         *approval.Gate
	Orchestrator *orchestrator.Service
	Engine       *pipeline.Engine
}

// Build opens the database pool and the cache and wires every service.
// Without a database URL the stores fall back to defaults; without a Redis URL
// the cache is in process.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Stack, error) {
	st := &Stack{}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	var store core.DB
	if pool != nil {
		st.Pool = pool
		store = pool
		metrics.RegisterPgxPoolMetrics(pool)
	} else {
		logger.Warn().Msg("no DATABASE_URL, approvals are held in memory only")
	}

	var backend cache.Cache = cache.NewMemory()
	if cfg.RedisURL != "" {
		r, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("open redis: %w", err)
		}
		st.Redis = r
		backend = r
	}
	kv := cache.NewFailOpen(backend, logger)

	reg, err := registry.Load(cfg.RegistryFile)
	if err != nil {
		st.Close()
		return nil, err
	}
	st.Registry = reg

	var classifier llm.Classifier
	var advisor scoring.Advisor
	if cfg.LLMEnabled() {
		client := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
		classifier = client
		advisor = llm.NewStrategyAdvisor(client, reg)
	} else {
		logger.Warn().Msg("no LLM_API_KEY, using fallback strategies and demo analysis")
	}

	var searcher source.Searcher
	if cfg.SearchEnabled() {
		searcher = source.NewSearchClient(cfg.SearchBaseURL, cfg.SearchAPIKey)
	}

	st.Scanner = scanner.New(scanner.Config{
		Site: llm.Site{
			Name:     cfg.HospitalName,
			Lat:      cfg.HospitalLat,
			Lng:      cfg.HospitalLng,
			RadiusKm: cfg.ScanRadiusKm,
		},
		Address:      cfg.ScanAddress,
		Include:      cfg.ScanSources,
		MaxIncidents: cfg.MaxIncidentsPerScan,
	}, scanner.Deps{
		Searcher:   searcher,
		Classifier: classifier,
		Queries:    cache.NewQueryCache[[]source.Candidate](kv, cfg.QueryCacheTTL, logger),
		Dedup:      cache.NewDedupGate(kv, cfg.DedupTTL, logger),
		Registry:   reg,
	}, logger)

	st.Stores = core.NewServices(store, logger)

	var archiver archive.Archiver = archive.Noop{}
	if cfg.ArchiveBucket != "" {
		archiver = archive.NewS3Archiver(archive.S3Config{
			Endpoint:  cfg.ArchiveEndpoint,
			Region:    cfg.ArchiveRegion,
			Bucket:    cfg.ArchiveBucket,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
		})
	}

	if cfg.DispatchWebhookURL != "" {
		st.Dispatcher = dispatch.NewWebhook(cfg.DispatchWebhookURL, cfg.DispatchTemplate, st.Stores.Recorder(), logger)
	} else {
		st.Dispatcher = dispatch.NewLogOnly(st.Stores.Recorder(), logger)
	}

	var releaser dispatch.Dispatcher
	if opts.Deliver {
		releaser = st.Dispatcher
	}

	st.Gate = approval.NewGate(st.Stores.ApprovalStore(), releaser, archiver, logger)
	st.Orchestrator = orchestrator.NewService(orchestrator.Config{AlertTopN: cfg.AlertTopN},
		st.Stores.Resources, scoring.NewStrategist(advisor, logger), reg, st.Gate, releaser, logger)
	st.Engine = pipeline.NewEngine(st.Scanner, st.Stores.Resources, st.Orchestrator, logger)

	return st, nil
}

// Close releases the pool and the cache connection.
func (s *Stack) Close() {
	if s.Redis != nil {
		s.Redis.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
