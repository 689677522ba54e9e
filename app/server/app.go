package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/watchmon/watchmon/app/server/tools"
	"github.com/watchmon/watchmon/app/server/types"
	"github.com/watchmon/watchmon/pkg/config"
	"github.com/watchmon/watchmon/pkg/metrics"
	"github.com/watchmon/watchmon/pkg/redis"
	"github.com/watchmon/watchmon/pkg/retry"
	"github.com/watchmon/watchmon/pkg/rpc"
	"github.com/watchmon/watchmon/pkg/scan"
	"github.com/watchmon/watchmon/pkg/utils"
)

// Initialize connects to the node and builds the application. The node must
// answer before anything else is set up; Redis is optional.
func Initialize(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*types.App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	transport, err := Connect(ctx, cfg, logger, m)
	if err != nil {
		return nil, err
	}

	app := NewApp(cfg, NewScanner(cfg, transport, logger, m), logger, m)
	app.Transport = transport
	app.Gatherer = reg

	if cfg.APIToken != "" {
		hash, err := utils.HashOrRead(cfg.APIToken)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("hash api token: %w", err)
		}
		app.AuthHash = hash
	}

	if cfg.RedisEnabled {
		redisClient, err := redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - top dApps updates will not be published",
				zap.Error(err))
		} else {
			app.RedisClient = redisClient
			logger.Info("Redis client initialized for top dApps updates")
		}
	} else {
		logger.Info("Redis disabled - top dApps updates will not be published")
	}

	if cfg.DiscoveryCron != "" {
		c, err := NewRefresher(ctx, app, cfg.DiscoveryCron, cfg.DiscoveryDays)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Cron = c
	}

	return app, nil
}

// Connect opens the shared node transport described by cfg.
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*rpc.Transport, error) {
	return rpc.Connect(ctx, rpc.Opts{
		Endpoint: cfg.RPCURL,
		Proxy:    cfg.Proxy(),
		Timeout:  cfg.RPCTimeout,
		RPS:      cfg.RPCRPS,
		MaxConns: cfg.MaxConcurrentRequests,
		Metrics:  m,
	}, logger)
}

// NewScanner builds the scan engine with the configured fetch policy.
func NewScanner(cfg *config.Config, client rpc.Client, logger *zap.Logger, m *metrics.Metrics) *scan.Scanner {
	s := scan.New(client, logger, m)
	s.Concurrency = cfg.MaxConcurrentRequests
	s.Retry = retry.DefaultConfig()
	s.Retry.MaxRetries = cfg.MaxRetries
	s.Retry.BaseDelay = cfg.RetryBaseDelay
	return s
}

// NewApp wires the tool registry and job tracking around an engine.
func NewApp(cfg *config.Config, engine *scan.Scanner, logger *zap.Logger, m *metrics.Metrics) *types.App {
	jobs := tools.NewJobs()
	app := &types.App{
		Config:    cfg,
		Scanner:   engine,
		Jobs:      jobs,
		Registry:  tools.NewRegistry(engine, logger, m, jobs),
		Metrics:   m,
		Gatherer:  prometheus.NewRegistry(),
		JWTSecret: []byte(cfg.JWTSecret),
		Logger:    logger,
	}
	app.Registry.OnTopDapps(app.PublishTop)
	return app
}

// NewRefresher schedules a periodic get_top_dapps call on schedule. Each run goes
// through the registry, so it is tracked as a job and published like any other call.
func NewRefresher(ctx context.Context, app *types.App, schedule string, days int) (*cron.Cron, error) {
	args, err := json.Marshal(map[string]int{"days": days})
	if err != nil {
		return nil, fmt.Errorf("encode refresh arguments: %w", err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err = c.AddFunc(schedule, func() {
		if _, err := app.Registry.Call(ctx, "get_top_dapps", args); err != nil {
			app.Logger.Warn("Scheduled top dApps refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid discovery cron %q: %w", schedule, err)
	}

	app.Logger.Info("Scheduled top dApps refresh", zap.String("cron", schedule), zap.Int("days", days))
	return c, nil
}
