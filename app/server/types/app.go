package types

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/watchmon/watchmon/app/server/tools"
	"github.com/watchmon/watchmon/pkg/config"
	"github.com/watchmon/watchmon/pkg/metrics"
	"github.com/watchmon/watchmon/pkg/redis"
	"github.com/watchmon/watchmon/pkg/rpc"
	"github.com/watchmon/watchmon/pkg/scan"
)

// TopSnapshot is the most recent top-dApps ranking.
type TopSnapshot struct {
	Days      int                `json:"days"`
	Dapps     []scan.DappSummary `json:"dapps"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type App struct {
	Config *config.Config

	// Transport is the shared node connection. Nil in tests that use a fake client.
	Transport *rpc.Transport
	Scanner   *scan.Scanner
	Registry  *tools.Registry
	Jobs      *tools.Jobs

	// RedisClient is nil when Redis is disabled or unreachable.
	RedisClient *redis.Client
	// Cron runs the periodic top-dApps refresh. Nil when DISCOVERY_CRON is empty.
	Cron *cron.Cron

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// AuthHash is the bcrypt hash of the static API token, if any.
	AuthHash  []byte
	JWTSecret []byte

	Latest atomic.Pointer[TopSnapshot]

	Logger *zap.Logger
	Server *http.Server
}

// PublishTop records a fresh ranking and fans it out to Redis subscribers.
func (a *App) PublishTop(ctx context.Context, days int, top []scan.DappSummary) {
	snap := &TopSnapshot{Days: days, Dapps: top, UpdatedAt: time.Now().UTC()}
	a.Latest.Store(snap)

	if a.RedisClient != nil {
		a.RedisClient.PublishJSON(ctx, redis.TopDappsChannel, redis.TopDappsStream, snap)
	}
}

// Start serves until ctx is cancelled, then shuts everything down.
func (a *App) Start(ctx context.Context) {
	if a.Cron != nil {
		a.Cron.Start()
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("Server stopped unexpectedly", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}

	_ = a.Server.Shutdown(shutdownCtx)

	a.Close()

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

// Close releases the Redis connection and the node transport. It is safe to
// call on a partially built App and more than once.
func (a *App) Close() {
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
		a.RedisClient = nil
	}
	if a.Transport != nil {
		a.Transport.Close()
	}
}
