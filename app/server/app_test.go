package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/watchmon/watchmon/pkg/config"
	"github.com/watchmon/watchmon/pkg/scan"
)

func TestNewScannerAppliesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxConcurrentRequests = 3
	cfg.MaxRetries = 5
	cfg.RetryBaseDelay = 250 * time.Millisecond

	s := NewScanner(&cfg, nil, zaptest.NewLogger(t), nil)
	assert.Equal(t, 3, s.Concurrency)
	assert.Equal(t, 5, s.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, s.Retry.BaseDelay)
	assert.Equal(t, time.Second, s.Retry.MaxJitter)
}

func TestPublishTopWithoutRedis(t *testing.T) {
	cfg := config.Default()
	app := NewApp(&cfg, scan.New(nil, zaptest.NewLogger(t), nil), zaptest.NewLogger(t), nil)

	assert.Nil(t, app.Latest.Load())
	top := []scan.DappSummary{{Address: "0xa", TransactionCount: 2}}
	app.PublishTop(context.Background(), 3, top)

	snap := app.Latest.Load()
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.Days)
	assert.Equal(t, top, snap.Dapps)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestNewRefresher(t *testing.T) {
	cfg := config.Default()
	app := NewApp(&cfg, scan.New(nil, zaptest.NewLogger(t), nil), zaptest.NewLogger(t), nil)

	c, err := NewRefresher(context.Background(), app, "*/15 * * * *", 7)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = NewRefresher(context.Background(), app, "every now and then", 7)
	require.ErrorContains(t, err, "invalid discovery cron")
}

func TestInitializeRequiresReachableNode(t *testing.T) {
	cfg := config.Default()
	cfg.RPCURL = "http://127.0.0.1:1"
	cfg.RPCTimeout = time.Second

	_, err := Initialize(context.Background(), &cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

// chainIDNode answers every JSON-RPC request with the same chain id.
func chainIDNode(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "0x279f"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInitializeRejectsBadCron(t *testing.T) {
	cfg := config.Default()
	cfg.RPCURL = chainIDNode(t).URL
	cfg.RedisEnabled = false
	cfg.DiscoveryCron = "every now and then"

	app, err := Initialize(context.Background(), &cfg, zaptest.NewLogger(t))
	require.ErrorContains(t, err, "invalid discovery cron")
	assert.Nil(t, app)
}

func TestInitializeWithReachableNode(t *testing.T) {
	cfg := config.Default()
	cfg.RPCURL = chainIDNode(t).URL
	cfg.RedisEnabled = false
	cfg.DiscoveryCron = ""

	app, err := Initialize(context.Background(), &cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.NotNil(t, app.Transport)
	assert.Nil(t, app.RedisClient)
	assert.Nil(t, app.Cron)
}
