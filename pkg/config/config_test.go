package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmon/watchmon/pkg/config"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"MONAD_TESTNET_RPC", "HTTP_PROXY", "HTTPS_PROXY", "MAX_CONCURRENT_REQUESTS",
		"MAX_RETRIES", "RETRY_BASE_DELAY", "RPC_TIMEOUT", "LOG_LEVEL", "SHOW_PROGRESS_BAR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadRequiresRPC(t *testing.T) {
	clearEnv(t)

	_, err := config.Load("")
	require.ErrorIs(t, err, config.ErrMissingRPC)
}

func TestLoadDefaultsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONAD_TESTNET_RPC", "https://testnet-rpc.example")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://testnet-rpc.example", cfg.RPCURL)
	assert.Equal(t, 8, cfg.MaxConcurrentRequests)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, "", cfg.Proxy())
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "watchmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rpc_url: https://from-file.example
https_proxy: http://proxy.internal:3128
max_concurrent_requests: 4
show_progress_bar: true
`), 0o600))

	t.Setenv("MAX_CONCURRENT_REQUESTS", "16")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://from-file.example", cfg.RPCURL)
	assert.Equal(t, 16, cfg.MaxConcurrentRequests)
	assert.True(t, cfg.ShowProgressBar)
	assert.Equal(t, "http://proxy.internal:3128", cfg.Proxy())
}

func TestProxyPrefersHTTP(t *testing.T) {
	cfg := config.Default()
	cfg.HTTPProxy = "http://a:1"
	cfg.HTTPSProxy = "http://b:2"
	assert.Equal(t, "http://a:1", cfg.Proxy())
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONAD_TESTNET_RPC", "https://testnet-rpc.example")

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
