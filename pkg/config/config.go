package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/watchmon/watchmon/pkg/utils"
)

// ErrMissingRPC is returned when no RPC endpoint is configured.
var ErrMissingRPC = errors.New("MONAD_TESTNET_RPC is not set")

// Config holds every setting the services read at startup.
type Config struct {
	RPCURL     string `yaml:"rpc_url"`
	HTTPProxy  string `yaml:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy"`

	MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
	MaxRetries            int           `yaml:"max_retries"`
	RetryBaseDelay        time.Duration `yaml:"retry_base_delay"`
	RPCTimeout            time.Duration `yaml:"rpc_timeout"`
	RPCRPS                int           `yaml:"rpc_rps"`

	LogLevel        string `yaml:"log_level"`
	LogEncoding     string `yaml:"log_encoding"`
	ShowProgressBar bool   `yaml:"show_progress_bar"`

	Addr          string `yaml:"addr"`
	RedisEnabled  bool   `yaml:"redis_enabled"`
	DiscoveryCron string `yaml:"discovery_cron"`
	DiscoveryDays int    `yaml:"discovery_days"`

	// APIToken is a static bearer token, plain or bcrypt-hashed. JWTSecret
	// verifies HS256 bearer tokens. With neither set the tool surface is open.
	APIToken  string `yaml:"api_token"`
	JWTSecret string `yaml:"jwt_secret"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		MaxConcurrentRequests: 8,
		MaxRetries:            3,
		RetryBaseDelay:        time.Second,
		RPCTimeout:            15 * time.Second,
		LogLevel:              "info",
		LogEncoding:           "json",
		Addr:                  ":3001",
		DiscoveryDays:         7,
	}
}

// Load reads defaults, then the YAML file at path (skipped when path is empty),
// then the environment. The result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.RPCURL = utils.Env("MONAD_TESTNET_RPC", c.RPCURL)
	c.HTTPProxy = utils.Env("HTTP_PROXY", c.HTTPProxy)
	c.HTTPSProxy = utils.Env("HTTPS_PROXY", c.HTTPSProxy)

	c.MaxConcurrentRequests = utils.EnvInt("MAX_CONCURRENT_REQUESTS", c.MaxConcurrentRequests)
	c.MaxRetries = utils.EnvInt("MAX_RETRIES", c.MaxRetries)
	c.RetryBaseDelay = utils.EnvDuration("RETRY_BASE_DELAY", c.RetryBaseDelay)
	c.RPCTimeout = utils.EnvDuration("RPC_TIMEOUT", c.RPCTimeout)
	c.RPCRPS = utils.EnvInt("RPC_RPS", c.RPCRPS)

	c.LogLevel = utils.Env("LOG_LEVEL", c.LogLevel)
	c.LogEncoding = utils.Env("LOG_ENCODING", c.LogEncoding)
	c.ShowProgressBar = utils.EnvBool("SHOW_PROGRESS_BAR", c.ShowProgressBar)

	c.Addr = utils.Env("ADDR", c.Addr)
	c.RedisEnabled = utils.EnvBool("REDIS_ENABLED", c.RedisEnabled)
	c.DiscoveryCron = utils.Env("DISCOVERY_CRON", c.DiscoveryCron)
	c.DiscoveryDays = utils.EnvInt("DISCOVERY_DAYS", c.DiscoveryDays)

	c.APIToken = utils.Env("API_TOKEN", c.APIToken)
	c.JWTSecret = utils.Env("JWT_SECRET", c.JWTSecret)
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return ErrMissingRPC
	}
	if c.MaxConcurrentRequests < 1 {
		return fmt.Errorf("max_concurrent_requests must be positive, got %d", c.MaxConcurrentRequests)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be positive, got %d", c.MaxRetries)
	}
	return nil
}

// Proxy returns the proxy URL to route RPC traffic through, or "" for none.
func (c *Config) Proxy() string {
	return utils.FirstNonEmpty(c.HTTPProxy, c.HTTPSProxy)
}
