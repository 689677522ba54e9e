package scan

import (
	"go.uber.org/zap"

	"github.com/watchmon/watchmon/pkg/metrics"
	"github.com/watchmon/watchmon/pkg/retry"
	"github.com/watchmon/watchmon/pkg/rpc"
)

// DefaultConcurrency is the number of block fetches allowed in flight per call.
const DefaultConcurrency = 8

// Scanner runs discovery, transaction counting and profiling against one chain.
// It holds no state between calls beyond its collaborators.
type Scanner struct {
	Client      rpc.Client
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Concurrency int
	Retry       retry.Config
}

// New returns a Scanner with the default fetch policy.
func New(client rpc.Client, logger *zap.Logger, m *metrics.Metrics) *Scanner {
	return &Scanner{
		Client:      client,
		Logger:      logger,
		Metrics:     m,
		Concurrency: DefaultConcurrency,
		Retry:       retry.DefaultConfig(),
	}
}

func (s *Scanner) fetcher() *Fetcher {
	return &Fetcher{Client: s.Client, Retry: s.Retry, Logger: s.Logger, Metrics: s.Metrics}
}

func (s *Scanner) concurrency() int {
	if s.Concurrency < 1 {
		return DefaultConcurrency
	}
	return s.Concurrency
}
