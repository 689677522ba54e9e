package scan

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/watchmon/watchmon/pkg/metrics"
	"github.com/watchmon/watchmon/pkg/retry"
	"github.com/watchmon/watchmon/pkg/rpc"
)

// Fetcher retrieves single blocks, retrying rate-limited and transient failures.
type Fetcher struct {
	Client  rpc.Client
	Retry   retry.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// FetchBlock returns the block at height h, or nil when the node has no such block.
func (f *Fetcher) FetchBlock(ctx context.Context, h uint64) (*rpc.RawBlock, error) {
	cfg := f.Retry
	if cfg.Retryable == nil {
		cfg.Retryable = rpc.IsRetryable
	}
	onRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		f.Metrics.Retry()
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}

	var blk *rpc.RawBlock
	err := retry.WithBackoff(ctx, cfg, f.Logger, fmt.Sprintf("fetch block %d", h), func() error {
		b, err := f.Client.BlockByHeight(ctx, h)
		if err != nil {
			return err
		}
		blk = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blk, nil
}
