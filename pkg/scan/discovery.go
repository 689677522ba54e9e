package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/watchmon/watchmon/pkg/rpc"
)

const (
	// BlocksPerDay converts a day count into a block window. It assumes one
	// block per second and does not track the chain's real block time.
	BlocksPerDay = 86400
	// SampleSize is the number of consecutive blocks discovery inspects.
	SampleSize = 100
	// TopK bounds the ranked list returned by TopDapps.
	TopK = 10
)

// WindowForDays converts days into a block count.
func WindowForDays(days int) uint64 {
	if days < 0 {
		days = 0
	}
	return uint64(days) * BlocksPerDay
}

// windowStart returns head - window, clamped at genesis.
func windowStart(head, window uint64) uint64 {
	if window >= head {
		return 0
	}
	return head - window
}

// Discover samples SampleSize consecutive blocks starting window blocks behind
// the head and ranks destination addresses by transaction count. It is a
// sampling heuristic, not an audit of the whole window.
func (s *Scanner) Discover(ctx context.Context, window uint64) ([]DappSummary, error) {
	head, err := s.Client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get block number: %w", err)
	}
	start := windowStart(head, window)

	s.Logger.Info("Scanning blocks for dApp activity",
		zap.Uint64("start", start),
		zap.Uint64("head", head),
		zap.Int("sample", SampleSize),
		zap.Int("concurrency", s.concurrency()))

	began := time.Now()
	f := s.fetcher()
	blocks, err := Schedule(ctx, s.concurrency(), Heights(start, start+SampleSize), func(ctx context.Context, h uint64) (*rpc.RawBlock, error) {
		blk, err := f.FetchBlock(ctx, h)
		if err == nil {
			s.Metrics.BlockScanned("discovery")
		}
		return blk, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan blocks %d-%d: %w", start, start+SampleSize-1, err)
	}

	tally := NewTally()
	for _, blk := range blocks {
		Reduce(tally, blk)
	}

	s.Logger.Info("dApp discovery completed",
		zap.Int("addresses", tally.Len()),
		zap.Int("transactions", tally.Total()),
		zap.Duration("took", time.Since(began)))

	return tally.Ranked(), nil
}

// TopDapps returns the TopK most active destinations over a days-long window.
func (s *Scanner) TopDapps(ctx context.Context, days int) ([]DappSummary, error) {
	ranked, err := s.Discover(ctx, WindowForDays(days))
	if err != nil {
		return nil, err
	}
	if len(ranked) > TopK {
		ranked = ranked[:TopK]
	}
	return ranked, nil
}

// DappTransactions counts transactions sent to address over every block of the
// last days-long window, head included.
func (s *Scanner) DappTransactions(ctx context.Context, address string, days int) (int, error) {
	head, err := s.Client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get block number: %w", err)
	}
	return s.CountTransactions(ctx, address, windowStart(head, WindowForDays(days)), head+1)
}

// CountTransactions counts transactions sent to address in heights [from, to).
func (s *Scanner) CountTransactions(ctx context.Context, address string, from, to uint64) (int, error) {
	if !common.IsHexAddress(address) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	target := strings.ToLower(common.HexToAddress(address).Hex())

	s.Logger.Info("Counting dApp transactions",
		zap.String("address", target),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("concurrency", s.concurrency()))

	f := s.fetcher()
	counts, err := Schedule(ctx, s.concurrency(), Heights(from, to), func(ctx context.Context, h uint64) (int, error) {
		blk, err := f.FetchBlock(ctx, h)
		if err != nil {
			return 0, err
		}
		s.Metrics.BlockScanned("transactions")
		return ReduceFiltered(0, blk, target), nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan blocks %d-%d: %w", from, to, err)
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	return total, nil
}
