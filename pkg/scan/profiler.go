package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/watchmon/watchmon/pkg/rpc"
)

const (
	// SearchWindow bounds the forward creation search.
	SearchWindow = 1_000_000
	// LastActiveWindow bounds the backward last-active search.
	LastActiveWindow = 1000
)

// blockSource fetches blocks for a single profile, remembering the most recent
// ones so the last-active search does not refetch what the creation search read.
type blockSource struct {
	fetcher *Fetcher
	cache   *lru.Cache
}

func newBlockSource(f *Fetcher) *blockSource {
	cache, _ := lru.New(LastActiveWindow)
	return &blockSource{fetcher: f, cache: cache}
}

func (b *blockSource) block(ctx context.Context, h uint64) (*rpc.RawBlock, error) {
	if v, ok := b.cache.Get(h); ok {
		return v.(*rpc.RawBlock), nil
	}
	blk, err := b.fetcher.FetchBlock(ctx, h)
	if err != nil {
		return nil, err
	}
	b.cache.Add(h, blk)
	return blk, nil
}

// findTx returns the first transaction in blk sent to target (lower-cased).
func findTx(blk *rpc.RawBlock, target string) (rpc.Tx, bool) {
	if blk == nil {
		return rpc.Tx{}, false
	}
	for _, tx := range blk.Transactions {
		if !tx.IsCreation() && strings.ToLower(tx.To) == target {
			return tx, true
		}
	}
	return rpc.Tx{}, false
}

// Profile builds a DappDetail for address. Only malformed input is an error:
// every lookup after normalization is best-effort, and a failed lookup leaves
// its field at the default value.
//
// The creation search reads up to SearchWindow blocks one at a time and
// dominates the cost; callers should treat Profile as long-running.
func (s *Scanner) Profile(ctx context.Context, address string) (*DappDetail, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	addr := common.HexToAddress(address)
	target := strings.ToLower(addr.Hex())

	info := &DappDetail{
		Address:    addr.Hex(),
		Interfaces: []string{},
	}
	logger := s.Logger.With(zap.String("address", info.Address))
	src := newBlockSource(s.fetcher())

	code, err := s.Client.CodeAt(ctx, addr)
	if err != nil {
		s.stepFailed(logger, "contract_code", err)
	} else if len(code) > 0 {
		hexCode := hexutil.Encode(code)
		info.ContractCode = &hexCode
		info.IsVerified = true
	}

	head, headErr := s.Client.BlockNumber(ctx)
	if headErr != nil {
		s.stepFailed(logger, "block_number", headErr)
	}

	if headErr == nil {
		if err := s.findCreation(ctx, src, info, target, head); err != nil {
			s.stepFailed(logger, "creation", err)
		}
	}

	if n, err := s.Client.TransactionCount(ctx, addr); err != nil {
		s.stepFailed(logger, "transaction_count", err)
	} else {
		info.TotalTransactions = n
	}

	if headErr == nil {
		if err := s.findLastActive(ctx, src, info, target, head); err != nil {
			s.stepFailed(logger, "last_active", err)
		}
	}

	if info.ContractCode != nil {
		info.Interfaces = s.probeInterfaces(ctx, addr)
	}

	s.Metrics.ProfileBuilt()
	logger.Info("dApp profile built",
		zap.Bool("is_verified", info.IsVerified),
		zap.Bool("creation_found", info.CreationBlock != nil),
		zap.Bool("last_active_found", info.LastActive != nil),
		zap.Strings("interfaces", info.Interfaces))

	return info, nil
}

func (s *Scanner) stepFailed(logger *zap.Logger, step string, err error) {
	s.Metrics.ProbeFailed(step)
	logger.Warn("Profile step failed", zap.String("step", step), zap.Error(err))
}

// findCreation scans forward from max(0, head-SearchWindow) to head and records
// the first transaction sent to target.
func (s *Scanner) findCreation(ctx context.Context, src *blockSource, info *DappDetail, target string, head uint64) error {
	start := windowStart(head, SearchWindow)
	total := int(head - start + 1)
	progress := progressFrom(ctx)

	for h := start; h <= head; h++ {
		blk, err := src.block(ctx, h)
		if err != nil {
			return fmt.Errorf("block %d: %w", h, err)
		}
		s.Metrics.BlockScanned("creation")
		if progress != nil {
			progress(int(h-start+1), total)
		}
		if tx, ok := findTx(blk, target); ok {
			creationBlock := h
			creationTx := tx.Hash
			creator := common.HexToAddress(tx.From).Hex()
			info.CreationBlock = &creationBlock
			info.CreationTx = &creationTx
			info.Creator = &creator
			return nil
		}
	}
	return nil
}

// findLastActive scans backward from head down to, but not including,
// max(0, head-LastActiveWindow) and records the first block holding a
// transaction sent to target.
func (s *Scanner) findLastActive(ctx context.Context, src *blockSource, info *DappDetail, target string, head uint64) error {
	floor := windowStart(head, LastActiveWindow)

	for h := head; h > floor; h-- {
		blk, err := src.block(ctx, h)
		if err != nil {
			return fmt.Errorf("block %d: %w", h, err)
		}
		s.Metrics.BlockScanned("last_active")
		if _, ok := findTx(blk, target); ok {
			last := h
			info.LastActive = &last
			return nil
		}
	}
	return nil
}
