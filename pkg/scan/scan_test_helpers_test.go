package scan_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap/zaptest"

	"github.com/watchmon/watchmon/pkg/retry"
	"github.com/watchmon/watchmon/pkg/rpc"
	"github.com/watchmon/watchmon/pkg/scan"
)

var errNotFound = errors.New("not found")

// fakeChain is an in-memory rpc.Client.
type fakeChain struct {
	head     uint64
	blocks   map[uint64]*rpc.RawBlock
	code     []byte
	txCount  uint64
	supports map[string]bool

	headErr  error
	codeErr  error
	countErr error
	callErr  error
	blockErr func(h uint64) error
	delay    time.Duration

	mu        sync.Mutex
	requested map[uint64]int

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newFakeChain(head uint64) *fakeChain {
	return &fakeChain{
		head:      head,
		blocks:    map[uint64]*rpc.RawBlock{},
		supports:  map[string]bool{},
		requested: map[uint64]int{},
	}
}

// addTx appends a transaction to the block at height h.
func (f *fakeChain) addTx(h uint64, from, to, hash string) {
	blk, ok := f.blocks[h]
	if !ok {
		blk = &rpc.RawBlock{}
		f.blocks[h] = blk
	}
	blk.Transactions = append(blk.Transactions, rpc.Tx{Hash: hash, From: from, To: to})
}

func (f *fakeChain) timesRequested(h uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requested[h]
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fakeChain) BlockByHeight(ctx context.Context, h uint64) (*rpc.RawBlock, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		m := f.maxInflight.Load()
		if n <= m || f.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.requested[h]++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.blockErr != nil {
		if err := f.blockErr(h); err != nil {
			return nil, err
		}
	}
	if h > f.head {
		return nil, nil
	}
	if blk, ok := f.blocks[h]; ok {
		return blk, nil
	}
	return &rpc.RawBlock{}, nil
}

func (f *fakeChain) CodeAt(context.Context, common.Address) ([]byte, error) {
	return f.code, f.codeErr
}

func (f *fakeChain) TransactionCount(context.Context, common.Address) (uint64, error) {
	return f.txCount, f.countErr
}

func (f *fakeChain) Call(_ context.Context, _ common.Address, data []byte) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	if len(data) != 36 {
		return nil, errNotFound
	}
	id := common.Bytes2Hex(data[4:8])
	supported, ok := f.supports[id]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	out := make([]byte, 32)
	if supported {
		out[31] = 1
	}
	return out, nil
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(10143), nil
}

func (f *fakeChain) GasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(52_500_000_000), nil
}

// newTestScanner returns a scanner whose retries never sleep.
func newTestScanner(t *testing.T, client rpc.Client) *scan.Scanner {
	s := scan.New(client, zaptest.NewLogger(t), nil)
	s.Retry = retry.Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxJitter:  time.Second,
		Jitter:     func() float64 { return 0 },
		Sleep:      func(context.Context, time.Duration) error { return nil },
	}
	return s
}
