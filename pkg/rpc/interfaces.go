package rpc

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Client captures the chain calls used by discovery and profiling.
// *Transport is the production implementation; tests supply in-memory chains.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByHeight(ctx context.Context, height uint64) (*RawBlock, error)
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	TransactionCount(ctx context.Context, addr common.Address) (uint64, error)
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
}

var _ Client = (*Transport)(nil)
