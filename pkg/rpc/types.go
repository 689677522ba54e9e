package rpc

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RawBlock is the subset of an eth_getBlockByNumber(h, true) response the scanner reads.
type RawBlock struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         string         `json:"hash"`
	Transactions []Tx           `json:"transactions"`
}

// Height returns the block number as a plain integer.
func (b *RawBlock) Height() uint64 {
	return uint64(b.Number)
}

// Tx is a full transaction object. To is empty for contract creations.
type Tx struct {
	Hash string `json:"hash"`
	From string `json:"from"`
	To   string `json:"to"`
}

// IsCreation reports whether the transaction deploys a contract.
func (t Tx) IsCreation() bool {
	return t.To == ""
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}
