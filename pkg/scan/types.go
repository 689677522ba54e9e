package scan

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// ErrInvalidAddress is returned for input that is not a 20-byte hex address.
var ErrInvalidAddress = errors.New("invalid address")

// DappSummary is one entry of a ranked discovery result.
type DappSummary struct {
	Address          string `json:"address"`
	TransactionCount int    `json:"transaction_count"`
}

// DappDetail is the profile of a single contract. Pointer fields stay nil when
// the corresponding lookup found nothing or failed.
type DappDetail struct {
	Address           string   `json:"address"`
	Name              *string  `json:"name"`
	Description       *string  `json:"description"`
	ContractCode      *string  `json:"contract_code"`
	IsVerified        bool     `json:"is_verified"`
	Creator           *string  `json:"creator"`
	CreationBlock     *uint64  `json:"creation_block"`
	CreationTx        *string  `json:"creation_tx"`
	TotalTransactions uint64   `json:"total_transactions"`
	LastActive        *uint64  `json:"last_active"`
	Interfaces        []string `json:"interfaces"`
}

// NetworkInfo describes the chain the transport is connected to.
type NetworkInfo struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	GasPrice    GasPrice `json:"gas_price"`
}

// GasPrice is the suggested gas price in wei, gwei and whole native tokens.
type GasPrice struct {
	Wei    *big.Int        `json:"wei"`
	Gwei   decimal.Decimal `json:"gwei"`
	Native decimal.Decimal `json:"tmon"`
}
