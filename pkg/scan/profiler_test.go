package scan_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmon/watchmon/pkg/scan"
)

const (
	contractAddr = "0x5fbdb2315678afecb367f032d93f642f64180aa3"
	deployer     = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
)

func TestProfileRejectsMalformedAddress(t *testing.T) {
	s := newTestScanner(t, newFakeChain(10))
	info, err := s.Profile(context.Background(), "0x1234")
	require.ErrorIs(t, err, scan.ErrInvalidAddress)
	assert.Nil(t, info)
}

func TestProfileWithoutCode(t *testing.T) {
	chain := newFakeChain(20)
	chain.supports["01ffc9a7"] = true

	s := newTestScanner(t, chain)
	info, err := s.Profile(context.Background(), contractAddr)
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(contractAddr).Hex(), info.Address)
	assert.False(t, info.IsVerified)
	assert.Nil(t, info.ContractCode)
	assert.Nil(t, info.Name)
	assert.Nil(t, info.Description)
	assert.Nil(t, info.CreationBlock)
	assert.Nil(t, info.CreationTx)
	assert.Nil(t, info.Creator)
	assert.Nil(t, info.LastActive)
	assert.NotNil(t, info.Interfaces)
	assert.Empty(t, info.Interfaces, "accounts without code are never probed")
}

func TestProfileFindsCreationAndLastActive(t *testing.T) {
	chain := newFakeChain(2000)
	chain.code = []byte{0x60, 0x80, 0x60, 0x40}
	chain.txCount = 42
	chain.addTx(10, deployer, contractAddr, "0xcreate")
	chain.addTx(500, deployer, contractAddr, "0xmiddle")
	chain.addTx(1990, deployer, "0x5FbDB2315678afecb367f032d93F642f64180aa3", "0xlatest")
	chain.addTx(1995, deployer, "0x0000000000000000000000000000000000000001", "0xother")
	chain.supports["80ac58cd"] = true
	chain.supports["36372b07"] = false
	chain.supports["01ffc9a7"] = true

	s := newTestScanner(t, chain)
	info, err := s.Profile(context.Background(), contractAddr)
	require.NoError(t, err)

	assert.True(t, info.IsVerified)
	require.NotNil(t, info.ContractCode)
	assert.Equal(t, "0x60806040", *info.ContractCode)

	require.NotNil(t, info.CreationBlock)
	assert.Equal(t, uint64(10), *info.CreationBlock)
	require.NotNil(t, info.CreationTx)
	assert.Equal(t, "0xcreate", *info.CreationTx)
	require.NotNil(t, info.Creator)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", *info.Creator)

	assert.Equal(t, uint64(42), info.TotalTransactions)

	require.NotNil(t, info.LastActive)
	assert.Equal(t, uint64(1990), *info.LastActive)

	assert.Equal(t, []string{"ERC721", "ERC165"}, info.Interfaces)

	// the creation search stops at the first match
	assert.Equal(t, 0, chain.timesRequested(11))
}

func TestProfileReusesBlocksBetweenSearches(t *testing.T) {
	chain := newFakeChain(1500)
	chain.code = []byte{0x01}

	s := newTestScanner(t, chain)
	info, err := s.Profile(context.Background(), contractAddr)
	require.NoError(t, err)
	assert.Nil(t, info.CreationBlock)
	assert.Nil(t, info.LastActive)

	assert.Equal(t, 1, chain.timesRequested(0))
	assert.Equal(t, 1, chain.timesRequested(1500))
	assert.Equal(t, 1, chain.timesRequested(500))
	assert.Equal(t, 0, chain.timesRequested(1501))
}

func TestProfileLastActiveStopsAtWindow(t *testing.T) {
	chain := newFakeChain(5000)
	chain.code = []byte{0x01}
	// found by the creation search but older than the last-active window
	chain.addTx(3000, deployer, contractAddr, "0xold")

	s := newTestScanner(t, chain)
	info, err := s.Profile(context.Background(), contractAddr)
	require.NoError(t, err)

	require.NotNil(t, info.CreationBlock)
	assert.Equal(t, uint64(3000), *info.CreationBlock)
	assert.Nil(t, info.LastActive)
	assert.Equal(t, 1, chain.timesRequested(4001))
	assert.Equal(t, 0, chain.timesRequested(4000), "the window floor is excluded")
}

func TestProfileLastActiveExcludesFloorBlock(t *testing.T) {
	chain := newFakeChain(2000)
	chain.code = []byte{0x01}
	chain.addTx(1000, deployer, contractAddr, "0xfloor")

	s := newTestScanner(t, chain)
	info, err := s.Profile(context.Background(), contractAddr)
	require.NoError(t, err)

	require.NotNil(t, info.CreationBlock)
	assert.Equal(t, uint64(1000), *info.CreationBlock)
	assert.Nil(t, info.LastActive)
}

func TestProfileDegradesOnStepFailures(t *testing.T) {
	chain := newFakeChain(100)
	chain.codeErr = errors.New("getCode failed")
	chain.headErr = errors.New("blockNumber failed")
	chain.countErr = errors.New("getTransactionCount failed")

	s := newTestScanner(t, chain)
	info, err := s.Profile(context.Background(), contractAddr)
	require.NoError(t, err)

	assert.False(t, info.IsVerified)
	assert.Nil(t, info.CreationBlock)
	assert.Nil(t, info.LastActive)
	assert.Zero(t, info.TotalTransactions)
	assert.Empty(t, info.Interfaces)
	assert.Equal(t, 0, chain.timesRequested(0), "no block is read without a head")
}

func TestProfileTreatsCallErrorsAsUnsupported(t *testing.T) {
	chain := newFakeChain(5)
	chain.code = []byte{0x01}
	chain.callErr = errors.New("execution reverted")

	s := newTestScanner(t, chain)
	info, err := s.Profile(context.Background(), contractAddr)
	require.NoError(t, err)
	assert.True(t, info.IsVerified)
	assert.Equal(t, []string{}, info.Interfaces)
}

func TestProfileReportsCreationProgress(t *testing.T) {
	chain := newFakeChain(99)

	var last, total int
	ctx := scan.WithProgress(context.Background(), func(d, n int) {
		last, total = d, n
	})

	s := newTestScanner(t, chain)
	_, err := s.Profile(ctx, contractAddr)
	require.NoError(t, err)
	assert.Equal(t, 100, total)
	assert.Equal(t, 100, last)
}
