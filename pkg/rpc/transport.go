package rpc

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Transport owns the connection pool shared by every chain call. It is created
// once per process with Connect and must be released with Close.
type Transport struct {
	*HTTPClient

	hc     *http.Client
	eth    *ethclient.Client
	logger *zap.Logger

	closeOnce sync.Once
}

// Connect builds the shared HTTP client, wires both the raw JSON-RPC client and
// the go-ethereum client onto it, and checks that the node answers. Any failure
// here is a ConnectivityError.
func Connect(ctx context.Context, o Opts, logger *zap.Logger) (*Transport, error) {
	if o.Endpoint == "" {
		return nil, &ConnectivityError{Endpoint: o.Endpoint, Err: fmt.Errorf("no endpoint configured")}
	}

	hc, err := newHTTPClient(o)
	if err != nil {
		return nil, &ConnectivityError{Endpoint: o.Endpoint, Err: err}
	}
	o.HTTPClient = hc

	rc, err := gethrpc.DialOptions(ctx, o.Endpoint, gethrpc.WithHTTPClient(hc))
	if err != nil {
		return nil, &ConnectivityError{Endpoint: o.Endpoint, Err: err}
	}

	t := &Transport{
		HTTPClient: NewHTTPWithOpts(o),
		hc:         hc,
		eth:        ethclient.NewClient(rc),
		logger:     logger,
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	chainID, err := t.eth.ChainID(pingCtx)
	if err != nil {
		t.Close()
		return nil, &ConnectivityError{Endpoint: o.Endpoint, Err: err}
	}

	logger.Info("Connected to chain",
		zap.String("endpoint", o.Endpoint),
		zap.String("chain_id", chainID.String()),
		zap.Bool("proxy", o.Proxy != ""))

	return t, nil
}

func newHTTPClient(o Opts) (*http.Client, error) {
	if o.HTTPClient != nil {
		return o.HTTPClient, nil
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxConns := o.MaxConns
	if maxConns <= 0 {
		maxConns = 8
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConns = maxConns * 2
	tr.MaxIdleConnsPerHost = maxConns * 2
	if o.Proxy != "" {
		proxyURL, err := url.Parse(o.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		tr.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

// Close releases the pooled connections. It is safe to call more than once.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		t.eth.Close()
		t.hc.CloseIdleConnections()
		if t.logger != nil {
			t.logger.Debug("Transport closed", zap.String("endpoint", t.endpoint))
		}
	})
}

// observe wraps a go-ethereum call with rate limiting and metrics.
func (t *Transport) observe(ctx context.Context, method string, fn func() error) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	t.metrics.ObserveRPC(method, outcome, time.Since(start))
	return err
}

// BlockNumber returns the current head via eth_blockNumber.
func (t *Transport) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := t.observe(ctx, "eth_blockNumber", func() (err error) {
		n, err = t.eth.BlockNumber(ctx)
		return err
	})
	return n, err
}

// ChainID returns the EIP-155 chain id.
func (t *Transport) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := t.observe(ctx, "eth_chainId", func() (err error) {
		id, err = t.eth.ChainID(ctx)
		return err
	})
	return id, err
}

// GasPrice returns the node's suggested gas price in wei.
func (t *Transport) GasPrice(ctx context.Context) (*big.Int, error) {
	var p *big.Int
	err := t.observe(ctx, "eth_gasPrice", func() (err error) {
		p, err = t.eth.SuggestGasPrice(ctx)
		return err
	})
	return p, err
}

// CodeAt returns the deployed bytecode at the latest block.
func (t *Transport) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var code []byte
	err := t.observe(ctx, "eth_getCode", func() (err error) {
		code, err = t.eth.CodeAt(ctx, addr, nil)
		return err
	})
	return code, err
}

// TransactionCount returns eth_getTransactionCount at the latest block.
func (t *Transport) TransactionCount(ctx context.Context, addr common.Address) (uint64, error) {
	var n uint64
	err := t.observe(ctx, "eth_getTransactionCount", func() (err error) {
		n, err = t.eth.NonceAt(ctx, addr, nil)
		return err
	})
	return n, err
}

// Call executes a read-only eth_call against to with ABI-encoded data.
func (t *Transport) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := t.observe(ctx, "eth_call", func() (err error) {
		out, err = t.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return err
	})
	return out, err
}
