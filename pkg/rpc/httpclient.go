package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/watchmon/watchmon/pkg/metrics"
)

// HTTPClient speaks raw JSON-RPC over HTTP. It performs exactly one request per
// call and classifies failures so callers can decide what to retry.
type HTTPClient struct {
	endpoint string
	client   *resty.Client
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	nextID   atomic.Uint64
}

// Opts is the set of options for a new HTTPClient.
type Opts struct {
	Endpoint string
	// Proxy routes every request through the given HTTP/HTTPS proxy URL.
	Proxy   string
	Timeout time.Duration
	// RPS enables a client-side token bucket. Zero disables it.
	RPS   int
	Burst int
	// MaxConns sizes the idle connection pool, usually to the scan concurrency.
	MaxConns   int
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// NewHTTPWithOpts creates a new HTTPClient with the given options.
func NewHTTPWithOpts(o Opts) *HTTPClient {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}

	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: o.Timeout}
	} else if hc.Timeout == 0 {
		hc.Timeout = o.Timeout
	}

	c := &HTTPClient{
		endpoint: o.Endpoint,
		client: resty.NewWithClient(hc).
			SetBaseURL(o.Endpoint).
			SetHeader("Content-Type", "application/json"),
		metrics: o.Metrics,
	}
	if o.RPS > 0 {
		burst := o.Burst
		if burst <= 0 {
			burst = o.RPS * 2
		}
		c.limiter = rate.NewLimiter(rate.Limit(o.RPS), burst)
	}
	return c
}

// Endpoint returns the node URL this client talks to.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// wait blocks on the token bucket, if one is configured.
func (c *HTTPClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// call posts a JSON-RPC request and decodes the result member into out.
// A null result yields ErrNoResult.
func (c *HTTPClient) call(ctx context.Context, method string, params []any, out any) error {
	if c.endpoint == "" {
		return fmt.Errorf("no endpoint configured")
	}
	if err := c.wait(ctx); err != nil {
		return err
	}

	payload := request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params}

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post("")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.metrics.ObserveRPC(method, "network_error", time.Since(start))
		return &NetworkError{Method: method, Err: err}
	}

	code := resp.StatusCode()
	if code == http.StatusTooManyRequests {
		c.metrics.ObserveRPC(method, "rate_limited", time.Since(start))
		return &StatusError{Method: method, Code: code, Body: resp.String()}
	}
	if code < 200 || code >= 300 {
		c.metrics.ObserveRPC(method, "http_error", time.Since(start))
		return &StatusError{Method: method, Code: code, Body: resp.String()}
	}

	body := resp.Body()
	if rpcErr := gjson.GetBytes(body, "error"); rpcErr.Exists() && rpcErr.Type != gjson.Null {
		c.metrics.ObserveRPC(method, "rpc_error", time.Since(start))
		return &RPCError{
			Method:  method,
			Code:    rpcErr.Get("code").Int(),
			Message: rpcErr.Get("message").String(),
		}
	}
	c.metrics.ObserveRPC(method, "ok", time.Since(start))

	result := gjson.GetBytes(body, "result")
	if !result.Exists() || result.Type == gjson.Null {
		return ErrNoResult
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(result.Raw), out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// BlockByHeight fetches one block with full transaction objects. A block the
// node does not know yet comes back as (nil, nil).
func (c *HTTPClient) BlockByHeight(ctx context.Context, h uint64) (*RawBlock, error) {
	var out RawBlock
	err := c.call(ctx, "eth_getBlockByNumber", []any{hexutil.EncodeUint64(h), true}, &out)
	if errors.Is(err, ErrNoResult) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
