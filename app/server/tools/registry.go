package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/watchmon/watchmon/pkg/metrics"
	"github.com/watchmon/watchmon/pkg/scan"
)

// DefaultDays is the window used when a call does not pass days.
const DefaultDays = 7

// ErrUnknownTool is returned by Call for a name that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Engine is the part of *scan.Scanner the tools call into.
type Engine interface {
	Profile(ctx context.Context, address string) (*scan.DappDetail, error)
	DappTransactions(ctx context.Context, address string, days int) (int, error)
	Network(ctx context.Context) (*scan.NetworkInfo, error)
	TopDapps(ctx context.Context, days int) ([]scan.DappSummary, error)
}

var _ Engine = (*scan.Scanner)(nil)

// Param describes one tool argument.
type Param struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// Tool is a named operation exposed to consumers.
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
	// LongRunning tools are tracked as jobs while they run.
	LongRunning bool `json:"long_running"`

	run func(ctx context.Context, args json.RawMessage) (any, error)
}

// TxCountResult is the result of get_dapp_transactions_count.
type TxCountResult struct {
	Address          string `json:"address"`
	TransactionCount int    `json:"transaction_count"`
	Days             int    `json:"days"`
}

// ErrorResult is what consumers receive instead of a result when a call fails.
type ErrorResult struct {
	Error string `json:"error"`
}

// TopDappsHook observes every successful get_top_dapps result.
type TopDappsHook func(ctx context.Context, days int, top []scan.DappSummary)

// Registry holds the tool table and runs calls against an Engine.
type Registry struct {
	engine  Engine
	logger  *zap.Logger
	metrics *metrics.Metrics
	jobs    *Jobs

	tools  []*Tool
	byName map[string]*Tool

	onTop TopDappsHook
}

// NewRegistry registers every tool against engine. jobs may be nil, in which
// case long-running calls are not tracked.
func NewRegistry(engine Engine, logger *zap.Logger, m *metrics.Metrics, jobs *Jobs) *Registry {
	r := &Registry{
		engine:  engine,
		logger:  logger,
		metrics: m,
		jobs:    jobs,
		byName:  map[string]*Tool{},
	}

	r.add(&Tool{
		Name:        "get_contract_details",
		Description: "Get contract details by address",
		Params:      []Param{{Name: "address", Type: "string", Required: true}},
		LongRunning: true,
		run:         r.contractDetails,
	})
	r.add(&Tool{
		Name:        "get_dapp_transactions_count",
		Description: "Get transaction count for a dApp in the last N days",
		Params: []Param{
			{Name: "address", Type: "string", Required: true},
			{Name: "days", Type: "integer", Default: DefaultDays},
		},
		LongRunning: true,
		run:         r.transactionsCount,
	})
	r.add(&Tool{
		Name:        "get_network_info",
		Description: "Get current network information",
		Params:      []Param{},
		run:         r.networkInfo,
	})
	r.add(&Tool{
		Name:        "get_top_dapps",
		Description: "Rank the most active dApps by sampled transaction count",
		Params:      []Param{{Name: "days", Type: "integer", Default: DefaultDays}},
		LongRunning: true,
		run:         r.topDapps,
	})

	return r
}

func (r *Registry) add(t *Tool) {
	r.tools = append(r.tools, t)
	r.byName[t.Name] = t
}

// OnTopDapps sets a hook that receives every successful get_top_dapps result.
func (r *Registry) OnTopDapps(fn TopDappsHook) {
	r.onTop = fn
}

// List returns the registered tools in registration order.
func (r *Registry) List() []*Tool {
	return r.tools
}

// Lookup returns the tool called name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Call runs a tool and returns its result or the underlying error.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if t.LongRunning && r.jobs != nil {
		job := r.jobs.Start(name, args)
		defer r.jobs.Finish(job.ID)
		ctx = scan.WithProgress(ctx, job.Progress)
	}

	start := time.Now()
	out, err := t.run(ctx, args)
	if err != nil {
		r.metrics.ToolInvoked(name, "error")
		r.logger.Warn("Tool call failed",
			zap.String("tool", name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	r.metrics.ToolInvoked(name, "ok")
	r.logger.Info("Tool call completed",
		zap.String("tool", name),
		zap.Duration("took", time.Since(start)))
	return out, nil
}

// Invoke is Call with failures rendered as ErrorResult. It never returns an error.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) any {
	out, err := r.Call(ctx, name, args)
	if err != nil {
		return ErrorResult{Error: err.Error()}
	}
	return out
}

type addressArgs struct {
	Address string `json:"address"`
	Days    *int   `json:"days"`
}

func decodeArgs(args json.RawMessage) (addressArgs, error) {
	var a addressArgs
	if len(args) == 0 || string(args) == "null" {
		return a, nil
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return a, fmt.Errorf("invalid arguments: %w", err)
	}
	return a, nil
}

func (a addressArgs) days() (int, error) {
	if a.Days == nil {
		return DefaultDays, nil
	}
	if *a.Days < 0 {
		return 0, fmt.Errorf("days must not be negative, got %d", *a.Days)
	}
	return *a.Days, nil
}

func (a addressArgs) requireAddress() error {
	if a.Address == "" {
		return errors.New("address is required")
	}
	return nil
}

func (r *Registry) contractDetails(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return nil, err
	}
	if err := args.requireAddress(); err != nil {
		return nil, err
	}
	return r.engine.Profile(ctx, args.Address)
}

func (r *Registry) transactionsCount(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return nil, err
	}
	if err := args.requireAddress(); err != nil {
		return nil, err
	}
	days, err := args.days()
	if err != nil {
		return nil, err
	}
	count, err := r.engine.DappTransactions(ctx, args.Address, days)
	if err != nil {
		return nil, err
	}
	return TxCountResult{Address: args.Address, TransactionCount: count, Days: days}, nil
}

func (r *Registry) networkInfo(ctx context.Context, _ json.RawMessage) (any, error) {
	return r.engine.Network(ctx)
}

func (r *Registry) topDapps(ctx context.Context, raw json.RawMessage) (any, error) {
	args, err := decodeArgs(raw)
	if err != nil {
		return nil, err
	}
	days, err := args.days()
	if err != nil {
		return nil, err
	}
	top, err := r.engine.TopDapps(ctx, days)
	if err != nil {
		return nil, err
	}
	if r.onTop != nil {
		r.onTop(ctx, days, top)
	}
	return top, nil
}
