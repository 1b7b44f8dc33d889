package mcptools

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/quaero-labs/corequaero/internal/metrics"
	"github.com/quaero-labs/corequaero/internal/model"
	"github.com/quaero-labs/corequaero/internal/workerpool"
)

// Handler executes one tool's core operation. A returned error is a hard
// failure (credits refunded); a returned Envelope with Success=false
// represents a partial/expected failure the tool itself reports (no
// refund), per spec.md §4.15.
type Handler func(ctx context.Context, args map[string]any) (Envelope, error)

// ToolDef registers one entry in the tool catalog: its declared schema,
// configured credit cost key, and the Handler that implements it.
type ToolDef struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
	Timeout     time.Duration
}

// Dispatcher validates, charges, and dispatches tool invocations onto a
// bounded worker pool — "never blocks the transport loop" per spec.md
// §4.15; Dispatch returns a future channel immediately.
type Dispatcher struct {
	tools  map[string]ToolDef
	pool   *workerpool.Pool
	logger arbor.ILogger
}

// NewDispatcher builds a Dispatcher whose tool handlers run on pool.
func NewDispatcher(pool *workerpool.Pool, logger arbor.ILogger) *Dispatcher {
	return &Dispatcher{tools: make(map[string]ToolDef), pool: pool, logger: logger}
}

// Register adds a tool to the catalog. Panics on duplicate registration —
// a programming error, not a runtime condition.
func (d *Dispatcher) Register(def ToolDef) {
	if _, exists := d.tools[def.Name]; exists {
		panic(fmt.Sprintf("mcptools: tool %q already registered", def.Name))
	}
	if def.Timeout == 0 {
		def.Timeout = 60 * time.Second
	}
	d.tools[def.Name] = def
}

// Names returns every registered tool name, for catalog introspection.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.tools))
	for name := range d.tools {
		names = append(names, name)
	}
	return names
}

// ToolDefs returns every registered ToolDef, for a transport layer to
// translate into its own tool-listing format (e.g. mcp.Tool).
func (d *Dispatcher) ToolDefs() []ToolDef {
	defs := make([]ToolDef, 0, len(d.tools))
	for _, def := range d.tools {
		defs = append(defs, def)
	}
	return defs
}

// Dispatch validates args, charges ledger, and submits the tool's handler
// to the worker pool, returning a channel that receives exactly one
// Envelope when the call completes. The channel is never closed without a
// send, so callers may safely `<-future` with their own select/ctx guard.
func (d *Dispatcher) Dispatch(ctx context.Context, toolName string, args map[string]any, ledger *Ledger) (<-chan Envelope, error) {
	def, ok := d.tools[toolName]
	if !ok {
		return nil, model.New(model.KindInvalidArgument, "unknown tool %q", toolName)
	}
	if err := def.Schema.Validate(args); err != nil {
		return nil, err
	}

	cost, err := ledger.Charge(toolName)
	if err != nil {
		return nil, err
	}

	future := make(chan Envelope, 1)
	submitErr := d.pool.Submit(func(taskCtx context.Context) error {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(taskCtx, def.Timeout)
		defer cancel()

		env, herr := def.Handler(callCtx, args)
		metrics.ToolInvocationsTotal.WithLabelValues(toolName, outcomeOf(herr, env)).Inc()
		metrics.ToolDuration.WithLabelValues(toolName).Observe(time.Since(start).Seconds())

		if herr != nil {
			ledger.Refund(cost)
			future <- Fail(herr)
			return nil
		}
		future <- env
		return nil
	})
	if submitErr != nil {
		ledger.Refund(cost)
		return nil, submitErr
	}
	return future, nil
}

func outcomeOf(err error, env Envelope) string {
	if err != nil {
		return "error"
	}
	if !env.Success {
		return "failed"
	}
	if env.Truncated {
		return "truncated"
	}
	return "ok"
}
