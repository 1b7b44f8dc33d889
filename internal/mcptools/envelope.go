// Package mcptools implements C15: the tool dispatcher that validates
// arguments, charges credits, runs the relevant core operation on a
// worker, and translates the result to the MCP response envelope. MCP's
// wire framing and JSON codec are an explicit spec non-goal — this
// package speaks in plain Go maps and structs; a transport layer (e.g.
// mark3labs/mcp-go) adapts mcp.CallToolRequest/Result to this interface.
package mcptools

import (
	"errors"

	"github.com/quaero-labs/corequaero/internal/model"
)

// ErrorEnvelope is the machine-readable failure shape every tool response
// carries on failure, per spec.md §7's "always success:bool" contract.
type ErrorEnvelope struct {
	Kind    model.Kind        `json:"kind"`
	Message string            `json:"message"`
	Reason  model.GuardReason `json:"reason,omitempty"`
}

// Envelope is the uniform response shape returned by every tool
// invocation, independent of the transport that eventually serializes it.
type Envelope struct {
	Success   bool           `json:"success"`
	Result    any            `json:"result,omitempty"`
	Error     *ErrorEnvelope `json:"error,omitempty"`
	Truncated bool           `json:"truncated,omitempty"`
	Metrics   map[string]any `json:"metrics,omitempty"`
}

// Ok wraps a successful tool result.
func Ok(result any) Envelope {
	return Envelope{Success: true, Result: result}
}

// OkTruncated wraps a partial result returned on budget exhaustion.
func OkTruncated(result any, metrics map[string]any) Envelope {
	return Envelope{Success: true, Result: result, Truncated: true, Metrics: metrics}
}

// Fail wraps a tool failure, extracting the model.Kind (and guard reason,
// if any) from err so transports never need to know about *model.Error.
func Fail(err error) Envelope {
	env := Envelope{Success: false, Error: &ErrorEnvelope{
		Kind:    model.KindOf(err),
		Message: err.Error(),
	}}
	var me *model.Error
	if errors.As(err, &me) {
		env.Error.Reason = me.Reason
	}
	return env
}
