// Package mcpserver bridges internal/mcptools' transport-agnostic
// Dispatcher/Envelope onto github.com/mark3labs/mcp-go's stdio JSON-RPC
// framing, the same way the teacher's cmd/quaero-mcp/handlers.go bridges
// its search/connector services onto mcp.CallToolRequest/CallToolResult.
// The wire codec itself (request/response JSON shape, MCP protocol
// negotiation) is mcp-go's concern and an explicit spec non-goal here —
// this package only translates argument maps and Envelopes at the edges.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/quaero-labs/corequaero/internal/mcptools"
)

// Register builds one mcp.Tool (from def's Schema) and one
// server.ToolHandlerFunc (dispatching through d against ledger) per
// registered ToolDef, and adds each pair to mcpServer.
func Register(mcpServer *server.MCPServer, d *mcptools.Dispatcher, ledger *mcptools.Ledger, logger arbor.ILogger) {
	for _, def := range d.ToolDefs() {
		mcpServer.AddTool(buildTool(def), buildHandler(d, def.Name, ledger, logger))
	}
}

// buildTool translates a ToolDef's Schema into an mcp.Tool, the same
// mcp.NewTool/mcp.With*/mcp.Required vocabulary the teacher's
// cmd/quaero-mcp/tools.go uses.
func buildTool(def mcptools.ToolDef) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}
	for _, p := range def.Schema.Params {
		opts = append(opts, paramOption(p))
	}
	return mcp.NewTool(def.Name, opts...)
}

func paramOption(p mcptools.ParamSpec) mcp.ToolOption {
	switch p.Type {
	case mcptools.ParamNumber:
		numOpts := propOptions(p.Required)
		if p.HasBound {
			numOpts = append(numOpts, mcp.Min(p.Min), mcp.Max(p.Max))
		}
		return mcp.WithNumber(p.Name, numOpts...)
	case mcptools.ParamBool:
		return mcp.WithBoolean(p.Name, propOptions(p.Required)...)
	case mcptools.ParamStringArray:
		arrOpts := append([]mcp.PropertyOption{mcp.WithStringItems()}, propOptions(p.Required)...)
		return mcp.WithArray(p.Name, arrOpts...)
	case mcptools.ParamObject:
		return mcp.WithObject(p.Name, propOptions(p.Required)...)
	default:
		strOpts := propOptions(p.Required)
		if len(p.Enum) > 0 {
			strOpts = append(strOpts, mcp.Enum(p.Enum...))
		}
		return mcp.WithString(p.Name, strOpts...)
	}
}

func propOptions(required bool) []mcp.PropertyOption {
	if required {
		return []mcp.PropertyOption{mcp.Required()}
	}
	return nil
}

// buildHandler adapts one tool's Dispatch call to mcp-go's
// server.ToolHandlerFunc signature: pull the raw argument map straight
// off the request (Dispatch re-validates it against the same Schema
// anyway), wait on the dispatcher's future, and render the Envelope as a
// single JSON text content block — mirroring the teacher's pattern of
// always returning a *mcp.CallToolResult (never a transport-level error)
// and putting the failure detail in the text body instead.
func buildHandler(d *mcptools.Dispatcher, toolName string, ledger *mcptools.Ledger, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		future, err := d.Dispatch(ctx, toolName, args, ledger)
		if err != nil {
			return textResult(mcptools.Fail(err)), nil
		}

		select {
		case env := <-future:
			return textResult(env), nil
		case <-ctx.Done():
			logger.Warn().Str("tool", toolName).Msg("tool invocation context cancelled before completion")
			return textResult(mcptools.Fail(ctx.Err())), nil
		case <-time.After(5 * time.Minute):
			return textResult(mcptools.Fail(fmt.Errorf("tool %q timed out awaiting dispatcher", toolName))), nil
		}
	}
}

func textResult(env mcptools.Envelope) *mcp.CallToolResult {
	body, err := json.Marshal(env)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("failed to encode result: %v", err))},
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(body))},
	}
}
