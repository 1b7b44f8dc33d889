package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaero-labs/corequaero/internal/logging"
	"github.com/quaero-labs/corequaero/internal/mcptools"
	"github.com/quaero-labs/corequaero/internal/workerpool"
)

func echoToolDef() mcptools.ToolDef {
	return mcptools.ToolDef{
		Name:        "echo",
		Description: "echoes its text argument",
		Schema: mcptools.Schema{Params: []mcptools.ParamSpec{
			{Name: "text", Type: mcptools.ParamString, Required: true},
			{Name: "limit", Type: mcptools.ParamNumber, HasBound: true, Min: 1, Max: 10},
		}},
		Handler: func(ctx context.Context, args map[string]any) (mcptools.Envelope, error) {
			return mcptools.Ok(map[string]any{"text": args["text"]}), nil
		},
	}
}

func TestBuildToolCarriesNameAndRequiredParams(t *testing.T) {
	tool := buildTool(echoToolDef())
	assert.Equal(t, "echo", tool.Name)
	assert.Equal(t, []string{"text"}, tool.InputSchema.Required)
}

func TestRegisterAddsEveryDispatcherTool(t *testing.T) {
	pool := workerpool.New(context.Background(), 2, logging.NewStdioLogger("error"))
	d := mcptools.NewDispatcher(pool, logging.NewStdioLogger("error"))
	d.Register(echoToolDef())

	mcpServer := server.NewMCPServer("test", "0.0.0")
	ledger := mcptools.NewLedger(10, nil)
	Register(mcpServer, d, ledger, logging.NewStdioLogger("error"))
}

func TestBuildHandlerReturnsEnvelopeAsJSONText(t *testing.T) {
	pool := workerpool.New(context.Background(), 2, logging.NewStdioLogger("error"))
	d := mcptools.NewDispatcher(pool, logging.NewStdioLogger("error"))
	d.Register(echoToolDef())
	ledger := mcptools.NewLedger(10, nil)

	handler := buildHandler(d, "echo", ledger, logging.NewStdioLogger("error"))
	req := mcp.CallToolRequest{}
	req.Params.Name = "echo"
	req.Params.Arguments = map[string]any{"text": "hi"}

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var env mcptools.Envelope
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), &env))
	assert.True(t, env.Success)
}
