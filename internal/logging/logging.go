// Package logging constructs the arbor.ILogger instances used throughout
// the pipeline, following cmd/quaero-mcp/main.go's pattern of a quiet
// console writer for the stdio-transport binary and a fuller writer for
// the daemon binary.
package logging

import (
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
)

// NewStdioLogger returns a logger safe to use alongside an MCP stdio
// transport: console-only, warn-level by default so operational chatter
// never interleaves with the JSON-RPC framing on stdout/stderr.
func NewStdioLogger(level string) arbor.ILogger {
	if level == "" {
		level = "warn"
	}
	return arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString(level)
}

// NewDaemonLogger returns a logger for the batch/daemon binary: console
// plus a rotating file writer under logPath.
func NewDaemonLogger(level, logPath string) arbor.ILogger {
	if level == "" {
		level = "info"
	}
	l := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:       arbor_models.LogWriterTypeConsole,
		TimeFormat: "15:04:05",
	})
	if logPath != "" {
		l = l.WithFileWriter(arbor_models.WriterConfiguration{
			Type:       arbor_models.LogWriterTypeFile,
			FileName:   logPath,
			TimeFormat: "2006-01-02T15:04:05.000Z",
		})
	}
	return l.WithLevelFromString(level)
}
