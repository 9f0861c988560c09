// Command echo-stdio-server is a minimal MCP backend that speaks stdio. It is
// meant to be listed as a stdio backend in the gateway configuration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/logging"
)

type echoArgs struct {
	Message string `json:"message" jsonschema:"the message to echo back"`
}

func main() {
	// stdout carries the protocol, so logs go to stderr only.
	logger, err := logging.New(logging.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "echo-stdio-server: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("echo-stdio")
	defer func() { _ = logger.Sync() }()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "echo-stdio-server",
		Version: "1.0.0",
	}, &mcp.ServerOptions{
		Instructions: "This is a simple echo server that echoes back messages sent to it.",
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes back the input message",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in echoArgs) (*mcp.CallToolResult, any, error) {
		logger.Debug("echo called", logging.Fields{"length": len(in.Message)})
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: in.Message}},
		}, nil, nil
	})

	server.AddResource(&mcp.Resource{
		URI:      "echo://about",
		Name:     "about",
		MIMEType: "text/plain",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     "echo-stdio-server echoes messages back to the caller.",
			}},
		}, nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("serving on stdio")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.Error("server stopped", logging.Fields{"error": err})
		os.Exit(1)
	}
}
