// Package types provides the public types used to embed the gateway and to
// register in-process tools and resources.
package types

import (
	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

// Protocol types.
type (
	Tool             = shared.Tool
	Resource         = shared.Resource
	ResourceTemplate = shared.ResourceTemplate
	ResourceContents = shared.ResourceContents
	Content          = shared.Content
	CallToolResult   = shared.CallToolResult
	ServerInfo       = shared.ServerInfo
)

// ToolHandler executes an in-process tool.
type ToolHandler = domain.ToolHandler

// ResourceReader returns the contents of an in-process resource.
type ResourceReader = domain.ResourceReader

// TextResult creates a successful tool result holding a single text item.
func TextResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{shared.NewTextContent(text)}}
}

// ErrorResult creates a tool result flagged as an error.
func ErrorResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{shared.NewTextContent(text)}, IsError: true}
}

// TextContents creates the contents of a plain text resource.
func TextContents(uri, mimeType, text string) []ResourceContents {
	return []ResourceContents{{URI: uri, MIMEType: mimeType, Text: text}}
}
