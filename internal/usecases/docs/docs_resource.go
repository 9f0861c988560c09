package docs

import (
	"context"
	"sort"
	"strings"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

const (
	introductionURI = "docs://introduction"
	toolTemplate    = "docs://tools/{name}"
	toolPrefix      = "docs://tools/"
	markdown        = "text/markdown"
)

// ResourceRegistrar accepts resource registrations. InMemoryServer
// satisfies it.
type ResourceRegistrar interface {
	AddResource(resource shared.Resource, reader domain.ResourceReader) error
	AddResourceTemplate(template shared.ResourceTemplate, reader domain.ResourceReader) error
}

const introduction = `# Calculator

This server provides basic calculator operations as MCP tools.

## Available Tools

- add: Add two numbers
- subtract: Subtract b from a
- multiply: Multiply two numbers
- divide: Divide a by b

Per-tool documentation is available at docs://tools/{name}.
`

var toolDocs = map[string]string{
	"add": `# Add Tool

Adds two numbers and returns the result.

## Parameters

- a: First number (required)
- b: Second number (required)
`,
	"subtract": `# Subtract Tool

Subtracts b from a and returns the result.

## Parameters

- a: First number (required)
- b: Second number (required)
`,
	"multiply": `# Multiply Tool

Multiplies two numbers and returns the result.

## Parameters

- a: First number (required)
- b: Second number (required)
`,
	"divide": `# Divide Tool

Divides a by b and returns the result. Fails when b is zero.

## Parameters

- a: Dividend (required)
- b: Divisor (required)
`,
}

// ToolNames returns the names of the documented tools in sorted order.
func ToolNames() []string {
	names := make([]string, 0, len(toolDocs))
	for name := range toolDocs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds the introduction resource and the per-tool template to r.
func Register(r ResourceRegistrar) error {
	err := r.AddResource(shared.Resource{
		URI:         introductionURI,
		Name:        "introduction",
		Description: "Overview of the calculator tools",
		MIMEType:    markdown,
	}, readIntroduction)
	if err != nil {
		return err
	}

	return r.AddResourceTemplate(shared.ResourceTemplate{
		URITemplate: toolTemplate,
		Name:        "tool-docs",
		Description: "Documentation for a single calculator tool",
		MIMEType:    markdown,
	}, readToolDoc)
}

func readIntroduction(ctx context.Context, uri string) ([]shared.ResourceContents, error) {
	return []shared.ResourceContents{{URI: uri, MIMEType: markdown, Text: introduction}}, nil
}

func readToolDoc(ctx context.Context, uri string) ([]shared.ResourceContents, error) {
	doc, ok := toolDocs[strings.TrimPrefix(uri, toolPrefix)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return []shared.ResourceContents{{URI: uri, MIMEType: markdown, Text: doc}}, nil
}
