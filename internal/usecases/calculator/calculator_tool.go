package calculator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

// ToolRegistrar accepts tool registrations. InMemoryServer satisfies it.
type ToolRegistrar interface {
	AddTool(tool shared.Tool, handler domain.ToolHandler) error
}

var operandSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"a": {"type": "number", "description": "First operand"},
		"b": {"type": "number", "description": "Second operand"}
	},
	"required": ["a", "b"]
}`)

type operation struct {
	name        string
	description string
	apply       func(a, b float64) (float64, error)
}

var operations = []operation{
	{"add", "Add two numbers", func(a, b float64) (float64, error) { return a + b, nil }},
	{"subtract", "Subtract b from a", func(a, b float64) (float64, error) { return a - b, nil }},
	{"multiply", "Multiply two numbers", func(a, b float64) (float64, error) { return a * b, nil }},
	{"divide", "Divide a by b", func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a / b, nil
	}},
}

// Tools returns the calculator tool definitions.
func Tools() []shared.Tool {
	tools := make([]shared.Tool, 0, len(operations))
	for _, op := range operations {
		tools = append(tools, shared.Tool{Name: op.name, Description: op.description, InputSchema: operandSchema})
	}
	return tools
}

// Register adds every calculator tool to r.
func Register(r ToolRegistrar) error {
	for i, tool := range Tools() {
		if err := r.AddTool(tool, handler(operations[i])); err != nil {
			return fmt.Errorf("register %s: %w", tool.Name, err)
		}
	}
	return nil
}

func handler(op operation) domain.ToolHandler {
	return func(ctx context.Context, args map[string]interface{}) (*shared.CallToolResult, error) {
		a, ok := args["a"].(float64)
		if !ok {
			return nil, domain.NewValidationError("a", "must be a number")
		}
		b, ok := args["b"].(float64)
		if !ok {
			return nil, domain.NewValidationError("b", "must be a number")
		}

		result, err := op.apply(a, b)
		if err != nil {
			return nil, err
		}
		return &shared.CallToolResult{
			Content: []shared.Content{shared.NewTextContent(fmt.Sprintf("%f", result))},
		}, nil
	}
}
