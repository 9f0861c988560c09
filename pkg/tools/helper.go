// Package tools provides utility functions for creating MCP tools.
package tools

import (
	"encoding/json"

	"github.com/FreePeak/golang-mcp-gateway/pkg/types"
)

// ToolOption is a function that configures a tool.
type ToolOption func(*toolSpec)

type toolSpec struct {
	tool       types.Tool
	parameters []parameter
}

type parameter struct {
	name        string
	kind        string
	description string
	required    bool
}

// NewTool creates a new MCP tool with the given name and options. The
// parameters become the tool's JSON input schema.
func NewTool(name string, options ...ToolOption) types.Tool {
	spec := &toolSpec{tool: types.Tool{Name: name}}

	// Apply all options
	for _, option := range options {
		option(spec)
	}

	spec.tool.InputSchema = spec.inputSchema()
	return spec.tool
}

func (s *toolSpec) inputSchema() json.RawMessage {
	type property struct {
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
	}
	schema := struct {
		Type       string              `json:"type"`
		Properties map[string]property `json:"properties"`
		Required   []string            `json:"required,omitempty"`
	}{
		Type:       "object",
		Properties: make(map[string]property, len(s.parameters)),
	}
	for _, p := range s.parameters {
		schema.Properties[p.name] = property{Type: p.kind, Description: p.description}
		if p.required {
			schema.Required = append(schema.Required, p.name)
		}
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}

// WithDescription sets the description of a tool.
func WithDescription(description string) ToolOption {
	return func(s *toolSpec) {
		s.tool.Description = description
	}
}

// WithTitle sets the display title of a tool.
func WithTitle(title string) ToolOption {
	return func(s *toolSpec) {
		s.tool.Title = title
	}
}

// Parameter types

// ParameterOption is a function that configures a parameter.
type ParameterOption func(*parameter)

// Description sets the description of a parameter.
func Description(description string) ParameterOption {
	return func(p *parameter) {
		p.description = description
	}
}

// Required marks a parameter as required.
func Required() ParameterOption {
	return func(p *parameter) {
		p.required = true
	}
}

func withParameter(name, kind string, options []ParameterOption) ToolOption {
	return func(s *toolSpec) {
		param := parameter{name: name, kind: kind}
		for _, option := range options {
			option(&param)
		}
		s.parameters = append(s.parameters, param)
	}
}

// WithString adds a string parameter to a tool.
func WithString(name string, options ...ParameterOption) ToolOption {
	return withParameter(name, "string", options)
}

// WithNumber adds a number parameter to a tool.
func WithNumber(name string, options ...ParameterOption) ToolOption {
	return withParameter(name, "number", options)
}

// WithBoolean adds a boolean parameter to a tool.
func WithBoolean(name string, options ...ParameterOption) ToolOption {
	return withParameter(name, "boolean", options)
}

// WithArray adds an array parameter to a tool.
func WithArray(name string, options ...ParameterOption) ToolOption {
	return withParameter(name, "array", options)
}

// WithObject adds an object parameter to a tool.
func WithObject(name string, options ...ParameterOption) ToolOption {
	return withParameter(name, "object", options)
}
