// Package tools implements the memory tool catalog exposed to the
// model: schema-described operations over the memory store, a registry
// dispatching model-issued calls, and the relevance-candidate selection
// used for prompt injection.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/kokoro-ai/kokoro/provider"
)

// Param describes one named tool parameter for schema generation and
// argument validation.
type Param struct {
	Name        string
	Type        string // "string", "number" or "boolean"
	Description string
	Enum        []string
	Required    bool
}

// Tool is a named, schema-described operation the model may invoke.
// Execute never panics its way past the registry and never returns a Go
// error: failures are reported inside the Result so they can be fed
// back to the model as a tool message.
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	Execute(ctx context.Context, args map[string]any) Result
}

// Result is the structured outcome of one tool execution.
type Result struct {
	// Success distinguishes real failures from successful empty results.
	Success bool `json:"success"`

	// Message is a short human-readable summary, suitable for display or
	// for feeding back to the model.
	Message string `json:"message"`

	// Error carries the failure detail when Success is false.
	Error string `json:"error,omitempty"`

	// Data holds operation-specific payload (created id, record lists).
	Data any `json:"data,omitempty"`

	// Memory, when non-empty, is a session-log note the orchestrator
	// records about what this tool did this turn.
	Memory string `json:"memory,omitempty"`
}

// Failure builds a failed Result with a display message and detail.
func Failure(message, detail string) Result {
	return Result{Success: false, Message: message, Error: detail}
}

// Definition renders a tool as the wire-level schema sent to the model.
func Definition(t Tool) provider.ToolDefinition {
	type property struct {
		Type        string   `json:"type"`
		Description string   `json:"description,omitempty"`
		Enum        []string `json:"enum,omitempty"`
	}

	properties := make(map[string]property)
	var required []string
	for _, p := range t.Params() {
		properties[p.Name] = property{
			Type:        p.Type,
			Description: p.Description,
			Enum:        p.Enum,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	sort.Strings(required)

	schema, err := json.Marshal(struct {
		Type       string              `json:"type"`
		Properties map[string]property `json:"properties"`
		Required   []string            `json:"required,omitempty"`
	}{
		Type:       "object",
		Properties: properties,
		Required:   required,
	})
	if err != nil {
		// The schema is built from static declarations; marshal cannot
		// fail for any registered tool.
		panic(fmt.Sprintf("tools: marshal schema for %s: %v", t.Name(), err))
	}

	return provider.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  schema,
	}
}

// validateArgs checks args against the declared parameters: the
// payload must have parsed as JSON, required fields must be present
// and non-empty, values must match the declared type, and enum
// parameters must hold a member value.
func validateArgs(params []Param, args map[string]any) error {
	if msg, ok := args[parseErrorKey].(string); ok {
		return fmt.Errorf("malformed argument JSON: %s", msg)
	}

	for _, p := range params {
		v, ok := args[p.Name]
		if !ok || v == nil {
			if p.Required {
				return fmt.Errorf("missing required parameter %q", p.Name)
			}
			continue
		}

		switch p.Type {
		case "string":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("parameter %q must be a string", p.Name)
			}
			if p.Required && s == "" {
				return fmt.Errorf("missing required parameter %q", p.Name)
			}
			if len(p.Enum) > 0 && !contains(p.Enum, s) {
				return fmt.Errorf("parameter %q must be one of %v, got %q", p.Name, p.Enum, s)
			}
		case "number":
			if _, ok := v.(float64); !ok {
				if _, ok := v.(int); !ok {
					return fmt.Errorf("parameter %q must be a number", p.Name)
				}
			}
		case "boolean":
			if _, ok := v.(bool); !ok {
				return fmt.Errorf("parameter %q must be a boolean", p.Name)
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// --- typed argument accessors ---

func stringArg(args map[string]any, name string) string {
	if s, ok := args[name].(string); ok {
		return s
	}
	return ""
}

// intArg returns the named numeric argument, or fallback when absent or
// not numeric. JSON numbers decode as float64.
func intArg(args map[string]any, name string, fallback int) int {
	switch v := args[name].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fallback
		}
		return int(v)
	case int:
		return v
	}
	return fallback
}

func boolArg(args map[string]any, name string, fallback bool) bool {
	if b, ok := args[name].(bool); ok {
		return b
	}
	return fallback
}
