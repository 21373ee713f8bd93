package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/kokoro-ai/kokoro/metrics"
	"github.com/kokoro-ai/kokoro/provider"
)

// Registry holds the session's tool catalog. Registration is
// first-wins: a later tool with a duplicate name is ignored with a
// warning, so built-in tools never override caller-registered ones.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool unless its name is already taken.
func (r *Registry) Register(t Tool) {
	name := t.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		r.logger.Warn("tool already registered, keeping existing", "tool", name)
		return
	}
	r.tools[name] = t
}

// Get returns the named tool, or nil if unregistered.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the wire-level schemas of every registered tool,
// sorted by name for a deterministic request shape.
func (r *Registry) Definitions() []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]provider.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Definition(t))
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute dispatches one model-issued tool call. Every failure mode —
// unknown tool, malformed argument JSON, validation rejection, a panic
// inside the tool body — comes back as a structured failure Result so
// the turn keeps going and sibling calls are unaffected.
func (r *Registry) Execute(ctx context.Context, name string, rawArgs json.RawMessage) (result Result) {
	defer func() {
		status := "ok"
		if !result.Success {
			status = "error"
		}
		metrics.ToolExecutions.WithLabelValues(name, status).Inc()
	}()

	t := r.Get(name)
	if t == nil {
		r.logger.Warn("unknown tool requested", "tool", name)
		return Failure(
			fmt.Sprintf("Tool %q is not available.", name),
			fmt.Sprintf("unknown tool: %s", name),
		)
	}

	args := decodeArgs(rawArgs)

	if err := validateArgs(t.Params(), args); err != nil {
		r.logger.Warn("tool arguments rejected", "tool", name, "error", err)
		return Failure("Invalid arguments for "+name+".", err.Error())
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked",
				"tool", name,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			result = Failure(
				fmt.Sprintf("Tool %q failed unexpectedly.", name),
				fmt.Sprintf("panic: %v", rec),
			)
		}
	}()

	return t.Execute(ctx, args)
}

// Argument-map keys carrying a capture of malformed argument JSON.
// validateArgs rejects any map holding them, so no tool ever executes
// on an unparseable payload.
const (
	parseErrorKey = "__parse_error"
	rawArgsKey    = "__raw"
)

// decodeArgs parses the model's argument payload. Malformed JSON does
// not panic or abort dispatch: the parse error is captured under
// parseErrorKey and handed to validation, which reports it back to the
// model as a structured failure.
func decodeArgs(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]any{
			parseErrorKey: err.Error(),
			rawArgsKey:    string(raw),
		}
	}
	if args == nil {
		return map[string]any{}
	}
	return args
}
