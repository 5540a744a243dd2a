// Package tools provides the tool registry and execution framework.
//
// The registry is a closed dispatch from tool name to handler. Execution
// always produces text: handler errors, validation failures and unknown
// tool names are all converted to textual results, because the output is
// fed back to the model as ordinary tool output rather than handled by
// application control flow.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/adavila/ada/internal/llm"
)

// Handler executes one tool invocation. The returned string is shown to
// the model verbatim.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool represents a callable tool.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object describing the input shape.
	// It is handed to the model verbatim.
	Parameters map[string]any
	Handler    Handler
}

// Registry holds available tools. Tools are registered once at process
// start; the registry is read-only afterwards.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register adds a tool to the registry. The schema is validated at
// registration time: it must be an object schema whose required fields
// are all declared in properties. Duplicate names are rejected.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool has empty name")
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}
	if err := validateSchema(t.Parameters); err != nil {
		return fmt.Errorf("tool %q: %w", t.Name, err)
	}

	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// MustRegister registers a tool and panics on error. For use at startup
// with statically-defined tools, where a bad schema is a programming bug.
func (r *Registry) MustRegister(t *Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name. Returns nil if absent.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Defs returns the catalog as model-facing tool descriptors, in
// registration order.
func (r *Registry) Defs() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDef{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}
	return defs
}

// Execute runs a tool by name with the given arguments and always
// returns text. A malformed tool name or bad arguments from the model
// must never crash the turn, so every failure path degrades to a
// textual result the model can read and recover from.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) string {
	tool := r.tools[name]
	if tool == nil {
		r.logger.Warn("unknown tool requested", "tool", name)
		return fmt.Sprintf("unknown tool: %s (available: %s)", name, strings.Join(r.Names(), ", "))
	}

	if missing := missingRequired(tool.Parameters, args); len(missing) > 0 {
		return fmt.Sprintf("invalid arguments for %s: missing required field(s): %s",
			name, strings.Join(missing, ", "))
	}

	result, err := tool.Handler(ctx, args)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err)
		return fmt.Sprintf("error: %s", err)
	}
	return result
}

// validateSchema checks that a tool parameter schema is a well-formed
// object schema: type "object", a properties map, and every required
// field declared in properties.
func validateSchema(schema map[string]any) error {
	if schema == nil {
		return fmt.Errorf("nil parameter schema")
	}
	if typ, _ := schema["type"].(string); typ != "object" {
		return fmt.Errorf("parameter schema type must be \"object\", got %q", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return fmt.Errorf("parameter schema missing properties object")
	}
	for _, field := range requiredFields(schema) {
		if _, ok := props[field]; !ok {
			return fmt.Errorf("required field %q not declared in properties", field)
		}
	}
	return nil
}

// missingRequired returns the schema's required fields absent from args.
func missingRequired(schema map[string]any, args map[string]any) []string {
	var missing []string
	for _, field := range requiredFields(schema) {
		if _, ok := args[field]; !ok {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)
	return missing
}

// requiredFields extracts the "required" list from a schema. JSON
// decoding yields []any; statically-built schemas use []string.
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		fields := make([]string, 0, len(req))
		for _, f := range req {
			if s, ok := f.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	}
	return nil
}

// Helpers for handlers reading loosely-typed arguments. JSON numbers
// decode as float64; these normalize the common cases.

// StringArg returns args[key] as a string, or "" if absent or not a string.
func StringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// IntArg returns args[key] as an int, or def if absent or not numeric.
func IntArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// BoolArg returns args[key] as a bool, or def if absent or not boolean.
func BoolArg(args map[string]any, key string, def bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return def
}
