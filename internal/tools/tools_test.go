package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func objSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func TestRegisterValidation(t *testing.T) {
	okHandler := func(ctx context.Context, args map[string]any) (string, error) {
		return "ok", nil
	}

	tests := []struct {
		name    string
		tool    *Tool
		wantErr bool
	}{
		{
			name: "valid",
			tool: &Tool{
				Name:       "echo",
				Parameters: objSchema(map[string]any{"text": map[string]any{"type": "string"}}, "text"),
				Handler:    okHandler,
			},
		},
		{
			name:    "empty name",
			tool:    &Tool{Parameters: objSchema(map[string]any{}), Handler: okHandler},
			wantErr: true,
		},
		{
			name:    "nil handler",
			tool:    &Tool{Name: "broken", Parameters: objSchema(map[string]any{})},
			wantErr: true,
		},
		{
			name:    "nil schema",
			tool:    &Tool{Name: "broken", Handler: okHandler},
			wantErr: true,
		},
		{
			name: "non-object schema",
			tool: &Tool{
				Name:       "broken",
				Parameters: map[string]any{"type": "string"},
				Handler:    okHandler,
			},
			wantErr: true,
		},
		{
			name: "required not in properties",
			tool: &Tool{
				Name:       "broken",
				Parameters: objSchema(map[string]any{}, "ghost"),
				Handler:    okHandler,
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry(nil)
			err := r.Register(tc.tool)
			if (err != nil) != tc.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	tool := &Tool{
		Name:       "echo",
		Parameters: objSchema(map[string]any{}),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", nil
		},
	}
	if err := r.Register(tool); err != nil {
		t.Fatalf("first Register() error: %v", err)
	}
	if err := r.Register(tool); err == nil {
		t.Error("duplicate Register() should fail")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(nil)

	got := r.Execute(context.Background(), "no_such_tool", nil)
	if !strings.Contains(got, "unknown tool: no_such_tool") {
		t.Errorf("Execute() = %q, want unknown-tool text", got)
	}
}

func TestExecuteMissingRequired(t *testing.T) {
	r := NewRegistry(nil)
	r.MustRegister(&Tool{
		Name: "get_calendar_events",
		Parameters: objSchema(map[string]any{
			"start": map[string]any{"type": "string"},
			"end":   map[string]any{"type": "string"},
		}, "start", "end"),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			t.Error("handler should not run on validation failure")
			return "", nil
		},
	})

	got := r.Execute(context.Background(), "get_calendar_events", map[string]any{"start": "x"})
	if !strings.Contains(got, "missing required field(s): end") {
		t.Errorf("Execute() = %q, want missing-field text", got)
	}
}

func TestExecuteHandlerErrorBecomesText(t *testing.T) {
	r := NewRegistry(nil)
	r.MustRegister(&Tool{
		Name:       "flaky",
		Parameters: objSchema(map[string]any{}),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", fmt.Errorf("upstream unavailable")
		},
	})

	got := r.Execute(context.Background(), "flaky", nil)
	if got != "error: upstream unavailable" {
		t.Errorf("Execute() = %q, want error text", got)
	}
}

func TestExecuteRequiredFromJSON(t *testing.T) {
	// Schemas that passed through JSON decode carry []any required lists.
	r := NewRegistry(nil)
	r.MustRegister(&Tool{
		Name: "remember_fact",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":   map[string]any{"type": "string"},
				"value": map[string]any{"type": "string"},
			},
			"required": []any{"key", "value"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "saved", nil
		},
	})

	got := r.Execute(context.Background(), "remember_fact", map[string]any{"key": "k"})
	if !strings.Contains(got, "missing required field(s): value") {
		t.Errorf("Execute() = %q, want missing-field text", got)
	}

	got = r.Execute(context.Background(), "remember_fact", map[string]any{"key": "k", "value": "v"})
	if got != "saved" {
		t.Errorf("Execute() = %q, want %q", got, "saved")
	}
}

func TestDefsOrder(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.MustRegister(&Tool{
			Name:       name,
			Parameters: objSchema(map[string]any{}),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return "", nil
			},
		})
	}

	defs := r.Defs()
	want := []string{"zeta", "alpha", "mid"}
	if len(defs) != len(want) {
		t.Fatalf("len(Defs()) = %d, want %d", len(defs), len(want))
	}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Errorf("Defs()[%d] = %q, want %q (registration order)", i, d.Name, want[i])
		}
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{
		"s": "text",
		"f": float64(7),
		"b": true,
	}

	if got := StringArg(args, "s"); got != "text" {
		t.Errorf("StringArg = %q, want %q", got, "text")
	}
	if got := StringArg(args, "missing"); got != "" {
		t.Errorf("StringArg(missing) = %q, want empty", got)
	}
	if got := IntArg(args, "f", 0); got != 7 {
		t.Errorf("IntArg = %d, want 7", got)
	}
	if got := IntArg(args, "missing", 3); got != 3 {
		t.Errorf("IntArg(missing) = %d, want default 3", got)
	}
	if got := BoolArg(args, "b", false); got != true {
		t.Errorf("BoolArg = %v, want true", got)
	}
}
