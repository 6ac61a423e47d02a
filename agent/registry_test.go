package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestReflectSchema(t *testing.T) {
	t.Run("basic object", func(t *testing.T) {
		schema := ReflectSchema(bashParams{})
		if schema["type"] != "object" {
			t.Errorf("expected object schema, got %v", schema["type"])
		}
		props, ok := schema["properties"].(map[string]any)
		if !ok {
			t.Fatalf("expected properties map, got %T", schema["properties"])
		}
		command, ok := props["command"].(map[string]any)
		if !ok {
			t.Fatalf("expected command property, got %v", props)
		}
		if command["description"] != "The shell command to execute" {
			t.Errorf("unexpected description %v", command["description"])
		}
		if _, present := schema["$schema"]; present {
			t.Error("expected $schema to be stripped")
		}
	})

	t.Run("omitempty fields are optional", func(t *testing.T) {
		schema := ReflectSchema(readFileParams{})
		required := requiredFields(schema)
		if len(required) != 1 || required[0] != "path" {
			t.Errorf("expected required [path], got %v", required)
		}
	})

	t.Run("required preserves declaration order", func(t *testing.T) {
		schema := ReflectSchema(editFileParams{})
		required := requiredFields(schema)
		want := []string{"path", "old_text", "new_text"}
		if len(required) != len(want) {
			t.Fatalf("expected %v, got %v", want, required)
		}
		for i, name := range want {
			if required[i] != name {
				t.Errorf("position %d: expected %q, got %q", i, name, required[i])
			}
		}
	})

	t.Run("enum from tags", func(t *testing.T) {
		schema := ReflectSchema(TodoItem{})
		props := schema["properties"].(map[string]any)
		status, ok := props["status"].(map[string]any)
		if !ok {
			t.Fatalf("expected status property, got %v", props)
		}
		enum, ok := status["enum"].([]any)
		if !ok {
			t.Fatalf("expected enum list, got %T", status["enum"])
		}
		want := []string{"pending", "in_progress", "completed"}
		if len(enum) != len(want) {
			t.Fatalf("expected %v, got %v", want, enum)
		}
		for i, v := range want {
			if enum[i] != v {
				t.Errorf("position %d: expected %q, got %v", i, v, enum[i])
			}
		}
	})
}

func TestRegistry(t *testing.T) {
	noop := func(ctx context.Context, input map[string]any) (string, error) { return "", nil }

	t.Run("definitions follow registration order", func(t *testing.T) {
		r := NewRegistry()
		r.Register(NewTool("b", "second", struct{}{}, noop))
		r.Register(NewTool("a", "first", struct{}{}, noop))
		r.Register(NewTool("c", "third", struct{}{}, noop))

		names := r.Names()
		want := []string{"b", "a", "c"}
		for i, n := range want {
			if names[i] != n {
				t.Errorf("position %d: expected %q, got %q", i, n, names[i])
			}
		}
	})

	t.Run("replace keeps position", func(t *testing.T) {
		r := NewRegistry()
		r.Register(NewTool("a", "v1", struct{}{}, noop))
		r.Register(NewTool("b", "x", struct{}{}, noop))
		r.Register(NewTool("a", "v2", struct{}{}, noop))

		if r.Count() != 2 {
			t.Errorf("expected 2 tools, got %d", r.Count())
		}
		defs := r.Definitions()
		if defs[0].Name != "a" || defs[0].Description != "v2" {
			t.Errorf("expected replaced tool first, got %+v", defs[0])
		}
	})

	t.Run("filter subset", func(t *testing.T) {
		r := NewRegistry()
		r.Register(NewTool("bash", "", struct{}{}, noop))
		r.Register(NewTool("read_file", "", struct{}{}, noop))
		r.Register(NewTool("write_file", "", struct{}{}, noop))

		sub := r.Filter([]string{"read_file", "bash", "missing"})
		names := sub.Names()
		// Registration order of the source registry, not allow-list order.
		if len(names) != 2 || names[0] != "bash" || names[1] != "read_file" {
			t.Errorf("expected [bash read_file], got %v", names)
		}
	})

	t.Run("filter wildcard", func(t *testing.T) {
		r := NewRegistry()
		r.Register(NewTool("bash", "", struct{}{}, noop))
		r.Register(NewTool("read_file", "", struct{}{}, noop))

		all := r.Filter([]string{"*"})
		if all.Count() != 2 {
			t.Errorf("expected all tools, got %d", all.Count())
		}
	})
}

func TestDispatch(t *testing.T) {
	newDispatcher := func(tools ...Tool) *Dispatcher {
		r := NewRegistry()
		for _, tool := range tools {
			r.Register(tool)
		}
		return NewDispatcher(r, nil, nil, "test-loop", 0, nil)
	}

	t.Run("unknown tool", func(t *testing.T) {
		d := newDispatcher()
		got := d.Dispatch(context.Background(), "nope", json.RawMessage(`{}`))
		if got != "Unknown tool: nope" {
			t.Errorf("expected unknown tool message, got %q", got)
		}
	})

	t.Run("invalid input json", func(t *testing.T) {
		d := newDispatcher()
		got := d.Dispatch(context.Background(), "bash", json.RawMessage(`{not json`))
		if !strings.HasPrefix(got, "Error: invalid tool input:") {
			t.Errorf("expected invalid input message, got %q", got)
		}
	})

	t.Run("missing required parameter", func(t *testing.T) {
		d := newDispatcher(NewTool("write_file", "", writeFileParams{},
			func(ctx context.Context, input map[string]any) (string, error) {
				t.Fatal("handler should not run")
				return "", nil
			}))
		got := d.Dispatch(context.Background(), "write_file", json.RawMessage(`{"content":"x"}`))
		if got != "Error: Missing 'path' parameter" {
			t.Errorf("expected missing path message, got %q", got)
		}
	})

	t.Run("handler error becomes result text", func(t *testing.T) {
		d := newDispatcher(NewTool("boom", "", struct{}{},
			func(ctx context.Context, input map[string]any) (string, error) {
				return "", errors.New("it broke")
			}))
		got := d.Dispatch(context.Background(), "boom", json.RawMessage(`{}`))
		if got != "Error: it broke" {
			t.Errorf("expected handler error text, got %q", got)
		}
	})

	t.Run("empty output replaced", func(t *testing.T) {
		d := newDispatcher(NewTool("quiet", "", struct{}{},
			func(ctx context.Context, input map[string]any) (string, error) {
				return "", nil
			}))
		got := d.Dispatch(context.Background(), "quiet", json.RawMessage(`{}`))
		if got != "(no output)" {
			t.Errorf("expected placeholder, got %q", got)
		}
	})

	t.Run("oversized output capped", func(t *testing.T) {
		big := strings.Repeat("x", maxToolResultBytes+100)
		d := newDispatcher(NewTool("talky", "", struct{}{},
			func(ctx context.Context, input map[string]any) (string, error) {
				return big, nil
			}))
		got := d.Dispatch(context.Background(), "talky", json.RawMessage(`{}`))
		if !strings.HasSuffix(got, "...(truncated)") {
			t.Errorf("expected truncation marker, got tail %q", got[len(got)-20:])
		}
		if len(got) > maxToolResultBytes+len("...(truncated)") {
			t.Errorf("output not capped: %d bytes", len(got))
		}
	})

	t.Run("weakly typed numeric arguments", func(t *testing.T) {
		var seen readFileParams
		d := newDispatcher(NewTool("read_file", "", readFileParams{},
			func(ctx context.Context, input map[string]any) (string, error) {
				if err := decodeParams(input, &seen); err != nil {
					return "", err
				}
				return "ok", nil
			}))
		got := d.Dispatch(context.Background(), "read_file", json.RawMessage(`{"path":"a.txt","limit":5}`))
		if got != "ok" {
			t.Fatalf("unexpected result %q", got)
		}
		if seen.Path != "a.txt" || seen.Limit != 5 {
			t.Errorf("expected decoded params, got %+v", seen)
		}
	})
}
