package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/loopwright/drover/llm"
)

// Handler executes one tool call. The input map holds the already-parsed
// JSON arguments; handlers decode it into their param struct and return
// the model-facing result text. A returned error is surfaced to the model
// as an "Error: ..." result, never as a hard failure of the turn.
type Handler func(ctx context.Context, input map[string]any) (string, error)

// Tool pairs a model-facing definition with its handler.
type Tool struct {
	Def     llm.Tool
	Handler Handler
}

// NewTool builds a Tool whose input schema is reflected from the params
// struct. Field names, descriptions and the required list come from the
// struct's json and jsonschema tags.
func NewTool(name, description string, params any, h Handler) Tool {
	return Tool{
		Def: llm.Tool{
			Name:        name,
			Description: description,
			InputSchema: ReflectSchema(params),
		},
		Handler: h,
	}
}

// ReflectSchema derives a JSON Schema object for a tool's parameters from
// a struct. The schema is inlined (no $ref / $defs) and returned as a
// plain map so callers can patch it before registration.
func ReflectSchema(params any) map[string]any {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		Anonymous:                 true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(params)
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m
}

// decodeParams fills a param struct from parsed tool input. JSON numbers
// arrive as float64, so weakly typed decoding is required for int fields.
func decodeParams(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

// requiredFields extracts the schema's required list in declaration order.
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		fields := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	default:
		return nil
	}
}

// Registry manages tool registration and lookup. Registration order is
// preserved so tool definitions reach the model in a stable order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool. A replaced tool keeps its original
// position in the registration order.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Def.Name]; !exists {
		r.order = append(r.order, t.Def.Name)
	}
	r.tools[t.Def.Name] = t
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns all tool definitions in registration order, for
// sending to the model.
func (r *Registry) Definitions() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Def)
	}
	return defs
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Filter returns a new registry holding the allowed subset of tools. A
// single "*" entry allows every tool; otherwise the result is the
// intersection of allow and the registry, in registration order.
func (r *Registry) Filter(allow []string) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wildcard := false
	allowed := make(map[string]bool, len(allow))
	for _, name := range allow {
		if name == "*" {
			wildcard = true
		}
		allowed[name] = true
	}

	out := NewRegistry()
	for _, name := range r.order {
		if wildcard || allowed[name] {
			out.Register(r.tools[name])
		}
	}
	return out
}

// Dispatcher turns tool-use requests into result strings. It owns the
// in-band error contract: whatever goes wrong, the model gets a string
// back and the turn continues.
type Dispatcher struct {
	registry *Registry
	guard    *LoopGuard
	emitter  *Emitter
	loopID   string
	depth    int
	log      *zap.Logger
}

// NewDispatcher creates a Dispatcher over a registry. guard may be nil.
func NewDispatcher(registry *Registry, guard *LoopGuard, emitter *Emitter, loopID string, depth int, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		registry: registry,
		guard:    guard,
		emitter:  emitter,
		loopID:   loopID,
		depth:    depth,
		log:      log,
	}
}

// Dispatch runs one tool call and always returns a model-facing string.
// Unknown names, missing required fields and handler errors all come back
// as result text; oversized results are capped, empty ones replaced.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, input json.RawMessage) string {
	args := map[string]any{}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return fmt.Sprintf("Error: invalid tool input: %v", err)
		}
	}

	tool, ok := d.registry.Get(name)
	if !ok {
		return fmt.Sprintf("Unknown tool: %s", name)
	}

	for _, field := range requiredFields(tool.Def.InputSchema) {
		if _, present := args[field]; !present {
			return fmt.Sprintf("Error: Missing '%s' parameter", field)
		}
	}

	if d.guard != nil {
		if advisory, looping := d.guard.Check(name, args); looping {
			d.log.Warn("repetitive tool call blocked",
				zap.String("tool", name),
				zap.String("loop_id", d.loopID))
			d.emitter.Emit(EventLoopDetected, d.loopID, d.depth, map[string]any{
				"tool": name,
			})
			return advisory
		}
	}

	out, err := tool.Handler(ctx, args)
	if err != nil {
		d.log.Debug("tool error",
			zap.String("tool", name),
			zap.Error(err))
		return capToolResult("Error: " + err.Error())
	}
	return capToolResult(out)
}
