package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
)

const (
	guardWindowSize  = 10
	guardRepeatLimit = 3
)

// LoopGuard watches the stream of tool calls for an identical call
// repeating enough times to suggest the model is stuck. A disabled guard
// records nothing and never trips.
type LoopGuard struct {
	enabled bool
	mu      sync.Mutex
	window  []string
}

// NewLoopGuard creates a guard. Detection runs only when enabled.
func NewLoopGuard(enabled bool) *LoopGuard {
	return &LoopGuard{enabled: enabled}
}

// callSignature computes a deterministic signature for a tool call: name
// plus a hash of the canonical JSON form of the input (map keys marshal
// in sorted order, so equal inputs always hash alike).
func callSignature(name string, input map[string]any) string {
	raw, err := json.Marshal(input)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", input))
	}
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%x", name, h[:8])
}

// Check records one call and reports whether to short-circuit it. The
// guard trips when the call's signature already appeared at least
// guardRepeatLimit-1 times in the recent window; the returned advisory is
// sent to the model in place of re-executing the tool.
func (g *LoopGuard) Check(name string, input map[string]any) (string, bool) {
	if g == nil || !g.enabled {
		return "", false
	}
	sig := callSignature(name, input)

	g.mu.Lock()
	defer g.mu.Unlock()

	repeats := 1
	for _, prev := range g.window {
		if prev == sig {
			repeats++
		}
	}
	g.window = append(g.window, sig)
	if len(g.window) > guardWindowSize {
		g.window = g.window[len(g.window)-guardWindowSize:]
	}

	if repeats >= guardRepeatLimit {
		return fmt.Sprintf("[SYSTEM: Tool '%s' was called %d times with identical input. The call was skipped. Vary the input or try a different approach.]",
			name, repeats), true
	}
	return "", false
}
