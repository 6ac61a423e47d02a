package agent

import (
	"github.com/loopwright/drover/llm"
)

const (
	// contextWindow is the model context size the estimate is measured
	// against. The loop targets Claude-class models; 200k is their shared
	// window and the estimate below is deliberately rough.
	contextWindow = 200000

	// outputRatio caps the output ceiling at a fraction of the remaining
	// window so the reply cannot crowd out the next round's context.
	outputRatio = 0.4

	// minOutputTokens is the floor for the computed ceiling. Below this the
	// model cannot produce a useful reply, so the floor wins even over a
	// smaller configured maximum.
	minOutputTokens = 4000
)

// Subagent loops run with a tighter ceiling and retry budget than their
// parent: they are expected to return summaries, not long documents.
const (
	subagentMaxOutputTokens   = 8000
	subagentTruncationRetries = 2
)

// Budget computes per-call output-token ceilings and tracks consecutive
// truncations. Each loop instance owns its own Budget; a subagent's counter
// and ceiling are independent of its parent's.
type Budget struct {
	MaxOutputTokens      int
	MaxTruncationRetries int

	truncations int
}

// NewBudget creates a budget with the given clamped configuration values.
func NewBudget(maxOutputTokens, maxTruncationRetries int) *Budget {
	return &Budget{
		MaxOutputTokens:      maxOutputTokens,
		MaxTruncationRetries: maxTruncationRetries,
	}
}

// EstimateTokens approximates the tokens consumed by a conversation using
// the 4-chars-per-token rule of thumb. All text-bearing content counts:
// text blocks, serialized tool inputs, tool result contents, and the
// system prompt.
func EstimateTokens(history []llm.Message, systemPrompt string) int {
	chars := len(systemPrompt)
	for _, msg := range history {
		for _, block := range msg.Content {
			switch block.Kind {
			case llm.BlockText:
				chars += len(block.Text)
			case llm.BlockToolUse:
				if block.ToolUse != nil {
					chars += len(block.ToolUse.Input)
				}
			case llm.BlockToolResult:
				if block.ToolResult != nil {
					chars += len(block.ToolResult.Content)
				}
			}
		}
	}
	return chars / 4
}

// MaxOutput returns the output-token ceiling for the next model call.
// It is recomputed before every call — never cached — because history
// grows within a turn sequence. The configured maximum bounds the result
// from above and the floor bounds it from below; the floor wins when the
// two conflict.
func (b *Budget) MaxOutput(history []llm.Message, systemPrompt string) int {
	estimate := EstimateTokens(history, systemPrompt)
	available := contextWindow - estimate
	if available < 0 {
		available = 0
	}

	candidate := int(float64(available) * outputRatio)
	if candidate > b.MaxOutputTokens {
		candidate = b.MaxOutputTokens
	}
	if candidate < minOutputTokens {
		candidate = minOutputTokens
	}
	return candidate
}

// RecordTruncation increments the consecutive-truncation counter and
// returns the new count.
func (b *Budget) RecordTruncation() int {
	b.truncations++
	return b.truncations
}

// ResetTruncations clears the counter. Called on any non-truncation stop.
func (b *Budget) ResetTruncations() {
	b.truncations = 0
}

// Truncations returns the current consecutive-truncation count.
func (b *Budget) Truncations() int {
	return b.truncations
}

// Exhausted reports whether the truncation retry budget is spent.
func (b *Budget) Exhausted() bool {
	return b.truncations >= b.MaxTruncationRetries
}
