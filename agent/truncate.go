package agent

import (
	"fmt"
	"unicode/utf8"
)

// maxToolResultBytes caps every tool result forwarded to the model.
const maxToolResultBytes = 50000

// retryMessage is appended as a synthetic user message after a truncated
// response, steering the model toward a shorter answer or file output.
const retryMessage = "[SYSTEM: Your previous response was truncated due to length. Please provide a brief summary, or write large content to a file using write_file tool.]"

// subagentRetryMessage is the tighter variant used inside subagent loops.
const subagentRetryMessage = "[SYSTEM: Response truncated. Provide a brief summary only (max 200 words).]"

// truncationGuidance explains how to get past repeated truncation once the
// retry budget is spent.
func truncationGuidance(count, maxOutputTokens int) string {
	return fmt.Sprintf(
		"Response truncated %d times in a row. Task may be too complex.\n\n"+
			"Hint: Break the task into smaller steps, or write large outputs\n"+
			"to files using write_file.\n\n"+
			"You can also increase DROVER_MAX_OUTPUT_TOKENS (current: %d)",
		count, maxOutputTokens)
}

// TruncateUTF8 cuts s to at most maxBytes, backing up so the cut never
// splits a multi-byte rune.
func TruncateUTF8(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	if maxBytes < 0 {
		maxBytes = 0
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// capToolResult normalizes a tool result before it is sent to the model:
// empty results become a placeholder, oversized results are cut at a rune
// boundary and marked.
func capToolResult(s string) string {
	if s == "" {
		return "(no output)"
	}
	if len(s) > maxToolResultBytes {
		return TruncateUTF8(s, maxToolResultBytes) + "...(truncated)"
	}
	return s
}
