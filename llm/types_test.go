package llm

import (
	"encoding/json"
	"testing"
)

func TestMessageConstructors(t *testing.T) {
	t.Run("UserMessage", func(t *testing.T) {
		msg := UserMessage("Hello")
		if msg.Role != RoleUser {
			t.Errorf("expected role %q, got %q", RoleUser, msg.Role)
		}
		if msg.TextContent() != "Hello" {
			t.Errorf("expected text %q, got %q", "Hello", msg.TextContent())
		}
	})

	t.Run("AssistantMessage", func(t *testing.T) {
		msg := AssistantMessage("Hi there")
		if msg.Role != RoleAssistant {
			t.Errorf("expected role %q, got %q", RoleAssistant, msg.Role)
		}
		if msg.TextContent() != "Hi there" {
			t.Errorf("expected text %q, got %q", "Hi there", msg.TextContent())
		}
	})

	t.Run("UserBlocks", func(t *testing.T) {
		msg := UserBlocks(
			ToolResultBlock("toolu_1", "ok", false),
			ToolResultBlock("toolu_2", "Error: nope", true),
		)
		if msg.Role != RoleUser {
			t.Errorf("expected role %q, got %q", RoleUser, msg.Role)
		}
		if len(msg.Content) != 2 {
			t.Fatalf("expected 2 blocks, got %d", len(msg.Content))
		}
		if msg.Content[0].ToolResult.ToolUseID != "toolu_1" {
			t.Errorf("expected tool_use_id %q, got %q", "toolu_1", msg.Content[0].ToolResult.ToolUseID)
		}
		if !msg.Content[1].ToolResult.IsError {
			t.Error("expected second result to be an error")
		}
	})
}

func TestBlockConstructors(t *testing.T) {
	t.Run("TextBlock", func(t *testing.T) {
		b := TextBlock("hello")
		if b.Kind != BlockText {
			t.Errorf("expected kind %q, got %q", BlockText, b.Kind)
		}
		if b.Text != "hello" {
			t.Errorf("expected text %q, got %q", "hello", b.Text)
		}
	})

	t.Run("ToolUseBlock", func(t *testing.T) {
		input := json.RawMessage(`{"command":"ls"}`)
		b := ToolUseBlock("toolu_1", "bash", input)
		if b.Kind != BlockToolUse {
			t.Errorf("expected kind %q, got %q", BlockToolUse, b.Kind)
		}
		if b.ToolUse.ID != "toolu_1" || b.ToolUse.Name != "bash" {
			t.Errorf("unexpected tool use: %+v", b.ToolUse)
		}
		if string(b.ToolUse.Input) != `{"command":"ls"}` {
			t.Errorf("input not preserved: %s", b.ToolUse.Input)
		}
	})

	t.Run("ToolResultBlock", func(t *testing.T) {
		b := ToolResultBlock("toolu_1", "output", true)
		if b.Kind != BlockToolResult {
			t.Errorf("expected kind %q, got %q", BlockToolResult, b.Kind)
		}
		if b.ToolResult.Content != "output" || !b.ToolResult.IsError {
			t.Errorf("unexpected tool result: %+v", b.ToolResult)
		}
	})
}

func TestMessageTextContent(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Content: []ContentBlock{
			TextBlock("part one"),
			ToolUseBlock("toolu_1", "bash", json.RawMessage(`{}`)),
			TextBlock(" part two"),
		},
	}
	if got := msg.TextContent(); got != "part one part two" {
		t.Errorf("expected concatenated text, got %q", got)
	}
}

func TestMessageFirstText(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Content: []ContentBlock{
			ToolUseBlock("toolu_1", "bash", json.RawMessage(`{}`)),
			TextBlock("first"),
			TextBlock("second"),
		},
	}
	text, ok := msg.FirstText()
	if !ok || text != "first" {
		t.Errorf("expected (first, true), got (%q, %v)", text, ok)
	}

	empty := Message{Role: RoleAssistant}
	if _, ok := empty.FirstText(); ok {
		t.Error("expected no text in empty message")
	}
}

func TestMessageToolUses(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Content: []ContentBlock{
			TextBlock("Let me check."),
			ToolUseBlock("toolu_1", "bash", json.RawMessage(`{"command":"ls"}`)),
			ToolUseBlock("toolu_2", "read_file", json.RawMessage(`{"path":"a.go"}`)),
		},
	}
	uses := msg.ToolUses()
	if len(uses) != 2 {
		t.Fatalf("expected 2 tool uses, got %d", len(uses))
	}
	if uses[0].ID != "toolu_1" || uses[1].ID != "toolu_2" {
		t.Errorf("tool use order not preserved: %v, %v", uses[0].ID, uses[1].ID)
	}
}

func TestStopReasonTerminal(t *testing.T) {
	tests := []struct {
		reason   StopReason
		terminal bool
	}{
		{StopEndTurn, true},
		{StopStopSequence, true},
		{StopReason(""), true},
		{StopToolUse, false},
		{StopMaxTokens, false},
	}
	for _, tt := range tests {
		if got := tt.reason.Terminal(); got != tt.terminal {
			t.Errorf("Terminal(%q) = %v, want %v", tt.reason, got, tt.terminal)
		}
	}
}

func TestResponseHelpers(t *testing.T) {
	resp := &Response{
		Content: []ContentBlock{
			TextBlock("Running a command."),
			ToolUseBlock("toolu_1", "bash", json.RawMessage(`{"command":"pwd"}`)),
		},
		StopReason: StopToolUse,
	}

	if resp.Text() != "Running a command." {
		t.Errorf("unexpected text: %q", resp.Text())
	}
	if len(resp.ToolUses()) != 1 {
		t.Fatalf("expected 1 tool use, got %d", len(resp.ToolUses()))
	}

	am := resp.AssistantMessage()
	if am.Role != RoleAssistant {
		t.Errorf("expected assistant role, got %q", am.Role)
	}
	if len(am.Content) != 2 {
		t.Errorf("expected content preserved verbatim, got %d blocks", len(am.Content))
	}
}

func TestUsageAdd(t *testing.T) {
	ten := 10
	a := Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150, CacheReadTokens: &ten}
	b := Usage{InputTokens: 20, OutputTokens: 5, TotalTokens: 25}

	sum := a.Add(b)
	if sum.InputTokens != 120 || sum.OutputTokens != 55 || sum.TotalTokens != 175 {
		t.Errorf("unexpected sum: %+v", sum)
	}
	if sum.CacheReadTokens == nil || *sum.CacheReadTokens != 10 {
		t.Errorf("expected cache read tokens carried through, got %v", sum.CacheReadTokens)
	}
	if sum.CacheWriteTokens != nil {
		t.Errorf("expected nil cache write tokens, got %v", sum.CacheWriteTokens)
	}
}
