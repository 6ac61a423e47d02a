package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loopwright/drover/llm"
)

// AgentType describes a class of subagent: what it is for, which base
// tools it may use, and the prompt fragment shaping its behavior. A
// single "*" in Tools allows the full base toolset.
type AgentType struct {
	Name        string
	Description string
	Tools       []string
	Prompt      string
}

// BuiltinAgentTypes returns the default agent-type registry in its
// canonical order.
func BuiltinAgentTypes() []AgentType {
	return []AgentType{
		{
			Name:        "explore",
			Description: "Read-only agent for exploring code, finding files, searching",
			Tools:       []string{"bash", "read_file"},
			Prompt:      "You are an exploration agent. Search and analyze, but never modify files. Return a concise summary.",
		},
		{
			Name:        "code",
			Description: "Full agent for implementing features and fixing bugs",
			Tools:       []string{"*"},
			Prompt:      "You are a coding agent. Implement the requested changes efficiently.",
		},
		{
			Name:        "plan",
			Description: "Planning agent for designing implementation strategies",
			Tools:       []string{"bash", "read_file"},
			Prompt:      "You are a planning agent. Analyze the codebase and output a numbered implementation plan. Do NOT make changes.",
		},
	}
}

// subagentPromptTemplate frames a subagent's system prompt around its
// type-specific fragment.
const subagentPromptTemplate = `You are a %s subagent at %s.

%s

Complete the task and return a clear, concise summary.`

// Spawner runs subagent loops on behalf of the Task tool. Each spawn
// builds a fresh child loop with an isolated history, a filtered toolset
// and its own truncation budget; only the child's final summary text
// crosses back to the parent.
type Spawner struct {
	types    []AgentType
	byName   map[string]AgentType
	depth    int
	maxDepth int
	newLoop  func(t AgentType) (*Loop, error)
	emitter  *Emitter
	parentID string
	log      *zap.Logger
}

// NewSpawner creates a Spawner for a loop at the given depth. newLoop
// constructs the child loop for a resolved agent type.
func NewSpawner(types []AgentType, depth, maxDepth int, parentID string, emitter *Emitter, log *zap.Logger, newLoop func(t AgentType) (*Loop, error)) *Spawner {
	if log == nil {
		log = zap.NewNop()
	}
	byName := make(map[string]AgentType, len(types))
	for _, t := range types {
		byName[t.Name] = t
	}
	return &Spawner{
		types:    types,
		byName:   byName,
		depth:    depth,
		maxDepth: maxDepth,
		newLoop:  newLoop,
		emitter:  emitter,
		parentID: parentID,
		log:      log,
	}
}

// Descriptions renders the agent-type catalog for prompts and the Task
// tool description, one "- name: description" line per type.
func (s *Spawner) Descriptions() string {
	return agentTypeDescriptions(s.types)
}

// TypeNames returns the registered agent type names in canonical order.
func (s *Spawner) TypeNames() []string {
	names := make([]string, len(s.types))
	for i, t := range s.types {
		names[i] = t.Name
	}
	return names
}

func agentTypeDescriptions(types []AgentType) string {
	if len(types) == 0 {
		return "(no agent types available)"
	}
	lines := make([]string, len(types))
	for i, t := range types {
		lines[i] = fmt.Sprintf("- %s: %s", t.Name, t.Description)
	}
	return strings.Join(lines, "\n")
}

// Spawn runs one subagent to completion and returns its summary text.
// Every failure comes back as a result string; a subagent never aborts
// the parent turn.
func (s *Spawner) Spawn(ctx context.Context, agentType, description, prompt string) string {
	t, ok := s.byName[agentType]
	if !ok {
		return fmt.Sprintf("Error: Unknown agent type '%s'. Available types: %s",
			agentType, strings.Join(s.TypeNames(), ", "))
	}
	if s.depth >= s.maxDepth {
		return fmt.Sprintf("Error: subagent depth limit reached (max %d)", s.maxDepth)
	}

	child, err := s.newLoop(t)
	if err != nil {
		return fmt.Sprintf("Error: subagent failed: %v", err)
	}

	s.log.Info("subagent start",
		zap.String("agent_type", agentType),
		zap.String("description", description),
		zap.String("child_id", child.ID()))
	s.emitter.Emit(EventSubagentStart, s.parentID, s.depth, map[string]any{
		"agent_type":  agentType,
		"description": description,
		"child_id":    child.ID(),
	})

	start := time.Now()
	_, runErr := child.Run(ctx, prompt)
	elapsed := time.Since(start)

	data := map[string]any{
		"agent_type":  agentType,
		"description": description,
		"child_id":    child.ID(),
		"duration_ms": elapsed.Milliseconds(),
	}
	if runErr != nil {
		data["error"] = runErr.Error()
	}
	s.emitter.Emit(EventSubagentEnd, s.parentID, s.depth, data)

	if runErr != nil {
		s.log.Warn("subagent failed",
			zap.String("agent_type", agentType),
			zap.Error(runErr))
		return fmt.Sprintf("Error: subagent failed: %v", runErr)
	}
	return firstAssistantText(child.History())
}

// firstAssistantText returns the first Text block of the final assistant
// message in history.
func firstAssistantText(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != llm.RoleAssistant {
			continue
		}
		if text, ok := history[i].FirstText(); ok {
			return text
		}
		break
	}
	return "(subagent returned no text)"
}

type taskParams struct {
	Description string `json:"description" jsonschema:"description=Short task name (3-5 words) for progress display"`
	Prompt      string `json:"prompt" jsonschema:"description=Detailed instructions for the subagent"`
	AgentType   string `json:"agent_type" jsonschema:"description=Type of agent to spawn"`
}

// RegisterTaskTool registers the Task delegation tool over a spawner. The
// agent-type catalog is baked into the description and the agent_type
// enum at registration time.
func RegisterTaskTool(reg *Registry, spawner *Spawner) {
	description := fmt.Sprintf(`Spawn a subagent for a focused subtask.

Agent types:
%s

Example uses:
- Task(explore): "Find all files using the auth module"
- Task(plan): "Design a migration strategy for the database"
- Task(code): "Implement the user registration form"
`, spawner.Descriptions())

	tool := NewTool("Task", description, taskParams{},
		func(ctx context.Context, input map[string]any) (string, error) {
			var p taskParams
			if err := decodeParams(input, &p); err != nil {
				return "", err
			}
			return spawner.Spawn(ctx, p.AgentType, p.Description, p.Prompt), nil
		})

	if props, ok := tool.Def.InputSchema["properties"].(map[string]any); ok {
		if at, ok := props["agent_type"].(map[string]any); ok {
			at["enum"] = spawner.TypeNames()
		}
	}
	reg.Register(tool)
}
