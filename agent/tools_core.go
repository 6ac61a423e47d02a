package agent

import (
	"context"
	"fmt"
	"strings"
)

type bashParams struct {
	Command string `json:"command" jsonschema:"description=The shell command to execute"`
}

type readFileParams struct {
	Path  string `json:"path" jsonschema:"description=Relative path to the file"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Max lines to read (default: all)"`
}

type writeFileParams struct {
	Path    string `json:"path" jsonschema:"description=Relative path for the file"`
	Content string `json:"content" jsonschema:"description=Content to write"`
}

type editFileParams struct {
	Path    string `json:"path" jsonschema:"description=Relative path to the file"`
	OldText string `json:"old_text" jsonschema:"description=Exact text to find (must match precisely)"`
	NewText string `json:"new_text" jsonschema:"description=Replacement text"`
}

type webSearchParams struct {
	Query      string `json:"query" jsonschema:"description=The search query to find information about"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=10,description=Maximum number of results to return (default: 5)"`
}

type todoWriteParams struct {
	Items []TodoItem `json:"items" jsonschema:"description=Complete list of tasks (replaces existing)"`
}

type skillParams struct {
	Skill string `json:"skill" jsonschema:"description=Name of the skill to load"`
}

// RegisterCoreTools registers the base toolset on a registry. These are
// the tools available to every loop, parent or subagent; delegation (Task)
// and skill loading (Skill) are registered separately.
func RegisterCoreTools(reg *Registry, env Environment, todos *TodoList, emitter *Emitter, loopID string) {
	registerBash(reg, env)
	registerReadFile(reg, env)
	registerWriteFile(reg, env)
	registerEditFile(reg, env)
	registerWebSearch(reg, env)
	registerTodoWrite(reg, todos, emitter, loopID)
}

func registerBash(reg *Registry, env Environment) {
	reg.Register(NewTool("bash", "Run a shell command.", bashParams{},
		func(ctx context.Context, input map[string]any) (string, error) {
			var p bashParams
			if err := decodeParams(input, &p); err != nil {
				return "", err
			}
			return env.ExecCommand(ctx, p.Command)
		}))
}

func registerReadFile(reg *Registry, env Environment) {
	reg.Register(NewTool("read_file", "Read file contents.", readFileParams{},
		func(ctx context.Context, input map[string]any) (string, error) {
			var p readFileParams
			if err := decodeParams(input, &p); err != nil {
				return "", err
			}
			return env.ReadFile(p.Path, p.Limit)
		}))
}

func registerWriteFile(reg *Registry, env Environment) {
	reg.Register(NewTool("write_file", "Write content to file.", writeFileParams{},
		func(ctx context.Context, input map[string]any) (string, error) {
			var p writeFileParams
			if err := decodeParams(input, &p); err != nil {
				return "", err
			}
			if err := env.WriteFile(p.Path, p.Content); err != nil {
				return "", err
			}
			return fmt.Sprintf("Wrote %d bytes to %s", len(p.Content), p.Path), nil
		}))
}

func registerEditFile(reg *Registry, env Environment) {
	reg.Register(NewTool("edit_file", "Replace exact text in file.", editFileParams{},
		func(ctx context.Context, input map[string]any) (string, error) {
			var p editFileParams
			if err := decodeParams(input, &p); err != nil {
				return "", err
			}
			if err := env.EditFile(p.Path, p.OldText, p.NewText); err != nil {
				return "", err
			}
			return fmt.Sprintf("Edited %s", p.Path), nil
		}))
}

func registerWebSearch(reg *Registry, env Environment) {
	reg.Register(NewTool("web_search",
		"Search the web using DuckDuckGo. Use this to find current information about any topic.",
		webSearchParams{},
		func(ctx context.Context, input map[string]any) (string, error) {
			var p webSearchParams
			if err := decodeParams(input, &p); err != nil {
				return "", err
			}
			if p.MaxResults <= 0 {
				p.MaxResults = 5
			}
			results, err := env.Search(ctx, p.Query, p.MaxResults)
			if err != nil {
				return fmt.Sprintf("Error performing web search: %v", err), nil
			}
			if len(results) == 0 {
				return fmt.Sprintf("No search results found for: %s", p.Query), nil
			}
			parts := make([]string, len(results))
			for i, r := range results {
				parts[i] = fmt.Sprintf("%d. **%s**\n   URL: %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
			}
			return fmt.Sprintf("## Search Results for: %s\n\n%s", p.Query, strings.Join(parts, "\n")), nil
		}))
}

func registerTodoWrite(reg *Registry, todos *TodoList, emitter *Emitter, loopID string) {
	reg.Register(NewTool("TodoWrite", "Update the task list. Use to plan and track progress.", todoWriteParams{},
		func(ctx context.Context, input map[string]any) (string, error) {
			var p todoWriteParams
			if err := decodeParams(input, &p); err != nil {
				return "", err
			}
			rendered, err := todos.Update(p.Items)
			if err != nil {
				return "", err
			}
			emitter.Emit(EventTodoUpdated, loopID, 0, map[string]any{
				"rendered": rendered,
				"count":    len(p.Items),
			})
			return rendered, nil
		}))
}

// RegisterSkillTool registers the Skill tool over a skill set. The
// available skill descriptions are baked into the tool description at
// registration time; resolved skill content reaches the model only
// through this tool's results, never through the system prompt.
func RegisterSkillTool(reg *Registry, skills *SkillSet) {
	description := fmt.Sprintf(`Load a skill to gain specialized knowledge for a task.

Available skills:
%s

When to use:
- IMMEDIATELY when user task matches a skill description
- Before attempting domain-specific work (PDF, MCP, etc.)

The skill content will be injected into the conversation, giving you
detailed instructions and access to resources.`, skills.Descriptions())

	reg.Register(NewTool("Skill", description, skillParams{},
		func(ctx context.Context, input map[string]any) (string, error) {
			var p skillParams
			if err := decodeParams(input, &p); err != nil {
				return "", err
			}
			content, ok := skills.Resolve(p.Skill)
			if !ok {
				available := strings.Join(skills.Names(), ", ")
				if available == "" {
					available = "none"
				}
				return fmt.Sprintf("Error: Unknown skill '%s'. Available: %s", p.Skill, available), nil
			}
			return fmt.Sprintf("<skill-loaded name=%q>\n%s\n</skill-loaded>\n\nFollow the instructions in the skill above to complete the user's task.",
				p.Skill, content), nil
		}))
}
