package agent

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const maxProjectDocBytes = 32 * 1024

// basePromptTemplate is the core instruction set for the top-level agent.
// The skill and agent-type catalogs are baked in once, before the first
// turn, so the prompt prefix stays stable for provider-side caching.
const basePromptTemplate = `You are a coding agent at %s.

Loop: plan -> act with tools -> report.

**Skills available** (invoke with Skill tool when task matches):
%s

**Subagents available** (invoke with Task tool for focused subtasks):
%s

Rules:
- Use Skill tool IMMEDIATELY when a task matches a skill description
- Use Task tool for subtasks needing focused exploration or implementation
- Use TodoWrite to track multi-step work
- Prefer tools over prose. Act, don't just explain.
- After finishing, summarize what changed.`

// BuildSystemPrompt assembles the full system prompt: base instructions,
// provider-specific preamble, environment context, then any project
// instruction files found near the workspace.
func BuildSystemPrompt(env Environment, model, provider, skillDescriptions, agentDescriptions string) string {
	sections := []string{
		fmt.Sprintf(basePromptTemplate, env.WorkingDirectory(), skillDescriptions, agentDescriptions),
	}

	if preamble := providerPreamble(provider); preamble != "" {
		sections = append(sections, preamble)
	}

	sections = append(sections, BuildEnvironmentContext(env, model))

	if docs := DiscoverProjectDocs(env.WorkingDirectory(), provider); docs != "" {
		sections = append(sections, "# Project Instructions\n\n"+docs)
	}

	return strings.Join(sections, "\n\n")
}

// providerPreamble returns provider-specific working-style guidance.
func providerPreamble(provider string) string {
	switch provider {
	case "anthropic":
		return `# Working Style

- Read files before editing them. The old_text parameter of edit_file must match the file exactly; if it is not found, re-read the file and retry with the current content.
- Keep changes minimal and focused. Prefer editing existing files over creating new ones.
- After making changes, verify them by reading the modified file or running relevant commands.`
	case "openai":
		return `# Working Style

- Read files before editing them and keep each edit small and precise.
- If an edit fails because the text was not found, re-read the file to get the current content before retrying.
- Verify changes by reading the modified file or running relevant commands.`
	case "gemini":
		return `# Working Style

- Read files before editing them. Understand existing code before modifying it.
- Keep changes minimal and focused. Only make changes that are directly requested or clearly necessary.
- Verify changes by reading the modified file or running relevant commands.`
	default:
		return ""
	}
}

// BuildEnvironmentContext generates the structured environment context
// block appended to the system prompt.
func BuildEnvironmentContext(env Environment, model string) string {
	workingDir := env.WorkingDirectory()
	isGitRepo := isGitRepository(workingDir)
	gitBranch := ""
	if isGitRepo {
		gitBranch = getGitBranch(workingDir)
	}

	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", workingDir)
	fmt.Fprintf(&sb, "Is git repository: %v\n", isGitRepo)
	if gitBranch != "" {
		fmt.Fprintf(&sb, "Git branch: %s\n", gitBranch)
	}
	fmt.Fprintf(&sb, "Platform: %s\n", env.Platform())
	fmt.Fprintf(&sb, "OS version: %s\n", env.OSVersion())
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	sb.WriteString("</environment>")
	return sb.String()
}

// DiscoverProjectDocs finds and loads project instruction files, walking
// from the git root (or the working directory) down to the working
// directory. AGENTS.md is always recognized; one provider-specific file is
// added on top. Total content is capped at 32KB.
func DiscoverProjectDocs(workingDir string, provider string) string {
	root := gitRoot(workingDir)
	if root == "" {
		root = workingDir
	}

	recognized := []string{"AGENTS.md"}
	switch provider {
	case "anthropic":
		recognized = append(recognized, "CLAUDE.md")
	case "gemini":
		recognized = append(recognized, "GEMINI.md")
	case "openai":
		recognized = append(recognized, ".codex/instructions.md")
	}

	var docs []string
	totalBytes := 0

	for _, dir := range collectPathHierarchy(root, workingDir) {
		for _, fileName := range recognized {
			content, err := os.ReadFile(filepath.Join(dir, fileName))
			if err != nil {
				continue
			}

			remaining := maxProjectDocBytes - totalBytes
			if remaining <= 0 {
				docs = append(docs, "[Project instructions truncated at 32KB]")
				return strings.Join(docs, "\n\n---\n\n")
			}

			text := string(content)
			if len(text) > remaining {
				text = text[:remaining] + "\n[Project instructions truncated at 32KB]"
			}

			header := fmt.Sprintf("# %s (from %s)", fileName, dir)
			docs = append(docs, header+"\n\n"+text)
			totalBytes += len(text)
		}
	}

	if len(docs) == 0 {
		return ""
	}
	return strings.Join(docs, "\n\n---\n\n")
}

// collectPathHierarchy returns directories from root to target, inclusive.
func collectPathHierarchy(root, target string) []string {
	root = filepath.Clean(root)
	target = filepath.Clean(target)

	if root == target {
		return []string{root}
	}

	dirs := []string{root}
	rel, err := filepath.Rel(root, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return dirs
	}

	current := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "." {
			continue
		}
		current = filepath.Join(current, part)
		dirs = append(dirs, current)
	}
	return dirs
}

func isGitRepository(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

func gitRoot(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func getGitBranch(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
