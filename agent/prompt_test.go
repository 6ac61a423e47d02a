package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// staticEnv is a minimal Environment for prompt tests.
type staticEnv struct {
	dir string
}

func (s staticEnv) ReadFile(path string, limit int) (string, error) { return "", nil }
func (s staticEnv) WriteFile(path, content string) error            { return nil }
func (s staticEnv) EditFile(path, oldText, newText string) error    { return nil }
func (s staticEnv) ExecCommand(ctx context.Context, command string) (string, error) {
	return "", nil
}
func (s staticEnv) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	return nil, nil
}
func (s staticEnv) WorkingDirectory() string { return s.dir }
func (s staticEnv) Platform() string         { return "linux" }
func (s staticEnv) OSVersion() string        { return "linux/amd64" }

func TestBuildEnvironmentContext(t *testing.T) {
	env := staticEnv{dir: t.TempDir()}
	got := BuildEnvironmentContext(env, "claude-sonnet-4-20250514")

	for _, want := range []string{
		"<environment>\n",
		"Working directory: " + env.dir + "\n",
		"Is git repository: false\n",
		"Platform: linux\n",
		"OS version: linux/amd64\n",
		"Today's date: " + time.Now().Format("2006-01-02") + "\n",
		"Model: claude-sonnet-4-20250514\n",
		"</environment>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in context, got:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Git branch:") {
		t.Errorf("expected no branch line outside a repository, got:\n%s", got)
	}
}

func TestProviderPreamble(t *testing.T) {
	for _, provider := range []string{"anthropic", "openai", "gemini"} {
		got := providerPreamble(provider)
		if !strings.HasPrefix(got, "# Working Style") {
			t.Errorf("provider %s: expected working style section, got %q", provider, got)
		}
	}
	if got := providerPreamble("unknown"); got != "" {
		t.Errorf("expected empty preamble for unknown provider, got %q", got)
	}
}

func TestDiscoverProjectDocs(t *testing.T) {
	t.Run("none found", func(t *testing.T) {
		if got := DiscoverProjectDocs(t.TempDir(), "anthropic"); got != "" {
			t.Errorf("expected empty, got %q", got)
		}
	})

	t.Run("agents file always recognized", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte("shared rules"), 0644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := DiscoverProjectDocs(dir, "")
		if !strings.Contains(got, "# AGENTS.md (from "+dir+")") {
			t.Errorf("expected header, got %q", got)
		}
		if !strings.Contains(got, "shared rules") {
			t.Errorf("expected content, got %q", got)
		}
	})

	t.Run("provider file joins agents file", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte("shared"), 0644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "CLAUDE.md"), []byte("claude only"), 0644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := DiscoverProjectDocs(dir, "anthropic")
		if !strings.Contains(got, "shared") || !strings.Contains(got, "claude only") {
			t.Errorf("expected both docs, got %q", got)
		}
		if !strings.Contains(got, "\n\n---\n\n") {
			t.Errorf("expected separator, got %q", got)
		}
	})

	t.Run("provider files are selective", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "CLAUDE.md"), []byte("claude only"), 0644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := DiscoverProjectDocs(dir, "gemini"); got != "" {
			t.Errorf("expected CLAUDE.md ignored for gemini, got %q", got)
		}
	})

	t.Run("openai nested instructions file", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.MkdirAll(filepath.Join(dir, ".codex"), 0755); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, ".codex", "instructions.md"), []byte("codex rules"), 0644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := DiscoverProjectDocs(dir, "openai")
		if !strings.Contains(got, "codex rules") {
			t.Errorf("expected codex instructions, got %q", got)
		}
	})

	t.Run("content capped at 32KB", func(t *testing.T) {
		dir := t.TempDir()
		big := strings.Repeat("x", maxProjectDocBytes+4096)
		if err := os.WriteFile(filepath.Join(dir, "AGENTS.md"), []byte(big), 0644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := DiscoverProjectDocs(dir, "")
		if !strings.Contains(got, "[Project instructions truncated at 32KB]") {
			t.Error("expected truncation marker")
		}
		if len(got) > maxProjectDocBytes+1024 {
			t.Errorf("expected capped output, got %d bytes", len(got))
		}
	})
}

func TestCollectPathHierarchy(t *testing.T) {
	t.Run("root to nested target", func(t *testing.T) {
		root := filepath.Join("/repo")
		target := filepath.Join("/repo", "pkg", "sub")
		dirs := collectPathHierarchy(root, target)
		want := []string{"/repo", "/repo/pkg", "/repo/pkg/sub"}
		if len(dirs) != len(want) {
			t.Fatalf("expected %v, got %v", want, dirs)
		}
		for i := range want {
			if dirs[i] != want[i] {
				t.Errorf("position %d: expected %q, got %q", i, want[i], dirs[i])
			}
		}
	})

	t.Run("same dir", func(t *testing.T) {
		dirs := collectPathHierarchy("/repo", "/repo")
		if len(dirs) != 1 || dirs[0] != "/repo" {
			t.Errorf("expected [/repo], got %v", dirs)
		}
	})

	t.Run("target outside root", func(t *testing.T) {
		dirs := collectPathHierarchy("/repo", "/elsewhere")
		if len(dirs) != 1 || dirs[0] != "/repo" {
			t.Errorf("expected just the root, got %v", dirs)
		}
	})
}

func TestBuildSystemPrompt(t *testing.T) {
	env := staticEnv{dir: t.TempDir()}
	got := BuildSystemPrompt(env, "claude-sonnet-4-20250514", "anthropic",
		"- pdf: Process PDF files", "- explore: Read-only exploration")

	for _, want := range []string{
		"You are a coding agent at " + env.dir + ".",
		"- pdf: Process PDF files",
		"- explore: Read-only exploration",
		"# Working Style",
		"<environment>",
		"Use TodoWrite to track multi-step work",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in prompt", want)
		}
	}

	// No project docs in an empty temp dir.
	if strings.Contains(got, "# Project Instructions") {
		t.Error("expected no project instructions section")
	}
}
