package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Environment abstracts where tool operations run. All paths are taken
// relative to the workspace root and must stay inside it.
type Environment interface {
	ReadFile(path string, limit int) (string, error)
	WriteFile(path, content string) error
	EditFile(path, oldText, newText string) error
	ExecCommand(ctx context.Context, command string) (string, error)
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)

	WorkingDirectory() string
	Platform() string
	OSVersion() string
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// dangerousCommands are substrings that block a shell command outright.
var dangerousCommands = []string{"rm -rf /", "sudo", "shutdown", "reboot", "> /dev/"}

const searchUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Workspace runs tools on the local machine, confined to a root directory.
type Workspace struct {
	root       string
	platform   string
	osVersion  string
	httpClient *http.Client
}

// NewWorkspace creates a Workspace rooted at root. The root is resolved to
// its canonical path (symlinks followed) so that confinement checks hold
// even when the root itself is reached through a symlink.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	return &Workspace{
		root:      canonical,
		platform:  runtime.GOOS,
		osVersion: runtime.GOOS + "/" + runtime.GOARCH,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (w *Workspace) WorkingDirectory() string { return w.root }
func (w *Workspace) Platform() string         { return w.platform }
func (w *Workspace) OSVersion() string        { return w.osVersion }

// resolve maps a model-supplied path to a canonical absolute path and
// rejects anything that lands outside the root. Paths that do not exist
// yet resolve through their parent directory, which must exist.
func (w *Workspace) resolve(relative string) (string, error) {
	path := filepath.Join(w.root, relative)
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		parent := filepath.Dir(path)
		parentCanonical, perr := filepath.EvalSymlinks(parent)
		if perr != nil {
			return "", errors.New("Parent directory does not exist")
		}
		canonical = filepath.Join(parentCanonical, filepath.Base(path))
	}
	if canonical != w.root && !strings.HasPrefix(canonical, w.root+string(filepath.Separator)) {
		return "", fmt.Errorf("Path escapes workspace: %s", relative)
	}
	return canonical, nil
}

// ReadFile returns file contents, optionally limited to the first limit
// lines with a marker noting how many lines were omitted.
func (w *Workspace) ReadFile(path string, limit int) (string, error) {
	resolved, err := w.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	content := string(data)

	if limit > 0 {
		lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
		if limit < len(lines) {
			return strings.Join(lines[:limit], "\n") +
				fmt.Sprintf("\n... (%d more lines)", len(lines)-limit), nil
		}
	}
	return content, nil
}

// WriteFile writes content to path, creating parent directories as needed.
func (w *Workspace) WriteFile(path, content string) error {
	resolved, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return fmt.Errorf("creating parent directories: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// EditFile replaces the first occurrence of oldText in the file at path.
func (w *Workspace) EditFile(path, oldText, newText string) error {
	resolved, err := w.resolve(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	content := string(data)
	if !strings.Contains(content, oldText) {
		return fmt.Errorf("Text not found in %s", path)
	}
	content = strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// ExecCommand runs a shell command in the workspace root and returns the
// combined, trimmed stdout and stderr. A non-zero exit is not an error;
// only failures to spawn the command are.
func (w *Workspace) ExecCommand(ctx context.Context, command string) (string, error) {
	for _, d := range dangerousCommands {
		if strings.Contains(command, d) {
			return "", errors.New("Dangerous command blocked")
		}
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = w.root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	combined := strings.TrimSpace(stdout.String() + stderr.String())
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return combined, nil
		}
		return "", err
	}
	return combined, nil
}

// Search queries DuckDuckGo's HTML endpoint and scrapes result links.
func (w *Workspace) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	// Small delay to avoid rate limiting.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}

	endpoint := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search failed with status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseSearchHTML(string(body), maxResults), nil
}

// parseSearchHTML extracts result links from a DuckDuckGo HTML page. The
// markup is not stable, so three strategies run in order until enough
// results are collected: redirect links carrying the target in a uddg=
// parameter, visible result__url anchors, then any plausible https:// URL.
func parseSearchHTML(html string, maxResults int) []SearchResult {
	var results []SearchResult
	seen := make(map[string]bool)

	for _, segment := range splitAfter(html, "uddg=") {
		if len(results) >= maxResults {
			break
		}
		end := strings.IndexAny(segment, `&"'`)
		if end < 0 {
			continue
		}
		decoded, err := url.QueryUnescape(segment[:end])
		if err != nil {
			continue
		}
		if strings.HasPrefix(decoded, "http") &&
			!strings.Contains(decoded, "duckduckgo.com") &&
			!seen[decoded] {
			seen[decoded] = true
			results = append(results, SearchResult{
				Title:   extractDomain(decoded),
				URL:     decoded,
				Snippet: "Search result from DuckDuckGo",
			})
		}
	}

	if len(results) < maxResults {
		for _, segment := range splitAfter(html, "result__url") {
			if len(results) >= maxResults {
				break
			}
			hrefStart := strings.Index(segment, `href="`)
			if hrefStart < 0 {
				continue
			}
			afterHref := segment[hrefStart+6:]
			hrefEnd := strings.Index(afterHref, `"`)
			if hrefEnd < 0 {
				continue
			}
			href := afterHref[:hrefEnd]
			var link string
			switch {
			case strings.HasPrefix(href, "//"):
				link = "https:" + href
			case strings.HasPrefix(href, "http"):
				link = href
			default:
				continue
			}
			if !strings.Contains(link, "duckduckgo.com") && !seen[link] {
				seen[link] = true
				results = append(results, SearchResult{
					Title:   extractDomain(link),
					URL:     link,
					Snippet: "Search result",
				})
			}
		}
	}

	if len(results) < maxResults {
		for _, segment := range splitAfter(html, "https://") {
			if len(results) >= maxResults {
				break
			}
			end := strings.IndexAny(segment, "\"'<> )")
			if end < 0 {
				continue
			}
			domainPath := segment[:end]
			if strings.HasPrefix(domainPath, "duckduckgo") ||
				strings.HasPrefix(domainPath, "improving.duckduckgo") ||
				strings.Contains(domainPath, "cdn.") ||
				strings.Contains(domainPath, ".js") ||
				strings.Contains(domainPath, ".css") ||
				strings.Contains(domainPath, ".png") ||
				strings.Contains(domainPath, ".ico") ||
				!strings.Contains(domainPath, ".") ||
				len(domainPath) <= 5 {
				continue
			}
			link := "https://" + domainPath
			if !seen[link] {
				seen[link] = true
				results = append(results, SearchResult{
					Title:   extractDomain(link),
					URL:     link,
					Snippet: "Search result",
				})
			}
		}
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// splitAfter returns the chunks following each occurrence of sep.
func splitAfter(s, sep string) []string {
	parts := strings.Split(s, sep)
	if len(parts) <= 1 {
		return nil
	}
	return parts[1:]
}

// extractDomain pulls the host out of a URL for use as a result title.
func extractDomain(u string) string {
	_, rest, ok := strings.Cut(u, "//")
	if !ok {
		return "Result"
	}
	domain, _, _ := strings.Cut(rest, "/")
	if domain == "" {
		return "Result"
	}
	return domain
}
