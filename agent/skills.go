package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// skillFileName is the manifest every skill directory must contain.
const skillFileName = "SKILL.md"

// frontmatterRe matches a YAML frontmatter block fenced by --- lines,
// capturing the frontmatter and the remaining markdown body.
var frontmatterRe = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n(.*)$`)

// Skill is one loaded skill: metadata surfaced in the system prompt plus
// the full instruction body injected on demand.
type Skill struct {
	Name        string
	Description string
	Body        string
	Dir         string
}

// skillMeta is the YAML frontmatter of a SKILL.md file.
type skillMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// SkillSet holds the skills discovered under a skills directory.
//
// Skills are disclosed progressively: only name and description are baked
// into the system prompt, and the body (plus hints about bundled scripts/,
// references/ and assets/ files) reaches the model only when the Skill
// tool is invoked, as a tool result. Tool results append to the end of the
// conversation, so the cached prompt prefix stays valid.
type SkillSet struct {
	skills map[string]Skill
	names  []string
}

// LoadSkills scans the immediate subdirectories of dir for SKILL.md
// manifests. A missing dir yields an empty set. Manifests without valid
// frontmatter, or missing any of name, description or body, are skipped.
func LoadSkills(dir string) (*SkillSet, error) {
	set := &SkillSet{skills: make(map[string]Skill)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, fmt.Errorf("scanning skills dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skill, ok := parseSkillFile(filepath.Join(dir, entry.Name(), skillFileName))
		if !ok {
			continue
		}
		set.skills[skill.Name] = skill
	}
	set.names = make([]string, 0, len(set.skills))
	for name := range set.skills {
		set.names = append(set.names, name)
	}
	sort.Strings(set.names)
	return set, nil
}

// parseSkillFile reads and validates one SKILL.md. A skill is valid only
// when the frontmatter carries a non-empty name and description and the
// body is non-empty after trimming.
func parseSkillFile(path string) (Skill, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, false
	}
	m := frontmatterRe.FindSubmatch(raw)
	if m == nil {
		return Skill{}, false
	}
	var meta skillMeta
	if err := yaml.Unmarshal(m[1], &meta); err != nil {
		return Skill{}, false
	}
	name := strings.TrimSpace(meta.Name)
	desc := strings.TrimSpace(meta.Description)
	body := strings.TrimSpace(string(m[2]))
	if name == "" || desc == "" || body == "" {
		return Skill{}, false
	}
	return Skill{Name: name, Description: desc, Body: body, Dir: filepath.Dir(path)}, true
}

// Descriptions renders the metadata layer for the system prompt, one
// "- name: description" line per skill in name order.
func (s *SkillSet) Descriptions() string {
	if len(s.names) == 0 {
		return "(no skills available)"
	}
	lines := make([]string, 0, len(s.names))
	for _, name := range s.names {
		skill := s.skills[name]
		lines = append(lines, fmt.Sprintf("- %s: %s", skill.Name, skill.Description))
	}
	return strings.Join(lines, "\n")
}

// Resolve returns the full content for a named skill: the SKILL.md body
// plus a listing of any bundled resource files. ok is false for unknown
// names.
func (s *SkillSet) Resolve(name string) (string, bool) {
	skill, ok := s.skills[name]
	if !ok {
		return "", false
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Skill: %s\n\n%s", skill.Name, skill.Body)

	var resources []string
	for _, rd := range []struct{ folder, label string }{
		{"scripts", "Scripts"},
		{"references", "References"},
		{"assets", "Assets"},
	} {
		entries, err := os.ReadDir(filepath.Join(skill.Dir, rd.folder))
		if err != nil || len(entries) == 0 {
			continue
		}
		files := make([]string, 0, len(entries))
		for _, e := range entries {
			files = append(files, e.Name())
		}
		resources = append(resources, fmt.Sprintf("%s: %s", rd.label, strings.Join(files, ", ")))
	}
	if len(resources) > 0 {
		fmt.Fprintf(&sb, "\n\n**Available resources in %s:**\n", skill.Dir)
		for _, r := range resources {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
	}
	return sb.String(), true
}

// Names returns the loaded skill names in sorted order.
func (s *SkillSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
