package agent

import (
	"fmt"
	"strings"
	"sync"
)

// TodoStatus is the lifecycle state of a single todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// TodoItem is one entry in the model-visible task list. ActiveForm is the
// present-tense label shown while the item is in progress.
type TodoItem struct {
	Content    string     `json:"content" jsonschema:"description=Task description"`
	Status     TodoStatus `json:"status" jsonschema:"enum=pending,enum=in_progress,enum=completed,description=Task status"`
	ActiveForm string     `json:"activeForm" jsonschema:"description=Present tense action (e.g. 'Reading files')"`
}

const maxTodoItems = 20

// TodoList holds the single ordered task list for a conversation. Updates
// replace the whole list atomically: the incoming list is validated in
// full and either replaces the stored list or is rejected leaving the
// stored list untouched. The list is shared between a loop and any
// subagents it spawns, hence the mutex.
type TodoList struct {
	mu    sync.Mutex
	items []TodoItem
}

// NewTodoList creates an empty todo list.
func NewTodoList() *TodoList {
	return &TodoList{}
}

// Update validates items and, on success, replaces the stored list and
// returns the rendered view. On any violation the stored list is left
// unchanged and the error describes the first violation found.
func (l *TodoList) Update(items []TodoItem) (string, error) {
	inProgress := 0
	for i, item := range items {
		if strings.TrimSpace(item.Content) == "" {
			return "", fmt.Errorf("Item %d: content required", i)
		}
		if strings.TrimSpace(item.ActiveForm) == "" {
			return "", fmt.Errorf("Item %d: activeForm required", i)
		}
		switch item.Status {
		case TodoPending, TodoInProgress, TodoCompleted:
		default:
			return "", fmt.Errorf("Item %d: invalid status %q", i, item.Status)
		}
		if item.Status == TodoInProgress {
			inProgress++
		}
	}
	if inProgress > 1 {
		return "", fmt.Errorf("Only one task can be in_progress at a time")
	}
	if len(items) > maxTodoItems {
		return "", fmt.Errorf("Max %d todos allowed", maxTodoItems)
	}

	l.mu.Lock()
	l.items = items
	l.mu.Unlock()

	return l.Render(), nil
}

// Render returns the deterministic text view of the list: one line per
// item, a blank line, then a completion summary.
func (l *TodoList) Render() string {
	l.mu.Lock()
	items := make([]TodoItem, len(l.items))
	copy(items, l.items)
	l.mu.Unlock()

	if len(items) == 0 {
		return "No todos."
	}

	var sb strings.Builder
	completed := 0
	for _, item := range items {
		switch item.Status {
		case TodoCompleted:
			completed++
			fmt.Fprintf(&sb, "[x] %s\n", item.Content)
		case TodoInProgress:
			fmt.Fprintf(&sb, "[>] %s <- %s\n", item.Content, item.ActiveForm)
		default:
			fmt.Fprintf(&sb, "[ ] %s\n", item.Content)
		}
	}
	fmt.Fprintf(&sb, "\n(%d/%d completed)", completed, len(items))
	return sb.String()
}

// Items returns a copy of the stored list.
func (l *TodoList) Items() []TodoItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := make([]TodoItem, len(l.items))
	copy(items, l.items)
	return items
}
