package memory

import (
	"fmt"
	"strings"
)

// TodoItem is one tracked task.
type TodoItem struct {
	Text      string
	Completed bool
}

func (t TodoItem) String() string {
	marker := "[ ]"
	if t.Completed {
		marker = "[x]"
	}
	return marker + " " + t.Text
}

// DefaultTodoCapacity bounds a todo list unless overridden.
const DefaultTodoCapacity = 100

// TodoList tracks pending and completed tasks. Capacity is bounded;
// pruning removes completed items first, then the oldest items.
type TodoList struct {
	items    []TodoItem
	maxItems int
	cached   string
	hasCache bool
}

// NewTodoList creates a list holding at most maxItems entries.
// Non-positive maxItems uses the default capacity.
func NewTodoList(maxItems int) *TodoList {
	if maxItems <= 0 {
		maxItems = DefaultTodoCapacity
	}
	return &TodoList{maxItems: maxItems}
}

// Add appends a new item. Empty text is rejected.
func (l *TodoList) Add(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	l.items = append(l.items, TodoItem{Text: text})
	if len(l.items) > l.maxItems {
		l.prune()
	}
	l.hasCache = false
	return true
}

// prune drops completed items first, then the oldest items if the list
// is still over capacity.
func (l *TodoList) prune() {
	kept := l.items[:0]
	for _, item := range l.items {
		if !item.Completed {
			kept = append(kept, item)
		}
	}
	l.items = kept
	if len(l.items) > l.maxItems {
		l.items = l.items[len(l.items)-l.maxItems:]
	}
}

// Complete marks the item at index done. Returns false on an invalid
// index.
func (l *TodoList) Complete(index int) bool {
	if index < 0 || index >= len(l.items) {
		return false
	}
	l.items[index].Completed = true
	l.hasCache = false
	return true
}

// Remove deletes the item at index. Returns false on an invalid index.
func (l *TodoList) Remove(index int) bool {
	if index < 0 || index >= len(l.items) {
		return false
	}
	l.items = append(l.items[:index], l.items[index+1:]...)
	l.hasCache = false
	return true
}

// ClearCompleted removes all completed items and returns the count
// removed.
func (l *TodoList) ClearCompleted() int {
	before := len(l.items)
	kept := l.items[:0]
	for _, item := range l.items {
		if !item.Completed {
			kept = append(kept, item)
		}
	}
	l.items = kept
	removed := before - len(l.items)
	if removed > 0 {
		l.hasCache = false
	}
	return removed
}

// Clear removes every item.
func (l *TodoList) Clear() {
	l.items = l.items[:0]
	l.hasCache = false
}

// IsEmpty reports whether the list has no items.
func (l *TodoList) IsEmpty() bool { return len(l.items) == 0 }

// Len returns the total item count.
func (l *TodoList) Len() int { return len(l.items) }

// PendingCount returns the number of items not yet completed.
func (l *TodoList) PendingCount() int {
	n := 0
	for _, item := range l.items {
		if !item.Completed {
			n++
		}
	}
	return n
}

// CompletedCount returns the number of completed items.
func (l *TodoList) CompletedCount() int {
	return len(l.items) - l.PendingCount()
}

// Status renders all items with zero-based indexes matching the
// indexes accepted by Complete and Remove. Cached until the next
// mutation.
func (l *TodoList) Status() string {
	if l.IsEmpty() {
		return "(no items)"
	}
	if !l.hasCache {
		lines := make([]string, len(l.items))
		for i, item := range l.items {
			lines[i] = fmt.Sprintf("%d. %s", i, item)
		}
		l.cached = strings.Join(lines, "\n")
		l.hasCache = true
	}
	return l.cached
}

// ToPrompt formats the todo list as a prompt section.
func (l *TodoList) ToPrompt() string {
	return fmt.Sprintf("## Todo List (%d/%d pending)\n%s", l.PendingCount(), l.Len(), l.Status())
}
