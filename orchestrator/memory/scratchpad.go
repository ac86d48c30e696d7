// Package memory provides the bounded working-memory stores consulted
// by the conductor when building prompts: scratchpad, todo list, and
// conversation history. The stores are mutated only by the currently
// executing turn and need no internal locking.
package memory

import "strings"

// Scratchpad accumulates findings and intermediate notes. Capacity is
// bounded; the oldest entries are evicted first.
type Scratchpad struct {
	entries  []string
	maxItems int
	cached   string
	hasCache bool
}

// DefaultScratchpadCapacity bounds a scratchpad unless overridden.
const DefaultScratchpadCapacity = 50

// NewScratchpad creates a scratchpad holding at most maxItems entries.
// Non-positive maxItems uses the default capacity.
func NewScratchpad(maxItems int) *Scratchpad {
	if maxItems <= 0 {
		maxItems = DefaultScratchpadCapacity
	}
	return &Scratchpad{maxItems: maxItems}
}

// Append adds an entry, evicting the oldest when over capacity. Empty
// or whitespace-only text is ignored.
func (s *Scratchpad) Append(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.entries = append(s.entries, text)
	if len(s.entries) > s.maxItems {
		s.entries = s.entries[len(s.entries)-s.maxItems:]
	}
	s.hasCache = false
}

// Replace drops all entries and starts over with text as the single
// entry. Empty text leaves the scratchpad empty.
func (s *Scratchpad) Replace(text string) {
	s.entries = s.entries[:0]
	if t := strings.TrimSpace(text); t != "" {
		s.entries = append(s.entries, t)
	}
	s.hasCache = false
}

// Clear drops all entries.
func (s *Scratchpad) Clear() {
	s.entries = s.entries[:0]
	s.hasCache = false
}

// IsEmpty reports whether the scratchpad has no entries.
func (s *Scratchpad) IsEmpty() bool { return len(s.entries) == 0 }

// Len returns the number of entries.
func (s *Scratchpad) Len() int { return len(s.entries) }

// Content renders all entries. The rendering is cached until the next
// mutation.
func (s *Scratchpad) Content() string {
	if s.IsEmpty() {
		return "(empty)"
	}
	if !s.hasCache {
		s.cached = strings.Join(s.entries, "\n\n")
		s.hasCache = true
	}
	return s.cached
}

// ToPrompt formats the scratchpad as a prompt section.
func (s *Scratchpad) ToPrompt() string {
	return "## Scratchpad\n" + s.Content()
}
