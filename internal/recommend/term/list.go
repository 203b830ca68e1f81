// Package term renders recommendation replies on a terminal.
package term

import (
	"fmt"
	"io"
	"slices"
	"sync"
)

// ListArea is an output area that prints text or a bulleted list and
// remembers what it last showed.
type ListArea struct {
	mu    sync.Mutex
	w     io.Writer
	text  string
	items []string
}

// NewListArea creates a list area writing to w.
func NewListArea(w io.Writer) *ListArea {
	return &ListArea{w: w}
}

// SetText replaces the content with text.
func (a *ListArea) SetText(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.text, a.items = text, nil
	_, _ = fmt.Fprintln(a.w, text)
}

// Clear empties the area.
func (a *ListArea) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.text, a.items = "", nil
}

// AppendList prints one bullet per item.
func (a *ListArea) AppendList(items []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, items...)
	for _, it := range items {
		_, _ = fmt.Fprintf(a.w, "  • %s\n", it)
	}
}

// Text returns the last plain text set.
func (a *ListArea) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text
}

// Items returns the list entries currently shown.
func (a *ListArea) Items() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.items)
}
