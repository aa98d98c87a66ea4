package navigation

import (
	"slices"
	"sync"
)

// History is an in-memory Location that records visited paths.
type History struct {
	mu      sync.Mutex
	entries []string
	visits  []string
}

var _ Location = (*History)(nil)

func NewHistory() *History {
	return &History{}
}

func (h *History) Assign(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, path)
	h.visits = append(h.visits, path)
}

func (h *History) Replace(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		h.entries = append(h.entries, path)
	} else {
		h.entries[len(h.entries)-1] = path
	}
	h.visits = append(h.visits, path)
}

func (h *History) Back() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) > 0 {
		h.entries = h.entries[:len(h.entries)-1]
	}
}

// Current returns the path on top of the history stack, "" when empty.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[len(h.entries)-1]
}

// Visits returns every path assigned or replaced, in order.
func (h *History) Visits() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.visits)
}
