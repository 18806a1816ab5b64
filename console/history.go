package console

import "sync"

// History is the append-only log of terminal lines.
// Lines are never reordered or removed one at a time; Clear empties it.
type History struct {
	mu       sync.RWMutex
	lines    []string
	onChange func()
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	h.mu.Lock()
	h.lines = append(h.lines, lines...)
	f := h.onChange
	h.mu.Unlock()
	if f != nil {
		f()
	}
}

func (h *History) Clear() {
	h.mu.Lock()
	h.lines = nil
	f := h.onChange
	h.mu.Unlock()
	if f != nil {
		f()
	}
}

// Snapshot returns a copy of all lines in insertion order.
func (h *History) Snapshot() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.lines...)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lines)
}

// OnChange registers f to be called after every Append or Clear.
func (h *History) OnChange(f func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = f
}
