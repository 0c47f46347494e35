package slideshow

// History is a bounded most-recent-first list of folder paths used to
// keep random selection away from folders shown recently.
//
// A capacity of zero disables tracking entirely. History is not safe
// for concurrent use on its own; the owning Service serializes access.
type History struct {
	capacity int
	paths    []string
}

// NewHistory creates a history with the given capacity. Negative
// capacities are treated as zero.
func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{capacity: capacity}
}

// Record pushes path to the front, dropping any previous occurrence
// and trimming to capacity. A zero-capacity history ignores the call.
func (h *History) Record(path string) {
	if h.capacity == 0 || path == "" {
		return
	}

	out := make([]string, 0, len(h.paths)+1)
	out = append(out, path)
	for _, p := range h.paths {
		if p != path {
			out = append(out, p)
		}
	}
	if len(out) > h.capacity {
		out = out[:h.capacity]
	}
	h.paths = out
}

// Contains reports whether path is currently tracked.
func (h *History) Contains(path string) bool {
	for _, p := range h.paths {
		if p == path {
			return true
		}
	}
	return false
}

// Snapshot returns the tracked paths, most recent first.
func (h *History) Snapshot() []string {
	out := make([]string, len(h.paths))
	copy(out, h.paths)
	return out
}

// Len returns the number of tracked paths.
func (h *History) Len() int {
	return len(h.paths)
}

// Capacity returns the configured capacity.
func (h *History) Capacity() int {
	return h.capacity
}
