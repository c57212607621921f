package session

// Window is a fixed-capacity sliding window of per-frame booleans.
type Window struct {
	values   []bool
	capacity int
}

// NewWindow creates an empty window holding at most capacity values.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{values: make([]bool, 0, capacity), capacity: capacity}
}

// Push appends v, dropping the oldest value when the window is full.
func (w *Window) Push(v bool) {
	if len(w.values) == w.capacity {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.capacity-1]
	}
	w.values = append(w.values, v)
}

// Full reports whether the window holds capacity values.
func (w *Window) Full() bool {
	return len(w.values) == w.capacity
}

// Count returns the number of true values.
func (w *Window) Count() int {
	n := 0
	for _, v := range w.values {
		if v {
			n++
		}
	}
	return n
}

// Any reports whether any value is true.
func (w *Window) Any() bool {
	return w.Count() > 0
}

// Len returns the number of values held.
func (w *Window) Len() int {
	return len(w.values)
}

// Clear empties the window.
func (w *Window) Clear() {
	w.values = w.values[:0]
}
