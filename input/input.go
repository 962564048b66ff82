// Package input keeps a snapshot of keyboard and mouse state for a frame
// loop.
//
// Window systems deliver events on their own goroutine. A Snapshot records
// them under a mutex, and the frame reads a consistent copy with State at
// the start of update. One-shot events (a click, a wheel step) stay set
// until Clear is called, normally at the end of the frame.
package input

import (
	"sync"

	"github.com/gogpu/gpucontext"
)

// Point is a position in window pixels.
type Point struct {
	X, Y float64
}

// State is a copy of the input state at one instant.
type State struct {
	// Held is the set of keys currently down.
	Held map[gpucontext.Key]bool

	// Click is where the mouse was last pressed since the last Clear, or
	// nil.
	Click *Point

	// Wheel is the signed vertical delta of the last scroll since the last
	// Clear, as reported by the window system.
	Wheel float64

	// Mouse is the last known pointer position.
	Mouse Point
}

// IsHeld reports whether key is down.
func (s State) IsHeld(key gpucontext.Key) bool { return s.Held[key] }

// Axis returns +1 when pos is held, -1 when neg is held, and 0 when both
// or neither are.
func (s State) Axis(neg, pos gpucontext.Key) float32 {
	var v float32
	if s.Held[pos] {
		v++
	}
	if s.Held[neg] {
		v--
	}
	return v
}

// WheelSign returns -1, 0 or 1 for the direction of the last scroll.
func (s State) WheelSign() int {
	switch {
	case s.Wheel > 0:
		return 1
	case s.Wheel < 0:
		return -1
	}
	return 0
}

// Snapshot accumulates input events. The zero value is not ready; use New
// or Attach.
type Snapshot struct {
	mu    sync.Mutex
	held  map[gpucontext.Key]bool
	click *Point
	wheel float64
	mouse Point
}

// New returns an empty snapshot that is fed by calling its event methods.
func New() *Snapshot {
	return &Snapshot{held: map[gpucontext.Key]bool{}}
}

// Attach returns a snapshot fed by src's keyboard, mouse and scroll events.
func Attach(src gpucontext.EventSource) *Snapshot {
	s := New()
	src.OnKeyPress(func(k gpucontext.Key, _ gpucontext.Modifiers) { s.KeyDown(k) })
	src.OnKeyRelease(func(k gpucontext.Key, _ gpucontext.Modifiers) { s.KeyUp(k) })
	src.OnMouseMove(s.MouseMove)
	src.OnMousePress(s.MousePress)
	src.OnScroll(s.Scroll)
	src.OnFocus(func(focused bool) {
		if !focused {
			s.ReleaseAll()
		}
	})
	return s
}

// KeyDown records key as held.
func (s *Snapshot) KeyDown(key gpucontext.Key) {
	s.mu.Lock()
	s.held[key] = true
	s.mu.Unlock()
}

// KeyUp records key as released.
func (s *Snapshot) KeyUp(key gpucontext.Key) {
	s.mu.Lock()
	delete(s.held, key)
	s.mu.Unlock()
}

// ReleaseAll releases every held key. Keys released while the window is
// unfocused never produce a release event.
func (s *Snapshot) ReleaseAll() {
	s.mu.Lock()
	clear(s.held)
	s.mu.Unlock()
}

// MouseMove records the pointer position.
func (s *Snapshot) MouseMove(x, y float64) {
	s.mu.Lock()
	s.mouse = Point{X: x, Y: y}
	s.mu.Unlock()
}

// MousePress records a click at (x, y). Any button counts.
func (s *Snapshot) MousePress(_ gpucontext.MouseButton, x, y float64) {
	s.mu.Lock()
	s.click = &Point{X: x, Y: y}
	s.mouse = Point{X: x, Y: y}
	s.mu.Unlock()
}

// Scroll records the vertical delta of a scroll, replacing the previous
// one. Horizontal scrolling is ignored.
func (s *Snapshot) Scroll(_, dy float64) {
	s.mu.Lock()
	s.wheel = dy
	s.mu.Unlock()
}

// State returns a copy of the current state.
func (s *Snapshot) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Held:  make(map[gpucontext.Key]bool, len(s.held)),
		Wheel: s.wheel,
		Mouse: s.mouse,
	}
	for k := range s.held {
		st.Held[k] = true
	}
	if s.click != nil {
		c := *s.click
		st.Click = &c
	}
	return st
}

// Clear resets the click and wheel. Held keys stay held.
func (s *Snapshot) Clear() {
	s.mu.Lock()
	s.click = nil
	s.wheel = 0
	s.mu.Unlock()
}
