package hookrt

import "sync"

// Signal is a callable state cell with subscribers. Setting it
// during a render schedules a recompile request with a reason; setting it
// outside any tick invokes the owning execution's reconcile callback
// directly.
type Signal[T any] struct {
	mu          sync.Mutex
	value       T
	subscribers []func(T)
	control     TickControl
}

// UseSignal allocates (or reuses) a Signal cell, wiring it to this render's
// TickControl so Set can distinguish in-tick from out-of-tick writes.
func UseSignal[T any](r *Render, initial T) *Signal[T] {
	h, isNew := useHook(r, TagSignal)
	if isNew {
		h.MemoizedState = &Signal[T]{value: initial, control: r.tickControl}
	}
	sig, _ := h.MemoizedState.(*Signal[T])
	sig.control = r.tickControl
	return sig
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set updates the value, notifies subscribers, and either schedules a
// recompile (if called while a tick is in progress) or triggers an
// immediate reconcile (if called from outside any tick, e.g. an external
// event callback).
func (s *Signal[T]) Set(v T, reason string) {
	s.mu.Lock()
	s.value = v
	subs := append([]func(T){}, s.subscribers...)
	ctrl := s.control
	s.mu.Unlock()

	for _, sub := range subs {
		sub(v)
	}
	if ctrl == nil {
		return
	}
	if ctrl.InTick() {
		ctrl.RequestRecompile(reason)
	} else {
		ctrl.Reconcile()
	}
}

// Subscribe registers fn to be called with every future value; it does not
// fire synchronously with the current value.
func (s *Signal[T]) Subscribe(fn func(T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// SerializableValue implements the serialize package's substitution hook
// for hibernation snapshots.
func (s *Signal[T]) SerializableValue() any {
	return map[string]any{"_type": "Signal", "value": s.Get()}
}
