package hookrt

import "context"

// HookTag identifies which hook contract a HookState instance backs.
type HookTag int

const (
	TagState HookTag = iota
	TagReducer
	TagSignal
	TagEffect
	TagMemo
	TagCallback
	TagRef
	TagAsync
	TagTickStart
	TagTickEnd
	TagAfterCompile
	TagMount
	TagUnmount
	TagOnMessage
	TagContext
	TagData
)

func (t HookTag) String() string {
	names := [...]string{"State", "Reducer", "Signal", "Effect", "Memo", "Callback", "Ref", "Async",
		"TickStart", "TickEnd", "AfterCompile", "Mount", "Unmount", "OnMessage", "Context", "Data"}
	if int(t) < len(names) {
		return names[t]
	}
	return "Unknown"
}

// HookState is one linked-list node per hook call by a composite.
type HookState struct {
	Tag           HookTag
	MemoizedState any
	Queue         *UpdateQueue
	Effect        *Effect
	Next          *HookState
}

// useHook advances the old-hook cursor (if a prior render exists) and
// appends a new HookState of the given tag to this render's chain,
// returning it plus whether it is newly allocated (no prior state to carry
// forward).
func useHook(r *Render, tag HookTag) (h *HookState, isNew bool) {
	r.hookIndex++
	if r.oldHook != nil {
		old := r.oldHook
		r.oldHook = old.Next
		if r.debugMode && old.Tag != tag && r.OrderMismatch == nil {
			r.OrderMismatch = &HookOrderError{
				FiberID: r.Fiber.DebugID,
				Reason:  "hook " + tag.String() + " called where " + old.Tag.String() + " ran previously",
			}
		}
		h = &HookState{Tag: tag, MemoizedState: old.MemoizedState, Queue: old.Queue, Effect: old.Effect}
		isNew = false
	} else {
		h = &HookState{Tag: tag}
		isNew = true
	}
	if r.newHookHead == nil {
		r.newHookHead = h
		r.newHookTail = h
	} else {
		r.newHookTail.Next = h
		r.newHookTail = h
	}
	r.Fiber.MemoizedState = r.newHookHead
	return h, isNew
}

// UpdateQueue buffers dispatched updates for a State/Reducer hook between
// renders, drained the next time the hook runs. Appends to the queue are not
// synchronized; concurrent dispatch calls on the same hook are not safe.
type UpdateQueue struct {
	pending []func(any) any
}

// UseState allocates a local-state slot. dispatch enqueues a replacement
// value; updater functions are not accepted. Identical values are not
// special-cased here.
func UseState[T any](r *Render, initial T) (T, func(T)) {
	h, isNew := useHook(r, TagState)
	if isNew {
		h.MemoizedState = initial
		h.Queue = &UpdateQueue{}
	}
	q := h.Queue
	pending := q.pending
	q.pending = nil

	cur, _ := h.MemoizedState.(T)
	for _, u := range pending {
		cur, _ = u(cur).(T)
	}
	h.MemoizedState = cur

	f := r.Fiber
	schedule := r.scheduleWork
	dispatch := func(v T) {
		q.pending = append(q.pending, func(any) any { return v })
		if schedule != nil {
			schedule(f.DebugID)
		}
	}
	return cur, dispatch
}

// UseReducer is UseState generalized with a reducer function instead of
// direct replacement.
func UseReducer[T any, A any](r *Render, reducer func(T, A) T, initial T) (T, func(A)) {
	h, isNew := useHook(r, TagReducer)
	if isNew {
		h.MemoizedState = initial
		h.Queue = &UpdateQueue{}
	}
	q := h.Queue
	pending := q.pending
	q.pending = nil

	cur, _ := h.MemoizedState.(T)
	for _, u := range pending {
		cur, _ = u(cur).(T)
	}
	h.MemoizedState = cur

	f := r.Fiber
	schedule := r.scheduleWork
	dispatch := func(action A) {
		q.pending = append(q.pending, func(prev any) any {
			p, _ := prev.(T)
			return reducer(p, action)
		})
		if schedule != nil {
			schedule(f.DebugID)
		}
	}
	return cur, dispatch
}

// UseMemo recomputes compute() only when deps differ (by shallow compare)
// from the previous render.
func UseMemo[T any](r *Render, deps []any, compute func() T) T {
	h, isNew := useHook(r, TagMemo)
	type memoEntry struct {
		deps  []any
		value T
	}
	if !isNew {
		if prev, ok := h.MemoizedState.(memoEntry); ok && sameDeps(prev.deps, deps) {
			return prev.value
		}
	}
	v := compute()
	h.MemoizedState = memoEntry{deps: deps, value: v}
	return v
}

// UseCallback is UseMemo specialized for caching a function value.
func UseCallback[F any](r *Render, deps []any, fn F) F {
	return UseMemo(r, deps, func() F { return fn })
}

// UseRef returns a stable cell across renders, initialized once.
type Ref[T any] struct {
	Current T
}

func UseRef[T any](r *Render, initial T) *Ref[T] {
	h, isNew := useHook(r, TagRef)
	if isNew {
		h.MemoizedState = &Ref[T]{Current: initial}
	}
	ref, _ := h.MemoizedState.(*Ref[T])
	return ref
}

func sameDeps(a, b []any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// WalkEffects calls fn for every Effect hook in the given hook chain, in
// declaration order.
func WalkEffects(head *HookState, fn func(*Effect)) {
	for h := head; h != nil; h = h.Next {
		if h.Tag == TagEffect || h.Tag == TagMount || h.Tag == TagTickStart || h.Tag == TagTickEnd ||
			h.Tag == TagAfterCompile {
			if h.Effect != nil {
				fn(h.Effect)
			}
		}
	}
}

// UnmountCallback returns the most recently registered UseUnmount callback
// on a hook chain, or nil.
func UnmountCallback(head *HookState) func() {
	for h := head; h != nil; h = h.Next {
		if h.Tag == TagUnmount {
			if cb, ok := h.MemoizedState.(func()); ok {
				return cb
			}
		}
	}
	return nil
}

// OnMessageHandlers collects every UseOnMessage callback on a hook chain.
func OnMessageHandlers(head *HookState) []func(context.Context, any) {
	var out []func(context.Context, any)
	for h := head; h != nil; h = h.Next {
		if h.Tag == TagOnMessage {
			if cb, ok := h.MemoizedState.(func(context.Context, any)); ok {
				out = append(out, cb)
			}
		}
	}
	return out
}

// UseUnmount registers fn to run once when the owning fiber is removed from
// the tree. The closure is refreshed every render so it always closes over
// current values.
func UseUnmount(r *Render, fn func()) {
	h, _ := useHook(r, TagUnmount)
	h.MemoizedState = fn
}

// UseOnMessage registers a callback the driver invokes when an external
// message is delivered mid-execution.
func UseOnMessage(r *Render, handler func(ctx context.Context, msg any)) {
	h, _ := useHook(r, TagOnMessage)
	h.MemoizedState = handler
}
